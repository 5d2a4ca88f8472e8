package service

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/trialmatch-engine/internal/domain"
)

// CriterionCatalog holds the ordered registry of extraction/evaluation
// rules. Rules are stateless and registered once; new rules are added by
// appending descriptors, never by touching dispatch logic elsewhere.
type CriterionCatalog struct {
	logger *logrus.Logger
	rules  []*domain.CriterionExtractor
	byID   map[string]*domain.CriterionExtractor
	order  map[string]int
}

// NewCriterionCatalog creates a catalog with the built-in rules registered.
func NewCriterionCatalog(logger *logrus.Logger) *CriterionCatalog {
	c := &CriterionCatalog{
		logger: logger,
		byID:   make(map[string]*domain.CriterionExtractor),
		order:  make(map[string]int),
	}

	c.Register(newAgeCriterion())
	c.Register(newGeneticConfirmationCriterion())
	c.Register(newPriorTherapyExclusionCriterion())

	logger.WithField("rule_count", len(c.rules)).Info("Initialized criterion catalog")
	return c
}

// Register appends a rule descriptor to the catalog.
func (c *CriterionCatalog) Register(rule *domain.CriterionExtractor) {
	if _, exists := c.byID[rule.ID]; exists {
		c.logger.WithField("criterion", rule.ID).Warn("Duplicate criterion registration ignored")
		return
	}
	c.order[rule.ID] = len(c.rules)
	c.rules = append(c.rules, rule)
	c.byID[rule.ID] = rule
}

// Rule returns the descriptor for a criterion id.
func (c *CriterionCatalog) Rule(id string) (*domain.CriterionExtractor, bool) {
	rule, ok := c.byID[id]
	return rule, ok
}

// Rules returns the rules in registration order.
func (c *CriterionCatalog) Rules() []*domain.CriterionExtractor {
	return c.rules
}

// HighestPriorityUnknown returns the rule behind the unresolved result with
// the highest priority. Ties break toward the earlier-registered rule.
func (c *CriterionCatalog) HighestPriorityUnknown(results []domain.CriterionResult) (*domain.CriterionExtractor, bool) {
	var best *domain.CriterionExtractor
	for _, r := range results {
		if r.Status != domain.StatusUnknown {
			continue
		}
		rule, ok := c.byID[r.CriterionID]
		if !ok {
			continue
		}
		if best == nil ||
			rule.Priority > best.Priority ||
			(rule.Priority == best.Priority && c.order[rule.ID] < c.order[best.ID]) {
			best = rule
		}
	}
	return best, best != nil
}

// Age criterion
//
// Range patterns are declared before single-bound patterns so "ages 18 to
// 65" is never mis-parsed as a minimum-only bound.

type agePattern struct {
	re *regexp.Regexp
	op domain.Operator
}

var agePatterns = []agePattern{
	{regexp.MustCompile(`(?i)\bages?\s+(\d{1,3})\s*(?:to|through|-|–)\s*(\d{1,3})\s*(?:years?)?`), domain.OpBetween},
	{regexp.MustCompile(`(?i)\bbetween\s+(?:the\s+ages?\s+of\s+)?(\d{1,3})\s+and\s+(\d{1,3})\s*(?:years?)?`), domain.OpBetween},
	{regexp.MustCompile(`(?i)(?:≥|>=|at\s+least)\s*(\d{1,3})\s*years?`), domain.OpGreaterEqual},
	{regexp.MustCompile(`(?i)\b(\d{1,3})\s*years?(?:\s+of\s+age)?\s+(?:or|and)\s+older`), domain.OpGreaterEqual},
	{regexp.MustCompile(`(?i)(?:≤|<=|no\s+more\s+than|not\s+older\s+than|up\s+to)\s*(\d{1,3})\s*years?`), domain.OpLessEqual},
	{regexp.MustCompile(`(?i)\b(\d{1,3})\s*years?(?:\s+of\s+age)?\s+or\s+younger`), domain.OpLessEqual},
	{regexp.MustCompile(`(?i)\b(?:under|younger\s+than|below)\s+(\d{1,3})\s*(?:years?)?`), domain.OpLess},
	{regexp.MustCompile(`(?i)\b(?:over|older\s+than)\s+(\d{1,3})\s*(?:years?)?`), domain.OpGreater},
}

func newAgeCriterion() *domain.CriterionExtractor {
	patterns := make([]*regexp.Regexp, len(agePatterns))
	for i, p := range agePatterns {
		patterns[i] = p.re
	}

	return &domain.CriterionExtractor{
		ID:               "age",
		Name:             "Age eligibility",
		Intent:           domain.IntentInclude,
		Patterns:         patterns,
		Priority:         10,
		FollowUpQuestion: "What is the patient's age in years?",
		Extract:          extractAge,
		Evaluate:         evaluateAge,
	}
}

func extractAge(text string) *domain.ExtractedValue {
	for _, p := range agePatterns {
		m := p.re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		v := &domain.ExtractedValue{
			Matched:  m[0],
			Operator: p.op,
			Unit:     "years",
		}
		if p.op == domain.OpBetween {
			lo, err1 := strconv.ParseFloat(m[1], 64)
			hi, err2 := strconv.ParseFloat(m[2], 64)
			if err1 != nil || err2 != nil || lo > hi {
				continue
			}
			v.Range = &domain.NumericRange{Lo: lo, Hi: hi}
		} else {
			n, err := strconv.ParseFloat(m[1], 64)
			if err != nil {
				continue
			}
			v.Number = &n
		}
		return v
	}
	return nil
}

func evaluateAge(v *domain.ExtractedValue, patient *domain.PatientProfile) domain.CriterionResult {
	result := domain.CriterionResult{
		CriterionID:      "age",
		Intent:           domain.IntentInclude,
		TrialRequirement: v.Matched,
	}

	if patient.AgeYears == nil {
		result.Status = domain.StatusUnknown
		result.Confidence = domain.ConfidenceUnknown
		result.Reason = "Patient age is not provided, so the age requirement cannot be assessed"
		return result
	}

	age := float64(*patient.AgeYears)
	result.PatientValue = strconv.Itoa(*patient.AgeYears)

	satisfied := false
	switch v.Operator {
	case domain.OpBetween:
		satisfied = v.Range != nil && v.Range.Contains(age)
	case domain.OpGreaterEqual:
		satisfied = v.Number != nil && age >= *v.Number
	case domain.OpGreater:
		satisfied = v.Number != nil && age > *v.Number
	case domain.OpLessEqual:
		satisfied = v.Number != nil && age <= *v.Number
	case domain.OpLess:
		satisfied = v.Number != nil && age < *v.Number
	case domain.OpEqual:
		satisfied = v.Number != nil && age == *v.Number
	}

	result.Confidence = domain.ConfidenceNumericMatch
	if satisfied {
		result.Status = domain.StatusHit
		result.Reason = fmt.Sprintf("Patient age %d satisfies the trial age requirement %q", *patient.AgeYears, v.Matched)
	} else {
		result.Status = domain.StatusMiss
		result.Reason = fmt.Sprintf("Patient age %d falls outside the trial age requirement %q", *patient.AgeYears, v.Matched)
	}
	return result
}

// Genetic confirmation criterion

var geneticPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)genetic(?:ally)?[\s-]+confirm(?:ed|ation)`),
	regexp.MustCompile(`(?i)molecular(?:ly)?[\s-]+(?:confirmed|confirmation|diagnosis)`),
	regexp.MustCompile(`(?i)genotype[\s-]+confirmed`),
	regexp.MustCompile(`(?i)(?:documented|confirmed)\s+(?:pathogenic\s+)?(?:mutation|variant|deletion)`),
}

func newGeneticConfirmationCriterion() *domain.CriterionExtractor {
	return &domain.CriterionExtractor{
		ID:               "genetic-confirmation",
		Name:             "Genetic confirmation requirement",
		Intent:           domain.IntentInclude,
		Patterns:         geneticPatterns,
		Priority:         9,
		FollowUpQuestion: "Has the patient's diagnosis been genetically confirmed?",
		Extract:          firstMatch(geneticPatterns),
		Evaluate: func(v *domain.ExtractedValue, patient *domain.PatientProfile) domain.CriterionResult {
			result := domain.CriterionResult{
				CriterionID:      "genetic-confirmation",
				Intent:           domain.IntentInclude,
				TrialRequirement: v.Matched,
				PatientValue:     string(patient.GenotypeKnown),
			}
			switch patient.GenotypeKnown {
			case domain.Yes:
				result.Status = domain.StatusHit
				result.Confidence = domain.ConfidenceLexicalMatch
				result.Reason = "Patient has a genetically confirmed diagnosis, which this trial requires"
			case domain.No:
				result.Status = domain.StatusMiss
				result.Confidence = domain.ConfidenceLexicalMatch
				result.Reason = "Trial requires genetic confirmation and the patient's diagnosis is not genetically confirmed"
			default:
				result.Status = domain.StatusUnknown
				result.Confidence = domain.ConfidenceUnknown
				result.PatientValue = string(domain.Unknown)
				result.Reason = "Trial requires genetic confirmation and the patient's genotype status is unknown"
			}
			return result
		},
	}
}

// Prior-therapy exclusion criterion

var priorTherapyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)treatment[\s-]+na(?:ï|i)ve`),
	regexp.MustCompile(`(?i)no\s+prior\s+(?:systemic\s+)?(?:treatment|therap(?:y|ies))`),
	regexp.MustCompile(`(?i)must\s+not\s+have\s+received\s+prior`),
	regexp.MustCompile(`(?i)previously\s+untreated`),
}

func newPriorTherapyExclusionCriterion() *domain.CriterionExtractor {
	return &domain.CriterionExtractor{
		ID:               "prior-therapy-exclusion",
		Name:             "Prior therapy exclusion",
		Intent:           domain.IntentExclude,
		Patterns:         priorTherapyPatterns,
		Priority:         8,
		FollowUpQuestion: "Has the patient received any prior systemic therapy?",
		Extract:          firstMatch(priorTherapyPatterns),
		Evaluate: func(v *domain.ExtractedValue, patient *domain.PatientProfile) domain.CriterionResult {
			result := domain.CriterionResult{
				CriterionID:      "prior-therapy-exclusion",
				Intent:           domain.IntentExclude,
				TrialRequirement: v.Matched,
				PatientValue:     string(patient.PriorTherapy),
			}
			switch patient.PriorTherapy {
			case domain.Yes:
				// Hit on an exclusion: the patient matches the
				// disqualifying condition.
				result.Status = domain.StatusHit
				result.Confidence = domain.ConfidenceLexicalMatch
				result.Reason = "Patient has received prior therapy, which this trial excludes"
			case domain.No:
				result.Status = domain.StatusMiss
				result.Confidence = domain.ConfidenceLexicalMatch
				result.Reason = "Patient is treatment-naïve, matching the trial's prior-therapy restriction"
			default:
				result.Status = domain.StatusUnknown
				result.Confidence = domain.ConfidenceUnknown
				result.PatientValue = string(domain.Unknown)
				result.Reason = "Trial restricts prior therapy and the patient's treatment history is unknown"
			}
			return result
		},
	}
}

// firstMatch builds an extractor that returns the first pattern match as a
// plain lexical value, or nil when nothing matches.
func firstMatch(patterns []*regexp.Regexp) domain.ExtractFunc {
	return func(text string) *domain.ExtractedValue {
		for _, re := range patterns {
			if m := re.FindString(text); m != "" {
				return &domain.ExtractedValue{Matched: m, Value: m}
			}
		}
		return nil
	}
}
