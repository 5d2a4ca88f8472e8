package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/trialmatch-engine/internal/domain"
)

// EligibilityAgent is the legacy heuristic decision path. It works directly
// on the trial's lowercased eligibility text with keyword checks rather
// than the structured catalog, and is kept as a distinct path on purpose:
// its keyword lists overlap but do not coincide with the catalog's
// patterns, and behavioral parity between the two is not guaranteed.
type EligibilityAgent struct {
	logger *logrus.Logger
}

// NewEligibilityAgent creates the legacy agent.
func NewEligibilityAgent(logger *logrus.Logger) *EligibilityAgent {
	return &EligibilityAgent{logger: logger}
}

// Legacy keyword lists. These intentionally differ from the catalog's
// regular expressions.
var (
	legacyGeneticKeywords      = []string{"genetic", "molecular", "mutation"}
	legacyPriorTherapyKeywords = []string{"treatment-naïve", "treatment-naive", "treatment naive", "no prior"}
)

const (
	legacyGeneticQuestion = "Has the patient's diagnosis been genetically confirmed?"
	legacyPriorQuestion   = "Has the patient received any prior systemic therapy?"
)

// Evaluate produces a banded decision for one trial/patient pair. The band
// starts at Medium; once a disqualifying match drops it to Low it never
// recovers.
func (a *EligibilityAgent) Evaluate(patient *domain.PatientProfile, trial *domain.Trial) domain.EligibilityDecision {
	band := domain.BandMedium
	excluded := false
	var reasons, uncertainties []string

	text := strings.ToLower(trial.EligibilityText)

	// Age bounds.
	if trial.MinAgeYears != nil || trial.MaxAgeYears != nil {
		if patient.AgeYears == nil {
			uncertainties = appendCapped(uncertainties, domain.MaxUncertainties,
				"Trial specifies age bounds but the patient's age is unknown")
		} else {
			age := *patient.AgeYears
			within := (trial.MinAgeYears == nil || age >= *trial.MinAgeYears) &&
				(trial.MaxAgeYears == nil || age <= *trial.MaxAgeYears)
			if within {
				if !excluded {
					band = band.Promote()
				}
				reasons = appendCapped(reasons, domain.MaxReasons,
					fmt.Sprintf("Patient age %d fits the trial's age range", age))
			} else {
				band = domain.BandLow
				excluded = true
				reasons = appendCapped(reasons, domain.MaxReasons,
					fmt.Sprintf("Patient age %d is outside the trial's age range", age))
			}
		}
	}

	// Genetic / molecular requirement keywords.
	askGenetic := false
	if containsAny(text, legacyGeneticKeywords) {
		switch patient.GenotypeKnown {
		case domain.Yes:
			if !excluded {
				band = band.Promote()
			}
			reasons = appendCapped(reasons, domain.MaxReasons,
				"Trial mentions genetic or molecular requirements and the patient's genotype is confirmed")
		case domain.No:
			band = band.Demote()
			reasons = appendCapped(reasons, domain.MaxReasons,
				"Trial mentions genetic or molecular requirements but the patient's genotype is not confirmed")
		default:
			uncertainties = appendCapped(uncertainties, domain.MaxUncertainties,
				"Trial mentions genetic or molecular requirements and the patient's genotype status is unknown")
			askGenetic = true
		}
	}

	// Prior-therapy exclusion keywords. A conflict is disqualifying.
	askPrior := false
	if containsAny(text, legacyPriorTherapyKeywords) {
		switch patient.PriorTherapy {
		case domain.Yes:
			band = domain.BandLow
			excluded = true
			reasons = appendCapped(reasons, domain.MaxReasons,
				"Prior therapy conflicts with the trial's treatment-naïve restriction")
		case domain.No:
			if !excluded {
				band = band.Promote()
			}
			reasons = appendCapped(reasons, domain.MaxReasons,
				"Patient is treatment-naïve, as the trial requires")
		default:
			uncertainties = appendCapped(uncertainties, domain.MaxUncertainties,
				"Trial restricts prior therapy and the patient's treatment history is unknown")
			askPrior = true
		}
	}

	// Observational and natural-history studies have broad eligibility.
	phase := strings.ToLower(trial.Phase)
	if strings.Contains(phase, "observational") || strings.Contains(phase, "natural history") {
		if band != domain.BandLow {
			band = domain.BandHigh
			reasons = appendCapped(reasons, domain.MaxReasons,
				"Observational study with broad eligibility criteria")
		}
	}

	// At most one follow-up question, preferring genetic confirmation.
	followUp := ""
	if askGenetic {
		followUp = legacyGeneticQuestion
	} else if askPrior {
		followUp = legacyPriorQuestion
	}

	if len(reasons) == 0 && len(uncertainties) == 0 {
		uncertainties = []string{domain.GenericUncertainty}
	}

	decision := domain.EligibilityDecision{
		Band:             band,
		Reasons:          reasons,
		Uncertainties:    uncertainties,
		FollowUpQuestion: followUp,
	}

	a.logger.WithFields(logrus.Fields{
		"nct_id": trial.NCTID,
		"band":   decision.Band,
		"path":   "legacy",
	}).Debug("Completed eligibility evaluation")

	return decision
}

// EligibilityAgentV2 is the structured decision path: it runs every catalog
// rule against the trial text, folds the results into a band in
// rule-priority order, and derives a numeric score. This is the designed
// extension point for finer per-criterion weighting.
type EligibilityAgentV2 struct {
	logger  *logrus.Logger
	catalog *CriterionCatalog
}

// NewEligibilityAgentV2 creates the structured agent.
func NewEligibilityAgentV2(logger *logrus.Logger, catalog *CriterionCatalog) *EligibilityAgentV2 {
	return &EligibilityAgentV2{logger: logger, catalog: catalog}
}

// Evaluate runs the full catalog for one trial/patient pair. Rules whose
// extractor finds nothing contribute no result at all (silence, not
// uncertainty).
func (a *EligibilityAgentV2) Evaluate(patient *domain.PatientProfile, trial *domain.Trial) domain.EnhancedEligibilityDecision {
	var results []domain.CriterionResult
	for _, rule := range a.catalog.Rules() {
		v := rule.Extract(trial.EligibilityText)
		if v == nil {
			continue
		}
		results = append(results, rule.Evaluate(v, patient))
	}

	// Fold in rule-priority order; registration order breaks ties.
	ordered := make([]domain.CriterionResult, len(results))
	copy(ordered, results)
	sort.SliceStable(ordered, func(i, j int) bool {
		return a.rulePriority(ordered[i].CriterionID) > a.rulePriority(ordered[j].CriterionID)
	})

	band := domain.BandMedium
	excluded := false
	var reasons, uncertainties []string
	var exclusionFailures []domain.CriterionResult

	for _, r := range ordered {
		switch r.Status {
		case domain.StatusUnknown:
			uncertainties = appendCapped(uncertainties, domain.MaxUncertainties, r.Reason)
		case domain.StatusHit:
			if r.Intent == domain.IntentExclude {
				// Matching a disqualifying condition pins the band at Low.
				band = domain.BandLow
				excluded = true
				exclusionFailures = append(exclusionFailures, r)
				reasons = appendCapped(reasons, domain.MaxReasons, r.Reason)
			} else {
				if !excluded {
					band = band.Promote()
				}
				reasons = appendCapped(reasons, domain.MaxReasons, r.Reason)
			}
		case domain.StatusMiss:
			if r.Intent == domain.IntentExclude {
				// Patient clears the exclusion; supportive, band unchanged.
				reasons = appendCapped(reasons, domain.MaxReasons, r.Reason)
			} else {
				band = band.Demote()
				reasons = appendCapped(reasons, domain.MaxReasons, r.Reason)
			}
		}
	}

	followUp := ""
	if rule, ok := a.catalog.HighestPriorityUnknown(results); ok {
		followUp = rule.FollowUpQuestion
	}

	if len(reasons) == 0 && len(uncertainties) == 0 {
		uncertainties = []string{domain.GenericUncertainty}
	}

	decision := domain.EnhancedEligibilityDecision{
		EligibilityDecision: domain.EligibilityDecision{
			Band:             band,
			Reasons:          reasons,
			Uncertainties:    uncertainties,
			FollowUpQuestion: followUp,
		},
		Score:             bandScore(band),
		CriterionResults:  results,
		ExclusionFailures: exclusionFailures,
	}

	a.logger.WithFields(logrus.Fields{
		"nct_id":     trial.NCTID,
		"band":       decision.Band,
		"score":      decision.Score,
		"criteria":   len(results),
		"exclusions": len(exclusionFailures),
		"path":       "structured",
	}).Debug("Completed eligibility evaluation")

	return decision
}

func (a *EligibilityAgentV2) rulePriority(id string) int {
	rule, ok := a.catalog.Rule(id)
	if !ok {
		return 0
	}
	return rule.Priority
}

// bandScore maps the band to the coarse numeric score of the enhanced
// decision.
func bandScore(band domain.Band) float64 {
	switch band {
	case domain.BandHigh:
		return domain.ScoreHigh
	case domain.BandLow:
		return domain.ScoreLow
	default:
		return domain.ScoreMedium
	}
}

// appendCapped appends entry unless it is empty, already present, or the
// list is at its cap. Insertion order is evaluation order.
func appendCapped(list []string, max int, entry string) []string {
	if entry == "" {
		return list
	}
	for _, e := range list {
		if e == entry {
			return list
		}
	}
	if len(list) >= max {
		return list
	}
	return append(list, entry)
}

func containsAny(text string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(text, k) {
			return true
		}
	}
	return false
}
