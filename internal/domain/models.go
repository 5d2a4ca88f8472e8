package domain

// Core Enums and Types

// TriState represents a clinical attribute that may be affirmed, denied, or
// simply not known. Absence of information is a first-class value, never an
// error.
type TriState string

const (
	Yes     TriState = "yes"
	No      TriState = "no"
	Unknown TriState = "unknown"
)

// Known reports whether the attribute carries an actual answer. The empty
// string is treated the same as Unknown so that omitted JSON fields behave
// like unanswered questions.
func (t TriState) Known() bool {
	return t == Yes || t == No
}

// Band represents the three-level eligibility verdict.
type Band string

const (
	BandHigh   Band = "High"
	BandMedium Band = "Medium"
	BandLow    Band = "Low"
)

// Promote moves the band one step toward High.
func (b Band) Promote() Band {
	switch b {
	case BandLow:
		return BandMedium
	case BandMedium:
		return BandHigh
	default:
		return BandHigh
	}
}

// Demote moves the band one step toward Low.
func (b Band) Demote() Band {
	switch b {
	case BandHigh:
		return BandMedium
	case BandMedium:
		return BandLow
	default:
		return BandLow
	}
}

// Intent represents whether satisfying a criterion helps or disqualifies
// eligibility.
type Intent string

const (
	IntentInclude Intent = "include"
	IntentExclude Intent = "exclude"
)

// CriterionStatus represents the tri-state outcome of one criterion
// evaluation. Hit polarity is intent-relative: for an exclusion criterion a
// hit means the patient matches the disqualifying condition.
type CriterionStatus string

const (
	StatusHit     CriterionStatus = "hit"
	StatusMiss    CriterionStatus = "miss"
	StatusUnknown CriterionStatus = "unknown"
)

// ProfileSource tags which input shape a patient profile was resolved from.
type ProfileSource string

const (
	SourceLegacy   ProfileSource = "legacy"
	SourceClinical ProfileSource = "clinical"
)

// Patient and Trial Models

// PatientProfile is the normalized patient record both decision paths
// consume. It is immutable per evaluation call and owned by the caller.
type PatientProfile struct {
	Source           ProfileSource      `json:"source"`
	AgeYears         *int               `json:"age_years,omitempty"`
	SexAtBirth       string             `json:"sex_at_birth,omitempty"`
	Diagnosis        string             `json:"diagnosis,omitempty"`
	Gene             string             `json:"gene,omitempty"`
	Variant          string             `json:"variant,omitempty"`
	DiseaseStage     string             `json:"disease_stage,omitempty"`
	PerformanceScore *int               `json:"performance_score,omitempty"`
	GenotypeKnown    TriState           `json:"genotype_known,omitempty"`
	PriorTherapy     TriState           `json:"prior_therapy,omitempty"`
	Comorbidity      TriState           `json:"comorbidity,omitempty"`
	Contraindication TriState           `json:"contraindication,omitempty"`
	LabValues        map[string]float64 `json:"lab_values,omitempty"`
}

// Location is one trial site.
type Location struct {
	Facility string `json:"facility,omitempty"`
	City     string `json:"city,omitempty"`
	State    string `json:"state,omitempty"`
	Country  string `json:"country,omitempty"`
}

// Trial is a read-only registry record. Age bounds are parsed to years at
// the registry boundary; nil means the bound was absent or unparsable, in
// which case the trial contributes nothing to age-based checks.
type Trial struct {
	NCTID           string     `json:"nct_id"`
	Title           string     `json:"title"`
	Phase           string     `json:"phase,omitempty"`
	Status          string     `json:"status,omitempty"`
	EligibilityText string     `json:"eligibility_text,omitempty"`
	MinAgeYears     *int       `json:"min_age_years,omitempty"`
	MaxAgeYears     *int       `json:"max_age_years,omitempty"`
	MinimumAge      string     `json:"minimum_age,omitempty"`
	MaximumAge      string     `json:"maximum_age,omitempty"`
	Sponsor         string     `json:"sponsor,omitempty"`
	Locations       []Location `json:"locations,omitempty"`
}

// Decision Models

// EligibilityDecision summarizes one trial/patient match. Reasons and
// uncertainties are capped and deduplicated, in evaluation order; at most
// one follow-up question is surfaced.
type EligibilityDecision struct {
	Band             Band     `json:"band"`
	Reasons          []string `json:"reasons"`
	Uncertainties    []string `json:"uncertainties"`
	FollowUpQuestion string   `json:"follow_up_question,omitempty"`
}

// EnhancedEligibilityDecision is the structured-path decision: the banded
// verdict plus a numeric score, every criterion result, and the subset that
// constitute hard exclusion failures.
type EnhancedEligibilityDecision struct {
	EligibilityDecision
	Score             float64           `json:"score"`
	CriterionResults  []CriterionResult `json:"criterion_results"`
	ExclusionFailures []CriterionResult `json:"exclusion_failures,omitempty"`
}

// Mining Output Models
//
// All mining outputs are read-only aggregates: each carries a confidence
// score, supporting evidence (trial ids or raw counts), and an optional
// actionable recommendation.

// AgePattern summarizes age bounds across a corpus.
type AgePattern struct {
	MinAge          int    `json:"min_age"`
	MaxAge          int    `json:"max_age"`
	MostCommonRange [2]int `json:"most_common_range"`
	SampleSize      int    `json:"sample_size"`
}

// GeneticPattern summarizes genetic/molecular requirements across a corpus.
type GeneticPattern struct {
	TrialsRequiring int      `json:"trials_requiring"`
	Fraction        float64  `json:"fraction"`
	UsuallyRequired bool     `json:"usually_required"`
	Mutations       []string `json:"mutations,omitempty"`
}

// EligibilityPatterns aggregates corpus-wide eligibility statistics for one
// condition.
type EligibilityPatterns struct {
	Condition      string          `json:"condition"`
	TotalTrials    int             `json:"total_trials"`
	Age            *AgePattern     `json:"age,omitempty"`
	Genetic        *GeneticPattern `json:"genetic,omitempty"`
	Confidence     float64         `json:"confidence"`
	Evidence       []string        `json:"evidence,omitempty"`
	Recommendation string          `json:"recommendation,omitempty"`
}

// TrialPattern is one ranked distribution entry (phase, sponsor, country).
type TrialPattern struct {
	Kind           string   `json:"kind"`
	Label          string   `json:"label"`
	Count          int      `json:"count"`
	Fraction       float64  `json:"fraction"`
	Confidence     float64  `json:"confidence"`
	Evidence       []string `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// ResearchInsight is one corpus-level observation gated by a fixed
// threshold; insights with no triggering evidence are omitted entirely.
type ResearchInsight struct {
	Kind           string   `json:"kind"`
	Summary        string   `json:"summary"`
	Confidence     float64  `json:"confidence"`
	Evidence       []string `json:"evidence,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
}

// MiningResult is the triple the pattern miner exposes to the presentation
// layer, plus auxiliary literature context when available.
type MiningResult struct {
	Condition           string              `json:"condition"`
	EligibilityPatterns EligibilityPatterns `json:"eligibility_patterns"`
	ResearchInsights    []ResearchInsight   `json:"research_insights"`
	Patterns            []TrialPattern      `json:"patterns"`
	Articles            []Article           `json:"articles,omitempty"`
}
