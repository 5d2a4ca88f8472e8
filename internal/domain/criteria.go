package domain

import "regexp"

// Operator represents a numeric comparison extracted from criteria text.
type Operator string

const (
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "="
	OpBetween      Operator = "between"
)

// NumericRange is an inclusive [Lo, Hi] range.
type NumericRange struct {
	Lo float64 `json:"lo"`
	Hi float64 `json:"hi"`
}

// Contains reports whether v falls inside the inclusive range.
func (r NumericRange) Contains(v float64) bool {
	return v >= r.Lo && v <= r.Hi
}

// ExtractedValue is the typed value a criterion extractor pulled out of
// trial eligibility text.
type ExtractedValue struct {
	Matched  string        `json:"matched"`
	Value    string        `json:"value,omitempty"`
	Number   *float64      `json:"number,omitempty"`
	Operator Operator      `json:"operator,omitempty"`
	Unit     string        `json:"unit,omitempty"`
	Range    *NumericRange `json:"range,omitempty"`
}

// CriterionResult is the outcome of evaluating one extracted requirement
// against a patient profile.
//
// Invariants: Status is unknown if and only if the needed patient field is
// absent, and Confidence is 0 exactly when Status is unknown.
type CriterionResult struct {
	CriterionID      string          `json:"criterion_id"`
	Intent           Intent          `json:"intent"`
	Status           CriterionStatus `json:"status"`
	Confidence       float64         `json:"confidence"`
	TrialRequirement string          `json:"trial_requirement,omitempty"`
	PatientValue     string          `json:"patient_value,omitempty"`
	Reason           string          `json:"reason"`
}

// ExtractFunc maps trial eligibility text to a typed value, or nil when no
// pattern matches (silence, not uncertainty).
type ExtractFunc func(text string) *ExtractedValue

// EvaluateFunc applies an extracted requirement to a patient. It is pure,
// never panics, and always returns a fully populated result, defaulting to
// unknown when the relevant patient field is absent.
type EvaluateFunc func(v *ExtractedValue, patient *PatientProfile) CriterionResult

// CriterionExtractor is one named, stateless eligibility rule. Patterns are
// tried in declaration order; more specific range patterns come before
// looser single-bound ones so a range is never mis-parsed as a minimum-only
// bound. Priority orders the decision fold and follow-up-question selection
// (higher wins; ties go to the earlier registered rule).
type CriterionExtractor struct {
	ID               string
	Name             string
	Intent           Intent
	Patterns         []*regexp.Regexp
	Extract          ExtractFunc
	Evaluate         EvaluateFunc
	Priority         int
	FollowUpQuestion string
}
