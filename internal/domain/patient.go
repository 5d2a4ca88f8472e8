package domain

import "fmt"

// LegacyPatientInput is the minimal patient shape older callers send: just
// an age and two tri-state answers.
type LegacyPatientInput struct {
	AgeYears      *int     `json:"age_years,omitempty"`
	GenotypeKnown TriState `json:"genotype_known,omitempty"`
	PriorTherapy  TriState `json:"prior_therapy,omitempty"`
}

// ClinicalPatientProfile is the full clinical intake shape.
type ClinicalPatientProfile struct {
	AgeYears         *int               `json:"age_years,omitempty"`
	SexAtBirth       string             `json:"sex_at_birth,omitempty"`
	Diagnosis        string             `json:"diagnosis"`
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

// PatientInput is the explicit tagged union of the two accepted input
// shapes. Exactly one arm must be set; the tag is decided once here at the
// API boundary so downstream code never re-derives it from field presence.
type PatientInput struct {
	Legacy   *LegacyPatientInput     `json:"legacy,omitempty"`
	Clinical *ClinicalPatientProfile `json:"clinical,omitempty"`
}

// Resolve normalizes the union into a PatientProfile tagged with its
// source. It is the only place the legacy/clinical distinction is made.
func (in PatientInput) Resolve() (*PatientProfile, error) {
	switch {
	case in.Legacy != nil && in.Clinical != nil:
		return nil, fmt.Errorf("patient input must set exactly one of legacy or clinical, got both")
	case in.Legacy != nil:
		return &PatientProfile{
			Source:        SourceLegacy,
			AgeYears:      in.Legacy.AgeYears,
			GenotypeKnown: in.Legacy.GenotypeKnown,
			PriorTherapy:  in.Legacy.PriorTherapy,
		}, nil
	case in.Clinical != nil:
		c := in.Clinical
		return &PatientProfile{
			Source:           SourceClinical,
			AgeYears:         c.AgeYears,
			SexAtBirth:       c.SexAtBirth,
			Diagnosis:        c.Diagnosis,
			Gene:             c.Gene,
			Variant:          c.Variant,
			DiseaseStage:     c.DiseaseStage,
			PerformanceScore: c.PerformanceScore,
			GenotypeKnown:    c.GenotypeKnown,
			PriorTherapy:     c.PriorTherapy,
			Comorbidity:      c.Comorbidity,
			Contraindication: c.Contraindication,
			LabValues:        c.LabValues,
		}, nil
	default:
		return nil, fmt.Errorf("patient input must set one of legacy or clinical")
	}
}
