package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmatch-engine/internal/domain"
)

func TestEligibilityAgent_AgeFit(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	trial := &domain.Trial{
		NCTID:       "NCT00000001",
		MinAgeYears: intPtr(18),
		MaxAgeYears: intPtr(65),
	}

	tests := []struct {
		name     string
		age      *int
		wantBand domain.Band
	}{
		{"Within bounds promotes", intPtr(40), domain.BandHigh},
		{"Lower bound inclusive", intPtr(18), domain.BandHigh},
		{"Upper bound inclusive", intPtr(65), domain.BandHigh},
		{"Outside bounds disqualifies", intPtr(70), domain.BandLow},
		{"Unknown age stays medium", nil, domain.BandMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decision := agent.Evaluate(&domain.PatientProfile{AgeYears: tt.age}, trial)
			assert.Equal(t, tt.wantBand, decision.Band)
		})
	}
}

func TestEligibilityAgent_PriorTherapyConflictIsDisqualifying(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	trial := &domain.Trial{
		NCTID:           "NCT00000002",
		MinAgeYears:     intPtr(18),
		MaxAgeYears:     intPtr(75),
		EligibilityText: "Treatment-naïve patients only",
	}
	patient := &domain.PatientProfile{
		AgeYears:     intPtr(52),
		PriorTherapy: domain.Yes,
	}

	decision := agent.Evaluate(patient, trial)

	// An exclusion conflict pins the band at Low even though the age fit
	// earned a promotion.
	assert.Equal(t, domain.BandLow, decision.Band)
	assert.Contains(t, decision.Reasons, "Patient age 52 fits the trial's age range")
	assert.Contains(t, decision.Reasons, "Prior therapy conflicts with the trial's treatment-naïve restriction")
	assert.Empty(t, decision.FollowUpQuestion)
}

func TestEligibilityAgent_FollowUpPrefersGenetic(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	trial := &domain.Trial{
		NCTID:           "NCT00000003",
		EligibilityText: "Genetic confirmation required. No prior systemic therapy.",
	}
	patient := &domain.PatientProfile{} // both answers unknown

	decision := agent.Evaluate(patient, trial)

	assert.Equal(t, legacyGeneticQuestion, decision.FollowUpQuestion)
	assert.Len(t, decision.Uncertainties, 2)
}

func TestEligibilityAgent_ObservationalBoost(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	trial := &domain.Trial{
		NCTID: "NCT00000004",
		Phase: "Observational",
	}

	decision := agent.Evaluate(&domain.PatientProfile{}, trial)
	assert.Equal(t, domain.BandHigh, decision.Band)

	// The boost never rescues a disqualified patient.
	trial2 := &domain.Trial{
		NCTID:           "NCT00000005",
		Phase:           "Observational",
		EligibilityText: "treatment-naive",
	}
	decision = agent.Evaluate(&domain.PatientProfile{PriorTherapy: domain.Yes}, trial2)
	assert.Equal(t, domain.BandLow, decision.Band)
}

func TestEligibilityAgent_GenericUncertaintyWhenSilent(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	decision := agent.Evaluate(&domain.PatientProfile{}, &domain.Trial{NCTID: "NCT00000006"})

	assert.Empty(t, decision.Reasons)
	require.Len(t, decision.Uncertainties, 1)
	assert.Equal(t, domain.GenericUncertainty, decision.Uncertainties[0])
}

func TestEligibilityAgent_Deterministic(t *testing.T) {
	agent := NewEligibilityAgent(testLogger())

	trial := &domain.Trial{
		NCTID:           "NCT00000007",
		MinAgeYears:     intPtr(18),
		MaxAgeYears:     intPtr(65),
		EligibilityText: "Genetically confirmed diagnosis required. Treatment-naïve patients only.",
	}
	patient := &domain.PatientProfile{
		AgeYears:      intPtr(30),
		GenotypeKnown: domain.Yes,
		PriorTherapy:  domain.No,
	}

	first := agent.Evaluate(patient, trial)
	second := agent.Evaluate(patient, trial)
	assert.Equal(t, first, second)
}

func TestEligibilityAgentV2_StructuredDecision(t *testing.T) {
	logger := testLogger()
	agent := NewEligibilityAgentV2(logger, NewCriterionCatalog(logger))

	trial := &domain.Trial{
		NCTID:           "NCT00000010",
		EligibilityText: "Eligible participants ages 18 to 65 years. Genetically confirmed diagnosis required.",
	}
	patient := &domain.PatientProfile{
		AgeYears:      intPtr(40),
		GenotypeKnown: domain.Yes,
	}

	decision := agent.Evaluate(patient, trial)

	assert.Equal(t, domain.BandHigh, decision.Band)
	assert.Equal(t, float64(domain.ScoreHigh), decision.Score)
	assert.Len(t, decision.CriterionResults, 2)
	assert.Empty(t, decision.ExclusionFailures)
	for _, r := range decision.CriterionResults {
		assert.Equal(t, domain.StatusHit, r.Status)
	}
}

func TestEligibilityAgentV2_ExclusionFailure(t *testing.T) {
	logger := testLogger()
	agent := NewEligibilityAgentV2(logger, NewCriterionCatalog(logger))

	trial := &domain.Trial{
		NCTID:           "NCT00000011",
		EligibilityText: "Eligible participants ages 18 to 65 years. No prior systemic therapy.",
	}
	patient := &domain.PatientProfile{
		AgeYears:     intPtr(40),
		PriorTherapy: domain.Yes,
	}

	decision := agent.Evaluate(patient, trial)

	// The age promotion cannot outweigh a hard exclusion failure.
	assert.Equal(t, domain.BandLow, decision.Band)
	assert.Equal(t, float64(domain.ScoreLow), decision.Score)
	require.Len(t, decision.ExclusionFailures, 1)
	assert.Equal(t, "prior-therapy-exclusion", decision.ExclusionFailures[0].CriterionID)
	assert.Equal(t, domain.StatusHit, decision.ExclusionFailures[0].Status)
}

func TestEligibilityAgentV2_UnknownProducesFollowUp(t *testing.T) {
	logger := testLogger()
	catalog := NewCriterionCatalog(logger)
	agent := NewEligibilityAgentV2(logger, catalog)

	trial := &domain.Trial{
		NCTID:           "NCT00000012",
		EligibilityText: "Genetically confirmed diagnosis required. No prior systemic therapy.",
	}
	patient := &domain.PatientProfile{} // everything unknown

	decision := agent.Evaluate(patient, trial)

	// Genetic confirmation (priority 9) outranks prior therapy (priority 8).
	genetic, ok := catalog.Rule("genetic-confirmation")
	require.True(t, ok)
	assert.Equal(t, genetic.FollowUpQuestion, decision.FollowUpQuestion)
	assert.Len(t, decision.Uncertainties, 2)
	assert.Empty(t, decision.ExclusionFailures)
}

func TestEligibilityAgentV2_SilentTextGetsGenericUncertainty(t *testing.T) {
	logger := testLogger()
	agent := NewEligibilityAgentV2(logger, NewCriterionCatalog(logger))

	decision := agent.Evaluate(&domain.PatientProfile{}, &domain.Trial{
		NCTID:           "NCT00000013",
		EligibilityText: "Histologically confirmed disease with measurable lesions",
	})

	assert.Empty(t, decision.CriterionResults)
	require.Len(t, decision.Uncertainties, 1)
	assert.Equal(t, domain.GenericUncertainty, decision.Uncertainties[0])
	assert.Equal(t, domain.BandMedium, decision.Band)
	assert.Equal(t, float64(domain.ScoreMedium), decision.Score)
}

func TestAppendCapped(t *testing.T) {
	list := []string{}
	list = appendCapped(list, 2, "a")
	list = appendCapped(list, 2, "a") // duplicate ignored
	list = appendCapped(list, 2, "")  // empty ignored
	list = appendCapped(list, 2, "b")
	list = appendCapped(list, 2, "c") // over cap ignored

	assert.Equal(t, []string{"a", "b"}, list)
}
