package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBand_PromoteDemote(t *testing.T) {
	tests := []struct {
		name    string
		start   Band
		promote bool
		want    Band
	}{
		{"Promote from medium", BandMedium, true, BandHigh},
		{"Promote saturates at high", BandHigh, true, BandHigh},
		{"Promote from low", BandLow, true, BandMedium},
		{"Demote from medium", BandMedium, false, BandLow},
		{"Demote saturates at low", BandLow, false, BandLow},
		{"Demote from high", BandHigh, false, BandMedium},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.promote {
				assert.Equal(t, tt.want, tt.start.Promote())
			} else {
				assert.Equal(t, tt.want, tt.start.Demote())
			}
		})
	}
}

func TestTriState_Known(t *testing.T) {
	assert.True(t, Yes.Known())
	assert.True(t, No.Known())
	assert.False(t, Unknown.Known())
	assert.False(t, TriState("").Known())
}

func TestPatientInput_Resolve(t *testing.T) {
	age := 52

	tests := []struct {
		name    string
		input   PatientInput
		wantErr bool
		wantSrc ProfileSource
	}{
		{
			name: "Legacy arm only",
			input: PatientInput{
				Legacy: &LegacyPatientInput{AgeYears: &age, PriorTherapy: Yes},
			},
			wantSrc: SourceLegacy,
		},
		{
			name: "Clinical arm only",
			input: PatientInput{
				Clinical: &ClinicalPatientProfile{Diagnosis: "spinal muscular atrophy", GenotypeKnown: Yes},
			},
			wantSrc: SourceClinical,
		},
		{
			name:    "Neither arm set",
			input:   PatientInput{},
			wantErr: true,
		},
		{
			name: "Both arms set",
			input: PatientInput{
				Legacy:   &LegacyPatientInput{AgeYears: &age},
				Clinical: &ClinicalPatientProfile{Diagnosis: "als"},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := tt.input.Resolve()
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, profile)
				return
			}
			require.NoError(t, err)
			require.NotNil(t, profile)
			assert.Equal(t, tt.wantSrc, profile.Source)
		})
	}
}

func TestPatientInput_Resolve_CarriesLegacyFields(t *testing.T) {
	age := 34
	input := PatientInput{
		Legacy: &LegacyPatientInput{
			AgeYears:      &age,
			GenotypeKnown: Yes,
			PriorTherapy:  No,
		},
	}

	profile, err := input.Resolve()
	require.NoError(t, err)
	require.NotNil(t, profile.AgeYears)
	assert.Equal(t, 34, *profile.AgeYears)
	assert.Equal(t, Yes, profile.GenotypeKnown)
	assert.Equal(t, No, profile.PriorTherapy)
}

func TestNumericRange_Contains(t *testing.T) {
	r := NumericRange{Lo: 18, Hi: 65}
	assert.True(t, r.Contains(18))
	assert.True(t, r.Contains(65))
	assert.True(t, r.Contains(40))
	assert.False(t, r.Contains(17))
	assert.False(t, r.Contains(66))
}
