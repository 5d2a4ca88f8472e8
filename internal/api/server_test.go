package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmatch-engine/internal/domain"
	"github.com/trialmatch-engine/internal/service"
)

type stubSearcher struct {
	trials []domain.Trial
}

func (s *stubSearcher) Search(ctx context.Context, condition, region string, limit int) ([]domain.Trial, error) {
	return s.trials, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	cfg := &domain.Config{
		Server:  domain.ServerConfig{MiningTimeout: 5 * time.Second},
		Logging: domain.LoggingConfig{Level: "error"},
	}

	catalog := service.NewCriterionCatalog(logger)
	agent := service.NewEligibilityAgent(logger)
	agentV2 := service.NewEligibilityAgentV2(logger, catalog)
	miner := service.NewPatternMiner(logger, &stubSearcher{
		trials: []domain.Trial{{NCTID: "NCT001", Phase: "Phase 2", Sponsor: "Acme Therapeutics Inc"}},
	}, nil, domain.EngineConfig{BatchDelay: time.Millisecond})

	return NewServer(logger, cfg, agent, agentV2, miner)
}

func doRequest(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func TestServer_Health(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp["status"])
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestServer_EvaluateLegacy(t *testing.T) {
	s := newTestServer(t)

	age := 52
	body := evaluateRequest{
		Patient: domain.PatientInput{
			Legacy: &domain.LegacyPatientInput{AgeYears: &age, PriorTherapy: domain.Yes},
		},
		Trial: domain.Trial{
			NCTID:           "NCT001",
			MinAgeYears:     &age,
			EligibilityText: "Treatment-naïve patients only",
		},
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/eligibility/evaluate", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.EligibilityDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.BandLow, decision.Band)
	assert.NotEmpty(t, decision.Reasons)
}

func TestServer_EvaluateEnhanced(t *testing.T) {
	s := newTestServer(t)

	age := 30
	body := evaluateRequest{
		Patient: domain.PatientInput{
			Clinical: &domain.ClinicalPatientProfile{
				AgeYears:      &age,
				Diagnosis:     "cystic fibrosis",
				GenotypeKnown: domain.Yes,
			},
		},
		Trial: domain.Trial{
			NCTID:           "NCT002",
			EligibilityText: "Eligible participants ages 18 to 65 years. Genetically confirmed diagnosis required.",
		},
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/eligibility/evaluate/enhanced", body)
	require.Equal(t, http.StatusOK, rec.Code)

	var decision domain.EnhancedEligibilityDecision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.Equal(t, domain.BandHigh, decision.Band)
	assert.Equal(t, float64(domain.ScoreHigh), decision.Score)
	assert.Len(t, decision.CriterionResults, 2)
}

func TestServer_EvaluateRejectsAmbiguousPatient(t *testing.T) {
	s := newTestServer(t)

	age := 30
	body := evaluateRequest{
		Patient: domain.PatientInput{
			Legacy:   &domain.LegacyPatientInput{AgeYears: &age},
			Clinical: &domain.ClinicalPatientProfile{Diagnosis: "als"},
		},
		Trial: domain.Trial{NCTID: "NCT003"},
	}

	rec := doRequest(t, s, http.MethodPost, "/api/v1/eligibility/evaluate", body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "exactly one")
}

func TestServer_EvaluateRejectsMalformedBody(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/eligibility/evaluate", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServer_Patterns(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/patterns/cystic%20fibrosis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var result domain.MiningResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 1, result.EligibilityPatterns.TotalTrials)
}
