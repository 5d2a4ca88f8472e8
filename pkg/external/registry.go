package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/trialmatch-engine/internal/domain"
)

// TrialRegistryClient queries the ClinicalTrials.gov v2 API. All requests
// pass through a shared rate limiter so corpus assembly cannot exceed the
// registry's politeness budget regardless of caller concurrency.
type TrialRegistryClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
}

// NewTrialRegistryClient creates a registry client from configuration.
func NewTrialRegistryClient(config domain.RegistryConfig) *TrialRegistryClient {
	if config.BaseURL == "" {
		config.BaseURL = "https://clinicaltrials.gov/api/v2/"
	}
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = 3
	}
	if config.PageSize <= 0 {
		config.PageSize = 50
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &TrialRegistryClient{
		baseURL: config.BaseURL,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		limiter:  rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1),
		pageSize: config.PageSize,
	}
}

// studiesResponse mirrors the registry's v2 study list payload, restricted
// to the protocol modules this engine reads.
type studiesResponse struct {
	Studies []struct {
		ProtocolSection struct {
			IdentificationModule struct {
				NCTID      string `json:"nctId"`
				BriefTitle string `json:"briefTitle"`
			} `json:"identificationModule"`
			StatusModule struct {
				OverallStatus string `json:"overallStatus"`
			} `json:"statusModule"`
			DesignModule struct {
				StudyType string   `json:"studyType"`
				Phases    []string `json:"phases"`
			} `json:"designModule"`
			SponsorCollaboratorsModule struct {
				LeadSponsor struct {
					Name string `json:"name"`
				} `json:"leadSponsor"`
			} `json:"sponsorCollaboratorsModule"`
			EligibilityModule struct {
				EligibilityCriteria string `json:"eligibilityCriteria"`
				MinimumAge          string `json:"minimumAge"`
				MaximumAge          string `json:"maximumAge"`
			} `json:"eligibilityModule"`
			ContactsLocationsModule struct {
				Locations []struct {
					Facility string `json:"facility"`
					City     string `json:"city"`
					State    string `json:"state"`
					Country  string `json:"country"`
				} `json:"locations"`
			} `json:"contactsLocationsModule"`
		} `json:"protocolSection"`
	} `json:"studies"`
	NextPageToken string `json:"nextPageToken"`
}

// Search returns up to limit trials for a condition, optionally filtered by
// location term. Implements domain.TrialSearcher.
func (c *TrialRegistryClient) Search(ctx context.Context, condition, region string, limit int) ([]domain.Trial, error) {
	if limit <= 0 || limit > c.pageSize {
		limit = c.pageSize
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{
		"query.cond": {condition},
		"pageSize":   {strconv.Itoa(limit)},
		"format":     {"json"},
	}
	if region != "" {
		params.Set("query.locn", region)
	}

	fullURL := fmt.Sprintf("%sstudies?%s", c.baseURL, params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create registry request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute registry request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("trial registry returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}

	var payload studiesResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse registry response: %w", err)
	}

	trials := make([]domain.Trial, 0, len(payload.Studies))
	for _, study := range payload.Studies {
		ps := study.ProtocolSection
		trial := domain.Trial{
			NCTID:           ps.IdentificationModule.NCTID,
			Title:           ps.IdentificationModule.BriefTitle,
			Status:          ps.StatusModule.OverallStatus,
			Phase:           normalizePhase(ps.DesignModule.StudyType, ps.DesignModule.Phases),
			Sponsor:         ps.SponsorCollaboratorsModule.LeadSponsor.Name,
			EligibilityText: ps.EligibilityModule.EligibilityCriteria,
			MinimumAge:      ps.EligibilityModule.MinimumAge,
			MaximumAge:      ps.EligibilityModule.MaximumAge,
			MinAgeYears:     parseAgeYears(ps.EligibilityModule.MinimumAge),
			MaxAgeYears:     parseAgeYears(ps.EligibilityModule.MaximumAge),
		}
		for _, loc := range ps.ContactsLocationsModule.Locations {
			trial.Locations = append(trial.Locations, domain.Location{
				Facility: loc.Facility,
				City:     loc.City,
				State:    loc.State,
				Country:  loc.Country,
			})
		}
		trials = append(trials, trial)
	}

	return trials, nil
}

// phaseLabels maps the registry's enum phase values to readable labels.
var phaseLabels = map[string]string{
	"EARLY_PHASE1": "Early Phase 1",
	"PHASE1":       "Phase 1",
	"PHASE2":       "Phase 2",
	"PHASE3":       "Phase 3",
	"PHASE4":       "Phase 4",
	"NA":           "N/A",
}

// normalizePhase produces a single readable phase string. Observational
// studies report no phase enum, so the study type stands in.
func normalizePhase(studyType string, phases []string) string {
	if len(phases) == 0 {
		if strings.EqualFold(studyType, "OBSERVATIONAL") {
			return "Observational"
		}
		return studyType
	}
	labels := make([]string, 0, len(phases))
	for _, p := range phases {
		if label, ok := phaseLabels[p]; ok {
			labels = append(labels, label)
		} else {
			labels = append(labels, p)
		}
	}
	return strings.Join(labels, "/")
}

var ageYearsRe = regexp.MustCompile(`(?i)^\s*(\d{1,3})\s*years?\s*$`)

// parseAgeYears converts the registry's age string ("18 Years") to whole
// years. Month- or week-denominated ages and free-form values yield nil;
// the raw string is kept on the trial for those cases.
func parseAgeYears(s string) *int {
	m := ageYearsRe.FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return nil
	}
	return &n
}
