package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trialmatch-engine/internal/domain"
)

func TestNewManager_Defaults(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)

	cfg := manager.GetConfig()
	require.NotNil(t, cfg)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 90*time.Second, cfg.Server.MiningTimeout)

	assert.Equal(t, "https://clinicaltrials.gov/api/v2/", cfg.Registry.BaseURL)
	assert.Equal(t, 50, cfg.Registry.PageSize)

	assert.Equal(t, "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/", cfg.Literature.BaseURL)

	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 12*time.Hour, cfg.Cache.DefaultTTL)

	assert.Equal(t, domain.DefaultBatchSize, cfg.Engine.BatchSize)
	assert.Equal(t, domain.DefaultCorpusSize, cfg.Engine.CorpusSize)
	assert.Equal(t, domain.DefaultBatchDelay, cfg.Engine.BatchDelay)
	assert.InDelta(t, domain.GeneticRequirementCutoff, cfg.Engine.GeneticCutoff, 1e-9)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestManager_Validate(t *testing.T) {
	manager, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, manager.Validate())
}

func TestManager_Validate_Rejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *domain.Config)
		wantErr string
	}{
		{
			name:    "Bad port",
			mutate:  func(cfg *domain.Config) { cfg.Server.Port = -1 },
			wantErr: "invalid server port",
		},
		{
			name:    "Missing registry URL",
			mutate:  func(cfg *domain.Config) { cfg.Registry.BaseURL = "" },
			wantErr: "trial registry base URL",
		},
		{
			name:    "Zero page size",
			mutate:  func(cfg *domain.Config) { cfg.Registry.PageSize = 0 },
			wantErr: "page size",
		},
		{
			name: "Cache enabled without redis",
			mutate: func(cfg *domain.Config) {
				cfg.Cache.Enabled = true
				cfg.Cache.RedisURL = ""
			},
			wantErr: "redis URL",
		},
		{
			name:    "Genetic cutoff out of range",
			mutate:  func(cfg *domain.Config) { cfg.Engine.GeneticCutoff = 1.5 },
			wantErr: "genetic cutoff",
		},
		{
			name:    "Unknown log level",
			mutate:  func(cfg *domain.Config) { cfg.Logging.Level = "verbose" },
			wantErr: "invalid log level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewManager()
			require.NoError(t, err)

			tt.mutate(manager.GetConfig())

			err = manager.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
