package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/trialmatch-engine/internal/domain"
)

// Manager loads and validates application configuration using Viper.
type Manager struct {
	config *domain.Config
}

// NewManager creates a new configuration manager.
func NewManager() (*Manager, error) {
	m := &Manager{}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from file, environment, and defaults.
func (m *Manager) loadConfig() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/trialmatch-engine/")

	viper.SetEnvPrefix("TRIALMATCH")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// Config file is optional; defaults and env vars are enough to run.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values.
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "30s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.mining_timeout", "90s")

	// Trial registry defaults
	viper.SetDefault("registry.base_url", "https://clinicaltrials.gov/api/v2/")
	viper.SetDefault("registry.timeout", "30s")
	viper.SetDefault("registry.requests_per_second", 3)
	viper.SetDefault("registry.page_size", 50)

	// Literature search defaults
	viper.SetDefault("literature.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils/")
	viper.SetDefault("literature.timeout", "30s")
	viper.SetDefault("literature.rate_limit", 3)

	// Cache defaults
	viper.SetDefault("cache.enabled", false)
	viper.SetDefault("cache.redis_url", "redis://localhost:6379")
	viper.SetDefault("cache.default_ttl", "12h")
	viper.SetDefault("cache.max_retries", 3)
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.literature_ttl", "1h")
	viper.SetDefault("cache.literature_size", 256)

	// Engine heuristics (documented defaults, overridable per deployment)
	viper.SetDefault("engine.batch_size", domain.DefaultBatchSize)
	viper.SetDefault("engine.corpus_size", domain.DefaultCorpusSize)
	viper.SetDefault("engine.batch_delay", domain.DefaultBatchDelay)
	viper.SetDefault("engine.genetic_cutoff", domain.GeneticRequirementCutoff)
	viper.SetDefault("engine.early_phase_threshold", domain.EarlyPhaseInsightThreshold)
	viper.SetDefault("engine.industry_threshold", domain.IndustrySponsorThreshold)
	viper.SetDefault("engine.geo_threshold", domain.GeoConcentrationThreshold)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
}

// GetConfig returns the complete configuration.
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetServerConfig returns server configuration.
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// GetEngineConfig returns engine configuration.
func (m *Manager) GetEngineConfig() *domain.EngineConfig {
	return &m.config.Engine
}

// Validate validates the configuration.
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Registry.BaseURL == "" {
		return fmt.Errorf("trial registry base URL is required")
	}
	if config.Registry.PageSize <= 0 {
		return fmt.Errorf("registry page size must be positive: %d", config.Registry.PageSize)
	}
	if config.Literature.BaseURL == "" {
		return fmt.Errorf("literature base URL is required")
	}

	if config.Cache.Enabled && config.Cache.RedisURL == "" {
		return fmt.Errorf("redis URL is required when the cache is enabled")
	}

	if config.Engine.BatchSize <= 0 || config.Engine.CorpusSize <= 0 {
		return fmt.Errorf("engine batch size and corpus size must be positive")
	}
	if config.Engine.GeneticCutoff < 0 || config.Engine.GeneticCutoff > 1 {
		return fmt.Errorf("genetic cutoff must be within [0,1]: %f", config.Engine.GeneticCutoff)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}
