package domain

import "time"

// Config represents the main application configuration.
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Registry   RegistryConfig   `mapstructure:"registry"`
	Literature LiteratureConfig `mapstructure:"literature"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Engine     EngineConfig     `mapstructure:"engine"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// ServerConfig represents HTTP server configuration.
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	MiningTimeout time.Duration `mapstructure:"mining_timeout"`
}

// RegistryConfig represents trial registry API configuration.
type RegistryConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerSecond int           `mapstructure:"requests_per_second"`
	PageSize          int           `mapstructure:"page_size"`
}

// LiteratureConfig represents literature search API configuration.
type LiteratureConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Email     string        `mapstructure:"email"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RateLimit int           `mapstructure:"rate_limit"`
}

// CacheConfig represents caching configuration. Redis backs the trial
// search cache; the literature cache is in-process.
type CacheConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	RedisURL       string        `mapstructure:"redis_url"`
	DefaultTTL     time.Duration `mapstructure:"default_ttl"`
	MaxRetries     int           `mapstructure:"max_retries"`
	PoolSize       int           `mapstructure:"pool_size"`
	LiteratureTTL  time.Duration `mapstructure:"literature_ttl"`
	LiteratureSize int           `mapstructure:"literature_size"`
}

// EngineConfig carries the overridable heuristic knobs of the matching and
// mining engine. Zero values fall back to the documented defaults.
type EngineConfig struct {
	BatchSize           int           `mapstructure:"batch_size"`
	CorpusSize          int           `mapstructure:"corpus_size"`
	BatchDelay          time.Duration `mapstructure:"batch_delay"`
	GeneticCutoff       float64       `mapstructure:"genetic_cutoff"`
	EarlyPhaseThreshold float64       `mapstructure:"early_phase_threshold"`
	IndustryThreshold   float64       `mapstructure:"industry_threshold"`
	GeoThreshold        float64       `mapstructure:"geo_threshold"`
}

// LoggingConfig represents logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
