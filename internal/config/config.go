// Package config provides repograde configuration loading and validation.
package config

import (
	"errors"
	"time"
)

// Config is the top-level configuration struct for repograde.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Analysis AnalysisConfig `mapstructure:"analysis"`
	Judge    JudgeConfig    `mapstructure:"judge"`
	Store    StoreConfig    `mapstructure:"store"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig holds the HTTP server settings.
type ServerConfig struct {
	Addr            string `mapstructure:"addr"`
	ReadTimeout     string `mapstructure:"read_timeout"`
	WriteTimeout    string `mapstructure:"write_timeout"`
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// PipelineConfig holds analysis pipeline resource knobs.
type PipelineConfig struct {
	Workers      int    `mapstructure:"workers"`
	WorkDir      string `mapstructure:"work_dir"`
	CloneTimeout string `mapstructure:"clone_timeout"`
	NodeTimeout  string `mapstructure:"node_timeout"`
}

// AnalysisConfig holds per-detector settings.
type AnalysisConfig struct {
	MaxCommits       int   `mapstructure:"max_commits"`
	MaxFileBytes     int64 `mapstructure:"max_file_bytes"`
	MaxCompareFiles  int   `mapstructure:"max_compare_files"`
	SecurityPerLeak  int   `mapstructure:"security_per_leak"`
	SecurityFloor    int   `mapstructure:"security_floor"`
	SecurityMaxDrop  int   `mapstructure:"security_max_drop"`
	OriginTokenNorm  int   `mapstructure:"origin_token_norm"`
	OriginEntropyMid float64 `mapstructure:"origin_entropy_mid"`
}

// JudgeConfig holds LLM judge settings. An empty APIKey disables the judge.
type JudgeConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	Timeout      string `mapstructure:"timeout"`
	SummaryLimit int    `mapstructure:"summary_limit"`
}

// StoreConfig holds the SQLite persistence settings.
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CacheConfig holds response cache TTLs in seconds.
type CacheConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	ListTTL    int  `mapstructure:"list_ttl"`
	DetailTTL  int  `mapstructure:"detail_ttl"`
	ChartTTL   int  `mapstructure:"chart_ttl"`
	MaxEntries int  `mapstructure:"max_entries"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Worker pool bounds. The pool refuses to run unbounded or idle.
const (
	// MinPipelineWorkers is the smallest allowed worker pool size.
	MinPipelineWorkers = 1
	// MaxPipelineWorkers caps concurrent repository analyses.
	MaxPipelineWorkers = 16
)

// Sentinel errors for configuration validation.
var (
	// ErrInvalidWorkers indicates the workers value is out of bounds.
	ErrInvalidWorkers = errors.New("pipeline.workers must be between 1 and 16")
	// ErrInvalidMaxCommits indicates the commit scan limit is not positive.
	ErrInvalidMaxCommits = errors.New("analysis.max_commits must be positive")
	// ErrInvalidMaxFileBytes indicates the file size limit is not positive.
	ErrInvalidMaxFileBytes = errors.New("analysis.max_file_bytes must be positive")
	// ErrInvalidMaxCompareFiles indicates the pairwise file cap is not positive.
	ErrInvalidMaxCompareFiles = errors.New("analysis.max_compare_files must be positive")
	// ErrInvalidSecurityPenalty indicates a security scoring constant is negative.
	ErrInvalidSecurityPenalty = errors.New("analysis security penalties must be non-negative")
	// ErrInvalidCacheTTL indicates a cache TTL is negative.
	ErrInvalidCacheTTL = errors.New("cache TTLs must be non-negative")
	// ErrMissingStorePath indicates the store path is empty.
	ErrMissingStorePath = errors.New("store.path must not be empty")
	// ErrMissingServerAddr indicates the listen address is empty.
	ErrMissingServerAddr = errors.New("server.addr must not be empty")
)

// ParseDuration parses a duration string, falling back when the value
// is empty or malformed. Validation happens earlier; this is a helper
// for wiring.
func ParseDuration(value string, fallback time.Duration) time.Duration {
	if value == "" {
		return fallback
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}

	return d
}

// Validate checks Config invariants and returns the first error found.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return ErrMissingServerAddr
	}

	if c.Store.Path == "" {
		return ErrMissingStorePath
	}

	if c.Pipeline.Workers < MinPipelineWorkers || c.Pipeline.Workers > MaxPipelineWorkers {
		return ErrInvalidWorkers
	}

	return c.validateAnalysis()
}

func (c *Config) validateAnalysis() error {
	if c.Analysis.MaxCommits <= 0 {
		return ErrInvalidMaxCommits
	}

	if c.Analysis.MaxFileBytes <= 0 {
		return ErrInvalidMaxFileBytes
	}

	if c.Analysis.MaxCompareFiles <= 0 {
		return ErrInvalidMaxCompareFiles
	}

	if c.Analysis.SecurityPerLeak < 0 || c.Analysis.SecurityFloor < 0 || c.Analysis.SecurityMaxDrop < 0 {
		return ErrInvalidSecurityPenalty
	}

	if c.Cache.ListTTL < 0 || c.Cache.DetailTTL < 0 || c.Cache.ChartTTL < 0 {
		return ErrInvalidCacheTTL
	}

	return nil
}
