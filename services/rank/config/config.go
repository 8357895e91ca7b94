// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates AleutianSearch ranking configuration.
//
// Configuration is merged with priority: environment > file > defaults.
// Files are YAML. A missing file is not an error; the defaults apply.
// Section structs carry yaml tags plus validator tags, and convert to the
// config types of the packages they feed (logging.Config, rank.ServiceConfig)
// so those packages stay free of yaml concerns.
//
// # Usage
//
//	cfg, err := config.Load("/etc/aleutiansearch/rank.yaml")
//	if err != nil { ... }
//	svc, err := rank.NewService(cfg.Search.ToServiceConfig())
//
// Hot reload is available through Watch, which re-runs Load on file change
// and keeps the previous configuration when the new one fails validation.
//
// # Thread Safety
//
// Config values are plain data; safe to copy and read concurrently. Load and
// Global are safe for concurrent use.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/AleutianSearch/pkg/logging"
	"github.com/AleutianAI/AleutianSearch/services/rank"
	"github.com/AleutianAI/AleutianSearch/services/rank/multisearch"
	"github.com/AleutianAI/AleutianSearch/services/rank/telemetry"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// MaxConfigFileSize is the maximum allowed config file size (1MB).
	// Prevents memory issues from large or malformed files.
	MaxConfigFileSize = 1024 * 1024

	// EnvConfigPath names the environment variable Global() reads the
	// config file path from.
	EnvConfigPath = "RANK_CONFIG"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

// =============================================================================
// Sections
// =============================================================================

// Config is the top-level ranking service configuration.
type Config struct {
	// Service identifies this deployment.
	Service ServiceConfig `yaml:"service"`

	// Logging configures structured log output.
	Logging LoggingConfig `yaml:"logging"`

	// Telemetry configures tracing and metrics export.
	Telemetry TelemetryConfig `yaml:"telemetry"`

	// Search configures the ranking engine.
	Search SearchConfig `yaml:"search"`

	// MultiSearch configures federated query fan-out.
	MultiSearch multisearch.Config `yaml:"multi_search"`
}

// ServiceConfig identifies the deployment in logs and telemetry.
type ServiceConfig struct {
	// Name is the service name attached to logs, traces, and metrics.
	Name string `yaml:"name" validate:"required"`

	// Environment tags telemetry output.
	Environment string `yaml:"environment" validate:"omitempty,oneof=dev staging prod"`
}

// LoggingConfig is the yaml-facing shape of logging.Config. Levels travel
// as strings in files and are parsed on conversion.
type LoggingConfig struct {
	// Level is the minimum severity: debug, info, warn, or error.
	Level string `yaml:"level"`

	// Dir enables file logging when non-empty.
	Dir string `yaml:"dir"`

	// JSON switches stderr output to JSON.
	JSON bool `yaml:"json"`

	// Quiet suppresses stderr output entirely.
	Quiet bool `yaml:"quiet"`
}

// TelemetryConfig selects how traces and metrics leave the process.
type TelemetryConfig struct {
	// Enabled turns telemetry on. When false the exporter settings are
	// ignored and Init installs no-op providers.
	Enabled bool `yaml:"enabled"`

	// Exporter selects the backend: prometheus, stdout, or otlp.
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=prometheus stdout otlp"`

	// OTLPEndpoint is the collector host:port, required for otlp.
	OTLPEndpoint string `yaml:"otlp_endpoint" validate:"required_if=Exporter otlp,omitempty,hostname_port"`

	// SampleRate is the trace sampling ratio in [0, 1].
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// SearchConfig is the yaml-facing shape of rank.ServiceConfig.
type SearchConfig struct {
	DefaultLimit     int  `yaml:"default_limit"`
	MaxQueryTerms    int  `yaml:"max_query_terms"`
	MaxPathsPerRule  int  `yaml:"max_paths_per_rule"`
	TypoEnabled      bool `yaml:"typo_enabled"`
	ProximityEnabled bool `yaml:"proximity_enabled"`
}

// =============================================================================
// Defaults
// =============================================================================

// Default returns the full default configuration. It always validates.
func Default() Config {
	search := rank.DefaultServiceConfig()
	return Config{
		Service: ServiceConfig{
			Name:        "rank",
			Environment: "dev",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Telemetry: TelemetryConfig{
			Enabled:    true,
			Exporter:   "prometheus",
			SampleRate: 1.0,
		},
		Search: SearchConfig{
			DefaultLimit:     search.DefaultLimit,
			MaxQueryTerms:    search.MaxQueryTerms,
			MaxPathsPerRule:  search.MaxPathsPerRule,
			TypoEnabled:      search.TypoEnabled,
			ProximityEnabled: search.ProximityEnabled,
		},
		MultiSearch: multisearch.DefaultConfig(),
	}
}

// =============================================================================
// Loading
// =============================================================================

// Load merges configuration with priority: env > file > defaults.
//
// Inputs:
//   - path: Path to a YAML config file (optional, can be empty). A path
//     that does not exist is treated the same as an empty path.
//
// Outputs:
//   - Config: Merged configuration.
//   - error: Non-nil if the file exists but is unreadable or invalid, or
//     if the merged result fails validation.
func Load(path string) (Config, error) {
	config := Default()

	if path != "" {
		if err := loadFile(path, &config); err != nil {
			return config, fmt.Errorf("load config file: %w", err)
		}
	}

	loadFromEnv(&config)

	if err := config.Validate(); err != nil {
		return config, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

func loadFile(path string, config *Config) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil // File doesn't exist, use defaults
		}
		return fmt.Errorf("stat file: %w", err)
	}
	if info.Size() > MaxConfigFileSize {
		return fmt.Errorf("config file too large: %d bytes (max %d)", info.Size(), MaxConfigFileSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return fmt.Errorf("parse yaml: %w", err)
	}
	return nil
}

func loadFromEnv(config *Config) {
	if v := os.Getenv("RANK_SERVICE_NAME"); v != "" {
		config.Service.Name = v
	}
	if v := os.Getenv("RANK_ENVIRONMENT"); v != "" {
		config.Service.Environment = v
	}

	// Logging
	if v := os.Getenv("RANK_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("RANK_LOG_DIR"); v != "" {
		config.Logging.Dir = v
	}
	if v := os.Getenv("RANK_LOG_JSON"); v != "" {
		config.Logging.JSON = v == "true" || v == "1"
	}

	// Telemetry
	if v := os.Getenv("RANK_TELEMETRY_ENABLED"); v != "" {
		config.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("RANK_TELEMETRY_EXPORTER"); v != "" {
		config.Telemetry.Exporter = v
	}
	if v := os.Getenv("RANK_OTLP_ENDPOINT"); v != "" {
		config.Telemetry.OTLPEndpoint = v
	}
	if v := os.Getenv("RANK_TRACE_SAMPLE_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Telemetry.SampleRate = f
		}
	}

	// Search
	if v := os.Getenv("RANK_DEFAULT_LIMIT"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Search.DefaultLimit = i
		}
	}
	if v := os.Getenv("RANK_MAX_QUERY_TERMS"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Search.MaxQueryTerms = i
		}
	}
	if v := os.Getenv("RANK_MAX_PATHS_PER_RULE"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.Search.MaxPathsPerRule = i
		}
	}

	// MultiSearch
	if v := os.Getenv("RANK_MAX_CONCURRENCY"); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			config.MultiSearch.MaxConcurrency = i
		}
	}
	if v := os.Getenv("RANK_QUERIES_PER_SECOND"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.MultiSearch.QueriesPerSecond = f
		}
	}
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks the full configuration: struct tags first, then the
// numeric bounds the target packages enforce on their own config types.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	if err := c.Search.ToServiceConfig().Validate(); err != nil {
		return fmt.Errorf("search: %w", err)
	}
	if err := c.MultiSearch.Validate(); err != nil {
		return fmt.Errorf("multi_search: %w", err)
	}
	return nil
}

// =============================================================================
// Converters
// =============================================================================

// ToServiceConfig converts the yaml-facing section to rank.ServiceConfig.
func (c SearchConfig) ToServiceConfig() rank.ServiceConfig {
	return rank.ServiceConfig{
		DefaultLimit:     c.DefaultLimit,
		MaxQueryTerms:    c.MaxQueryTerms,
		MaxPathsPerRule:  c.MaxPathsPerRule,
		TypoEnabled:      c.TypoEnabled,
		ProximityEnabled: c.ProximityEnabled,
	}
}

// ToLoggerConfig converts the yaml-facing section to logging.Config.
// An unparseable level falls back to info; Validate rejects it first on
// any path that goes through Load.
func (c LoggingConfig) ToLoggerConfig(service string) logging.Config {
	level, err := logging.ParseLevel(c.Level)
	if err != nil {
		level = logging.LevelInfo
	}
	return logging.Config{
		Level:   level,
		LogDir:  c.Dir,
		Service: service,
		JSON:    c.JSON,
		Quiet:   c.Quiet,
	}
}

// ToTelemetryConfig maps the single-exporter yaml section onto the
// per-signal telemetry.Config. prometheus serves metrics only; stdout
// serves both signals; otlp pushes traces to the collector and keeps
// metrics on the prometheus scrape path.
func (c Config) ToTelemetryConfig() telemetry.Config {
	tc := telemetry.DefaultConfig()
	tc.ServiceName = c.Service.Name
	tc.Environment = c.Service.Environment
	tc.SampleRate = c.Telemetry.SampleRate

	if !c.Telemetry.Enabled {
		tc.TraceExporter = "none"
		tc.MetricExporter = "none"
		return tc
	}

	switch c.Telemetry.Exporter {
	case "stdout":
		tc.TraceExporter = "stdout"
		tc.MetricExporter = "stdout"
	case "otlp":
		tc.TraceExporter = "otlp"
		tc.MetricExporter = "prometheus"
	default:
		tc.TraceExporter = "none"
		tc.MetricExporter = "prometheus"
	}
	if c.Telemetry.OTLPEndpoint != "" {
		tc.OTLPEndpoint = c.Telemetry.OTLPEndpoint
	}
	return tc
}

// =============================================================================
// Global Singleton
// =============================================================================

var (
	global     Config
	globalErr  error
	globalOnce sync.Once
)

// Global returns the process-wide configuration, loaded once from the path
// in RANK_CONFIG (defaults when unset). Later calls return the same value.
func Global() (Config, error) {
	globalOnce.Do(func() {
		global, globalErr = Load(os.Getenv(EnvConfigPath))
	})
	return global, globalErr
}
