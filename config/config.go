// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Upstream UpstreamConfig `yaml:"upstream"`
	Gate     GateConfig     `yaml:"gate"`
	Billing  BillingConfig  `yaml:"billing"`
	Database DatabaseConfig `yaml:"database"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// UpstreamConfig configures the catalog service being fronted.
type UpstreamConfig struct {
	URL             string        `yaml:"url"`
	Timeout         time.Duration `yaml:"timeout"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	IdleConnTimeout time.Duration `yaml:"idle_conn_timeout"`
}

// GateConfig configures admission.
// FreeDailyLimit is hot-reloadable; a negative value disables the cap.
type GateConfig struct {
	KeyPrefix      string `yaml:"key_prefix"`
	FreeDailyLimit int64  `yaml:"free_daily_limit"`
}

// BillingConfig configures the billing cycle.
type BillingConfig struct {
	Interval        time.Duration `yaml:"interval"`
	RequestsPerUnit int64         `yaml:"requests_per_unit"`
}

// DatabaseConfig configures the database.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// Useful for container deployments where no config file is mounted.
//
// Environment variables:
//
//	TOLLGATE_UPSTREAM_URL         - Catalog URL (required)
//	TOLLGATE_DATABASE_PATH        - Database path (default: tollgate.db)
//	TOLLGATE_SERVER_HOST          - Server host (default: 0.0.0.0)
//	TOLLGATE_SERVER_PORT          - Server port (default: 8080)
//	TOLLGATE_GATE_KEY_PREFIX      - API key prefix (default: tg_)
//	TOLLGATE_GATE_FREE_DAILY_LIMIT - Free-tier daily quota (default: 100)
//	TOLLGATE_BILLING_INTERVAL     - Billing cycle period (default: 24h)
//	TOLLGATE_BILLING_REQUESTS_PER_UNIT - Requests per billed unit (default: 2)
//	TOLLGATE_LOG_LEVEL            - Log level: debug, info, warn, error (default: info)
//	TOLLGATE_LOG_FORMAT           - Log format: json or console (default: json)
//	TOLLGATE_METRICS_ENABLED      - Enable /metrics endpoint (default: true)
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback tries to load from file, falls back to environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}

	if os.Getenv("TOLLGATE_UPSTREAM_URL") != "" {
		return LoadFromEnv()
	}

	return nil, fmt.Errorf("no configuration found: provide config file or set TOLLGATE_UPSTREAM_URL")
}

// applyEnvOverrides applies TOLLGATE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TOLLGATE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("TOLLGATE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("TOLLGATE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("TOLLGATE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	if v := os.Getenv("TOLLGATE_UPSTREAM_URL"); v != "" {
		cfg.Upstream.URL = v
	}
	if v := os.Getenv("TOLLGATE_UPSTREAM_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upstream.Timeout = d
		}
	}

	if v := os.Getenv("TOLLGATE_GATE_KEY_PREFIX"); v != "" {
		cfg.Gate.KeyPrefix = v
	}
	if v := os.Getenv("TOLLGATE_GATE_FREE_DAILY_LIMIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Gate.FreeDailyLimit = n
		}
	}

	if v := os.Getenv("TOLLGATE_BILLING_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Billing.Interval = d
		}
	}
	if v := os.Getenv("TOLLGATE_BILLING_REQUESTS_PER_UNIT"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Billing.RequestsPerUnit = n
		}
	}

	if v := os.Getenv("TOLLGATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("TOLLGATE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TOLLGATE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	if v := os.Getenv("TOLLGATE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 60 * time.Second
	}

	if cfg.Upstream.Timeout == 0 {
		cfg.Upstream.Timeout = 30 * time.Second
	}

	if cfg.Gate.KeyPrefix == "" {
		cfg.Gate.KeyPrefix = "tg_"
	}
	if cfg.Gate.FreeDailyLimit == 0 {
		cfg.Gate.FreeDailyLimit = 100
	}

	if cfg.Billing.Interval == 0 {
		cfg.Billing.Interval = 24 * time.Hour
	}
	if cfg.Billing.RequestsPerUnit == 0 {
		cfg.Billing.RequestsPerUnit = 2
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "tollgate.db"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validate(cfg *Config) error {
	if cfg.Upstream.URL == "" {
		return fmt.Errorf("upstream.url is required")
	}

	if cfg.Billing.RequestsPerUnit < 1 {
		return fmt.Errorf("billing.requests_per_unit must be positive, got %d", cfg.Billing.RequestsPerUnit)
	}
	if cfg.Billing.Interval < time.Minute {
		return fmt.Errorf("billing.interval must be at least 1m, got %s", cfg.Billing.Interval)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error, got %q", cfg.Logging.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}
