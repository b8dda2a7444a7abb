package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBatchSize        = 50
	defaultMovementDaysBack = 365
	defaultRunTimeout       = 600
	defaultConnectTimeout   = 30
	defaultSyncSource       = "tally_sql_sync"
	defaultBaselineFile     = "physical_baseline.csv"
)

// CompanyConfig describes one source company database.
type CompanyConfig struct {
	CompanyName    string `json:"company_name"`
	DSN            string `json:"dsn"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

// ConnectTimeout returns the per-company connection timeout.
func (c CompanyConfig) ConnectTimeout() time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return defaultConnectTimeout * time.Second
}

// TallyConfig holds the source side of the sync. Either Companies lists every
// source explicitly, or DSN names a single implicit company.
type TallyConfig struct {
	Companies      []CompanyConfig `json:"companies"`
	DSN            string          `json:"dsn"`
	TimeoutSeconds int             `json:"timeout_seconds"`
}

// EffectiveCompanies resolves the configured company list. A bare DSN with no
// list is treated as a one-company deployment; there is no separate
// single-company code path anywhere downstream.
func (t TallyConfig) EffectiveCompanies() []CompanyConfig {
	if len(t.Companies) > 0 {
		return t.Companies
	}
	if t.DSN == "" {
		return nil
	}
	return []CompanyConfig{{
		CompanyName:    "Default",
		DSN:            t.DSN,
		TimeoutSeconds: t.TimeoutSeconds,
	}}
}

// StoreConfig holds the durable store connection.
type StoreConfig struct {
	DSN string `json:"dsn"`
}

// SyncConfig tunes the run itself.
type SyncConfig struct {
	PhysicalBaselineFile string `json:"physical_baseline_file"`
	BatchSize            int    `json:"batch_size"`
	MovementDaysBack     int    `json:"movement_days_back"`
	RunTimeoutSeconds    int    `json:"run_timeout_seconds"`
	SyncSource           string `json:"sync_source"`
	DryRun               bool   `json:"dry_run"`
}

// RunTimeout returns the whole-run deadline.
func (s SyncConfig) RunTimeout() time.Duration {
	if s.RunTimeoutSeconds > 0 {
		return time.Duration(s.RunTimeoutSeconds) * time.Second
	}
	return defaultRunTimeout * time.Second
}

// LoggingConfig controls log destination and verbosity.
type LoggingConfig struct {
	Level  string `json:"level"`
	File   string `json:"file"`
	Format string `json:"format"`
}

// Config is the full engine configuration, built once at startup and passed
// down by parameter. Nothing reads configuration through globals.
type Config struct {
	Tally   TallyConfig   `json:"tally"`
	Store   StoreConfig   `json:"store"`
	Sync    SyncConfig    `json:"sync"`
	Logging LoggingConfig `json:"logging"`
}

// LoadConfig reads the JSON configuration file, merges environment overrides
// and fills in defaults. Environment variables win over file values so
// secrets like STORE_DSN can stay out of the config file.
func LoadConfig(path string) (*Config, error) {
	// A missing .env file is fine; plain environment variables still apply.
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot read %s: %v", path, err)}
	}

	config := &Config{}
	if err := json.Unmarshal(data, config); err != nil {
		return nil, &ConfigError{Reason: fmt.Sprintf("cannot parse %s: %v", path, err)}
	}

	applyEnvOverrides(config)
	applyDefaults(config)

	if err := validateConfig(config); err != nil {
		return nil, err
	}

	return config, nil
}

func applyEnvOverrides(config *Config) {
	config.Store.DSN = getEnv("STORE_DSN", config.Store.DSN)
	config.Tally.DSN = getEnv("TALLY_DSN", config.Tally.DSN)
	if getEnv("DRY_RUN", "") == "true" {
		config.Sync.DryRun = true
	}
}

func applyDefaults(config *Config) {
	if config.Sync.PhysicalBaselineFile == "" {
		config.Sync.PhysicalBaselineFile = defaultBaselineFile
	}
	if config.Sync.BatchSize <= 0 {
		config.Sync.BatchSize = defaultBatchSize
	}
	if config.Sync.MovementDaysBack <= 0 {
		config.Sync.MovementDaysBack = defaultMovementDaysBack
	}
	if config.Sync.RunTimeoutSeconds <= 0 {
		config.Sync.RunTimeoutSeconds = defaultRunTimeout
	}
	if config.Sync.SyncSource == "" {
		config.Sync.SyncSource = defaultSyncSource
	}
	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}
	if config.Logging.Format == "" {
		config.Logging.Format = "text"
	}
	if config.Logging.File == "" {
		config.Logging.File = fmt.Sprintf("tally_sync_%s.log", time.Now().Format("20060102_150405"))
	}
}

func validateConfig(config *Config) error {
	companies := config.Tally.EffectiveCompanies()
	if len(companies) == 0 {
		return &ConfigError{Reason: "no source companies configured; set tally.companies or tally.dsn"}
	}

	seen := make(map[string]bool, len(companies))
	for i, company := range companies {
		if strings.TrimSpace(company.CompanyName) == "" {
			return &ConfigError{Reason: fmt.Sprintf("tally.companies[%d]: company_name is required", i)}
		}
		if strings.TrimSpace(company.DSN) == "" {
			return &ConfigError{Reason: fmt.Sprintf("tally.companies[%d] (%s): dsn is required", i, company.CompanyName)}
		}
		if seen[company.CompanyName] {
			return &ConfigError{Reason: fmt.Sprintf("duplicate company name %q", company.CompanyName)}
		}
		seen[company.CompanyName] = true
	}

	if config.Store.DSN == "" {
		return &ConfigError{Reason: "store.dsn is required; set it in the config file or via STORE_DSN"}
	}

	return nil
}

// getEnv gets environment variable with fallback
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
