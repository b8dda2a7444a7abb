package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// clearConfigEnv keeps ambient environment out of config tests.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	t.Setenv("STORE_DSN", "")
	t.Setenv("TALLY_DSN", "")
	t.Setenv("DRY_RUN", "")
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{
		"tally": {"dsn": "user:pass@tcp(localhost:3306)/tally"},
		"store": {"dsn": "host=localhost user=sync dbname=store"}
	}`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.Sync.BatchSize != defaultBatchSize {
		t.Errorf("batch size = %d, want default %d", config.Sync.BatchSize, defaultBatchSize)
	}
	if config.Sync.MovementDaysBack != defaultMovementDaysBack {
		t.Errorf("movement days back = %d, want default %d", config.Sync.MovementDaysBack, defaultMovementDaysBack)
	}
	if config.Sync.RunTimeoutSeconds != defaultRunTimeout {
		t.Errorf("run timeout = %d, want default %d", config.Sync.RunTimeoutSeconds, defaultRunTimeout)
	}
	if config.Sync.SyncSource != defaultSyncSource {
		t.Errorf("sync source = %q, want %q", config.Sync.SyncSource, defaultSyncSource)
	}
	if config.Sync.PhysicalBaselineFile != defaultBaselineFile {
		t.Errorf("baseline file = %q, want %q", config.Sync.PhysicalBaselineFile, defaultBaselineFile)
	}
	if config.Logging.Level != "info" || config.Logging.Format != "text" {
		t.Errorf("logging defaults = %s/%s, want info/text", config.Logging.Level, config.Logging.Format)
	}
	if config.Logging.File == "" {
		t.Error("default log file name not generated")
	}
}

func TestLoadConfigSingleCompanyFallback(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{
		"tally": {"dsn": "user:pass@tcp(localhost:3306)/tally", "timeout_seconds": 45},
		"store": {"dsn": "host=localhost"}
	}`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	companies := config.Tally.EffectiveCompanies()
	if len(companies) != 1 {
		t.Fatalf("effective companies = %d, want 1", len(companies))
	}
	if companies[0].CompanyName != "Default" {
		t.Errorf("implicit company name = %q, want Default", companies[0].CompanyName)
	}
	if companies[0].TimeoutSeconds != 45 {
		t.Errorf("implicit company timeout = %d, want 45", companies[0].TimeoutSeconds)
	}
}

func TestLoadConfigMultiCompany(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{
		"tally": {
			"companies": [
				{"company_name": "Company A", "dsn": "a@tcp(hosta:3306)/tally"},
				{"company_name": "Company B", "dsn": "b@tcp(hostb:3306)/tally", "timeout_seconds": 10}
			]
		},
		"store": {"dsn": "host=localhost"}
	}`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	companies := config.Tally.EffectiveCompanies()
	if len(companies) != 2 {
		t.Fatalf("effective companies = %d, want 2", len(companies))
	}
	if companies[1].ConnectTimeout().Seconds() != 10 {
		t.Errorf("company B timeout = %v, want 10s", companies[1].ConnectTimeout())
	}
	if companies[0].ConnectTimeout().Seconds() != defaultConnectTimeout {
		t.Errorf("company A timeout = %v, want default", companies[0].ConnectTimeout())
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	clearConfigEnv(t)
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.json"))

	var cfgErr *ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestLoadConfigBadJSON(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{not json`)

	var cfgErr *ConfigError
	if _, err := LoadConfig(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
}

func TestLoadConfigRequiresSources(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{"store": {"dsn": "host=localhost"}}`)

	var cfgErr *ConfigError
	if _, err := LoadConfig(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for missing sources, got %v", err)
	}
}

func TestLoadConfigRequiresStoreDSN(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{"tally": {"dsn": "user@tcp(localhost:3306)/tally"}}`)

	var cfgErr *ConfigError
	if _, err := LoadConfig(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for missing store dsn, got %v", err)
	}
}

func TestLoadConfigRejectsDuplicateCompanies(t *testing.T) {
	clearConfigEnv(t)
	path := writeConfig(t, `{
		"tally": {
			"companies": [
				{"company_name": "Same", "dsn": "a@tcp(a:3306)/t"},
				{"company_name": "Same", "dsn": "b@tcp(b:3306)/t"}
			]
		},
		"store": {"dsn": "host=localhost"}
	}`)

	var cfgErr *ConfigError
	if _, err := LoadConfig(path); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError for duplicate company names, got %v", err)
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("STORE_DSN", "host=secret-host user=sync")
	t.Setenv("DRY_RUN", "true")

	path := writeConfig(t, `{
		"tally": {"dsn": "user@tcp(localhost:3306)/tally"},
		"store": {"dsn": "host=from-file"}
	}`)

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.Store.DSN != "host=secret-host user=sync" {
		t.Errorf("store dsn = %q, want the environment value", config.Store.DSN)
	}
	if !config.Sync.DryRun {
		t.Error("DRY_RUN=true should force dry run mode")
	}
}
