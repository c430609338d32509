package config

import (
	"testing"
	"time"
)

func clearEnv(t *testing.T) {
	t.Helper()
	keys := []string{
		"GOVCOMMS_INTERVAL", "GOVCOMMS_WORKERS",
		"DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"GOVCOMMS_ASSET_DIR", "CONTROL_ADDR", "YT_API_KEY",
	}
	for _, k := range keys {
		t.Setenv(k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()
	if cfg.DefaultInterval != 3*time.Minute {
		t.Errorf("DefaultInterval = %s, want 3m", cfg.DefaultInterval)
	}
	if cfg.DefaultWorkers != 3 {
		t.Errorf("DefaultWorkers = %d, want 3", cfg.DefaultWorkers)
	}
	if cfg.DBHost != "localhost" || cfg.DBPort != 5432 {
		t.Errorf("DB defaults = %s:%d, want localhost:5432", cfg.DBHost, cfg.DBPort)
	}
	if cfg.DBName != "govcomms" {
		t.Errorf("DBName = %q, want govcomms", cfg.DBName)
	}
	if cfg.AssetDir != "assets" {
		t.Errorf("AssetDir = %q, want assets", cfg.AssetDir)
	}
	if cfg.ControlAddr != "127.0.0.1:8090" {
		t.Errorf("ControlAddr = %q, want 127.0.0.1:8090", cfg.ControlAddr)
	}
	if cfg.YTAPIKey != "" {
		t.Errorf("YTAPIKey = %q, want empty", cfg.YTAPIKey)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOVCOMMS_INTERVAL", "45s")
	t.Setenv("GOVCOMMS_WORKERS", "8")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_PORT", "6543")
	t.Setenv("GOVCOMMS_ASSET_DIR", "/var/lib/govcomms")
	t.Setenv("YT_API_KEY", "secret")

	cfg := Load()
	if cfg.DefaultInterval != 45*time.Second {
		t.Errorf("DefaultInterval = %s, want 45s", cfg.DefaultInterval)
	}
	if cfg.DefaultWorkers != 8 {
		t.Errorf("DefaultWorkers = %d, want 8", cfg.DefaultWorkers)
	}
	if cfg.DBHost != "db.internal" || cfg.DBPort != 6543 {
		t.Errorf("DB = %s:%d, want db.internal:6543", cfg.DBHost, cfg.DBPort)
	}
	if cfg.AssetDir != "/var/lib/govcomms" {
		t.Errorf("AssetDir = %q", cfg.AssetDir)
	}
	if cfg.YTAPIKey != "secret" {
		t.Errorf("YTAPIKey = %q, want secret", cfg.YTAPIKey)
	}
}

func TestLoadIgnoresMalformedValues(t *testing.T) {
	clearEnv(t)
	t.Setenv("GOVCOMMS_INTERVAL", "soon")
	t.Setenv("GOVCOMMS_WORKERS", "many")
	t.Setenv("DB_PORT", "not-a-port")

	cfg := Load()
	if cfg.DefaultInterval != 3*time.Minute {
		t.Errorf("DefaultInterval = %s, want default 3m", cfg.DefaultInterval)
	}
	if cfg.DefaultWorkers != 3 {
		t.Errorf("DefaultWorkers = %d, want default 3", cfg.DefaultWorkers)
	}
	if cfg.DBPort != 5432 {
		t.Errorf("DBPort = %d, want default 5432", cfg.DBPort)
	}
}
