package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tcgprices.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	return path
}

func clearEnv(t *testing.T) {
	for _, k := range []string{"TCG_BASE_DIR", "TCG_TRACKING_BACKEND", "TCG_SQLITE_PATH", "LOG_LEVEL", "TCG_PUBLISH_BUCKET", "TCG_SCHEDULE"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, `
storage:
  base_dir: "/tmp/tcg/data"
  tracking_backend: "sqlite"
source:
  category_id: "3"
  timeout: 30s
  max_attempts: 3
  rate_limit_per_min: 120
pipeline:
  interval_days: 7
  full_file: true
  retention_days: 14
logging:
  level: "debug"
  format: "json"
publish:
  enabled: true
  bucket: "tcg-prices"
  prefix: "pokemon"
schedule:
  cron: "0 0 5 * * *"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	// -- Storage --
	if cfg.Storage.BaseDir != "/tmp/tcg/data" {
		t.Errorf("Storage.BaseDir = %q, want %q", cfg.Storage.BaseDir, "/tmp/tcg/data")
	}
	if cfg.Storage.TrackingBackend != TrackingSQLite {
		t.Errorf("Storage.TrackingBackend = %q, want %q", cfg.Storage.TrackingBackend, TrackingSQLite)
	}
	if got := cfg.SQLitePath(); got != filepath.Join("/tmp/tcg/data", "pipeline.db") {
		t.Errorf("SQLitePath() = %q", got)
	}

	// -- Source --
	if cfg.Source.Timeout != 30*time.Second {
		t.Errorf("Source.Timeout = %v, want 30s", cfg.Source.Timeout)
	}
	if cfg.Source.MaxAttempts != 3 {
		t.Errorf("Source.MaxAttempts = %d, want 3", cfg.Source.MaxAttempts)
	}
	// Unset keys keep their defaults.
	if cfg.Source.GroupsURL != "https://tcgcsv.com/tcgplayer/3/groups" {
		t.Errorf("Source.GroupsURL = %q, want default", cfg.Source.GroupsURL)
	}

	// -- Pipeline --
	if cfg.Pipeline.IntervalDays != 7 {
		t.Errorf("Pipeline.IntervalDays = %d, want 7", cfg.Pipeline.IntervalDays)
	}
	if !cfg.Pipeline.FullFile {
		t.Error("Pipeline.FullFile = false, want true")
	}
	if got := cfg.RollupPath(); got != filepath.Join("/tmp/tcg/data", "pokemon_prices_with_full_features.parquet") {
		t.Errorf("RollupPath() = %q", got)
	}

	// -- Logging / Publish / Schedule --
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
	if cfg.Publish.Bucket != "tcg-prices" || cfg.Publish.Region != "us-east-1" {
		t.Errorf("Publish = %+v", cfg.Publish)
	}
	if cfg.Schedule.Cron != "0 0 5 * * *" || cfg.Schedule.LookbackDays != 3 {
		t.Errorf("Schedule = %+v", cfg.Schedule)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Pipeline.RetentionDays != 7 || cfg.Pipeline.IntervalDays != 1 {
		t.Errorf("Pipeline defaults = %+v", cfg.Pipeline)
	}
	if cfg.Storage.TrackingBackend != TrackingFile {
		t.Errorf("TrackingBackend = %q, want %q", cfg.Storage.TrackingBackend, TrackingFile)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTemp(t, `
storage:
  base_dir: "/original/data"
logging:
  level: "info"
`)
	t.Setenv("TCG_BASE_DIR", "/env/data")
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Storage.BaseDir != "/env/data" {
		t.Errorf("Storage.BaseDir = %q, want %q (env override)", cfg.Storage.BaseDir, "/env/data")
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want %q (env override)", cfg.Logging.Level, "warn")
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("TCG_PUBLISH_BUCKET=from-dotenv\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("TCG_PUBLISH_BUCKET")
	defer os.Unsetenv("TCG_PUBLISH_BUCKET")

	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Publish.Bucket != "from-dotenv" {
		t.Errorf("Publish.Bucket = %q, want %q", cfg.Publish.Bucket, "from-dotenv")
	}

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Errorf("missing .env should be ignored, got %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero interval", func(c *Config) { c.Pipeline.IntervalDays = 0 }},
		{"zero retention", func(c *Config) { c.Pipeline.RetentionDays = 0 }},
		{"bad backend", func(c *Config) { c.Storage.TrackingBackend = "redis" }},
		{"publish without bucket", func(c *Config) { c.Publish.Enabled = true }},
		{"empty base dir", func(c *Config) { c.Storage.BaseDir = "" }},
		{"bad rollup mode", func(c *Config) { c.Pipeline.RollupMode = "merge" }},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
	if err := Default().Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}
