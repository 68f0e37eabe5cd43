package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"tcgpricing/internal/domain"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the price pipeline.
type Config struct {
	Storage  Storage  `yaml:"storage"`
	Source   Source   `yaml:"source"`
	Pipeline Pipeline `yaml:"pipeline"`
	Logging  Logging  `yaml:"logging"`
	Publish  Publish  `yaml:"publish"`
	Schedule Schedule `yaml:"schedule"`
}

// Storage holds paths for data persistence.
type Storage struct {
	BaseDir         string `yaml:"base_dir"`
	TrackingBackend string `yaml:"tracking_backend"` // "file" or "sqlite"
	SQLitePath      string `yaml:"sqlite_path"`      // defaults to <base_dir>/pipeline.db
}

// Source describes the remote archive and catalog endpoints.
type Source struct {
	ArchiveURLTemplate  string        `yaml:"archive_url_template"`
	GroupsURL           string        `yaml:"groups_url"`
	ProductsURLTemplate string        `yaml:"products_url_template"`
	CategoryID          string        `yaml:"category_id"`
	Timeout             time.Duration `yaml:"timeout"`
	ArchiveTimeout      time.Duration `yaml:"archive_timeout"`
	MaxAttempts         int           `yaml:"max_attempts"`
	Backoff             time.Duration `yaml:"backoff"`
	RateLimitPerMin     int           `yaml:"rate_limit_per_min"`
	UserAgent           string        `yaml:"user_agent"`
}

// Pipeline controls what a run produces.
type Pipeline struct {
	IntervalDays  int    `yaml:"interval_days"`
	KeepExtracted bool   `yaml:"keep_extracted"`
	FullFile      bool   `yaml:"full_file"`
	FullFileName  string `yaml:"full_file_name"`
	RollupMode    string `yaml:"rollup_mode"` // "append" or "rebuild"
	RetentionDays int    `yaml:"retention_days"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
	File   string `yaml:"file"`   // optional; tee output to this file
}

// Publish configures the optional upload of new artifacts to S3-compatible
// object storage.
type Publish struct {
	Enabled      bool   `yaml:"enabled"`
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Dir          string `yaml:"dir"` // mirror to a local directory instead of a bucket
}

// Schedule configures the daemon.
type Schedule struct {
	Cron         string `yaml:"cron"` // six fields, seconds first
	LookbackDays int    `yaml:"lookback_days"`
}

// Tracking backends.
const (
	TrackingFile   = "file"
	TrackingSQLite = "sqlite"
)

// Rollup modes.
const (
	RollupAppend  = "append"
	RollupRebuild = "rebuild"
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Storage: Storage{
			BaseDir:         "./pokemon-tcg-pricing/data",
			TrackingBackend: TrackingFile,
		},
		Source: Source{
			ArchiveURLTemplate:  "https://tcgcsv.com/archive/tcgplayer/prices-{YYYY}-{MM}-{DD}.ppmd.7z",
			GroupsURL:           "https://tcgcsv.com/tcgplayer/3/groups",
			ProductsURLTemplate: "https://tcgcsv.com/tcgplayer/3/{group_id}/products",
			CategoryID:          "3",
			Timeout:             120 * time.Second,
			ArchiveTimeout:      60 * time.Second,
			MaxAttempts:         5,
			Backoff:             1200 * time.Millisecond,
			UserAgent:           "tcgpricing/1.0",
		},
		Pipeline: Pipeline{
			IntervalDays:  1,
			FullFileName:  domain.DefaultRollupFile,
			RollupMode:    RollupAppend,
			RetentionDays: 7,
		},
		Logging: Logging{
			Level:  "info",
			Format: "text",
		},
		Publish: Publish{
			Region: "us-east-1",
		},
		Schedule: Schedule{
			Cron:         "0 30 6 * * *",
			LookbackDays: 3,
		},
	}
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at path over the defaults and then
// applies environment variable overrides. A missing file is not an error;
// the defaults are used.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parsing %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadDotEnv loads variables from a .env file into the process environment
// without overriding variables that are already set. A missing file is
// ignored.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TCG_BASE_DIR"); v != "" {
		cfg.Storage.BaseDir = v
	}
	if v := os.Getenv("TCG_TRACKING_BACKEND"); v != "" {
		cfg.Storage.TrackingBackend = v
	}
	if v := os.Getenv("TCG_SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TCG_PUBLISH_BUCKET"); v != "" {
		cfg.Publish.Bucket = v
	}
	if v := os.Getenv("TCG_SCHEDULE"); v != "" {
		cfg.Schedule.Cron = v
	}
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Storage.BaseDir == "":
		return errors.New("storage.base_dir is required")
	case c.Storage.TrackingBackend != TrackingFile && c.Storage.TrackingBackend != TrackingSQLite:
		return fmt.Errorf("storage.tracking_backend %q must be %q or %q",
			c.Storage.TrackingBackend, TrackingFile, TrackingSQLite)
	case c.Pipeline.IntervalDays < 1:
		return fmt.Errorf("pipeline.interval_days must be >= 1, got %d", c.Pipeline.IntervalDays)
	case c.Pipeline.RetentionDays < 1:
		return fmt.Errorf("pipeline.retention_days must be >= 1, got %d", c.Pipeline.RetentionDays)
	case c.Pipeline.RollupMode != RollupAppend && c.Pipeline.RollupMode != RollupRebuild:
		return fmt.Errorf("pipeline.rollup_mode %q must be %q or %q",
			c.Pipeline.RollupMode, RollupAppend, RollupRebuild)
	case c.Source.CategoryID == "":
		return errors.New("source.category_id is required")
	case c.Publish.Enabled && c.Publish.Bucket == "" && c.Publish.Dir == "":
		return errors.New("publish.bucket or publish.dir is required when publish is enabled")
	}
	return nil
}

// SQLitePath returns the ledger database path, defaulting to a file in the
// base directory.
func (c *Config) SQLitePath() string {
	if c.Storage.SQLitePath != "" {
		return c.Storage.SQLitePath
	}
	return filepath.Join(c.Storage.BaseDir, "pipeline.db")
}

// RollupPath returns the path of the consolidated file.
func (c *Config) RollupPath() string {
	name := c.Pipeline.FullFileName
	if name == "" {
		name = domain.DefaultRollupFile
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.Storage.BaseDir, name)
}
