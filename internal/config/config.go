// Package config loads service settings from the environment, with an
// optional .env file for local runs.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Storage backends.
const (
	BackendGCS   = "gcs"
	BackendLocal = "local"
)

type Config struct {
	Organization struct {
		// Name is the processing organization. It is never an invoice's seller.
		Name string `envconfig:"ORGANIZATION_NAME"`
	}

	AI struct {
		APIKey            string `envconfig:"GEMINI_API_KEY"`
		Model             string `envconfig:"GEMINI_MODEL" default:"gemini-2.5-flash"`
		RequestsPerMinute int    `envconfig:"AI_RPM" default:"0"`

		// BreakerFailures consecutive model errors stop further calls for
		// BreakerTimeout. 0 disables the breaker.
		BreakerFailures uint32        `envconfig:"AI_BREAKER_FAILURES" default:"5"`
		BreakerTimeout  time.Duration `envconfig:"AI_BREAKER_TIMEOUT" default:"30s"`
	}

	Extractor struct {
		URL     string        `envconfig:"TEXT_EXTRACTOR_URL"`
		Timeout time.Duration `envconfig:"EXTRACTOR_TIMEOUT" default:"30s"`
	}

	Storage struct {
		Backend        string `envconfig:"STORAGE_BACKEND" default:"local"`
		Bucket         string `envconfig:"GCS_BUCKET"`
		LocalDir       string `envconfig:"LOCAL_STORAGE_DIR" default:"./data"`
		Root           string `envconfig:"STORAGE_ROOT"`
		LedgerFilename string `envconfig:"LEDGER_FILENAME" default:"invoices.csv"`
	}

	BigQuery struct {
		Project string `envconfig:"BIGQUERY_PROJECT"`
		Dataset string `envconfig:"BIGQUERY_DATASET" default:"invoice_ledger"`
		Table   string `envconfig:"BIGQUERY_RUNS_TABLE" default:"processing_runs"`
	}

	Notion struct {
		Token      string `envconfig:"NOTION_TOKEN"`
		DatabaseID string `envconfig:"NOTION_DATABASE_ID"`
	}

	Server struct {
		Port           int           `envconfig:"PORT" default:"8080"`
		Timeout        time.Duration `envconfig:"SERVER_TIMEOUT" default:"60s"`
		MaxUploadBytes int64         `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`
	}

	Queue struct {
		Workers int `envconfig:"WORKERS" default:"4"`
		Size    int `envconfig:"QUEUE_SIZE" default:"100"`
	}

	Log struct {
		Level string `envconfig:"LOG_LEVEL" default:"info"`
	}
}

// Load reads a .env file from the working directory when present, then the
// process environment. Variables already set win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	cfg.Storage.Backend = strings.ToLower(strings.TrimSpace(cfg.Storage.Backend))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks settings that do not depend on which command runs.
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case BackendGCS:
		if c.Storage.Bucket == "" {
			return fmt.Errorf("config: GCS_BUCKET is required for the gcs storage backend")
		}
	case BackendLocal:
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("config: LOCAL_STORAGE_DIR is required for the local storage backend")
		}
	default:
		return fmt.Errorf("config: unknown STORAGE_BACKEND %q (want %s or %s)", c.Storage.Backend, BackendGCS, BackendLocal)
	}

	if c.AI.RequestsPerMinute < 0 {
		return fmt.Errorf("config: AI_RPM must not be negative")
	}
	if c.AI.BreakerFailures > 0 && c.AI.BreakerTimeout <= 0 {
		return fmt.Errorf("config: AI_BREAKER_TIMEOUT must be positive when the breaker is enabled")
	}
	if c.Queue.Workers <= 0 {
		return fmt.Errorf("config: WORKERS must be positive")
	}

	return nil
}

// RequireAI reports a missing model credential.
func (c *Config) RequireAI() error {
	if c.AI.APIKey == "" {
		return fmt.Errorf("config: GEMINI_API_KEY is required")
	}
	return nil
}

// RunLogEnabled reports whether outcomes go to BigQuery.
func (c *Config) RunLogEnabled() bool {
	return c.BigQuery.Project != ""
}

// NotionEnabled reports whether committed invoices are mirrored to Notion.
func (c *Config) NotionEnabled() bool {
	return c.Notion.Token != "" && c.Notion.DatabaseID != ""
}
