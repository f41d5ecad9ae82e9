// Package app wires configuration into the running pipeline. Both the HTTP
// server and the CLI build their dependencies here.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/dvloznov/invoice-ledger/internal/ai"
	"github.com/dvloznov/invoice-ledger/internal/commit"
	"github.com/dvloznov/invoice-ledger/internal/config"
	"github.com/dvloznov/invoice-ledger/internal/extract"
	infraBQ "github.com/dvloznov/invoice-ledger/internal/infra/bigquery"
	"github.com/dvloznov/invoice-ledger/internal/notionsync"
	"github.com/dvloznov/invoice-ledger/internal/pipeline"
	"github.com/dvloznov/invoice-ledger/internal/storage"
	"github.com/dvloznov/invoice-ledger/internal/storage/gcs"
	"github.com/dvloznov/invoice-ledger/internal/storage/localfs"
)

// App holds the long-lived collaborators shared by every invocation.
type App struct {
	Config    *config.Config
	Storage   storage.Client
	Committer *commit.Committer
	Extractor *extract.FieldExtractor
	Processor *pipeline.Processor

	// Runs is nil when the BigQuery run log is disabled.
	Runs *infraBQ.RunRepository

	closers []func() error
}

// NewStorage opens the configured storage backend. The returned func
// releases it.
func NewStorage(ctx context.Context, cfg *config.Config) (storage.Client, func() error, error) {
	switch cfg.Storage.Backend {
	case config.BackendGCS:
		client, err := gcs.NewClient(ctx, cfg.Storage.Bucket)
		if err != nil {
			return nil, nil, fmt.Errorf("NewStorage: %w", err)
		}
		return client, client.Close, nil
	case config.BackendLocal:
		client, err := localfs.NewClient(cfg.Storage.LocalDir)
		if err != nil {
			return nil, nil, fmt.Errorf("NewStorage: %w", err)
		}
		return client, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("NewStorage: unknown backend %q", cfg.Storage.Backend)
	}
}

// NewCommitter builds the committer over store using the configured layout.
func NewCommitter(cfg *config.Config, store storage.Client) *commit.Committer {
	return commit.NewCommitter(store,
		commit.WithRoot(cfg.Storage.Root),
		commit.WithLedgerFilename(cfg.Storage.LedgerFilename),
	)
}

// NewRunRepository opens the BigQuery run log.
func NewRunRepository(ctx context.Context, cfg *config.Config) (*infraBQ.RunRepository, error) {
	if !cfg.RunLogEnabled() {
		return nil, errors.New("NewRunRepository: BIGQUERY_PROJECT is not set")
	}
	return infraBQ.NewRunRepository(ctx, cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table)
}

// New builds the full pipeline: storage, committer, model client, field
// extractor and the outcome sinks that are enabled in cfg.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*App, error) {
	if err := cfg.RequireAI(); err != nil {
		return nil, err
	}

	a := &App{Config: cfg}

	store, closeStore, err := NewStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.Storage = store
	a.closers = append(a.closers, closeStore)

	client, err := ai.NewGeminiClient(ctx, ai.GeminiConfig{
		APIKey:            cfg.AI.APIKey,
		Model:             cfg.AI.Model,
		RequestsPerMinute: cfg.AI.RequestsPerMinute,
	})
	if err != nil {
		_ = a.Close()
		return nil, fmt.Errorf("New: %w", err)
	}

	model := ai.NewBreakerClient(client, ai.BreakerConfig{
		ConsecutiveFailures: cfg.AI.BreakerFailures,
		OpenTimeout:         cfg.AI.BreakerTimeout,
	})

	text := extract.NewTextExtractor(cfg.Extractor.URL, cfg.Extractor.Timeout)
	a.Extractor = extract.NewFieldExtractor(model, text, cfg.Organization.Name)
	a.Committer = NewCommitter(cfg, store)

	var sinks []pipeline.OutcomeSink

	if cfg.RunLogEnabled() {
		runs, err := NewRunRepository(ctx, cfg)
		if err != nil {
			_ = a.Close()
			return nil, fmt.Errorf("New: %w", err)
		}
		a.Runs = runs
		a.closers = append(a.closers, runs.Close)
		sinks = append(sinks, runs)
		log.Info().
			Str("project", cfg.BigQuery.Project).
			Str("dataset", cfg.BigQuery.Dataset).
			Msg("Run log enabled")
	}

	if cfg.NotionEnabled() {
		mirror := notionsync.NewMirror(notionsync.NewNotionClient(cfg.Notion.Token), cfg.Notion.DatabaseID)
		sinks = append(sinks, mirror)
		log.Info().Str("database_id", cfg.Notion.DatabaseID).Msg("Notion mirror enabled")
	}

	a.Processor = pipeline.NewProcessor(a.Extractor, a.Committer, pipeline.WithSinks(sinks...))

	log.Info().
		Str("backend", cfg.Storage.Backend).
		Str("root", a.Committer.Root()).
		Str("ledger", a.Committer.LedgerFilename()).
		Str("model", cfg.AI.Model).
		Bool("remote_text_extractor", cfg.Extractor.URL != "").
		Msg("Pipeline ready")

	return a, nil
}

// Close releases every resource opened by New, newest first.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
