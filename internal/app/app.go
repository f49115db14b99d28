// Package app builds the service graph shared by the binaries under cmd/.
package app

import (
	"context"
	"fmt"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/extraction"
	"github.com/dvloznov/smart-ledger/internal/filestore"
	"github.com/dvloznov/smart-ledger/internal/imports"
	infraBQ "github.com/dvloznov/smart-ledger/internal/infra/bigquery"
	"github.com/dvloznov/smart-ledger/internal/infra/db"
	"github.com/dvloznov/smart-ledger/internal/jobs"
	"github.com/dvloznov/smart-ledger/internal/jobs/inmemory"
	"github.com/dvloznov/smart-ledger/internal/jobs/redisqueue"
	"github.com/dvloznov/smart-ledger/internal/notionsync"
	"github.com/dvloznov/smart-ledger/internal/pipeline"
	"github.com/dvloznov/smart-ledger/internal/reaper"
	"github.com/dvloznov/smart-ledger/internal/summary"
	"github.com/dvloznov/smart-ledger/internal/textextract"
	"github.com/rs/zerolog"
)

// Queue is an ingestion queue usable from both sides.
type Queue interface {
	jobs.Publisher
	jobs.Consumer
}

// App holds the wired components. Close releases them in reverse order.
type App struct {
	Config  *config.Config
	Store   *db.Store
	Files   filestore.Store
	Queue   Queue
	Imports *imports.Service
	Summary *summary.Service
	Reaper  *reaper.Reaper
	Log     zerolog.Logger

	closers []func() error
}

// New opens the database, file store, queue and ledger sinks configured
// in cfg. The schema is migrated when migrate is true.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, migrate bool) (*App, error) {
	a := &App{Config: cfg, Log: log}

	conn, err := db.Open(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := conn.DB(); err == nil {
		a.closers = append(a.closers, sqlDB.Close)
	}
	if migrate {
		if err := db.AutoMigrate(conn); err != nil {
			a.Close()
			return nil, err
		}
	}
	a.Store = db.NewStore(conn, cfg.Pipeline.InsertBatchSize)

	switch cfg.Storage.Backend {
	case "gcs":
		gcs, err := filestore.NewGCSStore(ctx, cfg.Storage.Bucket, cfg.Storage.CredentialsFile)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, gcs.Close)
		a.Files = gcs
	default:
		a.Files = db.NewBlobStore(conn)
	}

	queue, err := newQueue(ctx, cfg.Jobs, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Queue = queue
	a.closers = append(a.closers, queue.Close)

	sinks, err := a.newSinks(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	a.Imports = imports.NewService(a.Store, a.Store, a.Files, queue, cfg.Jobs, log, sinks...)
	a.Summary = summary.NewService(a.Store)
	a.Reaper = reaper.New(a.Store, a.Files, cfg.Reaper, log)
	return a, nil
}

func newQueue(ctx context.Context, cfg config.Jobs, log zerolog.Logger) (Queue, error) {
	switch cfg.QueueBackend {
	case "redis":
		q, err := redisqueue.New(ctx, cfg.RedisURL, cfg.RedisQueueKey, cfg.Workers, log)
		if err != nil {
			return nil, fmt.Errorf("newQueue: %w", err)
		}
		return q, nil
	default:
		return inmemory.NewQueue(cfg.QueueBuffer, cfg.Workers, log), nil
	}
}

func (a *App) newSinks(ctx context.Context) ([]imports.LedgerSink, error) {
	var sinks []imports.LedgerSink
	s := a.Config.Sinks

	if s.BigQueryProject != "" {
		exp, err := infraBQ.NewLedgerExporter(ctx, s.BigQueryProject, s.BigQueryDataset, a.Config.Storage.CredentialsFile)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, exp.Close)
		sinks = append(sinks, exp)
	}
	if s.NotionToken != "" && s.NotionDatabaseID != "" {
		sinks = append(sinks, notionsync.NewLedgerSync(notionsync.NewNotionClient(s.NotionToken), s.NotionDatabaseID, a.Log))
	}

	for _, sink := range sinks {
		a.Log.Info().Str("sink", sink.Name()).Msg("Ledger sink enabled")
	}
	return sinks, nil
}

// NewIngestor builds the pipeline with the configured model backend.
func (a *App) NewIngestor(ctx context.Context) (*pipeline.Ingestor, error) {
	completer, err := extraction.NewCompleter(ctx, a.Config.AI)
	if err != nil {
		return nil, err
	}
	client := extraction.NewClient(completer, a.Log)
	return pipeline.NewIngestor(
		a.Imports,
		textextract.New(),
		pipeline.NewOrchestrator(a.Config.Pipeline, client, a.Log),
		pipeline.NewNormalizer(a.Config.Pipeline, extraction.NewRuleCategorizer()),
		a.Log,
	), nil
}

// StartWorkers consumes ingestion events until ctx ends or the queue stops.
func (a *App) StartWorkers(ctx context.Context) error {
	ingestor, err := a.NewIngestor(ctx)
	if err != nil {
		return err
	}
	return a.Queue.Start(ctx, ingestor.Handle)
}

// Close releases every resource opened by New.
func (a *App) Close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}
