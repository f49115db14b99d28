// Package pipeline turns an uploaded statement into draft transactions:
// text extraction, chunked AI extraction, normalization and persistence.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"

	"github.com/dvloznov/smart-ledger/internal/jobs"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/dvloznov/smart-ledger/internal/textextract"
	"github.com/rs/zerolog"
)

// Ingestor handles ingestion events by running the import pipeline.
type Ingestor struct {
	lifecycle JobLifecycle
	pipeline  *Pipeline
	log       zerolog.Logger
}

// NewIngestor wires the standard six-step import pipeline.
func NewIngestor(
	lifecycle JobLifecycle,
	reader textextract.Extractor,
	orchestrator *Orchestrator,
	normalizer *Normalizer,
	log zerolog.Logger,
) *Ingestor {
	return &Ingestor{
		lifecycle: lifecycle,
		pipeline: NewPipeline(
			&BeginProcessingStep{Lifecycle: lifecycle},
			&LoadFileStep{Lifecycle: lifecycle},
			&ExtractTextStep{Reader: reader},
			&ExtractCandidatesStep{Orchestrator: orchestrator},
			&NormalizeStep{Normalizer: normalizer},
			&PersistDraftsStep{Lifecycle: lifecycle, Log: log},
		),
		log: log,
	}
}

// Handle processes one event. On failure, including a panic in any step,
// the job is marked FAILED and the error is returned for the queue to log.
func (i *Ingestor) Handle(ctx context.Context, ev jobs.IngestEvent) (err error) {
	log := logger.WithJob(i.log, ev.JobID)
	ctx = logger.WithContext(ctx, log)

	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("Ingest panicked")
			err = fmt.Errorf("ingest panicked: %v", r)
			i.lifecycle.MarkFailed(context.WithoutCancel(ctx), ev.JobID, err)
		}
	}()

	log.Info().
		Str("event", ev.EventName()).
		Bool("retry", ev.Retry).
		Int("retry_count", ev.RetryCount).
		Msg("Ingest started")

	state := &PipelineState{JobID: ev.JobID, UserID: ev.UserID}
	if err = i.pipeline.Execute(ctx, state); err != nil {
		i.lifecycle.MarkFailed(context.WithoutCancel(ctx), ev.JobID, err)
		return err
	}
	if state.Skip {
		log.Info().Msg("Job not pending, skipping duplicate delivery")
		return nil
	}

	log.Info().Int("drafts", len(state.Drafts)).Msg("Ingest completed")
	return nil
}
