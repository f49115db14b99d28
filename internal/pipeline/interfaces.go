package pipeline

import (
	"context"

	"github.com/dvloznov/smart-ledger/internal/domain"
)

// CandidateExtractor turns a block of statement text into candidate
// records. extraction.Client is the production implementation.
type CandidateExtractor interface {
	Extract(ctx context.Context, text string) ([]domain.Candidate, error)
}

// Categorizer suggests a category from a description and merchant.
// ok is false when no rule matched.
type Categorizer interface {
	Categorize(description string, merchant *string) (category string, score float64, ok bool)
}

// JobLifecycle is the slice of the import job state machine the pipeline
// drives. imports.Service implements it.
type JobLifecycle interface {
	// BeginProcessing claims a PENDING job. started is false when the job
	// was not PENDING, which makes duplicate deliveries a no-op.
	BeginProcessing(ctx context.Context, jobID string) (started bool, err error)

	// LoadOriginal returns the job and the bytes of its original upload.
	LoadOriginal(ctx context.Context, jobID string) (*domain.ImportJob, []byte, error)

	// CompleteExtraction stores drafts and moves the job to REVIEW.
	CompleteExtraction(ctx context.Context, jobID string, drafts []domain.DraftTransaction, warning *string) error

	// MarkFailed records cause on the job and moves it to FAILED. It never
	// fails; problems are logged.
	MarkFailed(ctx context.Context, jobID string, cause error)
}
