package pipeline

import (
	"context"
	"fmt"
	"sort"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/textextract"
	"github.com/rs/zerolog"
)

// PipelineStep represents a single step in the ingestion pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	JobID  string
	UserID string

	// Skip stops the pipeline without error, e.g. on a duplicate delivery.
	Skip bool

	Job        *domain.ImportJob
	Data       []byte
	Lines      []string
	Text       string
	Candidates []Extracted
	Stats      ChunkStats
	Drafts     []domain.DraftTransaction
	Warning    *string
}

// Step 1: BeginProcessingStep claims the job (PENDING to PROCESSING).
type BeginProcessingStep struct {
	Lifecycle JobLifecycle
}

func (s *BeginProcessingStep) Execute(ctx context.Context, state *PipelineState) error {
	started, err := s.Lifecycle.BeginProcessing(ctx, state.JobID)
	if err != nil {
		return err
	}
	if !started {
		state.Skip = true
	}
	return nil
}

// Step 2: LoadFileStep loads the job and the original upload bytes.
type LoadFileStep struct {
	Lifecycle JobLifecycle
}

func (s *LoadFileStep) Execute(ctx context.Context, state *PipelineState) error {
	job, data, err := s.Lifecycle.LoadOriginal(ctx, state.JobID)
	if err != nil {
		return err
	}
	state.Job = job
	state.Data = data
	if state.UserID == "" {
		state.UserID = job.UserID
	}
	return nil
}

// Step 3: ExtractTextStep reads signal lines from spreadsheets and the
// full text from PDFs.
type ExtractTextStep struct {
	Reader textextract.Extractor
}

func (s *ExtractTextStep) Execute(ctx context.Context, state *PipelineState) error {
	switch state.Job.DocumentType {
	case domain.DocumentTypePDF:
		text, err := s.Reader.Text(ctx, state.Data, state.Job.Filename)
		if err != nil {
			return fmt.Errorf("read pdf: %w", err)
		}
		state.Text = text
	default:
		lines, err := s.Reader.Lines(ctx, state.Data, state.Job.Filename)
		if err != nil {
			return fmt.Errorf("read spreadsheet: %w", err)
		}
		state.Lines = textextract.FilterSignalLines(lines)
	}
	return nil
}

// Step 4: ExtractCandidatesStep runs the chunked or single-call extraction.
type ExtractCandidatesStep struct {
	Orchestrator *Orchestrator
}

func (s *ExtractCandidatesStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Job.DocumentType == domain.DocumentTypePDF {
		cands, err := s.Orchestrator.ExtractFull(ctx, state.JobID, state.Text)
		if err != nil {
			return err
		}
		state.Candidates = cands
		return nil
	}

	cands, stats, err := s.Orchestrator.ExtractChunked(ctx, state.JobID, state.Lines)
	if err != nil {
		return err
	}
	state.Candidates = cands
	state.Stats = stats
	state.Warning = stats.Warning()
	return nil
}

// Step 5: NormalizeStep converts candidates into drafts.
type NormalizeStep struct {
	Normalizer *Normalizer
}

func (s *NormalizeStep) Execute(ctx context.Context, state *PipelineState) error {
	state.Drafts = s.Normalizer.Normalize(state.UserID, state.JobID, state.Candidates)
	return nil
}

// Step 6: PersistDraftsStep replaces the job's drafts and moves it to REVIEW.
type PersistDraftsStep struct {
	Lifecycle JobLifecycle
	Log       zerolog.Logger
}

func (s *PersistDraftsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := s.Lifecycle.CompleteExtraction(ctx, state.JobID, state.Drafts, state.Warning); err != nil {
		return err
	}

	totals := CategoryTotals(state.Drafts)
	names := make([]string, 0, len(totals))
	for k := range totals {
		names = append(names, k)
	}
	sort.Strings(names)
	dict := zerolog.Dict()
	for _, k := range names {
		dict = dict.Str(k, totals[k].StringFixed(2))
	}
	s.Log.Info().
		Str("job_id", state.JobID).
		Int("drafts", len(state.Drafts)).
		Int("dropped", len(state.Candidates)-len(state.Drafts)).
		Dict("category_totals", dict).
		Msg("Drafts ready for review")
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially. It stops early
// without error once a step sets state.Skip.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
		if state.Skip {
			return nil
		}
	}
	return nil
}
