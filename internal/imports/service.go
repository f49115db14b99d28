// Package imports implements the import job state machine: submission,
// processing claims, review, confirmation and user retries.
package imports

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/filestore"
	"github.com/dvloznov/smart-ledger/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// JobRepository persists import jobs and their file metadata.
type JobRepository interface {
	CreateJob(ctx context.Context, job *domain.ImportJob, file *domain.ImportFile) error
	GetJob(ctx context.Context, id string) (*domain.ImportJob, error)
	GetFile(ctx context.Context, jobID string) (*domain.ImportFile, error)
	ListJobs(ctx context.Context, userID string, limit int) ([]domain.ImportJob, error)
	TransitionStatus(ctx context.Context, id string, from []domain.JobStatus, to domain.JobStatus, patch domain.JobPatch) (bool, error)
}

// DraftGateway stores drafts and promotes them into the ledger.
type DraftGateway interface {
	ReplaceDraftsAndReview(ctx context.Context, jobID string, drafts []domain.DraftTransaction, warning *string) (bool, error)
	ListDrafts(ctx context.Context, jobID string) ([]domain.DraftTransaction, error)
	ConfirmJob(ctx context.Context, jobID string, overrides domain.Overrides) ([]domain.Transaction, error)
}

// LedgerSink receives transactions after a confirmation has committed.
type LedgerSink interface {
	Name() string
	Publish(ctx context.Context, txs []domain.Transaction) error
}

// failableStatuses are the states MarkFailed may leave. A COMPLETED job is
// never rewritten.
var failableStatuses = []domain.JobStatus{
	domain.JobStatusPending,
	domain.JobStatusProcessing,
	domain.JobStatusReview,
	domain.JobStatusFailed,
}

// Service drives import jobs through their lifecycle.
type Service struct {
	jobs      JobRepository
	drafts    DraftGateway
	files     filestore.Store
	publisher jobs.Publisher
	cfg       config.Jobs
	sinks     []LedgerSink
	log       zerolog.Logger
}

// NewService creates a Service.
func NewService(
	jobRepo JobRepository,
	drafts DraftGateway,
	files filestore.Store,
	publisher jobs.Publisher,
	cfg config.Jobs,
	log zerolog.Logger,
	sinks ...LedgerSink,
) *Service {
	return &Service{
		jobs:      jobRepo,
		drafts:    drafts,
		files:     files,
		publisher: publisher,
		cfg:       cfg,
		sinks:     sinks,
		log:       log,
	}
}

// SetPublisher replaces the event publisher. Used when the queue is
// created after the service.
func (s *Service) SetPublisher(p jobs.Publisher) {
	s.publisher = p
}

// Submit validates an upload, stores the original bytes, creates a PENDING
// job and publishes an ingestion event.
func (s *Service) Submit(ctx context.Context, userID, filename string, data []byte) (*domain.ImportJob, error) {
	if int64(len(data)) > s.cfg.MaxFileBytes {
		return nil, domain.ErrFileTooLarge
	}
	docType, err := domain.DocumentTypeFromFilename(filename)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty file", domain.ErrUnsupportedFileType)
	}

	sum := sha256.Sum256(data)
	job := &domain.ImportJob{
		ID:           uuid.New().String(),
		UserID:       userID,
		Filename:     filename,
		DocumentType: docType,
		Status:       domain.JobStatusPending,
	}
	file := &domain.ImportFile{
		JobID:      job.ID,
		Filename:   filename,
		MimeType:   domain.MimeTypeFor(filename),
		Size:       int64(len(data)),
		Checksum:   hex.EncodeToString(sum[:]),
		StorageKey: filestore.Key(userID, job.ID, filename),
	}

	if err := s.files.Put(ctx, file.StorageKey, file.MimeType, data); err != nil {
		return nil, fmt.Errorf("Submit: store original: %w", err)
	}
	if err := s.jobs.CreateJob(ctx, job, file); err != nil {
		if delErr := s.files.Delete(ctx, file.StorageKey); delErr != nil {
			s.log.Warn().Err(delErr).Str("key", file.StorageKey).Msg("Failed to remove orphaned original")
		}
		return nil, fmt.Errorf("Submit: %w", err)
	}

	log := s.log.With().Str("job_id", job.ID).Str("user_id", userID).Logger()
	log.Info().Str("filename", filename).Int("bytes", len(data)).Msg("Import job created")

	if err := s.publish(ctx, job, false); err != nil {
		log.Error().Err(err).Msg("Failed to enqueue ingestion")
		s.MarkFailed(ctx, job.ID, fmt.Errorf("%w: %v", domain.ErrEnqueueFailed, err))
		job.Status = domain.JobStatusFailed
	}
	return job, nil
}

func (s *Service) publish(ctx context.Context, job *domain.ImportJob, retry bool) error {
	if s.publisher == nil {
		return errors.New("no publisher configured")
	}
	return s.publisher.Publish(ctx, jobs.IngestEvent{
		JobID:        job.ID,
		UserID:       job.UserID,
		Filename:     job.Filename,
		DocumentType: job.DocumentType,
		Retry:        retry,
		RetryCount:   job.RetryCount,
	})
}

// BeginProcessing claims a PENDING job for processing. It returns false
// without error when the job is in any other state, so duplicate event
// deliveries do nothing.
func (s *Service) BeginProcessing(ctx context.Context, jobID string) (bool, error) {
	moved, err := s.jobs.TransitionStatus(ctx, jobID,
		[]domain.JobStatus{domain.JobStatusPending}, domain.JobStatusProcessing, domain.JobPatch{})
	if err != nil {
		return false, fmt.Errorf("BeginProcessing: %w", err)
	}
	if moved {
		return true, nil
	}

	job, err := s.jobs.GetJob(ctx, jobID)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		s.log.Warn().Str("job_id", jobID).Msg("Ingestion event for unknown job")
	case err != nil:
		return false, fmt.Errorf("BeginProcessing: %w", err)
	default:
		s.log.Info().Str("job_id", jobID).Str("status", string(job.Status)).Msg("Job not pending, ignoring event")
	}
	return false, nil
}

// LoadOriginal returns a job together with its original upload.
func (s *Service) LoadOriginal(ctx context.Context, jobID string) (*domain.ImportJob, []byte, error) {
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.original(ctx, jobID)
	if err != nil {
		return nil, nil, err
	}
	return job, data, nil
}

func (s *Service) original(ctx context.Context, jobID string) ([]byte, error) {
	file, err := s.jobs.GetFile(ctx, jobID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrMissingOriginalFile
	}
	if err != nil {
		return nil, err
	}
	data, err := s.files.Get(ctx, file.StorageKey)
	if errors.Is(err, filestore.ErrNotFound) {
		return nil, domain.ErrMissingOriginalFile
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// CompleteExtraction replaces the job's drafts and moves it to REVIEW in
// one step. If the job already left PROCESSING nothing is written and the
// inconsistency is logged.
func (s *Service) CompleteExtraction(ctx context.Context, jobID string, drafts []domain.DraftTransaction, warning *string) error {
	ok, err := s.drafts.ReplaceDraftsAndReview(ctx, jobID, drafts, warning)
	if err != nil {
		return fmt.Errorf("CompleteExtraction: %w", err)
	}
	if !ok {
		s.log.Warn().Str("job_id", jobID).Msg("Job left PROCESSING before drafts were stored")
	}
	return nil
}

// MarkReview moves a PROCESSING job to REVIEW. Any other source state is
// logged and ignored.
func (s *Service) MarkReview(ctx context.Context, jobID string, draftCount int) error {
	moved, err := s.jobs.TransitionStatus(ctx, jobID,
		[]domain.JobStatus{domain.JobStatusProcessing}, domain.JobStatusReview,
		domain.JobPatch{DraftCount: &draftCount})
	if err != nil {
		return fmt.Errorf("MarkReview: %w", err)
	}
	if !moved {
		s.log.Warn().Str("job_id", jobID).Msg("MarkReview on job not in PROCESSING")
	}
	return nil
}

// MarkFailed records cause and moves the job to FAILED from any state
// except COMPLETED. Errors are logged, never returned.
func (s *Service) MarkFailed(ctx context.Context, jobID string, cause error) {
	text := domain.JobErrorText(cause)
	moved, err := s.jobs.TransitionStatus(ctx, jobID, failableStatuses, domain.JobStatusFailed,
		domain.JobPatch{Error: &text})
	if err != nil {
		s.log.Error().Err(err).Str("job_id", jobID).Msg("Failed to mark job FAILED")
		return
	}
	if !moved {
		s.log.Warn().Str("job_id", jobID).Msg("MarkFailed found no failable job")
		return
	}
	s.log.Warn().Err(cause).Str("job_id", jobID).Str("error", text).Msg("Import job failed")
}

// RetryResult is returned by Retry.
type RetryResult struct {
	Retried    bool `json:"retried"`
	RetryCount int  `json:"retryCount"`
}

// Retry resets a FAILED job to PENDING and re-enqueues it.
func (s *Service) Retry(ctx context.Context, jobID, userID string) (RetryResult, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return RetryResult{}, err
	}
	if job.Status != domain.JobStatusFailed {
		return RetryResult{}, domain.ErrJobNotFailed
	}
	if _, err := s.original(ctx, jobID); err != nil {
		return RetryResult{}, err
	}
	if job.RetryCount >= s.cfg.RetryLimit {
		return RetryResult{}, domain.ErrRetryLimitReached
	}

	moved, err := s.jobs.TransitionStatus(ctx, jobID,
		[]domain.JobStatus{domain.JobStatusFailed}, domain.JobStatusPending,
		domain.JobPatch{ClearError: true, ClearWarning: true, IncrementRetry: true})
	if err != nil {
		return RetryResult{}, fmt.Errorf("Retry: %w", err)
	}
	if !moved {
		return RetryResult{}, domain.ErrJobNotFailed
	}

	job.RetryCount++
	job.Status = domain.JobStatusPending
	if err := s.publish(ctx, job, true); err != nil {
		s.MarkFailed(ctx, jobID, fmt.Errorf("enqueue_failed: %w", err))
		return RetryResult{}, fmt.Errorf("Retry: %w", err)
	}

	s.log.Info().Str("job_id", jobID).Int("retry_count", job.RetryCount).Msg("Import job retried")
	return RetryResult{Retried: true, RetryCount: job.RetryCount}, nil
}

// DraftListing is a job's review state and drafts.
type DraftListing struct {
	Job    JobSummary                `json:"job"`
	Drafts []domain.DraftTransaction `json:"drafts"`
}

// JobSummary is the part of a job shown next to its drafts.
type JobSummary struct {
	ID      string           `json:"id"`
	Status  domain.JobStatus `json:"status"`
	Error   *string          `json:"error"`
	Warning *string          `json:"warning"`
}

// ListDrafts returns the drafts of a job owned by userID, oldest first.
func (s *Service) ListDrafts(ctx context.Context, jobID, userID string) (*DraftListing, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return nil, err
	}
	drafts, err := s.drafts.ListDrafts(ctx, jobID)
	if err != nil {
		return nil, fmt.Errorf("ListDrafts: %w", err)
	}
	return &DraftListing{
		Job: JobSummary{
			ID:      job.ID,
			Status:  job.Status,
			Error:   job.Error,
			Warning: job.Warning,
		},
		Drafts: drafts,
	}, nil
}

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	Imported int `json:"imported"`
}

// Confirm promotes the drafts of a REVIEW job into the ledger with the
// given overrides. Sinks are notified after commit; their failures are
// logged only.
func (s *Service) Confirm(ctx context.Context, jobID, userID string, overrides []domain.Override) (ConfirmResult, error) {
	job, err := s.ownedJob(ctx, jobID, userID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if job.Status != domain.JobStatusReview {
		return ConfirmResult{}, domain.ErrJobNotInReview
	}

	created, err := s.drafts.ConfirmJob(ctx, jobID, domain.NewOverrides(overrides))
	if err != nil {
		return ConfirmResult{}, err
	}
	s.log.Info().Str("job_id", jobID).Int("imported", len(created)).Msg("Import job confirmed")

	s.notifySinks(ctx, jobID, created)
	return ConfirmResult{Imported: len(created)}, nil
}

func (s *Service) notifySinks(ctx context.Context, jobID string, txs []domain.Transaction) {
	if len(txs) == 0 {
		return
	}
	for _, sink := range s.sinks {
		if err := sink.Publish(ctx, txs); err != nil {
			s.log.Warn().Err(err).Str("job_id", jobID).Str("sink", sink.Name()).Msg("Ledger sink failed")
		}
	}
}

// GetJob returns a job owned by userID.
func (s *Service) GetJob(ctx context.Context, jobID, userID string) (*domain.ImportJob, error) {
	return s.ownedJob(ctx, jobID, userID)
}

// ListJobs returns a user's most recent jobs.
func (s *Service) ListJobs(ctx context.Context, userID string, limit int) ([]domain.ImportJob, error) {
	return s.jobs.ListJobs(ctx, userID, limit)
}

// ownedJob loads a job, reporting other users' jobs as not found.
func (s *Service) ownedJob(ctx context.Context, jobID, userID string) (*domain.ImportJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, domain.ErrInvalidJobID
	}
	job, err := s.jobs.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return job, nil
}
