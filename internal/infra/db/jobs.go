package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"gorm.io/gorm"
)

// Store implements the job, draft, ledger and reaper repositories on one
// gorm connection.
type Store struct {
	db        *gorm.DB
	batchSize int
	now       func() time.Time
}

// NewStore creates a Store. batchSize bounds rows per insert statement.
func NewStore(conn *gorm.DB, batchSize int) *Store {
	if batchSize <= 0 || batchSize > 500 {
		batchSize = 500
	}
	return &Store{
		db:        conn,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// DB exposes the underlying connection.
func (s *Store) DB() *gorm.DB { return s.db }

func (s *Store) conn(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

// CreateJob inserts a job and its file metadata atomically.
func (s *Store) CreateJob(ctx context.Context, job *domain.ImportJob, file *domain.ImportFile) error {
	now := s.now()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(jobRecordFrom(job)).Error; err != nil {
			return err
		}
		if file == nil {
			return nil
		}
		return tx.Create(&ImportFileRecord{
			JobID:      job.ID,
			Filename:   file.Filename,
			MimeType:   file.MimeType,
			Size:       file.Size,
			Checksum:   file.Checksum,
			StorageKey: file.StorageKey,
			CreatedAt:  now,
		}).Error
	})
	if err != nil {
		return fmt.Errorf("CreateJob: %w", err)
	}
	return nil
}

// GetJob loads a job by id, returning domain.ErrNotFound when absent.
func (s *Store) GetJob(ctx context.Context, id string) (*domain.ImportJob, error) {
	return s.getJob(ctx, nil, id)
}

func (s *Store) getJob(ctx context.Context, tx *gorm.DB, id string) (*domain.ImportJob, error) {
	var rec ImportJobRecord
	err := s.conn(tx).WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetJob: %w", err)
	}
	job := rec.toDomain()
	return &job, nil
}

// ListJobs returns a user's most recent jobs first.
func (s *Store) ListJobs(ctx context.Context, userID string, limit int) ([]domain.ImportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []ImportJobRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ListJobs: %w", err)
	}
	out := make([]domain.ImportJob, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out, nil
}

// GetFile loads the file metadata recorded for a job.
func (s *Store) GetFile(ctx context.Context, jobID string) (*domain.ImportFile, error) {
	var rec ImportFileRecord
	err := s.db.WithContext(ctx).Where("job_id = ?", jobID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetFile: %w", err)
	}
	f := rec.toDomain()
	return &f, nil
}

// TransitionStatus moves a job to `to` only if its current status is one
// of `from` (any status when from is empty). It reports whether a row
// changed. The check and the write are a single UPDATE.
func (s *Store) TransitionStatus(ctx context.Context, id string, from []domain.JobStatus, to domain.JobStatus, patch domain.JobPatch) (bool, error) {
	return s.transition(ctx, nil, id, from, to, patch)
}

func (s *Store) transition(ctx context.Context, tx *gorm.DB, id string, from []domain.JobStatus, to domain.JobStatus, patch domain.JobPatch) (bool, error) {
	updates := map[string]interface{}{
		"status":     string(to),
		"updated_at": s.now(),
	}
	switch {
	case patch.Error != nil:
		updates["error"] = *patch.Error
	case patch.ClearError:
		updates["error"] = nil
	}
	switch {
	case patch.Warning != nil:
		updates["warning"] = *patch.Warning
	case patch.ClearWarning:
		updates["warning"] = nil
	}
	if patch.IncrementRetry {
		updates["retry_count"] = gorm.Expr("retry_count + 1")
	}
	if patch.DraftCount != nil {
		updates["draft_count"] = *patch.DraftCount
	}

	q := s.conn(tx).WithContext(ctx).Model(&ImportJobRecord{}).Where("id = ?", id)
	if len(from) > 0 {
		q = q.Where("status IN ?", statusStrings(from))
	}
	res := q.Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("TransitionStatus: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func statusStrings(in []domain.JobStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
