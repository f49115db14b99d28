package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// errNotProcessing rolls back a draft replacement whose job left PROCESSING.
var errNotProcessing = errors.New("job no longer processing")

// ReplaceDrafts deletes every draft of the job and inserts drafts in
// batches. Running it twice with the same input leaves the same rows.
func (s *Store) ReplaceDrafts(ctx context.Context, jobID string, drafts []domain.DraftTransaction) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return s.replaceDrafts(tx, jobID, drafts)
	})
	if err != nil {
		return fmt.Errorf("ReplaceDrafts: %w", err)
	}
	return nil
}

func (s *Store) replaceDrafts(tx *gorm.DB, jobID string, drafts []domain.DraftTransaction) error {
	if err := tx.Where("job_id = ?", jobID).Delete(&DraftRecord{}).Error; err != nil {
		return fmt.Errorf("delete drafts: %w", err)
	}
	if len(drafts) == 0 {
		return nil
	}
	now := s.now()
	recs := make([]DraftRecord, len(drafts))
	for i, d := range drafts {
		d.JobID = jobID
		if d.ID == "" {
			d.ID = uuid.New().String()
		}
		recs[i] = draftRecordFrom(d, now)
	}
	if err := tx.CreateInBatches(recs, s.batchSize).Error; err != nil {
		return fmt.Errorf("insert drafts: %w", err)
	}
	return nil
}

// ReplaceDraftsAndReview replaces the job's drafts and moves it from
// PROCESSING to REVIEW in one transaction. If the job is no longer
// PROCESSING nothing is written and false is returned.
func (s *Store) ReplaceDraftsAndReview(ctx context.Context, jobID string, drafts []domain.DraftTransaction, warning *string) (bool, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.replaceDrafts(tx, jobID, drafts); err != nil {
			return err
		}
		count := len(drafts)
		patch := domain.JobPatch{DraftCount: &count, Warning: warning, ClearWarning: warning == nil}
		moved, err := s.transition(ctx, tx, jobID, []domain.JobStatus{domain.JobStatusProcessing}, domain.JobStatusReview, patch)
		if err != nil {
			return err
		}
		if !moved {
			return errNotProcessing
		}
		return nil
	})
	if errors.Is(err, errNotProcessing) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ReplaceDraftsAndReview: %w", err)
	}
	return true, nil
}

// ListDrafts returns a job's drafts ordered by occurrence date.
func (s *Store) ListDrafts(ctx context.Context, jobID string) ([]domain.DraftTransaction, error) {
	return s.listDrafts(ctx, nil, jobID)
}

func (s *Store) listDrafts(ctx context.Context, tx *gorm.DB, jobID string) ([]domain.DraftTransaction, error) {
	var recs []DraftRecord
	if err := s.conn(tx).WithContext(ctx).
		Where("job_id = ?", jobID).
		Order("occurred_at ASC").
		Order("id ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ListDrafts: %w", err)
	}
	out := make([]domain.DraftTransaction, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out, nil
}

// CountDrafts returns the number of drafts stored for a job.
func (s *Store) CountDrafts(ctx context.Context, jobID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&DraftRecord{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("CountDrafts: %w", err)
	}
	return n, nil
}

// ConfirmJob promotes all drafts of a REVIEW job into the ledger with
// overrides applied, deletes the drafts and marks the job COMPLETED, all in
// one transaction. On any failure nothing is changed. An empty draft set
// completes the job with zero transactions.
func (s *Store) ConfirmJob(ctx context.Context, jobID string, overrides domain.Overrides) ([]domain.Transaction, error) {
	var created []domain.Transaction

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		job, err := s.getJob(ctx, tx, jobID)
		if err != nil {
			return err
		}
		if job.Status != domain.JobStatusReview {
			return domain.ErrJobNotInReview
		}

		drafts, err := s.listDrafts(ctx, tx, jobID)
		if err != nil {
			return err
		}

		now := s.now()
		created = make([]domain.Transaction, 0, len(drafts))
		recs := make([]TransactionRecord, 0, len(drafts))
		for _, d := range drafts {
			t := overrides.Apply(d, uuid.New().String(), now)
			created = append(created, t)
			recs = append(recs, transactionRecordFrom(t))
		}
		if len(recs) > 0 {
			if err := tx.CreateInBatches(recs, s.batchSize).Error; err != nil {
				return fmt.Errorf("insert transactions: %w", err)
			}
		}

		if err := tx.Where("job_id = ?", jobID).Delete(&DraftRecord{}).Error; err != nil {
			return fmt.Errorf("delete drafts: %w", err)
		}

		count := 0
		moved, err := s.transition(ctx, tx, jobID, []domain.JobStatus{domain.JobStatusReview}, domain.JobStatusCompleted, domain.JobPatch{DraftCount: &count})
		if err != nil {
			return err
		}
		if !moved {
			return domain.ErrJobNotInReview
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ConfirmJob: %w", err)
	}
	return created, nil
}
