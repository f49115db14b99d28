package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"gorm.io/gorm"
)

// StaleJob identifies a job selected for deletion and where its original
// bytes are kept.
type StaleJob struct {
	ID         string
	StorageKey string
}

// PurgeCounts reports rows removed by DeleteJobsCascade. JobIDs lists the
// jobs that were actually deleted.
type PurgeCounts struct {
	JobIDs []string
	Jobs   int64
	Files  int64
	Drafts int64
}

// FindStaleJobs returns at most limit jobs in one of statuses whose
// created_at is before cutoff, oldest first.
func (s *Store) FindStaleJobs(ctx context.Context, statuses []domain.JobStatus, cutoff time.Time, limit int) ([]StaleJob, error) {
	var rows []StaleJob
	err := s.db.WithContext(ctx).
		Table("import_jobs AS j").
		Select("j.id AS id, COALESCE(f.storage_key, '') AS storage_key").
		Joins("LEFT JOIN import_files AS f ON f.job_id = j.id").
		Where("j.status IN ? AND j.created_at < ?", statusStrings(statuses), cutoff).
		Order("j.created_at ASC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("FindStaleJobs: %w", err)
	}
	return rows, nil
}

// DeleteJobsCascade removes the job rows of ids that are still in one of
// statuses, then the drafts and file metadata of exactly those jobs, in one
// transaction. A job that moved out of statuses since it was selected (for
// example one confirmed in the meantime) is left untouched. Confirmed
// transactions are never touched.
func (s *Store) DeleteJobsCascade(ctx context.Context, ids []string, statuses []domain.JobStatus) (PurgeCounts, error) {
	var counts PurgeCounts
	if len(ids) == 0 || len(statuses) == 0 {
		return counts, nil
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("id IN ? AND status IN ?", ids, statusStrings(statuses)).Delete(&ImportJobRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete jobs: %w", res.Error)
		}
		counts.Jobs = res.RowsAffected
		if counts.Jobs == 0 {
			return nil
		}

		var kept []string
		if err := tx.Model(&ImportJobRecord{}).Where("id IN ?", ids).Pluck("id", &kept).Error; err != nil {
			return fmt.Errorf("select kept jobs: %w", err)
		}
		counts.JobIDs = without(ids, kept)

		res = tx.Where("job_id IN ?", counts.JobIDs).Delete(&DraftRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete drafts: %w", res.Error)
		}
		counts.Drafts = res.RowsAffected

		res = tx.Where("job_id IN ?", counts.JobIDs).Delete(&ImportFileRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete files: %w", res.Error)
		}
		counts.Files = res.RowsAffected
		return nil
	})
	if err != nil {
		return PurgeCounts{}, fmt.Errorf("DeleteJobsCascade: %w", err)
	}
	return counts, nil
}

func without(ids, drop []string) []string {
	skip := make(map[string]struct{}, len(drop))
	for _, id := range drop {
		skip[id] = struct{}{}
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := skip[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
