// Package reaper deletes import jobs that were never confirmed.
package reaper

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/config"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/filestore"
	"github.com/dvloznov/smart-ledger/internal/infra/db"
	"github.com/rs/zerolog"
)

// Repository selects and deletes stale jobs.
type Repository interface {
	FindStaleJobs(ctx context.Context, statuses []domain.JobStatus, cutoff time.Time, limit int) ([]db.StaleJob, error)
	DeleteJobsCascade(ctx context.Context, ids []string, statuses []domain.JobStatus) (db.PurgeCounts, error)
}

// Result reports one reaper pass.
type Result struct {
	DeletedJobs   int64     `json:"deletedJobs"`
	DeletedDrafts int64     `json:"deletedDrafts"`
	DeletedFiles  int64     `json:"deletedFiles"`
	Batch         int       `json:"batch"`
	Cutoff        time.Time `json:"cutoff"`
	RetentionDays int       `json:"retentionDays"`
}

// Reaper removes jobs older than the retention window that are not
// COMPLETED, along with their drafts and original files.
type Reaper struct {
	repo  Repository
	files filestore.Store
	cfg   config.Reaper
	now   func() time.Time
	log   zerolog.Logger
}

// New creates a Reaper.
func New(repo Repository, files filestore.Store, cfg config.Reaper, log zerolog.Logger) *Reaper {
	return &Reaper{
		repo:  repo,
		files: files,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
		log:   log,
	}
}

// WithClock overrides the time source.
func (r *Reaper) WithClock(now func() time.Time) *Reaper {
	r.now = now
	return r
}

// Run performs one pass over at most BatchSize stale jobs.
func (r *Reaper) Run(ctx context.Context) (Result, error) {
	cutoff := r.now().AddDate(0, 0, -r.cfg.RetentionDays)
	res := Result{Cutoff: cutoff, RetentionDays: r.cfg.RetentionDays}

	stale, err := r.repo.FindStaleJobs(ctx, domain.ReapableStatuses, cutoff, r.cfg.BatchSize)
	if err != nil {
		return res, fmt.Errorf("Run: %w", err)
	}
	res.Batch = len(stale)
	if len(stale) == 0 {
		return res, nil
	}

	ids := make([]string, len(stale))
	for i, j := range stale {
		ids[i] = j.ID
	}
	counts, err := r.repo.DeleteJobsCascade(ctx, ids, domain.ReapableStatuses)
	if err != nil {
		return res, fmt.Errorf("Run: %w", err)
	}
	res.DeletedJobs = counts.Jobs
	res.DeletedDrafts = counts.Drafts
	res.DeletedFiles = counts.Files

	deleted := make(map[string]bool, len(counts.JobIDs))
	for _, id := range counts.JobIDs {
		deleted[id] = true
	}
	if skipped := len(stale) - len(counts.JobIDs); skipped > 0 {
		r.log.Info().Int("skipped", skipped).Msg("Jobs changed state since selection, left in place")
	}

	// Blob deletion is best-effort.
	for _, j := range stale {
		if !deleted[j.ID] || j.StorageKey == "" || r.files == nil {
			continue
		}
		if err := r.files.Delete(ctx, j.StorageKey); err != nil {
			r.log.Warn().Err(err).Str("job_id", j.ID).Str("key", j.StorageKey).Msg("Failed to delete original")
		}
	}

	r.log.Info().
		Int64("jobs", res.DeletedJobs).
		Int64("drafts", res.DeletedDrafts).
		Int64("files", res.DeletedFiles).
		Time("cutoff", cutoff).
		Msg("Stale import jobs reaped")
	return res, nil
}
