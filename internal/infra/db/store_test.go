package db_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/filestore"
	"github.com/dvloznov/smart-ledger/internal/infra/db"
	"github.com/dvloznov/smart-ledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func strPtr(s string) *string { return &s }

func newJob(t *testing.T, s *db.Store, status domain.JobStatus) *domain.ImportJob {
	t.Helper()
	job := &domain.ImportJob{
		ID:           uuid.New().String(),
		UserID:       "user-1",
		Filename:     "statement.csv",
		DocumentType: domain.DocumentTypeSpreadsheet,
		Status:       status,
	}
	file := &domain.ImportFile{
		Filename:   job.Filename,
		MimeType:   "text/csv",
		Size:       10,
		StorageKey: filestore.Key(job.UserID, job.ID, job.Filename),
	}
	require.NoError(t, s.CreateJob(context.Background(), job, file))
	return job
}

func sampleDrafts(n int) []domain.DraftTransaction {
	out := make([]domain.DraftTransaction, n)
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i := range out {
		out[i] = domain.DraftTransaction{
			UserID:      "user-1",
			OccurredAt:  base.AddDate(0, 0, i),
			Description: "coffee",
			Amount:      decimal.NewFromFloat(-12.5),
			Currency:    "CNY",
			Category:    strPtr("餐饮"),
			Raw:         domain.RawPayload{Kind: domain.RawKindChunk, SourceText: "2024-03-01 coffee -12.50"},
		}
	}
	return out
}

func TestCreateAndGetJob(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)

	job := newJob(t, s, domain.JobStatusPending)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, "user-1", got.UserID)

	file, err := s.GetFile(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, "imports/user-1/"+job.ID+"/statement.csv", file.StorageKey)

	_, err = s.GetJob(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestTransitionStatus_Conditional(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)
	job := newJob(t, s, domain.JobStatusPending)

	moved, err := s.TransitionStatus(ctx, job.ID, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusProcessing, domain.JobPatch{})
	require.NoError(t, err)
	assert.True(t, moved)

	// A second claim finds the job already PROCESSING.
	moved, err = s.TransitionStatus(ctx, job.ID, []domain.JobStatus{domain.JobStatusPending}, domain.JobStatusProcessing, domain.JobPatch{})
	require.NoError(t, err)
	assert.False(t, moved)

	moved, err = s.TransitionStatus(ctx, job.ID, []domain.JobStatus{domain.JobStatusProcessing}, domain.JobStatusFailed,
		domain.JobPatch{Error: strPtr("extraction_failed: boom")})
	require.NoError(t, err)
	assert.True(t, moved)

	moved, err = s.TransitionStatus(ctx, job.ID, []domain.JobStatus{domain.JobStatusFailed}, domain.JobStatusPending,
		domain.JobPatch{ClearError: true, IncrementRetry: true})
	require.NoError(t, err)
	assert.True(t, moved)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, got.Status)
	assert.Equal(t, 1, got.RetryCount)
	assert.Nil(t, got.Error)
}

func TestReplaceDrafts_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 2)
	job := newJob(t, s, domain.JobStatusProcessing)

	drafts := sampleDrafts(5)
	require.NoError(t, s.ReplaceDrafts(ctx, job.ID, drafts))
	require.NoError(t, s.ReplaceDrafts(ctx, job.ID, drafts))

	n, err := s.CountDrafts(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(5), n)

	require.NoError(t, s.ReplaceDrafts(ctx, job.ID, nil))
	n, err = s.CountDrafts(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReplaceDraftsAndReview(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)

	t.Run("processing job moves to review", func(t *testing.T) {
		job := newJob(t, s, domain.JobStatusProcessing)
		ok, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(3), strPtr("1 chunk failed"))
		require.NoError(t, err)
		assert.True(t, ok)

		got, err := s.GetJob(ctx, job.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.JobStatusReview, got.Status)
		assert.Equal(t, 3, got.DraftCount)
		require.NotNil(t, got.Warning)
		assert.Equal(t, "1 chunk failed", *got.Warning)

		drafts, err := s.ListDrafts(ctx, job.ID)
		require.NoError(t, err)
		require.Len(t, drafts, 3)
		assert.True(t, drafts[0].OccurredAt.Before(drafts[2].OccurredAt))
		assert.Equal(t, domain.RawKindChunk, drafts[0].Raw.Kind)
		assert.True(t, drafts[0].Amount.Equal(decimal.RequireFromString("-12.50")))
	})

	t.Run("job not processing keeps no drafts", func(t *testing.T) {
		job := newJob(t, s, domain.JobStatusFailed)
		ok, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(2), nil)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := s.CountDrafts(ctx, job.ID)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestConfirmJob(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)
	job := newJob(t, s, domain.JobStatusProcessing)

	_, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(3), nil)
	require.NoError(t, err)
	drafts, err := s.ListDrafts(ctx, job.ID)
	require.NoError(t, err)

	overrides := domain.NewOverrides([]domain.Override{{ID: drafts[1].ID, Category: strPtr("交通出行")}})
	created, err := s.ConfirmJob(ctx, job.ID, overrides)
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, "交通出行", *created[1].Category)
	assert.Equal(t, "餐饮", *created[0].Category)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)

	n, err := s.CountDrafts(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	n, err = s.CountTransactionsForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Confirming again is rejected and writes nothing.
	_, err = s.ConfirmJob(ctx, job.ID, nil)
	assert.ErrorIs(t, err, domain.ErrJobNotInReview)
	n, err = s.CountTransactionsForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestConfirmJob_EmptyDrafts(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)
	job := newJob(t, s, domain.JobStatusProcessing)

	_, err := s.ReplaceDraftsAndReview(ctx, job.ID, nil, nil)
	require.NoError(t, err)

	created, err := s.ConfirmJob(ctx, job.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, created)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
}

func TestConfirmJob_RollsBackOnInsertFailure(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewTestDB(t)
	s := db.NewStore(conn, 500)
	job := newJob(t, s, domain.JobStatusProcessing)

	_, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(4), nil)
	require.NoError(t, err)

	injected := errors.New("disk full")
	require.NoError(t, conn.Callback().Create().Before("gorm:create").Register("test:fail_transactions", func(tx *gorm.DB) {
		if tx.Statement.Table == "transactions" {
			_ = tx.AddError(injected)
		}
	}))

	_, err = s.ConfirmJob(ctx, job.ID, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, injected)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusReview, got.Status)

	n, err := s.CountDrafts(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	n, err = s.CountTransactionsForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestFindStaleJobsAndCascade(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewTestDB(t)
	s := db.NewStore(conn, 500)

	old := time.Now().UTC().AddDate(0, 0, -10)
	stale := newJob(t, s, domain.JobStatusReview)
	done := newJob(t, s, domain.JobStatusCompleted)
	fresh := newJob(t, s, domain.JobStatusFailed)
	require.NoError(t, conn.Model(&db.ImportJobRecord{}).Where("id IN ?", []string{stale.ID, done.ID}).
		Update("created_at", old).Error)
	require.NoError(t, s.ReplaceDrafts(ctx, stale.ID, sampleDrafts(2)))

	cutoff := time.Now().UTC().AddDate(0, 0, -7)
	found, err := s.FindStaleJobs(ctx, domain.ReapableStatuses, cutoff, 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, stale.ID, found[0].ID)
	assert.NotEmpty(t, found[0].StorageKey)

	counts, err := s.DeleteJobsCascade(ctx, []string{stale.ID}, domain.ReapableStatuses)
	require.NoError(t, err)
	assert.Equal(t, db.PurgeCounts{JobIDs: []string{stale.ID}, Jobs: 1, Files: 1, Drafts: 2}, counts)

	_, err = s.GetJob(ctx, stale.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = s.GetJob(ctx, done.ID)
	assert.NoError(t, err)
	_, err = s.GetJob(ctx, fresh.ID)
	assert.NoError(t, err)
}

func TestDeleteJobsCascade_SkipsJobConfirmedAfterSelection(t *testing.T) {
	ctx := context.Background()
	conn := testutil.NewTestDB(t)
	s := db.NewStore(conn, 500)

	job := newJob(t, s, domain.JobStatusProcessing)
	_, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(2), nil)
	require.NoError(t, err)
	require.NoError(t, conn.Model(&db.ImportJobRecord{}).Where("id = ?", job.ID).
		Update("created_at", time.Now().UTC().AddDate(0, 0, -30)).Error)

	found, err := s.FindStaleJobs(ctx, domain.ReapableStatuses, time.Now().UTC().AddDate(0, 0, -7), 10)
	require.NoError(t, err)
	require.Len(t, found, 1)

	created, err := s.ConfirmJob(ctx, job.ID, nil)
	require.NoError(t, err)
	require.Len(t, created, 2)

	counts, err := s.DeleteJobsCascade(ctx, []string{found[0].ID}, domain.ReapableStatuses)
	require.NoError(t, err)
	assert.Zero(t, counts.Jobs)
	assert.Zero(t, counts.Files)
	assert.Empty(t, counts.JobIDs)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	_, err = s.GetFile(ctx, job.ID)
	assert.NoError(t, err)

	n, err := s.CountTransactionsForJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestListTransactions_Range(t *testing.T) {
	ctx := context.Background()
	s := db.NewStore(testutil.NewTestDB(t), 500)
	job := newJob(t, s, domain.JobStatusProcessing)

	_, err := s.ReplaceDraftsAndReview(ctx, job.ID, sampleDrafts(5), nil)
	require.NoError(t, err)
	_, err = s.ConfirmJob(ctx, job.ID, nil)
	require.NoError(t, err)

	from := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	txs, err := s.ListTransactions(ctx, "user-1", from, to)
	require.NoError(t, err)
	assert.Len(t, txs, 2)

	txs, err = s.ListTransactions(ctx, "someone-else", from, to)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestBlobStore(t *testing.T) {
	ctx := context.Background()
	b := db.NewBlobStore(testutil.NewTestDB(t))

	require.NoError(t, b.Put(ctx, "k", "application/pdf", []byte("v1")))
	require.NoError(t, b.Put(ctx, "k", "application/pdf", []byte("v2")))

	got, err := b.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), got)

	require.NoError(t, b.Delete(ctx, "k"))
	_, err = b.Get(ctx, "k")
	assert.ErrorIs(t, err, filestore.ErrNotFound)
}
