package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestJobStatus_CanTransitionTo(t *testing.T) {
	all := []JobStatus{JobStatusPending, JobStatusProcessing, JobStatusReview, JobStatusCompleted, JobStatusFailed}
	legal := map[[2]JobStatus]bool{
		{JobStatusPending, JobStatusProcessing}: true,
		{JobStatusProcessing, JobStatusReview}:  true,
		{JobStatusProcessing, JobStatusFailed}:  true,
		{JobStatusFailed, JobStatusPending}:     true,
		{JobStatusReview, JobStatusCompleted}:   true,
	}

	for _, from := range all {
		for _, to := range all {
			t.Run(string(from)+"->"+string(to), func(t *testing.T) {
				assert.Equal(t, legal[[2]JobStatus{from, to}], from.CanTransitionTo(to))
			})
		}
	}
}

func TestReapableStatusesExcludeCompleted(t *testing.T) {
	assert.NotContains(t, ReapableStatuses, JobStatusCompleted)
	assert.Len(t, ReapableStatuses, 4)
}

func TestDocumentTypeFromFilename(t *testing.T) {
	tests := []struct {
		name    string
		want    DocumentType
		wantErr bool
	}{
		{"statement.xlsx", DocumentTypeSpreadsheet, false},
		{"OLD.XLS", DocumentTypeSpreadsheet, false},
		{"export.csv", DocumentTypeSpreadsheet, false},
		{"bank.PDF", DocumentTypePDF, false},
		{"notes.txt", "", true},
		{"noext", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DocumentTypeFromFilename(tt.name)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnsupportedFileType)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCode(t *testing.T) {
	wrapped := fmt.Errorf("Retry: %w", ErrRetryLimitReached)
	assert.Equal(t, "retry_limit_reached", Code(wrapped))
	assert.Equal(t, "not_found", Code(ErrNotFound))
	assert.Equal(t, "internal_error", Code(errors.New("boom")))
	assert.Equal(t, "", Code(nil))
}

func TestJobErrorText_FixedMessagePerCode(t *testing.T) {
	leaky := fmt.Errorf("ExtractFull: %w; raw=Card 6222 0211 0000 1234", ErrExtraction)
	assert.Equal(t, "extraction_failed: statement could not be extracted", JobErrorText(leaky))
	assert.Equal(t, "internal_error: processing failed", JobErrorText(errors.New("dial tcp 10.0.0.3:5432: refused")))
	assert.Equal(t, "enqueue_failed: job could not be queued for processing", JobErrorText(fmt.Errorf("%w: queue down", ErrEnqueueFailed)))
	assert.Equal(t, "", JobErrorText(nil))
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	s := "餐饮餐饮"
	got := Truncate(s, 4)
	assert.Equal(t, "餐", got)
}

func TestOverrides_Apply(t *testing.T) {
	cat := "餐饮"
	merchant := "Luckin"
	newCat := "交通出行"
	newDesc := "taxi home"
	now := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)

	draft := DraftTransaction{
		ID:          "d1",
		UserID:      "u1",
		JobID:       "j1",
		OccurredAt:  time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Description: "coffee",
		Merchant:    &merchant,
		Amount:      decimal.RequireFromString("-12.50"),
		Currency:    "CNY",
		Category:    &cat,
	}

	t.Run("no override keeps draft values", func(t *testing.T) {
		tx := Overrides{}.Apply(draft, "t1", now)
		assert.Equal(t, "t1", tx.ID)
		assert.Equal(t, "coffee", tx.Description)
		assert.Equal(t, "餐饮", *tx.Category)
		assert.True(t, tx.Amount.Equal(draft.Amount))
		assert.Equal(t, now, tx.CreatedAt)
	})

	t.Run("override replaces only given fields", func(t *testing.T) {
		ov := NewOverrides([]Override{{ID: "d1", Category: &newCat, Description: &newDesc}})
		tx := ov.Apply(draft, "t1", now)
		assert.Equal(t, "交通出行", *tx.Category)
		assert.Equal(t, "taxi home", tx.Description)
		assert.Equal(t, "Luckin", *tx.Merchant)
	})

	t.Run("override for another draft is ignored", func(t *testing.T) {
		ov := NewOverrides([]Override{{ID: "other", Category: &newCat}})
		tx := ov.Apply(draft, "t1", now)
		assert.Equal(t, "餐饮", *tx.Category)
	})
}
