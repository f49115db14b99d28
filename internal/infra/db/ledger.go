package db

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
)

// ListTransactions returns a user's confirmed transactions with
// from <= occurred_at < to, oldest first.
func (s *Store) ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error) {
	var recs []TransactionRecord
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ? AND occurred_at < ?", userID, from, to).
		Order("occurred_at ASC").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("ListTransactions: %w", err)
	}
	out := make([]domain.Transaction, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].toDomain())
	}
	return out, nil
}

// CountTransactionsForJob returns how many ledger rows a job produced.
func (s *Store) CountTransactionsForJob(ctx context.Context, jobID string) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Model(&TransactionRecord{}).Where("job_id = ?", jobID).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("CountTransactionsForJob: %w", err)
	}
	return n, nil
}
