package summary

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLedger struct {
	txs      []domain.Transaction
	err      error
	from, to time.Time
}

func (f *fakeLedger) ListTransactions(_ context.Context, _ string, from, to time.Time) ([]domain.Transaction, error) {
	f.from, f.to = from, to
	return f.txs, f.err
}

func tx(day int, amount string) domain.Transaction {
	return domain.Transaction{
		OccurredAt: time.Date(2024, 2, day, 0, 0, 0, 0, time.UTC),
		Amount:     decimal.RequireFromString(amount),
	}
}

func TestSummary_Standard(t *testing.T) {
	ledger := &fakeLedger{txs: []domain.Transaction{
		tx(1, "-20.00"),
		tx(1, "5000"),
		tx(3, "-9.50"),
		tx(3, "-0.50"),
	}}
	s, err := NewService(ledger).Summary(context.Background(), "u1", "2024-02")
	require.NoError(t, err)

	assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), ledger.from)
	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), ledger.to)

	assert.Equal(t, "2024-02", s.Month)
	assert.Equal(t, SignModeStandard, s.SignMode)
	assert.Equal(t, 5000.0, s.Income)
	assert.Equal(t, -30.0, s.Expense)
	assert.Equal(t, 30.0, s.ExpenseAbs)
	assert.Equal(t, 4970.0, s.Net)
	assert.Equal(t, 4, s.TxCount)

	require.Len(t, s.Days, 2)
	assert.Equal(t, Day{Date: "2024-02-01", Income: 5000, Expense: -20, ExpenseAbs: 20, Count: 2}, s.Days[0])
	assert.Equal(t, Day{Date: "2024-02-03", Income: 0, Expense: -10, ExpenseAbs: 10, Count: 2}, s.Days[1])

	// 2024 is a leap year: 29 calendar days.
	assert.Equal(t, 172.41, s.Averages.Calendar.Income)
	assert.Equal(t, 1.03, s.Averages.Calendar.Expense)
	assert.Equal(t, 2500.0, s.Averages.Active.Income)
	assert.Equal(t, 15.0, s.Averages.Active.Expense)
}

func TestSummary_PositiveExpenseHeuristic(t *testing.T) {
	ledger := &fakeLedger{txs: []domain.Transaction{tx(2, "12"), tx(4, "8")}}
	s, err := NewService(ledger).Summary(context.Background(), "u1", "2024-02")
	require.NoError(t, err)

	assert.Equal(t, SignModePositiveExpense, s.SignMode)
	assert.Zero(t, s.Income)
	assert.Equal(t, -20.0, s.Expense)
	assert.Equal(t, 20.0, s.ExpenseAbs)
	assert.Equal(t, -20.0, s.Net)
	assert.Equal(t, -12.0, s.Days[0].Expense)
	assert.Zero(t, s.Days[0].Income)

	// Averages follow the reinterpreted totals.
	assert.Zero(t, s.Averages.Active.Income)
	assert.Equal(t, 10.0, s.Averages.Active.Expense)
}

func TestSummary_EmptyMonth(t *testing.T) {
	s, err := NewService(&fakeLedger{}).Summary(context.Background(), "u1", "2024-04")
	require.NoError(t, err)
	assert.Equal(t, SignModeStandard, s.SignMode)
	assert.Empty(t, s.Days)
	assert.Zero(t, s.Averages.Active.Expense)
}

func TestSummary_DefaultMonth(t *testing.T) {
	ledger := &fakeLedger{}
	svc := NewService(ledger).WithClock(func() time.Time { return time.Date(2025, 7, 19, 15, 0, 0, 0, time.UTC) })

	s, err := svc.Summary(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.Equal(t, "2025-07", s.Month)
	assert.Equal(t, time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC), ledger.from)
}

func TestSummary_InvalidMonth(t *testing.T) {
	svc := NewService(&fakeLedger{})
	for _, m := range []string{"2024-13", "2024-2", "24-02", "february"} {
		_, err := svc.Summary(context.Background(), "u1", m)
		assert.ErrorIs(t, err, domain.ErrInvalidMonth, m)
	}
}

func TestSummary_LedgerError(t *testing.T) {
	_, err := NewService(&fakeLedger{err: errors.New("db down")}).Summary(context.Background(), "u1", "2024-02")
	assert.Error(t, err)
}
