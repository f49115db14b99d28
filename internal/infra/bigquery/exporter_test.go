package bigquery

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"

	"cloud.google.com/go/civil"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeInserter struct {
	rows []*TransactionRow
	err  error
}

func (f *fakeInserter) Put(_ context.Context, src interface{}) error {
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, src.([]*TransactionRow)...)
	return nil
}

func sampleTransaction() domain.Transaction {
	cat := "餐饮"
	return domain.Transaction{
		ID:          "tx-1",
		UserID:      "user-1",
		JobID:       "job-1",
		OccurredAt:  time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC),
		Description: "Coffee",
		Amount:      decimal.RequireFromString("-12.50"),
		Currency:    "CNY",
		Category:    &cat,
		Raw:         domain.RawPayload{Kind: domain.RawKindChunk, SourceText: "Coffee"},
		CreatedAt:   time.Date(2024, 3, 6, 0, 0, 0, 0, time.UTC),
	}
}

func TestTransactionRowFrom(t *testing.T) {
	row := TransactionRowFrom(sampleTransaction())

	assert.Equal(t, "tx-1", row.TransactionID)
	assert.Equal(t, "job-1", row.ImportJobID)
	assert.Equal(t, civil.Date{Year: 2024, Month: time.March, Day: 5}, row.TransactionDate)
	assert.Equal(t, 0, row.Amount.Cmp(big.NewRat(-25, 2)))
	assert.True(t, row.CategoryName.Valid)
	assert.Equal(t, "餐饮", row.CategoryName.StringVal)
	assert.False(t, row.Merchant.Valid)
	require.True(t, row.Extra.Valid)
	assert.Contains(t, row.Extra.JSONVal, `"sourceText":"Coffee"`)
}

func TestLedgerExporter_Publish(t *testing.T) {
	ins := &fakeInserter{}
	exp := &LedgerExporter{inserter: ins}

	assert.Equal(t, "bigquery", exp.Name())
	require.NoError(t, exp.Publish(context.Background(), nil))
	assert.Empty(t, ins.rows)

	require.NoError(t, exp.Publish(context.Background(), []domain.Transaction{sampleTransaction()}))
	assert.Len(t, ins.rows, 1)

	ins.err = errors.New("quota exceeded")
	err := exp.Publish(context.Background(), []domain.Transaction{sampleTransaction()})
	assert.ErrorContains(t, err, "quota exceeded")
	assert.NoError(t, exp.Close())
}
