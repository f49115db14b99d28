// Package bigquery exports confirmed ledger transactions to a BigQuery
// table for analysis.
package bigquery

import (
	"encoding/json"
	"math/big"
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/dvloznov/smart-ledger/internal/domain"
)

// TransactionRow mirrors the exported transactions table.
type TransactionRow struct {
	TransactionID string `bigquery:"transaction_id"` // REQUIRED
	UserID        string `bigquery:"user_id"`        // REQUIRED
	ImportJobID   string `bigquery:"import_job_id"`  // NULLABLE

	TransactionDate civil.Date `bigquery:"transaction_date"` // REQUIRED

	Amount   *big.Rat `bigquery:"amount"`   // REQUIRED NUMERIC
	Currency string   `bigquery:"currency"` // REQUIRED STRING

	Description  string              `bigquery:"description"`   // REQUIRED STRING
	Merchant     bigquery.NullString `bigquery:"merchant"`      // NULLABLE
	CategoryName bigquery.NullString `bigquery:"category_name"` // NULLABLE

	CreatedTS time.Time `bigquery:"created_ts"` // REQUIRED

	Extra bigquery.NullJSON `bigquery:"extra"` // NULLABLE JSON, the extraction payload
}

func nullString(s *string) bigquery.NullString {
	if s == nil || *s == "" {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

// TransactionRowFrom converts a ledger transaction into an export row.
func TransactionRowFrom(tx domain.Transaction) *TransactionRow {
	row := &TransactionRow{
		TransactionID:   tx.ID,
		UserID:          tx.UserID,
		ImportJobID:     tx.JobID,
		TransactionDate: civil.DateOf(tx.OccurredAt.UTC()),
		Amount:          tx.Amount.Rat(),
		Currency:        tx.Currency,
		Description:     tx.Description,
		Merchant:        nullString(tx.Merchant),
		CategoryName:    nullString(tx.Category),
		CreatedTS:       tx.CreatedAt,
	}
	if raw, err := json.Marshal(tx.Raw); err == nil {
		row.Extra = bigquery.NullJSON{JSONVal: string(raw), Valid: true}
	}
	return row
}
