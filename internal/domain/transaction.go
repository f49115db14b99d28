package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawKind tags the origin of a draft's raw payload.
type RawKind string

const (
	// RawKindChunk marks drafts produced by the chunked spreadsheet path.
	RawKindChunk RawKind = "ai_extraction"
	// RawKindFullText marks drafts produced by the single-call PDF path.
	RawKindFullText RawKind = "ai_full_text"
)

// RawPayload keeps what the extractor saw for a record so reviewers can
// trace a draft back to its source text.
type RawPayload struct {
	Kind       RawKind `json:"kind"`
	SourceText string  `json:"sourceText"`
	Chunk      *int    `json:"chunk,omitempty"`
}

// Candidate is one record as returned by the extraction capability,
// before normalization. Optional fields are nil when the model omitted them.
type Candidate struct {
	Date          string
	Description   string
	Amount        float64
	Currency      *string
	Merchant      *string
	Type          *string
	Category      *string
	CategoryScore *float64
}

// DraftTransaction is a normalized, not yet confirmed transaction.
type DraftTransaction struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	JobID         string          `json:"jobId"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Description   string          `json:"description"`
	Merchant      *string         `json:"merchant"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Category      *string         `json:"category"`
	CategoryScore *float64        `json:"categoryScore"`
	Raw           RawPayload      `json:"raw"`
}

// Transaction is a confirmed ledger entry.
type Transaction struct {
	ID          string          `json:"id"`
	UserID      string          `json:"userId"`
	JobID       string          `json:"jobId"`
	OccurredAt  time.Time       `json:"occurredAt"`
	Description string          `json:"description"`
	Merchant    *string         `json:"merchant"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	Category    *string         `json:"category"`
	Raw         RawPayload      `json:"raw"`
	CreatedAt   time.Time       `json:"createdAt"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// Override is a user edit applied to one draft at confirmation.
// Nil fields leave the draft value untouched.
type Override struct {
	ID          string  `json:"id"`
	Category    *string `json:"category,omitempty"`
	Description *string `json:"description,omitempty"`
	Merchant    *string `json:"merchant,omitempty"`
}

// Overrides indexes overrides by draft id.
type Overrides map[string]Override

// NewOverrides builds an index from a list; later entries win.
func NewOverrides(list []Override) Overrides {
	out := make(Overrides, len(list))
	for _, o := range list {
		if o.ID == "" {
			continue
		}
		out[o.ID] = o
	}
	return out
}

// Apply merges any override for d into a ledger transaction with id txID.
func (o Overrides) Apply(d DraftTransaction, txID string, now time.Time) Transaction {
	tx := Transaction{
		ID:          txID,
		UserID:      d.UserID,
		JobID:       d.JobID,
		OccurredAt:  d.OccurredAt,
		Description: d.Description,
		Merchant:    d.Merchant,
		Amount:      d.Amount,
		Currency:    d.Currency,
		Category:    d.Category,
		Raw:         d.Raw,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	ov, ok := o[d.ID]
	if !ok {
		return tx
	}
	if ov.Category != nil {
		tx.Category = ov.Category
	}
	if ov.Description != nil {
		tx.Description = *ov.Description
	}
	if ov.Merchant != nil {
		tx.Merchant = ov.Merchant
	}
	return tx
}
