// Package notionsync mirrors confirmed ledger transactions into a Notion
// database.
package notionsync

import (
	"context"
	"fmt"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/logger"
	"github.com/jomei/notionapi"
	"github.com/rs/zerolog"
)

// BatchSize is the number of transactions logged per progress batch.
const BatchSize = 100

// LedgerSync writes transactions to one Notion database.
type LedgerSync struct {
	notion     NotionService
	databaseID string
	log        zerolog.Logger
}

// NewLedgerSync creates a LedgerSync.
func NewLedgerSync(notion NotionService, databaseID string, log zerolog.Logger) *LedgerSync {
	return &LedgerSync{notion: notion, databaseID: databaseID, log: log}
}

// Name identifies the sink in logs.
func (s *LedgerSync) Name() string { return "notion" }

// Publish creates one page per transaction. It keeps going past
// individual failures and returns the first one.
func (s *LedgerSync) Publish(ctx context.Context, txs []domain.Transaction) error {
	var firstErr error
	for _, tx := range txs {
		if _, err := s.notion.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx)); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
			if firstErr == nil {
				firstErr = fmt.Errorf("Publish: %w", err)
			}
		}
	}
	return firstErr
}

// SyncStats reports a SyncRange run.
type SyncStats struct {
	Created  int
	Skipped  int
	Archived int
}

// SyncRange brings the Notion database in line with the ledger for
// [from, to): missing transactions get pages, and pages in the range whose
// transaction no longer exists are archived. With dryRun nothing is written.
func (s *LedgerSync) SyncRange(ctx context.Context, ledger TransactionLister, userID string, from, to time.Time, dryRun bool) (SyncStats, error) {
	log := logger.FromContext(ctx)
	var stats SyncStats

	log.Info().
		Time("from", from).
		Time("to", to).
		Bool("dry_run", dryRun).
		Msg("Starting ledger sync to Notion")

	txs, err := ledger.ListTransactions(ctx, userID, from, to)
	if err != nil {
		return stats, fmt.Errorf("SyncRange: list transactions: %w", err)
	}
	valid := make(map[string]bool, len(txs))
	for _, tx := range txs {
		valid[tx.ID] = true
	}

	pages, err := queryAllNotionPages(ctx, s.notion, s.databaseID)
	if err != nil {
		return stats, fmt.Errorf("SyncRange: %w", err)
	}
	existing := make(map[string]bool, len(pages))
	for _, page := range pages {
		if id := extractTransactionID(page); id != "" {
			existing[id] = true
		}
	}

	for _, page := range pages {
		id := extractTransactionID(page)
		date, ok := extractDate(page)
		if id == "" || valid[id] || !ok || date.Before(from) || !date.Before(to) {
			continue
		}
		if !dryRun {
			if err := s.notion.ArchivePage(ctx, string(page.ID)); err != nil {
				log.Warn().Err(err).Str("transaction_id", id).Msg("Failed to archive stale Notion page")
				continue
			}
		}
		stats.Archived++
	}

	for i, tx := range txs {
		if i%BatchSize == 0 {
			log.Debug().Int("offset", i).Int("total", len(txs)).Msg("Processing batch")
		}
		if existing[tx.ID] {
			stats.Skipped++
			continue
		}
		if !dryRun {
			if _, err := s.notion.CreatePage(ctx, s.databaseID, TransactionToNotionProperties(tx)); err != nil {
				log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("Failed to create Notion page")
				continue
			}
		}
		stats.Created++
	}

	log.Info().
		Int("created", stats.Created).
		Int("skipped", stats.Skipped).
		Int("archived", stats.Archived).
		Int("total", len(txs)).
		Msg("Ledger sync completed")
	return stats, nil
}

// queryAllNotionPages pages through every row of a database.
func queryAllNotionPages(ctx context.Context, notion NotionService, databaseID string) ([]notionapi.Page, error) {
	var all []notionapi.Page
	var cursor notionapi.Cursor
	for {
		req := &notionapi.DatabaseQueryRequest{PageSize: 100}
		if cursor != "" {
			req.StartCursor = cursor
		}
		resp, err := notion.QueryDatabase(ctx, databaseID, req)
		if err != nil {
			return nil, fmt.Errorf("queryAllNotionPages: %w", err)
		}
		all = append(all, resp.Results...)
		if !resp.HasMore {
			return all, nil
		}
		cursor = resp.NextCursor
	}
}
