package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/smart-ledger/internal/domain"
	"google.golang.org/api/option"
)

const transactionsTable = "transactions"

// rowInserter is satisfied by *bigquery.Inserter.
type rowInserter interface {
	Put(ctx context.Context, src interface{}) error
}

// LedgerExporter streams confirmed transactions into BigQuery.
type LedgerExporter struct {
	client   *bigquery.Client
	inserter rowInserter
}

// NewLedgerExporter connects to BigQuery and targets
// <project>.<dataset>.transactions.
func NewLedgerExporter(ctx context.Context, project, dataset, credentialsFile string) (*LedgerExporter, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewLedgerExporter: bigquery client: %w", err)
	}
	table := client.DatasetInProject(project, dataset).Table(transactionsTable)
	return &LedgerExporter{client: client, inserter: table.Inserter()}, nil
}

// Name identifies the sink in logs.
func (e *LedgerExporter) Name() string { return "bigquery" }

// Publish inserts one row per transaction.
func (e *LedgerExporter) Publish(ctx context.Context, txs []domain.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	rows := make([]*TransactionRow, 0, len(txs))
	for _, tx := range txs {
		rows = append(rows, TransactionRowFrom(tx))
	}
	if err := e.inserter.Put(ctx, rows); err != nil {
		return fmt.Errorf("Publish: inserting rows: %w", err)
	}
	return nil
}

// Close closes the BigQuery client.
func (e *LedgerExporter) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
