package notionsync

import (
	"context"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/jomei/notionapi"
)

// NotionService is the subset of the Notion API the ledger mirror uses.
type NotionService interface {
	CreatePage(ctx context.Context, databaseID string, properties notionapi.Properties) (*notionapi.Page, error)
	QueryDatabase(ctx context.Context, databaseID string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	ArchivePage(ctx context.Context, pageID string) error
}

// TransactionLister reads confirmed transactions in [from, to).
type TransactionLister interface {
	ListTransactions(ctx context.Context, userID string, from, to time.Time) ([]domain.Transaction, error)
}
