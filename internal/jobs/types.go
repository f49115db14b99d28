// Package jobs carries ingestion events from the upload path to the
// extraction workers.
package jobs

import (
	"context"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
)

// Event names published for each document type.
const (
	EventSpreadsheetIngested = "excel/ingested"
	EventPDFIngested         = "pdf/ingested"
)

// IngestEvent asks a worker to run extraction for one import job.
type IngestEvent struct {
	// JobID is the import job to process.
	JobID string `json:"jobId"`

	// UserID owns the job.
	UserID string `json:"userId"`

	// Filename is the original upload name.
	Filename string `json:"filename"`

	// DocumentType selects the chunked or single-call extraction path.
	DocumentType domain.DocumentType `json:"documentType"`

	// Retry is true when the event was published by a user retry.
	Retry bool `json:"retry"`

	// RetryCount is the job's retry count at publish time.
	RetryCount int `json:"retryCount"`

	// EnqueuedAt is when the event was published.
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// EventName returns the routing name of the event.
func (e IngestEvent) EventName() string {
	if e.DocumentType == domain.DocumentTypePDF {
		return EventPDFIngested
	}
	return EventSpreadsheetIngested
}

// Publisher defines the interface for publishing ingestion events.
type Publisher interface {
	// Publish enqueues an event for asynchronous processing.
	Publish(ctx context.Context, ev IngestEvent) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer defines the interface for consuming ingestion events.
type Consumer interface {
	// Start begins consuming events. handler is called for each one.
	Start(ctx context.Context, handler Handler) error

	// Stop stops consuming and waits for in-flight events to finish.
	Stop(ctx context.Context) error
}

// Handler processes one event. A returned error is logged by the queue;
// events are never redelivered on failure.
type Handler func(ctx context.Context, ev IngestEvent) error
