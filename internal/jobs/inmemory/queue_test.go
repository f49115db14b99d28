package inmemory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/dvloznov/smart-ledger/internal/domain"
	"github.com/dvloznov/smart-ledger/internal/jobs"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_DeliversEveryEventOnce(t *testing.T) {
	q := NewQueue(10, 3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	wg.Add(5)

	require.NoError(t, q.Start(ctx, func(_ context.Context, ev jobs.IngestEvent) error {
		mu.Lock()
		seen[ev.JobID]++
		mu.Unlock()
		wg.Done()
		if ev.JobID == "job-2" {
			return errors.New("extraction failed")
		}
		return nil
	}))

	for _, id := range []string{"job-0", "job-1", "job-2", "job-3", "job-4"} {
		require.NoError(t, q.Publish(ctx, jobs.IngestEvent{JobID: id, DocumentType: domain.DocumentTypeSpreadsheet}))
	}

	waitOrFail(t, &wg)
	require.NoError(t, q.Stop(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, seen, 5)
	for id, n := range seen {
		assert.Equal(t, 1, n, "event %s delivered more than once", id)
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := NewQueue(1, 1, zerolog.Nop())
	require.NoError(t, q.Close())

	err := q.Publish(context.Background(), jobs.IngestEvent{JobID: "x"})
	assert.Error(t, err)
	assert.Error(t, q.Start(context.Background(), func(context.Context, jobs.IngestEvent) error { return nil }))
}

func TestQueue_PanicDoesNotKillWorker(t *testing.T) {
	q := NewQueue(4, 1, zerolog.Nop())
	ctx := context.Background()

	var wg sync.WaitGroup
	wg.Add(2)
	require.NoError(t, q.Start(ctx, func(_ context.Context, ev jobs.IngestEvent) error {
		defer wg.Done()
		if ev.JobID == "boom" {
			panic("bad event")
		}
		return nil
	}))

	require.NoError(t, q.Publish(ctx, jobs.IngestEvent{JobID: "boom"}))
	require.NoError(t, q.Publish(ctx, jobs.IngestEvent{JobID: "ok"}))

	waitOrFail(t, &wg)
	require.NoError(t, q.Stop(ctx))
}

func TestIngestEvent_EventName(t *testing.T) {
	assert.Equal(t, jobs.EventPDFIngested, jobs.IngestEvent{DocumentType: domain.DocumentTypePDF}.EventName())
	assert.Equal(t, jobs.EventSpreadsheetIngested, jobs.IngestEvent{DocumentType: domain.DocumentTypeSpreadsheet}.EventName())
}

func waitOrFail(t *testing.T, wg *sync.WaitGroup) {
	t.Helper()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for handlers")
	}
}
