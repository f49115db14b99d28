package inmemory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/smart-ledger/internal/jobs"
	"github.com/rs/zerolog"
)

// Queue is an in-memory implementation of the event publisher and consumer.
// It uses Go channels for distribution and is safe for concurrent use.
// It suits single-instance deployments and tests; use redisqueue when
// the API and workers run as separate processes.
type Queue struct {
	events    chan jobs.IngestEvent
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	workers   int
	log       zerolog.Logger
	closed    bool
}

// NewQueue creates a new in-memory queue.
// bufferSize determines how many events can be queued before Publish blocks.
func NewQueue(bufferSize, workers int, log zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		events:    make(chan jobs.IngestEvent, bufferSize),
		closeChan: make(chan struct{}),
		workers:   workers,
		log:       log,
	}
}

// Publish implements the Publisher interface.
func (q *Queue) Publish(ctx context.Context, ev jobs.IngestEvent) error {
	q.mu.RLock()
	defer q.mu.RUnlock()

	if q.closed {
		return fmt.Errorf("queue is closed")
	}
	if ev.EnqueuedAt.IsZero() {
		ev.EnqueuedAt = time.Now().UTC()
	}

	select {
	case q.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		return fmt.Errorf("queue is closed")
	}
}

// Start implements the Consumer interface.
// The handler is called concurrently, up to the configured worker count.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return fmt.Errorf("queue is closed")
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i, handler)
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, id int, handler jobs.Handler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case ev := <-q.events:
			q.process(ctx, id, ev, handler)
		}
	}
}

func (q *Queue) process(ctx context.Context, worker int, ev jobs.IngestEvent, handler jobs.Handler) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Str("job_id", ev.JobID).
				Int("worker", worker).
				Interface("panic", r).
				Msg("Ingest handler panicked")
		}
	}()

	start := time.Now()
	if err := handler(ctx, ev); err != nil {
		q.log.Warn().
			Err(err).
			Str("job_id", ev.JobID).
			Str("event", ev.EventName()).
			Int("worker", worker).
			Dur("elapsed", time.Since(start)).
			Msg("Ingest handler failed")
		return
	}
	q.log.Debug().
		Str("job_id", ev.JobID).
		Str("event", ev.EventName()).
		Dur("elapsed", time.Since(start)).
		Msg("Ingest handler finished")
}

// Stop implements the Consumer interface.
// It stops the queue and waits for all in-flight events to complete.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
