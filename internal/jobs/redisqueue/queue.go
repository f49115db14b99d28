// Package redisqueue is a jobs.Publisher and jobs.Consumer backed by a
// Redis list, for deployments where the API and workers are separate
// processes.
//
// Delivery is at-least-once. A worker moves each event atomically into a
// processing list (BLMOVE, Redis 6.2+) and removes it only once the handler
// returns. Events left in the processing list by a crashed worker are put
// back on the queue when a consumer starts. A redelivered event for a job
// that is no longer PENDING is ignored by the pipeline.
package redisqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/dvloznov/smart-ledger/internal/jobs"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const popTimeout = 2 * time.Second

// Queue pushes events with LPUSH and consumes them with BLMOVE into a
// processing list.
type Queue struct {
	rdb        *goredis.Client
	key        string
	processing string
	workers    int
	log        zerolog.Logger

	wg     sync.WaitGroup
	mu     sync.Mutex
	cancel context.CancelFunc
}

// New connects to redisURL and verifies the connection.
func New(ctx context.Context, redisURL, key string, workers int, log zerolog.Logger) (*Queue, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return NewWithClient(rdb, key, workers, log), nil
}

// NewWithClient wraps an existing client.
func NewWithClient(rdb *goredis.Client, key string, workers int, log zerolog.Logger) *Queue {
	if key == "" {
		key = "smart-ledger:ingest"
	}
	if workers <= 0 {
		workers = 1
	}
	return &Queue{rdb: rdb, key: key, processing: key + ":processing", workers: workers, log: log}
}

// Publish implements jobs.Publisher.
func (q *Queue) Publish(ctx context.Context, ev jobs.IngestEvent) error {
	if ev.EnqueuedAt.IsZero() {
		ev.EnqueuedAt = time.Now().UTC()
	}
	raw, err := encode(ev)
	if err != nil {
		return err
	}
	if err := q.rdb.LPush(ctx, q.key, raw).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Start implements jobs.Consumer.
func (q *Queue) Start(ctx context.Context, handler jobs.Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancel != nil {
		return errors.New("queue already started")
	}

	if err := q.requeueInFlight(ctx); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	q.cancel = cancel
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, i, handler)
	}
	return nil
}

// requeueInFlight moves events left in the processing list back onto the
// queue.
func (q *Queue) requeueInFlight(ctx context.Context) error {
	moved := 0
	for {
		err := q.rdb.LMove(ctx, q.processing, q.key, "RIGHT", "RIGHT").Err()
		if errors.Is(err, goredis.Nil) {
			break
		}
		if err != nil {
			return fmt.Errorf("requeue in-flight events: %w", err)
		}
		moved++
	}
	if moved > 0 {
		q.log.Warn().Int("events", moved).Msg("Requeued in-flight ingest events")
	}
	return nil
}

func (q *Queue) worker(ctx context.Context, id int, handler jobs.Handler) {
	defer q.wg.Done()

	for ctx.Err() == nil {
		raw, err := q.rdb.BLMove(ctx, q.key, q.processing, "RIGHT", "LEFT", popTimeout).Result()
		if errors.Is(err, goredis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			q.log.Warn().Err(err).Int("worker", id).Msg("redis blmove failed")
			time.Sleep(time.Second)
			continue
		}

		q.process(ctx, id, raw, handler)
		q.ack(ctx, raw)
	}
}

func (q *Queue) process(ctx context.Context, worker int, raw string, handler jobs.Handler) {
	ev, err := decode(raw)
	if err != nil {
		q.log.Warn().Err(err).Msg("Dropping malformed ingest event")
		return
	}

	defer func() {
		if r := recover(); r != nil {
			q.log.Error().
				Str("job_id", ev.JobID).
				Int("worker", worker).
				Interface("panic", r).
				Bytes("stack", debug.Stack()).
				Msg("Ingest handler panicked")
		}
	}()

	if err := handler(ctx, ev); err != nil {
		q.log.Warn().
			Err(err).
			Str("job_id", ev.JobID).
			Str("event", ev.EventName()).
			Int("worker", worker).
			Msg("Ingest handler failed")
	}
}

// ack removes a handled event from the processing list.
func (q *Queue) ack(ctx context.Context, raw string) {
	if err := q.rdb.LRem(context.WithoutCancel(ctx), q.processing, 1, raw).Err(); err != nil {
		q.log.Warn().Err(err).Msg("Failed to remove handled event from processing list")
	}
}

// Stop implements jobs.Consumer.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	cancel := q.cancel
	q.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()

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

// Close implements jobs.Publisher.
func (q *Queue) Close() error {
	if err := q.Stop(context.Background()); err != nil {
		return err
	}
	return q.rdb.Close()
}

func encode(ev jobs.IngestEvent) (string, error) {
	raw, err := json.Marshal(ev)
	if err != nil {
		return "", fmt.Errorf("encode event: %w", err)
	}
	return string(raw), nil
}

func decode(raw string) (jobs.IngestEvent, error) {
	var ev jobs.IngestEvent
	if err := json.Unmarshal([]byte(raw), &ev); err != nil {
		return jobs.IngestEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if ev.JobID == "" {
		return jobs.IngestEvent{}, errors.New("decode event: missing jobId")
	}
	return ev, nil
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
