package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrShuttingDown rejects new work once Shutdown has begun, so producers can
// tell the user instead of silently dropping the item.
var ErrShuttingDown = errors.New("queue is shutting down")

// delivery is one queued message body plus its delivery count, mirroring the
// envelope a managed queue would carry.
type delivery struct {
	Body    []byte
	Attempt int
}

// WorkerQueue is an in-process stand-in for the managed queue in front of the
// pipeline: workers pull serialized bodies, validate them at the boundary, and
// failed items are redelivered after a delay up to an attempt cap.
type WorkerQueue struct {
	proc        Processor
	logger      *slog.Logger
	workers     int
	timeout     time.Duration
	maxAttempts int
	retryDelay  time.Duration

	ch   chan delivery
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool
	// senders tracks in-flight channel sends; Shutdown waits for them before
	// closing the channel.
	senders sync.WaitGroup
}

type Option func(*WorkerQueue)

func WithWorkers(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.ch = make(chan delivery, n)
		}
	}
}
func WithProcessTimeout(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}
func WithMaxAttempts(n int) Option {
	return func(q *WorkerQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}
func WithRetryDelay(d time.Duration) Option {
	return func(q *WorkerQueue) {
		if d >= 0 {
			q.retryDelay = d
		}
	}
}

func NewWorkerQueue(proc Processor, logger *slog.Logger, opts ...Option) *WorkerQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &WorkerQueue{
		proc:        proc,
		logger:      logger,
		workers:     4,
		timeout:     3 * time.Minute,
		maxAttempts: 3,
		retryDelay:  10 * time.Second,
		ch:          make(chan delivery, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *WorkerQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Info("worker started", "worker_id", workerID)

				for d := range q.ch {
					item, err := DecodeWorkItem(d.Body)
					if err != nil {
						// Malformed bodies can never become valid; drop them.
						q.logger.Error("work item rejected", "worker_id", workerID, "error", err)
						continue
					}

					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					err = q.proc.Process(ctx, item)
					cancel()

					if err == nil {
						q.logger.Info("work item processed",
							"worker_id", workerID, "key", item.IdempotencyKey, "attempt", d.Attempt)
						continue
					}

					if d.Attempt < q.maxAttempts {
						q.logger.Warn("work item failed, scheduling redelivery",
							"worker_id", workerID, "key", item.IdempotencyKey,
							"attempt", d.Attempt, "error", err)
						q.redeliver(d)
					} else {
						q.logger.Error("work item dead-lettered",
							"worker_id", workerID, "key", item.IdempotencyKey,
							"attempts", d.Attempt, "error", err)
					}
				}

				q.logger.Info("worker stopped", "worker_id", workerID)
			}(i + 1)
		}
	})
}

func (q *WorkerQueue) redeliver(d delivery) {
	d.Attempt++
	time.AfterFunc(q.retryDelay, func() {
		if !q.beginSend() {
			q.logger.Warn("redelivery dropped: queue is shutting down")
			return
		}
		defer q.senders.Done()
		select {
		case q.ch <- d:
		default:
			q.logger.Warn("queue full, dropping redelivery")
		}
	})
}

// beginSend registers an in-flight send unless the queue is shutting down.
func (q *WorkerQueue) beginSend() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	q.senders.Add(1)
	return true
}

func (q *WorkerQueue) Enqueue(_ context.Context, item WorkItem) error {
	body, err := EncodeWorkItem(item)
	if err != nil {
		return err
	}

	if !q.beginSend() {
		q.logger.Warn("cannot enqueue: queue is shutting down", "key", item.IdempotencyKey)
		return fmt.Errorf("enqueue %s: %w", item.IdempotencyKey, ErrShuttingDown)
	}
	defer q.senders.Done()

	// The blocking backpressure send runs outside the mutex; Shutdown waits
	// for it via the senders group instead of closing the channel under it.
	select {
	case q.ch <- delivery{Body: body, Attempt: 1}:
		q.logger.Info("queued work item", "key", item.IdempotencyKey, "chat_id", item.ChatID)
	default:
		q.logger.Warn("queue full, applying backpressure", "key", item.IdempotencyKey)
		q.ch <- delivery{Body: body, Attempt: 1}
	}
	return nil
}

func (q *WorkerQueue) Shutdown(ctx context.Context) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.mu.Unlock()

	// In-flight sends finish against a still-open channel; workers keep
	// draining, so they land before the close.
	q.senders.Wait()
	close(q.ch)

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("shutdown interrupted by context")
	case <-done:
		q.logger.Info("queue drained, shutdown complete")
	}
}
