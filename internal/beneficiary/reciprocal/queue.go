package reciprocal

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"caredesk/internal/beneficiary/metrics"
)

var ErrQueueClosed = errors.New("reciprocal queue closed")

// QueueDispatcher hands tasks to a pool of in-process workers through a bounded
// queue. Each task is retried with exponential backoff; Close drains the queue.
type QueueDispatcher struct {
	applier TaskApplier
	logger  *slog.Logger
	metrics *metrics.Metrics

	workers     int
	size        int
	maxAttempts int
	backoff     time.Duration

	queue chan queued
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

type queued struct {
	ctx  context.Context
	task Task
}

type QueueOption func(*QueueDispatcher)

func WithWorkers(n int) QueueOption {
	return func(d *QueueDispatcher) {
		if n > 0 {
			d.workers = n
		}
	}
}

func WithQueueSize(n int) QueueOption {
	return func(d *QueueDispatcher) {
		if n > 0 {
			d.size = n
		}
	}
}

// WithRetry sets the attempts per task and the delay before the first retry.
func WithRetry(attempts int, backoff time.Duration) QueueOption {
	return func(d *QueueDispatcher) {
		if attempts > 0 {
			d.maxAttempts = attempts
		}
		d.backoff = backoff
	}
}

func WithQueueLogger(logger *slog.Logger) QueueOption {
	return func(d *QueueDispatcher) {
		d.logger = logger
	}
}

func WithQueueMetrics(m *metrics.Metrics) QueueOption {
	return func(d *QueueDispatcher) {
		d.metrics = m
	}
}

// NewQueueDispatcher starts the workers. Call Close on shutdown.
func NewQueueDispatcher(applier TaskApplier, opts ...QueueOption) *QueueDispatcher {
	d := &QueueDispatcher{
		applier:     applier,
		logger:      slog.Default(),
		workers:     2,
		size:        256,
		maxAttempts: 5,
		backoff:     100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queue = make(chan queued, d.size)
	for range d.workers {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

// Dispatch enqueues tasks, waiting for room until ctx is done. Tasks keep the
// caller's context values but not its cancellation.
func (d *QueueDispatcher) Dispatch(ctx context.Context, tasks []Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	detached := context.WithoutCancel(ctx)
	for _, t := range tasks {
		select {
		case d.queue <- queued{ctx: detached, task: t}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops accepting tasks and blocks until queued tasks are applied.
func (d *QueueDispatcher) Close() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *QueueDispatcher) run() {
	defer d.wg.Done()
	for q := range d.queue {
		d.applyWithRetry(q.ctx, q.task)
	}
}

func (d *QueueDispatcher) applyWithRetry(ctx context.Context, task Task) {
	delay := d.backoff
	var err error
	for attempt := 1; attempt <= d.maxAttempts; attempt++ {
		if err = d.applier.Apply(ctx, task); err == nil {
			return
		}
		if attempt < d.maxAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	if d.metrics != nil {
		d.metrics.IncrementReciprocalEdge(metrics.EdgeFailed)
	}
	d.logger.ErrorContext(ctx, "reciprocal edge not written",
		"request_id", task.RequestID,
		"target_id", task.TargetID.String(),
		"relation", string(task.Edge.RelationType),
		"attempts", d.maxAttempts,
		"error", err,
	)
}
