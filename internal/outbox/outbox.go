// Package outbox runs best-effort side effects (notification emails, audit writes)
// on a bounded worker pool, off the request path. A task failure is retried, then
// logged and dropped; it never reaches the operation that enqueued it.
package outbox

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Dispatcher configuration limits
const (
	DefaultWorkers     = 4
	DefaultQueueSize   = 256
	DefaultMaxAttempts = 3
	DefaultBackoff     = 500 * time.Millisecond
	DefaultTaskTimeout = 30 * time.Second

	MaxWorkers   = 256
	MaxQueueSize = 10000
)

var (
	// ErrQueueFull is returned by Enqueue when the queue has no free slot.
	ErrQueueFull = errors.New("outbox queue is full")
	// ErrNotRunning is returned by Enqueue before Start or after Stop.
	ErrNotRunning = errors.New("outbox is not running")
)

// TaskFunc is the body of a side effect.
type TaskFunc func(ctx context.Context) error

// Enqueuer accepts fire-and-forget tasks.
type Enqueuer interface {
	Enqueue(kind string, fn TaskFunc) error
}

// Config controls the worker pool.
type Config struct {
	Workers     int
	QueueSize   int
	MaxAttempts int
	Backoff     time.Duration
	TaskTimeout time.Duration
}

// normalize validates cfg and fills zero values with defaults.
func (c Config) normalize() (Config, error) {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	} else if c.Workers > MaxWorkers {
		return c, fmt.Errorf("worker count (%d) exceeds maximum (%d)", c.Workers, MaxWorkers)
	}
	if c.QueueSize <= 0 {
		c.QueueSize = DefaultQueueSize
	} else if c.QueueSize > MaxQueueSize {
		return c, fmt.Errorf("queue size (%d) exceeds maximum (%d)", c.QueueSize, MaxQueueSize)
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	} else if c.Backoff == 0 {
		c.Backoff = DefaultBackoff
	}
	if c.TaskTimeout <= 0 {
		c.TaskTimeout = DefaultTaskTimeout
	}
	return c, nil
}

type task struct {
	id         string
	kind       string
	fn         TaskFunc
	enqueuedAt time.Time
}

// Stats is a point-in-time snapshot of dispatcher counters.
type Stats struct {
	Queued    int   `json:"queued"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
	Retried   int64 `json:"retried"`
}

// Dispatcher is a bounded worker pool with a FIFO queue.
type Dispatcher struct {
	cfg    Config
	logger *zap.Logger

	mu      sync.RWMutex
	running bool
	ctx     context.Context
	cancel  context.CancelFunc
	queue   chan *task
	wg      sync.WaitGroup

	statsMu sync.Mutex
	stats   Stats
}

// New creates a dispatcher. Invalid configuration falls back to defaults with a
// warning.
func New(cfg Config, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	normalized, err := cfg.normalize()
	if err != nil {
		logger.Warn("outbox configuration invalid, using defaults", zap.Error(err))
		normalized, _ = Config{}.normalize()
	}
	return &Dispatcher{
		cfg:    normalized,
		logger: logger.Named("outbox"),
		queue:  make(chan *task, normalized.QueueSize),
	}
}

// Start launches the workers. The dispatcher stops when ctx is cancelled or Stop
// is called.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return fmt.Errorf("outbox already running")
	}
	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}
	d.logger.Info("outbox started",
		zap.Int("workers", d.cfg.Workers),
		zap.Int("queue_size", d.cfg.QueueSize))
	return nil
}

// Stop stops accepting tasks and waits for queued tasks to drain until ctx expires.
func (d *Dispatcher) Stop(ctx context.Context) error {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = false
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		d.logger.Info("outbox stopped")
		return nil
	case <-ctx.Done():
		d.cancel()
		d.logger.Warn("outbox shutdown timed out", zap.Int("abandoned", len(d.queue)))
		return ctx.Err()
	}
}

// Enqueue schedules fn. It never blocks.
func (d *Dispatcher) Enqueue(kind string, fn TaskFunc) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if !d.running {
		return ErrNotRunning
	}
	t := &task{id: uuid.NewString(), kind: kind, fn: fn, enqueuedAt: time.Now()}
	select {
	case d.queue <- t:
		return nil
	default:
		d.logger.Warn("outbox queue full, dropping task", zap.String("kind", kind))
		d.statsMu.Lock()
		d.stats.Failed++
		d.statsMu.Unlock()
		return ErrQueueFull
	}
}

// Stats returns current counters.
func (d *Dispatcher) Stats() Stats {
	d.statsMu.Lock()
	defer d.statsMu.Unlock()
	s := d.stats
	s.Queued = len(d.queue)
	return s
}

func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	for t := range d.queue {
		d.process(id, t)
	}
}

func (d *Dispatcher) process(workerID int, t *task) {
	log := d.logger.With(
		zap.String("task_id", t.id),
		zap.String("kind", t.kind),
		zap.Int("worker_id", workerID))

	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		err := d.run(t)
		if err == nil {
			d.statsMu.Lock()
			d.stats.Succeeded++
			d.statsMu.Unlock()
			log.Debug("outbox task completed",
				zap.Int("attempt", attempt),
				zap.Duration("latency", time.Since(t.enqueuedAt)))
			return
		}

		if attempt == d.cfg.MaxAttempts {
			d.statsMu.Lock()
			d.stats.Failed++
			d.statsMu.Unlock()
			log.Error("outbox task failed, giving up", zap.Int("attempts", attempt), zap.Error(err))
			return
		}

		d.statsMu.Lock()
		d.stats.Retried++
		d.statsMu.Unlock()
		log.Warn("outbox task failed, retrying", zap.Int("attempt", attempt), zap.Error(err))

		select {
		case <-time.After(d.cfg.Backoff * time.Duration(attempt)):
		case <-d.ctx.Done():
			log.Warn("outbox cancelled before retry", zap.Error(err))
			return
		}
	}
}

func (d *Dispatcher) run(t *task) (err error) {
	ctx, cancel := context.WithTimeout(d.ctx, d.cfg.TaskTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task panicked: %v", r)
		}
	}()
	return t.fn(ctx)
}

// Inline runs tasks synchronously on the caller's goroutine, logging failures. It
// is used by CLI commands and tests where a worker pool is unnecessary.
type Inline struct {
	Logger *zap.Logger
}

// Enqueue runs fn immediately and always returns nil.
func (i Inline) Enqueue(kind string, fn TaskFunc) error {
	if err := fn(context.Background()); err != nil {
		logger := i.Logger
		if logger == nil {
			logger = zap.NewNop()
		}
		logger.Warn("best-effort task failed", zap.String("kind", kind), zap.Error(err))
	}
	return nil
}
