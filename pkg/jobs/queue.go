package jobs

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned by Enqueue once the queue no longer accepts work.
var ErrStopped = errors.New("queue stopped")

// ErrFull is returned by Enqueue when the buffer has no room.
var ErrFull = errors.New("queue full")

// Handler processes one item.
type Handler[T any] func(context.Context, T) error

// QueueConfig configures worker pool behaviour.
type QueueConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// Stats counts queue outcomes since start.
type Stats struct {
	Processed uint64
	Retried   uint64
	Dropped   uint64
}

type envelope[T any] struct {
	item    T
	attempt int
}

// Queue is an in-memory worker pool. Items buffered when Stop is called are
// still processed before Stop returns.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     QueueConfig

	items   chan envelope[T]
	wg      sync.WaitGroup
	mu      sync.RWMutex
	started bool
	closed  bool

	processed atomic.Uint64
	retried   atomic.Uint64
	dropped   atomic.Uint64
}

// NewQueue builds a queue that passes items to handler.
func NewQueue[T any](name string, handler Handler[T], cfg QueueConfig) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 64
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		items:   make(chan envelope[T], cfg.BufferSize),
	}
}

// Start launches the workers. ctx is handed to the handler; cancelling it
// does not stop the workers, Stop does.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.started || q.closed {
		return
	}
	q.started = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.wg.Add(1)
		go q.worker(context.WithoutCancel(ctx))
	}
	q.cfg.Logger.Info("queue started", zap.String("queue", q.name), zap.Int("workers", q.cfg.Workers))
}

// Stop rejects new items, drains the buffer and waits for the workers.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.items)
	started := q.started
	q.mu.Unlock()

	if started {
		q.wg.Wait()
	}
	q.cfg.Logger.Info("queue stopped", zap.String("queue", q.name),
		zap.Uint64("processed", q.processed.Load()),
		zap.Uint64("dropped", q.dropped.Load()))
}

// Enqueue adds item without blocking.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if q.closed || !q.started {
		return ErrStopped
	}
	select {
	case q.items <- envelope[T]{item: item}:
		return nil
	default:
		q.dropped.Add(1)
		return ErrFull
	}
}

// Stats returns the current counters.
func (q *Queue[T]) Stats() Stats {
	return Stats{Processed: q.processed.Load(), Retried: q.retried.Load(), Dropped: q.dropped.Load()}
}

func (q *Queue[T]) worker(ctx context.Context) {
	defer q.wg.Done()
	for env := range q.items {
		q.process(ctx, env)
	}
}

// process retries inline so that draining on Stop never loses a retry.
func (q *Queue[T]) process(ctx context.Context, env envelope[T]) {
	for {
		err := q.handler(ctx, env.item)
		if err == nil {
			q.processed.Add(1)
			return
		}
		if env.attempt >= q.cfg.MaxRetries {
			q.dropped.Add(1)
			q.cfg.Logger.Error("job exceeded retries", zap.String("queue", q.name), zap.Int("attempts", env.attempt+1), zap.Error(err))
			return
		}
		env.attempt++
		q.retried.Add(1)
		q.cfg.Logger.Warn("job failed, retrying", zap.String("queue", q.name), zap.Int("attempt", env.attempt), zap.Error(err))
		time.Sleep(q.cfg.RetryDelay * time.Duration(env.attempt))
	}
}
