package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/jobs"
)

// AsyncAuditSink hands events to a worker pool so that audit writes never
// hold up the request that produced them. Events still buffered at Stop are
// written before Stop returns.
type AsyncAuditSink struct {
	queue *jobs.Queue[models.AuditEvent]
	now   func() time.Time
}

// NewAsyncAuditSink wraps sink. Call Start before recording and Stop on
// shutdown.
func NewAsyncAuditSink(sink AuditSink, cfg jobs.QueueConfig) *AsyncAuditSink {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	handler := func(ctx context.Context, event models.AuditEvent) error {
		return sink.Record(ctx, event)
	}
	return &AsyncAuditSink{
		queue: jobs.NewQueue[models.AuditEvent]("audit", handler, cfg),
		now:   time.Now,
	}
}

// Start launches the workers.
func (s *AsyncAuditSink) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop flushes pending events.
func (s *AsyncAuditSink) Stop() {
	s.queue.Stop()
}

// Record enqueues event. The actor and timestamp are fixed now, while the
// request context is still available.
func (s *AsyncAuditSink) Record(ctx context.Context, event models.AuditEvent) error {
	if event.Actor == "" {
		event.Actor = ActorFromContext(ctx)
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now().UTC()
	}
	return s.queue.Enqueue(event)
}

// Stats reports delivered, retried and dropped events.
func (s *AsyncAuditSink) Stats() jobs.Stats {
	return s.queue.Stats()
}
