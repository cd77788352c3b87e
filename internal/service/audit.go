package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// AuditSink receives append-only audit events.
type AuditSink interface {
	Record(ctx context.Context, event models.AuditEvent) error
}

// recordAudit appends event after the owning operation committed. A failing
// sink is logged and otherwise ignored.
func recordAudit(ctx context.Context, sink AuditSink, logger *zap.Logger, event models.AuditEvent) {
	if sink == nil {
		return
	}
	if event.Actor == "" {
		event.Actor = ActorFromContext(ctx)
	}
	if err := sink.Record(ctx, event); err != nil {
		logger.Warn("audit record failed",
			zap.String("action", event.Action),
			zap.String("target_type", event.TargetType),
			zap.String("target_id", event.TargetID),
			zap.Error(err))
	}
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
