package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/database"
)

// AuditRepository appends audit events to audit_logs.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository constructs the repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Record inserts the event, filling in id and timestamp when unset.
func (r *AuditRepository) Record(ctx context.Context, event models.AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Payload == nil {
		event.Payload = models.Document{}
	}
	const query = `INSERT INTO audit_logs (id, tenant_id, actor, action, target_type, target_id, reason, payload, occurred_at)
VALUES (:id, :tenant_id, :actor, :action, :target_type, :target_id, :reason, :payload, :occurred_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, event); err != nil {
		return fmt.Errorf("record audit %s %s/%s: %w", event.Action, event.TargetType, event.TargetID, err)
	}
	return nil
}

// ListByTarget returns the trail for one entity, oldest first.
func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditEvent, error) {
	const query = `SELECT id, tenant_id, actor, action, target_type, target_id, reason, payload, occurred_at
FROM audit_logs WHERE target_type = $1 AND target_id = $2 ORDER BY occurred_at ASC`
	var events []models.AuditEvent
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &events, query, targetType, targetID); err != nil {
		return nil, fmt.Errorf("list audit for %s/%s: %w", targetType, targetID, err)
	}
	return events, nil
}
