package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// AuditRepository keeps the audit trail in memory.
type AuditRepository struct {
	store *Store
}

// NewAuditRepository binds an audit repository to store.
func NewAuditRepository(store *Store) *AuditRepository {
	return &AuditRepository{store: store}
}

// Record appends the event.
func (r *AuditRepository) Record(ctx context.Context, event models.AuditEvent) error {
	defer r.store.lock(ctx)()
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	r.store.state.audit = append(r.store.state.audit, event)
	return nil
}

// ListByTarget returns the trail for one entity in insertion order.
func (r *AuditRepository) ListByTarget(ctx context.Context, targetType, targetID string) ([]models.AuditEvent, error) {
	defer r.store.lock(ctx)()
	var events []models.AuditEvent
	for _, event := range r.store.state.audit {
		if event.TargetType == targetType && event.TargetID == targetID {
			events = append(events, event)
		}
	}
	return events, nil
}
