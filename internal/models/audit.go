package models

import "time"

// Audit actions recorded for calendar transitions and settings writes.
const (
	AuditActionActivate    = "ACTIVATE"
	AuditActionClose       = "CLOSE"
	AuditActionReopen      = "REOPEN"
	AuditActionArchive     = "ARCHIVE"
	AuditActionDelete      = "DELETE"
	AuditActionForceDelete = "FORCE_DELETE"
	AuditActionRestore     = "RESTORE"
	AuditActionSettingsSet = "SETTINGS_SET"
)

// Audit target types.
const (
	AuditTargetSession  = "academic_session"
	AuditTargetTerm     = "term"
	AuditTargetSettings = "settings"
)

// AuditEvent is an append-only trail record.
type AuditEvent struct {
	ID         string    `db:"id" json:"id"`
	TenantID   *string   `db:"tenant_id" json:"tenant_id,omitempty"`
	Actor      string    `db:"actor" json:"actor"`
	Action     string    `db:"action" json:"action"`
	TargetType string    `db:"target_type" json:"target_type"`
	TargetID   string    `db:"target_id" json:"target_id"`
	Reason     *string   `db:"reason" json:"reason,omitempty"`
	Payload    Document  `db:"payload" json:"payload,omitempty"`
	OccurredAt time.Time `db:"occurred_at" json:"occurred_at"`
}
