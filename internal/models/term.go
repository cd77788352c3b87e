package models

import "time"

// Term models a subdivision of an academic session.
type Term struct {
	ID                string         `db:"id" json:"id"`
	AcademicSessionID string         `db:"academic_session_id" json:"academic_session_id"`
	TenantID          string         `db:"tenant_id" json:"tenant_id"`
	Name              string         `db:"name" json:"name"`
	StartDate         time.Time      `db:"start_date" json:"start_date"`
	EndDate           time.Time      `db:"end_date" json:"end_date"`
	Status            CalendarStatus `db:"status" json:"status"`
	IsCurrent         bool           `db:"is_current" json:"is_current"`
	OrdinalNumber     int            `db:"ordinal_number" json:"ordinal_number"`
	DeletedAt         *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt         time.Time      `db:"updated_at" json:"updated_at"`
}

// Trashed reports whether the term is soft deleted.
func (t *Term) Trashed() bool {
	return t.DeletedAt != nil
}

// TermFilter defines filters supported by term listings.
type TermFilter struct {
	TenantID          string
	AcademicSessionID string
	Status            CalendarStatus
	WithTrashed       bool
}

// AutoTermNames are assigned, in order, to the terms generated with a session.
var AutoTermNames = []string{"First Term", "Second Term", "Third Term"}
