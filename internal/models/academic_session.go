package models

import "time"

// AcademicSession models a school year owned by a tenant.
type AcademicSession struct {
	ID        string         `db:"id" json:"id"`
	TenantID  string         `db:"tenant_id" json:"tenant_id"`
	Name      string         `db:"name" json:"name"`
	StartDate time.Time      `db:"start_date" json:"start_date"`
	EndDate   time.Time      `db:"end_date" json:"end_date"`
	Status    CalendarStatus `db:"status" json:"status"`
	IsCurrent bool           `db:"is_current" json:"is_current"`
	DeletedAt *time.Time     `db:"deleted_at" json:"deleted_at,omitempty"`
	CreatedAt time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt time.Time      `db:"updated_at" json:"updated_at"`

	Terms []Term `db:"-" json:"terms,omitempty"`
}

// Trashed reports whether the session is soft deleted.
func (s *AcademicSession) Trashed() bool {
	return s.DeletedAt != nil
}

// Contains reports whether [start, end] lies inside the session range.
func (s *AcademicSession) Contains(start, end time.Time) bool {
	return !start.Before(s.StartDate) && !end.After(s.EndDate) && !end.Before(start)
}

// SessionFilter narrows session listings.
type SessionFilter struct {
	TenantID    string
	Status      CalendarStatus
	WithTrashed bool
	OnlyTrashed bool
	Page        int
	PageSize    int
}
