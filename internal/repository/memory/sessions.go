package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// SessionRepository is the in-memory academic session table.
type SessionRepository struct {
	store *Store
}

// NewSessionRepository binds a session repository to store.
func NewSessionRepository(store *Store) *SessionRepository {
	return &SessionRepository{store: store}
}

func (r *SessionRepository) tenantSessions(tenantID string) []models.AcademicSession {
	var out []models.AcademicSession
	for _, session := range r.store.state.sessions {
		if session.TenantID == tenantID {
			out = append(out, session)
		}
	}
	return out
}

// List mirrors the SQL repository: newest first, paginated.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AcademicSession, int, error) {
	defer r.store.lock(ctx)()
	var matched []models.AcademicSession
	for _, session := range r.tenantSessions(filter.TenantID) {
		switch {
		case filter.OnlyTrashed && !session.Trashed():
			continue
		case !filter.OnlyTrashed && !filter.WithTrashed && session.Trashed():
			continue
		}
		if filter.Status != "" && session.Status != filter.Status {
			continue
		}
		matched = append(matched, session)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].StartDate.After(matched[j].StartDate) })

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	total := len(matched)
	start := (page - 1) * size
	if start > total {
		start = total
	}
	end := start + size
	if end > total {
		end = total
	}
	return matched[start:end], total, nil
}

// FindByID returns sql.ErrNoRows for unknown, foreign or (unless asked) trashed sessions.
func (r *SessionRepository) FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.AcademicSession, error) {
	defer r.store.lock(ctx)()
	session, ok := r.store.state.sessions[id]
	if !ok || session.TenantID != tenantID || (!withTrashed && session.Trashed()) {
		return nil, sql.ErrNoRows
	}
	return &session, nil
}

// FindCurrent returns the tenant's current session.
func (r *SessionRepository) FindCurrent(ctx context.Context, tenantID string) (*models.AcademicSession, error) {
	defer r.store.lock(ctx)()
	for _, session := range r.tenantSessions(tenantID) {
		if session.IsCurrent && !session.Trashed() {
			return &session, nil
		}
	}
	return nil, sql.ErrNoRows
}

// LockTenant is a no-op: the transaction already holds the store lock.
func (r *SessionRepository) LockTenant(ctx context.Context, tenantID string) error {
	return nil
}

// Create stores a new session.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	defer r.store.lock(ctx)()
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now
	row := *session
	row.Terms = nil
	r.store.state.sessions[row.ID] = row
	return nil
}

// Update replaces the stored session.
func (r *SessionRepository) Update(ctx context.Context, session *models.AcademicSession) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.state.sessions[session.ID]; !ok {
		return sql.ErrNoRows
	}
	session.UpdatedAt = time.Now().UTC()
	row := *session
	row.Terms = nil
	r.store.state.sessions[row.ID] = row
	return nil
}

// ClearCurrent unsets is_current on every tenant session except exceptID.
func (r *SessionRepository) ClearCurrent(ctx context.Context, tenantID, exceptID string) (int64, error) {
	defer r.store.lock(ctx)()
	var affected int64
	for id, session := range r.store.state.sessions {
		if session.TenantID == tenantID && session.IsCurrent && id != exceptID {
			session.IsCurrent = false
			session.UpdatedAt = time.Now().UTC()
			r.store.state.sessions[id] = session
			affected++
		}
	}
	return affected, nil
}

// FindNext returns the earliest live session starting after the date, or nil.
func (r *SessionRepository) FindNext(ctx context.Context, tenantID string, after time.Time, excludeID string) (*models.AcademicSession, error) {
	defer r.store.lock(ctx)()
	var next *models.AcademicSession
	for _, session := range r.tenantSessions(tenantID) {
		if session.ID == excludeID || session.Trashed() || !session.StartDate.After(after) {
			continue
		}
		if next == nil || session.StartDate.Before(next.StartDate) {
			s := session
			next = &s
		}
	}
	return next, nil
}

// ExistsNewerLive reports whether a later-starting session is active or current.
func (r *SessionRepository) ExistsNewerLive(ctx context.Context, tenantID string, after time.Time, excludeID string) (bool, error) {
	defer r.store.lock(ctx)()
	for _, session := range r.tenantSessions(tenantID) {
		if session.ID == excludeID || session.Trashed() || !session.StartDate.After(after) {
			continue
		}
		if session.Status == models.CalendarStatusActive || session.IsCurrent {
			return true, nil
		}
	}
	return false, nil
}

// SoftDeleteMany trashes the listed non-current sessions.
func (r *SessionRepository) SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error) {
	defer r.store.lock(ctx)()
	var affected int64
	for _, id := range ids {
		session, ok := r.store.state.sessions[id]
		if !ok || session.TenantID != tenantID || session.IsCurrent || session.Trashed() {
			continue
		}
		deletedAt := at
		session.DeletedAt = &deletedAt
		session.UpdatedAt = at
		r.store.state.sessions[id] = session
		affected++
	}
	return affected, nil
}

// ForceDelete removes the session.
func (r *SessionRepository) ForceDelete(ctx context.Context, tenantID, id string) error {
	defer r.store.lock(ctx)()
	if session, ok := r.store.state.sessions[id]; ok && session.TenantID == tenantID {
		delete(r.store.state.sessions, id)
	}
	return nil
}
