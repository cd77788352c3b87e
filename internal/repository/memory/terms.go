package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// TermRepository is the in-memory term table.
type TermRepository struct {
	store *Store
}

// NewTermRepository binds a term repository to store.
func NewTermRepository(store *Store) *TermRepository {
	return &TermRepository{store: store}
}

func (r *TermRepository) sessionTerms(sessionID string) []models.Term {
	var out []models.Term
	for _, term := range r.store.state.terms {
		if term.AcademicSessionID == sessionID {
			out = append(out, term)
		}
	}
	return out
}

// List returns matching terms ordered by ordinal number.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, error) {
	defer r.store.lock(ctx)()
	var out []models.Term
	for _, term := range r.store.state.terms {
		if term.TenantID != filter.TenantID {
			continue
		}
		if filter.AcademicSessionID != "" && term.AcademicSessionID != filter.AcademicSessionID {
			continue
		}
		if filter.Status != "" && term.Status != filter.Status {
			continue
		}
		if !filter.WithTrashed && term.Trashed() {
			continue
		}
		out = append(out, term)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrdinalNumber != out[j].OrdinalNumber {
			return out[i].OrdinalNumber < out[j].OrdinalNumber
		}
		return out[i].StartDate.Before(out[j].StartDate)
	})
	return out, nil
}

// FindByID returns sql.ErrNoRows for unknown, foreign or (unless asked) trashed terms.
func (r *TermRepository) FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.Term, error) {
	defer r.store.lock(ctx)()
	term, ok := r.store.state.terms[id]
	if !ok || term.TenantID != tenantID || (!withTrashed && term.Trashed()) {
		return nil, sql.ErrNoRows
	}
	return &term, nil
}

// FindCurrent returns the session's current term.
func (r *TermRepository) FindCurrent(ctx context.Context, sessionID string) (*models.Term, error) {
	defer r.store.lock(ctx)()
	for _, term := range r.sessionTerms(sessionID) {
		if term.IsCurrent && !term.Trashed() {
			return &term, nil
		}
	}
	return nil, sql.ErrNoRows
}

// Create stores a new term.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	defer r.store.lock(ctx)()
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now
	r.store.state.terms[term.ID] = *term
	return nil
}

// Update replaces the stored term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	defer r.store.lock(ctx)()
	if _, ok := r.store.state.terms[term.ID]; !ok {
		return sql.ErrNoRows
	}
	term.UpdatedAt = time.Now().UTC()
	r.store.state.terms[term.ID] = *term
	return nil
}

// LockSession is a no-op: the transaction already holds the store lock.
func (r *TermRepository) LockSession(ctx context.Context, sessionID string) error {
	return nil
}

// ClearCurrent unsets is_current on the session's terms except exceptID.
func (r *TermRepository) ClearCurrent(ctx context.Context, sessionID, exceptID string) (int64, error) {
	defer r.store.lock(ctx)()
	var affected int64
	for id, term := range r.store.state.terms {
		if term.AcademicSessionID == sessionID && term.IsCurrent && id != exceptID {
			term.IsCurrent = false
			term.UpdatedAt = time.Now().UTC()
			r.store.state.terms[id] = term
			affected++
		}
	}
	return affected, nil
}

// FindNext returns the earliest live term of the session starting after the date.
func (r *TermRepository) FindNext(ctx context.Context, sessionID string, after time.Time, excludeID string) (*models.Term, error) {
	defer r.store.lock(ctx)()
	var next *models.Term
	for _, term := range r.sessionTerms(sessionID) {
		if term.ID == excludeID || term.Trashed() || !term.StartDate.After(after) {
			continue
		}
		if next == nil || term.StartDate.Before(next.StartDate) {
			t := term
			next = &t
		}
	}
	return next, nil
}

// ExistsNewerLive reports whether a later-starting term is active or current.
func (r *TermRepository) ExistsNewerLive(ctx context.Context, sessionID string, after time.Time, excludeID string) (bool, error) {
	defer r.store.lock(ctx)()
	for _, term := range r.sessionTerms(sessionID) {
		if term.ID == excludeID || term.Trashed() || !term.StartDate.After(after) {
			continue
		}
		if term.Status == models.CalendarStatusActive || term.IsCurrent {
			return true, nil
		}
	}
	return false, nil
}

// CountBySession counts the session's terms.
func (r *TermRepository) CountBySession(ctx context.Context, sessionID string, withTrashed bool) (int, error) {
	defer r.store.lock(ctx)()
	count := 0
	for _, term := range r.sessionTerms(sessionID) {
		if withTrashed || !term.Trashed() {
			count++
		}
	}
	return count, nil
}

// CountActiveCurrent counts live active current terms of the session.
func (r *TermRepository) CountActiveCurrent(ctx context.Context, sessionID string) (int, error) {
	defer r.store.lock(ctx)()
	count := 0
	for _, term := range r.sessionTerms(sessionID) {
		if !term.Trashed() && term.IsCurrent && term.Status == models.CalendarStatusActive {
			count++
		}
	}
	return count, nil
}

// MaxOrdinal returns the highest ordinal used in the session, trashed terms included.
func (r *TermRepository) MaxOrdinal(ctx context.Context, sessionID string) (int, error) {
	defer r.store.lock(ctx)()
	max := 0
	for _, term := range r.sessionTerms(sessionID) {
		if term.OrdinalNumber > max {
			max = term.OrdinalNumber
		}
	}
	return max, nil
}

// SoftDeleteMany trashes the listed non-current terms.
func (r *TermRepository) SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error) {
	defer r.store.lock(ctx)()
	var affected int64
	for _, id := range ids {
		term, ok := r.store.state.terms[id]
		if !ok || term.TenantID != tenantID || term.IsCurrent || term.Trashed() {
			continue
		}
		deletedAt := at
		term.DeletedAt = &deletedAt
		term.UpdatedAt = at
		r.store.state.terms[id] = term
		affected++
	}
	return affected, nil
}

// ForceDelete removes the term.
func (r *TermRepository) ForceDelete(ctx context.Context, tenantID, id string) error {
	defer r.store.lock(ctx)()
	if term, ok := r.store.state.terms[id]; ok && term.TenantID == tenantID {
		delete(r.store.state.terms, id)
	}
	return nil
}
