package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/database"
)

const termColumns = `id, academic_session_id, tenant_id, name, start_date, end_date, status, is_current, ordinal_number, deleted_at, created_at, updated_at`

// TermRepository handles persistence for academic terms.
type TermRepository struct {
	db *sqlx.DB
}

// NewTermRepository instantiates a term repository.
func NewTermRepository(db *sqlx.DB) *TermRepository {
	return &TermRepository{db: db}
}

// List returns terms matching the filter ordered by ordinal number.
func (r *TermRepository) List(ctx context.Context, filter models.TermFilter) ([]models.Term, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{filter.TenantID}
	if filter.AcademicSessionID != "" {
		conditions = append(conditions, fmt.Sprintf("academic_session_id = $%d", len(args)+1))
		args = append(args, filter.AcademicSessionID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if !filter.WithTrashed {
		conditions = append(conditions, "deleted_at IS NULL")
	}

	query := fmt.Sprintf("SELECT %s FROM terms WHERE %s ORDER BY ordinal_number ASC, start_date ASC", termColumns, strings.Join(conditions, " AND "))
	var terms []models.Term
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &terms, query, args...); err != nil {
		return nil, fmt.Errorf("list terms: %w", err)
	}
	return terms, nil
}

// FindByID loads a tenant term. Inside a transaction the row is locked.
func (r *TermRepository) FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.Term, error) {
	query := `SELECT ` + termColumns + ` FROM terms WHERE tenant_id = $1 AND id = $2`
	if !withTrashed {
		query += " AND deleted_at IS NULL"
	}
	query += lockClause(ctx)

	var term models.Term
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &term, query, tenantID, id); err != nil {
		return nil, err
	}
	return &term, nil
}

// FindCurrent returns the current term of a session.
func (r *TermRepository) FindCurrent(ctx context.Context, sessionID string) (*models.Term, error) {
	const query = `SELECT ` + termColumns + ` FROM terms WHERE academic_session_id = $1 AND is_current = TRUE AND deleted_at IS NULL LIMIT 1`
	var term models.Term
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &term, query, sessionID); err != nil {
		return nil, err
	}
	return &term, nil
}

// Create inserts a new term record.
func (r *TermRepository) Create(ctx context.Context, term *models.Term) error {
	if term.ID == "" {
		term.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if term.CreatedAt.IsZero() {
		term.CreatedAt = now
	}
	term.UpdatedAt = now

	const query = `INSERT INTO terms (id, academic_session_id, tenant_id, name, start_date, end_date, status, is_current, ordinal_number, deleted_at, created_at, updated_at)
VALUES (:id, :academic_session_id, :tenant_id, :name, :start_date, :end_date, :status, :is_current, :ordinal_number, :deleted_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, term); err != nil {
		return fmt.Errorf("create term: %w", err)
	}
	return nil
}

// Update writes every mutable column of the term.
func (r *TermRepository) Update(ctx context.Context, term *models.Term) error {
	term.UpdatedAt = time.Now().UTC()
	const query = `UPDATE terms SET name = :name, start_date = :start_date, end_date = :end_date, status = :status, is_current = :is_current,
ordinal_number = :ordinal_number, deleted_at = :deleted_at, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	res, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, term)
	if err != nil {
		return fmt.Errorf("update term: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// LockSession takes row locks on every term of a session in id order.
func (r *TermRepository) LockSession(ctx context.Context, sessionID string) error {
	const query = `SELECT id FROM terms WHERE academic_session_id = $1 ORDER BY id FOR UPDATE`
	var ids []string
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &ids, query, sessionID); err != nil {
		return fmt.Errorf("lock session terms: %w", err)
	}
	return nil
}

// ClearCurrent unsets is_current on the session's terms except exceptID.
func (r *TermRepository) ClearCurrent(ctx context.Context, sessionID, exceptID string) (int64, error) {
	const query = `UPDATE terms SET is_current = FALSE, updated_at = $1 WHERE academic_session_id = $2 AND is_current = TRUE AND id <> $3`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, time.Now().UTC(), sessionID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("clear current term: %w", err)
	}
	return res.RowsAffected()
}

// FindNext returns the live term of the session that starts after the date.
func (r *TermRepository) FindNext(ctx context.Context, sessionID string, after time.Time, excludeID string) (*models.Term, error) {
	const query = `SELECT ` + termColumns + ` FROM terms
WHERE academic_session_id = $1 AND id <> $2 AND deleted_at IS NULL AND start_date > $3 ORDER BY start_date ASC LIMIT 1`
	var term models.Term
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &term, query, sessionID, excludeID, after); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find next term: %w", err)
	}
	return &term, nil
}

// ExistsNewerLive reports whether a later-starting term of the session is active or current.
func (r *TermRepository) ExistsNewerLive(ctx context.Context, sessionID string, after time.Time, excludeID string) (bool, error) {
	const query = `SELECT 1 FROM terms WHERE academic_session_id = $1 AND id <> $2 AND deleted_at IS NULL
AND start_date > $3 AND (status = 'active' OR is_current = TRUE) LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &exists, query, sessionID, excludeID, after); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check newer terms: %w", err)
	}
	return true, nil
}

// CountBySession counts the session's terms, trashed ones included when asked.
func (r *TermRepository) CountBySession(ctx context.Context, sessionID string, withTrashed bool) (int, error) {
	query := `SELECT COUNT(*) FROM terms WHERE academic_session_id = $1`
	if !withTrashed {
		query += " AND deleted_at IS NULL"
	}
	var count int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count session terms: %w", err)
	}
	return count, nil
}

// CountActiveCurrent counts live terms of the session that are active and current.
func (r *TermRepository) CountActiveCurrent(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COUNT(*) FROM terms WHERE academic_session_id = $1 AND deleted_at IS NULL AND status = 'active' AND is_current = TRUE`
	var count int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &count, query, sessionID); err != nil {
		return 0, fmt.Errorf("count active current terms: %w", err)
	}
	return count, nil
}

// MaxOrdinal returns the highest ordinal number used in the session.
func (r *TermRepository) MaxOrdinal(ctx context.Context, sessionID string) (int, error) {
	const query = `SELECT COALESCE(MAX(ordinal_number), 0) FROM terms WHERE academic_session_id = $1`
	var max int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &max, query, sessionID); err != nil {
		return 0, fmt.Errorf("max term ordinal: %w", err)
	}
	return max, nil
}

// SoftDeleteMany trashes the listed terms, skipping current ones.
func (r *TermRepository) SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE terms SET deleted_at = $1, updated_at = $1
WHERE tenant_id = $2 AND id = ANY($3) AND is_current = FALSE AND deleted_at IS NULL`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, at, tenantID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("soft delete terms: %w", err)
	}
	return res.RowsAffected()
}

// ForceDelete removes a term permanently.
func (r *TermRepository) ForceDelete(ctx context.Context, tenantID, id string) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM terms WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("force delete term: %w", err)
	}
	return nil
}
