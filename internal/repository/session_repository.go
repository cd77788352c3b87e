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

const sessionColumns = `id, tenant_id, name, start_date, end_date, status, is_current, deleted_at, created_at, updated_at`

// SessionRepository handles persistence for academic sessions.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository instantiates a session repository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// List returns tenant sessions matching the filter, newest first.
func (r *SessionRepository) List(ctx context.Context, filter models.SessionFilter) ([]models.AcademicSession, int, error) {
	conditions := []string{"tenant_id = $1"}
	args := []interface{}{filter.TenantID}

	switch {
	case filter.OnlyTrashed:
		conditions = append(conditions, "deleted_at IS NOT NULL")
	case !filter.WithTrashed:
		conditions = append(conditions, "deleted_at IS NULL")
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	base := "FROM academic_sessions WHERE " + strings.Join(conditions, " AND ")

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY start_date DESC LIMIT %d OFFSET %d", sessionColumns, base, size, offset)
	conn := database.Conn(ctx, r.db)

	var sessions []models.AcademicSession
	if err := sqlx.SelectContext(ctx, conn, &sessions, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list sessions: %w", err)
	}

	var total int
	if err := sqlx.GetContext(ctx, conn, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count sessions: %w", err)
	}
	return sessions, total, nil
}

// FindByID loads a tenant session. Inside a transaction the row is locked.
func (r *SessionRepository) FindByID(ctx context.Context, tenantID, id string, withTrashed bool) (*models.AcademicSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM academic_sessions WHERE tenant_id = $1 AND id = $2`
	if !withTrashed {
		query += " AND deleted_at IS NULL"
	}
	query += lockClause(ctx)

	var session models.AcademicSession
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &session, query, tenantID, id); err != nil {
		return nil, err
	}
	return &session, nil
}

// FindCurrent returns the tenant's current session.
func (r *SessionRepository) FindCurrent(ctx context.Context, tenantID string) (*models.AcademicSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM academic_sessions WHERE tenant_id = $1 AND is_current = TRUE AND deleted_at IS NULL LIMIT 1`
	var session models.AcademicSession
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &session, query, tenantID); err != nil {
		return nil, err
	}
	return &session, nil
}

// LockTenant takes row locks on every session of the tenant, in id order, so
// concurrent current-session swaps serialise.
func (r *SessionRepository) LockTenant(ctx context.Context, tenantID string) error {
	const query = `SELECT id FROM academic_sessions WHERE tenant_id = $1 ORDER BY id FOR UPDATE`
	var ids []string
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &ids, query, tenantID); err != nil {
		return fmt.Errorf("lock tenant sessions: %w", err)
	}
	return nil
}

// Create inserts a new session record.
func (r *SessionRepository) Create(ctx context.Context, session *models.AcademicSession) error {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	session.UpdatedAt = now

	const query = `INSERT INTO academic_sessions (id, tenant_id, name, start_date, end_date, status, is_current, deleted_at, created_at, updated_at)
VALUES (:id, :tenant_id, :name, :start_date, :end_date, :status, :is_current, :deleted_at, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, session); err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// Update writes every mutable column of the session.
func (r *SessionRepository) Update(ctx context.Context, session *models.AcademicSession) error {
	session.UpdatedAt = time.Now().UTC()
	const query = `UPDATE academic_sessions SET name = :name, start_date = :start_date, end_date = :end_date, status = :status,
is_current = :is_current, deleted_at = :deleted_at, updated_at = :updated_at WHERE id = :id AND tenant_id = :tenant_id`
	res, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, session)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ClearCurrent unsets is_current on every tenant session except exceptID.
func (r *SessionRepository) ClearCurrent(ctx context.Context, tenantID, exceptID string) (int64, error) {
	const query = `UPDATE academic_sessions SET is_current = FALSE, updated_at = $1 WHERE tenant_id = $2 AND is_current = TRUE AND id <> $3`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, time.Now().UTC(), tenantID, exceptID)
	if err != nil {
		return 0, fmt.Errorf("clear current session: %w", err)
	}
	return res.RowsAffected()
}

// FindNext returns the live session that starts right after the given date.
func (r *SessionRepository) FindNext(ctx context.Context, tenantID string, after time.Time, excludeID string) (*models.AcademicSession, error) {
	const query = `SELECT ` + sessionColumns + ` FROM academic_sessions
WHERE tenant_id = $1 AND id <> $2 AND deleted_at IS NULL AND start_date > $3 ORDER BY start_date ASC LIMIT 1`
	var session models.AcademicSession
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &session, query, tenantID, excludeID, after); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find next session: %w", err)
	}
	return &session, nil
}

// ExistsNewerLive reports whether a later-starting session is active or current.
func (r *SessionRepository) ExistsNewerLive(ctx context.Context, tenantID string, after time.Time, excludeID string) (bool, error) {
	const query = `SELECT 1 FROM academic_sessions WHERE tenant_id = $1 AND id <> $2 AND deleted_at IS NULL
AND start_date > $3 AND (status = 'active' OR is_current = TRUE) LIMIT 1`
	var exists int
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &exists, query, tenantID, excludeID, after); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check newer sessions: %w", err)
	}
	return true, nil
}

// SoftDeleteMany trashes the listed sessions, skipping current ones, and
// returns the number of rows actually deleted.
func (r *SessionRepository) SoftDeleteMany(ctx context.Context, tenantID string, ids []string, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE academic_sessions SET deleted_at = $1, updated_at = $1
WHERE tenant_id = $2 AND id = ANY($3) AND is_current = FALSE AND deleted_at IS NULL`
	res, err := database.Conn(ctx, r.db).ExecContext(ctx, query, at, tenantID, pq.Array(ids))
	if err != nil {
		return 0, fmt.Errorf("soft delete sessions: %w", err)
	}
	return res.RowsAffected()
}

// ForceDelete removes a session permanently.
func (r *SessionRepository) ForceDelete(ctx context.Context, tenantID, id string) error {
	if _, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM academic_sessions WHERE tenant_id = $1 AND id = $2`, tenantID, id); err != nil {
		return fmt.Errorf("force delete session: %w", err)
	}
	return nil
}

func lockClause(ctx context.Context) string {
	if database.InTx(ctx) {
		return " FOR UPDATE"
	}
	return ""
}
