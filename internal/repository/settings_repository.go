package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/pkg/database"
)

const settingsColumns = `scope_key, scope_level, tenant_id, branch_id, key, value, updated_at`

// SettingsRepository persists settings documents, one row per (scope, key).
type SettingsRepository struct {
	db *sqlx.DB
}

// NewSettingsRepository constructs the repository.
func NewSettingsRepository(db *sqlx.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// Get fetches the document stored for key at scope. It returns sql.ErrNoRows
// when nothing is stored.
func (r *SettingsRepository) Get(ctx context.Context, scope models.Scope, key string) (*models.SettingsRecord, error) {
	const query = `SELECT ` + settingsColumns + ` FROM settings WHERE scope_key = $1 AND key = $2`
	var record models.SettingsRecord
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &record, query, scope.Key(), key); err != nil {
		return nil, err
	}
	return &record, nil
}

// Set overwrites the whole document for scope and key.
func (r *SettingsRepository) Set(ctx context.Context, scope models.Scope, key string, doc models.Document) error {
	const query = `INSERT INTO settings (scope_key, scope_level, tenant_id, branch_id, key, value, updated_at)
VALUES (:scope_key, :scope_level, :tenant_id, :branch_id, :key, :value, :updated_at)
ON CONFLICT (scope_key, key)
DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`
	record := models.NewSettingsRecord(scope, key, doc)
	record.UpdatedAt = time.Now().UTC()
	if _, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, record); err != nil {
		return fmt.Errorf("upsert settings %s/%s: %w", scope.Key(), key, err)
	}
	return nil
}

// InsertIfAbsent stores doc only when the scope has no document for key yet.
func (r *SettingsRepository) InsertIfAbsent(ctx context.Context, scope models.Scope, key string, doc models.Document) (bool, error) {
	const query = `INSERT INTO settings (scope_key, scope_level, tenant_id, branch_id, key, value, updated_at)
VALUES (:scope_key, :scope_level, :tenant_id, :branch_id, :key, :value, :updated_at)
ON CONFLICT (scope_key, key) DO NOTHING`
	record := models.NewSettingsRecord(scope, key, doc)
	record.UpdatedAt = time.Now().UTC()
	res, err := sqlx.NamedExecContext(ctx, database.Conn(ctx, r.db), query, record)
	if err != nil {
		return false, fmt.Errorf("seed settings %s/%s: %w", scope.Key(), key, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("seed settings rows affected: %w", err)
	}
	return affected > 0, nil
}

// ListByScope returns every document stored at scope ordered by key.
func (r *SettingsRepository) ListByScope(ctx context.Context, scope models.Scope) ([]models.SettingsRecord, error) {
	const query = `SELECT ` + settingsColumns + ` FROM settings WHERE scope_key = $1 ORDER BY key ASC`
	var records []models.SettingsRecord
	if err := sqlx.SelectContext(ctx, database.Conn(ctx, r.db), &records, query, scope.Key()); err != nil {
		return nil, fmt.Errorf("list settings for %s: %w", scope.Key(), err)
	}
	return records, nil
}
