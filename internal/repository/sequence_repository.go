package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-tenant-core/pkg/database"
)

// SequenceRepository issues per tenant, id type and year counters.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs the repository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// Next advances the counter and returns the value just claimed. The first call
// for a (tenant, id type, year) returns 1.
func (r *SequenceRepository) Next(ctx context.Context, tenantID, idType string, year int) (int64, error) {
	const query = `INSERT INTO identifier_sequences (tenant_id, id_type, year, last_value, updated_at)
VALUES ($1, $2, $3, 1, $4)
ON CONFLICT (tenant_id, id_type, year)
DO UPDATE SET last_value = identifier_sequences.last_value + 1, updated_at = EXCLUDED.updated_at
RETURNING last_value`
	var value int64
	if err := sqlx.GetContext(ctx, database.Conn(ctx, r.db), &value, query, tenantID, idType, year, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("next sequence %s/%s/%d: %w", tenantID, idType, year, err)
	}
	return value, nil
}
