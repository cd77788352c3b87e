package memory

import (
	"context"
	"fmt"
)

// SequenceRepository hands out per tenant, id type and year counters.
type SequenceRepository struct {
	store *Store
}

// NewSequenceRepository binds a sequence repository to store.
func NewSequenceRepository(store *Store) *SequenceRepository {
	return &SequenceRepository{store: store}
}

// Next increments and returns the counter; the first value is 1.
func (r *SequenceRepository) Next(ctx context.Context, tenantID, idType string, year int) (int64, error) {
	defer r.store.lock(ctx)()
	key := fmt.Sprintf("%s|%s|%d", tenantID, idType, year)
	r.store.state.sequences[key]++
	return r.store.state.sequences[key], nil
}
