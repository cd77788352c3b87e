package memory

import (
	"context"
	"database/sql"
	"sort"
	"time"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

// SettingsRepository is the in-memory settings store.
type SettingsRepository struct {
	store *Store
}

// NewSettingsRepository binds a settings repository to store.
func NewSettingsRepository(store *Store) *SettingsRepository {
	return &SettingsRepository{store: store}
}

func settingsKey(scope models.Scope, key string) string {
	return scope.Key() + "|" + key
}

// Get returns sql.ErrNoRows when nothing is stored for scope and key.
func (r *SettingsRepository) Get(ctx context.Context, scope models.Scope, key string) (*models.SettingsRecord, error) {
	defer r.store.lock(ctx)()
	record, ok := r.store.state.settings[settingsKey(scope, key)]
	if !ok {
		return nil, sql.ErrNoRows
	}
	record.Value = record.Value.Clone()
	return &record, nil
}

// Set overwrites the document at scope and key.
func (r *SettingsRepository) Set(ctx context.Context, scope models.Scope, key string, doc models.Document) error {
	defer r.store.lock(ctx)()
	record := models.NewSettingsRecord(scope, key, doc.Clone())
	record.UpdatedAt = time.Now().UTC()
	r.store.state.settings[settingsKey(scope, key)] = *record
	return nil
}

// InsertIfAbsent stores doc unless a document already exists.
func (r *SettingsRepository) InsertIfAbsent(ctx context.Context, scope models.Scope, key string, doc models.Document) (bool, error) {
	defer r.store.lock(ctx)()
	id := settingsKey(scope, key)
	if _, ok := r.store.state.settings[id]; ok {
		return false, nil
	}
	record := models.NewSettingsRecord(scope, key, doc.Clone())
	record.UpdatedAt = time.Now().UTC()
	r.store.state.settings[id] = *record
	return true, nil
}

// ListByScope returns the scope's documents ordered by key.
func (r *SettingsRepository) ListByScope(ctx context.Context, scope models.Scope) ([]models.SettingsRecord, error) {
	defer r.store.lock(ctx)()
	scopeKey := scope.Key()
	var records []models.SettingsRecord
	for _, record := range r.store.state.settings {
		if record.ScopeKey == scopeKey {
			record.Value = record.Value.Clone()
			records = append(records, record)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Key < records[j].Key })
	return records, nil
}
