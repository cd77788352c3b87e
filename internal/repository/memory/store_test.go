package memory

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/models"
)

func TestWithinTxRollsBackOnError(t *testing.T) {
	store := NewStore()
	sessions := NewSessionRepository(store)
	settings := NewSettingsRepository(store)
	ctx := context.Background()

	boom := errors.New("boom")
	err := store.WithinTx(ctx, func(ctx context.Context) error {
		require.NoError(t, sessions.Create(ctx, &models.AcademicSession{ID: "s-1", TenantID: "t1", Name: "2025/2026"}))
		require.NoError(t, settings.Set(ctx, models.GlobalScope(), "themes", models.Document{"mode": "dark"}))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = sessions.FindByID(ctx, "t1", "s-1", true)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	_, err = settings.Get(ctx, models.GlobalScope(), "themes")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestWithinTxNestedJoinsOuter(t *testing.T) {
	store := NewStore()
	seq := NewSequenceRepository(store)

	err := store.WithinTx(context.Background(), func(ctx context.Context) error {
		return store.WithinTx(ctx, func(ctx context.Context) error {
			_, err := seq.Next(ctx, "t1", "student", 2025)
			return err
		})
	})
	require.NoError(t, err)

	value, err := seq.Next(context.Background(), "t1", "student", 2025)
	require.NoError(t, err)
	assert.EqualValues(t, 2, value)
}

func TestSequenceConcurrentNext(t *testing.T) {
	store := NewStore()
	seq := NewSequenceRepository(store)

	var wg sync.WaitGroup
	seen := make(chan int64, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := seq.Next(context.Background(), "t1", "invoice", 2025)
			assert.NoError(t, err)
			seen <- v
		}()
	}
	wg.Wait()
	close(seen)

	unique := map[int64]bool{}
	for v := range seen {
		unique[v] = true
	}
	assert.Len(t, unique, 50)
}

func TestSettingsRepositoryReturnsCopies(t *testing.T) {
	store := NewStore()
	repo := NewSettingsRepository(store)
	ctx := context.Background()

	require.NoError(t, repo.Set(ctx, models.TenantScope("t1"), "company", models.Document{"name": "Green Hill"}))
	record, err := repo.Get(ctx, models.TenantScope("t1"), "company")
	require.NoError(t, err)
	record.Value["name"] = "mutated"

	again, err := repo.Get(ctx, models.TenantScope("t1"), "company")
	require.NoError(t, err)
	assert.Equal(t, "Green Hill", again.Value["name"])

	inserted, err := repo.InsertIfAbsent(ctx, models.TenantScope("t1"), "company", models.Document{"name": "other"})
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestUpdateMissingRowReturnsNoRows(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := NewSessionRepository(store).Update(ctx, &models.AcademicSession{ID: "gone", TenantID: "t1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	err = NewTermRepository(store).Update(ctx, &models.Term{ID: "gone", TenantID: "t1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
}
