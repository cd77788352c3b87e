package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/repository/memory"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
)

type sequenceRepoStub struct {
	err error
}

func (s sequenceRepoStub) Next(ctx context.Context, tenantID, idType string, year int) (int64, error) {
	return 0, s.err
}

func newIdentifierFixture(t *testing.T) (*IdentifierService, *memory.SettingsRepository) {
	t.Helper()
	store := memory.NewStore()
	settingsRepo := memory.NewSettingsRepository(store)
	settings := NewSettingsService(settingsRepo, nil, nil, nil, nil)
	svc := NewIdentifierService(settings, memory.NewSequenceRepository(store), NewMetricsService(), nil)
	svc.now = func() time.Time { return time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC) }
	return svc, settingsRepo
}

func TestGenerateUsesDefaults(t *testing.T) {
	svc, _ := newIdentifierFixture(t)
	ctx := context.Background()
	tenant := &models.Tenant{ID: "t1", Code: "GVH"}

	first, err := svc.Generate(ctx, "student", tenant, 0)
	require.NoError(t, err)
	assert.Equal(t, "STU-2025-0001", first)

	second, err := svc.Generate(ctx, "student", tenant, 0)
	require.NoError(t, err)
	assert.Equal(t, "STU-2025-0002", second)

	invoice, err := svc.Generate(ctx, "invoice", tenant, 2024)
	require.NoError(t, err)
	assert.Equal(t, "INV-2024-000001", invoice)
}

func TestGenerateSequencesAreScoped(t *testing.T) {
	svc, _ := newIdentifierFixture(t)
	ctx := context.Background()

	a, err := svc.Generate(ctx, "staff", &models.Tenant{ID: "t1"}, 2025)
	require.NoError(t, err)
	b, err := svc.Generate(ctx, "staff", &models.Tenant{ID: "t2"}, 2025)
	require.NoError(t, err)
	c, err := svc.Generate(ctx, "staff", &models.Tenant{ID: "t1"}, 2026)
	require.NoError(t, err)

	assert.Equal(t, "STF-2025-0001", a)
	assert.Equal(t, "STF-2025-0001", b)
	assert.Equal(t, "STF-2026-0001", c)
}

func TestGenerateUsesTenantFormatAndPrefix(t *testing.T) {
	svc, repo := newIdentifierFixture(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.TenantScope("t1"), models.SettingsKeyIDFormats, models.Document{
		"student": map[string]interface{}{"pattern": "{SCHOOL}/{PREFIX}/{YEAR}/{SEQUENCE}", "sequence_length": 6},
	}))
	require.NoError(t, repo.Set(ctx, models.GlobalScope(), models.SettingsKeyPrefixes, models.Document{"student": "PUP"}))

	id, err := svc.Generate(ctx, "STUDENT", &models.Tenant{ID: "t1", Code: "GVH"}, 2025)
	require.NoError(t, err)
	assert.Equal(t, "GVH/PUP/2025/000001", id)

	id, err = svc.Generate(ctx, "student", &models.Tenant{ID: "t2"}, 2025)
	require.NoError(t, err)
	assert.Equal(t, "PUP-2025-0001", id)
}

func TestGenerateSchoolFallsBackToTenantID(t *testing.T) {
	svc, repo := newIdentifierFixture(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.GlobalScope(), models.SettingsKeyIDFormats, models.Document{
		"admission": map[string]interface{}{"pattern": "{SCHOOL}-{SEQUENCE}"},
	}))

	id, err := svc.Generate(ctx, "admission", &models.Tenant{ID: "tenant-9"}, 2025)
	require.NoError(t, err)
	assert.Equal(t, "tenant-9-0001", id)
}

func TestGenerateCorruptFormatFallsBack(t *testing.T) {
	svc, repo := newIdentifierFixture(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.TenantScope("t1"), models.SettingsKeyIDFormats, models.Document{
		"student": map[string]interface{}{"pattern": "{PREFIX}-{YEAR}", "sequence_length": 99},
		"staff":   "not-a-map",
	}))
	tenant := &models.Tenant{ID: "t1"}

	id, err := svc.Generate(ctx, "student", tenant, 2025)
	require.NoError(t, err)
	assert.Equal(t, "STU-2025-0001", id)

	id, err = svc.Generate(ctx, "staff", tenant, 2025)
	require.NoError(t, err)
	assert.Equal(t, "STF-2025-0001", id)
}

func TestGenerateRejectsBadInput(t *testing.T) {
	svc, _ := newIdentifierFixture(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		idType string
		tenant *models.Tenant
		year   int
	}{
		{name: "unknown type", idType: "locker", tenant: &models.Tenant{ID: "t1"}},
		{name: "missing tenant", idType: "student"},
		{name: "blank tenant", idType: "student", tenant: &models.Tenant{}},
		{name: "negative year", idType: "student", tenant: &models.Tenant{ID: "t1"}, year: -1},
		{name: "five digit year", idType: "student", tenant: &models.Tenant{ID: "t1"}, year: 10000},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Generate(ctx, tc.idType, tc.tenant, tc.year)
			require.Error(t, err)
			assert.True(t, appErrors.HasCode(err, appErrors.ErrInvalidArgument))
		})
	}
}

func TestGenerateStorageFailure(t *testing.T) {
	settings := NewSettingsService(memory.NewSettingsRepository(memory.NewStore()), nil, nil, nil, nil)
	svc := NewIdentifierService(settings, sequenceRepoStub{err: errors.New("disk full")}, nil, nil)

	_, err := svc.Generate(context.Background(), "receipt", &models.Tenant{ID: "t1"}, 2025)
	require.Error(t, err)
	assert.True(t, appErrors.HasCode(err, appErrors.ErrStorage))
}

func TestGenerateConcurrentCallersGetContiguousSequence(t *testing.T) {
	svc, _ := newIdentifierFixture(t)
	ctx := context.Background()
	tenant := &models.Tenant{ID: "t1"}

	const callers = 100
	ids := make([]string, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ids[i], errs[i] = svc.Generate(ctx, "student", tenant, 2025)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	sort.Strings(ids)
	for i, id := range ids {
		assert.Equal(t, fmt.Sprintf("STU-2025-%04d", i+1), id)
	}
	assert.Len(t, uniqueStrings(ids), callers)
}

func uniqueStrings(values []string) map[string]struct{} {
	out := make(map[string]struct{}, len(values))
	for _, v := range values {
		out[strings.TrimSpace(v)] = struct{}{}
	}
	return out
}
