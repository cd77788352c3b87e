package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-tenant-core/internal/dto"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/repository/memory"
	"github.com/noah-isme/edu-tenant-core/internal/service"
)

func newSettingsHandler(t *testing.T) (*SettingsHandler, *memory.SettingsRepository) {
	t.Helper()
	repo := memory.NewSettingsRepository(memory.NewStore())
	settings := service.NewSettingsService(repo, nil, nil, nil, nil)
	return NewSettingsHandler(settings, service.NewPolicyService(settings, nil)), repo
}

func TestSettingsHandlerResolveMergesScopes(t *testing.T) {
	h, repo := newSettingsHandler(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.GlobalScope(), "company", models.Document{"name": "Edu", "city": "Jakarta"}))
	require.NoError(t, repo.Set(ctx, models.TenantScope("tenant-1"), "company", models.Document{"name": "GVH"}))

	c, w := newTestContext(t, http.MethodGet, "/settings/company", nil, tenantClaims())
	c.Params = gin.Params{{Key: "key", Value: "company"}}
	h.Resolve(c)

	require.Equal(t, http.StatusOK, w.Code)
	var doc dto.SettingsDocument
	decode(t, w, &doc)
	assert.Equal(t, "GVH", doc.Value["name"])
	assert.Equal(t, "Jakarta", doc.Value["city"])
}

func TestSettingsHandlerResolveInvalidKey(t *testing.T) {
	h, _ := newSettingsHandler(t)
	c, w := newTestContext(t, http.MethodGet, "/settings/Bad-Key", nil, tenantClaims())
	c.Params = gin.Params{{Key: "key", Value: "Bad-Key"}}
	h.Resolve(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	env := decode(t, w, nil)
	require.NotNil(t, env.Error)
	assert.Equal(t, "INVALID_ARGUMENT", env.Error.Code)
}

func TestSettingsHandlerSaveAndPatch(t *testing.T) {
	h, repo := newSettingsHandler(t)
	claims := tenantClaims(models.PermissionManageSettings)

	c, w := newTestContext(t, http.MethodPut, "/settings/company", map[string]interface{}{"name": "GVH", "city": "Bandung"}, claims)
	c.Params = gin.Params{{Key: "key", Value: "company"}}
	h.Save(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "tenant:tenant-1", env.Meta["scope"])

	c, w = newTestContext(t, http.MethodPatch, "/settings/company", map[string]interface{}{"city": "Bogor"}, claims)
	c.Params = gin.Params{{Key: "key", Value: "company"}}
	h.Patch(c)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := repo.Get(context.Background(), models.TenantScope("tenant-1"), "company")
	require.NoError(t, err)
	assert.Equal(t, "GVH", stored.Value["name"])
	assert.Equal(t, "Bogor", stored.Value["city"])
}

func TestSettingsHandlerRejectsNonObjectPayload(t *testing.T) {
	h, _ := newSettingsHandler(t)
	c, w := newTestContext(t, http.MethodPut, "/settings/company", `["a"]`, tenantClaims(models.PermissionManageSettings))
	c.Params = gin.Params{{Key: "key", Value: "company"}}
	h.Save(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSettingsHandlerGlobalWriteNeedsPlatform(t *testing.T) {
	h, _ := newSettingsHandler(t)
	global := &models.AccessClaims{Permissions: []string{models.PermissionManageSettings}}

	c, w := newTestContext(t, http.MethodPut, "/settings/general.features", map[string]interface{}{"calendar_export": true}, global)
	c.Params = gin.Params{{Key: "key", Value: models.SettingsKeyFeatures}}
	h.Save(c)
	assert.Equal(t, http.StatusForbidden, w.Code)

	platform := &models.AccessClaims{Permissions: []string{models.PermissionManagePlatform}}
	c, w = newTestContext(t, http.MethodPut, "/settings/general.features", map[string]interface{}{"calendar_export": true}, platform)
	c.Params = gin.Params{{Key: "key", Value: models.SettingsKeyFeatures}}
	h.Save(c)
	require.Equal(t, http.StatusOK, w.Code)
	env := decode(t, w, nil)
	assert.Equal(t, "global", env.Meta["scope"])
}

func TestSettingsHandlerList(t *testing.T) {
	h, repo := newSettingsHandler(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.TenantScope("tenant-1"), "company", models.Document{"name": "GVH"}))
	require.NoError(t, repo.Set(ctx, models.TenantScope("tenant-2"), "company", models.Document{"name": "Other"}))

	c, w := newTestContext(t, http.MethodGet, "/settings", nil, tenantClaims())
	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var docs []dto.SettingsDocument
	decode(t, w, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "GVH", docs[0].Value["name"])
}

func TestSettingsHandlerPolicies(t *testing.T) {
	h, repo := newSettingsHandler(t)
	ctx := context.Background()
	require.NoError(t, repo.Set(ctx, models.TenantScope("tenant-1"), models.SettingsKeyUserManagement, models.Document{"parent_sign_in": false}))
	require.NoError(t, repo.Set(ctx, models.TenantScope("tenant-1"), models.SettingsKeyFeatures, models.Document{"calendar_export": true}))

	c, w := newTestContext(t, http.MethodGet, "/policies/sign-in/parent", nil, tenantClaims())
	c.Params = gin.Params{{Key: "role", Value: "parent"}}
	h.RoleSignIn(c)
	require.Equal(t, http.StatusOK, w.Code)
	var flag dto.FlagResponse
	decode(t, w, &flag)
	assert.False(t, flag.Enabled)

	c, w = newTestContext(t, http.MethodGet, "/policies/features/calendar_export", nil, tenantClaims())
	c.Params = gin.Params{{Key: "feature", Value: "calendar_export"}}
	h.Feature(c)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &flag)
	assert.True(t, flag.Enabled)

	c, w = newTestContext(t, http.MethodGet, "/policies/authentication", nil, tenantClaims())
	h.AuthenticationPolicy(c)
	require.Equal(t, http.StatusOK, w.Code)
	var policy service.AuthenticationPolicy
	decode(t, w, &policy)
	assert.Equal(t, service.DefaultAuthenticationPolicy, policy)
}
