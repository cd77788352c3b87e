package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/dto"
	"github.com/noah-isme/edu-tenant-core/internal/middleware"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

type settingsService interface {
	Resolve(ctx context.Context, key string, tenant *models.Tenant) (models.Document, error)
	Save(ctx context.Context, key string, doc models.Document, tenant *models.Tenant) error
	Patch(ctx context.Context, key string, partial models.Document, tenant *models.Tenant) (models.Document, error)
	Stored(ctx context.Context, tenant *models.Tenant) ([]models.SettingsRecord, error)
}

type policyService interface {
	AuthenticationPolicy(ctx context.Context, tenant *models.Tenant) (service.AuthenticationPolicy, error)
	RoleSignInAllowed(ctx context.Context, tenant *models.Tenant, role string) (bool, error)
	FeatureEnabled(ctx context.Context, tenant *models.Tenant, feature string) (bool, error)
}

// SettingsHandler exposes settings documents and the policies read from them.
type SettingsHandler struct {
	settings settingsService
	policies policyService
}

// NewSettingsHandler builds a new handler.
func NewSettingsHandler(settings settingsService, policies policyService) *SettingsHandler {
	return &SettingsHandler{settings: settings, policies: policies}
}

// Resolve godoc
// @Summary Resolve a settings document
// @Description Merges global, tenant and branch documents for the caller's tenant.
// @Tags Settings
// @Produce json
// @Param key path string true "Settings key"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [get]
func (h *SettingsHandler) Resolve(c *gin.Context) {
	tenant := tenantFromContext(c)
	key := c.Param("key")
	doc, err := h.settings.Resolve(c.Request.Context(), key, tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.SettingsDocument{Key: key, Scope: "resolved", Value: doc}, nil)
}

// List godoc
// @Summary List documents stored at the caller's own scope
// @Tags Settings
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /settings [get]
func (h *SettingsHandler) List(c *gin.Context) {
	records, err := h.settings.Stored(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	items := make([]dto.SettingsDocument, 0, len(records))
	for _, record := range records {
		items = append(items, dto.SettingsDocument{Key: record.Key, Scope: record.ScopeKey, Value: record.Value})
	}
	respond(c, http.StatusOK, items, nil)
}

// Save godoc
// @Summary Replace the settings document at the caller's scope
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Settings key"
// @Param payload body object true "Settings document"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [put]
func (h *SettingsHandler) Save(c *gin.Context) {
	tenant, ok := h.writeScope(c)
	if !ok {
		return
	}
	var doc models.Document
	if !bindJSON(c, &doc, "settings payload must be a JSON object") {
		return
	}
	key := c.Param("key")
	if err := h.settings.Save(c.Request.Context(), key, doc, tenant); err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.SettingsDocument{Key: key, Scope: models.ScopeFor(tenant).Key(), Value: doc}, nil)
}

// Patch godoc
// @Summary Merge fields into the settings document at the caller's scope
// @Tags Settings
// @Accept json
// @Produce json
// @Param key path string true "Settings key"
// @Param payload body object true "Partial settings document"
// @Success 200 {object} response.Envelope
// @Router /settings/{key} [patch]
func (h *SettingsHandler) Patch(c *gin.Context) {
	tenant, ok := h.writeScope(c)
	if !ok {
		return
	}
	var partial models.Document
	if !bindJSON(c, &partial, "settings payload must be a JSON object") {
		return
	}
	key := c.Param("key")
	merged, err := h.settings.Patch(c.Request.Context(), key, partial, tenant)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.SettingsDocument{Key: key, Scope: models.ScopeFor(tenant).Key(), Value: merged}, nil)
}

// AuthenticationPolicy godoc
// @Summary Effective authentication policy
// @Tags Policies
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /policies/authentication [get]
func (h *SettingsHandler) AuthenticationPolicy(c *gin.Context) {
	policy, err := h.policies.AuthenticationPolicy(c.Request.Context(), tenantFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, policy, nil)
}

// RoleSignIn godoc
// @Summary Whether users of a role may sign in
// @Tags Policies
// @Produce json
// @Param role path string true "Role"
// @Success 200 {object} response.Envelope
// @Router /policies/sign-in/{role} [get]
func (h *SettingsHandler) RoleSignIn(c *gin.Context) {
	role := c.Param("role")
	allowed, err := h.policies.RoleSignInAllowed(c.Request.Context(), tenantFromContext(c), role)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.FlagResponse{Name: role, Enabled: allowed}, nil)
}

// Feature godoc
// @Summary Whether a feature toggle is on
// @Tags Policies
// @Produce json
// @Param feature path string true "Feature"
// @Success 200 {object} response.Envelope
// @Router /policies/features/{feature} [get]
func (h *SettingsHandler) Feature(c *gin.Context) {
	feature := c.Param("feature")
	enabled, err := h.policies.FeatureEnabled(c.Request.Context(), tenantFromContext(c), feature)
	if err != nil {
		response.Error(c, err)
		return
	}
	respond(c, http.StatusOK, dto.FlagResponse{Name: feature, Enabled: enabled}, nil)
}

// writeScope returns the tenant a write applies to. Global writes need the
// platform permission.
func (h *SettingsHandler) writeScope(c *gin.Context) (*models.Tenant, bool) {
	claims := middleware.Claims(c)
	tenant := claims.Tenant()
	if tenant == nil && !claims.Can(models.PermissionManagePlatform) {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "global settings require platform access"))
		return nil, false
	}
	middleware.SetMeta(c, "scope", models.ScopeFor(tenant).Key())
	return tenant, true
}
