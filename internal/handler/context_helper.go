package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/middleware"
	"github.com/noah-isme/edu-tenant-core/internal/models"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

func tenantFromContext(c *gin.Context) *models.Tenant {
	return middleware.Claims(c).Tenant()
}

// requireTenant writes a 403 and returns nil when the token has no tenant.
func requireTenant(c *gin.Context) *models.Tenant {
	tenant := tenantFromContext(c)
	if tenant == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "a tenant scoped token is required"))
	}
	return tenant
}

func bindJSON(c *gin.Context, dst interface{}, message string) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		response.Error(c, invalidPayload(err, message))
		return false
	}
	return true
}

func invalidPayload(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message)
}

func respond(c *gin.Context, status int, data interface{}, pagination *models.Pagination) {
	response.JSON(c, status, data, pagination, middleware.ExtractMeta(c))
}
