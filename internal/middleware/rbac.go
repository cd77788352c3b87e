package middleware

import (
	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

// RequirePermission allows the request when the token grants any of the
// listed permissions.
func RequirePermission(permissions ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		for _, p := range permissions {
			if claims.Can(p) {
				c.Next()
				return
			}
		}
		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireTenant rejects global tokens on tenant scoped routes.
func RequireTenant() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := Claims(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if claims.Tenant() == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "a tenant scoped token is required"))
			c.Abort()
			return
		}
		c.Next()
	}
}
