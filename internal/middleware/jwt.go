package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-tenant-core/internal/models"
	"github.com/noah-isme/edu-tenant-core/internal/service"
	appErrors "github.com/noah-isme/edu-tenant-core/pkg/errors"
	"github.com/noah-isme/edu-tenant-core/pkg/logger"
	"github.com/noah-isme/edu-tenant-core/pkg/response"
)

// ContextClaimsKey is the gin context key storing access token claims.
const ContextClaimsKey = "currentClaims"

type tokenValidator interface {
	Validate(token string) (*models.AccessClaims, error)
}

// JWT requires a valid bearer token. The subject becomes the audit actor on
// the request context and the tenant id is exposed to the request logger.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		if claims.TenantID != "" {
			c.Set(logger.TenantContextKey, claims.TenantID)
		}
		c.Request = c.Request.WithContext(service.WithActor(c.Request.Context(), claims.Subject))
		c.Next()
	}
}

// Claims returns the validated claims of the request, if any.
func Claims(c *gin.Context) *models.AccessClaims {
	value, exists := c.Get(ContextClaimsKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.AccessClaims)
	return claims
}
