package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
	"github.com/noah-isme/sma-archive-api/pkg/response"
)

// RequireRoles rejects requests whose claims carry none of roles. It must run after JWT.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		claims, ok := value.(*models.JWTClaims)
		if !exists || !ok || claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
