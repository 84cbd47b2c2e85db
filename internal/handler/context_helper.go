package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-archive-api/internal/middleware"
	"github.com/noah-isme/sma-archive-api/internal/models"
	appErrors "github.com/noah-isme/sma-archive-api/pkg/errors"
	"github.com/noah-isme/sma-archive-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext describes the caller for audit records. Unauthenticated callers get an
// actor without a user id.
func actorFromContext(c *gin.Context) models.Actor {
	actor := models.Actor{IPAddress: c.ClientIP(), UserAgent: c.Request.UserAgent()}
	if claims := claimsFromContext(c); claims != nil {
		actor.UserID = claims.UserID
		actor.Role = claims.Role
	}
	return actor
}

// fail writes the error envelope. Server-side failures are attached to the context so the
// request logger records the cause the client never sees.
func fail(c *gin.Context, err error) {
	if appErrors.FromError(err).Status >= 500 {
		_ = c.Error(err)
	}
	response.Error(c, err)
}
