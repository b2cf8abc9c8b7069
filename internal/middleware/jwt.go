package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/raven-chat/backend/internal/auth"
	"github.com/raven-chat/backend/pkg/response"
)

const (
	// ContextUserID is the key for the acting user's ID (uuid.UUID) in gin context.
	ContextUserID = "user_id"
	// ContextUserEmail is the key for the acting user's email in gin context.
	ContextUserEmail = "user_email"
)

// JWT returns a middleware that validates the bearer token and stores the acting user in context.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Unauthorized(c, "missing authorization header")
			c.Abort()
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			response.Unauthorized(c, "invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(strings.TrimSpace(parts[1]))
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUserEmail, claims.Email)
		c.Next()
	}
}
