package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"chathub/pkg/response"
)

// TokenVerifier matches the auth service's Verify.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

const UserIDKey = "user_id"

// RequireAuth validates the bearer token and puts the user ID on the
// context. The websocket endpoint does not use this; its authentication is
// in-band via the setup event.
func RequireAuth(verifier TokenVerifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Fail(c, response.CodeAuthentication, "authorization header is required")
			c.Abort()
			return
		}

		token := strings.TrimPrefix(header, "Bearer ")
		userID, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			response.Fail(c, response.CodeAuthentication, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, userID)
		c.Next()
	}
}

// UserID reads the authenticated user from the gin context.
func UserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}
