package auth

import (
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
)

const userIDKey = "auth.user_id"

// Middleware verifies the bearer token on every /api/ route and rejects
// suspended and deleted accounts before any handler can touch a balance.
// Infra endpoints stay open.
func Middleware(client Client) gin.HandlerFunc {
	disabled := strings.EqualFold(os.Getenv("FCZ_AUTH_DISABLED"), "true") || os.Getenv("FCZ_AUTH_DISABLED") == "1"
	devUser := strings.TrimSpace(os.Getenv("FCZ_AUTH_DEV_USER"))

	return func(c *gin.Context) {
		p := c.Request.URL.Path
		if p == "/healthz" || p == "/readyz" || strings.HasPrefix(p, "/swagger") || p == "/docs" {
			c.Next()
			return
		}
		if !strings.HasPrefix(p, "/api/") {
			c.Next()
			return
		}
		if disabled {
			if devUser != "" {
				c.Set(userIDKey, devUser)
			}
			c.Next()
			return
		}

		header := strings.TrimSpace(c.GetHeader("Authorization"))
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token", "code": "UNAUTHENTICATED"})
			return
		}
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		session, err := client.Verify(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid session token", "code": "UNAUTHENTICATED"})
			return
		}
		switch session.Status {
		case StatusSuspended:
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account suspended", "code": "ACCOUNT_SUSPENDED"})
			return
		case StatusDeleted:
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "account deleted", "code": "ACCOUNT_DELETED"})
			return
		}
		c.Set(userIDKey, session.UserID)
		c.Next()
	}
}

// UserID returns the authenticated user id set by Middleware, or "".
func UserID(c *gin.Context) string {
	v, ok := c.Get(userIDKey)
	if !ok {
		return ""
	}
	id, _ := v.(string)
	return id
}
