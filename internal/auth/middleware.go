package auth

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const authorizationHeader = "Authorization"
const bearerPrefix = "Bearer "

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, bool) {
	raw := strings.TrimSpace(header)
	if raw == "" || !strings.HasPrefix(raw, bearerPrefix) {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(raw, bearerPrefix))
	return tok, tok != ""
}

// TokenLookup finds the bearer token for a request.
type TokenLookup func(c *gin.Context) (string, bool)

// FromHeader reads the token from the Authorization header.
func FromHeader(c *gin.Context) (string, bool) {
	return BearerToken(c.GetHeader(authorizationHeader))
}

// RequireAccessToken verifies a signed bearer token from the Authorization header
// and injects identity into request context.
// It does not perform RBAC checks; those belong to internal/rbac.
func RequireAccessToken(m *Manager) gin.HandlerFunc {
	return RequireAccessTokenFrom(m, FromHeader)
}

// RequireAccessTokenFrom is RequireAccessToken with a custom token source, used when
// the gateway holds the credential on behalf of the browser.
func RequireAccessTokenFrom(m *Manager, lookup TokenLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := lookup(c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims, err := m.Verify(tok, time.Now())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		ctx := WithIdentity(c.Request.Context(), claims.UserID, claims.Role, claims.Name())
		c.Request = c.Request.WithContext(ctx)

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)

		c.Next()
	}
}
