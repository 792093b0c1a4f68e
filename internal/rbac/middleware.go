package rbac

import (
	"net/http"

	"banking-portal/internal/auth"

	"github.com/gin-gonic/gin"
)

// RequireAnyRole allows access if the caller's role maps into any of the named roles.
// Identity must already be in the request context (see auth.RequireAccessToken).
// This is the server-side counterpart of the navigation guard.
func RequireAnyRole(names ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		code, err := auth.RoleCode(c.Request.Context())
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "role required"})
			return
		}
		if !Matches(Role(code), names) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}
