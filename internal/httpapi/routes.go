package httpapi

import (
	"strconv"

	"banking-portal/internal/auth"
	"banking-portal/internal/rbac"

	"github.com/gin-gonic/gin"
)

// RouteOptions holds the knobs Register needs beyond the handlers.
type RouteOptions struct {
	Cookie         CookieOptions
	LoginPerMinute int
	LoginBurst     int
}

// Register wires the gateway API under /v1.
// Keep this free of business logic; handlers delegate to internal modules.
func (h Handlers) Register(r gin.IRouter, opts RouteOptions) {
	v1 := r.Group("/v1")
	v1.Use(ClientSession(h.Sessions, opts.Cookie))

	authGroup := v1.Group("/auth")
	{
		limited := RateLimit(opts.LoginPerMinute, opts.LoginBurst)
		authGroup.POST("/login", limited, h.Login)
		authGroup.POST("/otp", limited, h.ValidateOTP)
		authGroup.POST("/otp/resend", limited, h.ResendOTP)
		authGroup.POST("/logout", h.Logout)
	}

	v1.GET("/session", h.GetSession)
	v1.POST("/session/extend", h.ExtendSession)
	v1.POST("/navigation/check", h.CheckNavigation)

	v1.POST("/password/evaluate", h.EvaluatePassword)
	v1.GET("/password/generate", h.GeneratePassword)

	protected := []gin.HandlerFunc{RequireSession()}
	if h.Verifier != nil {
		protected = append(protected, auth.RequireAccessTokenFrom(h.Verifier, StoredToken))
	}

	adminGroup := v1.Group("/audit", protected...)
	adminGroup.Use(rbac.RequireAnyRole(rbac.NameAdmin))
	{
		adminGroup.GET("/events", h.SecurityEvents)
	}

	if h.Proxy != nil {
		v1.Any("/api/*path", append(protected, h.ProxyAPI)...)
	}
}

func parseLimit(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, strconv.ErrSyntax
	}
	if n > 1000 {
		n = 1000
	}
	return n, nil
}
