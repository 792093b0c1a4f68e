package httpapi

import (
	"context"
	"net/http"

	"banking-portal/internal/auth"
	"banking-portal/internal/session"
	"banking-portal/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	ClientCookie = "sbs_client"

	ctxClientID = "client_id"
	ctxSession  = "session"
)

// CookieOptions controls the client id cookie.
type CookieOptions struct {
	Secure bool
	MaxAge int
}

// ClientSession identifies the browser by its sbs_client cookie (issuing one
// if needed), attaches its session manager and counts the request as activity.
func ClientSession(reg *session.Registry, opts CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := c.Cookie(ClientCookie)
		if err != nil || uuid.Validate(id) != nil {
			id = uuid.NewString()
			c.SetSameSite(http.SameSiteLaxMode)
			c.SetCookie(ClientCookie, id, opts.MaxAge, "/", "", opts.Secure, true)
		}

		m, err := reg.Get(c.Request.Context(), id)
		if err != nil {
			logger.FromGin(c).Error("session lookup failed", "err", err)
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "session store unavailable"})
			return
		}
		c.Set(ctxClientID, id)
		c.Set(ctxSession, m)
		reg.Activity(id)
		c.Next()
	}
}

func clientID(c *gin.Context) string { return c.GetString(ctxClientID) }

func sessionFrom(c *gin.Context) *session.Manager {
	if v, ok := c.Get(ctxSession); ok {
		if m, ok := v.(*session.Manager); ok {
			return m
		}
	}
	return nil
}

// RequireSession rejects requests without a live session and puts the
// session identity on the request context for rbac checks.
func RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		m := sessionFrom(c)
		if m == nil || !m.Valid() {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session expired", "redirect": session.LoginPath})
			return
		}
		rec := m.Current()
		var (
			userID   int64
			role     int
			username string
		)
		if rec.UserID != nil {
			userID = *rec.UserID
		}
		if rec.Role != nil {
			role = int(*rec.Role)
		}
		if rec.Username != nil {
			username = *rec.Username
		}
		c.Request = c.Request.WithContext(auth.WithIdentity(c.Request.Context(), userID, role, username))
		c.Next()
	}
}

// StoredToken is an auth.TokenLookup reading the token the gateway holds for
// the client.
func StoredToken(c *gin.Context) (string, bool) {
	m := sessionFrom(c)
	if m == nil {
		return "", false
	}
	tok, err := m.Store().Token(c.Request.Context())
	return tok, err == nil && tok != ""
}

// sessionCredentials routes credential clearing through the manager so its
// timers and record stay in step with the store.
type sessionCredentials struct {
	m *session.Manager
}

func (s sessionCredentials) Token(ctx context.Context) (string, error) {
	return s.m.Store().Token(ctx)
}

func (s sessionCredentials) Clear(ctx context.Context) error {
	_, err := s.m.Logout(ctx)
	return err
}

func (s sessionCredentials) ClearToken(ctx context.Context) error { return s.Clear(ctx) }
