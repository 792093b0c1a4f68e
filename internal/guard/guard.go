// Package guard decides whether a client may enter a portal view.
//
// Decisions are made from the stored bearer token's decoded claims only. This is
// a routing convenience for the portal UI; the backend (and the API proxy, when a
// signing secret is configured) remain the enforcement points.
package guard

import (
	"context"
	"log/slog"
	"net/url"
	"time"

	"banking-portal/internal/auth"
	"banking-portal/internal/rbac"
)

// LoginPath is where hard guard failures send the client.
const LoginPath = "/login"

// CredentialStore is the client's stored credential.
type CredentialStore interface {
	// Token returns the stored bearer token, or "" when none is stored.
	Token(ctx context.Context) (string, error)
	// Clear removes the token and every session-scoped value.
	Clear(ctx context.Context) error
}

type Reason string

const (
	ReasonOK            Reason = "ok"
	ReasonPublic        Reason = "public"
	ReasonUnknownRoute  Reason = "unknown_route"
	ReasonNoToken       Reason = "no_token"
	ReasonUndecodable   Reason = "undecodable"
	ReasonExpired       Reason = "expired"
	ReasonMissingUser   Reason = "missing_user"
	ReasonForbiddenRole Reason = "forbidden_role"
)

// Decision is the guard outcome. When Allowed is false, Redirect is set.
type Decision struct {
	Allowed  bool   `json:"allowed"`
	Redirect string `json:"redirect,omitempty"`
	ReturnTo string `json:"returnTo,omitempty"`
	Reason   Reason `json:"reason"`
}

type Guard struct {
	routes *RouteTable
	clock  func() time.Time
	log    *slog.Logger
}

func New(routes *RouteTable, log *slog.Logger) *Guard {
	if routes == nil {
		routes = DefaultRoutes()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Guard{routes: routes, clock: time.Now, log: log}
}

// WithClock overrides the time source; intended for tests.
func (g *Guard) WithClock(now func() time.Time) *Guard {
	g.clock = now
	return g
}

func (g *Guard) Routes() *RouteTable { return g.routes }

// Navigate resolves path against the route table and runs CanActivate for guarded routes.
func (g *Guard) Navigate(ctx context.Context, store CredentialStore, path string) Decision {
	res := g.routes.Resolve(path)
	switch {
	case !res.Known:
		return Decision{Redirect: g.routes.Login(), Reason: ReasonUnknownRoute}
	case res.Public:
		return Decision{Allowed: true, Reason: ReasonPublic}
	}
	return g.CanActivate(ctx, store, res.Path, res.Roles)
}

// CanActivate runs the decision table for a protected view.
//
// Hard failures (no token, undecodable, expired, no userId) clear the store and
// redirect to the login page with the requested path as returnUrl. A role
// mismatch redirects to the role's landing page and leaves the store alone.
// An empty requiredRoles means any authenticated client may enter.
func (g *Guard) CanActivate(ctx context.Context, store CredentialStore, requested string, requiredRoles []string) Decision {
	token, err := store.Token(ctx)
	if err != nil {
		g.log.Warn("guard: credential read failed", "err", err)
		token = ""
	}
	if token == "" {
		return g.deny(ctx, store, requested, ReasonNoToken)
	}

	claims, ok := auth.Decode(token)
	if !ok {
		return g.deny(ctx, store, requested, ReasonUndecodable)
	}
	if claims.Expired(g.clock()) {
		return g.deny(ctx, store, requested, ReasonExpired)
	}
	if claims.UserID == 0 {
		return g.deny(ctx, store, requested, ReasonMissingUser)
	}

	if len(requiredRoles) > 0 {
		role := rbac.Role(claims.Role)
		if !rbac.Matches(role, requiredRoles) {
			g.log.Debug("guard: role not permitted", "path", requested, "role", claims.Role, "required", requiredRoles)
			return Decision{Redirect: rbac.LandingPage(role), Reason: ReasonForbiddenRole}
		}
	}
	return Decision{Allowed: true, Reason: ReasonOK}
}

func (g *Guard) deny(ctx context.Context, store CredentialStore, requested string, reason Reason) Decision {
	if err := store.Clear(ctx); err != nil {
		g.log.Warn("guard: credential clear failed", "err", err)
	}
	g.log.Debug("guard: redirecting to login", "path", requested, "reason", reason)
	return Decision{
		Redirect: LoginRedirect(g.routes.Login(), requested),
		ReturnTo: requested,
		Reason:   reason,
	}
}

// LoginRedirect builds the login URL carrying the originally requested path.
func LoginRedirect(login, requested string) string {
	if requested == "" {
		return login
	}
	return login + "?" + url.Values{"returnUrl": {requested}}.Encode()
}
