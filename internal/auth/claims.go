package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the payload shape issued by the banking backend on login and OTP success.
// The registered claims carry sub (username), iat and exp; the rest are private claims.
// Role is the numeric code understood by internal/rbac.
type Claims struct {
	jwt.RegisteredClaims

	UserID    int64  `json:"userId"`
	Email     string `json:"email,omitempty"`
	Username  string `json:"username,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Role      int    `json:"role"`
}

// Name returns the username claim, falling back to the subject.
func (c Claims) Name() string {
	if c.Username != "" {
		return c.Username
	}
	return c.Subject
}

// Expiry returns the exp claim, or the zero time when absent.
func (c Claims) Expiry() time.Time {
	if c.ExpiresAt == nil {
		return time.Time{}
	}
	return c.ExpiresAt.Time
}

// Expired reports exp <= now. A token without exp is treated as expired.
func (c Claims) Expired(now time.Time) bool {
	if c.ExpiresAt == nil {
		return true
	}
	return !c.ExpiresAt.Time.After(now)
}
