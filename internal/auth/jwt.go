package auth

import (
	"errors"
	"time"

	"banking-portal/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrNoSecret    = errors.New("JWT_SECRET is required")
	ErrMissingUser = errors.New("userId missing")
	ErrMissingRole = errors.New("role missing")
)

// Manager issues and verifies signed bearer tokens with the backend's claim shape.
// The gateway uses Verify for enforcement on proxied API calls; Issue exists for
// local development and tests, the backend remains the issuer in production.
type Manager struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

func NewManager(cfg config.AuthConfig) (*Manager, error) {
	if cfg.JWTSecret == "" {
		return nil, ErrNoSecret
	}
	ttl := cfg.TokenTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Manager{
		secret: []byte(cfg.JWTSecret),
		issuer: cfg.JWTIssuer,
		ttl:    ttl,
	}, nil
}

// Identity is what a token is issued for.
type Identity struct {
	UserID    int64
	Username  string
	Email     string
	FirstName string
	LastName  string
	Role      int
}

/* ===================== ISSUE TOKENS ===================== */

func (m *Manager) Issue(now time.Time, id Identity) (string, error) {
	if id.UserID == 0 {
		return "", ErrMissingUser
	}
	if id.Role == 0 {
		return "", ErrMissingRole
	}

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   id.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
			ID:        uuid.NewString(),
		},
		UserID:    id.UserID,
		Email:     id.Email,
		Username:  id.Username,
		FirstName: id.FirstName,
		LastName:  id.LastName,
		Role:      id.Role,
	}

	t := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return t.SignedString(m.secret)
}

/* ===================== VERIFY TOKEN ===================== */

func (m *Manager) Verify(tokenString string, now time.Time) (Claims, error) {
	var claims Claims

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg(), jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
		jwt.WithLeeway(30 * time.Second), // clock skew tolerance
	}
	if m.issuer != "" {
		opts = append(opts, jwt.WithIssuer(m.issuer))
	}

	_, err := jwt.NewParser(opts...).ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return m.secret, nil
	})
	if err != nil {
		return Claims{}, err
	}

	if claims.UserID == 0 {
		return Claims{}, ErrMissingUser
	}
	if claims.Role == 0 {
		return Claims{}, ErrMissingRole
	}
	return claims, nil
}
