// Package audit records security events, enforces the failed-login lockout
// and screens free-text input for obvious attack patterns.
package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultMaxAttempts = 5
	DefaultLockout     = 15 * time.Minute
)

// Repository is the append-only persistence contract for audit events.
type Repository interface {
	Append(ctx context.Context, events ...Event) error
	Recent(ctx context.Context, limit int, violations bool) ([]Event, error)
}

var ErrInvalidEvent = errors.New("audit: invalid event")

type Service struct {
	repo     Repository
	attempts AttemptStore
	log      *slog.Logger
	clock    func() time.Time

	maxAttempts int
	lockout     time.Duration
}

func NewService(repo Repository, attempts AttemptStore, log *slog.Logger) *Service {
	if attempts == nil {
		attempts = NewMemoryAttempts()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		repo:        repo,
		attempts:    attempts,
		log:         log,
		clock:       time.Now,
		maxAttempts: DefaultMaxAttempts,
		lockout:     DefaultLockout,
	}
}

func attemptKey(username, ip string) string {
	if ip == "" {
		ip = "unknown"
	}
	return strings.ToLower(strings.TrimSpace(username)) + "_" + ip
}

// RecordLoginAttempt logs the outcome of a login. A success clears the
// failure count; the fifth failure inside the lockout window locks the
// username/address pair.
func (s *Service) RecordLoginAttempt(ctx context.Context, username, ip string, success bool) error {
	key := attemptKey(username, ip)
	actor := Actor{Username: username, IPAddress: ip}

	if success {
		if err := s.attempts.Reset(ctx, key); err != nil {
			return err
		}
		return s.append(ctx, s.event(EventLoginAttempt, SeverityLow, actor, "Successful login"))
	}

	count, err := s.attempts.Incr(ctx, key, s.lockout)
	if err != nil {
		return err
	}
	sev := SeverityMedium
	if count >= 3 {
		sev = SeverityHigh
	}
	events := []Event{s.event(EventFailedLogin, sev, actor, fmt.Sprintf("Failed login attempt %d", count))}

	if count >= s.maxAttempts {
		until := s.clock().Add(s.lockout)
		if err := s.attempts.Lock(ctx, key, until); err != nil {
			return err
		}
		v := s.event(EventAccountLockout, SeverityCritical, Actor{IPAddress: ip},
			fmt.Sprintf("Account locked due to %d failed login attempts", count))
		v.Action = ActionLockout
		events = append(events, v)
	}
	return s.append(ctx, events...)
}

// IsLockedOut reports an active lockout and when it ends.
func (s *Service) IsLockedOut(ctx context.Context, username, ip string) (bool, time.Time, error) {
	until, locked, err := s.attempts.LockedUntil(ctx, attemptKey(username, ip))
	if err != nil {
		return false, time.Time{}, err
	}
	return locked, until, nil
}

var highRiskKeywords = []string{
	"admin", "root", "password", "sql", "injection", "xss", "script",
	"eval", "exec", "system", "shell", "command", "privilege",
}

func (s *Service) RecordSuspicious(ctx context.Context, activity string, actor Actor) error {
	if isHighRisk(activity) {
		s.log.Warn("security alert",
			"activity", truncate(activity, 200),
			"user_id", actor.UserID,
			"username", actor.Username,
			"ip", actor.IPAddress,
		)
	}
	return s.append(ctx, s.event(EventSuspiciousActivity, SeverityHigh, actor, activity))
}

func (s *Service) RecordUnauthorized(ctx context.Context, resource string, actor Actor) error {
	e := s.event(EventUnauthorizedAccess, SeverityHigh, actor, "Unauthorized access attempt to "+resource)
	v := s.event(EventUnauthorizedAccess, SeverityHigh, actor,
		"Attempted to access "+resource+" without proper authorization")
	v.Action = ActionAlert
	return s.append(ctx, e, v)
}

func (s *Service) RecordPasswordChange(ctx context.Context, actor Actor) error {
	return s.append(ctx, s.event(EventPasswordChange, SeverityMedium, actor, "Password changed successfully"))
}

func (s *Service) RecordProfileUpdate(ctx context.Context, actor Actor, changes []string) error {
	return s.append(ctx, s.event(EventProfileUpdate, SeverityLow, actor, "Profile updated: "+strings.Join(changes, ", ")))
}

func (s *Service) RecordSessionTimeout(ctx context.Context, actor Actor) error {
	return s.append(ctx, s.event(EventSessionTimeout, SeverityLow, actor, "Session expired due to inactivity"))
}

// Events returns the newest events first; limit <= 0 means 100.
func (s *Service) Events(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 100
	}
	return s.repo.Recent(ctx, limit, false)
}

// Violations returns the newest violations first; limit <= 0 means 50.
func (s *Service) Violations(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.Recent(ctx, limit, true)
}

func (s *Service) event(t EventType, sev Severity, a Actor, details string) Event {
	return Event{
		Type:      t,
		Severity:  sev,
		UserID:    a.UserID,
		Username:  a.Username,
		IPAddress: a.IPAddress,
		UserAgent: a.UserAgent,
		Details:   details,
	}
}

func (s *Service) append(ctx context.Context, events ...Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	now := s.clock().UTC()
	for i := range events {
		e := &events[i]
		if e.Type == "" || e.Severity == "" {
			return ErrInvalidEvent
		}
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		if e.CreatedAt.IsZero() {
			e.CreatedAt = now
		}
		s.logEvent(*e)
	}
	return s.repo.Append(ctx, events...)
}

func (s *Service) logEvent(e Event) {
	attrs := []any{
		"type", string(e.Type),
		"severity", string(e.Severity),
		"user_id", e.UserID,
		"username", e.Username,
		"ip", e.IPAddress,
		"details", truncate(e.Details, 200),
	}
	switch {
	case e.IsViolation() && e.Action == ActionWarn:
		s.log.Warn("security violation", append(attrs, "action", string(e.Action))...)
	case e.IsViolation():
		s.log.Error("security violation", append(attrs, "action", string(e.Action))...)
	case e.Severity == SeverityHigh || e.Severity == SeverityCritical:
		s.log.Warn("security event", attrs...)
	default:
		s.log.Info("security event", attrs...)
	}
}

func isHighRisk(activity string) bool {
	a := strings.ToLower(activity)
	for _, k := range highRiskKeywords {
		if strings.Contains(a, k) {
			return true
		}
	}
	return false
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
