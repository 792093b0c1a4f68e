// Package session tracks one client's authenticated session: its record,
// the inactivity warning and the hard expiry.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"banking-portal/internal/auth"
	"banking-portal/internal/rbac"
)

const (
	DefaultTimeout = 30 * time.Minute
	DefaultWarning = 5 * time.Minute

	// LoginPath is where a client goes after logout or expiry.
	LoginPath = "/login"
)

var (
	ErrInvalidToken = errors.New("session: token is malformed or expired")
	ErrInactive     = errors.New("session: no active session")
)

type Options struct {
	Store    Store
	Clock    Clock
	Activity ActivitySource
	Events   Events
	Logger   *slog.Logger

	Timeout time.Duration
	Warning time.Duration

	// OpTimeout bounds store calls made from timers and activity ticks,
	// which have no caller context.
	OpTimeout time.Duration
}

// Manager owns a single client's session. All transitions are serialised
// on mu; event callbacks fire after it is released.
type Manager struct {
	store     Store
	clock     Clock
	events    Events
	log       *slog.Logger
	timeout   time.Duration
	warning   time.Duration
	opTimeout time.Duration

	unsubscribe func()

	mu          sync.Mutex
	rec         Record
	gen         uint64
	warnTimer   Timer
	expiryTimer Timer
	closed      bool
}

func NewManager(opts Options) *Manager {
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock{}
	}
	if opts.Events == nil {
		opts.Events = NopEvents{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Warning <= 0 {
		opts.Warning = DefaultWarning
	}
	if opts.OpTimeout <= 0 {
		opts.OpTimeout = 5 * time.Second
	}

	m := &Manager{
		store:     opts.Store,
		clock:     opts.Clock,
		events:    opts.Events,
		log:       opts.Logger,
		timeout:   opts.Timeout,
		warning:   opts.Warning,
		opTimeout: opts.OpTimeout,
		rec:       inactiveRecord(opts.Clock.Now()),
	}
	if opts.Activity != nil {
		m.unsubscribe = opts.Activity.Subscribe(m.Touch)
	}
	return m
}

// Store returns the credential store backing this session.
func (m *Manager) Store() Store { return m.store }

// Bootstrap restores the session from the stored token. An undecodable or
// expired token leaves the session inactive with storage cleared.
func (m *Manager) Bootstrap(ctx context.Context) error {
	token, err := m.store.Token(ctx)
	if err != nil {
		return fmt.Errorf("load token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	if token == "" {
		m.rec = inactiveRecord(now)
		return nil
	}

	claims, ok := auth.Decode(token)
	if !ok || claims.Expired(now) {
		m.log.Info("discarding stored token", "decodable", ok)
		return m.resetLocked(ctx, now)
	}

	expiresAt, lastActivity := claims.Expiry(), now
	if stored, found, err := m.store.LoadRecord(ctx); err != nil {
		m.log.Warn("load session record failed", "err", err)
	} else if found && sameUser(stored, claims) && stored.ExpiresAt.After(now) {
		expiresAt, lastActivity = stored.ExpiresAt, stored.LastActivity
	}
	return m.activateLocked(ctx, claims, expiresAt, lastActivity)
}

// Login stores token and starts a session from its claims.
func (m *Manager) Login(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.Now()
	claims, ok := auth.Decode(token)
	if !ok || claims.Expired(now) {
		return ErrInvalidToken
	}
	if err := m.store.SetToken(ctx, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	return m.activateLocked(ctx, claims, claims.Expiry(), now)
}

// Touch records user activity. expiresAt is left unchanged.
func (m *Manager) Touch() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.IsActive || m.closed {
		return
	}

	rec := m.rec
	rec.LastActivity = m.clock.Now()
	m.rec = rec

	ctx, cancel := m.opContext()
	defer cancel()
	if err := m.store.SaveRecord(ctx, rec); err != nil {
		m.log.Warn("save session record failed", "err", err)
	}
	m.scheduleLocked()
}

// Extend pushes the expiry to a full timeout from now.
func (m *Manager) Extend(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.IsActive {
		return ErrInactive
	}

	now := m.clock.Now()
	rec := m.rec
	rec.LastActivity = now
	rec.ExpiresAt = now.Add(m.timeout)
	m.rec = rec

	if err := m.store.SaveRecord(ctx, rec); err != nil {
		m.log.Warn("save session record failed", "err", err)
	}
	m.scheduleLocked()
	return nil
}

// Logout ends the session and returns the page to send the client to.
func (m *Manager) Logout(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return LoginPath, m.resetLocked(ctx, m.clock.Now())
}

func (m *Manager) Current() Record {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec
}

func (m *Manager) Valid() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.IsActive && m.rec.ExpiresAt.After(m.clock.Now())
}

func (m *Manager) Remaining() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.IsActive {
		return 0
	}
	if d := m.rec.ExpiresAt.Sub(m.clock.Now()); d > 0 {
		return d
	}
	return 0
}

// InWarning reports whether an active session is inside its pre-expiry
// warning window, the time a client should offer to extend it.
func (m *Manager) InWarning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.rec.IsActive {
		return false
	}
	left := m.rec.ExpiresAt.Sub(m.clock.Now())
	return left > 0 && left <= m.warning
}

func (m *Manager) HasRole(r rbac.Role) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rec.IsActive && m.rec.Role != nil && *m.rec.Role == r
}

// Close detaches the manager from its activity source and cancels timers.
// Stored credentials are kept.
func (m *Manager) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
	m.mu.Lock()
	m.closed = true
	m.cancelTimersLocked()
	m.mu.Unlock()
}

func (m *Manager) activateLocked(ctx context.Context, c auth.Claims, expiresAt, lastActivity time.Time) error {
	userID, username, role := c.UserID, c.Name(), rbac.Role(c.Role)
	rec := Record{
		IsActive:     true,
		LastActivity: lastActivity,
		ExpiresAt:    expiresAt,
		UserID:       &userID,
		Username:     &username,
		Role:         &role,
	}
	m.rec = rec
	m.scheduleLocked()

	if err := m.store.SaveRecord(ctx, rec); err != nil {
		return fmt.Errorf("save session record: %w", err)
	}
	m.log.Info("session started", "user_id", userID, "role", role.String(), "expires_at", expiresAt)
	return nil
}

func (m *Manager) resetLocked(ctx context.Context, now time.Time) error {
	m.cancelTimersLocked()
	m.rec = inactiveRecord(now)
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("clear session storage: %w", err)
	}
	return nil
}

// scheduleLocked replaces any pending timers with a fresh warning/expiry pair
// for the current record.
func (m *Manager) scheduleLocked() {
	m.cancelTimersLocked()
	if !m.rec.IsActive || m.closed {
		return
	}

	gen := m.gen
	untilExpiry := m.rec.ExpiresAt.Sub(m.clock.Now())
	if untilWarning := untilExpiry - m.warning; untilWarning > 0 {
		m.warnTimer = m.clock.AfterFunc(untilWarning, func() { m.onWarning(gen) })
	}
	if untilExpiry < 0 {
		untilExpiry = 0
	}
	m.expiryTimer = m.clock.AfterFunc(untilExpiry, func() { m.onExpiry(gen) })
}

func (m *Manager) cancelTimersLocked() {
	m.gen++
	if m.warnTimer != nil {
		m.warnTimer.Stop()
		m.warnTimer = nil
	}
	if m.expiryTimer != nil {
		m.expiryTimer.Stop()
		m.expiryTimer = nil
	}
}

func (m *Manager) onWarning(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.rec.IsActive {
		m.mu.Unlock()
		return
	}
	m.warnTimer = nil
	rec := m.rec
	remaining := rec.ExpiresAt.Sub(m.clock.Now())
	m.mu.Unlock()

	m.log.Info("session expiring soon", "user_id", deref(rec.UserID), "remaining", FormatRemaining(remaining))
	m.events.SessionWarning(rec, remaining)
}

func (m *Manager) onExpiry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || !m.rec.IsActive {
		m.mu.Unlock()
		return
	}
	rec := m.rec
	ctx, cancel := m.opContext()
	err := m.resetLocked(ctx, m.clock.Now())
	cancel()
	m.mu.Unlock()

	if err != nil {
		m.log.Warn("clear expired session failed", "err", err)
	}
	m.log.Info("session expired", "user_id", deref(rec.UserID))
	m.events.SessionExpired(rec)
}

func (m *Manager) opContext() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), m.opTimeout)
}

func sameUser(rec Record, c auth.Claims) bool {
	return rec.IsActive && rec.UserID != nil && *rec.UserID == c.UserID
}

func deref(p *int64) int64 {
	if p == nil {
		return 0
	}
	return *p
}
