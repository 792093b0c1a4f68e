package session

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"banking-portal/internal/rbac"
)

var t0 = time.Unix(1700000000, 0)

func token(t *testing.T, claims map[string]any) string {
	t.Helper()
	b, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return "eyJhbGciOiJIUzUxMiJ9." + base64.RawURLEncoding.EncodeToString(b) + ".sig"
}

func tokenFor(t *testing.T, userID int64, role rbac.Role, exp time.Time) string {
	return token(t, map[string]any{"userId": userID, "sub": "jdoe", "role": int(role), "exp": exp.Unix()})
}

type recorder struct {
	warnings  []time.Duration
	expired   int
	onWarning func()
}

func (r *recorder) SessionWarning(_ Record, remaining time.Duration) {
	r.warnings = append(r.warnings, remaining)
	if r.onWarning != nil {
		r.onWarning()
	}
}

func (r *recorder) SessionExpired(Record) { r.expired++ }

func newTestManager(clock *fakeClock, store Store, ev Events) *Manager {
	return NewManager(Options{Store: store, Clock: clock, Events: ev})
}

func TestLogin_StartsSessionFromClaims(t *testing.T) {
	clock := newFakeClock(t0)
	store := NewMemoryStore()
	m := newTestManager(clock, store, nil)

	exp := t0.Add(time.Hour)
	if err := m.Login(context.Background(), tokenFor(t, 42, rbac.RoleAdmin, exp)); err != nil {
		t.Fatalf("login: %v", err)
	}

	rec := m.Current()
	if !rec.IsActive || *rec.UserID != 42 || *rec.Username != "jdoe" || *rec.Role != rbac.RoleAdmin {
		t.Fatalf("unexpected record: %+v", rec)
	}
	if !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("expected expiresAt=%v, got %v", exp, rec.ExpiresAt)
	}
	if !rec.LastActivity.Equal(t0) {
		t.Fatalf("expected lastActivity=now")
	}
	if !m.Valid() || !m.HasRole(rbac.RoleAdmin) || m.HasRole(rbac.RoleCustomer) {
		t.Fatalf("expected valid admin session")
	}
	if tok, _ := store.Token(context.Background()); tok == "" {
		t.Fatalf("expected token stored")
	}
	if saved, ok, _ := store.LoadRecord(context.Background()); !ok || !saved.IsActive {
		t.Fatalf("expected record persisted")
	}
	if got := clock.Pending(); got != 2 {
		t.Fatalf("expected warning+expiry pending, got %d", got)
	}
}

func TestLogin_RejectsBadTokens(t *testing.T) {
	m := newTestManager(newFakeClock(t0), NewMemoryStore(), nil)

	for _, tok := range []string{"", "garbage", tokenFor(t, 1, rbac.RoleCustomer, t0)} {
		if err := m.Login(context.Background(), tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", tok, err)
		}
	}
	if m.Current().IsActive {
		t.Fatalf("expected inactive")
	}
}

func TestExtend_SetsFullTimeoutFromNow(t *testing.T) {
	clock := newFakeClock(t0)
	m := newTestManager(clock, NewMemoryStore(), nil)
	if err := m.Login(context.Background(), tokenFor(t, 1, rbac.RoleCustomer, t0.Add(30*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(10 * time.Minute)
	if err := m.Extend(context.Background()); err != nil {
		t.Fatalf("extend: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := m.Extend(context.Background()); err != nil {
			t.Fatalf("extend: %v", err)
		}
	}

	now := t0.Add(10 * time.Minute)
	rec := m.Current()
	if want := now.Add(1800 * time.Second); !rec.ExpiresAt.Equal(want) {
		t.Fatalf("expected expiresAt=%v, got %v", want, rec.ExpiresAt)
	}
	if !rec.LastActivity.Equal(now) {
		t.Fatalf("expected lastActivity=now")
	}
	if got := clock.Pending(); got != 2 {
		t.Fatalf("expected exactly one timer pair, got %d pending", got)
	}
	if got := m.Remaining(); got != 30*time.Minute {
		t.Fatalf("remaining=%v", got)
	}
}

func TestExtend_InactiveFails(t *testing.T) {
	m := newTestManager(newFakeClock(t0), NewMemoryStore(), nil)
	if err := m.Extend(context.Background()); !errors.Is(err, ErrInactive) {
		t.Fatalf("expected ErrInactive, got %v", err)
	}
}

func TestTimers_WarnThenExpire(t *testing.T) {
	clock := newFakeClock(t0)
	store := NewMemoryStore()
	ev := &recorder{}
	m := newTestManager(clock, store, ev)
	if err := m.Login(context.Background(), tokenFor(t, 7, rbac.RoleCustomer, t0.Add(30*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(24 * time.Minute)
	if len(ev.warnings) != 0 {
		t.Fatalf("warning fired early")
	}
	clock.Advance(time.Minute)
	if len(ev.warnings) != 1 || ev.warnings[0] != 5*time.Minute {
		t.Fatalf("expected one warning with 5m left, got %v", ev.warnings)
	}
	if !m.Current().IsActive {
		t.Fatalf("warning must not end the session")
	}

	clock.Advance(5 * time.Minute)
	if ev.expired != 1 {
		t.Fatalf("expected expiry event, got %d", ev.expired)
	}
	if m.Current().IsActive || m.Valid() {
		t.Fatalf("expected inactive after expiry")
	}
	if tok, _ := store.Token(context.Background()); tok != "" {
		t.Fatalf("expected credentials cleared")
	}
	if _, ok, _ := store.LoadRecord(context.Background()); ok {
		t.Fatalf("expected record cleared")
	}
	if got := clock.Pending(); got != 0 {
		t.Fatalf("expected no pending timers, got %d", got)
	}
}

func TestTimers_ShortSessionSkipsWarning(t *testing.T) {
	clock := newFakeClock(t0)
	ev := &recorder{}
	m := newTestManager(clock, NewMemoryStore(), ev)
	if err := m.Login(context.Background(), tokenFor(t, 7, rbac.RoleCustomer, t0.Add(2*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}
	if got := clock.Pending(); got != 1 {
		t.Fatalf("expected only the expiry timer, got %d", got)
	}
	clock.Advance(2 * time.Minute)
	if len(ev.warnings) != 0 || ev.expired != 1 {
		t.Fatalf("warnings=%v expired=%d", ev.warnings, ev.expired)
	}
}

func TestTouch_KeepsExpiryAndReschedules(t *testing.T) {
	clock := newFakeClock(t0)
	feed := NewActivityFeed()
	m := NewManager(Options{Store: NewMemoryStore(), Clock: clock, Activity: feed})

	// Inactive ticks are ignored.
	feed.Emit()
	if m.Current().IsActive {
		t.Fatalf("tick must not activate")
	}

	exp := t0.Add(30 * time.Minute)
	if err := m.Login(context.Background(), tokenFor(t, 3, rbac.RoleInternal, exp)); err != nil {
		t.Fatalf("login: %v", err)
	}
	clock.Advance(3 * time.Minute)
	feed.Emit()
	feed.Emit()

	rec := m.Current()
	if !rec.ExpiresAt.Equal(exp) {
		t.Fatalf("activity must not move expiresAt")
	}
	if !rec.LastActivity.Equal(t0.Add(3 * time.Minute)) {
		t.Fatalf("expected lastActivity updated, got %v", rec.LastActivity)
	}
	if got := clock.Pending(); got != 2 {
		t.Fatalf("expected one timer pair, got %d", got)
	}

	m.Close()
	clock.Advance(time.Minute)
	feed.Emit()
	if !m.Current().LastActivity.Equal(t0.Add(3 * time.Minute)) {
		t.Fatalf("closed manager must ignore activity")
	}
}

func TestTimers_StaleCallbacksAreDiscarded(t *testing.T) {
	clock := newFakeClock(t0)
	clock.ignoreStop = true
	ev := &recorder{}
	m := newTestManager(clock, NewMemoryStore(), ev)
	if err := m.Login(context.Background(), tokenFor(t, 1, rbac.RoleCustomer, t0.Add(30*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(10 * time.Minute)
	if err := m.Extend(context.Background()); err != nil {
		t.Fatalf("extend: %v", err)
	}

	// The first pair (25m, 30m) still fires here but belongs to an old generation.
	clock.Advance(20 * time.Minute)
	if len(ev.warnings) != 0 || ev.expired != 0 {
		t.Fatalf("stale timers acted: warnings=%v expired=%d", ev.warnings, ev.expired)
	}
	if !m.Current().IsActive {
		t.Fatalf("expected session still active")
	}

	clock.Advance(5 * time.Minute)
	if len(ev.warnings) != 1 {
		t.Fatalf("expected current warning at 35m, got %v", ev.warnings)
	}
}

func TestWarningCallbackMayExtend(t *testing.T) {
	clock := newFakeClock(t0)
	ev := &recorder{}
	m := newTestManager(clock, NewMemoryStore(), ev)
	ev.onWarning = func() {
		if err := m.Extend(context.Background()); err != nil {
			t.Errorf("extend from callback: %v", err)
		}
	}
	if err := m.Login(context.Background(), tokenFor(t, 1, rbac.RoleCustomer, t0.Add(30*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}

	clock.Advance(30 * time.Minute)
	if ev.expired != 0 {
		t.Fatalf("extended session must not expire")
	}
	if want := t0.Add(25*time.Minute + 30*time.Minute); !m.Current().ExpiresAt.Equal(want) {
		t.Fatalf("expected expiresAt=%v, got %v", want, m.Current().ExpiresAt)
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	clock := newFakeClock(t0)
	store := NewMemoryStore()
	ev := &recorder{}
	m := newTestManager(clock, store, ev)
	if err := m.Login(context.Background(), tokenFor(t, 1, rbac.RoleCustomer, t0.Add(time.Hour))); err != nil {
		t.Fatalf("login: %v", err)
	}

	next, err := m.Logout(context.Background())
	if err != nil || next != "/login" {
		t.Fatalf("logout: %q %v", next, err)
	}
	if m.Current().IsActive || m.Remaining() != 0 {
		t.Fatalf("expected inactive")
	}
	if tok, _ := store.Token(context.Background()); tok != "" {
		t.Fatalf("expected token cleared")
	}
	if got := clock.Pending(); got != 0 {
		t.Fatalf("expected timers cancelled, got %d", got)
	}
	clock.Advance(2 * time.Hour)
	if ev.expired != 0 {
		t.Fatalf("no expiry event after logout")
	}
}

func TestBootstrap(t *testing.T) {
	ctx := context.Background()

	t.Run("empty store stays inactive", func(t *testing.T) {
		m := newTestManager(newFakeClock(t0), NewMemoryStore(), nil)
		if err := m.Bootstrap(ctx); err != nil || m.Current().IsActive {
			t.Fatalf("expected inactive, err=%v", err)
		}
	})

	for name, tok := range map[string]string{
		"undecodable": "not.a.jwt!",
		"expired":     tokenFor(t, 1, rbac.RoleCustomer, t0.Add(-time.Second)),
		"no exp":      token(t, map[string]any{"userId": 1, "role": 2}),
	} {
		t.Run(name+" clears storage", func(t *testing.T) {
			store := NewMemoryStore()
			_ = store.SetToken(ctx, tok)
			_ = store.SaveRecord(ctx, Record{IsActive: true})
			m := newTestManager(newFakeClock(t0), store, nil)
			if err := m.Bootstrap(ctx); err != nil {
				t.Fatalf("bootstrap: %v", err)
			}
			if m.Current().IsActive {
				t.Fatalf("expected inactive")
			}
			if tok, _ := store.Token(ctx); tok != "" {
				t.Fatalf("expected token cleared")
			}
			if _, ok, _ := store.LoadRecord(ctx); ok {
				t.Fatalf("expected record cleared")
			}
		})
	}

	t.Run("valid token uses exp", func(t *testing.T) {
		store := NewMemoryStore()
		exp := t0.Add(20 * time.Minute)
		_ = store.SetToken(ctx, tokenFor(t, 5, rbac.RoleCustomer, exp))
		m := newTestManager(newFakeClock(t0), store, nil)
		if err := m.Bootstrap(ctx); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		if rec := m.Current(); !rec.IsActive || !rec.ExpiresAt.Equal(exp) {
			t.Fatalf("unexpected record: %+v", rec)
		}
	})

	t.Run("rehydrates extended record for same user", func(t *testing.T) {
		store := NewMemoryStore()
		_ = store.SetToken(ctx, tokenFor(t, 5, rbac.RoleCustomer, t0.Add(20*time.Minute)))
		uid := int64(5)
		extended := t0.Add(45 * time.Minute)
		_ = store.SaveRecord(ctx, Record{IsActive: true, UserID: &uid, ExpiresAt: extended, LastActivity: t0.Add(-time.Minute)})

		m := newTestManager(newFakeClock(t0), store, nil)
		if err := m.Bootstrap(ctx); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		rec := m.Current()
		if !rec.ExpiresAt.Equal(extended) || !rec.LastActivity.Equal(t0.Add(-time.Minute)) {
			t.Fatalf("expected stored record restored, got %+v", rec)
		}
	})

	t.Run("ignores record of another user", func(t *testing.T) {
		store := NewMemoryStore()
		exp := t0.Add(20 * time.Minute)
		_ = store.SetToken(ctx, tokenFor(t, 5, rbac.RoleCustomer, exp))
		other := int64(6)
		_ = store.SaveRecord(ctx, Record{IsActive: true, UserID: &other, ExpiresAt: t0.Add(45 * time.Minute)})

		m := newTestManager(newFakeClock(t0), store, nil)
		if err := m.Bootstrap(ctx); err != nil {
			t.Fatalf("bootstrap: %v", err)
		}
		if !m.Current().ExpiresAt.Equal(exp) {
			t.Fatalf("expected exp from token")
		}
	})
}

func TestFormatRemaining(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                      "Expired",
		-time.Second:                           "Expired",
		5 * time.Minute:                        "5:00",
		65 * time.Second:                       "1:05",
		29*time.Minute + 59*time.Second:        "29:59",
		90*time.Minute + 1500*time.Millisecond: "90:01",
	}
	for d, want := range cases {
		if got := FormatRemaining(d); got != want {
			t.Fatalf("FormatRemaining(%v)=%q want %q", d, got, want)
		}
	}
}

func TestRecordJSONShape(t *testing.T) {
	uid, name, role := int64(9), "jdoe", rbac.RoleAdmin
	b, err := json.Marshal(Record{IsActive: true, ExpiresAt: t0, LastActivity: t0, UserID: &uid, Username: &name, Role: &role})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got map[string]any
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	for _, k := range []string{"isActive", "lastActivity", "expiresAt", "userId", "username", "role"} {
		if _, ok := got[k]; !ok {
			t.Fatalf("missing key %q in %s", k, b)
		}
	}
	if got["role"] != float64(4) {
		t.Fatalf("expected numeric role, got %v", got["role"])
	}

	b, _ = json.Marshal(inactiveRecord(t0))
	_ = json.Unmarshal(b, &got)
	if got["userId"] != nil || got["isActive"] != false {
		t.Fatalf("expected null user on inactive record: %s", b)
	}
}

func TestInWarning_TracksWarningWindow(t *testing.T) {
	clock := newFakeClock(t0)
	m := newTestManager(clock, NewMemoryStore(), nil)
	if m.InWarning() {
		t.Fatalf("inactive session is never in warning")
	}
	if err := m.Login(context.Background(), tokenFor(t, 1, rbac.RoleCustomer, t0.Add(30*time.Minute))); err != nil {
		t.Fatalf("login: %v", err)
	}
	if m.InWarning() {
		t.Fatalf("30m left is outside the 5m window")
	}

	clock.Advance(25*time.Minute + time.Second)
	if !m.InWarning() {
		t.Fatalf("expected warning window at %s left", m.Remaining())
	}
	if err := m.Extend(context.Background()); err != nil {
		t.Fatalf("extend: %v", err)
	}
	if m.InWarning() {
		t.Fatalf("extension must leave the warning window")
	}
}
