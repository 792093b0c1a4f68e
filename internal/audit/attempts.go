package audit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"banking-portal/pkg/utils"
)

// AttemptStore counts failed logins and holds lockouts, keyed by
// username and address.
type AttemptStore interface {
	// Incr bumps the failure count. The count resets window after the first failure.
	Incr(ctx context.Context, key string, window time.Duration) (int, error)
	Lock(ctx context.Context, key string, until time.Time) error
	LockedUntil(ctx context.Context, key string) (time.Time, bool, error)
	Reset(ctx context.Context, key string) error
}

type attempt struct {
	count       int
	windowEnds  time.Time
	lockedUntil time.Time
}

type MemoryAttempts struct {
	mu    sync.Mutex
	now   func() time.Time
	items map[string]*attempt
}

func NewMemoryAttempts() *MemoryAttempts {
	return &MemoryAttempts{now: time.Now, items: make(map[string]*attempt)}
}

func (m *MemoryAttempts) Incr(_ context.Context, key string, window time.Duration) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.now()
	a, ok := m.items[key]
	if !ok {
		a = &attempt{}
		m.items[key] = a
	}
	if a.count == 0 || !now.Before(a.windowEnds) {
		a.count = 0
		a.windowEnds = now.Add(window)
	}
	a.count++
	return a.count, nil
}

func (m *MemoryAttempts) Lock(_ context.Context, key string, until time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[key]
	if !ok {
		a = &attempt{}
		m.items[key] = a
	}
	a.lockedUntil = until
	return nil
}

// LockedUntil drops the whole entry once its lockout has lapsed, so the next
// failure starts counting from one.
func (m *MemoryAttempts) LockedUntil(_ context.Context, key string) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.items[key]
	if !ok || a.lockedUntil.IsZero() {
		return time.Time{}, false, nil
	}
	if !a.lockedUntil.After(m.now()) {
		delete(m.items, key)
		return time.Time{}, false, nil
	}
	return a.lockedUntil, true, nil
}

func (m *MemoryAttempts) Reset(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.items, key)
	m.mu.Unlock()
	return nil
}

// RedisAttempts shares counters and lockouts across gateway replicas.
type RedisAttempts struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisAttempts(rdb *redis.Client) *RedisAttempts {
	return &RedisAttempts{rdb: rdb, prefix: "sbs:login", now: time.Now}
}

func (r *RedisAttempts) countKey(key string) string { return r.prefix + ":attempts:" + key }
func (r *RedisAttempts) lockKey(key string) string  { return r.prefix + ":lockout:" + key }

func (r *RedisAttempts) Incr(ctx context.Context, key string, window time.Duration) (int, error) {
	n, err := utils.IncrWithin(ctx, r.rdb, r.countKey(key), window)
	if err != nil {
		return 0, fmt.Errorf("redis incr attempts: %w", err)
	}
	return int(n), nil
}

// Lock stores the deadline with a matching PX so Redis drops it on its own.
func (r *RedisAttempts) Lock(ctx context.Context, key string, until time.Time) error {
	ttl := until.Sub(r.now())
	if ttl <= 0 {
		return nil
	}
	if err := r.rdb.Set(ctx, r.lockKey(key), until.UnixMilli(), ttl).Err(); err != nil {
		return fmt.Errorf("redis set lockout: %w", err)
	}
	return nil
}

func (r *RedisAttempts) LockedUntil(ctx context.Context, key string) (time.Time, bool, error) {
	v, err := r.rdb.Get(ctx, r.lockKey(key)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("redis get lockout: %w", err)
	}
	ms, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("corrupt lockout value %q", v)
	}
	until := time.UnixMilli(ms)
	if !until.After(r.now()) {
		return time.Time{}, false, nil
	}
	return until, true, nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.countKey(key), r.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("redis reset attempts: %w", err)
	}
	return nil
}
