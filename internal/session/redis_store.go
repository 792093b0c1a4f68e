package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// recordGrace keeps a record readable a little past its expiry so a
// bootstrap racing the expiry timer still sees it.
const recordGrace = time.Minute

// RedisStores hands out RedisStore values sharing one client.
type RedisStores struct {
	rdb    *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedisStores(rdb *redis.Client) *RedisStores {
	return &RedisStores{rdb: rdb, prefix: "sbs", now: time.Now}
}

func (r *RedisStores) For(clientID string) Store {
	return &RedisStore{
		rdb:       r.rdb,
		tokenKey:  fmt.Sprintf("%s:%s:%s", r.prefix, clientID, TokenKey),
		recordKey: fmt.Sprintf("%s:%s:%s", r.prefix, clientID, RecordKey),
		now:       r.now,
	}
}

type RedisStore struct {
	rdb       *redis.Client
	tokenKey  string
	recordKey string
	now       func() time.Time
}

func (s *RedisStore) Token(ctx context.Context) (string, error) {
	v, err := s.rdb.Get(ctx, s.tokenKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("redis get token: %w", err)
	}
	return v, nil
}

func (s *RedisStore) SetToken(ctx context.Context, token string) error {
	if err := s.rdb.Set(ctx, s.tokenKey, token, 0).Err(); err != nil {
		return fmt.Errorf("redis set token: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearToken(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey).Err(); err != nil {
		return fmt.Errorf("redis del token: %w", err)
	}
	return nil
}

func (s *RedisStore) LoadRecord(ctx context.Context) (Record, bool, error) {
	raw, err := s.rdb.Get(ctx, s.recordKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, fmt.Errorf("redis get record: %w", err)
	}
	var rec Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		// A corrupt record is treated as absent; the token is authoritative.
		return Record{}, false, nil
	}
	return rec, true, nil
}

// SaveRecord writes the record with a TTL bounded by its expiry. Inactive or
// already expired records are deleted instead.
func (s *RedisStore) SaveRecord(ctx context.Context, rec Record) error {
	ttl := rec.ExpiresAt.Sub(s.now()) + recordGrace
	if !rec.IsActive || ttl <= recordGrace {
		return s.ClearRecord(ctx)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	if err := s.rdb.Set(ctx, s.recordKey, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set record: %w", err)
	}
	return nil
}

func (s *RedisStore) ClearRecord(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.recordKey).Err(); err != nil {
		return fmt.Errorf("redis del record: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.rdb.Del(ctx, s.tokenKey, s.recordKey).Err(); err != nil {
		return fmt.Errorf("redis clear session: %w", err)
	}
	return nil
}
