package cache

import (
	"context"
	"encoding/json"
	"time"

	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// Store is a best-effort key/value cache with TTL. Implementations must never
// be treated as a system of record; a miss or an error falls back to the store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type redisStore struct {
	kv pkgredis.KV
}

// NewRedis returns a Store backed by the shared Redis client. Keys are
// placed under the gb:cache namespace.
func NewRedis(kv pkgredis.KV) Store {
	if kv == nil {
		return Noop{}
	}
	return &redisStore{kv: kv}
}

func (s *redisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, ok, err := s.kv.Get(ctx, pkgredis.Key(pkgredis.NSCache, key))
	if err != nil || !ok {
		return nil, false, err
	}
	return []byte(val), true, nil
}

func (s *redisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return s.kv.Set(ctx, pkgredis.Key(pkgredis.NSCache, key), value, ttl)
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	namespaced := make([]string, len(keys))
	for i, key := range keys {
		namespaced[i] = pkgredis.Key(pkgredis.NSCache, key)
	}
	return s.kv.Del(ctx, namespaced...)
}

// Noop never stores anything; every Get is a miss.
type Noop struct{}

func (Noop) Get(context.Context, string) ([]byte, bool, error)        { return nil, false, nil }
func (Noop) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (Noop) Del(context.Context, ...string) error                     { return nil }

// GetJSON decodes a cached JSON value into dst. Decode failures count as a miss.
func GetJSON(ctx context.Context, store Store, key string, dst any) (bool, error) {
	if store == nil {
		return false, nil
	}
	raw, ok, err := store.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, nil
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it with ttl.
func SetJSON(ctx context.Context, store Store, key string, value any, ttl time.Duration) error {
	if store == nil || ttl <= 0 {
		return nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return store.Set(ctx, key, raw, ttl)
}
