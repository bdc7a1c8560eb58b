package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/groupbuy-backend/pkg/config"
)

// memoryCmdable overrides the handful of commands the client issues; any
// other call panics on the nil embedded interface.
type memoryCmdable struct {
	redis.Cmdable
	data map[string]string
}

func (m *memoryCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *memoryCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	if v, ok := m.data[key]; ok {
		return redis.NewStringResult(v, nil)
	}
	return redis.NewStringResult("", redis.Nil)
}

func (m *memoryCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *memoryCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *memoryCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	var n int64
	for _, key := range keys {
		if _, ok := m.data[key]; ok {
			delete(m.data, key)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

func newMemoryClient() *Client {
	return &Client{rdb: &memoryCmdable{data: map[string]string{}}}
}

func TestGetReportsMissWithoutError(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient()
	key := Key(NSCache, "group_order", "abc")

	if _, ok, err := client.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected clean miss, got ok=%v err=%v", ok, err)
	}

	if err := client.Set(ctx, key, "payload", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	value, ok, err := client.Get(ctx, key)
	if err != nil || !ok || value != "payload" {
		t.Fatalf("expected payload hit, got %q ok=%v err=%v", value, ok, err)
	}

	if err := client.Del(ctx, key); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, err := client.Get(ctx, key); err != nil || ok {
		t.Fatalf("expected miss after delete, got ok=%v err=%v", ok, err)
	}
}

func TestSetNXFirstWriterWins(t *testing.T) {
	ctx := context.Background()
	client := newMemoryClient()
	key := Key(NSLock, "cron-worker", "test")

	if ok, err := client.SetNX(ctx, key, "owner-a", time.Minute); err != nil || !ok {
		t.Fatalf("first writer should win, got ok=%v err=%v", ok, err)
	}
	if ok, err := client.SetNX(ctx, key, "owner-b", time.Minute); err != nil || ok {
		t.Fatalf("second writer should lose, got ok=%v err=%v", ok, err)
	}

	if value, _, _ := client.Get(ctx, key); value != "owner-a" {
		t.Fatalf("expected owner-a, got %q", value)
	}
}

func TestKey(t *testing.T) {
	cases := map[string]string{
		Key(NSIdempotency, "scope", "id"): "gb:idem:scope:id",
		Key(NSClaim, "relay", " 42 "):     "gb:claim:relay:42",
		Key(NSCache, "product", ""):       "gb:cache:product",
	}
	for got, want := range cases {
		if got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}

func TestDisconnectedClientErrors(t *testing.T) {
	var client *Client
	ctx := context.Background()
	if err := client.Ping(ctx); !errors.Is(err, errNotConnected) {
		t.Fatalf("Ping: expected errNotConnected, got %v", err)
	}
	if _, err := client.CompareAndDelete(ctx, "k", "v"); !errors.Is(err, errNotConnected) {
		t.Fatalf("CompareAndDelete: expected errNotConnected, got %v", err)
	}
	if _, _, err := (&Client{}).Get(ctx, "k"); !errors.Is(err, errNotConnected) {
		t.Fatalf("Get: expected errNotConnected, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close on nil client: %v", err)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected error without url or address")
	}

	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, ReadTimeout: time.Second})
	if err != nil {
		t.Fatalf("url config: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.ReadTimeout != time.Second {
		t.Fatalf("unexpected url options db=%d pool=%d read=%s", opts.DB, opts.PoolSize, opts.ReadTimeout)
	}

	opts, err = optionsFromConfig(config.RedisConfig{Address: "cache:6380", DB: 3})
	if err != nil {
		t.Fatalf("address config: %v", err)
	}
	if opts.Addr != "cache:6380" || opts.DB != 3 {
		t.Fatalf("unexpected address options %s/%d", opts.Addr, opts.DB)
	}
}
