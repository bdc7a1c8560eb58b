package cache

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeRedis struct {
	data   map[string]string
	getErr error
}

func (f *fakeRedis) Get(_ context.Context, key string) (string, bool, error) {
	if f.getErr != nil {
		return "", false, f.getErr
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return nil
}

func (f *fakeRedis) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	return true, f.Set(ctx, key, value, ttl)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func TestRedisStoreRoundTripAndMiss(t *testing.T) {
	ctx := context.Background()
	backing := &fakeRedis{data: map[string]string{}}
	store := NewRedis(backing)

	if _, ok, err := store.Get(ctx, "product:1"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	if err := store.Set(ctx, "product:1", []byte(`{"name":"rice"}`), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok := backing.data["gb:cache:product:1"]; !ok {
		t.Fatalf("expected namespaced key, got %v", backing.data)
	}

	raw, ok, err := store.Get(ctx, "product:1")
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if string(raw) != `{"name":"rice"}` {
		t.Fatalf("unexpected value %s", raw)
	}

	if err := store.Del(ctx, "product:1"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, ok, err := store.Get(ctx, "product:1"); err != nil || ok {
		t.Fatalf("expected miss after delete, got ok=%v err=%v", ok, err)
	}
}

func TestRedisStoreSurfacesBackendErrors(t *testing.T) {
	store := NewRedis(&fakeRedis{data: map[string]string{}, getErr: errors.New("conn refused")})
	_, ok, err := store.Get(context.Background(), "k")
	if err == nil || ok {
		t.Fatalf("expected backend error, got ok=%v err=%v", ok, err)
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := NewMemory()

	type summary struct {
		Status string `json:"status"`
	}

	if err := SetJSON(ctx, store, "go:1", summary{Status: "collecting"}, time.Minute); err != nil {
		t.Fatalf("SetJSON: %v", err)
	}

	var got summary
	ok, err := GetJSON(ctx, store, "go:1", &got)
	if err != nil || !ok {
		t.Fatalf("expected hit, got ok=%v err=%v", ok, err)
	}
	if got.Status != "collecting" {
		t.Fatalf("unexpected status %q", got.Status)
	}

	if err := store.Set(ctx, "go:2", []byte("not-json"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if ok, err := GetJSON(ctx, store, "go:2", &got); err != nil || ok {
		t.Fatalf("corrupt entry should read as a miss, got ok=%v err=%v", ok, err)
	}

	if ok, err := GetJSON(ctx, nil, "go:1", &got); err != nil || ok {
		t.Fatalf("nil store should read as a miss, got ok=%v err=%v", ok, err)
	}
}

func TestMemoryExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	store := NewMemory()
	store.now = func() time.Time { return now }

	if err := store.Set(ctx, "k", []byte("v"), time.Second); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(2 * time.Second)
	if _, ok, _ := store.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestNoopAlwaysMisses(t *testing.T) {
	ctx := context.Background()
	var store Store = Noop{}
	if err := store.Set(ctx, "k", []byte("v"), time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	if _, ok, err := store.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}
}
