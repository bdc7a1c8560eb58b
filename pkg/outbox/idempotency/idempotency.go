// Package idempotency holds short-lived claims on outbox events so the inline
// publisher and the recovery job never fan out the same event concurrently.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

type claimStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

// Manager claims events per consumer. A claim expires after ttl even if
// the holder crashes before releasing it.
type Manager struct {
	store claimStore
	ttl   time.Duration
	owner string
}

func NewManager(store claimStore, ttl time.Duration) (*Manager, error) {
	switch {
	case store == nil:
		return nil, errors.New("claim store is required")
	case ttl <= 0:
		return nil, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}
	return &Manager{store: store, ttl: ttl, owner: uuid.NewString()}, nil
}

// Claim reports whether this process now owns eventID for consumer.
func (m *Manager) Claim(ctx context.Context, consumer string, eventID uuid.UUID) (bool, error) {
	key, err := ClaimKey(consumer, eventID)
	if err != nil {
		return false, err
	}
	ok, err := m.store.SetNX(ctx, key, m.owner, m.ttl)
	if err != nil {
		return false, fmt.Errorf("claim %s: %w", key, err)
	}
	return ok, nil
}

// Release drops the claim early so a failed dispatch can be retried.
func (m *Manager) Release(ctx context.Context, consumer string, eventID uuid.UUID) error {
	key, err := ClaimKey(consumer, eventID)
	if err != nil {
		return err
	}
	return m.store.Del(ctx, key)
}

// ClaimKey is gb:claim:<consumer>:<event id>.
func ClaimKey(consumer string, eventID uuid.UUID) (string, error) {
	if consumer == "" {
		return "", errors.New("consumer name is required")
	}
	if eventID == uuid.Nil {
		return "", errors.New("event id is required")
	}
	return pkgredis.Key(pkgredis.NSClaim, consumer, eventID.String()), nil
}
