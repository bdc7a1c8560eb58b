package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Claims leases events through the claimed_at column so only one relay
// dispatches an event at a time when no Redis claim store is configured. An
// event carries a single lease whatever the consumer name.
type Claims struct {
	repo *Repository
	ttl  time.Duration
	now  func() time.Time
}

func NewClaims(repo *Repository, ttl time.Duration) (*Claims, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("claim ttl must be positive, got %s", ttl)
	}
	return &Claims{repo: repo, ttl: ttl, now: time.Now}, nil
}

// Claim takes the lease. A lease older than the ttl is treated as abandoned
// and taken over.
func (c *Claims) Claim(ctx context.Context, _ string, eventID uuid.UUID) (bool, error) {
	now := c.now().UTC()
	return c.repo.Claim(ctx, eventID, now, now.Add(-c.ttl))
}

func (c *Claims) Release(ctx context.Context, _ string, eventID uuid.UUID) error {
	return c.repo.ReleaseClaim(ctx, eventID)
}
