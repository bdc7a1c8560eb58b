package outbox

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/enums"
)

func insertPending(t *testing.T, repo *Repository, createdAt time.Time) uuid.UUID {
	t.Helper()
	row := models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventGroupOrderThresholdMet,
		AggregateType: enums.AggregateGroupOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{}`),
		CreatedAt:     createdAt,
	}
	if err := repo.db.Create(&row).Error; err != nil {
		t.Fatalf("insert outbox event: %v", err)
	}
	return row.ID
}

func TestClaimsLeaseEventToOneDispatcher(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openOutboxDB(t))
	start := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	now := start
	claims, err := NewClaims(repo, 10*time.Minute)
	if err != nil {
		t.Fatalf("new claims: %v", err)
	}
	claims.now = func() time.Time { return now }
	id := insertPending(t, repo, start)

	if ok, err := claims.Claim(ctx, "notification-fanout", id); err != nil || !ok {
		t.Fatalf("expected first claim, got ok=%v err=%v", ok, err)
	}

	// The inline fan-out is still running when recovery picks the row up.
	now = start.Add(3 * time.Minute)
	if ok, err := claims.Claim(ctx, "notification-fanout", id); err != nil || ok {
		t.Fatalf("expected live lease to block a second claim, got ok=%v err=%v", ok, err)
	}

	now = start.Add(11 * time.Minute)
	if ok, err := claims.Claim(ctx, "notification-fanout", id); err != nil || !ok {
		t.Fatalf("expected abandoned lease to be taken over, got ok=%v err=%v", ok, err)
	}
}

func TestClaimsReleaseAndPublishedRows(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(openOutboxDB(t))
	claims, err := NewClaims(repo, time.Minute)
	if err != nil {
		t.Fatalf("new claims: %v", err)
	}
	id := insertPending(t, repo, time.Now().UTC())

	if ok, _ := claims.Claim(ctx, "", id); !ok {
		t.Fatal("expected claim")
	}
	if err := claims.Release(ctx, "", id); err != nil {
		t.Fatalf("release: %v", err)
	}
	if ok, _ := claims.Claim(ctx, "", id); !ok {
		t.Fatal("expected claim after release")
	}

	if err := repo.MarkPublished(ctx, id, time.Now().UTC()); err != nil {
		t.Fatalf("mark published: %v", err)
	}
	if err := claims.Release(ctx, "", id); err != nil {
		t.Fatalf("release published: %v", err)
	}
	if ok, err := claims.Claim(ctx, "", id); err != nil || ok {
		t.Fatalf("published event must not be claimable, got ok=%v err=%v", ok, err)
	}
	if ok, err := claims.Claim(ctx, "", uuid.New()); err != nil || ok {
		t.Fatalf("unknown event must not be claimable, got ok=%v err=%v", ok, err)
	}
}

func TestNewClaimsValidation(t *testing.T) {
	if _, err := NewClaims(nil, time.Minute); err == nil {
		t.Fatal("expected error for missing repository")
	}
	if _, err := NewClaims(NewRepository(nil), 0); err == nil {
		t.Fatal("expected error for zero ttl")
	}
}
