package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
)

type fakeStaleOutbox struct {
	rows        []models.OutboxEvent
	cutoff      time.Time
	maxAttempts int
	limit       int
}

func (f *fakeStaleOutbox) FetchStale(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]models.OutboxEvent, error) {
	f.cutoff = cutoff
	f.maxAttempts = maxAttempts
	f.limit = limit
	return f.rows, nil
}

type fakeRelay struct {
	failFor map[uuid.UUID]bool
	handled []uuid.UUID
}

func (f *fakeRelay) Handle(ctx context.Context, row models.OutboxEvent) ([]notifications.RecipientOutcome, error) {
	f.handled = append(f.handled, row.ID)
	if f.failFor[row.ID] {
		return nil, errors.New("dispatch failed")
	}
	return nil, nil
}

func TestNotificationOutboxJobRedispatchesStaleEvents(t *testing.T) {
	now := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	rows := []models.OutboxEvent{{ID: uuid.New()}, {ID: uuid.New()}, {ID: uuid.New()}}
	outbox := &fakeStaleOutbox{rows: rows}
	relay := &fakeRelay{failFor: map[uuid.UUID]bool{rows[1].ID: true}}

	jobIface, err := NewNotificationOutboxJob(NotificationOutboxJobParams{
		Logger: testLogger(),
		Outbox: outbox,
		Relay:  relay,
		Grace:  5 * time.Minute,
	})
	if err != nil {
		t.Fatalf("NewNotificationOutboxJob: %v", err)
	}
	job := jobIface.(*notificationOutboxJob)
	job.now = func() time.Time { return now }

	err = job.Run(context.Background())
	if err == nil {
		t.Fatal("expected aggregated error")
	}
	if got := len(multierr.Errors(err)); got != 1 {
		t.Fatalf("expected 1 failure, got %d", got)
	}
	if len(relay.handled) != 3 {
		t.Fatalf("expected every event handled, got %d", len(relay.handled))
	}
	if !outbox.cutoff.Equal(now.Add(-5 * time.Minute)) {
		t.Fatalf("unexpected cutoff %s", outbox.cutoff)
	}
	if outbox.maxAttempts != defaultOutboxMaxAttempts || outbox.limit != defaultOutboxBatchSize {
		t.Fatalf("unexpected paging %d/%d", outbox.maxAttempts, outbox.limit)
	}
}
