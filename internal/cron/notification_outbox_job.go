package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/pkg/db/models"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const (
	defaultOutboxGrace       = 2 * time.Minute
	defaultOutboxBatchSize   = 50
	defaultOutboxMaxAttempts = 10
)

type staleOutboxReader interface {
	FetchStale(ctx context.Context, cutoff time.Time, maxAttempts, limit int) ([]models.OutboxEvent, error)
}

type outboxHandler interface {
	Handle(ctx context.Context, row models.OutboxEvent) ([]notifications.RecipientOutcome, error)
}

type NotificationOutboxJobParams struct {
	Logger      *logger.Logger
	Outbox      staleOutboxReader
	Relay       outboxHandler
	Grace       time.Duration
	BatchSize   int
	MaxAttempts int
}

// NewNotificationOutboxJob re-dispatches events that committed but were never
// marked published, e.g. when the process died between commit and fan-out.
func NewNotificationOutboxJob(params NotificationOutboxJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox reader required")
	}
	if params.Relay == nil {
		return nil, fmt.Errorf("relay required")
	}
	grace := params.Grace
	if grace <= 0 {
		grace = defaultOutboxGrace
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultOutboxBatchSize
	}
	maxAttempts := params.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultOutboxMaxAttempts
	}
	return &notificationOutboxJob{
		logg:        params.Logger,
		outbox:      params.Outbox,
		relay:       params.Relay,
		grace:       grace,
		batch:       batch,
		maxAttempts: maxAttempts,
		now:         time.Now,
	}, nil
}

type notificationOutboxJob struct {
	logg        *logger.Logger
	outbox      staleOutboxReader
	relay       outboxHandler
	grace       time.Duration
	batch       int
	maxAttempts int
	now         func() time.Time
}

func (j *notificationOutboxJob) Name() string { return "notification-outbox" }

func (j *notificationOutboxJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.grace)
	rows, err := j.outbox.FetchStale(ctx, cutoff, j.maxAttempts, j.batch)
	if err != nil {
		return fmt.Errorf("fetch stale outbox events: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	var (
		errs       error
		dispatched int
	)
	for _, row := range rows {
		if _, err := j.relay.Handle(ctx, row); err != nil {
			errs = multierr.Append(errs, fmt.Errorf("event %s: %w", row.ID, err))
			continue
		}
		dispatched++
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"stale":      len(rows),
		"dispatched": dispatched,
		"failed":     len(multierr.Errors(errs)),
	})
	j.logg.Info(logCtx, "outbox recovery pass complete")
	return errs
}
