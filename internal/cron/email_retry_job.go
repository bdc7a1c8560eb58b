package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

type emailRetrier interface {
	SweepRetries(ctx context.Context) (emaildelivery.SweepResult, error)
}

type EmailRetryJobParams struct {
	Logger  *logger.Logger
	Tracker emailRetrier
}

// NewEmailRetryJob re-sends failed email deliveries that still have retries left.
func NewEmailRetryJob(params EmailRetryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Tracker == nil {
		return nil, fmt.Errorf("email tracker required")
	}
	return &emailRetryJob{logg: params.Logger, tracker: params.Tracker}, nil
}

type emailRetryJob struct {
	logg    *logger.Logger
	tracker emailRetrier
}

func (j *emailRetryJob) Name() string { return "email-retry" }

func (j *emailRetryJob) Run(ctx context.Context) error {
	result, err := j.tracker.SweepRetries(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"attempted":    result.Attempted,
		"succeeded":    result.Succeeded,
		"still_failed": result.StillFailed,
		"exhausted":    result.Exhausted,
		"reclaimed":    result.Reclaimed,
	})
	if err != nil {
		return fmt.Errorf("email retry sweep: %w", err)
	}
	if result.Attempted > 0 || result.Exhausted > 0 || result.Reclaimed > 0 {
		j.logg.Info(logCtx, "email retry sweep complete")
	}
	return nil
}
