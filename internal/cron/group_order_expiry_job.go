package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/groupbuy-backend/internal/grouporders"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const defaultExpiryBatchSize = 50

type groupOrderExpirer interface {
	ExpireDue(ctx context.Context, limit int) (grouporders.ExpireResult, error)
}

type GroupOrderExpiryJobParams struct {
	Logger    *logger.Logger
	Expirer   groupOrderExpirer
	BatchSize int
}

// NewGroupOrderExpiryJob moves collecting batches past their deadline to expired.
func NewGroupOrderExpiryJob(params GroupOrderExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Expirer == nil {
		return nil, fmt.Errorf("group order service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultExpiryBatchSize
	}
	return &groupOrderExpiryJob{logg: params.Logger, expirer: params.Expirer, batch: batch}, nil
}

type groupOrderExpiryJob struct {
	logg    *logger.Logger
	expirer groupOrderExpirer
	batch   int
}

func (j *groupOrderExpiryJob) Name() string { return "group-order-expiry" }

// Run drains due batches page by page. A page that expires nothing ends the
// run so rows that keep failing are not retried in a tight loop.
func (j *groupOrderExpiryJob) Run(ctx context.Context) error {
	var total grouporders.ExpireResult
	for {
		result, err := j.expirer.ExpireDue(ctx, j.batch)
		total.Scanned += result.Scanned
		total.Expired += result.Expired
		total.OrdersCancelled += result.OrdersCancelled
		if err != nil {
			j.log(ctx, total)
			return fmt.Errorf("group order expiry: %w", err)
		}
		if result.Scanned < j.batch || result.Expired == 0 {
			break
		}
	}
	j.log(ctx, total)
	return nil
}

func (j *groupOrderExpiryJob) log(ctx context.Context, total grouporders.ExpireResult) {
	if total.Scanned == 0 {
		return
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"scanned":          total.Scanned,
		"expired":          total.Expired,
		"orders_cancelled": total.OrdersCancelled,
	})
	j.logg.Info(logCtx, "group order expiry sweep complete")
}
