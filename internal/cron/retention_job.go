package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
)

const (
	defaultNotificationRetention = 30 * 24 * time.Hour
	defaultOutboxRetention       = 14 * 24 * time.Hour
	defaultPurgeBatch            = 500
)

// Purger deletes up to limit rows older than cutoff and reports how many
// went. Returning fewer than limit ends the sweep.
type Purger func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

type RetentionJobParams struct {
	Logger    *logger.Logger
	Purge     Purger
	Retention time.Duration
	BatchSize int
}

type retentionJob struct {
	name      string
	every     time.Duration
	logg      *logger.Logger
	purge     Purger
	retention time.Duration
	batch     int
	now       func() time.Time
}

func newRetentionJob(name string, every, fallback time.Duration, p RetentionJobParams) (*retentionJob, error) {
	if p.Logger == nil {
		return nil, fmt.Errorf("%s: logger required", name)
	}
	if p.Purge == nil {
		return nil, fmt.Errorf("%s: purge func required", name)
	}
	job := &retentionJob{
		name:      name,
		every:     every,
		logg:      p.Logger,
		purge:     p.Purge,
		retention: p.Retention,
		batch:     p.BatchSize,
		now:       time.Now,
	}
	if job.retention <= 0 {
		job.retention = fallback
	}
	if job.batch <= 0 {
		job.batch = defaultPurgeBatch
	}
	return job, nil
}

// NewNotificationCleanupJob removes read notifications past retention.
// Unread notifications are never purged.
func NewNotificationCleanupJob(p RetentionJobParams) (Job, error) {
	job, err := newRetentionJob("notification-cleanup", time.Hour, defaultNotificationRetention, p)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// NewOutboxRetentionJob removes published outbox events past retention.
// Unpublished events stay for the recovery job.
func NewOutboxRetentionJob(p RetentionJobParams) (Job, error) {
	job, err := newRetentionJob("outbox-retention", 6*time.Hour, defaultOutboxRetention, p)
	if err != nil {
		return nil, err
	}
	return job, nil
}

func (j *retentionJob) Name() string         { return j.name }
func (j *retentionJob) Every() time.Duration { return j.every }

// Run deletes batch by batch until one comes back short.
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var total int64
	for batches := 0; ; batches++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := j.purge(ctx, cutoff, j.batch)
		total += n
		if err != nil {
			return fmt.Errorf("%s after %d rows: %w", j.name, total, err)
		}
		if n < int64(j.batch) {
			j.logg.Info(j.logg.WithFields(ctx, map[string]any{
				"cutoff":  cutoff,
				"deleted": total,
				"batches": batches + 1,
			}), "retention sweep done")
			return nil
		}
	}
}
