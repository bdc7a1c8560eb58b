package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/groupbuy-backend/internal/app"
	"github.com/angelmondragon/groupbuy-backend/internal/cron"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/instance"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	application, err := app.Build(context.Background(), cfg, logg, prometheus.DefaultRegisterer)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap cron worker", err)
		os.Exit(1)
	}
	defer func() {
		if err := application.Close(); err != nil {
			logg.Error(context.Background(), "error closing resources", err)
		}
	}()

	jobs, err := buildJobs(application)
	if err != nil {
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := buildLock(application)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	registry, err := cron.NewRegistry(jobs...)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:       logg,
		Registry:     registry,
		Lock:         lock,
		Metrics:      metrics.NewJobMetrics(prometheus.DefaultRegisterer),
		Interval:     cfg.Cron.Interval,
		RunOnStartup: cfg.Cron.RunOnStartup,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.ID(),
		"jobs":        registry.Names(),
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildJobs(a *app.App) ([]cron.Job, error) {
	cfg := a.Config.Notifications

	expiry, err := cron.NewGroupOrderExpiryJob(cron.GroupOrderExpiryJobParams{
		Logger:    a.Logger,
		Expirer:   a.GroupOrders,
		BatchSize: a.Config.Cron.ExpiryBatch,
	})
	if err != nil {
		return nil, fmt.Errorf("group order expiry job: %w", err)
	}

	outboxRecovery, err := cron.NewNotificationOutboxJob(cron.NotificationOutboxJobParams{
		Logger:      a.Logger,
		Outbox:      a.Outbox,
		Relay:       a.Relay,
		Grace:       cfg.OutboxGracePeriod,
		BatchSize:   cfg.OutboxBatchSize,
		MaxAttempts: cfg.OutboxMaxAttempts,
	})
	if err != nil {
		return nil, fmt.Errorf("notification outbox job: %w", err)
	}

	emailRetry, err := cron.NewEmailRetryJob(cron.EmailRetryJobParams{
		Logger:  a.Logger,
		Tracker: a.Emails,
	})
	if err != nil {
		return nil, fmt.Errorf("email retry job: %w", err)
	}

	cleanup, err := cron.NewNotificationCleanupJob(cron.RetentionJobParams{
		Logger:    a.Logger,
		Purge:     a.NotificationsRepo.PurgeReadBefore,
		Retention: cfg.Retention(),
	})
	if err != nil {
		return nil, fmt.Errorf("notification cleanup job: %w", err)
	}

	retention, err := cron.NewOutboxRetentionJob(cron.RetentionJobParams{
		Logger:    a.Logger,
		Purge:     a.OutboxRepo.PurgePublishedBefore,
		Retention: cfg.OutboxRetention(),
	})
	if err != nil {
		return nil, fmt.Errorf("outbox retention job: %w", err)
	}

	return []cron.Job{expiry, outboxRecovery, emailRetry, cleanup, retention}, nil
}

func buildLock(a *app.App) (cron.Lock, error) {
	if a.Redis == nil {
		return &cron.LocalLock{}, nil
	}
	return cron.NewRedisLock(a.Redis, lockKey(a.Config.App.Env), a.Config.Cron.LockTTL)
}

// lockKey scopes the cycle lock per environment.
func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return pkgredis.Key(pkgredis.NSLock, "cron-worker", env)
}
