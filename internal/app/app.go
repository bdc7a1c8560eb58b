// Package app assembles the dependency graph shared by the api and cron-worker
// binaries.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"

	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/internal/grouporders"
	"github.com/angelmondragon/groupbuy-backend/internal/ledger"
	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/internal/orders"
	"github.com/angelmondragon/groupbuy-backend/internal/products"
	"github.com/angelmondragon/groupbuy-backend/internal/users"
	"github.com/angelmondragon/groupbuy-backend/pkg/cache"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/mailer"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	"github.com/angelmondragon/groupbuy-backend/pkg/migrate"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox"
	"github.com/angelmondragon/groupbuy-backend/pkg/outbox/idempotency"
	"github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// App holds the long-lived clients and services of one process.
type App struct {
	Config *config.Config
	Logger *logger.Logger

	DB    *db.Client
	Redis *redis.Client

	Metrics       *metrics.GroupBuyMetrics
	Cache         cache.Store
	CatalogCache  cache.Store
	GroupOrders   grouporders.Service
	Pricing       discounts.Service
	Notifications notifications.Service
	Emails        emaildelivery.Tracker
	Outbox        *outbox.Service
	Relay         *notifications.Relay

	NotificationsRepo notifications.Repository
	OutboxRepo        *outbox.Repository
}

// Build connects to the configured stores and wires every service. Redis is
// optional: without it caching is process-local and outbox claims are skipped.
func Build(ctx context.Context, cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer) (*App, error) {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap database: %w", err)
	}
	a := &App{Config: cfg, Logger: logg, DB: dbClient}

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return nil, a.closeOnError(fmt.Errorf("run dev migrations: %w", err))
	}

	// Group order reads are only ever cached in a shared store.
	a.Cache = cache.Noop{}
	a.CatalogCache = cache.NewMemory()
	if cfg.Redis.Enabled() {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, a.closeOnError(fmt.Errorf("bootstrap redis: %w", err))
		}
		a.Redis = redisClient
		a.Cache = cache.NewRedis(redisClient)
		a.CatalogCache = a.Cache
	} else {
		logg.Warn(ctx, "redis not configured; group order cache disabled and cron locking is process-local")
	}

	if err := a.wire(cfg, logg, reg); err != nil {
		return nil, a.closeOnError(err)
	}
	return a, nil
}

func (a *App) wire(cfg *config.Config, logg *logger.Logger, reg prometheus.Registerer) error {
	conn := a.DB.DB()
	now := time.Now

	a.Metrics = metrics.NewGroupBuyMetrics(reg)

	ledgerSvc, err := ledger.NewService(ledger.NewRepository(conn), now)
	if err != nil {
		return fmt.Errorf("ledger service: %w", err)
	}

	productRepo := products.NewCachedRepository(products.NewRepository(conn), a.CatalogCache, cfg.Cache.ProductTTL)
	a.Pricing, err = discounts.NewService(discounts.ServiceParams{
		Products:  productRepo,
		Discounts: discounts.NewRepository(conn),
		Cache:     a.CatalogCache,
		CacheTTL:  cfg.Cache.ProductTTL,
		Now:       now,
	})
	if err != nil {
		return fmt.Errorf("pricing service: %w", err)
	}

	a.OutboxRepo = outbox.NewRepository(conn)
	a.Outbox = outbox.NewService(a.OutboxRepo, logg)

	transport, err := mailer.New(cfg, logg)
	if err != nil {
		return fmt.Errorf("mailer: %w", err)
	}
	a.Emails, err = emaildelivery.NewTracker(emaildelivery.TrackerParams{
		Repo:           emaildelivery.NewRepository(conn),
		Mailer:         transport,
		Logger:         logg,
		Metrics:        a.Metrics,
		MaxRetries:     cfg.Notifications.MaxEmailRetries,
		BatchSize:      cfg.Notifications.RetryBatchSize,
		PendingTimeout: cfg.Notifications.PendingTimeout,
		Now:            now,
	})
	if err != nil {
		return fmt.Errorf("email tracker: %w", err)
	}

	a.NotificationsRepo = notifications.NewRepository(conn)
	a.Notifications, err = notifications.NewService(a.NotificationsRepo)
	if err != nil {
		return fmt.Errorf("notifications service: %w", err)
	}
	renderer, err := notifications.NewRenderer()
	if err != nil {
		return fmt.Errorf("notification templates: %w", err)
	}
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Notifications: a.NotificationsRepo,
		Emails:        a.Emails,
		Renderer:      renderer,
		Logger:        logg,
		Metrics:       a.Metrics,
		Concurrency:   cfg.Notifications.FanOutConcurrency,
	})
	if err != nil {
		return fmt.Errorf("notification dispatcher: %w", err)
	}

	groupOrderRepo := grouporders.NewRepository(conn)
	orderRepo := orders.NewRepository(conn)
	relayParams := notifications.RelayParams{
		Outbox:      a.Outbox,
		GroupOrders: groupOrderRepo,
		Orders:      orderRepo,
		Users:       users.NewRepository(conn),
		Dispatcher:  dispatcher,
		Logger:      logg,
	}
	if a.Redis != nil {
		claims, err := idempotency.NewManager(a.Redis, cfg.Notifications.ClaimTTL)
		if err != nil {
			return fmt.Errorf("outbox claims: %w", err)
		}
		relayParams.Claims = claims
	} else {
		claims, err := outbox.NewClaims(a.OutboxRepo, cfg.Notifications.ClaimTTL)
		if err != nil {
			return fmt.Errorf("outbox claims: %w", err)
		}
		relayParams.Claims = claims
	}
	a.Relay, err = notifications.NewRelay(relayParams)
	if err != nil {
		return fmt.Errorf("notification relay: %w", err)
	}

	a.GroupOrders, err = grouporders.NewService(grouporders.ServiceParams{
		Tx:        a.DB,
		Repo:      groupOrderRepo,
		Orders:    orderRepo,
		Ledger:    ledgerSvc,
		Products:  productRepo,
		Pricing:   a.Pricing,
		Outbox:    a.Outbox,
		Publisher: a.Relay,
		Cache:     a.Cache,
		CacheTTL:  cfg.Cache.GroupOrderTTL,
		Metrics:   a.Metrics,
		Logger:    logg,
		Now:       now,
	})
	if err != nil {
		return fmt.Errorf("group order service: %w", err)
	}
	return nil
}

// Close releases the store connections.
func (a *App) Close() error {
	var err error
	if a.Redis != nil {
		err = multierr.Append(err, a.Redis.Close())
	}
	if a.DB != nil {
		err = multierr.Append(err, a.DB.Close())
	}
	return err
}

func (a *App) closeOnError(err error) error {
	if closeErr := a.Close(); closeErr != nil {
		return multierr.Append(err, fmt.Errorf("close: %w", closeErr))
	}
	return err
}
