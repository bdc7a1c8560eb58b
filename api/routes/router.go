package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/groupbuy-backend/api/controllers"
	grouporderscontrollers "github.com/angelmondragon/groupbuy-backend/api/controllers/grouporders"
	webhookcontrollers "github.com/angelmondragon/groupbuy-backend/api/controllers/webhooks"
	"github.com/angelmondragon/groupbuy-backend/api/middleware"
	"github.com/angelmondragon/groupbuy-backend/internal/discounts"
	"github.com/angelmondragon/groupbuy-backend/internal/emaildelivery"
	"github.com/angelmondragon/groupbuy-backend/internal/grouporders"
	"github.com/angelmondragon/groupbuy-backend/internal/notifications"
	"github.com/angelmondragon/groupbuy-backend/pkg/config"
	"github.com/angelmondragon/groupbuy-backend/pkg/db"
	"github.com/angelmondragon/groupbuy-backend/pkg/logger"
	"github.com/angelmondragon/groupbuy-backend/pkg/metrics"
	pkgredis "github.com/angelmondragon/groupbuy-backend/pkg/redis"
)

// Params wires the services the HTTP surface depends on.
type Params struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            db.Pinger
	Redis         db.Pinger
	Idempotency   pkgredis.KV
	Gatherer      prometheus.Gatherer
	HTTPMetrics   *metrics.HTTPMetrics
	GroupOrders   grouporders.Service
	Pricing       discounts.Service
	Notifications notifications.Service
	Emails        emaildelivery.Tracker
}

func NewRouter(p Params) http.Handler {
	cfg := p.Config
	logg := p.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg, p.HTTPMetrics),
		middleware.CORS(cfg.App.CORSOrigins),
	)

	adminWrite := middleware.Idempotency(p.Idempotency, logg, middleware.IdempotencyTTL)
	moneyWrite := middleware.Idempotency(p.Idempotency, logg, middleware.CriticalIdempotencyTTL)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]db.Pinger{
			"database": p.DB,
			"redis":    p.Redis,
		}))
	})

	gatherer := p.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/payments", webhookcontrollers.PaymentWebhook(p.GroupOrders, cfg.Webhooks.PaymentSecret, logg))
		r.Post("/email/delivered", webhookcontrollers.EmailDeliveredWebhook(p.Emails, cfg.Webhooks.EmailSecret, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/group-orders/{groupOrderId}", func(r chi.Router) {
			r.Get("/", grouporderscontrollers.Get(p.GroupOrders, logg))
			r.With(moneyWrite).Post("/join", grouporderscontrollers.Join(p.GroupOrders, logg))
		})
		r.With(moneyWrite).Post("/orders/{orderId}/cancel", grouporderscontrollers.CancelOrder(p.GroupOrders, logg))
		r.Post("/pricing/quote", controllers.PricingQuote(p.Pricing, logg))

		r.Route("/users/{userId}/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(p.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(p.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(p.Notifications, logg))
		})
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Route("/group-orders", func(r chi.Router) {
			r.With(adminWrite).Post("/", grouporderscontrollers.Open(p.GroupOrders, logg))
			r.With(adminWrite).Post("/{groupOrderId}/transition", grouporderscontrollers.Transition(p.GroupOrders, logg))
			r.With(moneyWrite).Post("/{groupOrderId}/cancel", grouporderscontrollers.Cancel(p.GroupOrders, logg))
		})
		r.Route("/email-deliveries", func(r chi.Router) {
			r.Post("/retry", controllers.RetryEmailDeliveries(p.Emails, logg))
			r.Get("/exhausted", controllers.ListExhaustedEmailDeliveries(p.Emails, logg))
		})
	})

	return r
}
