package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/anmolvirk/swiftcart-backend/api/controllers"
	ordercontrollers "github.com/anmolvirk/swiftcart-backend/api/controllers/orders"
	paymentcontrollers "github.com/anmolvirk/swiftcart-backend/api/controllers/payments"
	webhookcontrollers "github.com/anmolvirk/swiftcart-backend/api/controllers/webhooks"
	"github.com/anmolvirk/swiftcart-backend/api/middleware"
	"github.com/anmolvirk/swiftcart-backend/internal/orders"
	"github.com/anmolvirk/swiftcart-backend/internal/reconcile"
	"github.com/anmolvirk/swiftcart-backend/pkg/config"
	"github.com/anmolvirk/swiftcart-backend/pkg/db"
	"github.com/anmolvirk/swiftcart-backend/pkg/gateway/razorpay"
	"github.com/anmolvirk/swiftcart-backend/pkg/logger"
	"github.com/anmolvirk/swiftcart-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	ordersSvc orders.Service,
	reconcileSvc reconcile.Service,
	webhookVerifier *razorpay.Verifier,
	webhookGuard *reconcile.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(reconcileSvc, webhookVerifier, webhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderNumber}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderNumber}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
		})

		r.Post("/payments/verify", paymentcontrollers.Verify(reconcileSvc, logg))

		// Fulfilment transitions for back-office tooling.
		r.Route("/admin/orders", func(r chi.Router) {
			r.Post("/{orderNumber}/processing", ordercontrollers.MarkProcessing(ordersSvc, logg))
			r.Post("/{orderNumber}/ship", ordercontrollers.MarkShipped(ordersSvc, logg))
			r.Post("/{orderNumber}/deliver", ordercontrollers.MarkDelivered(ordersSvc, logg))
			r.Post("/{orderNumber}/refund", paymentcontrollers.Refund(reconcileSvc, logg))
		})
	})

	return r
}
