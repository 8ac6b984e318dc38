package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/marketpay-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/marketpay-backend/api/controllers/webhooks"
	"github.com/angelmondragon/marketpay-backend/api/middleware"
	"github.com/angelmondragon/marketpay-backend/internal/payments"
	"github.com/angelmondragon/marketpay-backend/internal/refunds"
	"github.com/angelmondragon/marketpay-backend/pkg/config"
	"github.com/angelmondragon/marketpay-backend/pkg/db"
	"github.com/angelmondragon/marketpay-backend/pkg/logger"
	"github.com/angelmondragon/marketpay-backend/pkg/pubsub"
	"github.com/angelmondragon/marketpay-backend/pkg/razorpay"
	"github.com/angelmondragon/marketpay-backend/pkg/redis"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	pubsubClient *pubsub.Client,
	gatewayClient *razorpay.Client,
	paymentsService payments.Service,
	refundsService refunds.Service,
	webhookService webhookcontrollers.RazorpayWebhookService,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	// Typed nils would slip through the readiness checks' nil guard.
	var redisP, pubsubP pinger
	var idemStore redis.IdempotencyStore
	if redisClient != nil {
		redisP = redisClient
		idemStore = redisClient
	}
	if pubsubClient != nil {
		pubsubP = pubsubClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisP, pubsubP))
	})

	// Webhook deliveries authenticate by signature, not Idempotency-Key, so
	// they sit outside the idempotency group.
	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/razorpay", webhookcontrollers.RazorpayWebhook(webhookService, gatewayClient, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.Post("/payment", controllers.InitiatePayment(paymentsService, logg))
			r.Get("/payment", controllers.PaymentByOrder(paymentsService, logg))
			r.Post("/refunds", controllers.RefundCreate(refundsService, logg))
			r.Get("/refunds", controllers.RefundsByOrder(refundsService, logg))
		})
		r.Get("/payments/{paymentId}", controllers.PaymentByID(paymentsService, logg))
		r.Get("/refunds/{refundId}", controllers.RefundByID(refundsService, logg))
	})

	return r
}
