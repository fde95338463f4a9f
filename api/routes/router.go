package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gathergrid/gathergrid-backend/api/controllers"
	accountcontrollers "github.com/gathergrid/gathergrid-backend/api/controllers/accounts"
	bookingcontrollers "github.com/gathergrid/gathergrid-backend/api/controllers/bookings"
	cartcontrollers "github.com/gathergrid/gathergrid-backend/api/controllers/cart"
	ordercontrollers "github.com/gathergrid/gathergrid-backend/api/controllers/orders"
	webhookcontrollers "github.com/gathergrid/gathergrid-backend/api/controllers/webhooks"
	"github.com/gathergrid/gathergrid-backend/api/middleware"
	"github.com/gathergrid/gathergrid-backend/internal/accounts"
	"github.com/gathergrid/gathergrid-backend/internal/bookings"
	"github.com/gathergrid/gathergrid-backend/internal/orders"
	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/metrics"
	pkgredis "github.com/gathergrid/gathergrid-backend/pkg/redis"
)

// Params collects everything the router mounts.
type Params struct {
	Config      *config.Config
	Logger      *logger.Logger
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency pkgredis.IdempotencyStore
	HTTPMetrics *metrics.HTTPMetrics
	Gatherer    prometheus.Gatherer

	Orders   orders.Service
	Bookings bookings.Service
	Accounts accounts.Service
	Cart     cartcontrollers.Store

	WebhookVerifier  webhookcontrollers.EventVerifier
	WebhookGuard     webhookcontrollers.EventGuard
	WebhookProcessor webhookcontrollers.EventProcessor
}

// NewRouter builds the full HTTP surface: health and metrics probes, the
// provider webhook, and the authenticated marketplace and virtual-event
// APIs.
func NewRouter(p Params) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.Recoverer(p.Logger),
		middleware.RequestID(p.Logger),
		middleware.Logging(p.Logger),
		middleware.CORS(),
	)
	if p.HTTPMetrics != nil {
		r.Use(p.HTTPMetrics.Middleware)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(p.Config))
		r.Get("/ready", controllers.HealthReady(p.Config, p.Logger, map[string]controllers.Pinger{
			"database": p.DB,
			"redis":    p.Redis,
		}))
	})

	if p.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(p.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Post("/webhooks/stripe", webhookcontrollers.StripeWebhook(p.WebhookVerifier, p.WebhookGuard, p.WebhookProcessor, p.Logger))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(p.Config.JWT, p.Logger))
		r.Use(middleware.Idempotency(p.Idempotency, p.Logger))

		r.Route("/marketplace", func(r chi.Router) {
			r.Post("/place-order", ordercontrollers.PlaceOrder(p.Orders, p.Logger))
			r.Post("/confirm-payment", ordercontrollers.ConfirmPayment(p.Orders, p.Logger))
			// transitions payment state directly, so it is reserved to
			// internal callers; external settlement flows through the webhook
			r.With(middleware.RequireRole("internal", p.Logger)).
				Put("/order-status", ordercontrollers.UpdateOrderStatus(p.Orders, p.Logger))
			r.Put("/delivery-status", ordercontrollers.UpdateDeliveryStatus(p.Orders, p.Logger))
			r.Get("/my-orders", ordercontrollers.MyOrders(p.Orders, p.Logger))
			r.Get("/orders/{orderRef}", ordercontrollers.Detail(p.Orders, p.Logger))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cartcontrollers.List(p.Cart, p.Logger))
				r.Post("/", cartcontrollers.UpsertLine(p.Cart, p.Logger))
				r.Delete("/{productID}", cartcontrollers.RemoveLine(p.Cart, p.Logger))
			})
		})

		r.Route("/virtual-events", func(r chi.Router) {
			r.Post("/book-tickets", bookingcontrollers.BookTickets(p.Bookings, p.Logger))
			r.Put("/update-booking-status", bookingcontrollers.UpdateBookingStatus(p.Bookings, p.Logger))
			r.Post("/cancel-booking", bookingcontrollers.CancelBooking(p.Bookings, p.Logger))
			r.Post("/ticket-exhaust", bookingcontrollers.TicketExhaust(p.Bookings, p.Logger))
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/onboarding", accountcontrollers.StartPayoutOnboarding(p.Accounts, p.Logger))
			r.Get("/status", accountcontrollers.PayoutStatus(p.Accounts, p.Logger))
		})
	})

	return r
}
