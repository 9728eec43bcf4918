package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercato-labs/mercato-backend/api/controllers"
	ordercontrollers "github.com/mercato-labs/mercato-backend/api/controllers/orders"
	webhookcontrollers "github.com/mercato-labs/mercato-backend/api/controllers/webhooks"
	"github.com/mercato-labs/mercato-backend/api/middleware"
	"github.com/mercato-labs/mercato-backend/internal/auth"
	"github.com/mercato-labs/mercato-backend/internal/orders"
	"github.com/mercato-labs/mercato-backend/internal/payments"
	product "github.com/mercato-labs/mercato-backend/internal/products"
	stripewebhook "github.com/mercato-labs/mercato-backend/internal/webhooks/stripe"
	"github.com/mercato-labs/mercato-backend/pkg/auth/session"
	"github.com/mercato-labs/mercato-backend/pkg/config"
	"github.com/mercato-labs/mercato-backend/pkg/db"
	"github.com/mercato-labs/mercato-backend/pkg/logger"
	"github.com/mercato-labs/mercato-backend/pkg/redis"
	"github.com/mercato-labs/mercato-backend/pkg/stripe"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	sessionManager sessionManager,
	authService auth.Service,
	registerService auth.RegisterService,
	adminRegisterService auth.AdminRegisterService,
	productService product.Service,
	ordersSvc orders.Service,
	paymentsService payments.Service,
	stripeClient *stripe.Client,
	stripeWebhookService *stripewebhook.Service,
	stripeWebhookGuard *stripewebhook.IdempotencyGuard,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"database": dbP,
			"redis":    redisClient,
		}))
	})

	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
		r.Post("/validate", controllers.PublicValidate(logg))
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/stripe", webhookcontrollers.StripeWebhook(stripeWebhookService, stripeClient, stripeWebhookGuard, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, redisClient, logg)).Post("/login", controllers.AuthLogin(authService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg), middleware.Idempotency(redisClient, logg)).Post("/register", controllers.AuthRegister(registerService, authService, logg))
		r.Post("/logout", controllers.AuthLogout(sessionManager, cfg.JWT, logg))
		r.Post("/refresh", controllers.AuthRefresh(sessionManager, cfg.JWT, logg))
	})

	r.Route("/api/admin/v1/auth", func(r chi.Router) {
		if !cfg.App.IsProd() {
			r.With(middleware.AuthRateLimit(registerPolicy, redisClient, logg)).Post("/register", controllers.AdminAuthRegister(adminRegisterService, logg))
		}
	})

	// Catalog reads are public; mutations require an elevated session.
	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ListProducts(productService, logg))
		r.Get("/{productId}", controllers.GetProduct(productService, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
			r.Use(middleware.RequireElevated(logg))
			r.Use(middleware.Idempotency(redisClient, logg))
			r.Post("/", controllers.CreateProduct(productService, logg))
			r.Patch("/{productId}", controllers.UpdateProduct(productService, logg))
			r.Delete("/{productId}", controllers.DeactivateProduct(productService, logg))
		})
	})

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.Post("/", ordercontrollers.Create(ordersSvc, logg))
			r.Get("/", ordercontrollers.List(ordersSvc, logg))
			r.Get("/{orderId}", ordercontrollers.Detail(ordersSvc, logg))
			r.Post("/{orderId}/cancel", ordercontrollers.Cancel(ordersSvc, logg))
			r.Post("/{orderId}/payment-intent", ordercontrollers.CreatePaymentIntent(paymentsService, logg))
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, sessionManager, logg))
		r.Use(middleware.RequireRole("admin", logg))
		r.Use(middleware.Idempotency(redisClient, logg))

		r.Get("/ping", controllers.AdminPing())

		r.Route("/v1/orders", func(r chi.Router) {
			r.Get("/", controllers.AdminListOrders(ordersSvc, logg))
			r.Patch("/{orderId}/status", controllers.AdminUpdateOrderStatus(ordersSvc, logg))
			r.Patch("/{orderId}/payment", controllers.AdminUpdatePaymentStatus(ordersSvc, logg))
			r.Delete("/{orderId}", controllers.AdminDeleteOrder(ordersSvc, logg))
		})
	})

	return r
}
