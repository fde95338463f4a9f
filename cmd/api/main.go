package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gathergrid/gathergrid-backend/api"
	"github.com/gathergrid/gathergrid-backend/api/routes"
	"github.com/gathergrid/gathergrid-backend/internal/accounts"
	"github.com/gathergrid/gathergrid-backend/internal/address"
	"github.com/gathergrid/gathergrid-backend/internal/bookings"
	"github.com/gathergrid/gathergrid-backend/internal/cart"
	"github.com/gathergrid/gathergrid-backend/internal/inventory"
	"github.com/gathergrid/gathergrid-backend/internal/notifications"
	"github.com/gathergrid/gathergrid-backend/internal/orders"
	stripewebhook "github.com/gathergrid/gathergrid-backend/internal/webhooks/stripe"
	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/db"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/metrics"
	"github.com/gathergrid/gathergrid-backend/pkg/migrate"
	"github.com/gathergrid/gathergrid-backend/pkg/redis"
	"github.com/gathergrid/gathergrid-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := stripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe client", err)
		os.Exit(1)
	}

	gormDB := dbClient.DB()

	stockLedger, err := inventory.NewLedger(gormDB)
	if err != nil {
		logg.Error(ctx, "failed to build inventory ledger", err)
		os.Exit(1)
	}

	notifier, err := notifications.NewEnqueuer(notifications.NewRepository(gormDB))
	if err != nil {
		logg.Error(ctx, "failed to build notification enqueuer", err)
		os.Exit(1)
	}

	cartRepo := cart.NewRepository(gormDB)

	ordersRepo := orders.NewRepository(gormDB)
	ordersSvc, err := orders.NewService(
		ordersRepo,
		dbClient,
		stripeClient,
		stockLedger,
		cartRepo,
		address.NewRepository(gormDB),
		notifier,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to build orders service", err)
		os.Exit(1)
	}

	bookingsRepo := bookings.NewRepository(gormDB)
	bookingsSvc, err := bookings.NewService(
		bookingsRepo,
		dbClient,
		stripeClient,
		stockLedger,
		notifier,
		cfg.Booking,
		cfg.Stripe,
		logg,
	)
	if err != nil {
		logg.Error(ctx, "failed to build bookings service", err)
		os.Exit(1)
	}

	accountsSvc, err := accounts.NewService(accounts.NewRepository(gormDB), stripeClient, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to build accounts service", err)
		os.Exit(1)
	}

	webhookGuard, err := stripewebhook.NewIdempotencyGuard(redisClient, cfg.Redis.WebhookIdempotencyTTL)
	if err != nil {
		logg.Error(ctx, "failed to build webhook guard", err)
		os.Exit(1)
	}
	webhookSvc, err := stripewebhook.NewService(ordersSvc, bookingsSvc, ordersRepo, bookingsRepo, logg)
	if err != nil {
		logg.Error(ctx, "failed to build webhook consumer", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	httpMetrics := metrics.NewHTTPMetrics(registry)

	handler := routes.NewRouter(routes.Params{
		Config:           cfg,
		Logger:           logg,
		DB:               dbClient,
		Redis:            redisClient,
		Idempotency:      redisClient,
		HTTPMetrics:      httpMetrics,
		Gatherer:         registry,
		Orders:           ordersSvc,
		Bookings:         bookingsSvc,
		Accounts:         accountsSvc,
		Cart:             cartRepo,
		WebhookVerifier:  stripeClient,
		WebhookGuard:     webhookGuard,
		WebhookProcessor: webhookSvc,
	})

	runCtx := logg.WithFields(ctx, map[string]any{
		"env":  cfg.App.Env,
		"addr": ":" + cfg.App.Port,
	})
	logg.Info(runCtx, "starting api server")

	server := api.NewServer(cfg, handler, logg)
	if err := server.Run(ctx); err != nil {
		logg.Error(runCtx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "api server stopped")
}
