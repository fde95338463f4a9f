package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gathergrid/gathergrid-backend/internal/notifications"
	"github.com/gathergrid/gathergrid-backend/internal/receipts"
	"github.com/gathergrid/gathergrid-backend/pkg/config"
	"github.com/gathergrid/gathergrid-backend/pkg/db"
	"github.com/gathergrid/gathergrid-backend/pkg/logger"
	"github.com/gathergrid/gathergrid-backend/pkg/mail"
	"github.com/gathergrid/gathergrid-backend/pkg/metrics"
	"github.com/gathergrid/gathergrid-backend/pkg/pdf"
)

// The worker drains the notification queue: it renders receipt, invoice,
// and ticket documents to PDF and mails them out, retrying with backoff.
func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	generator, err := receipts.NewGenerator()
	if err != nil {
		logg.Error(ctx, "failed to parse document templates", err)
		os.Exit(1)
	}

	renderer, err := pdf.NewWKRenderer(cfg.PDF)
	if err != nil {
		logg.Error(ctx, "failed to build pdf renderer", err)
		os.Exit(1)
	}

	sender, err := mail.NewClient(cfg.Sendgrid)
	if err != nil {
		logg.Error(ctx, "failed to build mail client", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	jobMetrics := metrics.NewJobMetrics(registry)

	dispatcher, err := notifications.NewDispatcher(
		notifications.NewRepository(dbClient.DB()),
		generator,
		renderer,
		sender,
		cfg.Worker,
		logg,
		jobMetrics,
	)
	if err != nil {
		logg.Error(ctx, "failed to build dispatcher", err)
		os.Exit(1)
	}

	metricsServer := &http.Server{
		Addr:              ":" + cfg.Worker.MetricsPort,
		Handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logg.Error(context.Background(), "metrics server stopped unexpectedly", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	runCtx := logg.WithFields(ctx, map[string]any{
		"poll_interval": cfg.Worker.PollInterval.String(),
		"batch_size":    cfg.Worker.BatchSize,
	})
	logg.Info(runCtx, "starting notification worker")

	if err := dispatcher.Run(ctx); err != nil && err != context.Canceled {
		logg.Error(runCtx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(runCtx, "worker shut down gracefully")
}
