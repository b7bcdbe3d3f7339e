package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"paluwagan/internal/amqp"
	"paluwagan/internal/cli"
	apphttp "paluwagan/internal/http"
	"paluwagan/internal/log"
	"paluwagan/internal/metrics"
	"paluwagan/internal/services"
)

type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentApp)

	m := metrics.New()
	ctx := context.Background()

	store := cli.InitStore(ctx, logger, cfg, m)
	logger.Info("Store initialized", "backend", cfg.DataBackend)

	opts := append(cli.LedgerOptions(cfg), services.WithObserver(m))

	amqpClient := cli.ConnectAMQP(logger, cfg, false)
	if amqpClient != nil {
		opts = append(opts, services.WithPaymentPublisher(amqpClient))
	}
	ledger := services.NewLedgerService(store.Store, opts...)
	entries := cli.InitLedger(ctx, logger, cfg)

	serverOpts := []apphttp.ServerOption{
		apphttp.WithLogger(logger),
		apphttp.WithMetrics(m),
		apphttp.WithLedgerReader(entries),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithDashboardCacheTTL(cfg.DashboardCacheTTL),
	}
	if p, ok := store.Store.(pinger); ok {
		serverOpts = append(serverOpts, apphttp.WithReadinessCheck("store", p.Ping))
	}
	if amqpClient != nil {
		serverOpts = append(serverOpts, apphttp.WithReadinessCheck("amqp", amqpCheck(amqpClient)))
	}
	srv := apphttp.NewServer(":"+cfg.Port, ledger, serverOpts...)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err.Error())
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Warn("Failed to close AMQP client", log.FieldError, err.Error())
			}
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err.Error())
		}
	})

	logger.Info("Starting paluwagan server",
		"port", cfg.Port,
		"backend", cfg.DataBackend,
		log.FieldOperation, log.OpStartup)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err.Error(), "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Server stopped gracefully")
}

func amqpCheck(c *amqp.Client) apphttp.ReadinessCheck {
	return func(context.Context) error {
		if !c.Healthy() {
			return errors.New("broker connection unavailable")
		}
		return nil
	}
}
