package main

import (
	"context"
	"errors"
	"time"

	"paluwagan/internal/cli"
	"paluwagan/internal/log"
	"paluwagan/internal/metrics"
	"paluwagan/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentWorker)
	logger.Info("Starting ledger-worker", log.FieldOperation, log.OpStartup)

	ctx := context.Background()
	store := cli.InitStore(ctx, logger, cfg, metrics.New())
	ledger := cli.InitLedger(ctx, logger, cfg)
	logger.Info("Ledger initialized", "ledger", cfg.LedgerBackend)

	amqpClient := cli.ConnectAMQP(logger, cfg, true)

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := amqpClient.Close(); err != nil {
			logger.Warn("Failed to close AMQP client", log.FieldError, err.Error())
		}
		if err := store.Cleanup(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err.Error())
		}
	})

	w := worker.NewLedgerWorker(store.Store, ledger, worker.LogDeliverer{})
	go func() {
		if err := amqpClient.Consume(shutdownCtx, w.Handlers()); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", log.FieldError, err.Error())
		}
	}()

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Ledger-worker stopped")
}
