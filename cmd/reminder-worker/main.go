package main

import (
	"context"
	"time"

	"paluwagan/internal/cli"
	"paluwagan/internal/core"
	"paluwagan/internal/log"
	"paluwagan/internal/metrics"
	"paluwagan/internal/services"
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig()
	logger = logger.WithComponent(log.ComponentReminder)
	logger.Info("Starting reminder-worker", log.FieldOperation, log.OpStartup)

	m := metrics.New()
	ctx := context.Background()

	store := cli.InitStore(ctx, logger, cfg, m)

	opts := append(cli.LedgerOptions(cfg), services.WithObserver(m))
	amqpClient := cli.ConnectAMQP(logger, cfg, false)
	if amqpClient != nil {
		opts = append(opts,
			services.WithNotifier(amqpClient),
			services.WithPaymentPublisher(amqpClient))
	} else {
		logger.Info("Reminders will be logged only")
	}
	ledger := services.NewLedgerService(store.Store, opts...)

	clock := core.SystemClock{}
	reminders := services.NewLoop("reminder-processor", cfg.ReminderInterval, clock,
		services.NewReminderProcessor(store.Store, ledger).Task())
	cycles := services.NewLoop("cycle-processor", cfg.CycleInterval, clock,
		services.NewCycleProcessor(store.Store, ledger).Task())

	loops := []*services.Loop{cycles, reminders}

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		for _, l := range loops {
			if err := l.Stop(ctx); err != nil {
				logger.Warn("Failed to stop processor", log.FieldError, err.Error())
			}
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

	for _, l := range loops {
		if err := l.Start(shutdownCtx); err != nil {
			logger.Error("Failed to start processor", log.FieldError, err.Error())
			return
		}
	}
	logger.Info("Processors running",
		"reminder_interval", cfg.ReminderInterval,
		"cycle_interval", cfg.CycleInterval,
		"reminder_lead", cfg.ReminderLead())

	cli.WaitForShutdown(shutdownCtx, done)
	logger.Info("Reminder-worker stopped")
}
