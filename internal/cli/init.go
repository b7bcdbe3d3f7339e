// Package cli provides common CLI initialization utilities shared by
// cmd/paluwagan, cmd/reminder-worker and cmd/ledger-worker.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"paluwagan/internal/amqp"
	"paluwagan/internal/backend"
	"paluwagan/internal/config"
	"paluwagan/internal/log"
	"paluwagan/internal/services"
	"paluwagan/internal/storage"
)

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// SetupLogger installs the default logger described by cfg. An unknown level
// falls back to info with a warning.
func SetupLogger(cfg *config.Config) *log.Logger {
	logger, err := log.Setup(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		logger.Warn("Invalid log level, using info", log.FieldError, err.Error())
	}
	return logger
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig() (*config.Config, *log.Logger) {
	cfg := config.Load()
	logger := SetupLogger(cfg)
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.FieldError, err.Error(),
			log.FieldErrorType, log.ErrorTypeConfiguration)
		os.Exit(1)
	}
	return cfg, logger
}

// InitStore opens the record store selected by cfg.
// Returns the store result or exits the process on failure.
func InitStore(ctx context.Context, logger *log.Logger, cfg *config.Config, obs storage.DecodeObserver) *backend.StoreResult {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	bcfg.Observer = obs

	res, err := backend.NewFactory(logger.WithComponent(log.ComponentBackend).Logger).CreateStore(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize store",
			log.FieldError, err.Error(),
			"backend", cfg.DataBackend)
		os.Exit(1)
	}
	return res
}

// InitLedger opens the payment ledger selected by cfg.
// Returns the ledger or exits the process on failure.
func InitLedger(ctx context.Context, logger *log.Logger, cfg *config.Config) backend.Ledger {
	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", log.FieldError, err.Error())
		os.Exit(1)
	}
	ledger, err := backend.NewFactory(logger.WithComponent(log.ComponentSheets).Logger).CreateLedger(ctx, bcfg)
	if err != nil {
		logger.Error("Failed to initialize ledger",
			log.FieldError, err.Error(),
			"ledger", cfg.LedgerBackend)
		os.Exit(1)
	}
	return ledger
}

// LedgerOptions maps the scheduling settings of cfg onto service options.
func LedgerOptions(cfg *config.Config) []services.Option {
	return []services.Option{
		services.WithScheduler(services.NewScheduler(services.UnknownFrequencyPolicy(cfg.UnknownFrequencyPolicy))),
		services.WithReminderTrigger(services.NewReminderTrigger(cfg.ReminderLead())),
		services.WithMaxMembers(cfg.MaxGroupMembers),
	}
}

// ConnectAMQP dials the broker when AMQP_URL is set. It returns nil when
// messaging is disabled or the broker is unreachable and required is false.
func ConnectAMQP(logger *log.Logger, cfg *config.Config, required bool) *amqp.Client {
	if cfg.AMQPURL == "" {
		if required {
			logger.Error("AMQP_URL is required", log.FieldErrorType, log.ErrorTypeConfiguration)
			os.Exit(1)
		}
		logger.Info("AMQP disabled - events will not be published")
		return nil
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		if required {
			logger.Error("Failed to initialize AMQP client",
				log.FieldError, err.Error(),
				log.FieldErrorType, log.ErrorTypeNetwork)
			os.Exit(1)
		}
		logger.Warn("Failed to initialize AMQP client, continuing without messaging", log.FieldError, err.Error())
		return nil
	}
	logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	return client
}

// GracefulShutdown sets up signal handling for graceful shutdown.
// Returns a context that will be cancelled on shutdown signals,
// and a channel that signals when shutdown is complete.
func GracefulShutdown(logger *log.Logger, timeout time.Duration, cleanup func(context.Context)) (context.Context, <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		sig := <-sigChan
		logger.Info("Shutdown signal received", "signal", sig.String(), log.FieldOperation, log.OpShutdown)

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), timeout)
		defer shutdownCancel()

		cancel()

		if cleanup != nil {
			cleanup(shutdownCtx)
		}

		if shutdownCtx.Err() != nil {
			logger.Warn("Shutdown timeout reached")
		} else {
			logger.Info("Shutdown complete")
		}
		close(done)
	}()

	return ctx, done
}

// WaitForShutdown blocks until the context is cancelled and cleanup finished.
func WaitForShutdown(ctx context.Context, done <-chan struct{}) {
	<-ctx.Done()
	<-done
}
