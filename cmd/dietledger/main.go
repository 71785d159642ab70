package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"dietledger/internal/amqp"
	"dietledger/internal/cli"
	apphttp "dietledger/internal/http"
	"dietledger/internal/log"
	"dietledger/internal/middleware/ratelimit"
	"dietledger/internal/services"
)

var version = "dev"

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentApp)

	// Ledger events are optional; without a broker the worker simply sees nothing.
	var publisher services.Publisher
	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		c, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		amqpClient = c
		publisher = c
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
	}

	app, err := cli.Build(context.Background(), cfg, logger, publisher)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}

	rl := ratelimit.DefaultConfig()
	rl.RequestsPerMinute = cfg.RateLimitPerMinute
	srv := apphttp.NewServer(":"+cfg.Port, app.Tracker, logger,
		apphttp.WithVersion(version),
		apphttp.WithRateLimit(rl))

	ctx := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
		if amqpClient != nil {
			if err := amqpClient.Close(); err != nil {
				logger.Error("AMQP close error", log.FieldError, err)
			}
		}
		if err := app.Close(); err != nil {
			logger.Error("Store close error", log.FieldError, err)
		}
	})

	logger.Info("Starting dietledger server", "port", cfg.Port, "backend", cfg.DataBackend, "version", version)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Server stopped gracefully")
}
