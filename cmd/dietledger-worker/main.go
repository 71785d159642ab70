package main

import (
	"context"
	"errors"
	"os"
	"time"

	"dietledger/internal/amqp"
	"dietledger/internal/cli"
	"dietledger/internal/log"
	"dietledger/internal/sheets"
	gsheet "dietledger/internal/sheets/google"
	mem "dietledger/internal/sheets/memory"
	"dietledger/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	cfg := cli.LoadAndValidateConfig()
	logger := cli.SetupLogger(cfg, log.ComponentWorker)

	logger.Info("Starting dietledger-worker")

	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required for the worker")
		os.Exit(1)
	}

	app, err := cli.Build(context.Background(), cfg, logger, nil)
	if err != nil {
		logger.Error("Failed to initialize ledger", log.FieldError, err, "backend", cfg.DataBackend)
		os.Exit(1)
	}
	defer app.Close()

	var exporter sheets.ProgressExporter
	if cfg.GoogleSpreadsheetID != "" {
		opts, err := gsheet.CredentialOptions(cfg.GoogleServiceAccountJSON, cfg.GoogleServiceAccountFile)
		if err != nil {
			logger.Error("Invalid Google credentials", log.FieldError, err)
			os.Exit(1)
		}
		client, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, logger, opts...)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
			os.Exit(1)
		}
		exporter = client
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		exporter = mem.New()
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	exportWorker := worker.NewExportWorker(app.Store.Store, exporter, app.Catalog, logger)

	ctx := cli.GracefulShutdown(logger, 30*time.Second, nil)

	if cfg.BackfillDays > 0 {
		logger.Info("Backfilling recent days", "days", cfg.BackfillDays)
		if err := exportWorker.Backfill(ctx, app.Tracker.Today(), cfg.BackfillDays); err != nil {
			logger.Error("Backfill incomplete", log.FieldError, err)
		}
	}

	if err := amqpClient.Consume(ctx, exportWorker.HandleLedgerChanged); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped")
}
