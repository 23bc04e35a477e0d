package main

import (
	"context"
	"errors"
	"os"

	"expensetracker/internal/amqp"
	"expensetracker/internal/cli"
	"expensetracker/internal/config"
	"expensetracker/internal/log"
	"expensetracker/internal/ports"
	gsheet "expensetracker/internal/sheets/google"
	mem "expensetracker/internal/sheets/memory"
	"expensetracker/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), os.Stdout)
	logger.Info("Starting expense-worker")

	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	ctx, stop := cli.SignalContext(context.Background())
	defer stop()

	var ledger ports.LedgerWriter
	if cfg.SheetsEnabled() {
		sheet, err := gsheet.New(ctx, gsheet.Options{
			SpreadsheetID: cfg.GoogleSpreadsheetID,
			SheetName:     cfg.GoogleSheetName,
			ClientFile:    cfg.GoogleOAuthClientFile,
			ClientJSON:    cfg.GoogleOAuthClientJSON,
			TokenFile:     cfg.GoogleOAuthTokenFile,
			TokenJSON:     cfg.GoogleOAuthTokenJSON,
		}, logger)
		if err != nil {
			logger.Error("Failed to initialize Google Sheets ledger", log.FieldError, err)
			os.Exit(1)
		}
		if err := sheet.EnsureHeader(ctx); err != nil {
			logger.Error("Failed to prepare ledger sheet", log.FieldError, err)
			os.Exit(1)
		}
		ledger = sheet
		logger.Info("Google Sheets ledger initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID, "sheet", cfg.GoogleSheetName)
	} else {
		ledger = mem.New()
		logger.Info("Google Sheets disabled, recording events in memory")
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()
	client.SetPrefetch(cfg.WorkerPrefetch)

	w := worker.NewLedgerWorker(ledger, logger)
	err = client.ConsumeExpenseEvents(ctx, w.HandleEvent)
	stats := w.Stats()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Worker stopped", "appended", stats.Appended, "failed", stats.Failed)
}
