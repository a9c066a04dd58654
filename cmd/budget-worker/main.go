package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/core"
	applog "budget/internal/log"
	"budget/internal/services"
	gsheet "budget/internal/sheets/google"
	"budget/internal/worker"
)

func main() {
	exportUser := flag.String("export-user", "", "Export one user's month and exit")
	exportMonth := flag.String("export-month", "", "Month to export with -export-user (YYYY-MM, default current)")
	flag.Parse()

	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"), applog.ComponentWorker)
	logger.Info("Starting budget-worker", applog.FieldOperation, applog.OpStartup)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	bcfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		logger.Error("Invalid backend configuration", applog.FieldError, err)
		os.Exit(1)
	}
	bcfg.RequireAMQP = *exportUser == ""
	if !bcfg.RequireAMQP {
		bcfg.AMQPURL = ""
	}
	res, err := backend.NewFactory(logger).CreateBackend(context.Background(), bcfg)
	if err != nil {
		logger.Error("Failed to initialize backend", applog.FieldError, err)
		os.Exit(1)
	}
	defer res.Close()

	creds, err := cfg.ServiceAccountJSON()
	if err != nil {
		logger.Error("Failed to read Google credentials", applog.FieldError, err)
		os.Exit(1)
	}
	sheetsClient, err := gsheet.New(context.Background(), cfg.GoogleSpreadsheetID, creds)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}

	// The worker only reads; it never publishes events of its own.
	records := services.NewRecordService(res.Store)
	exporter := worker.NewExportWorker(records, res.Store, sheetsClient,
		worker.WithTimeout(cfg.WorkerRequestTimeout),
		worker.WithRetryable(gsheet.IsRetryable),
		worker.WithLogger(logger))

	if *exportUser != "" {
		month := core.CurrentMonth(time.Now())
		if *exportMonth != "" {
			if month, err = core.ParseMonth(*exportMonth); err != nil {
				logger.Error("Invalid -export-month", applog.FieldError, err)
				os.Exit(1)
			}
		}
		ref, err := exporter.ExportMonth(context.Background(), *exportUser, month)
		if err != nil {
			logger.Error("Export failed", applog.FieldError, err, applog.FieldUserID, *exportUser)
			os.Exit(1)
		}
		logger.Info("Export complete", applog.FieldUserID, *exportUser, applog.FieldMonth, month.String(), "sheets_ref", ref)
		return
	}

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	go func() {
		err := res.AMQP.ConsumeRecordChanged(ctx, exporter.HandleRecordChanged)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
		}
	}()

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker stopped")
}
