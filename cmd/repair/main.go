// Command repair heals every stored user document once and exits.
// Running it twice in a row saves nothing the second time.
//
// With -dump FILE it instead writes a JSON backup of every stored document
// to FILE and exits without touching the store.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/boddenberg/hecu-bank-go/internal/bootstrap"
	"github.com/boddenberg/hecu-bank-go/internal/config"
	"github.com/boddenberg/hecu-bank-go/internal/infra/observability"

	"go.uber.org/zap"
)

func main() {
	os.Exit(run())
}

func run() int {
	dump := flag.String("dump", "", "write a JSON backup of every user to this file and exit")
	flag.Parse()

	_ = config.LoadDotEnv(".env")
	cfg := config.Load()

	logger := observability.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start services", zap.Error(err))
		return 2
	}
	defer app.Close(context.Background())

	if *dump != "" {
		if err := writeBackup(ctx, app, *dump); err != nil {
			logger.Error("backup failed", zap.String("file", *dump), zap.Error(err))
			return 1
		}
		logger.Info("backup written", zap.String("file", *dump))
		return 0
	}

	logger.Info("repair started", zap.String("store_backend", cfg.StoreBackend))
	report, err := app.Bank.RepairAll(ctx)
	if err != nil {
		logger.Error("repair failed", zap.Error(err))
		return 1
	}

	logger.Info("repair finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("repaired", report.Repaired),
		zap.Int("errors", len(report.Errors)),
	)
	json.NewEncoder(os.Stdout).Encode(report)

	if len(report.Errors) > 0 {
		return 1
	}
	return 0
}

func writeBackup(ctx context.Context, app *bootstrap.App, path string) error {
	backup, err := app.Bank.ExportUsers(ctx)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(backup, "", "  ")
	if err != nil {
		return fmt.Errorf("encode backup: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}
