package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nutrilog/nutrilog/internal/async"
	"github.com/nutrilog/nutrilog/internal/common"
	"github.com/nutrilog/nutrilog/internal/gateway"
	"github.com/nutrilog/nutrilog/internal/gemini"
	"github.com/nutrilog/nutrilog/internal/ledger"
	"github.com/nutrilog/nutrilog/internal/nutrition"
	"github.com/nutrilog/nutrilog/internal/pipeline"
	"github.com/nutrilog/nutrilog/internal/sheets"
	"github.com/nutrilog/nutrilog/internal/telegram"
	"github.com/nutrilog/nutrilog/internal/vision"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "tz", cfg.Server.Timezone, "error", err)
		os.Exit(1)
	}

	led, err := openLedger(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open ledger", "driver", cfg.Ledger.Driver, "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := led.Close(); err != nil {
			logger.Error("failed to close ledger", "error", err)
		}
	}()

	store, err := sheets.NewExcelStore(cfg.Sheets, logger)
	if err != nil {
		logger.Error("failed to open spreadsheet store", "path", cfg.Sheets.WorkbookPath, "error", err)
		os.Exit(1)
	}

	tg := telegram.NewClient(cfg.Telegram, logger)
	gem := gemini.NewClient(cfg.Gemini, logger)
	extractor := vision.NewExtractor(gem, logger)
	resolver := nutrition.NewResolver(nutrition.NewFDCClient(cfg.FDC, logger), gem, logger)

	proc := pipeline.NewProcessor(
		logger,
		led,
		tg,
		extractor,
		resolver,
		store,
		tg,
		location,
		cfg.Ledger.StrictInProgress,
	)

	queue := async.NewWorkerQueue(proc, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
		async.WithMaxAttempts(cfg.Queue.MaxAttempts),
		async.WithRetryDelay(cfg.Queue.RetryDelay),
	)

	cleanupDone := ledger.StartCleanupRoutine(led, time.Hour, func(count int, err error) {
		if err != nil {
			logger.Error("ledger cleanup failed", "error", err)
		} else if count > 0 {
			logger.Info("ledger cleanup removed expired records", "count", count)
		}
	})
	defer close(cleanupDone)

	hook := gateway.NewWebhook(queue, tg, logger)
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           hook.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("webhook server listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown interrupted", "error", err)
	}
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped.")
}

func openLedger(ctx context.Context, cfg *common.Config, logger *slog.Logger) (ledger.Ledger, error) {
	switch cfg.Ledger.Driver {
	case "postgres":
		return ledger.NewPostgresLedger(ctx, cfg.Ledger.PostgresDSN, cfg.Ledger.Retention, logger)
	case "memory":
		return ledger.NewMemoryLedger(cfg.Ledger.Retention), nil
	default:
		return ledger.NewSQLiteLedger(cfg.Ledger.SQLitePath, cfg.Ledger.Retention, logger)
	}
}
