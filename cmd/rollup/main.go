package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nutrilog/nutrilog/internal/common"
	"github.com/nutrilog/nutrilog/internal/rollup"
	"github.com/nutrilog/nutrilog/internal/sheets"
	"github.com/nutrilog/nutrilog/internal/telegram"
)

// One-shot daily rollup, intended to run from cron or a scheduler.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if cfg.Telegram.BotToken == "" {
		logger.Error("TELEGRAM_BOT_TOKEN is required")
		os.Exit(1)
	}
	if cfg.Telegram.ReportChatID == 0 {
		logger.Error("TELEGRAM_REPORT_CHAT_ID is required")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	location, err := time.LoadLocation(cfg.Server.Timezone)
	if err != nil {
		logger.Error("invalid timezone", "tz", cfg.Server.Timezone, "error", err)
		os.Exit(1)
	}

	store, err := sheets.NewExcelStore(cfg.Sheets, logger)
	if err != nil {
		logger.Error("failed to open spreadsheet store", "path", cfg.Sheets.WorkbookPath, "error", err)
		os.Exit(1)
	}

	tg := telegram.NewClient(cfg.Telegram, logger)
	svc := rollup.NewService(store, tg, cfg.Telegram.ReportChatID, location, logger)

	runCtx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	if err := svc.Run(runCtx); err != nil {
		logger.Error("rollup failed", "error", err)
		os.Exit(1)
	}
}
