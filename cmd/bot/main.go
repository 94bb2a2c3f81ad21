package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"forward_bot/internal/bot"
	"forward_bot/internal/config"
	"forward_bot/internal/dispatcher"
	"forward_bot/internal/notify"
	"forward_bot/internal/reaper"
	"forward_bot/internal/registry"
	"forward_bot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("load config", "error", err)
		os.Exit(1)
	}

	log := newLogger(cfg.LogLevel)

	if dir := filepath.Dir(cfg.DatabasePath); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			log.Error("create data directory", "path", dir, "error", err)
			os.Exit(1)
		}
	}

	store, err := storage.NewSQLite(cfg.DatabasePath)
	if err != nil {
		log.Error("open database", "path", cfg.DatabasePath, "error", err)
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := bot.EnsureSuperAdmin(ctx, store, cfg.SuperAdminID); err != nil {
		log.Error("seed super admin", "error", err)
		os.Exit(1)
	}

	reg := registry.New(store)

	b, err := bot.New(cfg.TelegramBotToken, store, reg, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	notifier := notify.New(store, b, log)
	disp := dispatcher.New(store, reg, b, notifier, log)
	b.SetDispatcher(disp)

	rp := reaper.New(reg, notifier, log)

	log.Info("starting bot")

	go rp.Run(ctx)

	b.Run(ctx)

	log.Info("bot stopped")
}

func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
