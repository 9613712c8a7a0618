package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/qiweiii/github-custom-notifier/internal/bot"
	"github.com/qiweiii/github-custom-notifier/internal/config"
	"github.com/qiweiii/github-custom-notifier/internal/fetcher"
	"github.com/qiweiii/github-custom-notifier/internal/github"
	"github.com/qiweiii/github-custom-notifier/internal/poller"
	"github.com/qiweiii/github-custom-notifier/internal/storage"
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

	gh, err := github.NewClient(cfg.GithubRootURL, cfg.GithubToken, http.DefaultClient)
	if err != nil {
		log.Error("create github client", "error", err)
		os.Exit(1)
	}

	b, err := bot.New(cfg.TelegramBotToken, store, gh, cfg, log)
	if err != nil {
		log.Error("create bot", "error", err)
		os.Exit(1)
	}

	f := fetcher.New(gh, gh.Origin(), fetcher.DefaultConfig())
	p := poller.New(store, f, b, poller.Options{
		Interval:          time.Duration(cfg.IntervalMinutes) * time.Minute,
		PlaySound:         cfg.NotifSound,
		ShowNotifications: cfg.SendNotifications,
	}, log)
	b.SetPoller(p)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	log.Info("starting notifier", "root_url", cfg.GithubRootURL, "interval_min", cfg.IntervalMinutes)

	go p.Run(ctx)

	b.Run(ctx)

	log.Info("notifier stopped")
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
