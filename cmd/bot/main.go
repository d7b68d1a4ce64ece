package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/config"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/gemini"
	"rauw-tafel-designer/internal/handlers"
	"rauw-tafel-designer/internal/httpclient"
	"rauw-tafel-designer/internal/mediagroup"
	"rauw-tafel-designer/internal/output"
	"rauw-tafel-designer/internal/telegram"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	if cfg.TelegramToken == "" {
		panic("TELEGRAM_BOT_TOKEN is required")
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

	tg, err := telegram.New(telegram.Options{
		Token:      cfg.TelegramToken,
		HTTPClient: httpClient,
		Logger:     logger,
		Debug:      cfg.Debug,
	})
	if err != nil {
		logger.Error("telegram init failed", "err", err)
		os.Exit(1)
	}

	gem := gemini.New(gemini.Options{
		APIKey:     cfg.GeminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		APIVersion: cfg.GeminiAPIVersion,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	cat := catalog.New(cfg.AssetsDir)

	out, err := output.New(cfg.OutputDir)
	if err != nil {
		logger.Error("output dir setup failed", "err", err)
		os.Exit(1)
	}

	des := designer.New(designer.Options{
		Gemini: gem,
		Output: out,
		Logger: logger,
	})

	handler := handlers.New(handlers.Options{
		Telegram: tg,
		Designer: des,
		Catalog:  cat,
		Output:   out,
		States:   designer.NewStore(),
		Logger:   logger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sem := make(chan struct{}, cfg.MaxConcurrent)
	onGroupFlush := func(group mediagroup.Group) {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			return
		}

		go func() {
			defer func() { <-sem }()

			reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
			defer cancel()

			handler.HandleMediaGroup(reqCtx, group)
		}()
	}

	aggregator := mediagroup.New(mediagroup.Options{
		Debounce:  cfg.MediaGroupDebounce,
		MaxImages: designer.MaxImages,
		OnFlush:   onGroupFlush,
	})
	handler.SetMediaGroupAggregator(aggregator)

	sweeper := cron.New()
	if _, err := sweeper.AddFunc("@every 30m", func() {
		removed, err := out.SweepTemp(cfg.TempMaxAge)
		if err != nil {
			logger.Error("temp sweep failed", "err", err)
			return
		}
		if removed > 0 {
			logger.Info("temp sweep", "removed", removed)
		}
	}); err != nil {
		logger.Error("cron setup failed", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	logger.Info("bot started", "username", tg.Username())

	updates := tg.Updates(telegram.UpdatesOptions{
		Timeout: 30 * time.Second,
	})
	defer tg.StopUpdates()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")
			return
		case update, ok := <-updates:
			if !ok {
				logger.Info("updates channel closed")
				return
			}

			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				return
			}

			go func(update telegram.Update) {
				defer func() { <-sem }()

				reqCtx, cancel := context.WithTimeout(ctx, cfg.RequestTimeout)
				defer cancel()

				if err := handler.HandleUpdate(reqCtx, update); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("handle update failed", "err", err)
				}
			}(update)
		}
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
