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

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"

	"rauw-tafel-designer/internal/catalog"
	"rauw-tafel-designer/internal/config"
	"rauw-tafel-designer/internal/designer"
	"rauw-tafel-designer/internal/gemini"
	"rauw-tafel-designer/internal/httpclient"
	"rauw-tafel-designer/internal/output"
	"rauw-tafel-designer/internal/ratelimit"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config load failed", "err", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)

	httpClient := httpclient.New(httpclient.Options{
		PreferIPv4: cfg.PreferIPv4,
		Timeout:    cfg.HTTPTimeout,
	})

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

	s := &server{
		designer:        des,
		catalog:         cat,
		out:             out,
		logger:          logger,
		maxUploadBytes:  cfg.MaxUploadBytes,
		requestTimeout:  cfg.RequestTimeout,
		allowedOrigins:  cfg.AllowedOrigins,
		listLimiter:     ratelimit.New(cfg.ListPerMinute, time.Minute),
		imagesLimiter:   ratelimit.New(cfg.ImagesPerMinute, time.Minute),
		generateLimiter: ratelimit.New(cfg.GeneratePerHour, time.Hour),
	}

	sweeper := cron.New()
	_, err = sweeper.AddFunc("@every 30m", func() {
		removed, err := out.SweepTemp(cfg.TempMaxAge)
		if err != nil {
			logger.Error("temp sweep failed", "err", err)
			return
		}
		pruned := s.listLimiter.Prune() + s.imagesLimiter.Prune() + s.generateLimiter.Prune()
		logger.Info("cleanup pass", "temp_removed", removed, "limiter_pruned", pruned)
	})
	if err != nil {
		logger.Error("cron setup failed", "err", err)
		os.Exit(1)
	}
	sweeper.Start()
	defer sweeper.Stop()

	srv := &http.Server{
		Addr:              cfg.WebAddr,
		Handler:           s.handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      5 * time.Minute,
		IdleTimeout:       90 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("web started", "addr", cfg.WebAddr, "assets_dir", cfg.AssetsDir, "output_dir", out.Dir())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", "err", err)
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
