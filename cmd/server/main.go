package main

import (
	"context"
	"errors"
	"flag"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/garnizeh/devcompanion/api"
	"github.com/garnizeh/devcompanion/internal/ai"
	"github.com/garnizeh/devcompanion/internal/chat"
	"github.com/garnizeh/devcompanion/internal/config"
	"github.com/garnizeh/devcompanion/internal/conversation"
	"github.com/garnizeh/devcompanion/internal/jobs"
	"github.com/garnizeh/devcompanion/internal/ratelimit"
	"github.com/garnizeh/devcompanion/internal/telemetry"
	"github.com/garnizeh/devcompanion/pkg/ollama"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	var configPath = flag.String("config", "", "Path to config YAML file")
	flag.Parse()

	// Deployed environments inject their own variables.
	if os.Getenv("AWS_EXECUTION_ENV") == "" {
		_ = godotenv.Load()
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "err", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	slog.SetDefault(logger)
	api.SetLogger(logger)
	ollama.SetLogger(logger)

	logger.Info("starting devcompanion", "version", version, "build_time", buildTime,
		"env", cfg.Env, "provider", cfg.EngineConfig.Provider)

	ctx := context.Background()

	shutdownTelemetry, err := telemetry.Init(ctx, cfg.OTELEndpoint, "devcompanion", version,
		strings.HasPrefix(cfg.OTELEndpoint, "http://"))
	if err != nil {
		logger.Error("failed to init telemetry", "err", err)
		os.Exit(1)
	}

	gateway, err := ai.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to create analysis gateway", "err", err)
		os.Exit(1)
	}

	metrics := telemetry.NewMetrics()
	jm := jobs.NewManager(
		jobs.WithLogger(logger),
		jobs.WithClassifier(ai.Kind),
		jobs.WithFinishHook(func(j jobs.Job) {
			metrics.JobFinished(context.Background(), string(j.Status), j.ErrorKind)
		}),
	)
	metrics.RegisterActiveJobs(jm.ActiveCount)
	pool := jobs.NewPool(jm, cfg.MaxConcurrentJobs, logger)

	svc := chat.NewService(chat.Deps{
		Limiter:       ratelimit.New(cfg.RateLimitPerMinute),
		Jobs:          jm,
		Pool:          pool,
		Conversations: conversation.NewManager(),
		Gateway:       gateway,
		Metrics:       metrics,
	}, chat.Config{
		MaxConcurrentJobs: cfg.MaxConcurrentJobs,
		AnalysisTimeout:   cfg.EngineConfig.Timeout,
		HistoryWindow:     cfg.HistoryWindow,
	}, logger)

	janitor := jobs.NewJanitor(jm, cfg.JobTTL, cfg.JobCleanupInterval, logger)
	janitor.Start(ctx)

	reloader, _ := gateway.(api.SchemaReloader)
	handler := api.SetupRoutes(cfg, version, buildTime, svc, reloader)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  cfg.APITimeout,
		WriteTimeout: cfg.APITimeout,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server failed to start", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down server")

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server forced to shutdown", "err", err)
	}

	janitor.Stop()
	pool.Stop()

	if c, ok := gateway.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Warn("error closing gateway", "err", err)
		}
	}
	if err := shutdownTelemetry(ctx); err != nil {
		logger.Warn("error flushing telemetry", "err", err)
	}

	logger.Info("server exited")
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
