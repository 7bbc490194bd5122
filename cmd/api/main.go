package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq" // postgres driver
	"github.com/redis/go-redis/v9"

	"github.com/wardsignal/hospital-stress-backend/internal/ai"
	"github.com/wardsignal/hospital-stress-backend/internal/api"
	"github.com/wardsignal/hospital-stress-backend/internal/cache"
	"github.com/wardsignal/hospital-stress-backend/internal/config"
	"github.com/wardsignal/hospital-stress-backend/internal/engine"
	"github.com/wardsignal/hospital-stress-backend/internal/store"
	"github.com/wardsignal/hospital-stress-backend/internal/worker"
)

func main() {
	// ── Logger ────────────────────────────────────────────────────────────────
	// JSON in production, pretty text in development.
	var logger *slog.Logger
	if os.Getenv("ENV") == "production" {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	} else {
		logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
	}
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	// ── Config ────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	logger.Info("config loaded", "env", cfg.Env, "port", cfg.Port)

	// ── Database ──────────────────────────────────────────────────────────────
	pool, err := openDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	st := store.New(pool)

	// ── Cache ─────────────────────────────────────────────────────────────────
	// Redis when configured, in-process memory otherwise. The memory cache is
	// fine for a single instance; multi-instance deployments want Redis so an
	// invalidation on one node is seen by all.
	resultCache, err := openCache(cfg.RedisURL, logger)
	if err != nil {
		return fmt.Errorf("cache: %w", err)
	}

	// ── AI ────────────────────────────────────────────────────────────────────
	// Anthropic is primary. DeepSeek is the fallback when DEEPSEEK_API_KEY is
	// also set. With neither key, every prediction takes its deterministic
	// fallback path — useful for local development without credentials.
	var gen ai.Generator
	switch {
	case cfg.AnthropicAPIKey != "" && cfg.DeepSeekAPIKey != "":
		primary := ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		secondary := ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
		gen = ai.NewFallbackGenerator(primary, secondary, logger)
		logger.Info("ai: using Anthropic with DeepSeek fallback")
	case cfg.AnthropicAPIKey != "":
		gen = ai.NewAnthropicClient(cfg.AnthropicAPIKey, cfg.AnthropicModel)
		logger.Info("ai: using Anthropic only")
	case cfg.DeepSeekAPIKey != "":
		gen = ai.NewDeepSeekClient(cfg.DeepSeekAPIKey, cfg.DeepSeekModel)
		logger.Info("ai: using DeepSeek only")
	default:
		logger.Warn("ai: no provider configured, deterministic fallbacks only")
	}

	// ── Engine ────────────────────────────────────────────────────────────────
	eng := engine.New(st, st, resultCache, gen, engine.Config{
		TotalBedCapacity:        cfg.TotalBedCapacity,
		HistoryWindowDays:       cfg.HistoryWindowDays,
		ForecastTTL:             cfg.ForecastTTL,
		StaffRiskTTL:            cfg.StaffRiskTTL,
		RecommendationTTL:       cfg.RecommendationTTL,
		DashboardTTL:            cfg.DashboardTTL,
		BedStressAlertThreshold: cfg.BedStressAlertThreshold,
		StaffRiskAlertThreshold: cfg.StaffRiskAlertThreshold,
	}, logger)

	// ── Background refresher ──────────────────────────────────────────────────
	refresher := worker.NewRefresher(eng, worker.RefresherConfig{
		Interval: cfg.RefreshInterval,
	}, logger)

	// ── HTTP server ───────────────────────────────────────────────────────────
	handler := api.NewServer(eng, api.Config{Env: cfg.Env}, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // generous — a cold forecast waits on the AI backend
		IdleTimeout:  120 * time.Second,
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	// Root context cancelled by OS signal. Refresher and HTTP server both
	// respect it.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.RefreshInterval > 0 {
		go refresher.Start(ctx)
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until either a signal arrives or the server dies unexpectedly.
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("server error: %w", err)
	}

	// Give in-flight HTTP requests up to 20 seconds to finish.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	logger.Info("shutdown complete")
	return nil
}

// openDB opens the connection pool and verifies it is reachable before the
// server starts taking traffic.
func openDB(dsn string) (*sql.DB, error) {
	pool, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	// Tune the connection pool.
	pool.SetMaxOpenConns(25)
	pool.SetMaxIdleConns(10)
	pool.SetConnMaxLifetime(5 * time.Minute)
	pool.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return pool, nil
}

// openCache connects to Redis when a URL is configured, falling back to the
// in-process cache otherwise. A configured-but-unreachable Redis is a startup
// error: silently degrading to per-process caching would break cross-instance
// invalidation without anyone noticing.
func openCache(redisURL string, logger *slog.Logger) (cache.Cache, error) {
	if redisURL == "" {
		logger.Info("cache: using in-process memory cache")
		return cache.NewMemory(), nil
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	logger.Info("cache: redis connected")
	return cache.NewRedis(client), nil
}
