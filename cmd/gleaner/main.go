package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/use-agent/gleaner/api"
	"github.com/use-agent/gleaner/api/handler"
	"github.com/use-agent/gleaner/cache"
	"github.com/use-agent/gleaner/cleaner"
	"github.com/use-agent/gleaner/config"
	"github.com/use-agent/gleaner/metrics"
	"github.com/use-agent/gleaner/scraper"
	"github.com/use-agent/gleaner/webhook"
)

// jobRetention is how long finished batch and blog jobs stay queryable.
const jobRetention = time.Hour

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)
	slog.Info("gleaner starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"maxConcurrent", cfg.Scraper.MaxConcurrent,
		"cache", cfg.Cache.Backend,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── 3. Scraper engine (browser launches on first scrape) ────────
	m := metrics.New(prometheus.DefaultRegisterer)
	sc := scraper.New(cfg.Browser, cfg.Scraper, scraper.WithMetrics(m))
	defer func() {
		if err := sc.Close(); err != nil {
			slog.Error("scraper close failed", "error", err)
		}
	}()

	// ── 4. Result cache ─────────────────────────────────────────────
	cc, err := newCache(ctx, cfg.Cache)
	if err != nil {
		slog.Error("failed to initialise cache", "backend", cfg.Cache.Backend, "error", err)
		os.Exit(1)
	}
	defer cc.Close()

	// ── 5. Jobs and webhooks ────────────────────────────────────────
	jobs := handler.NewJobs()
	go jobs.Run(ctx, jobRetention)
	notifier := webhook.New(cfg.Webhook.Secret, cfg.Webhook.Retries)

	// ── 6. Router and HTTP server ───────────────────────────────────
	router := api.NewRouter(sc, cleaner.NewCleaner(), cc, jobs, notifier, cfg, time.Now())

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
			stop()
		}
	}()

	// ── 7. Graceful shutdown ────────────────────────────────────────
	<-ctx.Done()
	slog.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}

	// Deferred calls close the cache and the browser.
	slog.Info("gleaner stopped")
}

func newCache(ctx context.Context, cfg config.CacheConfig) (cache.Store, error) {
	switch cfg.Backend {
	case "redis":
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return cache.DialRedis(pingCtx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.KeyPrefix, cfg.TTL)
	case "memory", "":
		return cache.NewMemory(cfg.MaxEntries, cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Backend)
	}
}

// initLogger configures slog based on the LogConfig.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var logHandler slog.Handler
	if cfg.Format == "text" {
		logHandler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		logHandler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(logHandler))
}
