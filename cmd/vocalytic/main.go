// Command vocalytic captures microphone audio, streams sampled frames to the
// coaching backend for live feedback, and uploads the full recording when the
// session ends.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hfleisch/vocalytic/internal/app"
	"github.com/hfleisch/vocalytic/internal/config"
	"github.com/hfleisch/vocalytic/internal/health"
	"github.com/hfleisch/vocalytic/internal/observe"
)

// shutdownTimeout bounds the teardown work (final transcode and upload).
const shutdownTimeout = 30 * time.Second

var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "vocalytic: config file %q not found — copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "vocalytic: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("vocalytic starting",
		"config", *configPath,
		"backend", cfg.Server.BaseURL,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "vocalytic",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()

	// ── Coaching session ──────────────────────────────────────────────────────
	session, err := app.New(cfg)
	if err != nil {
		slog.Error("failed to assemble session", "err", err)
		return 1
	}

	if err := session.Start(ctx); err != nil {
		slog.Error("failed to start session", "err", err)
		return 1
	}

	// ── Observability endpoint ────────────────────────────────────────────────
	var srv *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("GET /metrics", promhttp.Handler())
		health.New(session.Snapshot, session.Checkers()...).Register(mux)

		srv = &http.Server{
			Addr:              cfg.Server.MetricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("observability endpoint error", "err", err)
			}
		}()
		slog.Info("observability endpoint listening", "addr", cfg.Server.MetricsAddr)
	}

	slog.Info("session running — press Ctrl+C to finish", "session_id", session.ID())
	<-ctx.Done()

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	slog.Info("shutdown signal received, finishing session…")

	code := 0
	if err := session.Stop(shutdownCtx); err != nil {
		slog.Error("session stop error", "err", err)
		code = 1
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Warn("observability endpoint shutdown error", "err", err)
		}
	}
	slog.Info("goodbye")
	return code
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
