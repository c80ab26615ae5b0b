package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chronoware/tally/internal/api"
	"github.com/chronoware/tally/internal/config"
	"github.com/chronoware/tally/internal/conversation"
	"github.com/chronoware/tally/internal/events"
	"github.com/chronoware/tally/internal/ollama"
	"github.com/chronoware/tally/internal/parser"
	"github.com/chronoware/tally/internal/session"
	"github.com/chronoware/tally/internal/store"
)

func main() {
	cfg := config.Load()
	setupLogging(cfg.LogLevel)

	slog.Info("tally starting", "port", cfg.Port)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Database
	if cfg.DatabaseURL == "" {
		slog.Error("DATABASE_URL is required")
		os.Exit(1)
	}
	db, err := store.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		slog.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}
	slog.Info("database ready")

	// LLM fallback (optional — extraction is regex-first and works without it)
	var fallback parser.Fallback
	if cfg.OllamaURL != "" {
		llm := ollama.NewClient(cfg.OllamaURL, cfg.OllamaModel)
		fallback = parser.NewLLMFallback(llm, time.Duration(cfg.FallbackTimeout)*time.Second, slog.Default())
		slog.Info("ollama fallback ready", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
	} else {
		slog.Warn("ollama not configured — running without extraction fallback")
	}

	// NATS events (optional)
	var publisher conversation.Publisher
	if cfg.NatsURL != "" {
		ev, err := events.NewClient(cfg.NatsURL, cfg.NatsToken, slog.Default())
		if err != nil {
			slog.Error("failed to connect to NATS", "error", err)
			os.Exit(1)
		}
		defer ev.Close()
		publisher = ev
		slog.Info("NATS connected", "url", cfg.NatsURL)
	} else {
		slog.Warn("NATS not configured — running without event publishing")
	}

	sessions := session.NewManager(db, session.DefaultTTL, slog.Default())
	p := parser.New(fallback, slog.Default())
	engine := conversation.New(sessions, p, db, publisher, slog.Default())

	// HTTP API
	srv := api.NewServer(cfg.Port, engine, db)
	go func() {
		if err := srv.Start(); err != nil {
			slog.Error("HTTP server error", "error", err)
		}
	}()

	slog.Info("tally ready", "port", cfg.Port)

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	slog.Info("shutting down")
	cancel()
	slog.Info("tally stopped")
}

func setupLogging(level string) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: lvl})
	slog.SetDefault(slog.New(handler))
}
