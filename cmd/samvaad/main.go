// Command samvaad is the main entry point for the Samvaad assistant server:
// the conversational engine behind the LDRP college chat widget.
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

	"github.com/joho/godotenv"
	anyllmlib "github.com/mozilla-ai/any-llm-go"
	"golang.org/x/sync/errgroup"

	"github.com/ldrpitr/samvaad/internal/config"
	"github.com/ldrpitr/samvaad/internal/dialogue"
	"github.com/ldrpitr/samvaad/internal/draft"
	"github.com/ldrpitr/samvaad/internal/health"
	"github.com/ldrpitr/samvaad/internal/observe"
	"github.com/ldrpitr/samvaad/internal/query"
	"github.com/ldrpitr/samvaad/internal/server"
	"github.com/ldrpitr/samvaad/internal/speech"
	"github.com/ldrpitr/samvaad/internal/store"
	"github.com/ldrpitr/samvaad/internal/typo"
	"github.com/ldrpitr/samvaad/pkg/provider/llm/anyllm"
)

// serviceVersion is stamped at build time via -ldflags.
var serviceVersion = "dev"

const evictInterval = 5 * time.Minute

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	flag.Parse()

	// .env is optional; it only seeds API keys for local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "samvaad: load .env: %v\n", err)
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "samvaad: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "samvaad: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("samvaad starting",
		"config", *configPath,
		"listen_addr", cfg.Server.ListenAddr,
		"log_level", cfg.Server.LogLevel,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Metrics ───────────────────────────────────────────────────────────────
	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "samvaad",
		ServiceVersion: serviceVersion,
	})
	if err != nil {
		slog.Error("failed to initialise metrics provider", "err", err)
		return 1
	}
	metrics, err := observe.DefaultMetrics()
	if err != nil {
		slog.Error("failed to create metrics", "err", err)
		return 1
	}

	// ── Conversation log (optional) ───────────────────────────────────────────
	var (
		repo       store.Repository
		transcript *store.TranscriptLogger
		recorder   dialogue.Recorder
	)
	if cfg.Storage.DBPath != "" {
		sqlRepo, err := store.NewSQLite(cfg.Storage.DBPath)
		if err != nil {
			slog.Error("failed to open conversation log", "err", err, "path", cfg.Storage.DBPath)
			return 1
		}
		repo = sqlRepo
		transcript = store.NewTranscriptLogger(repo)
		recorder = transcript
		slog.Info("conversation log enabled", "path", cfg.Storage.DBPath)
	}

	// ── Answer service client ─────────────────────────────────────────────────
	queryOpts := []query.Option{query.WithBreaker(0, 0)}
	if cfg.Query.TimeoutSeconds > 0 {
		queryOpts = append(queryOpts, query.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.Query.TimeoutSeconds) * time.Second,
		}))
	}
	querier := query.NewClient(cfg.Query.BaseURL, queryOpts...)

	// ── Typo corrector ────────────────────────────────────────────────────────
	dict := typo.DefaultDictionary
	if len(cfg.Corrector.Dictionary) > 0 {
		dict = cfg.Corrector.Dictionary
	}
	var correctorOpts []typo.Option
	if cfg.Corrector.MinTokenLength > 0 {
		correctorOpts = append(correctorOpts, typo.WithMinTokenLength(cfg.Corrector.MinTokenLength))
	}
	if cfg.Corrector.MaxDistance > 0 {
		correctorOpts = append(correctorOpts, typo.WithMaxDistance(cfg.Corrector.MaxDistance))
	}
	corrector := typo.New(dict, correctorOpts...)

	// ── Speech synthesis ──────────────────────────────────────────────────────
	announcer := speech.NewAnnouncer(cfg.Speech.Voices, nil)

	// ── Email drafter (optional) ──────────────────────────────────────────────
	var drafter *draft.Drafter
	if cfg.Draft.Provider != "" {
		var llmOpts []anyllmlib.Option
		if cfg.Draft.APIKey != "" {
			llmOpts = append(llmOpts, anyllmlib.WithAPIKey(cfg.Draft.APIKey))
		}
		if cfg.Draft.BaseURL != "" {
			llmOpts = append(llmOpts, anyllmlib.WithBaseURL(cfg.Draft.BaseURL))
		}
		provider, err := anyllm.New(cfg.Draft.Provider, cfg.Draft.Model, llmOpts...)
		if err != nil {
			slog.Error("failed to create LLM provider", "err", err, "provider", cfg.Draft.Provider)
			return 1
		}
		drafter = draft.New(provider, draft.WithMetrics(metrics))
		slog.Info("email drafter enabled", "provider", cfg.Draft.Provider, "model", cfg.Draft.Model)
	}

	// ── Session manager ───────────────────────────────────────────────────────
	manager := dialogue.NewManager(dialogue.Config{
		Querier:   querier,
		Corrector: corrector,
		Synth:     announcer,
		Recorder:  recorder,
		Metrics:   metrics,
		Language:  cfg.Speech.DefaultLanguage,
	})

	// ── HTTP server ───────────────────────────────────────────────────────────
	checkers := []health.Checker{
		health.QueryServiceChecker(nil, cfg.Query.BaseURL),
	}
	if repo != nil {
		checkers = append([]health.Checker{health.DatabaseChecker(repo)}, checkers...)
	}

	opts := []server.Option{
		server.WithHealth(health.New(checkers...)),
		server.WithMetrics(metrics),
		server.WithAllowedOrigins(cfg.Server.AllowedOrigins),
	}
	if repo != nil {
		opts = append(opts, server.WithRepository(repo))
	}
	if drafter != nil {
		opts = append(opts, server.WithDrafter(drafter))
	}
	handler := server.New(manager, opts...)

	httpServer := &http.Server{
		Addr:              cfg.Server.ListenAddr,
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server ready, press Ctrl+C to shut down", "addr", cfg.Server.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		ticker := time.NewTicker(evictInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if n := manager.EvictIdle(); n > 0 {
					slog.Info("evicted idle sessions", "count", n)
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}

	// ── Graceful shutdown ─────────────────────────────────────────────────────
	slog.Info("shutdown signal received, stopping…")

	if transcript != nil {
		transcript.Close()
	}
	if repo != nil {
		if err := repo.Close(); err != nil {
			slog.Warn("conversation log close error", "err", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownMetrics(shutdownCtx); err != nil {
		slog.Warn("metrics shutdown error", "err", err)
	}

	slog.Info("goodbye")
	return 0
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
