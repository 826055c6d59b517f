package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ewoo/marketdraft/internal/config"
	"github.com/ewoo/marketdraft/internal/draft"
	"github.com/ewoo/marketdraft/internal/feed"
	"github.com/ewoo/marketdraft/internal/pricecache"
	"github.com/ewoo/marketdraft/internal/scoring"
	"github.com/ewoo/marketdraft/internal/store"
	"github.com/ewoo/marketdraft/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/draftd.local.yaml", "path to config file")
	healthPort := flag.Int("health-port", 8080, "health endpoint port")
	flag.Parse()

	// Optional .env for local development; config expands ${VAR} references.
	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting draftd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"feed_url", cfg.Feed.WSURL,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Persistence
	logger.Info("connecting to database",
		"host", cfg.Database.Host,
		"port", cfg.Database.Port,
		"database", cfg.Database.Name,
	)
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	pickStore := store.NewPostgres(store.DefaultConfig(), pool, logger.With("component", "store"))
	if err := pickStore.Start(ctx); err != nil {
		logger.Error("failed to start store", "error", err)
		os.Exit(1)
	}

	// Price pipeline
	cache := pricecache.New(cfg.Scoring.HistoryDepth)

	feedCfg := feed.ManagerConfig{
		WSURL:              cfg.Feed.WSURL,
		APIKey:             cfg.Feed.APIKey,
		SubscribeTimeout:   cfg.Feed.SubscribeTimeout,
		ReconnectBaseDelay: cfg.Feed.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Feed.ReconnectMaxDelay,
		PingTimeout:        cfg.Feed.PingTimeout,
		WriteTimeout:       cfg.Feed.WriteTimeout,
		MessageBufferSize:  cfg.Feed.MessageBufferSize,
		SubscribeRate:      cfg.Feed.SubscribeRate,
		SubscribeBurst:     cfg.Feed.SubscribeBurst,
	}
	feedMgr := feed.NewManager(feedCfg, cache, logger.With("component", "feed"))
	if err := feedMgr.Start(ctx); err != nil {
		logger.Error("failed to start feed manager", "error", err)
		os.Exit(1)
	}

	// Scoring and draft
	scorer := scoring.NewEngine(
		scoring.Config{Multiplier: cfg.Scoring.Multiplier},
		cache,
		logger.With("component", "scoring"),
	)

	orch := draft.NewOrchestrator(draft.Config{
		TurnTimeout:   cfg.Draft.TurnTimeout,
		AllowLateFill: cfg.Draft.AllowLateFill,
		Snake:         cfg.Draft.Snake,
	}, cache, feedMgr, pickStore, logger.With("component", "draft"))
	orch.AddPickListener(scorer)

	// Health endpoint
	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", *healthPort),
		Handler: healthHandler(feedMgr, pickStore),
	}
	go func() {
		logger.Info("starting health server", "port", *healthPort)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()

	logger.Info("draftd running")

	// Periodic stats until shutdown
	statsTicker := time.NewTicker(30 * time.Second)
	defer statsTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("shutting down")

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer shutdownCancel()

			healthServer.Shutdown(shutdownCtx)
			feedMgr.Stop(shutdownCtx)
			pickStore.Stop(shutdownCtx)

			logger.Info("draftd stopped")
			return

		case <-statsTicker.C:
			fs := feedMgr.Stats()
			ss := pickStore.Stats()
			logger.Info("stats",
				"feed_connected", fs.Connected,
				"assets_tracked", fs.AssetsTracked,
				"ticks_applied", fs.TicksApplied,
				"ticks_stale", fs.TicksStale,
				"parse_errors", fs.ParseErrors,
				"reconnects", fs.Reconnects,
				"pick_inserts", ss.PickInserts,
				"store_errors", ss.Errors,
			)
		}
	}
}

// healthHandler reports component health as JSON.
func healthHandler(feedMgr feed.Manager, pickStore *store.Postgres) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		fs := feedMgr.Stats()
		ss := pickStore.Stats()

		status := http.StatusOK
		if !fs.Connected {
			status = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"feed":  fs,
			"store": ss,
		})
	})
	return mux
}
