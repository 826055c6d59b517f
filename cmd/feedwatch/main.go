// feedwatch connects to the upstream price feed, subscribes to the assets
// given as arguments, and renders their latest cached prices to the console.
// Usage: go run ./cmd/feedwatch --config configs/draftd.local.yaml ASSET...
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"github.com/ewoo/marketdraft/internal/config"
	"github.com/ewoo/marketdraft/internal/feed"
	"github.com/ewoo/marketdraft/internal/pricecache"
)

func main() {
	configPath := flag.String("config", "configs/draftd.local.yaml", "path to config file")
	interval := flag.Duration("interval", 5*time.Second, "refresh interval")
	flag.Parse()

	assets := flag.Args()
	if len(assets) == 0 {
		fmt.Fprintln(os.Stderr, "usage: feedwatch [flags] ASSET...")
		os.Exit(2)
	}

	godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	cache := pricecache.New(cfg.Scoring.HistoryDepth)

	mgr := feed.NewManager(feed.ManagerConfig{
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
	}, cache, logger)

	if err := mgr.Start(ctx); err != nil {
		logger.Error("failed to start feed", "error", err)
		os.Exit(1)
	}
	mgr.Subscribe(assets)

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
			mgr.Stop(stopCtx)
			stopCancel()
			return
		case <-ticker.C:
			printPrices(cache, assets)
		}
	}
}

// printPrices renders the latest cached price per asset.
func printPrices(cache *pricecache.Cache, assets []string) {
	fmt.Printf("\n[%s]\n", time.Now().Format(time.RFC3339))

	table := tablewriter.NewWriter(os.Stdout)
	table.Header("Asset", "Price", "Seq", "Age")

	for _, asset := range assets {
		tick, ok := cache.Latest(asset)
		if !ok {
			table.Append(asset, "-", "-", "no tick yet")
			continue
		}
		age := time.Since(time.UnixMicro(tick.ReceivedAt)).Round(time.Millisecond)
		table.Append(
			asset,
			fmt.Sprintf("$%.5f", float64(tick.Price)/100000),
			fmt.Sprintf("%d", tick.Seq),
			age.String(),
		)
	}

	table.Render()
}
