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

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/collector"
	"github.com/polydata/esports-collector/internal/config"
	"github.com/polydata/esports-collector/internal/discovery"
	"github.com/polydata/esports-collector/internal/historical"
	"github.com/polydata/esports-collector/internal/orderbook"
	"github.com/polydata/esports-collector/internal/ratelimit"
	"github.com/polydata/esports-collector/internal/storage"
	"github.com/polydata/esports-collector/internal/stream"
	"github.com/polydata/esports-collector/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/collector.yaml", "path to config file")
	mode := flag.String("mode", "continuous", "discover|historical|orderbook|realtime|continuous")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	// Best-effort .env load before config expansion.
	godotenv.Load()

	logger.Info("starting collector",
		"version", version.Version,
		"commit", version.Commit,
		"mode", *mode,
		"config", *configPath,
	)

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"instance_id", cfg.Instance.ID,
		"games", cfg.Discovery.Games,
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

	logger.Info("connecting to database",
		"host", cfg.Database.Postgres.Host,
		"port", cfg.Database.Postgres.Port,
		"database", cfg.Database.Postgres.Name,
	)
	store, err := storage.Connect(ctx, cfg.Database.Postgres)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("database connected")

	limiter := ratelimit.New(ratelimit.Config{
		Window: cfg.Limiter.Window,
		Quotas: cfg.Limiter.Quotas,
	}, logger)

	client := api.NewClient(limiter,
		api.WithBaseURLs(cfg.API.GammaURL, cfg.API.ClobURL, cfg.API.DataURL),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, cfg.API.RetryBackoff),
		api.WithLogger(logger),
	)

	disc, err := discovery.New(client, store, discovery.Config{
		Games: cfg.Discovery.Games,
	}, logger)
	if err != nil {
		logger.Error("invalid discovery config", "error", err)
		os.Exit(1)
	}

	backfill := historical.New(client, store, historical.Config{
		WindowDays:    cfg.Historical.WindowDays,
		PriceInterval: cfg.Historical.PriceInterval,
		TradePageSize: cfg.Historical.TradePageSize,
		MaxTradePages: cfg.Historical.MaxTradePages,
	}, logger)

	poller := orderbook.New(orderbook.Config{
		Interval:    cfg.Orderbook.Interval,
		Depth:       cfg.Orderbook.Depth,
		Concurrency: cfg.Orderbook.Concurrency,
	}, client, store, store, logger)

	streamer := stream.New(stream.Config{
		URL:                cfg.Stream.URL,
		SubscribeBatchSize: cfg.Stream.SubscribeBatchSize,
		ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
		DedupTTL:           cfg.Stream.DedupTTL,
		OrderbookInterval:  cfg.Orderbook.Interval,
	}, stream.NewWebsocketDialer(), store, store, logger)

	var runErr error
	switch *mode {
	case "discover":
		res, err := disc.Run(ctx)
		runErr = err
		if err == nil {
			logger.Info("discovery finished", "found", res.Found, "new", res.New, "known", res.Known)
		}

	case "historical":
		markets, err := store.ListKnownMarkets(ctx)
		if err != nil {
			runErr = err
			break
		}
		res, err := backfill.Collect(ctx, markets)
		runErr = err
		if err == nil {
			logger.Info("backfill finished",
				"prices", res.Prices, "trades", res.Trades,
				"open_interest", res.OpenInterest, "skipped", res.Skipped)
		}

	case "orderbook":
		n := poller.PollOnce(ctx)
		logger.Info("orderbook pass finished", "snapshots", n)

	case "realtime":
		// Standalone realtime mode carries its own orderbook cadence; in
		// continuous mode the orchestrator drives the poller instead.
		streamer.OnOrderbook = func(ctx context.Context) { poller.PollOnce(ctx) }
		streamer.Run(ctx)

	case "continuous":
		runErr = runContinuous(ctx, cfg, store, disc, backfill, poller, streamer, logger)

	default:
		logger.Error("unknown mode", "mode", *mode)
		os.Exit(2)
	}

	if runErr != nil && ctx.Err() == nil {
		logger.Error("collector failed", "error", runErr)
		os.Exit(1)
	}
	logger.Info("collector stopped")
}

// runContinuous runs the orchestrator with a health endpoint alongside.
func runContinuous(
	ctx context.Context,
	cfg *config.CollectorConfig,
	store *storage.Postgres,
	disc *discovery.Discoverer,
	backfill *historical.Collector,
	poller *orderbook.Poller,
	streamer *stream.Streamer,
	logger *slog.Logger,
) error {
	orch := collector.New(collector.Config{
		DiscoveryInterval: cfg.Discovery.Interval,
	}, disc, backfill, poller, streamer, store, logger)

	healthServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Health.Port),
		Handler: healthHandler(store, streamer),
	}
	go func() {
		logger.Info("starting health server", "port", cfg.Health.Port)
		if err := healthServer.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("health server error", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		healthServer.Shutdown(shutdownCtx)
	}()

	return orch.Run(ctx)
}

// healthHandler reports store reachability, known-market count, and
// stream counters.
func healthHandler(store *storage.Postgres, streamer *stream.Streamer) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		if err := store.Ping(ctx); err != nil {
			health.Status = "unhealthy"
			health.Components["postgres"] = map[string]string{
				"status": "disconnected",
				"error":  err.Error(),
			}
		} else {
			health.Components["postgres"] = "connected"
			markets, err := store.ListKnownMarkets(ctx)
			if err == nil {
				health.Components["markets"] = len(markets)
				if len(markets) == 0 {
					health.Status = "degraded"
				}
			}
		}

		stats := streamer.Snapshot()
		health.Components["stream"] = map[string]any{
			"state":      streamer.State().String(),
			"messages":   stats.Messages,
			"ticks":      stats.Ticks,
			"reconnects": stats.Reconnects,
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
