package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/polydata/esports-collector/internal/discovery"
	"github.com/polydata/esports-collector/internal/historical"
	"github.com/polydata/esports-collector/internal/model"
)

// Discoverer runs one discovery cycle.
type Discoverer interface {
	Run(ctx context.Context) (discovery.Result, error)
}

// Backfiller collects historical data for a market set.
type Backfiller interface {
	Collect(ctx context.Context, markets []model.Market) (historical.Result, error)
}

// BookPoller runs the periodic book snapshot loop.
type BookPoller interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Streamer runs the realtime loop until ctx is canceled. Resubscribe picks
// up tokens added to the source while a connection is live.
type Streamer interface {
	Run(ctx context.Context)
	Resubscribe(ctx context.Context) error
}

// MarketLister reads the known market set.
type MarketLister interface {
	ListKnownMarkets(ctx context.Context) ([]model.Market, error)
}

// Config holds orchestrator cadences. The orderbook cadence belongs to the
// poller itself.
type Config struct {
	DiscoveryInterval time.Duration
}

// DefaultConfig returns orchestrator defaults.
func DefaultConfig() Config {
	return Config{
		DiscoveryInterval: 30 * time.Minute,
	}
}

// Orchestrator runs all collection loops as one unit.
type Orchestrator struct {
	cfg      Config
	disc     Discoverer
	backfill Backfiller
	poller   BookPoller
	streamer Streamer
	markets  MarketLister
	logger   *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config, disc Discoverer, backfill Backfiller, poller BookPoller, streamer Streamer, markets MarketLister, logger *slog.Logger) *Orchestrator {
	if cfg.DiscoveryInterval == 0 {
		cfg.DiscoveryInterval = DefaultConfig().DiscoveryInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:      cfg,
		disc:     disc,
		backfill: backfill,
		poller:   poller,
		streamer: streamer,
		markets:  markets,
		logger:   logger.With("component", "orchestrator"),
	}
}

// Run blocks until ctx is canceled. Startup order: one discovery cycle,
// one full backfill of every known market, then the periodic loops and
// the realtime stream together. Loop-body failures are logged and the
// loop continues at its next tick.
func (o *Orchestrator) Run(ctx context.Context) error {
	if _, err := o.disc.Run(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Error("initial discovery failed", "error", err)
	}

	known, err := o.markets.ListKnownMarkets(ctx)
	if err != nil {
		return err
	}
	o.logger.Info("starting initial backfill", "markets", len(known))
	if _, err := o.backfill.Collect(ctx, known); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		o.logger.Error("initial backfill failed", "error", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		o.streamer.Run(gctx)
		return gctx.Err()
	})

	g.Go(func() error {
		return o.discoveryLoop(gctx)
	})

	g.Go(func() error {
		if err := o.poller.Start(gctx); err != nil {
			return err
		}
		<-gctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := o.poller.Stop(stopCtx); err != nil {
			o.logger.Warn("orderbook poller did not stop cleanly", "error", err)
		}
		return gctx.Err()
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	o.logger.Info("orchestrator stopped")
	return err
}

// discoveryLoop re-runs discovery on a fixed cadence and backfills only
// the markets each cycle adds.
func (o *Orchestrator) discoveryLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.DiscoveryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		res, err := o.disc.Run(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("discovery cycle failed", "error", err)
			continue
		}
		if len(res.NewMarkets) == 0 {
			continue
		}

		// Get the new tokens streaming before the backfill churns.
		if err := o.streamer.Resubscribe(ctx); err != nil {
			o.logger.Warn("live resubscribe failed, next reconnect covers it", "error", err)
		}

		o.logger.Info("backfilling newly discovered markets", "count", len(res.NewMarkets))
		if _, err := o.backfill.Collect(ctx, res.NewMarkets); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			o.logger.Error("incremental backfill failed", "error", err)
		}
	}
}

