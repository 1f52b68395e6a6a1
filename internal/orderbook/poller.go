package orderbook

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
)

// BookSource fetches current books.
type BookSource interface {
	Orderbook(ctx context.Context, tokenID string) (*api.BookResponse, error)
}

// MarketSource provides the markets to poll.
type MarketSource interface {
	ListKnownMarkets(ctx context.Context) ([]model.Market, error)
}

// SnapshotStore receives built snapshots.
type SnapshotStore interface {
	InsertOrderbookSnapshot(ctx context.Context, snap model.OrderbookSnapshot) error
}

// Config holds poller configuration.
type Config struct {
	Interval    time.Duration // poll interval
	Depth       int           // price levels kept per side
	Concurrency int           // max in-flight book fetches
	Timeout     time.Duration // per-request timeout
	Pace        rate.Limit    // requests per second across one pass
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval:    60 * time.Second,
		Depth:       5,
		Concurrency: 10,
		Timeout:     10 * time.Second,
		Pace:        10,
	}
}

// Poller periodically fetches orderbook snapshots via REST API.
type Poller struct {
	cfg     Config
	books   BookSource
	markets MarketSource
	store   SnapshotStore
	logger  *slog.Logger
	pacer   *rate.Limiter
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a new Poller.
func New(cfg Config, books BookSource, markets MarketSource, store SnapshotStore, logger *slog.Logger) *Poller {
	def := DefaultConfig()
	if cfg.Interval == 0 {
		cfg.Interval = def.Interval
	}
	if cfg.Depth == 0 {
		cfg.Depth = def.Depth
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = def.Concurrency
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.Pace == 0 {
		cfg.Pace = def.Pace
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:     cfg,
		books:   books,
		markets: markets,
		store:   store,
		logger:  logger.With("component", "orderbook"),
		pacer:   rate.NewLimiter(cfg.Pace, 1),
		now:     time.Now,
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("orderbook poller started",
		"interval", p.cfg.Interval,
		"depth", p.cfg.Depth,
		"concurrency", p.cfg.Concurrency,
	)

	return nil
}

// Stop gracefully shuts down the poller.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("orderbook poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.PollOnce(p.ctx)

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(p.ctx)
		}
	}
}

// PollOnce snapshots every known market's book once, with bounded
// concurrency and paced requests. Per-market failures are logged and the
// pass continues. Returns the number of snapshots written.
func (p *Poller) PollOnce(ctx context.Context) int {
	start := time.Now()

	markets, err := p.markets.ListKnownMarkets(ctx)
	if err != nil {
		p.logger.Error("failed to list markets", "error", err)
		return 0
	}
	if len(markets) == 0 {
		p.logger.Debug("no markets to poll")
		return 0
	}

	// Semaphore for bounded concurrency.
	sem := make(chan struct{}, p.cfg.Concurrency)
	var wg sync.WaitGroup
	var fetched, failed atomic.Int64

	for _, m := range markets {
		if m.YesTokenID == "" {
			continue
		}

		wg.Add(1)
		go func(m model.Market) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}

			if err := p.pacer.Wait(ctx); err != nil {
				return
			}

			if err := p.pollMarket(ctx, m); err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("failed to poll market",
						"market_id", m.MarketID,
						"error", err,
					)
				}
				failed.Add(1)
				return
			}

			fetched.Add(1)
		}(m)
	}

	wg.Wait()

	p.logger.Info("poll cycle complete",
		"markets", len(markets),
		"fetched", fetched.Load(),
		"failed", failed.Load(),
		"duration", time.Since(start),
	)
	return int(fetched.Load())
}

// pollMarket fetches and stores a single market's book snapshot.
func (p *Poller) pollMarket(ctx context.Context, m model.Market) error {
	reqCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	book, err := p.books.Orderbook(reqCtx, m.YesTokenID)
	if err != nil {
		return err
	}

	snap := buildSnapshot(m, book, p.cfg.Depth, p.now().UnixMilli())
	return p.store.InsertOrderbookSnapshot(ctx, snap)
}
