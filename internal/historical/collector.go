package historical

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
)

// MarketDataSource is the slice of the API client backfill needs.
type MarketDataSource interface {
	PriceHistory(ctx context.Context, tokenID string, startTs, endTs int64, interval string) ([]api.PriceHistoryPoint, error)
	TradePage(ctx context.Context, conditionID string, offset, limit int) ([]api.DataTrade, error)
	OpenInterest(ctx context.Context, conditionID string) (float64, bool, error)
}

// HistoryStore is the slice of the store backfill writes to.
type HistoryStore interface {
	UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error)
	UpsertTrades(ctx context.Context, trades []model.Trade) (int, error)
	InsertOpenInterest(ctx context.Context, p model.OpenInterestPoint) error
	LatestPriceTimestamp(ctx context.Context, marketID string) (int64, bool, error)
}

// Config holds backfill settings.
type Config struct {
	WindowDays    int    // how far back to fetch prices for a fresh market
	PriceInterval string // prices-history interval parameter
	TradePageSize int    // records per trades request
	MaxTradePages int    // pagination safety limit per market
}

// DefaultConfig returns backfill defaults.
func DefaultConfig() Config {
	return Config{
		WindowDays:    30,
		PriceInterval: "1h",
		TradePageSize: api.MaxTradePageSize,
		MaxTradePages: 100,
	}
}

// Result summarizes one backfill run.
type Result struct {
	Prices       int // newly inserted price points
	Trades       int // newly inserted trades
	OpenInterest int // open interest samples written
	Skipped      int // markets skipped after a fetch failure
}

// Collector backfills historical data for a set of markets.
type Collector struct {
	src    MarketDataSource
	store  HistoryStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

// New creates a Collector.
func New(src MarketDataSource, store HistoryStore, cfg Config, logger *slog.Logger) *Collector {
	def := DefaultConfig()
	if cfg.WindowDays == 0 {
		cfg.WindowDays = def.WindowDays
	}
	if cfg.PriceInterval == "" {
		cfg.PriceInterval = def.PriceInterval
	}
	if cfg.TradePageSize <= 0 || cfg.TradePageSize > api.MaxTradePageSize {
		cfg.TradePageSize = def.TradePageSize
	}
	if cfg.MaxTradePages == 0 {
		cfg.MaxTradePages = def.MaxTradePages
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Collector{
		src:    src,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "historical"),
		now:    time.Now,
	}
}

// Collect backfills every market in the list. A fetch failure (after the
// client's own retries) skips the rest of that market and moves on; Collect
// only fails when the context is canceled.
func (c *Collector) Collect(ctx context.Context, markets []model.Market) (Result, error) {
	start := time.Now()
	res := Result{}

	for i, m := range markets {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		c.logger.Debug("backfilling market",
			"market_id", m.MarketID,
			"progress", fmt.Sprintf("%d/%d", i+1, len(markets)),
		)

		if err := c.collectMarket(ctx, m, &res); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			res.Skipped++
			c.logger.Warn("skipping market this run",
				"market_id", m.MarketID, "error", err)
		}
	}

	c.logger.Info("backfill complete",
		"markets", len(markets),
		"prices", res.Prices,
		"trades", res.Trades,
		"open_interest", res.OpenInterest,
		"skipped", res.Skipped,
		"duration", time.Since(start),
	)
	return res, nil
}

func (c *Collector) collectMarket(ctx context.Context, m model.Market, res *Result) error {
	n, err := c.collectPrices(ctx, m)
	if err != nil {
		return fmt.Errorf("prices: %w", err)
	}
	res.Prices += n

	n, err = c.collectTrades(ctx, m)
	if err != nil {
		return fmt.Errorf("trades: %w", err)
	}
	res.Trades += n

	n, err = c.collectOpenInterest(ctx, m)
	if err != nil {
		return fmt.Errorf("open interest: %w", err)
	}
	res.OpenInterest += n

	return nil
}

// collectPrices fetches the price window the store doesn't have yet:
// max(lastStoredTs+1, now-WindowDays) through now.
func (c *Collector) collectPrices(ctx context.Context, m model.Market) (int, error) {
	if m.YesTokenID == "" {
		c.logger.Debug("no clob token id, skipping prices", "market_id", m.MarketID)
		return 0, nil
	}

	now := c.now().Unix()
	startTs := now - int64(c.cfg.WindowDays)*86400
	if lastTs, ok, err := c.store.LatestPriceTimestamp(ctx, m.MarketID); err != nil {
		return 0, err
	} else if ok && lastTs+1 > startTs {
		startTs = lastTs + 1
	}
	if startTs >= now {
		return 0, nil
	}

	points, err := c.src.PriceHistory(ctx, m.YesTokenID, startTs, now, c.cfg.PriceInterval)
	if err != nil {
		if isBadRequest(err) {
			// The endpoint returns 400 for markets without price history.
			c.logger.Debug("price history not available", "market_id", m.MarketID)
			return 0, nil
		}
		return 0, err
	}
	if len(points) == 0 {
		return 0, nil
	}

	rows := make([]model.PricePoint, 0, len(points))
	for _, p := range points {
		rows = append(rows, model.PricePoint{
			MarketID:  m.MarketID,
			Timestamp: p.Time(),
			Price:     p.Value(),
		})
	}

	inserted, err := c.store.UpsertPricePoints(ctx, rows)
	if err != nil {
		return 0, err
	}
	if inserted > 0 {
		c.logger.Info("inserted price points", "market_id", m.MarketID, "count", inserted)
	}
	return inserted, nil
}

// collectTrades walks the trades endpoint by record offset until a short
// page, an empty page, or the page cap.
func (c *Collector) collectTrades(ctx context.Context, m model.Market) (int, error) {
	if m.ConditionID == "" {
		c.logger.Debug("no condition id, skipping trades", "market_id", m.MarketID)
		return 0, nil
	}

	total := 0
	offset := 0

	for page := 0; page < c.cfg.MaxTradePages; page++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		raw, err := c.src.TradePage(ctx, m.ConditionID, offset, c.cfg.TradePageSize)
		if err != nil {
			if isBadRequest(err) {
				c.logger.Debug("trades not available", "market_id", m.MarketID)
				return total, nil
			}
			return total, err
		}
		if len(raw) == 0 {
			break
		}

		rows := make([]model.Trade, 0, len(raw))
		for _, t := range raw {
			trade := t.ToModel(m.MarketID)
			if trade.Timestamp == 0 || trade.Price <= 0 || trade.Price > 1 {
				continue
			}
			rows = append(rows, trade)
		}

		inserted, err := c.store.UpsertTrades(ctx, rows)
		if err != nil {
			return total, err
		}
		total += inserted

		// A short page means the tail was reached. The offset advances by
		// raw record count so dropped records don't shift the cursor.
		if len(raw) < c.cfg.TradePageSize {
			break
		}
		offset += len(raw)
	}

	if total > 0 {
		c.logger.Info("inserted trades", "market_id", m.MarketID, "count", total)
	}
	return total, nil
}

// collectOpenInterest samples current open interest once per run.
func (c *Collector) collectOpenInterest(ctx context.Context, m model.Market) (int, error) {
	if m.ConditionID == "" {
		return 0, nil
	}

	oi, ok, err := c.src.OpenInterest(ctx, m.ConditionID)
	if err != nil {
		if isBadRequest(err) {
			c.logger.Debug("open interest not available", "market_id", m.MarketID)
			return 0, nil
		}
		return 0, err
	}
	if !ok {
		return 0, nil
	}

	point := model.OpenInterestPoint{
		MarketID:     m.MarketID,
		ConditionID:  m.ConditionID,
		Timestamp:    c.now().UnixMilli(),
		OpenInterest: oi,
	}
	if err := c.store.InsertOpenInterest(ctx, point); err != nil {
		return 0, err
	}
	return 1, nil
}

// isBadRequest reports whether err is a 400 from the API, which these
// endpoints use for "no data for this market" rather than a caller bug.
func isBadRequest(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusBadRequest
}
