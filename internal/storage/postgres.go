package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/polydata/esports-collector/internal/model"
)

// Postgres implements Store on a pgx connection pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// Connect creates a connection pool, verifies it, and ensures the schema.
func Connect(ctx context.Context, cfg DBConfig) (*Postgres, error) {
	connStr := BuildConnString(cfg)

	poolCfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}

	poolCfg.MinConns = int32(cfg.MinConns)
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &Postgres{pool: pool}
	if err := s.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	return s, nil
}

// Close closes the connection pool.
func (s *Postgres) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping verifies the connection is healthy.
func (s *Postgres) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS markets (
		market_id     TEXT PRIMARY KEY,
		condition_id  TEXT,
		yes_token_id  TEXT,
		no_token_id   TEXT,
		question      TEXT,
		outcomes      TEXT,
		start_date    TEXT,
		end_date      TEXT,
		event_id      TEXT,
		game          TEXT,
		discovered_at BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS price_history (
		market_id TEXT NOT NULL,
		ts        BIGINT NOT NULL,
		price     DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (market_id, ts)
	)`,
	`CREATE TABLE IF NOT EXISTS trades (
		trade_id  TEXT PRIMARY KEY,
		market_id TEXT NOT NULL,
		ts        BIGINT NOT NULL,
		price     DOUBLE PRECISION NOT NULL,
		size      DOUBLE PRECISION NOT NULL,
		side      TEXT,
		outcome   TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS realtime_ticks (
		id         BIGSERIAL PRIMARY KEY,
		token_id   TEXT NOT NULL,
		ts         BIGINT NOT NULL,
		bid        DOUBLE PRECISION,
		ask        DOUBLE PRECISION,
		last_price DOUBLE PRECISION
	)`,
	`CREATE TABLE IF NOT EXISTS orderbook_snapshots (
		id             BIGSERIAL PRIMARY KEY,
		market_id      TEXT NOT NULL,
		token_id       TEXT NOT NULL,
		ts             BIGINT NOT NULL,
		best_bid_price DOUBLE PRECISION,
		best_bid_size  DOUBLE PRECISION,
		best_ask_price DOUBLE PRECISION,
		best_ask_size  DOUBLE PRECISION,
		spread         DOUBLE PRECISION,
		mid_price      DOUBLE PRECISION,
		bid_depth      JSONB,
		ask_depth      JSONB
	)`,
	`CREATE TABLE IF NOT EXISTS open_interest (
		id            BIGSERIAL PRIMARY KEY,
		market_id     TEXT NOT NULL,
		condition_id  TEXT,
		ts            BIGINT NOT NULL,
		open_interest DOUBLE PRECISION NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_history_ts ON price_history (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades (market_id)`,
	`CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_ticks_token ON realtime_ticks (token_id)`,
	`CREATE INDEX IF NOT EXISTS idx_ticks_ts ON realtime_ticks (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_market ON orderbook_snapshots (market_id)`,
	`CREATE INDEX IF NOT EXISTS idx_snapshots_ts ON orderbook_snapshots (ts)`,
	`CREATE INDEX IF NOT EXISTS idx_oi_market ON open_interest (market_id)`,
}

func (s *Postgres) ensureSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

// UpsertMarket inserts a new market or refreshes the descriptive fields of
// an existing one; identity columns never change after first insert.
func (s *Postgres) UpsertMarket(ctx context.Context, m model.Market) (bool, error) {
	outcomes, err := json.Marshal(m.Outcomes)
	if err != nil {
		return false, fmt.Errorf("marshal outcomes: %w", err)
	}

	ct, err := s.pool.Exec(ctx, `
		INSERT INTO markets (market_id, condition_id, yes_token_id, no_token_id,
			question, outcomes, start_date, end_date, event_id, game, discovered_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (market_id) DO NOTHING
	`, m.MarketID, m.ConditionID, m.YesTokenID, m.NoTokenID,
		m.Question, string(outcomes), m.StartDate, m.EndDate, m.EventID, m.Game, m.DiscoveredAt)
	if err != nil {
		return false, fmt.Errorf("insert market %s: %w", m.MarketID, err)
	}
	if ct.RowsAffected() > 0 {
		return true, nil
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE markets
		SET question = $2, outcomes = $3, start_date = $4, end_date = $5, game = $6
		WHERE market_id = $1
	`, m.MarketID, m.Question, string(outcomes), m.StartDate, m.EndDate, m.Game)
	if err != nil {
		return false, fmt.Errorf("refresh market %s: %w", m.MarketID, err)
	}
	return false, nil
}

// UpsertPricePoint writes one price observation.
func (s *Postgres) UpsertPricePoint(ctx context.Context, p model.PricePoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO price_history (market_id, ts, price)
		VALUES ($1, $2, $3)
		ON CONFLICT (market_id, ts) DO NOTHING
	`, p.MarketID, p.Timestamp, p.Price)
	if err != nil {
		return fmt.Errorf("insert price point: %w", err)
	}
	return nil
}

// UpsertPricePoints batch-writes price observations and returns the number
// of newly inserted rows.
func (s *Postgres) UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error) {
	if len(points) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range points {
		batch.Queue(`
			INSERT INTO price_history (market_id, ts, price)
			VALUES ($1, $2, $3)
			ON CONFLICT (market_id, ts) DO NOTHING
		`, p.MarketID, p.Timestamp, p.Price)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range points {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch insert price points: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

// UpsertTrade writes one trade.
func (s *Postgres) UpsertTrade(ctx context.Context, t model.Trade) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (trade_id, market_id, ts, price, size, side, outcome)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (trade_id) DO NOTHING
	`, t.TradeID, t.MarketID, t.Timestamp, t.Price, t.Size, t.Side, t.Outcome)
	if err != nil {
		return fmt.Errorf("insert trade %s: %w", t.TradeID, err)
	}
	return nil
}

// UpsertTrades batch-writes trades and returns the number of newly
// inserted rows.
func (s *Postgres) UpsertTrades(ctx context.Context, trades []model.Trade) (int, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, t := range trades {
		batch.Queue(`
			INSERT INTO trades (trade_id, market_id, ts, price, size, side, outcome)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			ON CONFLICT (trade_id) DO NOTHING
		`, t.TradeID, t.MarketID, t.Timestamp, t.Price, t.Size, t.Side, t.Outcome)
	}

	results := s.pool.SendBatch(ctx, batch)
	defer results.Close()

	inserted := 0
	for range trades {
		ct, err := results.Exec()
		if err != nil {
			return inserted, fmt.Errorf("batch insert trades: %w", err)
		}
		inserted += int(ct.RowsAffected())
	}
	return inserted, nil
}

// InsertRealtimeTick appends one streaming tick.
func (s *Postgres) InsertRealtimeTick(ctx context.Context, t model.RealtimeTick) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO realtime_ticks (token_id, ts, bid, ask, last_price)
		VALUES ($1, $2, $3, $4, $5)
	`, t.TokenID, t.Timestamp, t.Bid, t.Ask, t.LastPrice)
	if err != nil {
		return fmt.Errorf("insert tick: %w", err)
	}
	return nil
}

// InsertOrderbookSnapshot appends one snapshot. Depth levels are stored as
// JSON; nil spread/mid stay NULL.
func (s *Postgres) InsertOrderbookSnapshot(ctx context.Context, snap model.OrderbookSnapshot) error {
	bidDepth, err := json.Marshal(snap.BidDepth)
	if err != nil {
		return fmt.Errorf("marshal bid depth: %w", err)
	}
	askDepth, err := json.Marshal(snap.AskDepth)
	if err != nil {
		return fmt.Errorf("marshal ask depth: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO orderbook_snapshots (market_id, token_id, ts,
			best_bid_price, best_bid_size, best_ask_price, best_ask_size,
			spread, mid_price, bid_depth, ask_depth)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, snap.MarketID, snap.TokenID, snap.Timestamp,
		snap.BestBidPrice, snap.BestBidSize, snap.BestAskPrice, snap.BestAskSize,
		snap.Spread, snap.MidPrice, string(bidDepth), string(askDepth))
	if err != nil {
		return fmt.Errorf("insert snapshot: %w", err)
	}
	return nil
}

// InsertOpenInterest appends one open-interest sample.
func (s *Postgres) InsertOpenInterest(ctx context.Context, p model.OpenInterestPoint) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO open_interest (market_id, condition_id, ts, open_interest)
		VALUES ($1, $2, $3, $4)
	`, p.MarketID, p.ConditionID, p.Timestamp, p.OpenInterest)
	if err != nil {
		return fmt.Errorf("insert open interest: %w", err)
	}
	return nil
}

// ListKnownMarkets returns all stored markets.
func (s *Postgres) ListKnownMarkets(ctx context.Context) ([]model.Market, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, condition_id, yes_token_id, no_token_id,
			question, outcomes, start_date, end_date, event_id, game, discovered_at
		FROM markets
		ORDER BY discovered_at
	`)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var markets []model.Market
	for rows.Next() {
		var m model.Market
		var outcomes string
		if err := rows.Scan(&m.MarketID, &m.ConditionID, &m.YesTokenID, &m.NoTokenID,
			&m.Question, &outcomes, &m.StartDate, &m.EndDate, &m.EventID, &m.Game, &m.DiscoveredAt); err != nil {
			return nil, fmt.Errorf("scan market: %w", err)
		}
		if outcomes != "" {
			_ = json.Unmarshal([]byte(outcomes), &m.Outcomes)
		}
		markets = append(markets, m)
	}
	return markets, rows.Err()
}

// ListKnownTokens returns all distinct token ids across stored markets.
func (s *Postgres) ListKnownTokens(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT yes_token_id FROM markets WHERE yes_token_id <> ''
		UNION
		SELECT no_token_id FROM markets WHERE no_token_id <> ''
	`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var tokens []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, t)
	}
	return tokens, rows.Err()
}

// LatestPriceTimestamp returns the newest price timestamp for a market.
func (s *Postgres) LatestPriceTimestamp(ctx context.Context, marketID string) (int64, bool, error) {
	var ts *int64
	err := s.pool.QueryRow(ctx, `
		SELECT MAX(ts) FROM price_history WHERE market_id = $1
	`, marketID).Scan(&ts)
	if err != nil {
		return 0, false, fmt.Errorf("latest price timestamp: %w", err)
	}
	if ts == nil {
		return 0, false, nil
	}
	return *ts, true, nil
}
