// Package storage provides durable, idempotent persistence for collected
// market data.
//
// The Store contract is deliberately small: repeated upserts with identical
// input must never duplicate rows or fail, since interrupted runs are
// re-driven by simply running the collectors again. One collector instance
// is assumed to own a given storage target at a time.
package storage

import (
	"context"

	"github.com/polydata/esports-collector/internal/model"
)

// Store is the persistence contract consumed by the collection pipeline.
type Store interface {
	// UpsertMarket inserts a market or refreshes its descriptive fields.
	// Returns true when the market was not previously known.
	UpsertMarket(ctx context.Context, m model.Market) (created bool, err error)

	// UpsertPricePoint writes one price observation, unique on
	// (market_id, timestamp).
	UpsertPricePoint(ctx context.Context, p model.PricePoint) error

	// UpsertPricePoints writes a batch of price observations and returns
	// the number of newly inserted rows.
	UpsertPricePoints(ctx context.Context, points []model.PricePoint) (int, error)

	// UpsertTrade writes one trade, unique on trade_id.
	UpsertTrade(ctx context.Context, t model.Trade) error

	// UpsertTrades writes a batch of trades and returns the number of
	// newly inserted rows.
	UpsertTrades(ctx context.Context, trades []model.Trade) (int, error)

	// InsertRealtimeTick appends one streaming tick.
	InsertRealtimeTick(ctx context.Context, t model.RealtimeTick) error

	// InsertOrderbookSnapshot appends one orderbook snapshot.
	InsertOrderbookSnapshot(ctx context.Context, s model.OrderbookSnapshot) error

	// InsertOpenInterest appends one open-interest sample.
	InsertOpenInterest(ctx context.Context, p model.OpenInterestPoint) error

	// ListKnownMarkets returns all stored markets.
	ListKnownMarkets(ctx context.Context) ([]model.Market, error)

	// ListKnownTokens returns all distinct outcome token ids across stored
	// markets.
	ListKnownTokens(ctx context.Context) ([]string, error)

	// LatestPriceTimestamp returns the newest stored price timestamp for a
	// market; ok is false when the market has no price history yet.
	LatestPriceTimestamp(ctx context.Context, marketID string) (ts int64, ok bool, err error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error
}
