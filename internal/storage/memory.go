package storage

import (
	"context"
	"sync"

	"github.com/polydata/esports-collector/internal/model"
)

// Memory is an in-memory Store with the same uniqueness semantics as the
// Postgres implementation. Used in tests and offline tooling.
type Memory struct {
	mu        sync.Mutex
	markets   map[string]model.Market
	order     []string                    // market insertion order
	prices    map[string]map[int64]float64 // market_id -> ts -> price
	trades    map[string]model.Trade       // trade_id -> trade
	ticks     []model.RealtimeTick
	snapshots []model.OrderbookSnapshot
	oi        []model.OpenInterestPoint
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		markets: make(map[string]model.Market),
		prices:  make(map[string]map[int64]float64),
		trades:  make(map[string]model.Trade),
	}
}

func (s *Memory) UpsertMarket(_ context.Context, m model.Market) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.markets[m.MarketID]
	if !ok {
		s.markets[m.MarketID] = m
		s.order = append(s.order, m.MarketID)
		return true, nil
	}

	// Identity is immutable; refresh descriptive fields only.
	existing.Question = m.Question
	existing.Outcomes = m.Outcomes
	existing.StartDate = m.StartDate
	existing.EndDate = m.EndDate
	existing.Game = m.Game
	s.markets[m.MarketID] = existing
	return false, nil
}

func (s *Memory) UpsertPricePoint(_ context.Context, p model.PricePoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upsertPriceLocked(p)
	return nil
}

func (s *Memory) UpsertPricePoints(_ context.Context, points []model.PricePoint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, p := range points {
		if s.upsertPriceLocked(p) {
			inserted++
		}
	}
	return inserted, nil
}

func (s *Memory) upsertPriceLocked(p model.PricePoint) bool {
	byTS, ok := s.prices[p.MarketID]
	if !ok {
		byTS = make(map[int64]float64)
		s.prices[p.MarketID] = byTS
	}
	if _, exists := byTS[p.Timestamp]; exists {
		return false
	}
	byTS[p.Timestamp] = p.Price
	return true
}

func (s *Memory) UpsertTrade(_ context.Context, t model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.trades[t.TradeID]; !exists {
		s.trades[t.TradeID] = t
	}
	return nil
}

func (s *Memory) UpsertTrades(_ context.Context, trades []model.Trade) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, t := range trades {
		if _, exists := s.trades[t.TradeID]; !exists {
			s.trades[t.TradeID] = t
			inserted++
		}
	}
	return inserted, nil
}

func (s *Memory) InsertRealtimeTick(_ context.Context, t model.RealtimeTick) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks = append(s.ticks, t)
	return nil
}

func (s *Memory) InsertOrderbookSnapshot(_ context.Context, snap model.OrderbookSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots = append(s.snapshots, snap)
	return nil
}

func (s *Memory) InsertOpenInterest(_ context.Context, p model.OpenInterestPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oi = append(s.oi, p)
	return nil
}

func (s *Memory) ListKnownMarkets(_ context.Context) ([]model.Market, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets := make([]model.Market, 0, len(s.order))
	for _, id := range s.order {
		markets = append(markets, s.markets[id])
	}
	return markets, nil
}

func (s *Memory) ListKnownTokens(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[string]struct{})
	var tokens []string
	for _, id := range s.order {
		for _, tok := range s.markets[id].TokenIDs() {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			tokens = append(tokens, tok)
		}
	}
	return tokens, nil
}

func (s *Memory) LatestPriceTimestamp(_ context.Context, marketID string) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byTS, ok := s.prices[marketID]
	if !ok || len(byTS) == 0 {
		return 0, false, nil
	}
	var max int64
	for ts := range byTS {
		if ts > max {
			max = ts
		}
	}
	return max, true, nil
}

func (s *Memory) Ping(_ context.Context) error { return nil }

// PriceCount returns the number of stored price points for a market.
func (s *Memory) PriceCount(marketID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prices[marketID])
}

// TradeCount returns the total number of stored trades.
func (s *Memory) TradeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.trades)
}

// Ticks returns a copy of the stored ticks.
func (s *Memory) Ticks() []model.RealtimeTick {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.RealtimeTick, len(s.ticks))
	copy(out, s.ticks)
	return out
}

// Snapshots returns a copy of the stored orderbook snapshots.
func (s *Memory) Snapshots() []model.OrderbookSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.OrderbookSnapshot, len(s.snapshots))
	copy(out, s.snapshots)
	return out
}
