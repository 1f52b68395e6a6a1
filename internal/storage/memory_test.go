package storage

import (
	"context"
	"testing"

	"github.com/polydata/esports-collector/internal/model"
)

func testMarket(id string) model.Market {
	return model.Market{
		MarketID:    id,
		ConditionID: "0xcond" + id,
		YesTokenID:  "yes-" + id,
		NoTokenID:   "no-" + id,
		Question:    "Will team A win?",
		Outcomes:    []string{"Yes", "No"},
		Game:        "cs2",
	}
}

func TestMemoryUpsertMarketCreated(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	created, err := s.UpsertMarket(ctx, testMarket("1"))
	if err != nil {
		t.Fatalf("UpsertMarket: %v", err)
	}
	if !created {
		t.Fatal("expected created=true for new market")
	}

	m := testMarket("1")
	m.Question = "updated question"
	created, err = s.UpsertMarket(ctx, m)
	if err != nil {
		t.Fatalf("UpsertMarket: %v", err)
	}
	if created {
		t.Fatal("expected created=false for known market")
	}

	markets, err := s.ListKnownMarkets(ctx)
	if err != nil {
		t.Fatalf("ListKnownMarkets: %v", err)
	}
	if len(markets) != 1 {
		t.Fatalf("got %d markets, want 1", len(markets))
	}
	if markets[0].Question != "updated question" {
		t.Fatalf("descriptive fields not refreshed: %q", markets[0].Question)
	}
}

func TestMemoryPricePointIdempotence(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	points := []model.PricePoint{
		{MarketID: "1", Timestamp: 100, Price: 0.5},
		{MarketID: "1", Timestamp: 200, Price: 0.6},
		{MarketID: "1", Timestamp: 300, Price: 0.7},
	}
	inserted, err := s.UpsertPricePoints(ctx, points)
	if err != nil {
		t.Fatalf("UpsertPricePoints: %v", err)
	}
	if inserted != 3 {
		t.Fatalf("first pass inserted %d, want 3", inserted)
	}

	inserted, err = s.UpsertPricePoints(ctx, points)
	if err != nil {
		t.Fatalf("UpsertPricePoints: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("second pass inserted %d, want 0", inserted)
	}
	if n := s.PriceCount("1"); n != 3 {
		t.Fatalf("stored %d price points, want 3", n)
	}
}

func TestMemoryTradeIdempotence(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	trades := []model.Trade{
		{MarketID: "1", TradeID: "t1", Timestamp: 100, Price: 0.5, Size: 10},
		{MarketID: "1", TradeID: "t2", Timestamp: 101, Price: 0.51, Size: 5},
	}
	inserted, err := s.UpsertTrades(ctx, trades)
	if err != nil {
		t.Fatalf("UpsertTrades: %v", err)
	}
	if inserted != 2 {
		t.Fatalf("first pass inserted %d, want 2", inserted)
	}

	inserted, err = s.UpsertTrades(ctx, trades)
	if err != nil {
		t.Fatalf("UpsertTrades: %v", err)
	}
	if inserted != 0 {
		t.Fatalf("second pass inserted %d, want 0", inserted)
	}
	if n := s.TradeCount(); n != 2 {
		t.Fatalf("stored %d trades, want 2", n)
	}
}

func TestMemoryLatestPriceTimestamp(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	_, ok, err := s.LatestPriceTimestamp(ctx, "missing")
	if err != nil {
		t.Fatalf("LatestPriceTimestamp: %v", err)
	}
	if ok {
		t.Fatal("expected ok=false for unknown market")
	}

	for _, ts := range []int64{300, 100, 200} {
		if err := s.UpsertPricePoint(ctx, model.PricePoint{MarketID: "1", Timestamp: ts, Price: 0.5}); err != nil {
			t.Fatalf("UpsertPricePoint: %v", err)
		}
	}
	ts, ok, err := s.LatestPriceTimestamp(ctx, "1")
	if err != nil {
		t.Fatalf("LatestPriceTimestamp: %v", err)
	}
	if !ok || ts != 300 {
		t.Fatalf("got ts=%d ok=%v, want ts=300 ok=true", ts, ok)
	}
}

func TestMemoryListKnownTokens(t *testing.T) {
	s := NewMemory()
	ctx := context.Background()

	if _, err := s.UpsertMarket(ctx, testMarket("1")); err != nil {
		t.Fatal(err)
	}
	if _, err := s.UpsertMarket(ctx, testMarket("2")); err != nil {
		t.Fatal(err)
	}
	// A market sharing a token with market 1 must not duplicate it.
	dup := testMarket("3")
	dup.YesTokenID = "yes-1"
	if _, err := s.UpsertMarket(ctx, dup); err != nil {
		t.Fatal(err)
	}

	tokens, err := s.ListKnownTokens(ctx)
	if err != nil {
		t.Fatalf("ListKnownTokens: %v", err)
	}
	if len(tokens) != 5 {
		t.Fatalf("got %d tokens, want 5: %v", len(tokens), tokens)
	}
	seen := make(map[string]struct{})
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			t.Fatalf("duplicate token %q", tok)
		}
		seen[tok] = struct{}{}
	}
}
