package historical

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
	"github.com/polydata/esports-collector/internal/storage"
)

type fakeSource struct {
	prices     func(tokenID string, startTs, endTs int64) ([]api.PriceHistoryPoint, error)
	trades     func(conditionID string, offset, limit int) ([]api.DataTrade, error)
	oi         float64
	oiOK       bool
	oiErr      error
	priceCalls []int64 // startTs of each PriceHistory call
}

func (f *fakeSource) PriceHistory(_ context.Context, tokenID string, startTs, endTs int64, _ string) ([]api.PriceHistoryPoint, error) {
	f.priceCalls = append(f.priceCalls, startTs)
	if f.prices == nil {
		return nil, nil
	}
	return f.prices(tokenID, startTs, endTs)
}

func (f *fakeSource) TradePage(_ context.Context, conditionID string, offset, limit int) ([]api.DataTrade, error) {
	if f.trades == nil {
		return nil, nil
	}
	return f.trades(conditionID, offset, limit)
}

func (f *fakeSource) OpenInterest(_ context.Context, _ string) (float64, bool, error) {
	return f.oi, f.oiOK, f.oiErr
}

func market(id string) model.Market {
	return model.Market{
		MarketID:    id,
		ConditionID: "0xcond" + id,
		YesTokenID:  "yes-" + id,
		Question:    "Will team A win?",
	}
}

func pricePoints(ts ...int64) []api.PriceHistoryPoint {
	out := make([]api.PriceHistoryPoint, len(ts))
	for i, t := range ts {
		out[i] = api.PriceHistoryPoint{T: api.FlexTimestamp(t), P: 0.5}
	}
	return out
}

func dataTrade(id string, ts int64) api.DataTrade {
	return api.DataTrade{ID: id, Timestamp: api.FlexTimestamp(ts), Price: 0.5, Size: 10, Side: "buy"}
}

func TestCollectIdempotentRerun(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{
		prices: func(_ string, startTs, _ int64) ([]api.PriceHistoryPoint, error) {
			// Only the window the store doesn't have yet yields points.
			var out []api.PriceHistoryPoint
			for _, ts := range []int64{1000, 2000, 3000} {
				if ts >= startTs {
					out = append(out, pricePoints(ts)...)
				}
			}
			return out, nil
		},
		trades: func(_ string, offset, _ int) ([]api.DataTrade, error) {
			if offset > 0 {
				return nil, nil
			}
			return []api.DataTrade{dataTrade("t1", 1000), dataTrade("t2", 2000)}, nil
		},
	}

	c := New(src, store, Config{}, nil)
	c.now = func() time.Time { return time.Unix(4000, 0) }
	markets := []model.Market{market("m1")}

	first, err := c.Collect(context.Background(), markets)
	if err != nil {
		t.Fatalf("first Collect: %v", err)
	}
	if first.Prices != 3 || first.Trades != 2 || first.Skipped != 0 {
		t.Fatalf("first run = %+v, want Prices=3 Trades=2", first)
	}

	second, err := c.Collect(context.Background(), markets)
	if err != nil {
		t.Fatalf("second Collect: %v", err)
	}
	if second.Prices != 0 || second.Trades != 0 {
		t.Errorf("second run = %+v, want Prices=0 Trades=0", second)
	}
	if n := store.PriceCount("m1"); n != 3 {
		t.Errorf("stored %d price points, want 3", n)
	}
	if n := store.TradeCount(); n != 2 {
		t.Errorf("stored %d trades, want 2", n)
	}
}

func TestCollectResumesFromLatestTimestamp(t *testing.T) {
	store := storage.NewMemory()
	if err := store.UpsertPricePoint(context.Background(), model.PricePoint{MarketID: "m1", Timestamp: 5000, Price: 0.4}); err != nil {
		t.Fatal(err)
	}

	src := &fakeSource{}
	c := New(src, store, Config{}, nil)
	// Pin the clock so lastStoredTs+1 beats the 30-day window floor.
	c.now = func() time.Time { return time.Unix(10000, 0) }

	if _, err := c.Collect(context.Background(), []model.Market{market("m1")}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if len(src.priceCalls) != 1 {
		t.Fatalf("PriceHistory called %d times, want 1", len(src.priceCalls))
	}
	if src.priceCalls[0] != 5001 {
		t.Errorf("startTs = %d, want 5001 (lastStoredTs+1)", src.priceCalls[0])
	}
}

func TestCollectTradePagination(t *testing.T) {
	store := storage.NewMemory()
	var offsets []int
	src := &fakeSource{
		trades: func(_ string, offset, limit int) ([]api.DataTrade, error) {
			offsets = append(offsets, offset)
			switch offset {
			case 0:
				out := make([]api.DataTrade, limit)
				for i := range out {
					out[i] = dataTrade("full-"+string(rune('a'+i)), int64(1000+i))
				}
				return out, nil
			default:
				return []api.DataTrade{dataTrade("tail", 9000)}, nil
			}
		},
	}

	cfg := Config{TradePageSize: 3}
	c := New(src, store, cfg, nil)

	res, err := c.Collect(context.Background(), []model.Market{market("m1")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Trades != 4 {
		t.Errorf("Trades = %d, want 4", res.Trades)
	}
	if len(offsets) != 2 || offsets[0] != 0 || offsets[1] != 3 {
		t.Errorf("offsets = %v, want [0 3]", offsets)
	}
}

func TestCollectTradePageCap(t *testing.T) {
	store := storage.NewMemory()
	calls := 0
	src := &fakeSource{
		trades: func(_ string, offset, limit int) ([]api.DataTrade, error) {
			calls++
			out := make([]api.DataTrade, limit)
			for i := range out {
				out[i] = dataTrade("t-"+string(rune('a'+calls))+"-"+string(rune('a'+i)), int64(offset+i+1))
			}
			return out, nil
		},
	}

	cfg := Config{TradePageSize: 2, MaxTradePages: 5}
	c := New(src, store, cfg, nil)

	if _, err := c.Collect(context.Background(), []model.Market{market("m1")}); err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if calls != 5 {
		t.Errorf("TradePage called %d times, want 5 (page cap)", calls)
	}
}

func TestCollectTradeSkipsOutOfRangePrices(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{
		trades: func(_ string, offset, _ int) ([]api.DataTrade, error) {
			if offset > 0 {
				return nil, nil
			}
			bad := dataTrade("t-bad", 1500)
			bad.Price = 1.5
			return []api.DataTrade{dataTrade("t-ok", 1000), bad}, nil
		},
	}

	c := New(src, store, Config{}, nil)
	c.now = func() time.Time { return time.Unix(4000, 0) }

	res, err := c.Collect(context.Background(), []model.Market{market("m1")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Trades != 1 {
		t.Errorf("stored %d trades, want 1 (price outside [0,1] dropped)", res.Trades)
	}
	if n := store.TradeCount(); n != 1 {
		t.Errorf("store holds %d trades, want 1", n)
	}
}

func TestCollectBadRequestSkipsQuietly(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{
		prices: func(_ string, _, _ int64) ([]api.PriceHistoryPoint, error) {
			return nil, &api.APIError{StatusCode: http.StatusBadRequest, Message: "Bad Request"}
		},
		trades: func(_ string, offset, _ int) ([]api.DataTrade, error) {
			if offset > 0 {
				return nil, nil
			}
			return []api.DataTrade{dataTrade("t1", 1000)}, nil
		},
	}

	c := New(src, store, Config{}, nil)
	res, err := c.Collect(context.Background(), []model.Market{market("m1")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	// A 400 on prices is "no data", not a failure: trades still collected.
	if res.Skipped != 0 {
		t.Errorf("Skipped = %d, want 0", res.Skipped)
	}
	if res.Trades != 1 {
		t.Errorf("Trades = %d, want 1", res.Trades)
	}
}

func TestCollectFetchFailureSkipsMarket(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{
		prices: func(tokenID string, _, _ int64) ([]api.PriceHistoryPoint, error) {
			if tokenID == "yes-bad" {
				return nil, errors.New("max retries exceeded")
			}
			return pricePoints(1000), nil
		},
	}

	c := New(src, store, Config{}, nil)
	res, err := c.Collect(context.Background(), []model.Market{market("bad"), market("good")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", res.Skipped)
	}
	if res.Prices != 1 {
		t.Errorf("Prices = %d, want 1 from the healthy market", res.Prices)
	}
}

func TestCollectOpenInterestSample(t *testing.T) {
	store := storage.NewMemory()
	src := &fakeSource{oi: 12345.5, oiOK: true}

	c := New(src, store, Config{}, nil)
	res, err := c.Collect(context.Background(), []model.Market{market("m1")})
	if err != nil {
		t.Fatalf("Collect: %v", err)
	}
	if res.OpenInterest != 1 {
		t.Errorf("OpenInterest = %d, want 1", res.OpenInterest)
	}
}
