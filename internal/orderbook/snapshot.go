package orderbook

import (
	"sort"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
)

// buildSnapshot normalizes a book response into a snapshot: bids sorted
// descending, asks ascending, best levels, and spread/mid only when both
// sides are present. A one-sided book yields nil derived fields, never zero.
func buildSnapshot(m model.Market, book *api.BookResponse, depth int, ts int64) model.OrderbookSnapshot {
	bids := toLevels(book.Bids)
	asks := toLevels(book.Asks)

	sort.Slice(bids, func(i, j int) bool { return bids[i].Price > bids[j].Price })
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	snap := model.OrderbookSnapshot{
		MarketID:  m.MarketID,
		TokenID:   m.YesTokenID,
		Timestamp: ts,
		BidDepth:  capLevels(bids, depth),
		AskDepth:  capLevels(asks, depth),
	}

	if len(bids) > 0 {
		snap.BestBidPrice = ptr(bids[0].Price)
		snap.BestBidSize = ptr(bids[0].Size)
	}
	if len(asks) > 0 {
		snap.BestAskPrice = ptr(asks[0].Price)
		snap.BestAskSize = ptr(asks[0].Size)
	}
	if snap.BestBidPrice != nil && snap.BestAskPrice != nil {
		snap.Spread = ptr(*snap.BestAskPrice - *snap.BestBidPrice)
		snap.MidPrice = ptr((*snap.BestAskPrice + *snap.BestBidPrice) / 2)
	}

	return snap
}

func toLevels(raw []api.BookLevel) []model.PriceLevel {
	out := make([]model.PriceLevel, 0, len(raw))
	for _, l := range raw {
		out = append(out, model.PriceLevel{
			Price: float64(l.Price),
			Size:  float64(l.Size),
		})
	}
	return out
}

func capLevels(levels []model.PriceLevel, depth int) []model.PriceLevel {
	if len(levels) > depth {
		return levels[:depth]
	}
	return levels
}

func ptr(v float64) *float64 { return &v }
