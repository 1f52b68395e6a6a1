package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/polydata/esports-collector/internal/model"
)

// decodeStringList parses a field that arrives as a JSON-encoded list
// inside a string, e.g. `"[\"Yes\",\"No\"]"`.
func decodeStringList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// ToModel converts a gamma market descriptor into the domain Market.
// The discovery timestamp and matched game are supplied by the caller.
func (m GammaMarket) ToModel(ev GammaEvent, game string, discoveredAt int64) model.Market {
	tokens := decodeStringList(m.ClobTokenIDs)

	out := model.Market{
		MarketID:     m.ID,
		ConditionID:  m.ConditionID,
		Question:     m.Question,
		Outcomes:     decodeStringList(m.Outcomes),
		StartDate:    m.StartDate,
		EndDate:      m.EndDate,
		EventID:      ev.ID,
		Game:         game,
		DiscoveredAt: discoveredAt,
	}
	if len(tokens) > 0 {
		out.YesTokenID = tokens[0]
	}
	if len(tokens) > 1 {
		out.NoTokenID = tokens[1]
	}
	return out
}

// ToModel converts a data-API trade into the domain Trade. Trades without
// an externally assigned id get a synthetic one derived from their
// observable fields, so re-fetching the same page stays idempotent.
func (t DataTrade) ToModel(marketID string) model.Trade {
	id := t.ID
	if id == "" {
		id = t.TradeID
	}
	ts := t.Time()
	if id == "" {
		id = fmt.Sprintf("%d_%g_%g", ts, float64(t.Price), t.SizeValue())
	}

	outcome := t.Outcome
	if outcome == "" {
		outcome = t.Asset
	}

	return model.Trade{
		MarketID:  marketID,
		TradeID:   id,
		Timestamp: ts,
		Price:     float64(t.Price),
		Size:      t.SizeValue(),
		Side:      strings.ToUpper(t.Side),
		Outcome:   outcome,
	}
}

// SizeValue returns the trade size, whichever field carried it.
func (t DataTrade) SizeValue() float64 {
	if t.Size != 0 {
		return float64(t.Size)
	}
	return float64(t.Amount)
}
