package stream

import (
	"bytes"
	"encoding/json"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
)

// wsEvent is one market-channel event. Field presence varies by event type;
// every numeric field tolerates both string and number encodings.
type wsEvent struct {
	EventType      string          `json:"event_type"`
	Type           string          `json:"type"`
	AssetID        string          `json:"asset_id"`
	Market         string          `json:"market"`
	TokenID        string          `json:"token_id"`
	Timestamp      api.FlexFloat   `json:"timestamp"`
	Price          api.FlexFloat   `json:"price"`
	LastTradePrice api.FlexFloat   `json:"last_trade_price"`
	BestBid        api.FlexFloat   `json:"best_bid"`
	BestAsk        api.FlexFloat   `json:"best_ask"`
	Bids           json.RawMessage `json:"bids"`
	Asks           json.RawMessage `json:"asks"`
}

// parseMessage extracts price ticks from one raw frame. Service error
// strings and unparseable frames yield nothing; a frame may carry one
// event or an array of them.
func parseMessage(data []byte, nowMs int64) []model.RealtimeTick {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if bytes.Equal(trimmed, []byte("INVALID OPERATION")) || bytes.Equal(trimmed, []byte("INVALID MESSAGE")) {
		return nil
	}

	var events []wsEvent
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &events); err != nil {
			return nil
		}
	} else {
		var ev wsEvent
		if err := json.Unmarshal(trimmed, &ev); err != nil {
			return nil
		}
		events = []wsEvent{ev}
	}

	var ticks []model.RealtimeTick
	for _, ev := range events {
		if tick, ok := extractTick(ev, nowMs); ok {
			ticks = append(ticks, tick)
		}
	}
	return ticks
}

// extractTick normalizes one event into a tick. A tick needs an asset
// identifier and at least one price signal.
func extractTick(ev wsEvent, nowMs int64) (model.RealtimeTick, bool) {
	switch eventType(ev) {
	case "book", "last_trade_price", "price_change", "":
	default:
		return model.RealtimeTick{}, false
	}

	tokenID := ev.AssetID
	if tokenID == "" {
		tokenID = ev.Market
	}
	if tokenID == "" {
		tokenID = ev.TokenID
	}
	if tokenID == "" {
		return model.RealtimeTick{}, false
	}

	ts := int64(ev.Timestamp)
	if ts == 0 {
		ts = nowMs
	}

	last := float64(ev.LastTradePrice)
	if last == 0 {
		last = float64(ev.Price)
	}

	bid := float64(ev.BestBid)
	if bid == 0 {
		bid = bestOfSide(ev.Bids)
	}
	ask := float64(ev.BestAsk)
	if ask == 0 {
		ask = bestOfSide(ev.Asks)
	}

	// Prices outside (0, 1] are noise, not signals.
	last = boundedPrice(last)
	bid = boundedPrice(bid)
	ask = boundedPrice(ask)

	if last == 0 && bid == 0 && ask == 0 {
		return model.RealtimeTick{}, false
	}

	return model.RealtimeTick{
		TokenID:   tokenID,
		Timestamp: ts,
		Bid:       bid,
		Ask:       ask,
		LastPrice: last,
	}, true
}

// boundedPrice zeroes a price outside the valid probability range so it
// reads as absent.
func boundedPrice(v float64) float64 {
	if v <= 0 || v > 1 {
		return 0
	}
	return v
}

func eventType(ev wsEvent) string {
	if ev.EventType != "" {
		return ev.EventType
	}
	return ev.Type
}

// bestOfSide pulls the first level's price from a raw bids/asks field,
// which arrives as either a list of {price,size} objects or bare values.
func bestOfSide(raw json.RawMessage) float64 {
	if len(raw) == 0 {
		return 0
	}

	var levels []struct {
		Price api.FlexFloat `json:"price"`
	}
	if err := json.Unmarshal(raw, &levels); err == nil && len(levels) > 0 {
		return float64(levels[0].Price)
	}

	var scalars []api.FlexFloat
	if err := json.Unmarshal(raw, &scalars); err == nil && len(scalars) > 0 {
		return float64(scalars[0])
	}

	return 0
}
