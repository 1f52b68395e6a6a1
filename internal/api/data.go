package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/polydata/esports-collector/internal/ratelimit"
)

// MaxTradePageSize is the per-request record cap the trades endpoint honors.
const MaxTradePageSize = 10000

// TradePage fetches one page of trade history for a market condition,
// paginated by record offset.
func (c *Client) TradePage(ctx context.Context, conditionID string, offset, limit int) ([]DataTrade, error) {
	if limit <= 0 || limit > MaxTradePageSize {
		limit = MaxTradePageSize
	}

	q := url.Values{}
	q.Set("market", conditionID)
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))

	body, err := c.doWithRetry(ctx, ratelimit.ClassDataTrades, c.dataURL, "/trades", q)
	if err != nil {
		return nil, fmt.Errorf("trades for %s at offset %d: %w", conditionID, offset, err)
	}

	var trades []DataTrade
	if err := json.Unmarshal(body, &trades); err == nil {
		return trades, nil
	}

	var wrapped struct {
		Data   []DataTrade `json:"data"`
		Trades []DataTrade `json:"trades"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal trades: %w", err)
	}
	if len(wrapped.Data) > 0 {
		return wrapped.Data, nil
	}
	return wrapped.Trades, nil
}

// OpenInterest fetches the current open interest for a market condition.
// The second return is false when the service reports no value.
func (c *Client) OpenInterest(ctx context.Context, conditionID string) (float64, bool, error) {
	q := url.Values{}
	q.Set("market", conditionID)

	body, err := c.doWithRetry(ctx, ratelimit.ClassDataOI, c.dataURL, "/oi", q)
	if err != nil {
		return 0, false, fmt.Errorf("open interest for %s: %w", conditionID, err)
	}

	// Bare number, quoted number, or an object keyed several ways.
	var f FlexFloat
	if err := json.Unmarshal(body, &f); err == nil && f != 0 {
		return float64(f), true, nil
	}

	var obj struct {
		OpenInterest *FlexFloat `json:"openInterest"`
		OI           *FlexFloat `json:"oi"`
		Value        *FlexFloat `json:"value"`
	}
	if err := json.Unmarshal(body, &obj); err != nil {
		return 0, false, nil
	}
	for _, v := range []*FlexFloat{obj.OpenInterest, obj.OI, obj.Value} {
		if v != nil {
			return float64(*v), true, nil
		}
	}

	return 0, false, nil
}
