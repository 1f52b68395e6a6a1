package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/polydata/esports-collector/internal/ratelimit"
)

// PriceHistory fetches the price history for a CLOB token between startTs
// and endTs (Unix seconds) at the given interval ("1m", "1h", "6h", "1d",
// "1w", "max"). Points with a missing timestamp or an out-of-range price
// are dropped.
func (c *Client) PriceHistory(ctx context.Context, tokenID string, startTs, endTs int64, interval string) ([]PriceHistoryPoint, error) {
	q := url.Values{}
	q.Set("market", tokenID)
	q.Set("interval", interval)
	q.Set("startTs", strconv.FormatInt(startTs, 10))
	q.Set("endTs", strconv.FormatInt(endTs, 10))

	body, err := c.doWithRetry(ctx, ratelimit.ClassClobPrices, c.clobURL, "/prices-history", q)
	if err != nil {
		return nil, fmt.Errorf("price history for %s: %w", tokenID, err)
	}

	var points []PriceHistoryPoint
	var wrapped struct {
		History []PriceHistoryPoint `json:"history"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		points = wrapped.History
	} else if err := json.Unmarshal(body, &points); err != nil {
		return nil, fmt.Errorf("unmarshal price history: %w", err)
	}

	valid := points[:0]
	for _, p := range points {
		if p.Time() == 0 {
			continue
		}
		if v := p.Value(); v < 0 || v > 1 {
			continue
		}
		valid = append(valid, p)
	}

	return valid, nil
}

// Orderbook fetches the current book for a CLOB token.
func (c *Client) Orderbook(ctx context.Context, tokenID string) (*BookResponse, error) {
	q := url.Values{}
	q.Set("token_id", tokenID)

	var resp BookResponse
	if err := c.get(ctx, ratelimit.ClassClobBook, c.clobURL, "/book", q, &resp); err != nil {
		return nil, fmt.Errorf("orderbook for %s: %w", tokenID, err)
	}

	return &resp, nil
}
