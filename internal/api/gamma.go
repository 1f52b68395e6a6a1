package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/polydata/esports-collector/internal/ratelimit"
)

// searchPageSize is the maximum page size the public-search endpoint honors.
const searchPageSize = 100

// PublicSearch queries the gamma public-search endpoint. Pages are
// 1-indexed; the endpoint returns events with their nested markets.
func (c *Client) PublicSearch(ctx context.Context, query string, page int) (*SearchResponse, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("_limit", strconv.Itoa(searchPageSize))
	q.Set("limit_per_type", strconv.Itoa(searchPageSize))
	if page > 1 {
		q.Set("page", strconv.Itoa(page))
	}

	var resp SearchResponse
	if err := c.get(ctx, ratelimit.ClassGammaSearch, c.gammaURL, "/public-search", q, &resp); err != nil {
		return nil, fmt.Errorf("public search %q: %w", query, err)
	}

	return &resp, nil
}

// Tags fetches all gamma tags. The endpoint has returned both a bare list
// and an object wrapping one.
func (c *Client) Tags(ctx context.Context) ([]Tag, error) {
	body, err := c.doWithRetry(ctx, ratelimit.ClassGammaTags, c.gammaURL, "/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}

	var tags []Tag
	if err := json.Unmarshal(body, &tags); err == nil {
		return tags, nil
	}

	var wrapped struct {
		Tags []Tag `json:"tags"`
		Data []Tag `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	if len(wrapped.Tags) > 0 {
		return wrapped.Tags, nil
	}
	return wrapped.Data, nil
}

// EventsByTag fetches open events carrying the given tag id.
func (c *Client) EventsByTag(ctx context.Context, tagID string, limit int) ([]GammaEvent, error) {
	q := url.Values{}
	q.Set("tag_id", tagID)
	q.Set("_limit", strconv.Itoa(limit))
	q.Set("closed", "false")

	body, err := c.doWithRetry(ctx, ratelimit.ClassGammaEvents, c.gammaURL, "/events", q)
	if err != nil {
		return nil, fmt.Errorf("get events for tag %s: %w", tagID, err)
	}

	var events []GammaEvent
	if err := json.Unmarshal(body, &events); err == nil {
		return events, nil
	}

	var wrapped struct {
		Events []GammaEvent `json:"events"`
		Data   []GammaEvent `json:"data"`
	}
	if err := json.Unmarshal(body, &wrapped); err != nil {
		return nil, fmt.Errorf("unmarshal events: %w", err)
	}
	if len(wrapped.Events) > 0 {
		return wrapped.Events, nil
	}
	return wrapped.Data, nil
}
