package api

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// FlexFloat decodes a JSON number, numeric string, or null. Unparseable
// values decode to zero rather than failing the enclosing payload; upstream
// responses mix representations freely.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*f = 0
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			*f = 0
			return nil
		}
		*f = FlexFloat(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*f = 0
		return nil
	}
	*f = FlexFloat(v)
	return nil
}

// FlexTimestamp decodes a Unix timestamp given as a JSON number, a numeric
// string, or an ISO 8601 string. Unparseable values decode to zero.
type FlexTimestamp int64

func (t *FlexTimestamp) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*t = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			*t = 0
			return nil
		}
		s = strings.TrimSpace(s)
		if ts, err := time.Parse(time.RFC3339, strings.Replace(s, "Z", "+00:00", 1)); err == nil {
			*t = FlexTimestamp(ts.Unix())
			return nil
		}
		if ts, err := time.Parse(time.RFC3339, s); err == nil {
			*t = FlexTimestamp(ts.Unix())
			return nil
		}
		if v, err := strconv.ParseFloat(s, 64); err == nil {
			*t = FlexTimestamp(int64(v))
			return nil
		}
		*t = 0
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		*t = 0
		return nil
	}
	*t = FlexTimestamp(int64(v))
	return nil
}

// SearchResponse from GET /public-search.
type SearchResponse struct {
	Events []GammaEvent `json:"events"`
}

// GammaEvent is an event descriptor from the gamma API.
type GammaEvent struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Closed      bool          `json:"closed"`
	Markets     []GammaMarket `json:"markets"`
}

// GammaMarket is a market descriptor from the gamma API. Outcomes and
// ClobTokenIDs arrive as JSON-encoded string lists inside strings.
type GammaMarket struct {
	ID             string `json:"id"`
	Question       string `json:"question"`
	Description    string `json:"description"`
	GroupItemTitle string `json:"groupItemTitle"`
	ConditionID    string `json:"conditionId"`
	Outcomes       string `json:"outcomes"`
	ClobTokenIDs   string `json:"clobTokenIds"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	Closed         bool   `json:"closed"`
}

// Tag is a gamma tag descriptor.
type Tag struct {
	ID    json.Number `json:"id"`
	Label string      `json:"label"`
	Name  string      `json:"name"`
	Slug  string      `json:"slug"`
}

// DisplayLabel returns the tag's label, falling back to its name.
func (t Tag) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return t.Name
}

// PriceHistoryPoint is one (timestamp, price) pair from /prices-history.
// The service has shipped both short and long key names.
type PriceHistoryPoint struct {
	T         FlexTimestamp `json:"t"`
	Timestamp FlexTimestamp `json:"timestamp"`
	P         FlexFloat     `json:"p"`
	Price     FlexFloat     `json:"price"`
}

// Time returns the point's Unix timestamp in seconds.
func (p PriceHistoryPoint) Time() int64 {
	if p.T != 0 {
		return int64(p.T)
	}
	return int64(p.Timestamp)
}

// Value returns the point's price.
func (p PriceHistoryPoint) Value() float64 {
	if p.P != 0 {
		return float64(p.P)
	}
	return float64(p.Price)
}

// BookLevel is one (price, size) level from /book. Both arrive as strings.
type BookLevel struct {
	Price FlexFloat `json:"price"`
	Size  FlexFloat `json:"size"`
}

// BookResponse from GET /book.
type BookResponse struct {
	Market  string      `json:"market"`
	AssetID string      `json:"asset_id"`
	Bids    []BookLevel `json:"bids"`
	Asks    []BookLevel `json:"asks"`
}

// DataTrade is one trade record from the data API.
type DataTrade struct {
	ID        string        `json:"id"`
	TradeID   string        `json:"tradeId"`
	Timestamp FlexTimestamp `json:"timestamp"`
	MatchTime FlexTimestamp `json:"matchTime"`
	CreatedAt FlexTimestamp `json:"createdAt"`
	Price     FlexFloat     `json:"price"`
	Size      FlexFloat     `json:"size"`
	Amount    FlexFloat     `json:"amount"`
	Side      string        `json:"side"`
	Outcome   string        `json:"outcome"`
	Asset     string        `json:"asset"`
}

// Time returns the trade's Unix timestamp in seconds, trying the fields the
// service has used over time.
func (t DataTrade) Time() int64 {
	if t.Timestamp != 0 {
		return int64(t.Timestamp)
	}
	if t.MatchTime != 0 {
		return int64(t.MatchTime)
	}
	return int64(t.CreatedAt)
}
