package model

// -----------------------------------------------------------------------------
// Relational Types
// -----------------------------------------------------------------------------

// Market represents a discovered prediction market for an esports event.
// Identity fields (MarketID, ConditionID, token IDs) are immutable once
// discovered; descriptive fields may be refreshed on rediscovery.
type Market struct {
	MarketID     string   // Primary key (gamma market id)
	ConditionID  string   // Groups both outcome tokens; used for trade history
	YesTokenID   string   // CLOB token id for the YES outcome
	NoTokenID    string   // CLOB token id for the NO outcome
	Question     string   // Market question text
	Outcomes     []string // Outcome labels (usually two)
	StartDate    string   // Event start (ISO 8601, as reported)
	EndDate      string   // Event end (ISO 8601, as reported)
	EventID      string   // Parent event id
	Game         string   // Game key the market matched ("cod", "cs2", ...)
	DiscoveredAt int64    // First discovery time (s since epoch)
}

// TokenIDs returns the market's non-empty outcome token ids, YES first.
func (m Market) TokenIDs() []string {
	ids := make([]string, 0, 2)
	if m.YesTokenID != "" {
		ids = append(ids, m.YesTokenID)
	}
	if m.NoTokenID != "" {
		ids = append(ids, m.NoTokenID)
	}
	return ids
}

// -----------------------------------------------------------------------------
// Time-Series Types
// -----------------------------------------------------------------------------

// Trade sides as reported by the data API.
const (
	SideBuy  = "BUY"
	SideSell = "SELL"
)

// PricePoint is one historical price observation for a market's YES token.
// Unique on (MarketID, Timestamp).
type PricePoint struct {
	MarketID  string
	Timestamp int64   // s since epoch
	Price     float64 // [0, 1]
}

// Trade is one executed trade. Unique on TradeID (externally assigned).
type Trade struct {
	MarketID  string
	TradeID   string
	Timestamp int64   // s since epoch
	Price     float64 // [0, 1]
	Size      float64 // contracts, >= 0
	Side      string  // SideBuy or SideSell
	Outcome   string  // Outcome label or asset id
}

// RealtimeTick is one normalized price update from the streaming channel.
// Append-only; zero values mean the field was absent from the message.
type RealtimeTick struct {
	TokenID   string
	Timestamp int64 // ms since epoch
	Bid       float64
	Ask       float64
	LastPrice float64
}

// PriceLevel is a single (price, size) level in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a point-in-time view of one token's book.
// Best prices, spread and mid are nil when the corresponding side is absent:
// an empty side is unknown, never zero.
type OrderbookSnapshot struct {
	MarketID     string
	TokenID      string
	Timestamp    int64 // ms since epoch
	BestBidPrice *float64
	BestBidSize  *float64
	BestAskPrice *float64
	BestAskSize  *float64
	Spread       *float64 // BestAsk - BestBid, both sides present only
	MidPrice     *float64 // (BestBid + BestAsk) / 2, both sides present only
	BidDepth     []PriceLevel
	AskDepth     []PriceLevel
}

// HasBothSides reports whether the snapshot captured a two-sided book.
func (s OrderbookSnapshot) HasBothSides() bool {
	return s.BestBidPrice != nil && s.BestAskPrice != nil
}

// OpenInterestPoint is one open-interest sample for a market condition.
type OpenInterestPoint struct {
	MarketID     string
	ConditionID  string
	Timestamp    int64 // ms since epoch
	OpenInterest float64
}
