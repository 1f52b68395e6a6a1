package config

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/ratelimit"
	"github.com/polydata/esports-collector/internal/storage"
)

// Default values for optional configuration fields.
const (
	DefaultAPITimeout         = 30 * time.Second
	DefaultMaxRetries         = 5
	DefaultDBPort             = 5432
	DefaultDBSSLMode          = "prefer"
	DefaultMaxConns           = 10
	DefaultMinConns           = 2
	DefaultDiscoveryInterval  = 30 * time.Minute
	DefaultHistoricalWindow   = 30 // days
	DefaultPriceInterval      = "1h"
	DefaultMaxTradePages      = 100
	DefaultRetryBackoff       = 1 * time.Second
	DefaultOrderbookInterval  = 60 * time.Second
	DefaultOrderbookDepth     = 5
	DefaultPollConcurrency    = 10
	DefaultWSURL              = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultSubscribeBatchSize = 50
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 60 * time.Second
	DefaultDedupTTL           = 1 * time.Second
	DefaultHealthPort         = 8080
)

// DefaultGames selects which game term sets discovery runs with.
var DefaultGames = []string{"cod", "cs2"}

func (c *CollectorConfig) applyDefaults() {
	// Instance defaults
	if c.Instance.ID == "" {
		c.Instance.ID = fmt.Sprintf("collector-%s", uuid.NewString()[:8])
	}

	// API defaults
	if c.API.GammaURL == "" {
		c.API.GammaURL = api.DefaultGammaURL
	}
	if c.API.ClobURL == "" {
		c.API.ClobURL = api.DefaultClobURL
	}
	if c.API.DataURL == "" {
		c.API.DataURL = api.DefaultDataURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Database defaults
	applyDBDefaults(&c.Database.Postgres)

	// Limiter defaults
	if c.Limiter.Window == 0 {
		c.Limiter.Window = ratelimit.DefaultWindow
	}
	if c.Limiter.Quotas == nil {
		c.Limiter.Quotas = ratelimit.DefaultQuotas()
	}

	// Discovery defaults
	if c.Discovery.Interval == 0 {
		c.Discovery.Interval = DefaultDiscoveryInterval
	}
	if len(c.Discovery.Games) == 0 {
		c.Discovery.Games = append([]string(nil), DefaultGames...)
	}

	// Historical defaults
	if c.Historical.WindowDays == 0 {
		c.Historical.WindowDays = DefaultHistoricalWindow
	}
	if c.Historical.PriceInterval == "" {
		c.Historical.PriceInterval = DefaultPriceInterval
	}
	if c.Historical.TradePageSize == 0 {
		c.Historical.TradePageSize = api.MaxTradePageSize
	}
	if c.Historical.MaxTradePages == 0 {
		c.Historical.MaxTradePages = DefaultMaxTradePages
	}

	// Orderbook defaults
	if c.Orderbook.Interval == 0 {
		c.Orderbook.Interval = DefaultOrderbookInterval
	}
	if c.Orderbook.Depth == 0 {
		c.Orderbook.Depth = DefaultOrderbookDepth
	}
	if c.Orderbook.Concurrency == 0 {
		c.Orderbook.Concurrency = DefaultPollConcurrency
	}

	// Stream defaults
	if c.Stream.URL == "" {
		c.Stream.URL = DefaultWSURL
	}
	if c.Stream.SubscribeBatchSize == 0 {
		c.Stream.SubscribeBatchSize = DefaultSubscribeBatchSize
	}
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.DedupTTL == 0 {
		c.Stream.DedupTTL = DefaultDedupTTL
	}

	// Health defaults
	if c.Health.Port == 0 {
		c.Health.Port = DefaultHealthPort
	}
}

func applyDBDefaults(db *storage.DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
