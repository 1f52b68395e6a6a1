package config

import (
	"time"

	"github.com/polydata/esports-collector/internal/storage"
)

// CollectorConfig is the root configuration for a collector instance.
type CollectorConfig struct {
	Instance   InstanceConfig   `yaml:"instance"`
	API        APIConfig        `yaml:"api"`
	Database   DatabaseConfig   `yaml:"database"`
	Limiter    LimiterConfig    `yaml:"limiter"`
	Discovery  DiscoveryConfig  `yaml:"discovery"`
	Historical HistoricalConfig `yaml:"historical"`
	Orderbook  OrderbookConfig  `yaml:"orderbook"`
	Stream     StreamConfig     `yaml:"stream"`
	Health     HealthConfig     `yaml:"health"`
}

// InstanceConfig identifies this collector.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// APIConfig holds Polymarket REST API settings.
type APIConfig struct {
	GammaURL     string        `yaml:"gamma_url"`
	ClobURL      string        `yaml:"clob_url"`
	DataURL      string        `yaml:"data_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DatabaseConfig holds the PostgreSQL connection for collected data.
type DatabaseConfig struct {
	Postgres storage.DBConfig `yaml:"postgres"`
}

// LimiterConfig holds shared rate limiter settings. Quotas are per request
// class over a sliding window; classes absent from the map are unlimited.
type LimiterConfig struct {
	Window time.Duration  `yaml:"window"`
	Quotas map[string]int `yaml:"quotas"`
}

// DiscoveryConfig holds market discovery settings.
type DiscoveryConfig struct {
	Interval time.Duration `yaml:"interval"`
	Games    []string      `yaml:"games"`
}

// HistoricalConfig holds backfill settings.
type HistoricalConfig struct {
	WindowDays    int    `yaml:"window_days"`
	PriceInterval string `yaml:"price_interval"`
	TradePageSize int    `yaml:"trade_page_size"`
	MaxTradePages int    `yaml:"max_trade_pages"`
}

// OrderbookConfig holds orderbook snapshot poller settings.
type OrderbookConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Depth       int           `yaml:"depth"`
	Concurrency int           `yaml:"concurrency"`
}

// StreamConfig holds realtime WebSocket settings.
type StreamConfig struct {
	URL                string        `yaml:"url"`
	SubscribeBatchSize int           `yaml:"subscribe_batch_size"`
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	DedupTTL           time.Duration `yaml:"dedup_ttl"`
}

// HealthConfig holds the health endpoint settings for continuous mode.
type HealthConfig struct {
	Port int `yaml:"port"`
}
