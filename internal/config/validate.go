package config

import (
	"errors"
	"fmt"

	"github.com/polydata/esports-collector/internal/storage"
)

// Validate checks that all required fields are set and values are valid.
func (c *CollectorConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := validateDB(&c.Database.Postgres, "database.postgres"); err != nil {
		return err
	}

	if c.Limiter.Window <= 0 {
		return errors.New("limiter.window must be > 0")
	}
	for class, quota := range c.Limiter.Quotas {
		if quota < 1 {
			return fmt.Errorf("limiter.quotas[%s] must be >= 1, got %d", class, quota)
		}
	}

	if c.Discovery.Interval <= 0 {
		return errors.New("discovery.interval must be > 0")
	}
	if len(c.Discovery.Games) == 0 {
		return errors.New("discovery.games must name at least one game")
	}

	if c.Historical.WindowDays < 1 {
		return errors.New("historical.window_days must be >= 1")
	}
	if c.Historical.TradePageSize < 1 {
		return errors.New("historical.trade_page_size must be >= 1")
	}
	if c.Historical.MaxTradePages < 1 {
		return errors.New("historical.max_trade_pages must be >= 1")
	}

	if c.Orderbook.Depth < 1 {
		return errors.New("orderbook.depth must be >= 1")
	}
	if c.Orderbook.Concurrency < 1 {
		return errors.New("orderbook.concurrency must be >= 1")
	}

	if c.Stream.URL == "" {
		return errors.New("stream.url is required")
	}
	if c.Stream.SubscribeBatchSize < 1 {
		return errors.New("stream.subscribe_batch_size must be >= 1")
	}
	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return errors.New("stream.reconnect_max_delay must be >= stream.reconnect_base_delay")
	}

	if c.Health.Port < 1 || c.Health.Port > 65535 {
		return fmt.Errorf("health.port must be between 1 and 65535, got %d", c.Health.Port)
	}

	return nil
}

func validateDB(db *storage.DBConfig, prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns must be <= max_conns", prefix)
	}
	return nil
}
