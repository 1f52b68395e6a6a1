package stream

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"

	"github.com/polydata/esports-collector/internal/model"
)

// TokenSource provides the current token set to subscribe to. It is read
// again on every (re)connect, so tokens discovered mid-outage are picked
// up by the next subscribe.
type TokenSource interface {
	ListKnownTokens(ctx context.Context) ([]string, error)
}

// TickStore receives normalized ticks.
type TickStore interface {
	InsertRealtimeTick(ctx context.Context, t model.RealtimeTick) error
}

// Config holds streamer settings.
type Config struct {
	URL                string
	SubscribeBatchSize int
	ReconnectBaseDelay time.Duration
	ReconnectMaxDelay  time.Duration
	ReadTimeout        time.Duration
	DedupTTL           time.Duration
	DedupMaxSize       int

	// OrderbookInterval, when set, fires the OnOrderbook callback on its
	// own goroutine at this cadence while the streamer runs.
	OrderbookInterval time.Duration
}

// DefaultConfig returns streamer defaults.
func DefaultConfig() Config {
	return Config{
		SubscribeBatchSize: 50,
		ReconnectBaseDelay: 1 * time.Second,
		ReconnectMaxDelay:  60 * time.Second,
		ReadTimeout:        30 * time.Second,
		DedupTTL:           1 * time.Second,
		DedupMaxSize:       10000,
	}
}

// Streamer maintains the market-channel subscription across reconnects.
type Streamer struct {
	cfg    Config
	dialer Dialer
	tokens TokenSource
	store  TickStore
	logger *slog.Logger

	// OnOrderbook, when non-nil, is the companion poll trigger.
	OnOrderbook func(ctx context.Context)

	state atomic.Int32
	dedup *dedupCache
	retry *backoff.Backoff
	now   func() time.Time

	// connMu guards the live connection and the token set subscribed on it.
	connMu     sync.Mutex
	conn       Conn
	subscribed map[string]struct{}

	messages   atomic.Int64
	ticks      atomic.Int64
	dropped    atomic.Int64
	duplicates atomic.Int64
	reconnects atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a Streamer.
func New(cfg Config, dialer Dialer, tokens TokenSource, store TickStore, logger *slog.Logger) *Streamer {
	def := DefaultConfig()
	if cfg.SubscribeBatchSize == 0 {
		cfg.SubscribeBatchSize = def.SubscribeBatchSize
	}
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = def.ReconnectBaseDelay
	}
	if cfg.ReconnectMaxDelay == 0 {
		cfg.ReconnectMaxDelay = def.ReconnectMaxDelay
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.DedupTTL == 0 {
		cfg.DedupTTL = def.DedupTTL
	}
	if cfg.DedupMaxSize == 0 {
		cfg.DedupMaxSize = def.DedupMaxSize
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Streamer{
		cfg:    cfg,
		dialer: dialer,
		tokens: tokens,
		store:  store,
		logger: logger.With("component", "stream"),
		dedup:  newDedupCache(cfg.DedupTTL, cfg.DedupMaxSize),
		retry: &backoff.Backoff{
			Min:    cfg.ReconnectBaseDelay,
			Max:    cfg.ReconnectMaxDelay,
			Factor: 2,
			Jitter: true,
		},
		now: time.Now,
	}
}

// State returns the current lifecycle state.
func (s *Streamer) State() State {
	return State(s.state.Load())
}

// Snapshot returns cumulative counters.
func (s *Streamer) Snapshot() Stats {
	return Stats{
		Messages:   s.messages.Load(),
		Ticks:      s.ticks.Load(),
		Dropped:    s.dropped.Load(),
		Duplicates: s.duplicates.Load(),
		Reconnects: s.reconnects.Load(),
	}
}

// Start runs the stream loop in the background.
func (s *Streamer) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.Run(s.ctx)
	}()

	s.logger.Info("realtime streamer started", "url", s.cfg.URL)
	return nil
}

// Stop cancels the loop and waits for it to exit.
func (s *Streamer) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		stats := s.Snapshot()
		s.logger.Info("realtime streamer stopped",
			"messages", stats.Messages,
			"ticks", stats.Ticks,
			"duplicates", stats.Duplicates,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the connect/subscribe/read cycle until ctx is canceled.
// Every failure path funnels into the reconnect backoff; the backoff
// resets after each successful subscribe.
func (s *Streamer) Run(ctx context.Context) {
	defer s.state.Store(int32(StateStopped))

	if s.OnOrderbook != nil && s.cfg.OrderbookInterval > 0 {
		s.wg.Add(1)
		go s.orderbookLoop(ctx)
	}

	for {
		if ctx.Err() != nil {
			return
		}

		err := s.streamOnce(ctx)
		if ctx.Err() != nil {
			return
		}

		s.state.Store(int32(StateReconnecting))
		s.reconnects.Add(1)
		wait := s.retry.Duration()
		if err != nil {
			s.logger.Warn("stream disconnected, reconnecting",
				"error", err, "wait", wait)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// streamOnce runs one full connection lifetime: dial, subscribe, read
// until the connection dies or ctx is canceled.
func (s *Streamer) streamOnce(ctx context.Context) error {
	s.state.Store(int32(StateConnecting))

	conn, err := s.dialer.Dial(ctx, s.cfg.URL)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	s.conn = conn
	s.subscribed = make(map[string]struct{})
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		if s.conn == conn {
			s.conn = nil
		}
		s.connMu.Unlock()
	}()

	// Unblock ReadMessage when ctx is canceled.
	watchDone := make(chan struct{})
	defer close(watchDone)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-watchDone:
			conn.Close()
		}
	}()

	if err := s.subscribe(ctx, conn); err != nil {
		return err
	}
	s.state.Store(int32(StateSubscribed))
	s.retry.Reset()

	return s.readLoop(ctx, conn)
}

// subscribe reads the current token set and subscribes in batches.
func (s *Streamer) subscribe(ctx context.Context, conn Conn) error {
	tokens, err := s.tokens.ListKnownTokens(ctx)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		s.logger.Warn("no tokens to subscribe to")
	}

	if err := s.writeSubscribe(conn, tokens); err != nil {
		return err
	}

	s.logger.Info("subscribed to market channel", "tokens", len(tokens))
	return nil
}

// writeSubscribe sends one subscribe frame per batch and records the tokens
// as subscribed on the connection.
func (s *Streamer) writeSubscribe(conn Conn, tokens []string) error {
	batch := s.cfg.SubscribeBatchSize
	for i := 0; i < len(tokens); i += batch {
		end := i + batch
		if end > len(tokens) {
			end = len(tokens)
		}
		msg := subscribeMessage{AssetsIDs: tokens[i:end], Type: "market"}
		if err := conn.WriteJSON(msg); err != nil {
			return err
		}
		s.connMu.Lock()
		for _, tok := range tokens[i:end] {
			s.subscribed[tok] = struct{}{}
		}
		s.connMu.Unlock()
	}
	return nil
}

// Resubscribe subscribes any tokens the source has gained since the live
// connection last subscribed, without dropping it. Without a live
// connection it is a no-op: the next connect reads the token source anyway.
func (s *Streamer) Resubscribe(ctx context.Context) error {
	s.connMu.Lock()
	conn := s.conn
	s.connMu.Unlock()
	if conn == nil {
		return nil
	}

	tokens, err := s.tokens.ListKnownTokens(ctx)
	if err != nil {
		return err
	}

	s.connMu.Lock()
	var delta []string
	for _, tok := range tokens {
		if _, ok := s.subscribed[tok]; !ok {
			delta = append(delta, tok)
		}
	}
	s.connMu.Unlock()
	if len(delta) == 0 {
		return nil
	}

	if err := s.writeSubscribe(conn, delta); err != nil {
		return err
	}
	s.logger.Info("subscribed new tokens on live connection", "tokens", len(delta))
	return nil
}

// readLoop consumes frames until the connection errors out.
func (s *Streamer) readLoop(ctx context.Context, conn Conn) error {
	for {
		if s.cfg.ReadTimeout > 0 {
			conn.SetReadDeadline(s.now().Add(s.cfg.ReadTimeout))
		}

		data, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		s.state.Store(int32(StateStreaming))
		s.messages.Add(1)

		ticks := parseMessage(data, s.now().UnixMilli())
		if len(ticks) == 0 {
			s.dropped.Add(1)
			continue
		}

		for _, tick := range ticks {
			if s.dedup.isDuplicate(tick.TokenID, tick.LastPrice, tick.Bid, tick.Ask) {
				s.duplicates.Add(1)
				continue
			}
			if err := s.store.InsertRealtimeTick(ctx, tick); err != nil {
				s.logger.Error("failed to store tick",
					"token_id", tick.TokenID, "error", err)
				continue
			}
			if n := s.ticks.Add(1); n%1000 == 0 {
				s.logger.Debug("tick throughput",
					"ticks", n, "duplicates", s.duplicates.Load())
			}
		}
	}
}

// orderbookLoop fires the companion poll trigger at a fixed cadence,
// independent of the read loop.
func (s *Streamer) orderbookLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.OrderbookInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.OnOrderbook(ctx)
		}
	}
}
