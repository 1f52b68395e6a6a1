// Package ratelimit provides shared admission control for all remote calls.
//
// The remote services meter requests per endpoint class over a trailing
// 10-second window. The limiter tracks admissions per class and blocks
// callers until admission is possible without exceeding the class quota.
// Explicit rate-limit responses (429) arm an exponential penalty that
// delays all subsequent admissions for the class until a success resets it.
package ratelimit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jpillora/backoff"
)

// Endpoint classes. Each maps to a distinct quota on the remote side.
const (
	ClassGammaMarkets = "gamma_markets"
	ClassGammaEvents  = "gamma_events"
	ClassGammaSearch  = "gamma_search"
	ClassGammaTags    = "gamma_tags"
	ClassClobPrices   = "clob_prices"
	ClassClobBook     = "clob_book"
	ClassDataTrades   = "data_trades"
	ClassDataOI       = "data_oi"
)

// DefaultWindow is the trailing window the remote quotas are metered over.
const DefaultWindow = 10 * time.Second

// DefaultQuotas returns the documented per-class request quotas per window.
func DefaultQuotas() map[string]int {
	return map[string]int{
		ClassGammaMarkets: 300,
		ClassGammaEvents:  500,
		ClassGammaSearch:  350,
		ClassGammaTags:    200,
		ClassClobPrices:   1500,
		ClassClobBook:     1500,
		ClassDataTrades:   200,
		ClassDataOI:       200,
	}
}

// Config holds limiter settings.
type Config struct {
	Window     time.Duration  // Trailing window quotas are metered over
	Quotas     map[string]int // Per-class admissions per window
	PenaltyMin time.Duration  // First penalty delay after a 429
	PenaltyMax time.Duration  // Penalty delay cap
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Window:     DefaultWindow,
		Quotas:     DefaultQuotas(),
		PenaltyMin: 1 * time.Second,
		PenaltyMax: 60 * time.Second,
	}
}

// classState tracks one endpoint class.
type classState struct {
	quota        int
	admits       []time.Time // Admission times within the trailing window
	penalty      *backoff.Backoff
	penaltyUntil time.Time
}

// Limiter is the shared admission gate. One instance is passed to every
// caller that talks to the remote services; it is safe for concurrent use.
type Limiter struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	classes map[string]*classState
}

// New creates a Limiter.
func New(cfg Config, logger *slog.Logger) *Limiter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = DefaultWindow
	}
	if cfg.PenaltyMin <= 0 {
		cfg.PenaltyMin = 1 * time.Second
	}
	if cfg.PenaltyMax <= 0 {
		cfg.PenaltyMax = 60 * time.Second
	}

	l := &Limiter{
		cfg:     cfg,
		logger:  logger,
		classes: make(map[string]*classState, len(cfg.Quotas)),
	}
	for class, quota := range cfg.Quotas {
		l.classes[class] = l.newClassState(quota)
	}
	return l
}

func (l *Limiter) newClassState(quota int) *classState {
	return &classState{
		quota: quota,
		penalty: &backoff.Backoff{
			Min:    l.cfg.PenaltyMin,
			Max:    l.cfg.PenaltyMax,
			Factor: 2,
			Jitter: true,
		},
	}
}

// Acquire blocks until a call in the given class can be admitted without
// exceeding the class quota over the trailing window. Unknown classes are
// admitted immediately. The wait observes ctx.
func (l *Limiter) Acquire(ctx context.Context, class string) error {
	for {
		wait, ok := l.tryAdmit(class)
		if ok {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// tryAdmit admits immediately when possible; otherwise returns how long the
// caller should wait before trying again.
func (l *Limiter) tryAdmit(class string) (wait time.Duration, ok bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cs, known := l.classes[class]
	if !known {
		return 0, true
	}

	now := time.Now()

	if until := cs.penaltyUntil; until.After(now) {
		return until.Sub(now), false
	}

	// A class can exist only for penalty tracking; no window quota then.
	if cs.quota <= 0 {
		return 0, true
	}

	// Prune admissions that fell out of the trailing window.
	cutoff := now.Add(-l.cfg.Window)
	keep := cs.admits[:0]
	for _, t := range cs.admits {
		if t.After(cutoff) {
			keep = append(keep, t)
		}
	}
	cs.admits = keep

	if len(cs.admits) >= cs.quota {
		oldest := cs.admits[0]
		wait := oldest.Add(l.cfg.Window).Sub(now) + 10*time.Millisecond
		if wait < time.Millisecond {
			wait = time.Millisecond
		}
		l.logger.Debug("rate limit window full, waiting",
			"class", class,
			"wait", wait,
		)
		return wait, false
	}

	cs.admits = append(cs.admits, now)
	return 0, true
}

// ReportRateLimited records an explicit rate-limit response for the class.
// The next penalty delay doubles (with jitter) up to the cap, and admission
// is suspended for its duration.
func (l *Limiter) ReportRateLimited(class string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	cs, ok := l.classes[class]
	if !ok {
		cs = l.newClassState(0)
		l.classes[class] = cs
	}

	delay := cs.penalty.Duration()
	cs.penaltyUntil = time.Now().Add(delay)

	l.logger.Warn("rate limited by remote, backing off",
		"class", class,
		"delay", delay,
	)
}

// ReportSuccess resets the penalty backoff for the class.
func (l *Limiter) ReportSuccess(class string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cs, ok := l.classes[class]; ok {
		cs.penalty.Reset()
		cs.penaltyUntil = time.Time{}
	}
}

// Admitted returns the number of admissions currently inside the trailing
// window for the class.
func (l *Limiter) Admitted(class string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cs, ok := l.classes[class]
	if !ok {
		return 0
	}

	cutoff := time.Now().Add(-l.cfg.Window)
	n := 0
	for _, t := range cs.admits {
		if t.After(cutoff) {
			n++
		}
	}
	return n
}
