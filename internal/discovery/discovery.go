package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/polydata/esports-collector/internal/api"
	"github.com/polydata/esports-collector/internal/model"
)

// GammaSource is the slice of the gamma API discovery needs.
type GammaSource interface {
	PublicSearch(ctx context.Context, query string, page int) (*api.SearchResponse, error)
	Tags(ctx context.Context) ([]api.Tag, error)
	EventsByTag(ctx context.Context, tagID string, limit int) ([]api.GammaEvent, error)
}

// MarketStore is the slice of the store discovery writes to.
type MarketStore interface {
	UpsertMarket(ctx context.Context, m model.Market) (bool, error)
}

// Config holds discovery settings.
type Config struct {
	Games          []string
	IncludeClosed  bool
	MaxSearchPages int
	EventLimit     int
}

// DefaultConfig returns discovery defaults.
func DefaultConfig() Config {
	return Config{
		Games:          SupportedGames(),
		MaxSearchPages: 10,
		EventLimit:     100,
	}
}

// Result summarizes one discovery run.
type Result struct {
	Found int // markets that passed relevance checks
	New   int // markets not previously known
	Known int // markets already in the store

	// NewMarkets are the markets created this run, in discovery order.
	// The orchestrator backfills exactly these after a periodic cycle.
	NewMarkets []model.Market
}

// Discoverer finds game markets and saves them to the store.
type Discoverer struct {
	gamma  GammaSource
	store  MarketStore
	cfg    Config
	logger *slog.Logger
}

// New creates a Discoverer. Game keys are validated up front.
func New(gamma GammaSource, store MarketStore, cfg Config, logger *slog.Logger) (*Discoverer, error) {
	if cfg.MaxSearchPages == 0 {
		cfg.MaxSearchPages = DefaultConfig().MaxSearchPages
	}
	if cfg.EventLimit == 0 {
		cfg.EventLimit = DefaultConfig().EventLimit
	}
	if len(cfg.Games) == 0 {
		cfg.Games = SupportedGames()
	}
	for _, g := range cfg.Games {
		if _, err := GameConfig(g); err != nil {
			return nil, err
		}
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Discoverer{
		gamma:  gamma,
		store:  store,
		cfg:    cfg,
		logger: logger.With("component", "discovery"),
	}, nil
}

// Run executes one full discovery cycle: a search pass per game, then a
// tag pass across all configured games. Individual term or tag failures
// are logged and skipped; Run only fails when the context is canceled.
func (d *Discoverer) Run(ctx context.Context) (Result, error) {
	start := time.Now()
	res := Result{}
	seen := make(map[string]struct{})

	for _, game := range d.cfg.Games {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := d.searchPass(ctx, game, seen, &res); err != nil {
			return res, err
		}
	}

	if err := d.tagPass(ctx, seen, &res); err != nil {
		return res, err
	}

	d.logger.Info("discovery cycle complete",
		"found", res.Found,
		"new", res.New,
		"known", res.Known,
		"duration", time.Since(start),
	)
	return res, nil
}

// searchPass runs every search term for one game through public-search,
// paginating until a page yields nothing new.
func (d *Discoverer) searchPass(ctx context.Context, game string, seen map[string]struct{}, res *Result) error {
	terms, err := GameConfig(game)
	if err != nil {
		return err
	}

	d.logger.Info("starting search discovery", "game", terms.DisplayName)

	for _, term := range terms.SearchTerms {
		for page := 1; page <= d.cfg.MaxSearchPages; page++ {
			if err := ctx.Err(); err != nil {
				return err
			}

			resp, err := d.gamma.PublicSearch(ctx, term, page)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				d.logger.Error("search failed, skipping term",
					"game", game, "term", term, "page", page, "err", err)
				break
			}
			if len(resp.Events) == 0 {
				break
			}

			foundNew := false
			for _, ev := range resp.Events {
				n, err := d.collectEvent(ctx, ev, []string{game}, seen, res)
				if err != nil {
					return err
				}
				if n > 0 {
					foundNew = true
				}
			}

			// Later pages repeat earlier results once the tail is reached.
			if !foundNew && page > 1 {
				break
			}
		}
	}

	return nil
}

// tagPass lists esports-adjacent tags and walks their open events,
// matching each market against every configured game.
func (d *Discoverer) tagPass(ctx context.Context, seen map[string]struct{}, res *Result) error {
	tags, err := d.gamma.Tags(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		d.logger.Error("tag listing failed, skipping tag pass", "err", err)
		return nil
	}

	labels := combinedTagLabels(d.cfg.Games)
	var matched []api.Tag
	for _, t := range tags {
		if matchesTag(t, labels) {
			matched = append(matched, t)
		}
	}
	d.logger.Info("starting tag discovery", "tags_total", len(tags), "tags_matched", len(matched))

	for _, tag := range matched {
		if err := ctx.Err(); err != nil {
			return err
		}
		tagID := tag.ID.String()
		if tagID == "" {
			tagID = tag.Slug
		}
		if tagID == "" {
			continue
		}

		events, err := d.gamma.EventsByTag(ctx, tagID, d.cfg.EventLimit)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d.logger.Error("tag events fetch failed, skipping tag",
				"tag", tag.DisplayLabel(), "err", err)
			continue
		}

		for _, ev := range events {
			if _, err := d.collectEvent(ctx, ev, d.cfg.Games, seen, res); err != nil {
				return err
			}
		}
	}

	return nil
}

// collectEvent filters an event's markets through the relevance check and
// saves the matches. Returns how many unseen markets it collected.
func (d *Discoverer) collectEvent(ctx context.Context, ev api.GammaEvent, games []string, seen map[string]struct{}, res *Result) (int, error) {
	if ev.Closed && !d.cfg.IncludeClosed {
		return 0, nil
	}

	collected := 0
	for _, m := range ev.Markets {
		if m.ID == "" {
			continue
		}
		if _, dup := seen[m.ID]; dup {
			continue
		}
		if m.Closed && !d.cfg.IncludeClosed {
			continue
		}

		matchedGame := ""
		for _, g := range games {
			terms, err := GameConfig(g)
			if err != nil {
				return collected, err
			}
			if matchesGame(ev, m, terms) {
				matchedGame = g
				break
			}
		}
		if matchedGame == "" {
			continue
		}

		seen[m.ID] = struct{}{}
		collected++

		market := m.ToModel(ev, matchedGame, time.Now().Unix())
		created, err := d.store.UpsertMarket(ctx, market)
		if err != nil {
			return collected, fmt.Errorf("save market %s: %w", market.MarketID, err)
		}

		res.Found++
		if created {
			res.New++
			res.NewMarkets = append(res.NewMarkets, market)
			d.logger.Info("discovered market",
				"game", matchedGame,
				"market_id", market.MarketID,
				"question", truncate(market.Question, 70),
			)
		} else {
			res.Known++
		}
	}

	return collected, nil
}

// truncate cuts on a rune boundary so multibyte question text stays valid.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
