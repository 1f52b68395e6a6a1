package discovery

import (
	"fmt"
	"sort"
	"strings"

	"github.com/polydata/esports-collector/internal/api"
)

// GameTerms holds the search and relevance vocabulary for one game.
//
// ValidationTerms are sufficient on their own to confirm a market belongs
// to the game. TeamTerms are ambiguous (many orgs field rosters in several
// titles) and only count when one of GameTerms also appears in the text.
type GameTerms struct {
	Key             string
	DisplayName     string
	SearchTerms     []string
	GameTerms       []string
	ValidationTerms []string
	TeamTerms       []string
	TagLabels       []string
}

var gameConfigs = map[string]GameTerms{
	"cod": {
		Key:         "cod",
		DisplayName: "Call of Duty",
		SearchTerms: []string{
			"call of duty",
			"call of duty league",
			"cdl",
			"cdl major",
			"cdl stage",
			"cdl qualifier",
			"cdl championship",
			"optic texas",
			"faze atlanta",
			"atlanta faze",
			"boston breach",
			"los angeles thieves",
			"la thieves",
			"miami heretics",
			"carolina royal ravens",
			"toronto ultra",
			"new york subliners",
			"las vegas legion",
			"seattle surge",
			"los angeles guerrillas",
			"la guerrillas",
			"minnesota rokkr",
		},
		ValidationTerms: []string{
			"call of duty",
			"cdl regular season",
			"cdl stage",
			"cdl major",
			"cdl qualifier",
			"cdl championship",
			"optic texas",
			"atlanta faze",
			"faze atlanta",
			"boston breach",
			"los angeles thieves",
			"la thieves",
			"miami heretics",
			"carolina royal ravens",
			"toronto ultra",
			"toronto koi",
			"new york subliners",
			"cloud9 new york",
			"las vegas legion",
			"seattle surge",
			"vancouver surge",
			"los angeles guerrillas",
			"la guerrillas",
			"minnesota rokkr",
			"g2 minnesota",
			"paris gentle mates",
			"riyadh falcons",
		},
		TagLabels: []string{
			"esports",
			"gaming",
			"call of duty",
			"cdl",
			"video games",
		},
	},
	"cs2": {
		Key:         "cs2",
		DisplayName: "Counter-Strike 2",
		SearchTerms: []string{
			"counter-strike",
			"counter strike",
			"cs2",
			"csgo",
			"esl pro league",
			"blast premier",
			"iem",
			"iem katowice",
			"iem cologne",
			"pgl major",
			"pgl cs2",
			"blast world final",
			"blast spring",
			"blast fall",
			"natus vincere",
			"navi cs",
			"g2 esports",
			"faze clan",
			"team vitality",
			"team spirit",
			"mouz",
			"mousesports",
			"heroic",
			"team liquid",
			"fnatic",
			"astralis",
			"cloud9 cs",
			"complexity",
			"virtus.pro",
			"eternal fire",
			"pain gaming",
			"imperial esports",
			"9z team",
			"monte",
		},
		GameTerms: []string{
			"counter-strike",
			"counter strike",
			"cs2",
			"csgo",
			"cs:go",
		},
		ValidationTerms: []string{
			"counter-strike",
			"counter strike",
			"cs2",
			"csgo",
			"cs:go",
			"esl pro league",
			"blast premier",
			"blast spring",
			"blast fall",
			"blast world final",
			"iem katowice",
			"iem cologne",
			"pgl major",
			"pgl cs2",
		},
		TeamTerms: []string{
			"natus vincere",
			"navi",
			"g2 esports",
			"faze clan",
			"team vitality",
			"team spirit",
			"mouz",
			"mousesports",
			"heroic",
			"team liquid",
			"fnatic",
			"astralis",
			"cloud9 cs",
			"complexity",
			"virtus.pro",
			"eternal fire",
		},
		TagLabels: []string{
			"esports",
			"gaming",
			"counter-strike",
			"cs2",
			"csgo",
			"video games",
		},
	},
}

// GameConfig returns the term set for a game key.
func GameConfig(game string) (GameTerms, error) {
	cfg, ok := gameConfigs[game]
	if !ok {
		return GameTerms{}, fmt.Errorf("unknown game %q, valid games: %v", game, SupportedGames())
	}
	return cfg, nil
}

// SupportedGames returns the known game keys in stable order.
func SupportedGames() []string {
	keys := make([]string, 0, len(gameConfigs))
	for k := range gameConfigs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// combinedTagLabels merges the tag labels of the given games, deduplicated.
func combinedTagLabels(games []string) []string {
	seen := make(map[string]struct{})
	var labels []string
	for _, g := range games {
		cfg, ok := gameConfigs[g]
		if !ok {
			continue
		}
		for _, l := range cfg.TagLabels {
			if _, dup := seen[l]; dup {
				continue
			}
			seen[l] = struct{}{}
			labels = append(labels, l)
		}
	}
	return labels
}

// matchesGame reports whether the event/market text identifies the game.
// ValidationTerms match on their own; TeamTerms need a GameTerm present.
func matchesGame(ev api.GammaEvent, m api.GammaMarket, terms GameTerms) bool {
	text := strings.ToLower(strings.Join([]string{
		ev.Title,
		ev.Description,
		m.Question,
		m.Description,
		m.GroupItemTitle,
	}, " "))

	for _, term := range terms.ValidationTerms {
		if strings.Contains(text, term) {
			return true
		}
	}

	if len(terms.TeamTerms) > 0 && len(terms.GameTerms) > 0 {
		hasGameTerm := false
		for _, gt := range terms.GameTerms {
			if strings.Contains(text, gt) {
				hasGameTerm = true
				break
			}
		}
		if hasGameTerm {
			for _, term := range terms.TeamTerms {
				if strings.Contains(text, term) {
					return true
				}
			}
		}
	}

	return false
}

// matchesTag reports whether a tag's label or slug contains any of the
// given labels.
func matchesTag(t api.Tag, labels []string) bool {
	label := strings.ToLower(t.DisplayLabel())
	slug := strings.ToLower(t.Slug)
	for _, l := range labels {
		l = strings.ToLower(l)
		if strings.Contains(label, l) || strings.Contains(slug, l) {
			return true
		}
	}
	return false
}
