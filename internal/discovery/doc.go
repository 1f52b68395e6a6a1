// Package discovery finds esports markets on Polymarket.
//
// Two passes run per cycle: term searches against the gamma public-search
// endpoint, then tag-based event listing to catch markets search misses.
// Candidate markets pass a per-game relevance check before they are saved.
package discovery
