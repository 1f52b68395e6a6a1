// Package api provides the REST client for the Polymarket data services.
//
// Three HTTP services are consumed:
//   - Gamma (metadata): https://gamma-api.polymarket.com
//     /public-search, /tags, /events
//   - CLOB (prices): https://clob.polymarket.com
//     /prices-history, /book
//   - Data (trades): https://data-api.polymarket.com
//     /trades, /oi
//
// Every request is admitted through the shared ratelimit.Limiter before it
// goes on the wire; an explicit 429 is reported back to the limiter rather
// than surfaced to callers.
package api
