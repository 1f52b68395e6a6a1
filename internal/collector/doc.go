// Package collector orchestrates continuous collection: periodic
// discovery, incremental backfill of newly found markets, orderbook
// polling, and the realtime stream, under one task group.
package collector
