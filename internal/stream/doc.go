// Package stream maintains a reconnecting WebSocket subscription to the
// Polymarket market channel and writes normalized price ticks.
//
// The transport is pluggable (Dialer/Conn) so the reconnect and parsing
// logic is testable without a network.
package stream
