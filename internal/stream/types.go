package stream

import (
	"context"
	"time"
)

// State is the streamer's lifecycle state.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateSubscribed
	StateStreaming
	StateReconnecting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	case StateStreaming:
		return "streaming"
	case StateReconnecting:
		return "reconnecting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Conn is one live connection to the market channel.
type Conn interface {
	// ReadMessage blocks until the next raw message arrives.
	ReadMessage() ([]byte, error)

	// WriteJSON marshals and sends one message.
	WriteJSON(v any) error

	// SetReadDeadline bounds the next ReadMessage.
	SetReadDeadline(t time.Time) error

	// Close tears the connection down; a blocked ReadMessage returns.
	Close() error
}

// Dialer establishes connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// subscribeMessage is the market-channel subscribe frame.
type subscribeMessage struct {
	AssetsIDs []string `json:"assets_ids"`
	Type      string   `json:"type"`
}

// Stats are cumulative streamer counters.
type Stats struct {
	Messages   int64 // raw messages received
	Ticks      int64 // ticks written to the store
	Dropped    int64 // messages or events that yielded no tick
	Duplicates int64 // ticks suppressed by the dedup cache
	Reconnects int64 // reconnect attempts made
}
