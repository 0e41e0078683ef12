// Package transport defines the Transport contract shared by every wire
// binding (currently MQTT-over-TLS, see subpackage mqtt). A Transport
// serializes exactly one in-flight request/response exchange at a time;
// concurrent callers of SendFrame queue behind each other.
package transport

import (
	"context"
	"time"
)

// Transport sends one raw frame and waits for exactly one response. See
// package mqtt for the MQTT-over-TLS binding used in production.
type Transport interface {
	// Connect establishes the underlying connection. Calling Connect while
	// already connected first performs a clean Disconnect.
	Connect(ctx context.Context) error

	// Disconnect tears down the connection. It is idempotent.
	Disconnect(ctx context.Context) error

	// IsConnected reports the current connection state.
	IsConnected() bool

	// SendFrame publishes frame and blocks for exactly one response, or
	// fails with a sdkerr TransportError if none arrives within timeout.
	SendFrame(ctx context.Context, frame []byte, timeout time.Duration) ([]byte, error)
}

// DefaultFrameTimeout is the default SendFrame timeout when the caller
// does not override it (spec §5: 5s for a single frame).
const DefaultFrameTimeout = 5 * time.Second

// DefaultConnectTimeout is the default Connect timeout (spec §5: 10s).
const DefaultConnectTimeout = 10 * time.Second
