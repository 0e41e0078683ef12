// Package mqtttest provides a fake transport.Transport for exercising
// client/device code without a real MQTT broker, mirroring the shape of
// kapacitor's own mqtttest mock client.
package mqtttest

import (
	"context"
	"sync"
	"time"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// Responder computes a response frame for a given request frame. Tests
// install one to emulate a device's reply.
type Responder func(request []byte) ([]byte, error)

// Transport is an in-memory transport.Transport double. It records every
// frame sent and resolves each one via Responder (defaulting to echoing
// back the request unchanged).
type Transport struct {
	mu        sync.Mutex
	connected bool
	sent      [][]byte

	Responder Responder

	ConnectErr    error
	DisconnectErr error
}

// New returns a disconnected mock transport that echoes requests back as
// responses until a Responder is installed.
func New() *Transport {
	return &Transport{}
}

func (m *Transport) Connect(ctx context.Context) error {
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	m.mu.Lock()
	m.connected = true
	m.mu.Unlock()
	return nil
}

func (m *Transport) Disconnect(ctx context.Context) error {
	if m.DisconnectErr != nil {
		return m.DisconnectErr
	}
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()
	return nil
}

func (m *Transport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// SendFrame records request and returns the configured Responder's result,
// or request verbatim if no Responder was installed.
func (m *Transport) SendFrame(ctx context.Context, request []byte, timeout time.Duration) ([]byte, error) {
	m.mu.Lock()
	connected := m.connected
	responder := m.Responder
	m.sent = append(m.sent, append([]byte(nil), request...))
	m.mu.Unlock()

	if !connected {
		return nil, sdkerr.TransportError("mqtttest: send attempted while not connected")
	}
	if responder == nil {
		return request, nil
	}
	return responder(request)
}

// SentFrames returns every frame passed to SendFrame, in order.
func (m *Transport) SentFrames() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}
