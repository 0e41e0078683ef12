package mqtt

import (
	"context"
	"testing"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// doneToken is a pahomqtt.Token that is immediately complete.
type doneToken struct{ err error }

func (d *doneToken) Wait() bool                     { return true }
func (d *doneToken) WaitTimeout(time.Duration) bool { return true }
func (d *doneToken) Done() <-chan struct{}          { ch := make(chan struct{}); close(ch); return ch }
func (d *doneToken) Error() error                   { return d.err }

// fakeBroker is a minimal in-memory stand-in for pahomqtt.Client: Publish
// loops requests back through a registered subscriber after the test tells
// it to, so SendFrame's wait-for-response path can be exercised without a
// real broker.
type fakeBroker struct {
	connected bool
	sub       pahomqtt.MessageHandler
	published chan []byte

	connectErr   error
	publishErr   error
	subscribeErr error
}

func (f *fakeBroker) Connect() pahomqtt.Token {
	f.connected = f.connectErr == nil
	return &doneToken{err: f.connectErr}
}

func (f *fakeBroker) Disconnect(uint) { f.connected = false }

func (f *fakeBroker) Publish(_ string, _ byte, _ bool, payload interface{}) pahomqtt.Token {
	if f.published != nil {
		f.published <- payload.([]byte)
	}
	return &doneToken{err: f.publishErr}
}

func (f *fakeBroker) Subscribe(_ string, _ byte, cb pahomqtt.MessageHandler) pahomqtt.Token {
	f.sub = cb
	return &doneToken{err: f.subscribeErr}
}

func (f *fakeBroker) IsConnected() bool { return f.connected }

type fakeMessage struct{ payload []byte }

func (m *fakeMessage) Duplicate() bool   { return false }
func (m *fakeMessage) Qos() byte         { return 1 }
func (m *fakeMessage) Retained() bool    { return false }
func (m *fakeMessage) Topic() string     { return "" }
func (m *fakeMessage) MessageID() uint16 { return 0 }
func (m *fakeMessage) Payload() []byte   { return m.payload }
func (m *fakeMessage) Ack()              {}

func withFakeBroker(t *testing.T, broker *fakeBroker) *Transport {
	t.Helper()
	prev := newPahoClient
	newPahoClient = func(*pahomqtt.ClientOptions) pahoClient { return broker }
	t.Cleanup(func() { newPahoClient = prev })

	cfg := NewConfig()
	cfg.Broker, cfg.Port, cfg.DeviceSN = "broker.local", "8883", "SN1"
	cfg.AllowInsecure = true
	tr, err := New(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, tr.Connect(context.Background()))
	return tr
}

func TestSendFrameRoundTrip(t *testing.T) {
	broker := &fakeBroker{published: make(chan []byte, 1)}
	tr := withFakeBroker(t, broker)

	go func() {
		req := <-broker.published
		broker.sub(nil, &fakeMessage{payload: []byte{req[0], 0x03, 0x02, 0x00, 0x01, 0x00, 0x00}})
	}()

	resp, err := tr.SendFrame(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, time.Second)
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0x03, 0x02, 0x00, 0x01, 0x00, 0x00}, resp)
}

func TestSendFrameTimeoutWhenNoResponse(t *testing.T) {
	broker := &fakeBroker{published: make(chan []byte, 1)}
	tr := withFakeBroker(t, broker)

	_, err := tr.SendFrame(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, 20*time.Millisecond)
	require.Error(t, err)
	require.True(t, sdkerr.Is(err, sdkerr.KindTransport))
}

func TestSendFrameFailsWhenNotConnected(t *testing.T) {
	cfg := NewConfig()
	cfg.Broker, cfg.Port, cfg.DeviceSN = "broker.local", "8883", "SN1"
	cfg.AllowInsecure = true
	tr, err := New(cfg, nil)
	require.NoError(t, err)

	_, err = tr.SendFrame(context.Background(), []byte{0x01}, time.Second)
	require.Error(t, err)
	require.True(t, sdkerr.Is(err, sdkerr.KindTransport))
}

func TestDisconnectFailsWaitingCaller(t *testing.T) {
	broker := &fakeBroker{published: make(chan []byte, 1)}
	tr := withFakeBroker(t, broker)

	errCh := make(chan error, 1)
	go func() {
		_, err := tr.SendFrame(context.Background(), []byte{0x01, 0x03, 0x00, 0x00, 0x00, 0x01}, time.Second)
		errCh <- err
	}()

	<-broker.published
	require.NoError(t, tr.Disconnect(context.Background()))

	err := <-errCh
	require.Error(t, err)
	require.False(t, tr.IsConnected())
}

func TestDiscardsResponseWithNoWaiter(t *testing.T) {
	broker := &fakeBroker{published: make(chan []byte, 1)}
	tr := withFakeBroker(t, broker)

	require.NotPanics(t, func() {
		broker.sub(nil, &fakeMessage{payload: []byte{0x01, 0x03, 0x00}})
	})
}

func TestConnectSurfacesConnectError(t *testing.T) {
	broker := &fakeBroker{connectErr: sdkerr.TransportError("refused")}
	prev := newPahoClient
	newPahoClient = func(*pahomqtt.ClientOptions) pahoClient { return broker }
	defer func() { newPahoClient = prev }()

	cfg := NewConfig()
	cfg.Broker, cfg.Port, cfg.DeviceSN = "broker.local", "8883", "SN1"
	cfg.AllowInsecure = true
	tr, err := New(cfg, nil)
	require.NoError(t, err)

	err = tr.Connect(context.Background())
	require.Error(t, err)
	require.False(t, tr.IsConnected())
}
