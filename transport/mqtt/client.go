// Package mqtt implements the MQTT-over-TLS transport binding (spec §6):
// Modbus-RTU frames published on "SUB/{device_sn}" and responses received
// on "PUB/{device_sn}", with at most one request in flight at a time.
package mqtt

import (
	"context"
	"crypto/tls"
	"log"
	"sync"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"golang.org/x/crypto/pkcs12"

	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transport"
)

// pahoClient is the subset of pahomqtt.Client this package drives. Narrowing
// it to an interface lets tests substitute a fake broker connection without
// a real network (mirrors the kapacitor mqtt service's own Client seam).
type pahoClient interface {
	Connect() pahomqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
	Subscribe(topic string, qos byte, callback pahomqtt.MessageHandler) pahomqtt.Token
	IsConnected() bool
}

var _ pahoClient = pahomqtt.Client(nil)

// newPahoClient is overridden in tests to avoid dialing a real broker.
var newPahoClient = func(opts *pahomqtt.ClientOptions) pahoClient {
	return pahomqtt.NewClient(opts)
}

type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateConnected
	stateDisconnecting
)

// Transport is a transport.Transport bound to a single MQTT broker and
// device serial. The zero value is not usable; construct with New.
type Transport struct {
	cfg    Config
	logger *log.Logger

	mu    sync.Mutex // guards everything below
	state connState
	paho  pahoClient

	// single-in-flight response dispatch: SendFrame serializes itself via
	// sendMu, then parks on responseReady for onMessage (or a disconnect)
	// to fill responseSlot and signal.
	waiting       bool
	responseSlot  []byte
	responseReady chan struct{}

	sendMu sync.Mutex
}

var _ transport.Transport = (*Transport)(nil)

// New validates cfg and returns an unconnected Transport.
func New(cfg Config, l *log.Logger) (*Transport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Transport{cfg: cfg, logger: l, state: stateIdle}, nil
}

func (t *Transport) logf(format string, args ...interface{}) {
	if t.logger == nil {
		return
	}
	t.logger.Printf(format, args...)
}

// Connect dials the broker, negotiates TLS if configured, and subscribes to
// the device's response topic. Connecting while already connected performs
// a clean disconnect first.
func (t *Transport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == stateConnected {
		t.mu.Unlock()
		if err := t.Disconnect(ctx); err != nil {
			return sdkerr.WrapTransport(err, "mqtt: clean disconnect before reconnect failed")
		}
		t.mu.Lock()
	}
	t.state = stateConnecting
	t.mu.Unlock()

	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(t.cfg.brokerURL())
	opts.SetClientID(t.cfg.clientID())
	opts.SetKeepAlive(t.cfg.keepalive())
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(false)
	opts.SetConnectionLostHandler(func(pahomqtt.Client, error) { t.handleLost() })

	if !t.cfg.AllowInsecure {
		tlsConfig, err := buildTLSConfig(t.cfg.PfxCert, t.cfg.CertPassword)
		if err != nil {
			t.setState(stateIdle)
			return sdkerr.WrapTransport(err, "mqtt: TLS configuration failed")
		}
		opts.SetTLSConfig(tlsConfig)
	}

	client := newPahoClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(transport.DefaultConnectTimeout) {
		t.setState(stateIdle)
		return sdkerr.TransportError("mqtt: connect timed out after %v", transport.DefaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		t.setState(stateIdle)
		return sdkerr.WrapTransport(err, "mqtt: connect failed")
	}

	subTopic := t.cfg.subTopic()
	subToken := client.Subscribe(subTopic, 1, t.onMessage)
	subToken.Wait()
	if err := subToken.Error(); err != nil {
		client.Disconnect(250)
		t.setState(stateIdle)
		return sdkerr.WrapTransport(err, "mqtt: subscribe to %s failed", subTopic)
	}

	t.mu.Lock()
	t.paho = client
	t.state = stateConnected
	t.mu.Unlock()
	t.logf("I! connected to %s as %s, subscribed %s", t.cfg.Broker, t.cfg.clientID(), subTopic)
	return nil
}

func (t *Transport) setState(s connState) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// handleLost reacts to an unsolicited broker disconnect: it fails any
// in-flight SendFrame immediately rather than leaving it to time out.
func (t *Transport) handleLost() {
	t.mu.Lock()
	t.state = stateIdle
	if t.waiting {
		t.waiting = false
		t.responseSlot = nil
		close(t.responseReady)
	}
	t.mu.Unlock()
	t.logf("W! mqtt connection lost")
}

// Disconnect quiesces the broker connection. It is idempotent: calling it
// while already idle is a no-op.
func (t *Transport) Disconnect(ctx context.Context) error {
	t.mu.Lock()
	if t.state == stateIdle {
		t.mu.Unlock()
		return nil
	}
	t.state = stateDisconnecting
	client := t.paho
	if t.waiting {
		t.waiting = false
		t.responseSlot = nil
		close(t.responseReady)
	}
	t.mu.Unlock()

	if client != nil {
		client.Disconnect(250)
	}

	t.mu.Lock()
	t.state = stateIdle
	t.paho = nil
	t.mu.Unlock()
	return nil
}

// IsConnected reports the current connection state.
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state == stateConnected
}

// onMessage delivers a response payload to the one SendFrame currently
// waiting for it. A message arriving with no waiter (late retransmit,
// stray publish) is logged and discarded.
func (t *Transport) onMessage(_ pahomqtt.Client, msg pahomqtt.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.waiting {
		t.logf("D! mqtt: discarding response with no caller waiting (%d bytes)", len(msg.Payload()))
		return
	}
	t.responseSlot = msg.Payload()
	t.waiting = false
	close(t.responseReady)
}

// SendFrame publishes frame and blocks for the matching response. Only one
// SendFrame call is ever in flight per Transport; a second caller blocks
// behind sendMu until the first completes.
func (t *Transport) SendFrame(ctx context.Context, frame []byte, timeout time.Duration) ([]byte, error) {
	t.sendMu.Lock()
	defer t.sendMu.Unlock()

	t.mu.Lock()
	if t.state != stateConnected {
		t.mu.Unlock()
		return nil, sdkerr.TransportError("mqtt: send attempted while not connected")
	}
	t.waiting = true
	t.responseSlot = nil
	ready := make(chan struct{})
	t.responseReady = ready
	client := t.paho
	pubTopic := t.cfg.pubTopic()
	t.mu.Unlock()

	token := client.Publish(pubTopic, 1, false, frame)
	if !token.WaitTimeout(timeout) {
		t.clearWaiting()
		return nil, sdkerr.TransportError("mqtt: publish ack timed out after %v", timeout)
	}
	if err := token.Error(); err != nil {
		t.clearWaiting()
		return nil, sdkerr.WrapTransport(err, "mqtt: publish rejected")
	}

	select {
	case <-ready:
		t.mu.Lock()
		resp := t.responseSlot
		t.mu.Unlock()
		if resp == nil {
			return nil, sdkerr.TransportError("mqtt: connection lost while waiting for response")
		}
		return resp, nil
	case <-time.After(timeout):
		t.clearWaiting()
		return nil, sdkerr.TransportError("mqtt: no response within %v", timeout)
	case <-ctx.Done():
		t.clearWaiting()
		return nil, sdkerr.WrapTransport(ctx.Err(), "mqtt: send frame canceled")
	}
}

func (t *Transport) clearWaiting() {
	t.mu.Lock()
	t.waiting = false
	t.mu.Unlock()
}

// buildTLSConfig decodes a PKCS#12 blob directly into an in-memory
// tls.Certificate. paho.mqtt.golang's ClientOptions.SetTLSConfig takes a
// *tls.Config by value, so the certificate material never touches disk.
func buildTLSConfig(pfxData []byte, password string) (*tls.Config, error) {
	privateKey, cert, err := pkcs12.Decode(pfxData, password)
	if err != nil {
		return nil, err
	}
	tlsCert := tls.Certificate{
		Certificate: [][]byte{cert.Raw},
		PrivateKey:  privateKey,
		Leaf:        cert,
	}
	return &tls.Config{Certificates: []tls.Certificate{tlsCert}}, nil
}
