// Package registry implements the plugin and factory layer (spec §4.8):
// TransportFactory and ProtocolFactory map string keys to builders, and
// PluginManifest/PluginRegistry bundle a vendor's full pipeline — profile
// loader, schema loader, parser and protocol-layer factories, and
// capability flags — behind one lookup key.
package registry

import (
	"sync"

	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transport"
)

// TransportBuilder constructs a Transport from either a typed config
// object or loose key/value options (see DecodeOptions).
type TransportBuilder func(options interface{}) (transport.Transport, error)

// TransportFactory maps a transport key (e.g. "mqtt") to its builder.
// Safe for concurrent use.
type TransportFactory struct {
	mu       sync.RWMutex
	builders map[string]TransportBuilder
}

// NewTransportFactory returns an empty TransportFactory.
func NewTransportFactory() *TransportFactory {
	return &TransportFactory{builders: make(map[string]TransportBuilder)}
}

// Register binds key to builder, replacing any existing binding.
func (f *TransportFactory) Register(key string, builder TransportBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[key] = builder
}

// Build constructs a Transport for key. An unregistered key is a
// TransportError per spec §4.8.
func (f *TransportFactory) Build(key string, options interface{}) (transport.Transport, error) {
	f.mu.RLock()
	builder, ok := f.builders[key]
	f.mu.RUnlock()
	if !ok {
		return nil, sdkerr.TransportError("unknown transport key %q", key)
	}
	return builder(options)
}

// ProtocolBuilder constructs a fresh protocol.Codec.
type ProtocolBuilder func() protocol.Codec

// ProtocolFactory maps a protocol key (e.g. "v2") to its builder. Safe for
// concurrent use.
type ProtocolFactory struct {
	mu       sync.RWMutex
	builders map[string]ProtocolBuilder
}

// NewProtocolFactory returns an empty ProtocolFactory.
func NewProtocolFactory() *ProtocolFactory {
	return &ProtocolFactory{builders: make(map[string]ProtocolBuilder)}
}

// Register binds key to builder, replacing any existing binding.
func (f *ProtocolFactory) Register(key string, builder ProtocolBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.builders[key] = builder
}

// Build constructs a Codec for key. An unregistered key is a
// ProtocolError per spec §4.8.
func (f *ProtocolFactory) Build(key string) (protocol.Codec, error) {
	f.mu.RLock()
	builder, ok := f.builders[key]
	f.mu.RUnlock()
	if !ok {
		return nil, sdkerr.ProtocolError("unknown protocol key %q", key)
	}
	return builder(), nil
}
