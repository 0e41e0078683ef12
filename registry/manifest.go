package registry

import (
	"log"
	"sync"

	"github.com/blockpoll/devicesdk/device"
	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/profile"
	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/schema"
	"github.com/blockpoll/devicesdk/sdkerr"
)

// Capabilities describes what a plugin's pipeline is permitted to do.
// Defaults are conservative: no write support.
type Capabilities struct {
	SupportsWrite                    bool
	SupportsStreaming                bool
	RequiresDeviceValidationForWrite bool
}

// CanWrite reports whether a write is permitted, optionally bypassing the
// device-validation requirement with force.
func (c Capabilities) CanWrite(force bool) bool {
	return c.SupportsWrite && (force || !c.RequiresDeviceValidationForWrite)
}

// ProfileLoader resolves a declared profile id to its DeviceProfile.
type ProfileLoader func(profileID string) (*profile.DeviceProfile, error)

// SchemaLoader resolves a declared profile id to the block schemas it uses.
type SchemaLoader func(profileID string) ([]*schema.BlockSchema, error)

// ParserFactory returns a fresh Parser for one client instance.
type ParserFactory func() *parser.Parser

// ProtocolLayerFactory returns a fresh protocol.Codec.
type ProtocolLayerFactory func() protocol.Codec

// HandlerLoader optionally installs handlers on a freshly constructed
// device.Model.
type HandlerLoader func(*device.Model) error

// PluginManifest describes one vendor/protocol pipeline: what profiles it
// serves, which transports it can run over, and the factories that build
// its parser and protocol layer.
type PluginManifest struct {
	Vendor            string
	Protocol          string
	Version           string
	Description       string
	ProfileIDs        []string
	TransportKeys     []string
	SchemaPackVersion string
	Capabilities      Capabilities

	ParserFactory        ParserFactory
	ProtocolLayerFactory ProtocolLayerFactory
	ProfileLoader        ProfileLoader
	SchemaLoader         SchemaLoader
	HandlerLoader        HandlerLoader // optional
}

// Key is this manifest's registry key: "vendor/protocol".
func (m *PluginManifest) Key() string { return m.Vendor + "/" + m.Protocol }

// PluginRegistry indexes manifests by Key. Safe for concurrent use.
type PluginRegistry struct {
	logger *log.Logger

	mu        sync.RWMutex
	manifests map[string]*PluginManifest
}

// NewPluginRegistry returns an empty PluginRegistry. A nil logger disables
// logging.
func NewPluginRegistry(l *log.Logger) *PluginRegistry {
	return &PluginRegistry{logger: l, manifests: make(map[string]*PluginManifest)}
}

func (r *PluginRegistry) logf(format string, args ...interface{}) {
	if r.logger == nil {
		return
	}
	r.logger.Printf(format, args...)
}

// Register checks m's conformance — every declared profile id must
// resolve, and both factories must return non-nil values — before
// indexing it by Key. A non-conformant manifest is rejected with a
// ConfigError and never registered.
func (r *PluginRegistry) Register(m *PluginManifest) error {
	if err := r.checkConformance(m); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.manifests[m.Key()]; exists {
		r.logf("I! replacing previously registered plugin %q", m.Key())
	}
	r.manifests[m.Key()] = m
	return nil
}

func (r *PluginRegistry) checkConformance(m *PluginManifest) error {
	if m.Vendor == "" || m.Protocol == "" {
		return sdkerr.ConfigError("plugin manifest missing vendor or protocol")
	}
	if m.ProfileLoader == nil || m.SchemaLoader == nil || m.ParserFactory == nil || m.ProtocolLayerFactory == nil {
		return sdkerr.ConfigError("plugin %s/%s missing a required factory or loader", m.Vendor, m.Protocol)
	}
	for _, id := range m.ProfileIDs {
		prof, err := m.ProfileLoader(id)
		if err != nil {
			return sdkerr.WrapConfig(err, "plugin %s/%s: profile_loader cannot resolve declared id %q", m.Vendor, m.Protocol, id)
		}
		if prof == nil {
			return sdkerr.ConfigError("plugin %s/%s: profile_loader returned nil for declared id %q", m.Vendor, m.Protocol, id)
		}
	}
	if p := m.ParserFactory(); p == nil {
		return sdkerr.ConfigError("plugin %s/%s: parser_factory returned nil", m.Vendor, m.Protocol)
	}
	if c := m.ProtocolLayerFactory(); c == nil {
		return sdkerr.ConfigError("plugin %s/%s: protocol_layer_factory returned nil", m.Vendor, m.Protocol)
	}
	return nil
}

// RegisterAll registers every manifest, logging and skipping any that fail
// conformance rather than aborting the whole batch (spec §4.8: "broken
// plugins are logged and skipped, not fatal"). It returns the count that
// registered successfully.
func (r *PluginRegistry) RegisterAll(manifests []*PluginManifest) int {
	registered := 0
	for _, m := range manifests {
		if err := r.Register(m); err != nil {
			r.logf("W! skipping plugin %s/%s: %v", m.Vendor, m.Protocol, err)
			continue
		}
		registered++
	}
	return registered
}

// Lookup returns the manifest registered under key, if any.
func (r *PluginRegistry) Lookup(key string) (*PluginManifest, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.manifests[key]
	return m, ok
}

// Keys returns every registered manifest key.
func (r *PluginRegistry) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.manifests))
	for k := range r.manifests {
		out = append(out, k)
	}
	return out
}
