package mqtt

import (
	"time"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// Config is the MQTT transport's configuration surface (spec §6):
// {broker, port, device_sn, pfx_cert, cert_password, keepalive,
// allow_insecure}. Loading this from YAML/env is out of scope — callers
// construct it directly or via the registry's loose-options decoder.
type Config struct {
	Broker   string `toml:"broker" mapstructure:"broker"`
	Port     string `toml:"port" mapstructure:"port"`
	DeviceSN string `toml:"device_sn" mapstructure:"device_sn"`

	// PfxCert is the raw PKCS#12 blob. It is kept in memory only; no
	// on-disk temp file is ever created for it (see DESIGN.md).
	PfxCert      []byte `toml:"-" mapstructure:"pfx_cert"`
	CertPassword string `toml:"cert_password" mapstructure:"cert_password"`

	Keepalive     time.Duration `toml:"keepalive" mapstructure:"keepalive"`
	AllowInsecure bool          `toml:"allow_insecure" mapstructure:"allow_insecure"`

	// SDKName prefixes the MQTT client id: "<sdk>_<device_sn>".
	SDKName string `toml:"-" mapstructure:"-"`
}

// DefaultKeepalive is used when Config.Keepalive is zero.
const DefaultKeepalive = 60 * time.Second

// NewConfig returns a Config with default keepalive and SDK name set.
func NewConfig() Config {
	return Config{SDKName: "blocksdk", Keepalive: DefaultKeepalive}
}

// Validate enforces the MQTT transport's configuration invariants: a
// broker and port and device serial are required, and missing cert
// material is fatal unless AllowInsecure is explicitly set.
func (c Config) Validate() error {
	if c.Broker == "" || c.Port == "" {
		return sdkerr.ConfigError("mqtt: broker and port are required")
	}
	if c.DeviceSN == "" {
		return sdkerr.ConfigError("mqtt: device_sn is required")
	}
	if !c.AllowInsecure && len(c.PfxCert) == 0 {
		return sdkerr.ConfigError("mqtt: missing certificate material; set allow_insecure=true to permit plaintext")
	}
	return nil
}

func (c Config) brokerURL() string {
	scheme := "ssl"
	if c.AllowInsecure {
		scheme = "tcp"
	}
	return scheme + "://" + c.Broker + ":" + c.Port
}

func (c Config) clientID() string {
	name := c.SDKName
	if name == "" {
		name = "blocksdk"
	}
	return name + "_" + c.DeviceSN
}

// pubTopic is the topic the client publishes requests on.
func (c Config) pubTopic() string { return "SUB/" + c.DeviceSN }

// subTopic is the topic the client subscribes to for responses.
func (c Config) subTopic() string { return "PUB/" + c.DeviceSN }

func (c Config) keepalive() time.Duration {
	if c.Keepalive <= 0 {
		return DefaultKeepalive
	}
	return c.Keepalive
}
