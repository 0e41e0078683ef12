package mqtt

import (
	"testing"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/sdkerr"
)

func TestConfigDecodesFromTOML(t *testing.T) {
	var c Config
	_, err := toml.Decode(`
broker = "mqtt.example.com"
port = "8883"
device_sn = "SN1001"
cert_password = "hunter2"
keepalive = 30000000000
allow_insecure = true
`, &c)
	require.NoError(t, err)

	require.Equal(t, "mqtt.example.com", c.Broker)
	require.Equal(t, "8883", c.Port)
	require.Equal(t, "SN1001", c.DeviceSN)
	require.Equal(t, "hunter2", c.CertPassword)
	require.Equal(t, 30*time.Second, c.Keepalive)
	require.True(t, c.AllowInsecure)
	require.NoError(t, c.Validate())
}

func TestValidateRequiresBrokerAndPort(t *testing.T) {
	cfg := NewConfig()
	cfg.DeviceSN = "SN1"
	cfg.AllowInsecure = true
	err := cfg.Validate()
	require.Error(t, err)
	require.True(t, sdkerr.Is(err, sdkerr.KindConfig))
}

func TestValidateRequiresCertUnlessInsecure(t *testing.T) {
	cfg := NewConfig()
	cfg.Broker, cfg.Port, cfg.DeviceSN = "b", "8883", "SN1"
	require.Error(t, cfg.Validate())

	cfg.AllowInsecure = true
	require.NoError(t, cfg.Validate())

	cfg.AllowInsecure = false
	cfg.PfxCert = []byte{0x01}
	require.NoError(t, cfg.Validate())
}

func TestClientIDAndTopics(t *testing.T) {
	cfg := NewConfig()
	cfg.DeviceSN = "SN42"
	require.Equal(t, "blocksdk_SN42", cfg.clientID())
	require.Equal(t, "SUB/SN42", cfg.pubTopic())
	require.Equal(t, "PUB/SN42", cfg.subTopic())
}

func TestBrokerURLSchemeFollowsAllowInsecure(t *testing.T) {
	cfg := NewConfig()
	cfg.Broker, cfg.Port = "host", "1883"
	require.Equal(t, "ssl://host:1883", cfg.brokerURL())
	cfg.AllowInsecure = true
	require.Equal(t, "tcp://host:1883", cfg.brokerURL())
}
