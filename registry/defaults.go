package registry

import (
	"log"

	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/protocol/modbus"
	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transport"
	"github.com/blockpoll/devicesdk/transport/mqtt"
)

// DefaultProtocolVersion is the protocol version tag the "v2" builder
// stamps onto the Modbus codecs it constructs.
const DefaultProtocolVersion = 2000

// mqttTransportBuilder accepts either a *mqtt.Config (typed) or loose
// map[string]interface{} options (decoded via DecodeOptions, rejecting
// unknown keys per spec §4.8).
func mqttTransportBuilder(l *log.Logger) TransportBuilder {
	return func(options interface{}) (transport.Transport, error) {
		switch cfg := options.(type) {
		case mqtt.Config:
			return mqtt.New(cfg, l)
		case *mqtt.Config:
			return mqtt.New(*cfg, l)
		case map[string]interface{}:
			c := mqtt.NewConfig()
			if err := DecodeOptions(cfg, &c); err != nil {
				return nil, err
			}
			return mqtt.New(c, l)
		default:
			return nil, sdkerr.ConfigError("mqtt transport builder: unsupported options type %T", options)
		}
	}
}

func modbusProtocolBuilder(version int) ProtocolBuilder {
	return func() protocol.Codec { return modbus.New(version) }
}

// RegisterDefaultTransports binds the "mqtt" transport key.
func RegisterDefaultTransports(f *TransportFactory, l *log.Logger) {
	f.Register("mqtt", mqttTransportBuilder(l))
}

// RegisterDefaultProtocols binds the "v2" protocol key to a Modbus-RTU
// codec tagged with DefaultProtocolVersion.
func RegisterDefaultProtocols(f *ProtocolFactory) {
	f.Register("v2", modbusProtocolBuilder(DefaultProtocolVersion))
}
