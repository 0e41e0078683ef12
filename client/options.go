package client

import (
	"log"

	"github.com/blockpoll/devicesdk/device"
	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/profile"
	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/protocol/modbus"
	"github.com/blockpoll/devicesdk/retry"
	"github.com/blockpoll/devicesdk/schema"
	"github.com/blockpoll/devicesdk/transport"
)

// DefaultDeviceAddress is used when ClientOptions.Address is left at zero.
const DefaultDeviceAddress = 1

// ClientOptions configures NewClient, mirroring the fluent
// options-then-construct shape paho.mqtt.golang uses for its own
// ClientOptions/NewClient pair. Transport and Profile are required;
// everything else defaults to a built-in collaborator.
type ClientOptions struct {
	Transport transport.Transport
	Profile   *profile.DeviceProfile

	Address  int
	Protocol protocol.Codec
	Parser   *parser.Parser
	Device   *device.Model
	Registry *schema.Registry
	Retry    *retry.Policy
	Logger   *log.Logger

	FrameTimeout int // milliseconds; 0 uses transport.DefaultFrameTimeout
}

// NewClientOptions returns ClientOptions with t and prof set and Address
// set to DefaultDeviceAddress. Collaborators left nil are filled with
// built-in defaults by NewClient.
func NewClientOptions(t transport.Transport, prof *profile.DeviceProfile) *ClientOptions {
	return &ClientOptions{Transport: t, Profile: prof, Address: DefaultDeviceAddress}
}

func (o *ClientOptions) SetAddress(addr int) *ClientOptions {
	o.Address = addr
	return o
}

func (o *ClientOptions) SetProtocol(c protocol.Codec) *ClientOptions {
	o.Protocol = c
	return o
}

func (o *ClientOptions) SetParser(p *parser.Parser) *ClientOptions {
	o.Parser = p
	return o
}

func (o *ClientOptions) SetDevice(d *device.Model) *ClientOptions {
	o.Device = d
	return o
}

func (o *ClientOptions) SetRegistry(r *schema.Registry) *ClientOptions {
	o.Registry = r
	return o
}

func (o *ClientOptions) SetRetry(p retry.Policy) *ClientOptions {
	o.Retry = &p
	return o
}

func (o *ClientOptions) SetLogger(l *log.Logger) *ClientOptions {
	o.Logger = l
	return o
}

func (o *ClientOptions) SetFrameTimeoutMillis(ms int) *ClientOptions {
	o.FrameTimeout = ms
	return o
}

func (o *ClientOptions) fillDefaults() {
	if o.Protocol == nil {
		o.Protocol = modbus.New(o.Profile.ProtocolVersion)
	}
	if o.Parser == nil {
		o.Parser = parser.New(o.Logger)
	}
	if o.Device == nil {
		o.Device = device.New(o.Profile.TypeID, o.Profile.Model, o.Profile.ProtocolVersion, o.Logger)
	}
	if o.Registry == nil {
		o.Registry = schema.NewRegistry()
	}
	if o.Retry == nil {
		d := retry.Default()
		o.Retry = &d
	}
	if o.Address == 0 {
		o.Address = DefaultDeviceAddress
	}
}
