// Package client implements the orchestrator that sequences transport,
// protocol codec, parser, and device model into the read operations spec
// §4.5 describes: ReadBlock, ReadGroup/ReadGroupEx, StreamGroup, and the
// Connect/Disconnect/RegisterSchema lifecycle.
package client

import (
	"context"
	"log"
	"time"

	"github.com/blockpoll/devicesdk/device"
	"github.com/blockpoll/devicesdk/parser"
	"github.com/blockpoll/devicesdk/profile"
	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/retry"
	"github.com/blockpoll/devicesdk/schema"
	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transport"
)

// Client exclusively owns one Transport, one protocol.Codec, one Parser,
// one device Model, one schema Registry, and one RetryPolicy (spec §3
// Ownership).
type Client struct {
	transport transport.Transport
	profile   *profile.DeviceProfile
	address   int
	codec     protocol.Codec
	parser    *parser.Parser
	device    *device.Model
	registry  *schema.Registry
	retry     retry.Policy
	logger    *log.Logger

	frameTimeout time.Duration
}

// NewClient builds a Client from opts, defaulting any collaborator left
// unset, then auto-registers every block id named in the profile's groups
// against the schema registry.
func NewClient(opts *ClientOptions) (*Client, error) {
	if opts.Transport == nil {
		return nil, sdkerr.ConfigError("client: transport is required")
	}
	if opts.Profile == nil {
		return nil, sdkerr.ConfigError("client: profile is required")
	}
	opts.fillDefaults()

	timeout := transport.DefaultFrameTimeout
	if opts.FrameTimeout > 0 {
		timeout = time.Duration(opts.FrameTimeout) * time.Millisecond
	}

	c := &Client{
		transport:    opts.Transport,
		profile:      opts.Profile,
		address:      opts.Address,
		codec:        opts.Protocol,
		parser:       opts.Parser,
		device:       opts.Device,
		registry:     opts.Registry,
		retry:        *opts.Retry,
		logger:       opts.Logger,
		frameTimeout: timeout,
	}
	c.autoRegisterSchemas()
	return c, nil
}

func (c *Client) logf(format string, args ...interface{}) {
	if c.logger == nil {
		return
	}
	c.logger.Printf(format, args...)
}

func (c *Client) autoRegisterSchemas() {
	for _, id := range c.profile.AllBlockIDs() {
		s, ok := c.registry.Lookup(id)
		if !ok {
			c.logf("W! no schema in registry for block %d referenced by profile %q", id, c.profile.Model)
			continue
		}
		if err := c.parser.RegisterSchema(s); err != nil {
			c.logf("W! auto-register block %d failed: %v", id, err)
		}
	}
}

// RegisterSchema forwards s to both the schema registry and the parser.
func (c *Client) RegisterSchema(s *schema.BlockSchema) error {
	c.registry.Register(s)
	return c.parser.RegisterSchema(s)
}

// Connect dials the transport, retrying transport-layer failures per the
// client's RetryPolicy.
func (c *Client) Connect(ctx context.Context) error {
	return c.retry.Do(ctx, func(ctx context.Context) error {
		return c.transport.Connect(ctx)
	})
}

// Disconnect tears down the transport. Safe to call when not connected.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.transport.Disconnect(ctx)
}

// ReadOption adjusts a single ReadBlock call.
type ReadOption func(*readConfig)

type readConfig struct {
	registerCount int
	updateState   bool
}

// WithRegisterCount overrides the register count ReadBlock would otherwise
// derive from the block's schema.
func WithRegisterCount(n int) ReadOption {
	return func(rc *readConfig) { rc.registerCount = n }
}

// WithoutStateUpdate skips the device.UpdateFromBlock call ReadBlock makes
// by default.
func WithoutStateUpdate() ReadOption {
	return func(rc *readConfig) { rc.updateState = false }
}

// ReadBlock sequences codec.ReadBlock (retried on transport failure),
// parser.ParseBlock, and — unless WithoutStateUpdate is given — a
// device.UpdateFromBlock call.
func (c *Client) ReadBlock(ctx context.Context, blockID int, opts ...ReadOption) (*parser.ParsedRecord, error) {
	rc := readConfig{updateState: true}
	for _, o := range opts {
		o(&rc)
	}

	registerCount := rc.registerCount
	if registerCount <= 0 {
		s, ok := c.parser.GetSchema(blockID)
		if !ok {
			return nil, sdkerr.ParserError("block %d: no register count given and no schema registered to derive one", blockID)
		}
		registerCount = (s.MinLength + 1) / 2 // ceil(min_length/2)
	}

	var payload *protocol.NormalizedPayload
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		p, err := c.codec.ReadBlock(ctx, c.transport, c.address, blockID, registerCount, c.frameTimeout)
		if err != nil {
			return err
		}
		payload = p
		return nil
	})
	if err != nil {
		return nil, err
	}

	protocolVersion := payload.ProtocolVersion
	record, err := c.parser.ParseBlock(blockID, payload.Data, true, &protocolVersion)
	if err != nil {
		return nil, err
	}

	if rc.updateState {
		c.device.UpdateFromBlock(record)
	}
	return record, nil
}
