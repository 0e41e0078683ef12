// Package protocol defines the Codec contract: building Modbus-RTU
// request frames, validating CRCs, parsing and normalizing responses, and
// driving one full read round-trip over a Transport. See subpackage
// modbus for the concrete Modbus-RTU implementation.
package protocol

import (
	"context"
	"time"

	"github.com/blockpoll/devicesdk/transport"
)

// Frame is a parsed Modbus-RTU frame.
type Frame struct {
	Address   byte
	Function  byte
	ByteCount byte
	Data      []byte
	CRC       uint16
}

// NormalizedPayload is the big-endian register payload returned by a
// successful ReadBlock, stripped of framing and CRC.
type NormalizedPayload struct {
	BlockID         int
	Data            []byte
	DeviceAddress   int
	ProtocolVersion int
}

// Codec builds requests and validates/normalizes responses for one wire
// protocol (e.g. Modbus-RTU read-holding-registers).
type Codec interface {
	BuildRequest(deviceAddress int, blockAddress int, registerCount int) ([]byte, error)
	ValidateCRC(frame []byte) bool
	ParseFrame(frame []byte) (*Frame, error)
	Normalize(resp *Frame) ([]byte, error)

	// ReadBlock builds a request, sends it over t, validates the CRC,
	// parses the frame, and normalizes the payload.
	ReadBlock(ctx context.Context, t transport.Transport, deviceAddress, blockID, registerCount int, timeout time.Duration) (*NormalizedPayload, error)
}
