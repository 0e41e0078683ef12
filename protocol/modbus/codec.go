// Package modbus implements the Modbus-RTU read-holding-registers codec:
// frame building, CRC-16/Modbus validation, response parsing, exception
// decoding, and payload normalization.
package modbus

import (
	"context"
	"time"

	"github.com/blockpoll/devicesdk/protocol"
	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transport"
)

const readHoldingRegisters byte = 0x03

var exceptionNames = map[byte]string{
	0x01: "Illegal function",
	0x02: "Illegal data address",
	0x03: "Illegal data value",
	0x04: "Slave device failure",
}

// Codec is the Modbus-RTU implementation of protocol.Codec.
type Codec struct {
	// ProtocolVersionTag is stamped on every NormalizedPayload this codec
	// produces, so downstream gating (parser min_protocol_version) has it
	// available without a second lookup.
	ProtocolVersionTag int
}

var _ protocol.Codec = (*Codec)(nil)

// New returns a Codec tagging its payloads with protocolVersion.
func New(protocolVersion int) *Codec {
	return &Codec{ProtocolVersionTag: protocolVersion}
}

// BuildRequest builds an 8-byte read-holding-registers request frame.
func (c *Codec) BuildRequest(deviceAddress, blockAddress, registerCount int) ([]byte, error) {
	if deviceAddress < 0 || deviceAddress > 0xFF {
		return nil, sdkerr.ProtocolError("device address %d out of byte range", deviceAddress)
	}
	if blockAddress < 0 || blockAddress > 0xFFFF {
		return nil, sdkerr.ProtocolError("block address %d out of uint16 range", blockAddress)
	}
	if registerCount < 0 || registerCount > 0xFFFF {
		return nil, sdkerr.ProtocolError("register count %d out of uint16 range", registerCount)
	}

	frame := make([]byte, 6, 8)
	frame[0] = byte(deviceAddress)
	frame[1] = readHoldingRegisters
	frame[2] = byte(blockAddress >> 8)
	frame[3] = byte(blockAddress)
	frame[4] = byte(registerCount >> 8)
	frame[5] = byte(registerCount)

	crc := crc16(frame)
	frame = append(frame, byte(crc), byte(crc>>8))
	return frame, nil
}

// ValidateCRC reports whether frame's trailing two bytes are a correct
// little-endian CRC-16/Modbus of the preceding bytes.
func (c *Codec) ValidateCRC(frame []byte) bool {
	if len(frame) < 3 {
		return false
	}
	body := frame[:len(frame)-2]
	want := crc16(body)
	got := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
	return want == got
}

// ParseFrame splits a raw response into its structural fields. Error
// (exception) frames — function code with the high bit set — have a
// two-byte header (address, function) followed by a single error-code
// byte and the CRC; success frames have a three-byte header (address,
// function, byte_count) followed by byte_count data bytes and the CRC.
func (c *Codec) ParseFrame(frame []byte) (*protocol.Frame, error) {
	if len(frame) < 5 {
		return nil, sdkerr.ProtocolError("frame too short: %d bytes, need at least 5", len(frame))
	}

	address := frame[0]
	function := frame[1]

	if function&0x80 != 0 {
		data := frame[2 : len(frame)-2]
		crc := uint16(frame[len(frame)-2]) | uint16(frame[len(frame)-1])<<8
		return &protocol.Frame{
			Address:   address,
			Function:  function,
			ByteCount: byte(len(data)),
			Data:      data,
			CRC:       crc,
		}, nil
	}

	byteCount := frame[2]
	need := 3 + int(byteCount) + 2
	if len(frame) < need {
		return nil, sdkerr.ProtocolError("frame truncated: declared byte_count %d needs %d bytes, got %d", byteCount, need, len(frame))
	}
	data := frame[3 : 3+int(byteCount)]
	crc := uint16(frame[3+int(byteCount)]) | uint16(frame[3+int(byteCount)+1])<<8

	return &protocol.Frame{
		Address:   address,
		Function:  function,
		ByteCount: byteCount,
		Data:      data,
		CRC:       crc,
	}, nil
}

// Normalize validates a parsed frame and returns its register payload, or
// a ProtocolError describing why the response was rejected.
func (c *Codec) Normalize(resp *protocol.Frame) ([]byte, error) {
	if resp.Function&0x80 != 0 {
		if len(resp.Data) == 0 {
			return nil, sdkerr.ProtocolError("malformed error frame")
		}
		code := resp.Data[0]
		if name, ok := exceptionNames[code]; ok {
			return nil, sdkerr.ProtocolError("%s", name)
		}
		return nil, sdkerr.ProtocolError("Unknown error %d", code)
	}

	if resp.Function != readHoldingRegisters {
		return nil, sdkerr.ProtocolError("unsupported function code 0x%02x", resp.Function)
	}
	if int(resp.ByteCount) != len(resp.Data) {
		return nil, sdkerr.ProtocolError("byte_count %d does not match data length %d", resp.ByteCount, len(resp.Data))
	}
	return resp.Data, nil
}

// ReadBlock builds a request, sends it over t, validates its CRC, parses
// the response frame, and normalizes the payload.
func (c *Codec) ReadBlock(ctx context.Context, t transport.Transport, deviceAddress, blockID, registerCount int, timeout time.Duration) (*protocol.NormalizedPayload, error) {
	req, err := c.BuildRequest(deviceAddress, blockID, registerCount)
	if err != nil {
		return nil, err
	}

	resp, err := t.SendFrame(ctx, req, timeout)
	if err != nil {
		return nil, err
	}

	if !c.ValidateCRC(resp) {
		return nil, sdkerr.ProtocolError("CRC mismatch on response for block %d", blockID)
	}

	frame, err := c.ParseFrame(resp)
	if err != nil {
		return nil, err
	}

	data, err := c.Normalize(frame)
	if err != nil {
		return nil, sdkerr.WrapProtocol(err, "block %d", blockID)
	}

	return &protocol.NormalizedPayload{
		BlockID:         blockID,
		Data:            data,
		DeviceAddress:   deviceAddress,
		ProtocolVersion: c.ProtocolVersionTag,
	}, nil
}
