package modbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/protocol/modbus"
)

func TestCRCRoundTrip(t *testing.T) {
	c := modbus.New(2000)
	req, err := c.BuildRequest(1, 1300, 16)
	require.NoError(t, err)
	require.True(t, c.ValidateCRC(req))

	frame, err := c.ParseFrame(req)
	require.NoError(t, err)
	require.Equal(t, byte(1), frame.Address)
	require.Equal(t, byte(0x03), frame.Function)
}

func TestNormalizeIdentityOnValidResponse(t *testing.T) {
	c := modbus.New(2000)
	data := []byte{0x01, 0xF4, 0x00, 0x00}
	resp := buildSuccessResponse(t, c, 1, data)

	frame, err := c.ParseFrame(resp)
	require.NoError(t, err)

	out, err := c.Normalize(frame)
	require.NoError(t, err)
	require.Equal(t, data, out)
}

func TestModbusException(t *testing.T) {
	c := modbus.New(2000)
	resp := buildErrorResponse(t, 1, 0x83, 0x02)

	require.True(t, c.ValidateCRC(resp))
	frame, err := c.ParseFrame(resp)
	require.NoError(t, err)

	_, err = c.Normalize(frame)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Illegal data address")
}

func TestUnknownExceptionCode(t *testing.T) {
	c := modbus.New(2000)
	resp := buildErrorResponse(t, 1, 0x83, 0x09)

	frame, err := c.ParseFrame(resp)
	require.NoError(t, err)
	_, err = c.Normalize(frame)
	require.Error(t, err)
	require.Contains(t, err.Error(), "Unknown error 9")
}

func TestByteCountMismatch(t *testing.T) {
	c := modbus.New(2000)
	// Declares byte_count=4 but only provides 2 data bytes before CRC.
	raw := []byte{0x01, 0x03, 0x04, 0x00, 0x01}
	crc := crcOf(raw)
	raw = append(raw, byte(crc), byte(crc>>8))

	_, err := c.ParseFrame(raw)
	require.Error(t, err) // declared length exceeds actual frame
}

func TestFrameTooShort(t *testing.T) {
	c := modbus.New(2000)
	_, err := c.ParseFrame([]byte{0x01, 0x03})
	require.Error(t, err)
}

func TestReadBlockEndToEnd(t *testing.T) {
	c := modbus.New(2000)
	data := make([]byte, 32)
	data[0], data[1] = 0x01, 0xF4

	tr := &fakeTransport{respond: func(frame []byte) []byte {
		return buildSuccessResponse(t, c, 1, data)
	}}

	payload, err := c.ReadBlock(context.Background(), tr, 1, 1300, 16, time.Second)
	require.NoError(t, err)
	require.Equal(t, data, payload.Data)
	require.Equal(t, 1300, payload.BlockID)
}

type fakeTransport struct {
	respond func(frame []byte) []byte
}

func (f *fakeTransport) Connect(ctx context.Context) error    { return nil }
func (f *fakeTransport) Disconnect(ctx context.Context) error  { return nil }
func (f *fakeTransport) IsConnected() bool                     { return true }
func (f *fakeTransport) SendFrame(ctx context.Context, frame []byte, timeout time.Duration) ([]byte, error) {
	return f.respond(frame), nil
}

func buildSuccessResponse(t *testing.T, c *modbus.Codec, addr int, data []byte) []byte {
	t.Helper()
	raw := []byte{byte(addr), 0x03, byte(len(data))}
	raw = append(raw, data...)
	crc := crcOf(raw)
	raw = append(raw, byte(crc), byte(crc>>8))
	return raw
}

func buildErrorResponse(t *testing.T, addr int, function byte, code byte) []byte {
	t.Helper()
	raw := []byte{byte(addr), function, code}
	crc := crcOf(raw)
	raw = append(raw, byte(crc), byte(crc>>8))
	return raw
}

// crcOf duplicates the CRC-16/Modbus algorithm for test fixture
// construction, independent of the implementation under test.
func crcOf(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b)
		for i := 0; i < 8; i++ {
			if crc&1 != 0 {
				crc = (crc >> 1) ^ 0xA001
			} else {
				crc >>= 1
			}
		}
	}
	return crc
}
