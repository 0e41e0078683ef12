package asyncclient_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/asyncclient"
	"github.com/blockpoll/devicesdk/client"
	"github.com/blockpoll/devicesdk/profile"
	"github.com/blockpoll/devicesdk/schema"
	"github.com/blockpoll/devicesdk/transport/mqtt/mqtttest"
	"github.com/blockpoll/devicesdk/types"
)

const frequencyBlock = 1300

func frequencySchema() *schema.BlockSchema {
	s, err := schema.New(frequencyBlock, "grid_info").
		MinLength(4).
		Field(schema.FieldSpec{Name: "frequency", Offset: 0, Type: types.UInt16(), Transform: []string{"scale:0.1"}}).
		Build()
	if err != nil {
		panic(err)
	}
	return s
}

func gridProfile() *profile.DeviceProfile {
	return &profile.DeviceProfile{
		Model:           "elite200v2",
		TypeID:          "SN1",
		ProtocolVersion: 2000,
		Groups: map[string]profile.GroupDef{
			"grid": {Name: "grid", Blocks: []int{frequencyBlock}},
		},
	}
}

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

func echoResponder(data []byte) mqtttest.Responder {
	return func(req []byte) ([]byte, error) {
		addr := req[0]
		raw := []byte{addr, 0x03, byte(len(data))}
		raw = append(raw, data...)
		crc := crcOf(raw)
		raw = append(raw, byte(crc), byte(crc>>8))
		return raw, nil
	}
}

func newAsyncTestClient(t *testing.T) (*asyncclient.AsyncClient, *mqtttest.Transport) {
	t.Helper()
	tr := mqtttest.New()
	tr.Responder = echoResponder([]byte{0x01, 0xF4, 0x00, 0x00})

	reg := schema.NewRegistry()
	reg.Register(frequencySchema())

	c, err := client.NewClient(client.NewClientOptions(tr, gridProfile()).SetRegistry(reg))
	require.NoError(t, err)
	return asyncclient.New(c, nil), tr
}

func TestConnectAsyncThenReadBlockAsync(t *testing.T) {
	a, _ := newAsyncTestClient(t)

	select {
	case err := <-a.ConnectAsync(context.Background()):
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("connect timed out")
	}

	select {
	case res := <-a.ReadBlockAsync(context.Background(), frequencyBlock):
		require.NoError(t, res.Err)
		require.Equal(t, 50.0, res.Record.Values["frequency"])
	case <-time.After(time.Second):
		t.Fatal("read timed out")
	}
}

func TestConcurrentReadBlockAsyncCallsBothComplete(t *testing.T) {
	a, _ := newAsyncTestClient(t)
	require.NoError(t, <-a.ConnectAsync(context.Background()))

	ch1 := a.ReadBlockAsync(context.Background(), frequencyBlock)
	ch2 := a.ReadBlockAsync(context.Background(), frequencyBlock)

	r1 := <-ch1
	r2 := <-ch2
	require.NoError(t, r1.Err)
	require.NoError(t, r2.Err)
}

func TestReadGroupAsyncReturnsGroupResult(t *testing.T) {
	a, _ := newAsyncTestClient(t)
	require.NoError(t, <-a.ConnectAsync(context.Background()))

	res := <-a.ReadGroupAsync(context.Background(), "grid", true)
	require.NoError(t, res.Err)
	require.Len(t, res.Result.Records, 1)
}

func TestStreamGroupAsyncDeliversBlocks(t *testing.T) {
	a, _ := newAsyncTestClient(t)
	require.NoError(t, <-a.ConnectAsync(context.Background()))

	stream, err := a.StreamGroupAsync(context.Background(), "grid", true)
	require.NoError(t, err)

	var count int
	for r := range stream {
		require.NoError(t, r.Err)
		count++
	}
	require.Equal(t, 1, count)
}

func TestDisconnectAsyncIsIdempotent(t *testing.T) {
	a, _ := newAsyncTestClient(t)
	require.NoError(t, <-a.ConnectAsync(context.Background()))
	require.NoError(t, <-a.DisconnectAsync(context.Background()))
	require.NoError(t, <-a.DisconnectAsync(context.Background()))
}
