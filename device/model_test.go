package device_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/device"
	"github.com/blockpoll/devicesdk/parser"
)

func TestUpdateFromBlockDispatchesHandler(t *testing.T) {
	m := device.New("sn1", "elite200v2", 2000, nil)

	var got *parser.ParsedRecord
	m.RegisterHandler(1300, func(r *parser.ParsedRecord) {
		got = r
		m.MergeState(r.Values, "grid")
	})

	rec := &parser.ParsedRecord{BlockID: 1300, Name: "grid_info", Values: map[string]interface{}{"frequency": 50.0}, Timestamp: time.Now()}
	m.UpdateFromBlock(rec)

	require.Same(t, rec, got)

	stored, ok := m.GetBlock(1300)
	require.True(t, ok)
	require.Same(t, rec, stored)

	state := m.GetState()
	require.Equal(t, 50.0, state["frequency"])

	groupState := m.GetGroupState("grid")
	require.Equal(t, 50.0, groupState["frequency"])
}

func TestUpdateFromBlockNoHandlerDoesNotPanic(t *testing.T) {
	m := device.New("sn1", "elite200v2", 2000, nil)
	rec := &parser.ParsedRecord{BlockID: 42, Name: "unhandled"}
	require.NotPanics(t, func() { m.UpdateFromBlock(rec) })
}

func TestGetStateSnapshotIsIndependent(t *testing.T) {
	m := device.New("sn1", "x", 2000, nil)
	m.MergeState(map[string]interface{}{"list": []interface{}{1, 2, 3}}, "")

	snap := m.GetState()
	list := snap["list"].([]interface{})
	list[0] = 99

	snap2 := m.GetState()
	require.Equal(t, 1, snap2["list"].([]interface{})[0])
}

func TestGetGroupStateEmptyForUnknownGroup(t *testing.T) {
	m := device.New("sn1", "x", 2000, nil)
	require.Empty(t, m.GetGroupState("nope"))
}
