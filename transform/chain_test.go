package transform_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/blockpoll/devicesdk/transform"
)

func TestScale(t *testing.T) {
	c, err := transform.Compile([]string{"scale:0.1"})
	require.NoError(t, err)
	v, err := c.Apply(uint64(500))
	require.NoError(t, err)
	require.InDelta(t, 50.0, v.(float64), 1e-9)
}

func TestAbsThenScale(t *testing.T) {
	c, err := transform.Compile([]string{"abs", "scale:0.1"})
	require.NoError(t, err)
	v, err := c.Apply(int64(-52))
	require.NoError(t, err)
	require.InDelta(t, 5.2, v.(float64), 1e-9)
}

func TestScaleZeroFactorRejected(t *testing.T) {
	_, err := transform.Compile([]string{"scale:0"})
	require.Error(t, err)
}

func TestScaleNonFiniteRejected(t *testing.T) {
	_, err := transform.Compile([]string{"scale:NaN"})
	require.Error(t, err)
}

func TestBitmaskHex(t *testing.T) {
	c, err := transform.Compile([]string{"bitmask:0x0F"})
	require.NoError(t, err)
	v, err := c.Apply(int64(0xAB))
	require.NoError(t, err)
	require.Equal(t, int64(0x0B), v)
}

func TestShift(t *testing.T) {
	c, err := transform.Compile([]string{"shift:4"})
	require.NoError(t, err)
	v, err := c.Apply(int64(0xF0))
	require.NoError(t, err)
	require.Equal(t, int64(0x0F), v)
}

func TestClamp(t *testing.T) {
	c, err := transform.Compile([]string{"clamp:0:10"})
	require.NoError(t, err)

	v, err := c.Apply(float64(15))
	require.NoError(t, err)
	require.Equal(t, 10.0, v)

	v, err = c.Apply(float64(-5))
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
}

func TestClampInvalidRange(t *testing.T) {
	_, err := transform.Compile([]string{"clamp:10:0"})
	require.Error(t, err)
}

func TestUnknownTransformFailsAtCompile(t *testing.T) {
	_, err := transform.Compile([]string{"frobnicate"})
	require.Error(t, err)
}

// TestHexEnableList2BitMode matches spec scenario 6: 0x1234 under 2-bit
// chunking yields [0,2,0,1,0,3,2,0].
func TestHexEnableList2BitMode(t *testing.T) {
	expected := []int64{0, 2, 0, 1, 0, 3, 2, 0}
	for i, want := range expected {
		c, err := transform.Compile([]string{"hex_enable_list:0:" + itoa(i)})
		require.NoError(t, err)
		v, err := c.Apply(uint64(0x1234))
		require.NoError(t, err)
		require.Equal(t, want, v, "chunk %d", i)
	}
}

func TestHexEnableListOutOfRangeIndexFailsAtCompile(t *testing.T) {
	_, err := transform.Compile([]string{"hex_enable_list:0:8"})
	require.Error(t, err)
}

func TestHexEnableListMode3HasFiveChunks(t *testing.T) {
	_, err := transform.Compile([]string{"hex_enable_list:3:4"})
	require.NoError(t, err)
	_, err = transform.Compile([]string{"hex_enable_list:3:5"})
	require.Error(t, err)
}

func itoa(n int) string {
	digits := "0123456789"
	if n == 0 {
		return "0"
	}
	out := ""
	for n > 0 {
		out = string(digits[n%10]) + out
		n /= 10
	}
	return out
}
