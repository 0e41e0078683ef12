// Package transform compiles and applies the value-transform pipeline
// attached to schema fields: scale, abs, minus, bitmask, shift, clamp, and
// hex_enable_list. A compiled Chain is a pure function from a decoded raw
// value to its final value; compilation happens once, at schema
// construction, so bad arguments are a construction-time error rather
// than a parse-time one.
package transform

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// step is one compiled transform in a Chain.
type step func(v interface{}) (interface{}, error)

// Chain is an ordered, compiled sequence of transform steps.
type Chain struct {
	specs []string
	steps []step
}

// Apply runs the chain left to right: f_n(...f_1(raw)).
func (c *Chain) Apply(raw interface{}) (interface{}, error) {
	if c == nil {
		return raw, nil
	}
	v := raw
	var err error
	for i, s := range c.steps {
		v, err = s(v)
		if err != nil {
			return nil, sdkerr.WrapParser(err, "transform step %d (%s) failed", i, c.specs[i])
		}
	}
	return v, nil
}

// Specs returns the raw, uncompiled specification strings in order.
func (c *Chain) Specs() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.specs))
	copy(out, c.specs)
	return out
}

// Compile builds a Chain from an ordered list of spec strings such as
// "scale:0.1" or "abs". Unknown names or malformed arguments are returned
// as errors — callers (schema construction) must treat these as fatal.
func Compile(specs []string) (*Chain, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	c := &Chain{specs: append([]string(nil), specs...)}
	for _, spec := range specs {
		name, args := splitSpec(spec)
		s, err := compileOne(name, args)
		if err != nil {
			return nil, sdkerr.WrapConfig(err, "invalid transform spec %q", spec)
		}
		c.steps = append(c.steps, s)
	}
	return c, nil
}

func splitSpec(spec string) (name string, args []string) {
	parts := strings.Split(spec, ":")
	return parts[0], parts[1:]
}

func compileOne(name string, args []string) (step, error) {
	switch name {
	case "abs":
		return stepAbs, nil
	case "scale":
		return compileScale(args)
	case "minus":
		return compileMinus(args)
	case "bitmask":
		return compileBitmask(args)
	case "shift":
		return compileShift(args)
	case "clamp":
		return compileClamp(args)
	case "hex_enable_list":
		return compileHexEnableList(args)
	default:
		return nil, fmt.Errorf("unknown transform %q", name)
	}
}

func stepAbs(v interface{}) (interface{}, error) {
	f, err := toFloat64(v)
	if err != nil {
		return nil, err
	}
	return math.Abs(f), nil
}

func compileScale(args []string) (step, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("scale requires exactly one argument, got %d", len(args))
	}
	factor, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("scale factor %q: %w", args[0], err)
	}
	if math.IsNaN(factor) || math.IsInf(factor, 0) || factor == 0 {
		return nil, fmt.Errorf("scale factor must be finite and non-zero, got %v", factor)
	}
	return func(v interface{}) (interface{}, error) {
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return f * factor, nil
	}, nil
}

func compileMinus(args []string) (step, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("minus requires exactly one argument, got %d", len(args))
	}
	c, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("minus constant %q: %w", args[0], err)
	}
	return func(v interface{}) (interface{}, error) {
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		return f - c, nil
	}, nil
}

func compileBitmask(args []string) (step, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("bitmask requires exactly one argument, got %d", len(args))
	}
	mask, err := parseMaybeHexInt(args[0])
	if err != nil {
		return nil, fmt.Errorf("bitmask value %q: %w", args[0], err)
	}
	return func(v interface{}) (interface{}, error) {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return n & mask, nil
	}, nil
}

func compileShift(args []string) (step, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("shift requires exactly one argument, got %d", len(args))
	}
	n, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("shift amount %q: %w", args[0], err)
	}
	if n < 0 {
		return nil, fmt.Errorf("shift amount must be non-negative, got %d", n)
	}
	return func(v interface{}) (interface{}, error) {
		i, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		return i >> uint(n), nil
	}, nil
}

func compileClamp(args []string) (step, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("clamp requires exactly two arguments, got %d", len(args))
	}
	min, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return nil, fmt.Errorf("clamp min %q: %w", args[0], err)
	}
	max, err := strconv.ParseFloat(args[1], 64)
	if err != nil {
		return nil, fmt.Errorf("clamp max %q: %w", args[1], err)
	}
	if !(min < max) {
		return nil, fmt.Errorf("clamp requires min < max, got %v, %v", min, max)
	}
	return func(v interface{}) (interface{}, error) {
		f, err := toFloat64(v)
		if err != nil {
			return nil, err
		}
		if f < min {
			return min, nil
		}
		if f > max {
			return max, nil
		}
		return f, nil
	}, nil
}

// compileHexEnableList implements hex_enable_list(mode, index): treat a
// UInt16 as a 16-bit MSB-first bit vector, chunked into 2-bit groups
// (mode != 3) or 3-bit groups (mode == 3), each chunk interpreted
// little-endian within itself, returning the index-th chunk's value.
func compileHexEnableList(args []string) (step, error) {
	if len(args) != 2 {
		return nil, fmt.Errorf("hex_enable_list requires exactly two arguments, got %d", len(args))
	}
	mode, err := strconv.Atoi(args[0])
	if err != nil {
		return nil, fmt.Errorf("hex_enable_list mode %q: %w", args[0], err)
	}
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return nil, fmt.Errorf("hex_enable_list index %q: %w", args[1], err)
	}
	chunkSize := 2
	if mode == 3 {
		chunkSize = 3
	}
	numChunks := 16 / chunkSize
	if index < 0 || index >= numChunks {
		return nil, fmt.Errorf("hex_enable_list index %d out of range [0,%d)", index, numChunks)
	}
	return func(v interface{}) (interface{}, error) {
		n, err := toInt64(v)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 0xFFFF {
			return nil, fmt.Errorf("hex_enable_list requires a 16-bit value, got %d", n)
		}
		return hexEnableListChunk(uint16(n), chunkSize, index), nil
	}, nil
}

func hexEnableListChunk(val uint16, chunkSize, index int) int64 {
	start := index * chunkSize
	var result int64
	for j := 0; j < chunkSize; j++ {
		bitPos := 15 - (start + j)
		bit := (val >> uint(bitPos)) & 1
		result |= int64(bit) << uint(j)
	}
	return result
}

func parseMaybeHexInt(s string) (int64, error) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseInt(s[2:], 16, 64)
	}
	return strconv.ParseInt(s, 10, 64)
}

func toFloat64(v interface{}) (float64, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case int64:
		return float64(n), nil
	case uint64:
		return float64(n), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to float64", v)
	}
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case int64:
		return n, nil
	case uint64:
		return int64(n), nil
	case float64:
		return int64(n), nil
	default:
		return 0, fmt.Errorf("cannot convert %T to int64", v)
	}
}
