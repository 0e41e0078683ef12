// Package types implements the primitive wire data types used by block
// schemas: big-endian integers, ASCII strings, bitmaps, and enums.
package types

import (
	"fmt"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// Kind tags the variant of a DataType.
type Kind int

const (
	KindUInt8 Kind = iota
	KindInt8
	KindUInt16
	KindInt16
	KindUInt32
	KindInt32
	KindString
	KindBitmap
	KindEnum
)

// EnumValue is returned by an Enum DataType. It carries both the raw
// integer and the mapped label so callers never have to compare enum
// values by string alone (spec open question on UNKNOWN_<n> values).
type EnumValue struct {
	Raw   int64
	Label string
}

// DataType is a tagged variant over the primitive wire types a Field can
// carry. Integer types are always big-endian on the wire.
type DataType struct {
	kind Kind

	// String
	strLen int

	// Bitmap
	bits int

	// Enum
	enumMap  map[int64]string
	enumBase Kind
}

func UInt8() DataType  { return DataType{kind: KindUInt8} }
func Int8() DataType   { return DataType{kind: KindInt8} }
func UInt16() DataType { return DataType{kind: KindUInt16} }
func Int16() DataType  { return DataType{kind: KindInt16} }
func UInt32() DataType { return DataType{kind: KindUInt32} }
func Int32() DataType  { return DataType{kind: KindInt32} }

// String declares an ASCII, null-terminated string field of at most
// length bytes.
func String(length int) DataType {
	return DataType{kind: KindString, strLen: length}
}

// Bitmap declares a bit-width integer treated as an opaque bitmask; bits
// must be one of 8, 16, 32.
func Bitmap(bits int) DataType {
	return DataType{kind: KindBitmap, bits: bits}
}

// Enum declares an integer of the given base type mapped through labels.
// Unknown keys parse to EnumValue{Label: "UNKNOWN_<n>"}.
func Enum(base Kind, mapping map[int64]string) DataType {
	return DataType{kind: KindEnum, enumMap: mapping, enumBase: base}
}

func (t DataType) Kind() Kind { return t.kind }

// Size returns the wire size in bytes of this type.
func (t DataType) Size() int {
	switch t.kind {
	case KindUInt8, KindInt8:
		return 1
	case KindUInt16, KindInt16:
		return 2
	case KindUInt32, KindInt32:
		return 4
	case KindString:
		return t.strLen
	case KindBitmap:
		return t.bits / 8
	case KindEnum:
		return DataType{kind: t.enumBase}.Size()
	default:
		return 0
	}
}

// Parse decodes the value at offset in data. Returned values are int64,
// uint64 (unsigned integers and bitmaps), string, or EnumValue depending
// on Kind.
func (t DataType) Parse(data []byte, offset int) (interface{}, error) {
	size := t.Size()
	if offset < 0 || offset+size > len(data) {
		return nil, sdkerr.ParserError("offset %d+%d exceeds buffer of length %d", offset, size, len(data))
	}
	b := data[offset : offset+size]

	switch t.kind {
	case KindUInt8:
		return uint64(b[0]), nil
	case KindInt8:
		return int64(int8(b[0])), nil
	case KindUInt16:
		return uint64(be16(b)), nil
	case KindInt16:
		return int64(int16(be16(b))), nil
	case KindUInt32:
		return uint64(be32(b)), nil
	case KindInt32:
		return int64(int32(be32(b))), nil
	case KindString:
		return parseASCIIString(b)
	case KindBitmap:
		switch t.bits {
		case 8:
			return uint64(b[0]), nil
		case 16:
			return uint64(be16(b)), nil
		case 32:
			return uint64(be32(b)), nil
		default:
			return nil, sdkerr.ParserError("unsupported bitmap width %d", t.bits)
		}
	case KindEnum:
		base := DataType{kind: t.enumBase}
		raw, err := base.Parse(data, offset)
		if err != nil {
			return nil, err
		}
		n := toInt64(raw)
		if label, ok := t.enumMap[n]; ok {
			return EnumValue{Raw: n, Label: label}, nil
		}
		return EnumValue{Raw: n, Label: fmt.Sprintf("UNKNOWN_%d", n)}, nil
	default:
		return nil, sdkerr.ParserError("unknown data type kind %d", t.kind)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case uint64:
		return int64(n)
	default:
		return 0
	}
}

func be16(b []byte) uint16 {
	return uint16(b[0])<<8 | uint16(b[1])
}

func be32(b []byte) uint32 {
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}

// parseASCIIString reads up to len(b) bytes, stopping at the first NUL,
// rejecting any non-ASCII byte encountered before the terminator.
func parseASCIIString(b []byte) (string, error) {
	end := len(b)
	for i, c := range b {
		if c == 0 {
			end = i
			break
		}
		if c > 0x7F {
			return "", sdkerr.ParserError("non-ASCII byte 0x%02x at string offset %d", c, i)
		}
	}
	return string(b[:end]), nil
}
