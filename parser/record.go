package parser

import (
	"time"

	"github.com/blockpoll/devicesdk/schema"
)

// ParsedRecord is the result of parsing one block. ParseBlock returns a
// pointer, and the same pointer is handed to callers and to the device
// model; nothing in this package mutates it afterward.
type ParsedRecord struct {
	BlockID         int
	Name            string
	Values          map[string]interface{}
	Raw             []byte
	Length          int
	ProtocolVersion *int
	SchemaVersion   int
	Timestamp       time.Time
	Validation      *schema.ValidationResult
}

// GetInt reads an integer-valued field, converting from whichever numeric
// representation the parser stored it as. ok is false if the key is
// absent, nil, or not numeric.
func (r *ParsedRecord) GetInt(name string) (int64, bool) {
	v, found := r.Values[name]
	if !found || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case uint64:
		return int64(n), true
	case float64:
		return int64(n), true
	default:
		return 0, false
	}
}

// GetFloat reads a float-valued field.
func (r *ParsedRecord) GetFloat(name string) (float64, bool) {
	v, found := r.Values[name]
	if !found || v == nil {
		return 0, false
	}
	switch n := v.(type) {
	case float64:
		return n, true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// GetString reads a string-valued field.
func (r *ParsedRecord) GetString(name string) (string, bool) {
	v, found := r.Values[name]
	if !found || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}
