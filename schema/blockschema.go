package schema

import (
	"fmt"

	"github.com/blockpoll/devicesdk/sdkerr"
)

// VerificationStatus records how confident the catalog author is that a
// schema's byte layout matches the real device, since most schemas are
// derived from partial captures rather than a vendor datasheet.
type VerificationStatus string

const (
	VerifiedConfirmed VerificationStatus = "confirmed"
	VerifiedInferred  VerificationStatus = "inferred"
	VerifiedUnknown   VerificationStatus = "unknown"
)

// BlockSchema describes the decodable layout of one block id. It is
// immutable after Build(); Fields is in deterministic (declaration) order.
type BlockSchema struct {
	BlockID            int
	SchemaName         string
	Description        string
	MinLength          int
	Fields             []SchemaField
	ProtocolVersion    int
	SchemaVersion      int
	Strict             bool
	VerificationStatus VerificationStatus
}

// MaxFieldEnd is the maximum end-offset across all fields, descending
// into FieldGroup sub-fields.
func (s *BlockSchema) MaxFieldEnd() int {
	max := 0
	for _, f := range s.Fields {
		if end := f.EndOffset(); end > max {
			max = end
		}
	}
	return max
}

// ValidationResult is the outcome of validating a byte buffer against a
// BlockSchema. It is never raised as an error by itself — strict mode is
// what converts an invalid result into a parser error (see package parser).
type ValidationResult struct {
	Valid           bool
	Errors          []string
	MissingOptional []string
	Warnings        []string
}

func (v *ValidationResult) addError(format string, args ...interface{}) {
	v.Valid = false
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

func (v *ValidationResult) addMissing(name string) {
	v.MissingOptional = append(v.MissingOptional, name)
}

func (v *ValidationResult) addWarning(format string, args ...interface{}) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}

// Validate checks a byte buffer against the schema's declared fields.
func (s *BlockSchema) Validate(data []byte) *ValidationResult {
	res := &ValidationResult{Valid: true}

	if len(data) < s.MinLength {
		res.addError("buffer length %d is shorter than min_length %d", len(data), s.MinLength)
		return res
	}

	for _, f := range s.Fields {
		switch leaf := f.(type) {
		case LeafField:
			validateLeaf(res, leaf, data)
		case *FieldGroup:
			for _, sub := range leaf.Fields {
				validateLeaf(res, sub, data)
			}
		}
	}

	if s.Strict {
		if maxEnd := s.MaxFieldEnd(); len(data) > maxEnd {
			res.addWarning("extra data: buffer length %d exceeds max field end %d", len(data), maxEnd)
		}
	}

	return res
}

func validateLeaf(res *ValidationResult, f LeafField, data []byte) {
	if f.Offset()+fieldSize(f) > len(data) {
		if f.IsRequired() {
			res.addError("required field %q at offset %d extends past buffer of length %d", f.Name(), f.Offset(), len(data))
		} else {
			res.addMissing(f.Name())
		}
	}
}

func fieldSize(f LeafField) int {
	return f.EndOffset() - f.Offset()
}

// ParserErrorIfInvalidAndStrict is a convenience used by package parser: it
// converts a ValidationResult into a ParserError only when the schema is
// strict and validation failed.
func (s *BlockSchema) ParserErrorIfInvalidAndStrict(res *ValidationResult) error {
	if s.Strict && !res.Valid {
		return sdkerr.ParserError("strict validation failed for block %d (%s): %v", s.BlockID, s.SchemaName, res.Errors)
	}
	return nil
}
