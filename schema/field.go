// Package schema implements the declarative block-schema model: Field,
// ArrayField, PackedField/SubField, FieldGroup and BlockSchema, along with
// buffer validation. Schemas are immutable once built; the builder in
// builder.go is the only way to construct one, so construction-time
// invariants (transform compilation, packed-field bit ranges) are always
// enforced.
package schema

import (
	"fmt"

	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transform"
	"github.com/blockpoll/devicesdk/types"
)

// SchemaField is the common surface of every field kind for the purposes
// of computing a schema's layout (offset/extent). Leaf kinds additionally
// implement LeafField.
type SchemaField interface {
	Name() string
	Offset() int
	EndOffset() int
}

// LeafField is a SchemaField that can be parsed directly from a byte
// buffer: Field, ArrayField, PackedField.
type LeafField interface {
	SchemaField
	MinProtocolVersion() int
	IsRequired() bool
	// ParseValue decodes the value assuming bounds have already been
	// verified by the caller (see parser.ParseBlock).
	ParseValue(data []byte) (interface{}, error)
}

// Field is a single fixed-offset, fixed-type value.
type Field struct {
	FieldName       string
	FieldOffset     int
	Type            types.DataType
	Unit            string
	Required        bool
	Transform       *transform.Chain
	MinProtoVersion int
}

func (f *Field) Name() string              { return f.FieldName }
func (f *Field) Offset() int               { return f.FieldOffset }
func (f *Field) Size() int                 { return f.Type.Size() }
func (f *Field) EndOffset() int            { return f.FieldOffset + f.Size() }
func (f *Field) MinProtocolVersion() int   { return f.MinProtoVersion }
func (f *Field) IsRequired() bool          { return f.Required }
func (f *Field) ParseValue(data []byte) (interface{}, error) {
	raw, err := f.Type.Parse(data, f.FieldOffset)
	if err != nil {
		return nil, err
	}
	return f.Transform.Apply(raw)
}

// ArrayField is Count consecutive items of ItemType spaced Stride bytes
// apart, starting at Offset.
type ArrayField struct {
	FieldName       string
	FieldOffset     int
	Count           int
	Stride          int
	ItemType        types.DataType
	Transform       *transform.Chain
	Required        bool
	MinProtoVersion int
}

func (a *ArrayField) Name() string            { return a.FieldName }
func (a *ArrayField) Offset() int             { return a.FieldOffset }
func (a *ArrayField) Size() int               { return a.Count * a.Stride }
func (a *ArrayField) EndOffset() int          { return a.FieldOffset + a.Size() }
func (a *ArrayField) MinProtocolVersion() int { return a.MinProtoVersion }
func (a *ArrayField) IsRequired() bool        { return a.Required }
func (a *ArrayField) ParseValue(data []byte) (interface{}, error) {
	out := make([]interface{}, a.Count)
	for i := 0; i < a.Count; i++ {
		raw, err := a.ItemType.Parse(data, a.FieldOffset+i*a.Stride)
		if err != nil {
			return nil, err
		}
		v, err := a.Transform.Apply(raw)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// SubField is one bit-packed sub-value within a PackedField element.
type SubField struct {
	FieldName string
	BitStart  int
	BitEnd    int // exclusive
	Enum      map[int64]string
	Transform *transform.Chain
}

func (s *SubField) mask() uint64 { return (uint64(1) << uint(s.BitEnd-s.BitStart)) - 1 }

// Extract pulls this sub-field's value out of a packed base-type integer.
func (s *SubField) Extract(packed uint64) (interface{}, error) {
	val := (packed >> uint(s.BitStart)) & s.mask()
	var v interface{} = int64(val)
	if s.Enum != nil {
		n := int64(val)
		if label, ok := s.Enum[n]; ok {
			v = types.EnumValue{Raw: n, Label: label}
		} else {
			v = types.EnumValue{Raw: n, Label: fmt.Sprintf("UNKNOWN_%d", n)}
		}
	}
	return s.Transform.Apply(v)
}

// PackedField is Count consecutive BaseType elements, each further split
// into bit-packed SubFields.
type PackedField struct {
	FieldName       string
	FieldOffset     int
	Count           int
	Stride          int
	BaseType        types.DataType
	Fields          []SubField
	Required        bool
	MinProtoVersion int
}

func (p *PackedField) Name() string            { return p.FieldName }
func (p *PackedField) Offset() int              { return p.FieldOffset }
func (p *PackedField) Size() int                { return p.Count * p.Stride }
func (p *PackedField) EndOffset() int           { return p.FieldOffset + p.Size() }
func (p *PackedField) MinProtocolVersion() int  { return p.MinProtoVersion }
func (p *PackedField) IsRequired() bool         { return p.Required }
func (p *PackedField) ParseValue(data []byte) (interface{}, error) {
	out := make([]interface{}, p.Count)
	for i := 0; i < p.Count; i++ {
		raw, err := p.BaseType.Parse(data, p.FieldOffset+i*p.Stride)
		if err != nil {
			return nil, err
		}
		packed := rawToUint64(raw)
		elem := make(map[string]interface{}, len(p.Fields))
		for _, sf := range p.Fields {
			v, err := sf.Extract(packed)
			if err != nil {
				return nil, err
			}
			elem[sf.FieldName] = v
		}
		out[i] = elem
	}
	return out, nil
}

func rawToUint64(raw interface{}) uint64 {
	switch n := raw.(type) {
	case uint64:
		return n
	case int64:
		return uint64(n)
	default:
		return 0
	}
}

// FieldGroup is a named bundle of Fields addressed by absolute offsets
// into the block (not relative to the group).
type FieldGroup struct {
	GroupName    string
	Fields       []*Field
	GroupRequired bool // advisory only; each Field.Required drives validation
}

func (g *FieldGroup) Name() string { return g.GroupName }

func (g *FieldGroup) Offset() int {
	if len(g.Fields) == 0 {
		return 0
	}
	min := g.Fields[0].FieldOffset
	for _, f := range g.Fields[1:] {
		if f.FieldOffset < min {
			min = f.FieldOffset
		}
	}
	return min
}

func (g *FieldGroup) EndOffset() int {
	max := 0
	for i, f := range g.Fields {
		if i == 0 || f.EndOffset() > max {
			max = f.EndOffset()
		}
	}
	return max
}

// Parse decodes each sub-field independently; it checks each sub-field's
// bounds itself, and out-of-bounds sub-fields become nil in the returned
// map rather than aborting the whole group. A parse failure on a required
// sub-field is returned as a ParserError; on an optional one the value
// becomes nil.
func (g *FieldGroup) Parse(data []byte) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(g.Fields))
	for _, f := range g.Fields {
		if f.EndOffset() > len(data) {
			out[f.FieldName] = nil
			continue
		}
		v, err := f.ParseValue(data)
		if err != nil {
			if f.Required {
				return nil, sdkerr.WrapParser(err, "required group field %q failed to parse", f.FieldName)
			}
			out[f.FieldName] = nil
			continue
		}
		out[f.FieldName] = v
	}
	return out, nil
}
