package schema

import (
	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/transform"
	"github.com/blockpoll/devicesdk/types"
)

// Builder assembles a BlockSchema field by field, compiling transform
// chains and checking packed-field bit invariants as each field is added.
// Build() returns the first construction error encountered, if any.
type Builder struct {
	schema BlockSchema
	err    error
}

// New starts a schema builder for the given block id and name.
func New(blockID int, name string) *Builder {
	return &Builder{schema: BlockSchema{
		BlockID:            blockID,
		SchemaName:         name,
		ProtocolVersion:    0,
		SchemaVersion:      1,
		VerificationStatus: VerifiedUnknown,
	}}
}

func (b *Builder) Description(d string) *Builder {
	b.schema.Description = d
	return b
}

func (b *Builder) MinLength(n int) *Builder {
	b.schema.MinLength = n
	return b
}

func (b *Builder) ProtocolVersion(v int) *Builder {
	b.schema.ProtocolVersion = v
	return b
}

func (b *Builder) SchemaVersion(v int) *Builder {
	b.schema.SchemaVersion = v
	return b
}

func (b *Builder) Strict(strict bool) *Builder {
	b.schema.Strict = strict
	return b
}

func (b *Builder) Verification(v VerificationStatus) *Builder {
	b.schema.VerificationStatus = v
	return b
}

// FieldSpec is the field-construction arguments accepted by Builder.Field.
type FieldSpec struct {
	Name            string
	Offset          int
	Type            types.DataType
	Unit            string
	Required        bool
	Transform       []string
	MinProtoVersion int
}

func (b *Builder) Field(spec FieldSpec) *Builder {
	if b.err != nil {
		return b
	}
	chain, err := transform.Compile(spec.Transform)
	if err != nil {
		b.err = sdkerr.WrapConfig(err, "field %q", spec.Name)
		return b
	}
	b.schema.Fields = append(b.schema.Fields, &Field{
		FieldName:       spec.Name,
		FieldOffset:     spec.Offset,
		Type:            spec.Type,
		Unit:            spec.Unit,
		Required:        spec.Required,
		Transform:       chain,
		MinProtoVersion: spec.MinProtoVersion,
	})
	return b
}

// ArraySpec is the array-field construction arguments accepted by Builder.Array.
type ArraySpec struct {
	Name            string
	Offset          int
	Count           int
	Stride          int
	ItemType        types.DataType
	Required        bool
	Transform       []string
	MinProtoVersion int
}

func (b *Builder) Array(spec ArraySpec) *Builder {
	if b.err != nil {
		return b
	}
	if spec.Count < 1 {
		b.err = sdkerr.ConfigError("array field %q: count must be >= 1, got %d", spec.Name, spec.Count)
		return b
	}
	if spec.Stride < 1 {
		b.err = sdkerr.ConfigError("array field %q: stride must be >= 1, got %d", spec.Name, spec.Stride)
		return b
	}
	chain, err := transform.Compile(spec.Transform)
	if err != nil {
		b.err = sdkerr.WrapConfig(err, "array field %q", spec.Name)
		return b
	}
	b.schema.Fields = append(b.schema.Fields, &ArrayField{
		FieldName:       spec.Name,
		FieldOffset:     spec.Offset,
		Count:           spec.Count,
		Stride:          spec.Stride,
		ItemType:        spec.ItemType,
		Required:        spec.Required,
		Transform:       chain,
		MinProtoVersion: spec.MinProtoVersion,
	})
	return b
}

// SubFieldSpec describes one bit-packed sub-field ("start:end" as two ints).
type SubFieldSpec struct {
	Name      string
	BitStart  int
	BitEnd    int
	Enum      map[int64]string
	Transform []string
}

// PackedSpec is the packed-field construction arguments accepted by
// Builder.Packed.
type PackedSpec struct {
	Name            string
	Offset          int
	Count           int
	Stride          int
	BaseType        types.DataType
	Fields          []SubFieldSpec
	Required        bool
	MinProtoVersion int
}

func (b *Builder) Packed(spec PackedSpec) *Builder {
	if b.err != nil {
		return b
	}
	if spec.Count < 1 {
		b.err = sdkerr.ConfigError("packed field %q: count must be >= 1, got %d", spec.Name, spec.Count)
		return b
	}
	if spec.Stride < 1 {
		b.err = sdkerr.ConfigError("packed field %q: stride must be >= 1, got %d", spec.Name, spec.Stride)
		return b
	}
	baseBits := spec.BaseType.Size() * 8
	subFields := make([]SubField, 0, len(spec.Fields))
	for _, sf := range spec.Fields {
		if sf.BitStart < 0 || sf.BitEnd <= sf.BitStart {
			b.err = sdkerr.ConfigError("packed field %q, sub-field %q: invalid bit range %d:%d", spec.Name, sf.Name, sf.BitStart, sf.BitEnd)
			return b
		}
		if sf.BitEnd > baseBits {
			b.err = sdkerr.ConfigError("packed field %q, sub-field %q: bit_end %d exceeds base type width %d", spec.Name, sf.Name, sf.BitEnd, baseBits)
			return b
		}
		chain, err := transform.Compile(sf.Transform)
		if err != nil {
			b.err = sdkerr.WrapConfig(err, "packed field %q, sub-field %q", spec.Name, sf.Name)
			return b
		}
		subFields = append(subFields, SubField{
			FieldName: sf.Name,
			BitStart:  sf.BitStart,
			BitEnd:    sf.BitEnd,
			Enum:      sf.Enum,
			Transform: chain,
		})
	}
	b.schema.Fields = append(b.schema.Fields, &PackedField{
		FieldName:       spec.Name,
		FieldOffset:     spec.Offset,
		Count:           spec.Count,
		Stride:          spec.Stride,
		BaseType:        spec.BaseType,
		Fields:          subFields,
		Required:        spec.Required,
		MinProtoVersion: spec.MinProtoVersion,
	})
	return b
}

// Group adds a FieldGroup made of absolute-offset Fields built with
// Builder.Field-like specs.
func (b *Builder) Group(name string, groupRequired bool, fields []FieldSpec) *Builder {
	if b.err != nil {
		return b
	}
	group := &FieldGroup{GroupName: name, GroupRequired: groupRequired}
	for _, spec := range fields {
		chain, err := transform.Compile(spec.Transform)
		if err != nil {
			b.err = sdkerr.WrapConfig(err, "group %q field %q", name, spec.Name)
			return b
		}
		group.Fields = append(group.Fields, &Field{
			FieldName:       spec.Name,
			FieldOffset:     spec.Offset,
			Type:            spec.Type,
			Unit:            spec.Unit,
			Required:        spec.Required,
			Transform:       chain,
			MinProtoVersion: spec.MinProtoVersion,
		})
	}
	b.schema.Fields = append(b.schema.Fields, group)
	return b
}

// Build finalizes the schema, returning any construction error encountered.
func (b *Builder) Build() (*BlockSchema, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.schema.SchemaName == "" {
		return nil, sdkerr.ConfigError("schema must have a name")
	}
	seen := map[string]bool{}
	for _, f := range b.schema.Fields {
		if seen[f.Name()] {
			return nil, sdkerr.ConfigError("duplicate field name %q in schema %d", f.Name(), b.schema.BlockID)
		}
		seen[f.Name()] = true
	}
	s := b.schema
	return &s, nil
}
