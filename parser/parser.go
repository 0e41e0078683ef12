// Package parser resolves block schemas by id and decodes normalized
// register bytes into ParsedRecords, gating individual fields by protocol
// version and honoring each schema's strict/non-strict validation mode.
package parser

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/blockpoll/devicesdk/sdkerr"
	"github.com/blockpoll/devicesdk/schema"
)

// DefaultProtocolVersion is used when ParseBlock is called without an
// explicit protocol version override.
const DefaultProtocolVersion = 2000

// Parser resolves schemas by block id and parses raw bytes into
// ParsedRecords. It is safe for concurrent use.
type Parser struct {
	logger *log.Logger

	mu      sync.RWMutex
	schemas map[int]*schema.BlockSchema
}

// New returns a Parser with an empty schema registry. A nil logger
// disables logging.
func New(l *log.Logger) *Parser {
	return &Parser{logger: l, schemas: make(map[int]*schema.BlockSchema)}
}

func (p *Parser) logf(format string, args ...interface{}) {
	if p.logger == nil {
		return
	}
	p.logger.Printf(format, args...)
}

// RegisterSchema inserts s by BlockID. Re-registering the identical object,
// or a structurally equal schema, is a no-op. Registering a schema with a
// different name or field layout at an already-registered id is a
// sdkerr.ConfigError.
func (p *Parser) RegisterSchema(s *schema.BlockSchema) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	existing, ok := p.schemas[s.BlockID]
	if !ok {
		p.schemas[s.BlockID] = s
		return nil
	}
	if existing == s || sameSchema(existing, s) {
		return nil
	}
	return sdkerr.ConfigError("schema conflict at block id %d: %q already registered, got %q", s.BlockID, existing.SchemaName, s.SchemaName)
}

// GetSchema returns the schema registered for id, if any.
func (p *Parser) GetSchema(id int) (*schema.BlockSchema, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s, ok := p.schemas[id]
	return s, ok
}

// ListSchemas returns block id -> schema name for every registered schema.
func (p *Parser) ListSchemas() map[int]string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make(map[int]string, len(p.schemas))
	for id, s := range p.schemas {
		out[id] = s.SchemaName
	}
	return out
}

func sameSchema(a, b *schema.BlockSchema) bool {
	if a.SchemaName != b.SchemaName || a.MinLength != b.MinLength || len(a.Fields) != len(b.Fields) {
		return false
	}
	return fieldSignature(a.Fields) == fieldSignature(b.Fields)
}

func fieldSignature(fields []schema.SchemaField) string {
	sig := ""
	for _, f := range fields {
		sig += fmt.Sprintf("|%s:%d:%d", f.Name(), f.Offset(), f.EndOffset())
	}
	return sig
}

// ParseBlock resolves the schema for id and decodes data into a
// ParsedRecord. If protocolVersion is nil, DefaultProtocolVersion is used
// as the effective version for min_protocol_version gating.
func (p *Parser) ParseBlock(id int, data []byte, validate bool, protocolVersion *int) (*ParsedRecord, error) {
	s, ok := p.GetSchema(id)
	if !ok {
		return nil, sdkerr.ParserError("no schema registered for block id %d", id)
	}

	effective := DefaultProtocolVersion
	if protocolVersion != nil {
		effective = *protocolVersion
	}

	var vr *schema.ValidationResult
	if validate {
		vr = s.Validate(data)
		if err := s.ParserErrorIfInvalidAndStrict(vr); err != nil {
			return nil, err
		}
	}

	values := make(map[string]interface{}, len(s.Fields))
	for _, f := range s.Fields {
		switch leaf := f.(type) {
		case schema.LeafField:
			v, err := p.parseLeaf(leaf, data, effective)
			if err != nil {
				return nil, err
			}
			values[leaf.Name()] = v
		case *schema.FieldGroup:
			nested, err := p.parseGroup(leaf, data, effective)
			if err != nil {
				return nil, err
			}
			values[leaf.Name()] = nested
		}
	}

	return &ParsedRecord{
		BlockID:         s.BlockID,
		Name:            s.SchemaName,
		Values:          values,
		Raw:             data,
		Length:          len(data),
		ProtocolVersion: protocolVersion,
		SchemaVersion:   s.SchemaVersion,
		Timestamp:       time.Now(),
		Validation:      vr,
	}, nil
}

// parseLeaf implements the per-field gating in spec §4.4 step 4.
func (p *Parser) parseLeaf(f schema.LeafField, data []byte, effective int) (interface{}, error) {
	if f.MinProtocolVersion() > effective {
		return nil, nil
	}
	if f.Offset()+fieldExtent(f) > len(data) {
		if f.IsRequired() {
			p.logf("W! required field %q out of bounds: offset %d extent %d buffer %d", f.Name(), f.Offset(), fieldExtent(f), len(data))
		}
		return nil, nil
	}
	v, err := f.ParseValue(data)
	if err != nil {
		if f.IsRequired() {
			return nil, sdkerr.WrapParser(err, "required field %q failed to parse", f.Name())
		}
		return nil, nil
	}
	return v, nil
}

func fieldExtent(f schema.LeafField) int {
	return f.EndOffset() - f.Offset()
}

func (p *Parser) parseGroup(g *schema.FieldGroup, data []byte, effective int) (map[string]interface{}, error) {
	out := make(map[string]interface{}, len(g.Fields))
	for _, sub := range g.Fields {
		v, err := p.parseLeaf(sub, data, effective)
		if err != nil {
			return nil, err
		}
		out[sub.Name()] = v
	}
	return out, nil
}

// SortedBlockIDs returns the block ids of a ListSchemas result in
// ascending order, for callers that want deterministic iteration.
func SortedBlockIDs(m map[int]string) []int {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
