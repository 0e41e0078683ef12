// Package device implements the per-device state model: stored
// per-block records, a flat projected state map, and named group
// projections, each kept consistent by a single monitor (sync.Mutex).
// Registered handlers run outside that monitor to avoid re-entrant
// locking when a handler itself calls back into the model.
package device

import (
	"log"
	"sync"
	"time"

	"github.com/blockpoll/devicesdk/parser"
)

// Handler is invoked once per UpdateFromBlock call for the block id it was
// registered against.
type Handler func(record *parser.ParsedRecord)

// Model is the stateful, per-device projection described in spec §3/§4.7.
// It is safe for concurrent use.
type Model struct {
	DeviceID        string
	ModelName       string
	ProtocolVersion int

	logger *log.Logger

	mu         sync.Mutex
	lastUpdate time.Time
	blocks     map[int]*parser.ParsedRecord
	state      map[string]interface{}
	groupState map[string]map[string]interface{}
	groupLast  map[string]time.Time
	handlers   map[int]Handler
}

// New returns an empty device Model. A nil logger disables logging.
func New(deviceID, modelName string, protocolVersion int, l *log.Logger) *Model {
	return &Model{
		DeviceID:        deviceID,
		ModelName:       modelName,
		ProtocolVersion: protocolVersion,
		logger:          l,
		blocks:          make(map[int]*parser.ParsedRecord),
		state:           make(map[string]interface{}),
		groupState:      make(map[string]map[string]interface{}),
		groupLast:       make(map[string]time.Time),
		handlers:        make(map[int]Handler),
	}
}

func (m *Model) logf(format string, args ...interface{}) {
	if m.logger == nil {
		return
	}
	m.logger.Printf(format, args...)
}

// RegisterHandler records fn to be invoked whenever UpdateFromBlock
// receives a record for blockID.
func (m *Model) RegisterHandler(blockID int, fn Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[blockID] = fn
}

// UpdateFromBlock stores record under the monitor, bumps LastUpdate, and
// then — outside the monitor — invokes the handler registered for its
// block id, if any; otherwise logs that the block is unhandled.
func (m *Model) UpdateFromBlock(record *parser.ParsedRecord) {
	m.mu.Lock()
	m.blocks[record.BlockID] = record
	m.lastUpdate = time.Now()
	handler := m.handlers[record.BlockID]
	m.mu.Unlock()

	if handler != nil {
		handler(record)
	} else {
		m.logf("D! unknown block %d (%s): no handler registered", record.BlockID, record.Name)
	}
}

// MergeState shallow-merges values into the flat state map and, if group
// is non-empty, into that group's projection as well.
func (m *Model) MergeState(values map[string]interface{}, group string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range values {
		m.state[k] = v
	}
	if group != "" {
		gs, ok := m.groupState[group]
		if !ok {
			gs = make(map[string]interface{})
			m.groupState[group] = gs
		}
		for k, v := range values {
			gs[k] = v
		}
		m.groupLast[group] = time.Now()
	}
}

// GetState returns a snapshot of the flat state map. List values are
// copied shallowly so callers cannot mutate internal state by appending
// to a returned slice.
func (m *Model) GetState() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return snapshot(m.state)
}

// GetGroupState returns a snapshot of the named group's projection, or an
// empty map if the group has never been written to.
func (m *Model) GetGroupState(group string) map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	gs, ok := m.groupState[group]
	if !ok {
		return map[string]interface{}{}
	}
	return snapshot(gs)
}

// GetBlock returns the last ParsedRecord stored for blockID, if any.
func (m *Model) GetBlock(blockID int) (*parser.ParsedRecord, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.blocks[blockID]
	return r, ok
}

// LastUpdate returns the time of the most recent UpdateFromBlock call.
func (m *Model) LastUpdate() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastUpdate
}

func snapshot(src map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(src))
	for k, v := range src {
		if list, ok := v.([]interface{}); ok {
			cp := make([]interface{}, len(list))
			copy(cp, list)
			out[k] = cp
			continue
		}
		out[k] = v
	}
	return out
}
