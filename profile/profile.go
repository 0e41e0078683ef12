// Package profile holds the device-profile model: the named groups and
// block ids that make up a device model's polling surface.
package profile

import "time"

// GroupDef is a named, order-preserving set of blocks polled together.
type GroupDef struct {
	Name         string
	Blocks       []int
	Description  string
	PollInterval time.Duration
}

// DeviceProfile describes one physical device model: its protocol
// binding and the groups of blocks it exposes.
type DeviceProfile struct {
	Model           string
	TypeID          string
	ProtocolKey     string
	ProtocolVersion int
	Description     string
	Groups          map[string]GroupDef
}

// AllBlockIDs collects every block id referenced across all groups,
// de-duplicated, in first-seen order across a deterministic group-name
// sort (callers needing per-group order should use Groups[name].Blocks
// directly).
func (p *DeviceProfile) AllBlockIDs() []int {
	seen := make(map[int]bool)
	var out []int
	for _, name := range p.sortedGroupNames() {
		for _, id := range p.Groups[name].Blocks {
			if !seen[id] {
				seen[id] = true
				out = append(out, id)
			}
		}
	}
	return out
}

func (p *DeviceProfile) sortedGroupNames() []string {
	names := make([]string, 0, len(p.Groups))
	for name := range p.Groups {
		names = append(names, name)
	}
	// simple insertion sort; group counts are small (profile authoring is
	// by hand, not generated at scale)
	for i := 1; i < len(names); i++ {
		for j := i; j > 0 && names[j-1] > names[j]; j-- {
			names[j-1], names[j] = names[j], names[j-1]
		}
	}
	return names
}
