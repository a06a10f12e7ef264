package manager

import (
	"fmt"
	"sort"

	"inferd/internal/registry"
	"inferd/internal/runner"
	"inferd/internal/settings"
)

// Select picks the runner for capability c against the current settings
// snapshot. A pinned runner wins when it is registered, enabled, lists c and
// reports support; otherwise the supported candidates are ranked by the
// configured tie-break keys and then by registration order.
func (m *Manager) Select(c runner.Capability) (registry.Entry, error) {
	return m.selectWith(m.settings.Load(), c)
}

func (m *Manager) selectWith(snap *settings.EngineSettings, c runner.Capability) (registry.Entry, error) {
	if !c.Valid() {
		return registry.Entry{}, runner.NewError(runner.CodeUnsupportedCapability, fmt.Sprintf("unknown capability %q", c))
	}
	if name, ok := snap.SelectedRunner(c); ok {
		e, found := m.reg.Entry(name)
		switch {
		case !found:
			m.log.Warn().Str("runner", name).Str("capability", string(c)).Msg("selected runner not registered; falling back")
		case !e.Descriptor.Enabled || !e.Descriptor.Supports(c):
			m.log.Debug().Str("runner", name).Str("capability", string(c)).Msg("selected runner disabled or lacks capability; falling back")
		case !e.Runner.IsSupported():
			m.log.Debug().Str("runner", name).Str("capability", string(c)).Msg("selected runner unsupported here; falling back")
		default:
			selectionsTotal.WithLabelValues(string(c), name).Inc()
			return e, nil
		}
	}

	var cands []registry.Entry
	for _, e := range m.reg.Lookup(c) {
		if e.Runner.IsSupported() {
			cands = append(cands, e)
		}
	}
	if len(cands) == 0 {
		return registry.Entry{}, errNoRunner(c)
	}
	rank(cands, snap.TieBreakOrder())
	selectionsTotal.WithLabelValues(string(c), cands[0].Descriptor.Name).Inc()
	return cands[0], nil
}

// rank orders candidates best first. Entries equal under every key keep
// registration order.
func rank(cands []registry.Entry, keys []settings.TieBreakKey) {
	sort.SliceStable(cands, func(i, j int) bool {
		a, b := cands[i].Descriptor, cands[j].Descriptor
		for _, k := range keys {
			switch k {
			case settings.TieBreakPriority:
				if a.Priority != b.Priority {
					return a.Priority > b.Priority
				}
			case settings.TieBreakLocality:
				if a.Vendor.Local() != b.Vendor.Local() {
					return a.Vendor.Local()
				}
			}
		}
		return cands[i].Order < cands[j].Order
	})
}
