// Package settings holds the engine's user-facing configuration as an
// immutable snapshot. A Store publishes snapshots atomically: readers call
// Load once per request and never observe a half-updated value.
package settings

import (
	"fmt"
	"strings"
	"sync/atomic"

	"inferd/internal/guardian"
	"inferd/internal/runner"
)

// TieBreakKey names one ordering rule the selector applies to candidates
// that are otherwise equal.
type TieBreakKey string

const (
	// TieBreakPriority prefers higher priority tiers.
	TieBreakPriority TieBreakKey = "priority"
	// TieBreakLocality prefers local vendors over network vendors.
	TieBreakLocality TieBreakKey = "locality"
)

// DefaultTieBreak is priority first, then locality.
func DefaultTieBreak() []TieBreakKey {
	return []TieBreakKey{TieBreakPriority, TieBreakLocality}
}

// ParseTieBreak validates a list of tie-break names; empty yields the default.
func ParseTieBreak(names []string) ([]TieBreakKey, error) {
	if len(names) == 0 {
		return DefaultTieBreak(), nil
	}
	seen := make(map[TieBreakKey]bool, len(names))
	out := make([]TieBreakKey, 0, len(names))
	for _, n := range names {
		k := TieBreakKey(strings.ToLower(strings.TrimSpace(n)))
		switch k {
		case TieBreakPriority, TieBreakLocality:
		default:
			return nil, runner.NewError(runner.CodeInvalidParameter, fmt.Sprintf("unknown tie-break key %q", n))
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// EngineSettings is one configuration snapshot. Do not modify a snapshot
// obtained from a Store; build a new value and Replace instead.
type EngineSettings struct {
	// SelectedRunners pins a runner name per capability.
	SelectedRunners map[runner.Capability]string
	// RunnerParams are passed to Runner.Load for the named runner.
	RunnerParams map[string]map[string]any
	Guardian     guardian.Config
	TieBreak     []TieBreakKey
}

// Default returns settings with no pins, no params, Guardian disabled.
func Default() EngineSettings {
	return EngineSettings{TieBreak: DefaultTieBreak()}
}

// SelectedRunner returns the pinned runner for c.
func (s *EngineSettings) SelectedRunner(c runner.Capability) (string, bool) {
	name, ok := s.SelectedRunners[c]
	return name, ok && name != ""
}

// ParamsFor returns a copy of the load params configured for a runner.
func (s *EngineSettings) ParamsFor(name string) map[string]any {
	src := s.RunnerParams[name]
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// TieBreakOrder returns the configured order or the default.
func (s *EngineSettings) TieBreakOrder() []TieBreakKey {
	if len(s.TieBreak) == 0 {
		return DefaultTieBreak()
	}
	return s.TieBreak
}

// Clone returns a deep copy.
func (s EngineSettings) Clone() EngineSettings {
	out := EngineSettings{
		SelectedRunners: make(map[runner.Capability]string, len(s.SelectedRunners)),
		RunnerParams:    make(map[string]map[string]any, len(s.RunnerParams)),
		Guardian:        s.Guardian.Clone(),
		TieBreak:        append([]TieBreakKey(nil), s.TieBreak...),
	}
	for c, n := range s.SelectedRunners {
		out.SelectedRunners[c] = n
	}
	for name, params := range s.RunnerParams {
		cp := make(map[string]any, len(params))
		for k, v := range params {
			cp[k] = v
		}
		out.RunnerParams[name] = cp
	}
	return out
}

// Store publishes EngineSettings snapshots.
type Store struct {
	cur     atomic.Pointer[EngineSettings]
	version atomic.Uint64
}

// NewStore publishes an initial snapshot.
func NewStore(initial EngineSettings) *Store {
	s := &Store{}
	s.Replace(initial)
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *EngineSettings {
	if cur := s.cur.Load(); cur != nil {
		return cur
	}
	d := Default()
	return &d
}

// Replace publishes a deep copy of next and returns the new version.
func (s *Store) Replace(next EngineSettings) uint64 {
	snap := next.Clone()
	s.cur.Store(&snap)
	return s.version.Add(1)
}

// Version counts replacements; useful to detect reloads.
func (s *Store) Version() uint64 { return s.version.Load() }
