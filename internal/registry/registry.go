// Package registry holds the runners known to the engine and answers
// capability lookups. Runners are registered explicitly at startup; lookups
// are safe for concurrent use.
package registry

import (
	"fmt"
	"sync"

	"inferd/internal/runner"
)

// Entry pairs a runner with its current descriptor and registration order.
type Entry struct {
	Runner     runner.Runner
	Descriptor runner.Descriptor
	Order      int
}

// Registry is a set of runners keyed by descriptor name.
type Registry struct {
	mu      sync.RWMutex
	entries []Entry
	byName  map[string]int
}

func New() *Registry {
	return &Registry{byName: make(map[string]int)}
}

// Register adds a runner. The descriptor must name at least one capability
// and its name must be unique.
func (r *Registry) Register(rn runner.Runner, d runner.Descriptor) error {
	if rn == nil {
		return runner.NewError(runner.CodeInvalidInput, "nil runner")
	}
	if err := d.Validate(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.byName[d.Name]; dup {
		return runner.NewError(runner.CodeInvalidInput, fmt.Sprintf("runner %q already registered", d.Name))
	}
	r.byName[d.Name] = len(r.entries)
	r.entries = append(r.entries, Entry{Runner: rn, Descriptor: d.Clone(), Order: len(r.entries)})
	return nil
}

// MustRegister is Register that panics; for static startup lists.
func (r *Registry) MustRegister(rn runner.Runner, d runner.Descriptor) {
	if err := r.Register(rn, d); err != nil {
		panic(err)
	}
}

// FindByCapability returns the enabled runners listing c, in registration
// order. Ranking is the selector's job.
func (r *Registry) FindByCapability(c runner.Capability) []runner.Runner {
	entries := r.Lookup(c)
	out := make([]runner.Runner, len(entries))
	for i, e := range entries {
		out[i] = e.Runner
	}
	return out
}

// Lookup is FindByCapability with descriptors and registration order.
func (r *Registry) Lookup(c runner.Capability) []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Entry
	for _, e := range r.entries {
		if e.Descriptor.Enabled && e.Descriptor.Supports(c) {
			out = append(out, e)
		}
	}
	return out
}

// FindByName returns the runner registered under name, enabled or not.
func (r *Registry) FindByName(name string) (runner.Runner, bool) {
	e, ok := r.Entry(name)
	return e.Runner, ok
}

// Entry returns the entry registered under name.
func (r *Registry) Entry(name string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	i, ok := r.byName[name]
	if !ok {
		return Entry{}, false
	}
	return r.entries[i], true
}

// Entries returns all entries in registration order.
func (r *Registry) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Entry(nil), r.entries...)
}

// Len returns the number of registered runners.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// SetEnabled replaces the descriptor of name with a copy whose enabled flag
// is set. Readers holding the previous descriptor are unaffected.
func (r *Registry) SetEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	i, ok := r.byName[name]
	if !ok {
		return runner.NewError(runner.CodeRunnerNotFound, fmt.Sprintf("runner %q not registered", name))
	}
	r.entries[i].Descriptor = r.entries[i].Descriptor.WithEnabled(enabled)
	return nil
}
