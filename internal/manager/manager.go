package manager

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"inferd/internal/registry"
	"inferd/internal/runner"
	"inferd/internal/settings"
)

type Manager struct {
	reg      *registry.Registry
	settings *settings.Store

	mu        sync.RWMutex
	instances map[string]*instance
	usedMB    int
	budgetMB  int
	marginMB  int

	// loads collapses concurrent Load calls for the same runner name.
	loads singleflight.Group

	maxQueueDepth int
	maxWait       time.Duration
	drainTimeout  time.Duration

	publisher EventPublisher
	log       zerolog.Logger
	startTime time.Time

	loadsTotal     atomic.Uint64
	evictionsTotal atomic.Uint64
}

// New builds a Manager over a registry and settings store with package defaults.
func New(reg *registry.Registry, store *settings.Store) *Manager {
	return NewWithConfig(ManagerConfig{Registry: reg, Settings: store})
}

// Registry returns the registry the manager selects from.
func (m *Manager) Registry() *registry.Registry { return m.reg }

// SettingsStore returns the store holding the live settings.
func (m *Manager) SettingsStore() *settings.Store { return m.settings }

// Settings returns the current settings snapshot.
func (m *Manager) Settings() *settings.EngineSettings { return m.settings.Load() }

// SetEventPublisher replaces the lifecycle event sink; nil restores the no-op.
func (m *Manager) SetEventPublisher(p EventPublisher) {
	if p == nil {
		p = noopPublisher{}
	}
	m.mu.Lock()
	m.publisher = p
	m.mu.Unlock()
}

func (m *Manager) publish(e Event) {
	m.mu.RLock()
	p := m.publisher
	m.mu.RUnlock()
	p.Publish(e)
}

// Ready reports whether at least one enabled runner can currently run.
func (m *Manager) Ready() bool {
	for _, e := range m.reg.Entries() {
		if e.Descriptor.Enabled && e.Runner.IsSupported() {
			return true
		}
	}
	return false
}

// SetRunnerEnabled flips a runner's enabled flag. Disabled runners are no
// longer selected; a loaded one stays loaded until unloaded or evicted.
func (m *Manager) SetRunnerEnabled(name string, enabled bool) error {
	if err := m.reg.SetEnabled(name, enabled); err != nil {
		return err
	}
	m.publish(Event{Name: "runner_enabled", Runner: name, Fields: map[string]any{"enabled": enabled}})
	m.log.Info().Str("runner", name).Bool("enabled", enabled).Msg("runner toggled")
	return nil
}

// Lease is a loaded runner holding an admission slot.
type Lease struct {
	Runner     runner.Runner
	Descriptor runner.Descriptor

	once    sync.Once
	release func()
}

// Name returns the leased runner's name.
func (l *Lease) Name() string { return l.Descriptor.Name }

// Release returns the admission slot. Safe to call more than once.
func (l *Lease) Release() {
	l.once.Do(func() {
		if l.release != nil {
			l.release()
		}
	})
}
