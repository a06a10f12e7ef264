package manager

import (
	"sync"
	"time"

	"inferd/internal/runner"
)

// State represents the lifecycle state of a runner instance.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateReady    State = "ready"
	StateDraining State = "draining"
	StateError    State = "error"
)

// instance is the manager's bookkeeping for one runner. Fields are guarded
// by Manager.mu except the channels.
type instance struct {
	name     string
	state    State
	lastUsed time.Time
	estMB    int
	// accounted is true while estMB counts towards Manager.usedMB.
	accounted bool
	cfg       runner.LoadConfig
	lastErr   string

	// pending counts reserved leases (queued or running); inflight only running.
	pending  int
	inflight int

	// slots has capacity MaxConcurrent; nil when unlimited.
	slots chan struct{}
	// queue bounds waiters for a slot.
	queue chan struct{}

	// use is read-held by every running lease and write-held while the
	// runner is reloaded with a new configuration.
	use sync.RWMutex
}

func (m *Manager) newInstance(d runner.Descriptor) *instance {
	inst := &instance{
		name:     d.Name,
		state:    StateUnloaded,
		lastUsed: time.Now(),
		estMB:    d.Requirements.MemoryMB,
	}
	if n := d.Requirements.MaxConcurrent; n > 0 {
		inst.slots = make(chan struct{}, n)
		inst.queue = make(chan struct{}, n+m.maxQueueDepth)
	}
	return inst
}

// instanceFor returns the instance for d, creating it. Caller holds m.mu.
func (m *Manager) instanceFor(d runner.Descriptor) *instance {
	inst := m.instances[d.Name]
	if inst == nil {
		inst = m.newInstance(d)
		m.instances[d.Name] = inst
	}
	return inst
}
