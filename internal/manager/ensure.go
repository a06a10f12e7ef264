package manager

import (
	"context"
	"fmt"
	"time"

	"inferd/internal/registry"
	"inferd/internal/runner"
	"inferd/internal/settings"
)

// Acquire selects the runner for c, loads it on first use and reserves an
// admission slot. The returned lease must be released.
func (m *Manager) Acquire(ctx context.Context, c runner.Capability) (*Lease, error) {
	snap := m.settings.Load()
	e, err := m.selectWith(snap, c)
	if err != nil {
		return nil, err
	}
	inst, err := m.reserve(e.Descriptor)
	if err != nil {
		return nil, err
	}
	if err := m.ensure(ctx, e, snap); err != nil {
		m.unreserve(inst)
		return nil, err
	}
	release, err := m.admit(ctx, inst)
	if err != nil {
		m.unreserve(inst)
		return nil, err
	}
	return &Lease{Runner: e.Runner, Descriptor: e.Descriptor, release: release}, nil
}

// Resolve selects and loads the runner for c without taking an admission
// slot. Used for short auxiliary calls such as guardian checks.
func (m *Manager) Resolve(ctx context.Context, c runner.Capability) (runner.Runner, error) {
	snap := m.settings.Load()
	e, err := m.selectWith(snap, c)
	if err != nil {
		return nil, err
	}
	if err := m.ensure(ctx, e, snap); err != nil {
		return nil, err
	}
	return e.Runner, nil
}

// Ensure loads the named runner with its configured parameters if it is not
// already loaded with them.
func (m *Manager) Ensure(ctx context.Context, name string) error {
	e, ok := m.reg.Entry(name)
	if !ok {
		return ErrRunnerNotFound(name)
	}
	return m.ensure(ctx, e, m.settings.Load())
}

func loadConfigFor(e registry.Entry, snap *settings.EngineSettings) runner.LoadConfig {
	return runner.LoadConfig{
		ModelID:  e.Descriptor.ModelID(),
		Settings: e.Descriptor.Metadata,
		Params:   snap.ParamsFor(e.Descriptor.Name),
	}
}

func (m *Manager) ensure(ctx context.Context, e registry.Entry, snap *settings.EngineSettings) error {
	name := e.Descriptor.Name
	cfg := loadConfigFor(e, snap)
	if m.loadedWith(name, e.Runner, cfg) {
		return nil
	}
	// The load outlives any single waiter; each waiter still honours its own ctx.
	loadCtx := context.WithoutCancel(ctx)
	ch := m.loads.DoChan(name, func() (any, error) {
		if m.loadedWith(name, e.Runner, cfg) {
			return nil, nil
		}
		return nil, m.load(loadCtx, e, cfg)
	})
	select {
	case res := <-ch:
		return res.Err
	case <-ctx.Done():
		return runner.AsError(ctx.Err())
	}
}

func (m *Manager) loadedWith(name string, rn runner.Runner, cfg runner.LoadConfig) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instances[name]
	if inst == nil || inst.state != StateReady || !inst.cfg.Equal(cfg) || !rn.IsLoaded() {
		return false
	}
	inst.lastUsed = time.Now()
	return true
}

func (m *Manager) load(ctx context.Context, e registry.Entry, cfg runner.LoadConfig) error {
	name := e.Descriptor.Name
	m.mu.Lock()
	inst := m.instanceFor(e.Descriptor)
	if inst.state == StateDraining {
		m.mu.Unlock()
		return errBusy(name, "draining")
	}
	prev := inst.state
	reconfigure := prev == StateReady && e.Runner.IsLoaded()
	inst.state = StateLoading
	inst.lastErr = ""
	m.mu.Unlock()

	if reconfigure {
		if !m.quiesce(inst) {
			m.mu.Lock()
			if inst.state == StateLoading {
				inst.state = prev
			}
			m.mu.Unlock()
			busyTotal.WithLabelValues(name, "reconfigure").Inc()
			m.log.Warn().Str("runner", name).Msg("runner still in use; reconfigure deferred")
			return errBusy(name, "in use; reconfigure deferred")
		}
		defer inst.use.Unlock()
		m.publish(Event{Name: "reconfigure", Runner: name, Fields: map[string]any{"model_id": cfg.ModelID}})
	}

	m.publish(Event{Name: "ensure_start", Runner: name, Fields: map[string]any{"model_id": cfg.ModelID}})
	m.log.Info().Str("runner", name).Str("model_id", cfg.ModelID).Msg("loading runner")

	if err := m.evictUntilFits(name, inst.estMB); err != nil {
		m.failLoad(inst, err)
		return err
	}

	start := time.Now()
	if err := e.Runner.Load(ctx, cfg); err != nil {
		rerr := runner.AsError(err)
		if rerr.Code == runner.CodeInternal {
			rerr = runner.Wrap(runner.CodeModelLoadFailed, fmt.Sprintf("load %s", name), err)
		}
		m.failLoad(inst, rerr)
		return rerr
	}
	loadDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	loadsTotal.WithLabelValues(name, "ok").Inc()
	m.loadsTotal.Add(1)

	m.mu.Lock()
	if !inst.accounted {
		m.usedMB += inst.estMB
		inst.accounted = true
	}
	if inst.state == StateLoading {
		inst.state = StateReady
	}
	inst.cfg = cfg
	inst.lastUsed = time.Now()
	m.mu.Unlock()

	m.publish(Event{Name: "ensure_ready", Runner: name, Fields: map[string]any{"duration_ms": time.Since(start).Milliseconds()}})
	m.log.Info().Str("runner", name).Dur("took", time.Since(start)).Msg("runner ready")
	return nil
}

func (m *Manager) failLoad(inst *instance, err error) {
	m.mu.Lock()
	if inst.state == StateLoading {
		inst.state = StateError
	}
	inst.lastErr = err.Error()
	m.mu.Unlock()
	loadsTotal.WithLabelValues(inst.name, "error").Inc()
	m.publish(Event{Name: "ensure_error", Runner: inst.name, Fields: map[string]any{"error": err.Error()}})
	m.log.Error().Err(err).Str("runner", inst.name).Msg("runner load failed")
}

// quiesce takes the instance's use lock exclusively, waiting at most
// drainTimeout for running leases to be released.
func (m *Manager) quiesce(inst *instance) bool {
	deadline := time.Now().Add(m.drainTimeout)
	for !inst.use.TryLock() {
		if time.Now().After(deadline) {
			return false
		}
		time.Sleep(5 * time.Millisecond)
	}
	return true
}
