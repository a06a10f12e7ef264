package manager

import (
	"context"
	"errors"
	"time"
)

// Unload initiates a graceful drain of a runner and unloads it.
// - Sets the instance state to draining to reject new leases.
// - Waits up to drainTimeout for reserved and running leases to finish.
// - Calls Runner.Unload and forgets the instance.
func (m *Manager) Unload(name string) error {
	if name == "" {
		return ErrRunnerNotFound("(unspecified)")
	}
	rn, ok := m.reg.FindByName(name)
	if !ok {
		return ErrRunnerNotFound(name)
	}
	m.mu.Lock()
	inst := m.instances[name]
	if inst == nil {
		m.mu.Unlock()
		if rn.IsLoaded() {
			return rn.Unload()
		}
		return nil
	}
	inst.state = StateDraining
	m.mu.Unlock()
	m.publish(Event{Name: "unload_start", Runner: name, Fields: map[string]any{}})

	deadline := time.Now().Add(m.drainTimeout)
	for {
		m.mu.RLock()
		pending, inflight := inst.pending, inst.inflight
		m.mu.RUnlock()
		if pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			m.publish(Event{Name: "unload_timeout", Runner: name, Fields: map[string]any{"inflight": inflight, "queue": pending - inflight}})
			m.log.Warn().Str("runner", name).Int("inflight", inflight).Msg("drain timed out; unloading anyway")
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	err := rn.Unload()

	m.mu.Lock()
	m.dropInstance(inst)
	m.mu.Unlock()

	m.publish(Event{Name: "unload_done", Runner: name, Fields: map[string]any{}})
	m.log.Info().Str("runner", name).Msg("runner unloaded")
	return err
}

// UnloadAll drains and unloads every runner the manager has touched. Used at
// shutdown; stops early when ctx is done.
func (m *Manager) UnloadAll(ctx context.Context) error {
	m.mu.RLock()
	names := make([]string, 0, len(m.instances))
	for name := range m.instances {
		names = append(names, name)
	}
	m.mu.RUnlock()

	var errs []error
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := m.Unload(name); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
