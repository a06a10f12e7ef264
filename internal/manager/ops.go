package manager

import (
	"context"

	"inferd/internal/runner"
)

// Warm selects the runner for c now and loads it in the background. It
// returns the selected runner name; callers can poll Status to observe the
// load. The load outlives ctx's cancellation but keeps its values.
func (m *Manager) Warm(ctx context.Context, c runner.Capability) (string, error) {
	snap := m.settings.Load()
	e, err := m.selectWith(snap, c)
	if err != nil {
		return "", err
	}
	name := e.Descriptor.Name
	m.publish(Event{Name: "warm_start", Runner: name, Fields: map[string]any{"capability": string(c)}})
	go func() {
		if err := m.ensure(context.WithoutCancel(ctx), e, snap); err != nil {
			m.log.Warn().Err(err).Str("runner", name).Msg("warm-up failed")
		}
	}()
	return name, nil
}
