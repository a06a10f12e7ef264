package manager

import (
	"context"
	"time"

	"inferd/internal/runner"
)

// reserve registers intent to use a runner so it is neither evicted nor
// drained away between loading and admission.
func (m *Manager) reserve(d runner.Descriptor) (*instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst := m.instanceFor(d)
	if inst.state == StateDraining {
		busyTotal.WithLabelValues(d.Name, "draining").Inc()
		return nil, errBusy(d.Name, "draining")
	}
	inst.pending++
	return inst, nil
}

func (m *Manager) unreserve(inst *instance) {
	m.mu.Lock()
	inst.pending--
	inst.lastUsed = time.Now()
	m.mu.Unlock()
}

// admit waits for a queue slot and then a run slot on runners with a
// concurrency limit. Returns a release func.
func (m *Manager) admit(ctx context.Context, inst *instance) (func(), error) {
	// Fast path: respect an already-canceled context
	if err := ctx.Err(); err != nil {
		return nil, runner.AsError(err)
	}
	if inst.slots == nil {
		inst.use.RLock()
		m.startRun(inst)
		return func() { m.endRun(inst, false) }, nil
	}

	// Try to reserve a queue slot; overflow fails immediately
	select {
	case inst.queue <- struct{}{}:
	default:
		busyTotal.WithLabelValues(inst.name, "queue_full").Inc()
		return nil, errBusy(inst.name, "queue full")
	}

	timer := time.NewTimer(m.maxWait)
	defer timer.Stop()
	select {
	case inst.slots <- struct{}{}:
		inst.use.RLock()
		m.startRun(inst)
		return func() { m.endRun(inst, true) }, nil
	case <-ctx.Done():
		<-inst.queue
		return nil, runner.AsError(ctx.Err())
	case <-timer.C:
		<-inst.queue
		busyTotal.WithLabelValues(inst.name, "timeout").Inc()
		return nil, errBusy(inst.name, "timed out waiting for a slot")
	}
}

func (m *Manager) startRun(inst *instance) {
	m.mu.Lock()
	inst.inflight++
	inst.lastUsed = time.Now()
	m.mu.Unlock()
	inflightGauge.WithLabelValues(inst.name).Inc()
}

func (m *Manager) endRun(inst *instance, limited bool) {
	inst.use.RUnlock()
	if limited {
		<-inst.slots
		<-inst.queue
	}
	m.mu.Lock()
	inst.inflight--
	inst.pending--
	inst.lastUsed = time.Now()
	m.mu.Unlock()
	inflightGauge.WithLabelValues(inst.name).Dec()
}
