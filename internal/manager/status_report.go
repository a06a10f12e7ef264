package manager

import (
	"sort"
	"time"

	"inferd/internal/runner"
	"inferd/pkg/types"
)

// Status builds a detailed status response for /status.
func (m *Manager) Status() types.StatusResponse {
	ready := m.Ready()
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := time.Now()
	resp := types.StatusResponse{
		Ready:           ready,
		BudgetMB:        m.budgetMB,
		UsedMB:          m.usedMB,
		MarginMB:        m.marginMB,
		LoadsTotal:      m.loadsTotal.Load(),
		EvictionsTotal:  m.evictionsTotal.Load(),
		SettingsVersion: m.settings.Version(),
		UptimeSeconds:   int64(now.Sub(m.startTime).Seconds()),
		ServerTimeUnix:  now.Unix(),
	}
	resp.Runners = make([]types.RunnerStatus, 0, len(m.instances))
	for _, inst := range m.instances {
		switch inst.state {
		case StateLoading:
			resp.LoadsInProgress++
		case StateDraining:
			resp.DrainingCount++
		}
		st := types.RunnerStatus{
			Name:          inst.name,
			State:         string(inst.state),
			Loaded:        inst.state == StateReady,
			LastUsed:      inst.lastUsed.Unix(),
			EstMB:         inst.estMB,
			QueueLen:      inst.pending - inst.inflight,
			Inflight:      inst.inflight,
			MaxConcurrent: cap(inst.slots),
			Error:         inst.lastErr,
		}
		if inst.slots != nil {
			st.MaxQueueDepth = m.maxQueueDepth
		}
		resp.Runners = append(resp.Runners, st)
	}
	sort.Slice(resp.Runners, func(i, j int) bool { return resp.Runners[i].Name < resp.Runners[j].Name })
	return resp
}

// ListRunners describes every registered runner in registration order.
func (m *Manager) ListRunners() []types.RunnerInfo {
	snap := m.settings.Load()
	entries := m.reg.Entries()
	out := make([]types.RunnerInfo, 0, len(entries))
	for _, e := range entries {
		d := e.Descriptor
		info := types.RunnerInfo{
			Name:      d.Name,
			Version:   d.Version,
			Vendor:    d.Vendor.Name,
			Network:   d.Vendor.Network,
			Priority:  d.Priority.String(),
			Enabled:   d.Enabled,
			Supported: e.Runner.IsSupported(),
			Loaded:    e.Runner.IsLoaded(),
			Metadata:  d.Clone().Metadata,
		}
		for _, c := range d.Capabilities {
			info.Capabilities = append(info.Capabilities, string(c))
		}
		for _, c := range runner.Capabilities() {
			if name, ok := snap.SelectedRunner(c); ok && name == d.Name {
				info.SelectedFor = append(info.SelectedFor, string(c))
			}
		}
		out = append(out, info)
	}
	return out
}
