package manager

// evictUntilFits unloads LRU idle runners until requiredMB for target fits
// the budget plus margin. Runners with reserved or running leases are never
// evicted; if nothing idle is left the load fails with INSUFFICIENT_MEMORY.
func (m *Manager) evictUntilFits(target string, requiredMB int) error {
	if m.budgetMB <= 0 || requiredMB <= 0 {
		return nil
	}
	for {
		m.mu.Lock()
		if inst := m.instances[target]; inst != nil && inst.accounted {
			m.mu.Unlock()
			return nil
		}
		if m.usedMB+requiredMB+m.marginMB <= m.budgetMB {
			m.mu.Unlock()
			return nil
		}
		var lru *instance
		for _, inst := range m.instances {
			if inst.name == target || !inst.accounted || inst.state != StateReady || inst.pending > 0 {
				continue
			}
			if lru == nil || inst.lastUsed.Before(lru.lastUsed) {
				lru = inst
			}
		}
		if lru == nil {
			used := m.usedMB
			m.mu.Unlock()
			return errInsufficientMemory(target, requiredMB, used, m.budgetMB)
		}
		// draining blocks new reservations while we unload outside the lock
		lru.state = StateDraining
		m.mu.Unlock()

		if rn, ok := m.reg.FindByName(lru.name); ok {
			if err := rn.Unload(); err != nil {
				m.log.Warn().Err(err).Str("runner", lru.name).Msg("unload during eviction failed")
			}
		}

		m.mu.Lock()
		m.dropInstance(lru)
		m.mu.Unlock()
		m.evictionsTotal.Add(1)
		evictionsTotal.WithLabelValues(lru.name).Inc()
		m.publish(Event{Name: "evict", Runner: lru.name, Fields: map[string]any{"for": target, "freed_mb": lru.estMB}})
		m.log.Info().Str("runner", lru.name).Str("for", target).Int("freed_mb", lru.estMB).Msg("evicted runner")
	}
}

// dropInstance forgets inst and releases its accounted memory. Caller holds m.mu.
func (m *Manager) dropInstance(inst *instance) {
	if inst.accounted {
		m.usedMB -= inst.estMB
		if m.usedMB < 0 {
			m.usedMB = 0
		}
		inst.accounted = false
	}
	if cur := m.instances[inst.name]; cur == inst {
		delete(m.instances, inst.name)
	}
}
