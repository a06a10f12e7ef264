package manager

import (
	"testing"
	"time"

	"inferd/internal/runner"
)

func TestUnload_RemovesInstanceAndUpdatesAccounting(t *testing.T) {
	f := fake("m", runner.PriorityNormal, false, runner.CapabilityLLM)
	f.Desc.Requirements.MemoryMB = 300
	m := newTestManager(t, ManagerConfig{BudgetMB: 1000, DrainTimeout: 200 * time.Millisecond}, f)
	l, err := m.Acquire(testCtx(t), runner.CapabilityLLM)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	l.Release()
	if err := m.Unload("m"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	m.mu.RLock()
	_, exists := m.instances["m"]
	used := m.usedMB
	m.mu.RUnlock()
	if exists {
		t.Fatalf("instance still exists after unload")
	}
	if used != 0 {
		t.Fatalf("usedMB = %d after unload", used)
	}
	if f.IsLoaded() {
		t.Fatalf("runner still loaded")
	}
}

func TestUnload_WaitsForInflightLease(t *testing.T) {
	f := fake("m", runner.PriorityNormal, false, runner.CapabilityLLM)
	m := newTestManager(t, ManagerConfig{DrainTimeout: 2 * time.Second}, f)
	l, err := m.Acquire(testCtx(t), runner.CapabilityLLM)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- m.Unload("m") }()

	waitFor(t, "draining", func() bool { return m.Status().DrainingCount == 1 })
	if _, err := m.Acquire(testCtx(t), runner.CapabilityLLM); !IsTooBusy(err) {
		t.Fatalf("acquire while draining: expected RUNNER_BUSY, got %v", err)
	}
	select {
	case <-done:
		t.Fatalf("unload returned before the lease was released")
	case <-time.After(30 * time.Millisecond):
	}
	l.Release()
	if err := <-done; err != nil {
		t.Fatalf("Unload: %v", err)
	}
	if f.Unloads() != 1 {
		t.Fatalf("unloads = %d", f.Unloads())
	}
}

func TestUnload_DrainTimeout(t *testing.T) {
	f := fake("m", runner.PriorityNormal, false, runner.CapabilityLLM)
	pub := NewMemoryPublisher()
	m := newTestManager(t, ManagerConfig{DrainTimeout: 20 * time.Millisecond, Publisher: pub}, f)
	l, err := m.Acquire(testCtx(t), runner.CapabilityLLM)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	defer l.Release()
	if err := m.Unload("m"); err != nil {
		t.Fatalf("Unload: %v", err)
	}
	want := map[string]bool{"unload_start": false, "unload_timeout": false, "unload_done": false}
	for _, n := range pub.Names() {
		if _, ok := want[n]; ok {
			want[n] = true
		}
	}
	for k, v := range want {
		if !v {
			t.Fatalf("expected event %q; got %v", k, pub.Names())
		}
	}
}

func TestUnload_UnknownRunner(t *testing.T) {
	m := newTestManager(t, ManagerConfig{})
	if err := m.Unload("nope"); !runner.IsRunnerNotFound(err) {
		t.Fatalf("expected RUNNER_NOT_FOUND, got %v", err)
	}
	if err := m.Unload(""); !runner.IsRunnerNotFound(err) {
		t.Fatalf("expected RUNNER_NOT_FOUND for empty name, got %v", err)
	}
}

func TestUnloadAll(t *testing.T) {
	a := fake("a", runner.PriorityNormal, false, runner.CapabilityLLM)
	b := fake("b", runner.PriorityNormal, false, runner.CapabilityTTS)
	m := newTestManager(t, ManagerConfig{}, a, b)
	for _, c := range []runner.Capability{runner.CapabilityLLM, runner.CapabilityTTS} {
		l, err := m.Acquire(testCtx(t), c)
		if err != nil {
			t.Fatalf("Acquire %s: %v", c, err)
		}
		l.Release()
	}
	if err := m.UnloadAll(testCtx(t)); err != nil {
		t.Fatalf("UnloadAll: %v", err)
	}
	if a.IsLoaded() || b.IsLoaded() || len(m.Status().Runners) != 0 {
		t.Fatalf("runners still loaded after UnloadAll")
	}
}
