package manager

import (
	"context"
	"testing"
	"time"

	"inferd/internal/registry"
	"inferd/internal/runner"
	"inferd/internal/runner/runnertest"
)

// testCtx returns a context with a short timeout, canceled on test cleanup.
func testCtx(t *testing.T) context.Context {
	t.Helper()
	c, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return c
}

// newTestManager registers the fakes in order and builds a manager over them.
func newTestManager(t *testing.T, cfg ManagerConfig, fakes ...*runnertest.Fake) *Manager {
	t.Helper()
	reg := registry.New()
	for _, f := range fakes {
		if err := reg.Register(f, f.Describe()); err != nil {
			t.Fatalf("register %s: %v", f.Desc.Name, err)
		}
	}
	cfg.Registry = reg
	return NewWithConfig(cfg)
}

func fake(name string, prio runner.Priority, network bool, caps ...runner.Capability) *runnertest.Fake {
	f := runnertest.NewFake(name, caps...)
	f.Desc.Priority = prio
	f.Desc.Vendor = runner.Vendor{Name: "fake", Network: network}
	return f
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
