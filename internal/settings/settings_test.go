package settings

import (
	"sync"
	"testing"

	"inferd/internal/guardian"
	"inferd/internal/runner"
)

func TestStoreReplaceIsolatesSnapshots(t *testing.T) {
	src := EngineSettings{
		SelectedRunners: map[runner.Capability]string{runner.CapabilityLLM: "a"},
		RunnerParams:    map[string]map[string]any{"a": {"ctx": 2048}},
		Guardian:        guardian.Config{Enabled: true, BlockedTerms: []string{"x"}},
	}
	s := NewStore(src)
	snap := s.Load()

	src.SelectedRunners[runner.CapabilityLLM] = "b"
	src.RunnerParams["a"]["ctx"] = 1
	src.Guardian.BlockedTerms[0] = "y"

	if name, _ := snap.SelectedRunner(runner.CapabilityLLM); name != "a" {
		t.Fatalf("snapshot changed through source map: %q", name)
	}
	if snap.ParamsFor("a")["ctx"] != 2048 {
		t.Fatalf("runner params leaked: %v", snap.ParamsFor("a"))
	}
	if snap.Guardian.BlockedTerms[0] != "x" {
		t.Fatalf("guardian terms leaked")
	}

	v := s.Replace(EngineSettings{SelectedRunners: map[runner.Capability]string{runner.CapabilityLLM: "c"}})
	if v != 2 || s.Version() != 2 {
		t.Fatalf("version = %d", v)
	}
	if name, _ := snap.SelectedRunner(runner.CapabilityLLM); name != "a" {
		t.Fatalf("old snapshot changed after Replace")
	}
	if name, _ := s.Load().SelectedRunner(runner.CapabilityLLM); name != "c" {
		t.Fatalf("new snapshot not published: %q", name)
	}
}

func TestParamsForReturnsCopy(t *testing.T) {
	s := NewStore(EngineSettings{RunnerParams: map[string]map[string]any{"a": {"k": 1}}})
	p := s.Load().ParamsFor("a")
	p["k"] = 2
	if s.Load().ParamsFor("a")["k"] != 1 {
		t.Fatalf("ParamsFor exposed internal map")
	}
	if len(s.Load().ParamsFor("missing")) != 0 {
		t.Fatalf("expected empty params for unknown runner")
	}
}

func TestParseTieBreak(t *testing.T) {
	got, err := ParseTieBreak(nil)
	if err != nil || len(got) != 2 || got[0] != TieBreakPriority {
		t.Fatalf("default = %v, %v", got, err)
	}
	got, err = ParseTieBreak([]string{"Locality", "priority", "locality"})
	if err != nil || len(got) != 2 || got[0] != TieBreakLocality || got[1] != TieBreakPriority {
		t.Fatalf("parsed = %v, %v", got, err)
	}
	if _, err := ParseTieBreak([]string{"cost"}); !runner.IsValidation(err) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestEmptyPinIgnored(t *testing.T) {
	s := NewStore(EngineSettings{SelectedRunners: map[runner.Capability]string{runner.CapabilityTTS: ""}})
	if _, ok := s.Load().SelectedRunner(runner.CapabilityTTS); ok {
		t.Fatalf("empty pin must not count as a selection")
	}
}

func TestConcurrentLoadReplace(t *testing.T) {
	s := NewStore(Default())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			s.Replace(EngineSettings{RunnerParams: map[string]map[string]any{"r": {"i": i}}})
		}(i)
		go func() {
			defer wg.Done()
			snap := s.Load()
			_ = snap.ParamsFor("r")
			_ = snap.TieBreakOrder()
		}()
	}
	wg.Wait()
	if s.Version() != 9 {
		t.Fatalf("version = %d, want 9", s.Version())
	}
}
