package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"inferd/internal/config"
	"inferd/internal/runner"
)

func remoteServer(t *testing.T) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[]}`))
	}))
	t.Cleanup(ts.Close)
	return ts
}

func TestBuildEngineRegistersRemotes(t *testing.T) {
	ts := remoteServer(t)
	cfg := config.Config{
		ModelsDir: filepath.Join(t.TempDir(), "missing"),
		Remotes: []config.Remote{
			{Name: "chat", BaseURL: ts.URL, Model: "m"},
			{Name: "voice", Mode: "tts", BaseURL: ts.URL, Disabled: true},
		},
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	eng, err := buildEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	infos := eng.mgr.ListRunners()
	if len(infos) != 2 {
		t.Fatalf("runners=%d", len(infos))
	}
	if !infos[0].Enabled || infos[1].Enabled {
		t.Fatalf("enabled flags: %+v", infos)
	}
	if st := eng.service().Status(); st.ActiveSessions != 0 {
		t.Fatalf("active=%d", st.ActiveSessions)
	}
}

func TestBuildEngineRejectsBadRemote(t *testing.T) {
	cfg := config.Config{Remotes: []config.Remote{{Name: "x", Mode: "video", BaseURL: "http://localhost:1"}}}
	cfg.ApplyDefaults()
	if _, err := buildEngine(cfg, zerolog.Nop()); err == nil {
		t.Fatalf("expected mode error")
	}
}

func TestBuildEngineRunnerGuardian(t *testing.T) {
	cfg := config.Config{Guardian: config.Guardian{Pipeline: config.PipelineRunner}}
	cfg.ApplyDefaults()
	eng, err := buildEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if eng.coord == nil || eng.reg.Len() != 0 {
		t.Fatalf("unexpected engine: %+v", eng)
	}
}

func TestReloadSwapsSettings(t *testing.T) {
	ts := remoteServer(t)
	cfg := config.Config{Remotes: []config.Remote{{Name: "chat", BaseURL: ts.URL}}}
	cfg.ApplyDefaults()
	eng, err := buildEngine(cfg, zerolog.Nop())
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	before := eng.store.Version()

	p := filepath.Join(t.TempDir(), "inferd.yaml")
	body := "remotes:\n  - name: chat\n    base_url: " + ts.URL + "\nselection:\n  llm: chat\n"
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := eng.reload(p); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if eng.store.Version() <= before {
		t.Fatalf("version not bumped: %d -> %d", before, eng.store.Version())
	}
	if name, ok := eng.store.Load().SelectedRunner(runner.CapabilityLLM); !ok || name != "chat" {
		t.Fatalf("selection=%q ok=%v", name, ok)
	}

	if err := os.WriteFile(p, []byte("guardian:\n  pipeline: llm\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	v := eng.store.Version()
	if err := eng.reload(p); err == nil {
		t.Fatalf("expected invalid config error")
	}
	if eng.store.Version() != v {
		t.Fatalf("failed reload replaced settings")
	}
}

func TestNewLogger(t *testing.T) {
	if _, err := newLogger("debug", "json"); err != nil {
		t.Fatalf("json: %v", err)
	}
	if _, err := newLogger("info", "console"); err != nil {
		t.Fatalf("console: %v", err)
	}
	if _, err := newLogger("loud", "json"); err == nil {
		t.Fatalf("expected level error")
	}
	if _, err := newLogger("info", "xml"); err == nil {
		t.Fatalf("expected format error")
	}
}
