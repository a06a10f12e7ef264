package e2e

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"inferd/internal/coordinator"
	"inferd/internal/guardian"
	"inferd/internal/httpapi"
	"inferd/internal/manager"
	"inferd/internal/registry"
	"inferd/internal/runner/runnertest"
	"inferd/internal/settings"
	"inferd/pkg/types"
)

// stack is one in-process daemon: registry, manager, coordinator and the
// HTTP mux behind an httptest server.
type stack struct {
	srv   *httptest.Server
	mgr   *manager.Manager
	coord *coordinator.Coordinator
	store *settings.Store
}

type service struct {
	*coordinator.Coordinator
	mgr *manager.Manager
}

func (s service) ListRunners() []types.RunnerInfo { return s.mgr.ListRunners() }
func (s service) Ready() bool                     { return s.mgr.Ready() }
func (s service) Status() types.StatusResponse {
	st := s.mgr.Status()
	st.ActiveSessions = s.Active()
	return st
}

func newStack(t *testing.T, es settings.EngineSettings, cfg manager.ManagerConfig, fakes ...*runnertest.Fake) *stack {
	t.Helper()
	reg := registry.New()
	for _, f := range fakes {
		if err := reg.Register(f, f.Describe()); err != nil {
			t.Fatalf("register %s: %v", f.Desc.Name, err)
		}
	}
	store := settings.NewStore(es)
	cfg.Registry = reg
	cfg.Settings = store
	mgr := manager.NewWithConfig(cfg)
	coord := coordinator.New(coordinator.Config{Source: mgr, Pipeline: guardian.NewTermPipeline()})
	srv := httptest.NewServer(httpapi.NewMux(service{Coordinator: coord, mgr: mgr}))
	t.Cleanup(func() {
		coord.CancelAll()
		srv.Close()
	})
	return &stack{srv: srv, mgr: mgr, coord: coord, store: store}
}

func (s *stack) post(t *testing.T, path, sessionID string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, s.srv.URL+path, bytes.NewReader(b))
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if sessionID != "" {
		req.Header.Set(httpapi.SessionHeader, sessionID)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	return resp
}

func (s *stack) get(t *testing.T, path string) (int, []byte) {
	t.Helper()
	resp, err := http.Get(s.srv.URL + path)
	if err != nil {
		t.Fatalf("get %s: %v", path, err)
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, b
}

func (s *stack) cancel(t *testing.T, id string) int {
	t.Helper()
	req, _ := http.NewRequest(http.MethodDelete, s.srv.URL+"/v1/sessions/"+id, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	resp.Body.Close()
	return resp.StatusCode
}

// readEvents decodes every NDJSON line until the body closes.
func readEvents[E any](t *testing.T, r io.Reader) []E {
	t.Helper()
	var out []E
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		var ev E
		if err := json.Unmarshal(sc.Bytes(), &ev); err != nil {
			t.Fatalf("decode %q: %v", sc.Text(), err)
		}
		out = append(out, ev)
	}
	return out
}

func decodeBody(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode body: %v", err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
