package llamacpp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"inferd/internal/runner"
)

type fakeModel struct {
	tokens []string
	err    error
	closed bool
	got    predictOptions
	block  chan struct{}
}

func (f *fakeModel) Predict(ctx context.Context, prompt string, po predictOptions, onToken func(string) bool) (string, error) {
	f.got = po
	if f.err != nil {
		return "", f.err
	}
	var sb strings.Builder
	for _, tok := range f.tokens {
		if onToken != nil && !onToken(tok) {
			break
		}
		sb.WriteString(tok)
	}
	if f.block != nil {
		<-ctx.Done()
	}
	return sb.String(), nil
}

func (f *fakeModel) Close() error {
	f.closed = true
	return nil
}

// withFakeBackend pretends llama support is built and serves fm for every open.
func withFakeBackend(t *testing.T, fm *fakeModel) *int {
	t.Helper()
	prevBuilt, prevOpen := built, openModel
	opens := 0
	built = true
	openModel = func(path string, mo modelOptions) (model, error) {
		opens++
		return fm, nil
	}
	t.Cleanup(func() { built, openModel = prevBuilt, prevOpen })
	return &opens
}

func modelFile(t *testing.T, name string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return p
}

func loadedRunner(t *testing.T, fm *fakeModel) *Runner {
	t.Helper()
	withFakeBackend(t, fm)
	r, err := New(Config{ModelID: "tiny", ModelPath: modelFile(t, "tiny.gguf"), Threads: 2})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := r.Load(context.Background(), runner.LoadConfig{ModelID: "tiny"}); err != nil {
		t.Fatalf("load: %v", err)
	}
	return r
}

func TestDescriptor(t *testing.T) {
	r, err := New(Config{ModelID: "tiny", ModelPath: "/nope/tiny.gguf", GPULayers: 8, MemoryMB: 900})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	d := r.Describe()
	if d.Name != "llama.cpp/tiny" || d.Vendor != runner.VendorLlamaCpp || d.Requirements.MaxConcurrent != 1 {
		t.Fatalf("descriptor: %+v", d)
	}
	if d.Requirements.MemoryMB != 900 || len(d.Requirements.Accelerators) != 1 || d.ModelID() != "tiny" {
		t.Fatalf("requirements: %+v", d.Requirements)
	}
	if _, err := New(Config{ModelID: "x"}); err == nil {
		t.Fatalf("expected error for empty path")
	}
}

func TestIsSupportedNeedsBuildAndFile(t *testing.T) {
	path := modelFile(t, "a.gguf")
	r, _ := New(Config{ModelID: "a", ModelPath: path})
	prev := built
	t.Cleanup(func() { built = prev })

	built = false
	if r.IsSupported() {
		t.Fatalf("unsupported without llama build")
	}
	if err := r.Load(context.Background(), runner.LoadConfig{}); runner.CodeOf(err) != runner.CodeHardwareUnavailable {
		t.Fatalf("want HARDWARE_UNAVAILABLE, got %v", err)
	}
	built = true
	if !r.IsSupported() {
		t.Fatalf("supported with build and file")
	}
	_ = os.Remove(path)
	if r.IsSupported() {
		t.Fatalf("missing file should be unsupported")
	}
}

func TestLoadIsIdempotent(t *testing.T) {
	fm := &fakeModel{}
	opens := withFakeBackend(t, fm)
	r, _ := New(Config{ModelID: "tiny", ModelPath: modelFile(t, "tiny.gguf")})
	cfg := runner.LoadConfig{ModelID: "tiny", Params: map[string]any{"threads": 3}}
	for i := 0; i < 2; i++ {
		if err := r.Load(context.Background(), cfg); err != nil {
			t.Fatalf("load: %v", err)
		}
	}
	if *opens != 1 {
		t.Fatalf("want one open, got %d", *opens)
	}
	if err := r.Load(context.Background(), runner.LoadConfig{ModelID: "tiny", Params: map[string]any{"threads": 5}}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if *opens != 2 || !fm.closed {
		t.Fatalf("changed config should reopen, opens=%d closed=%v", *opens, fm.closed)
	}
	if err := r.Unload(); err != nil || r.IsLoaded() {
		t.Fatalf("unload: %v loaded=%v", err, r.IsLoaded())
	}
}

func TestLoadFailureIsModelLoadFailed(t *testing.T) {
	prevBuilt, prevOpen := built, openModel
	t.Cleanup(func() { built, openModel = prevBuilt, prevOpen })
	built = true
	openModel = func(string, modelOptions) (model, error) { return nil, errors.New("bad magic") }
	r, _ := New(Config{ModelID: "x", ModelPath: "/tmp/x.gguf"})
	if err := r.Load(context.Background(), runner.LoadConfig{}); runner.CodeOf(err) != runner.CodeModelLoadFailed {
		t.Fatalf("want MODEL_LOAD_FAILED, got %v", err)
	}
}

func TestRunMapsParams(t *testing.T) {
	fm := &fakeModel{tokens: []string{"Hello", " world"}}
	r := loadedRunner(t, fm)
	req := runner.NewRequest("s", map[string]any{runner.InputText: "hi"}, map[string]any{
		runner.ParamMaxTokens: 16, runner.ParamTemperature: 0.2, runner.ParamSeed: int64(7), runner.ParamStop: []string{"</s>"},
	})
	res, ok := r.Run(context.Background(), req).(runner.Success)
	if !ok || res.Text() != "Hello world" {
		t.Fatalf("got %+v", res)
	}
	if fm.got.MaxTokens != 16 || fm.got.Seed != 7 || fm.got.Threads != 2 || len(fm.got.Stop) != 1 {
		t.Fatalf("options: %+v", fm.got)
	}
	if fm.got.Temperature < 0.19 || fm.got.Temperature > 0.21 {
		t.Fatalf("temperature: %v", fm.got.Temperature)
	}
}

func TestRunStreaming(t *testing.T) {
	r := loadedRunner(t, &fakeModel{tokens: []string{"a", "b", "c"}})
	var parts []string
	var final runner.Result
	for res := range r.RunStreaming(context.Background(), runner.NewRequest("s", map[string]any{runner.InputText: "x"}, nil)) {
		if res.Terminal() {
			final = res
			continue
		}
		parts = append(parts, res.(runner.Success).Text())
	}
	if strings.Join(parts, "") != "abc" {
		t.Fatalf("parts: %v", parts)
	}
	if s, ok := final.(runner.Success); !ok || s.Metadata[runner.MetaFinishReason] != "stop" {
		t.Fatalf("final: %+v", final)
	}
}

func TestRunStreamingCancelled(t *testing.T) {
	r := loadedRunner(t, &fakeModel{tokens: []string{"a"}, block: make(chan struct{})})
	ctx, cancel := context.WithCancel(context.Background())
	ch := r.RunStreaming(ctx, runner.NewRequest("s", map[string]any{runner.InputText: "x"}, nil))
	<-ch
	cancel()
	for res := range ch {
		if res.Terminal() {
			t.Fatalf("no terminal expected after cancel, got %+v", res)
		}
	}
}

func TestRunErrors(t *testing.T) {
	r := loadedRunner(t, &fakeModel{err: errors.New("oom")})
	res := r.Run(context.Background(), runner.NewRequest("s", map[string]any{runner.InputText: "x"}, nil))
	if f, ok := res.(runner.Failure); !ok || f.Err.Code != runner.CodeProcessingFailed {
		t.Fatalf("got %+v", res)
	}
	res = r.Run(context.Background(), runner.NewRequest("s", nil, nil))
	if f, ok := res.(runner.Failure); !ok || f.Err.Code != runner.CodeMissingInput {
		t.Fatalf("got %+v", res)
	}
	_ = r.Unload()
	res = r.Run(context.Background(), runner.NewRequest("s", map[string]any{runner.InputText: "x"}, nil))
	if f, ok := res.(runner.Failure); !ok || f.Err.Code != runner.CodeModelLoadFailed {
		t.Fatalf("unloaded: %+v", res)
	}
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	for _, n := range []string{"b.gguf", "a.GGUF", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, n), []byte("x"), 0o644); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
	rs, err := Discover(dir, Config{Priority: runner.PriorityHigh})
	if err != nil {
		t.Fatalf("discover: %v", err)
	}
	if len(rs) != 2 || rs[0].Describe().Name != "llama.cpp/a" || rs[1].Describe().Priority != runner.PriorityHigh {
		t.Fatalf("runners: %d", len(rs))
	}
	if rs[0].Describe().Requirements.MemoryMB != 1 {
		t.Fatalf("memory should fall back to file size")
	}
}
