// Package llamacpp runs GGUF models in-process through go-llama.cpp.
//
// The real backend is compiled only with the 'llama' build tag. Default
// builds carry a stub whose runners report IsSupported() == false, so the
// selector skips them and the binary stays CGO-free.
package llamacpp

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/rs/zerolog"

	"inferd/internal/common/fsutil"
	"inferd/internal/registry"
	"inferd/internal/runner"
)

const (
	defaultContextSize = 2048
	defaultMaxTokens   = 256
	defaultThreads     = 4
)

// predictOptions are the sampling knobs handed to the backend. Zero values
// mean "backend default".
type predictOptions struct {
	MaxTokens     int
	Threads       int
	Temperature   float32
	TopP          float32
	TopK          int
	RepeatPenalty float32
	Seed          int
	Stop          []string
}

// model is a loaded set of weights.
type model interface {
	// Predict blocks until generation ends. onToken may be nil; returning
	// false from it stops generation early.
	Predict(ctx context.Context, prompt string, opts predictOptions, onToken func(string) bool) (string, error)
	Close() error
}

type modelOptions struct {
	ContextSize int
	GPULayers   int
}

// Config describes one local model.
type Config struct {
	ModelID     string
	ModelPath   string
	ContextSize int
	Threads     int
	GPULayers   int
	Priority    runner.Priority
	// MemoryMB is the budget charge once loaded; 0 falls back to the file size.
	MemoryMB int
	Logger   *zerolog.Logger
}

// Runner serves LLM requests from one GGUF file. go-llama.cpp keeps a single
// token callback per model, so predictions are serialized.
type Runner struct {
	cfg  Config
	desc runner.Descriptor
	log  zerolog.Logger

	mu      sync.Mutex
	m       model
	loadCfg runner.LoadConfig
	threads int

	predictMu sync.Mutex
}

// New builds a runner for cfg.ModelPath.
func New(cfg Config) (*Runner, error) {
	if cfg.ModelPath == "" {
		return nil, runner.NewError(runner.CodeInvalidParameter, "model path is empty")
	}
	if cfg.ModelID == "" {
		return nil, runner.NewError(runner.CodeInvalidParameter, "model id is empty")
	}
	if cfg.ContextSize <= 0 {
		cfg.ContextSize = defaultContextSize
	}
	if cfg.Threads <= 0 {
		cfg.Threads = defaultThreads
	}
	r := &Runner{cfg: cfg, log: zerolog.Nop(), threads: cfg.Threads}
	if cfg.Logger != nil {
		r.log = cfg.Logger.With().Str("runner", "llama.cpp/"+cfg.ModelID).Logger()
	}
	req := runner.Requirements{MemoryMB: cfg.MemoryMB, MaxConcurrent: 1}
	if cfg.GPULayers > 0 {
		req.Accelerators = []string{"gpu"}
	}
	r.desc = runner.Descriptor{
		Name:         "llama.cpp/" + cfg.ModelID,
		Version:      "gguf",
		Capabilities: []runner.Capability{runner.CapabilityLLM},
		Vendor:       runner.VendorLlamaCpp,
		Priority:     cfg.Priority,
		Requirements: req,
		Enabled:      true,
		Metadata: map[string]string{
			runner.MetaModelID: cfg.ModelID,
			"path":             cfg.ModelPath,
			"context_size":     strconv.Itoa(cfg.ContextSize),
		},
	}
	return r, nil
}

// Discover builds one runner per *.gguf file under dir. base supplies the
// shared settings; ModelID, ModelPath and MemoryMB come from each file.
func Discover(dir string, base Config) ([]*Runner, error) {
	files, err := registry.DiscoverModels(dir)
	if err != nil {
		return nil, err
	}
	out := make([]*Runner, 0, len(files))
	for _, f := range files {
		cfg := base
		cfg.ModelID = f.ID
		cfg.ModelPath = f.Path
		if cfg.MemoryMB <= 0 {
			cfg.MemoryMB = f.SizeMB
		}
		r, err := New(cfg)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

func (r *Runner) Describe() runner.Descriptor { return r.desc.Clone() }

func (r *Runner) Capabilities() []runner.Capability {
	return append([]runner.Capability(nil), r.desc.Capabilities...)
}

// IsSupported is true when llama support is compiled in and the file exists.
func (r *Runner) IsSupported() bool {
	return built && fsutil.PathExists(r.cfg.ModelPath)
}

func (r *Runner) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m != nil
}

// Load opens the weights. Params may override "context_size", "threads"
// and "gpu_layers"; a different config reloads the model.
func (r *Runner) Load(ctx context.Context, cfg runner.LoadConfig) error {
	if err := ctx.Err(); err != nil {
		return runner.AsError(err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m != nil && r.loadCfg.Equal(cfg) {
		return nil
	}
	if !built {
		return runner.NewError(runner.CodeHardwareUnavailable, "llama support not built (missing 'llama' build tag)")
	}
	mo := modelOptions{
		ContextSize: intParam(cfg.Params, "context_size", r.cfg.ContextSize),
		GPULayers:   intParam(cfg.Params, "gpu_layers", r.cfg.GPULayers),
	}
	if r.m != nil {
		_ = r.m.Close()
		r.m = nil
	}
	m, err := openModel(r.cfg.ModelPath, mo)
	if err != nil {
		return runner.Wrap(runner.CodeModelLoadFailed, fmt.Sprintf("open %s", r.cfg.ModelPath), err)
	}
	r.m = m
	r.loadCfg = cfg
	r.threads = intParam(cfg.Params, "threads", r.cfg.Threads)
	r.log.Info().Str("path", r.cfg.ModelPath).Int("context_size", mo.ContextSize).Msg("model loaded")
	return nil
}

func (r *Runner) Unload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.m == nil {
		return nil
	}
	err := r.m.Close()
	r.m = nil
	r.log.Info().Msg("model unloaded")
	return err
}

func (r *Runner) loaded() (model, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.m, r.threads
}

// Run generates the full completion in one call.
func (r *Runner) Run(ctx context.Context, req runner.Request) runner.Result {
	text, err := r.predict(ctx, req, nil)
	if err != nil {
		return runner.Fail(err)
	}
	res := runner.TextResult(text, false)
	res.Metadata[runner.MetaFinishReason] = "stop"
	res.Metadata[runner.MetaRunner] = r.desc.Name
	return res
}

// RunStreaming forwards tokens as they are produced. Cancelling ctx stops
// generation and closes the channel without a terminal result.
func (r *Runner) RunStreaming(ctx context.Context, req runner.Request) <-chan runner.Result {
	out := make(chan runner.Result)
	go func() {
		defer close(out)
		_, err := r.predict(ctx, req, func(tok string) bool {
			select {
			case out <- runner.TextResult(tok, true):
				return true
			case <-ctx.Done():
				return false
			}
		})
		if ctx.Err() != nil {
			return
		}
		var final runner.Result
		if err != nil {
			final = runner.Fail(err)
		} else {
			s := runner.TextResult("", false)
			s.Metadata[runner.MetaFinishReason] = "stop"
			s.Metadata[runner.MetaRunner] = r.desc.Name
			final = s
		}
		select {
		case out <- final:
		case <-ctx.Done():
		}
	}()
	return out
}

func (r *Runner) predict(ctx context.Context, req runner.Request, onToken func(string) bool) (string, error) {
	prompt := req.Text()
	if prompt == "" {
		return "", runner.NewError(runner.CodeMissingInput, "no text input")
	}
	m, threads := r.loaded()
	if m == nil {
		return "", runner.NewError(runner.CodeModelLoadFailed, "model not loaded")
	}
	r.predictMu.Lock()
	defer r.predictMu.Unlock()
	text, err := m.Predict(ctx, prompt, predictOptionsFor(req, threads), onToken)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return "", runner.AsError(ctxErr)
	}
	if err != nil {
		return "", runner.Wrap(runner.CodeProcessingFailed, "predict", err)
	}
	return text, nil
}

func predictOptionsFor(req runner.Request, threads int) predictOptions {
	po := predictOptions{MaxTokens: defaultMaxTokens, Threads: threads, Stop: req.StringsParam(runner.ParamStop)}
	if n, ok := req.IntParam(runner.ParamMaxTokens); ok && n > 0 {
		po.MaxTokens = n
	}
	if v, ok := req.FloatParam(runner.ParamTemperature); ok {
		po.Temperature = float32(v)
	}
	if v, ok := req.FloatParam(runner.ParamTopP); ok {
		po.TopP = float32(v)
	}
	if n, ok := req.IntParam(runner.ParamTopK); ok {
		po.TopK = n
	}
	if v, ok := req.FloatParam(runner.ParamRepeatPenalty); ok {
		po.RepeatPenalty = float32(v)
	}
	if n, ok := req.IntParam(runner.ParamSeed); ok {
		po.Seed = n
	}
	return po
}

func intParam(params map[string]any, key string, def int) int {
	switch v := params[key].(type) {
	case int:
		if v > 0 {
			return v
		}
	case int64:
		if v > 0 {
			return int(v)
		}
	case float64:
		if v > 0 {
			return int(v)
		}
	}
	return def
}
