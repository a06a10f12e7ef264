// Package openai implements runners backed by an OpenAI-compatible HTTP
// server (llama.cpp server, vLLM, a hosted API). One runner serves one
// endpoint family: chat completions (LLM, VLM), speech (TTS) or
// transcriptions (ASR).
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"inferd/internal/runner"
)

// Mode selects the endpoint family.
type Mode string

const (
	ModeChat          Mode = "chat"
	ModeSpeech        Mode = "speech"
	ModeTranscription Mode = "transcription"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeChat, ModeSpeech, ModeTranscription:
		return m, nil
	}
	return "", runner.NewError(runner.CodeInvalidParameter, fmt.Sprintf("unknown openai runner mode %q", s))
}

// Capabilities returns what a mode serves.
func (m Mode) Capabilities(vision bool) []runner.Capability {
	switch m {
	case ModeSpeech:
		return []runner.Capability{runner.CapabilityTTS}
	case ModeTranscription:
		return []runner.Capability{runner.CapabilityASR}
	}
	if vision {
		return []runner.Capability{runner.CapabilityLLM, runner.CapabilityVLM}
	}
	return []runner.Capability{runner.CapabilityLLM}
}

const (
	defaultConnectTimeout = 3 * time.Second
	defaultProbeInterval  = 30 * time.Second
)

// Config describes one remote runner.
type Config struct {
	Name    string
	Mode    Mode
	BaseURL string
	APIKey  string
	// Model is sent as the "model" field; LoadConfig.ModelID overrides it.
	Model string
	// Vision adds the VLM capability to a chat runner.
	Vision   bool
	Priority runner.Priority
	// Voice and Format are speech defaults when the request has none.
	Voice  string
	Format string

	RequestTimeout time.Duration
	ConnectTimeout time.Duration
	// ProbeInterval caches the connectivity check used by IsSupported.
	ProbeInterval time.Duration

	HTTPClient *http.Client
	Logger     *zerolog.Logger
}

// Runner talks to one OpenAI-compatible server.
type Runner struct {
	cfg    Config
	base   string
	client *http.Client
	log    zerolog.Logger
	desc   runner.Descriptor

	mu      sync.Mutex
	loaded  bool
	loadCfg runner.LoadConfig
	model   string

	probeMu   sync.Mutex
	probedAt  time.Time
	reachable bool
}

// New constructs a runner. The HTTP client has no overall timeout: every
// request carries a context deadline instead.
func New(cfg Config) (*Runner, error) {
	if cfg.Mode == "" {
		cfg.Mode = ModeChat
	}
	if _, err := ParseMode(string(cfg.Mode)); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimSpace(cfg.BaseURL))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, runner.NewError(runner.CodeInvalidParameter, fmt.Sprintf("invalid base url %q", cfg.BaseURL))
	}
	if cfg.Name == "" {
		cfg.Name = fmt.Sprintf("openai/%s@%s", cfg.Mode, u.Host)
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = defaultConnectTimeout
	}
	if cfg.ProbeInterval <= 0 {
		cfg.ProbeInterval = defaultProbeInterval
	}
	r := &Runner{
		cfg:    cfg,
		base:   strings.TrimRight(u.String(), "/"),
		client: cfg.HTTPClient,
		log:    zerolog.Nop(),
		model:  cfg.Model,
	}
	if cfg.Logger != nil {
		r.log = cfg.Logger.With().Str("runner", cfg.Name).Logger()
	}
	if r.client == nil {
		tr := &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   cfg.ConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
		}
		r.client = &http.Client{Transport: tr, Timeout: 0}
	}
	r.desc = runner.Descriptor{
		Name:         cfg.Name,
		Version:      "v1",
		Capabilities: cfg.Mode.Capabilities(cfg.Vision),
		Vendor:       runner.VendorOpenAICompatible,
		Priority:     cfg.Priority,
		Requirements: runner.Requirements{RequiresNetwork: true},
		Enabled:      true,
		Metadata: map[string]string{
			runner.MetaModelID: cfg.Model,
			"base_url":         r.base,
			"mode":             string(cfg.Mode),
		},
	}
	return r, nil
}

func (r *Runner) Describe() runner.Descriptor { return r.desc.Clone() }

func (r *Runner) Capabilities() []runner.Capability {
	return append([]runner.Capability(nil), r.desc.Capabilities...)
}

// Load records the model to request. Remote runners hold no local state, so
// loading is cheap; a "model" param or the config's ModelID picks the model.
func (r *Runner) Load(ctx context.Context, cfg runner.LoadConfig) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded && r.loadCfg.Equal(cfg) {
		return nil
	}
	model := r.cfg.Model
	if cfg.ModelID != "" {
		model = cfg.ModelID
	}
	if m, ok := cfg.Params["model"].(string); ok && m != "" {
		model = m
	}
	r.model = model
	r.loadCfg = cfg
	r.loaded = true
	r.log.Debug().Str("model", model).Msg("remote runner configured")
	return nil
}

func (r *Runner) IsLoaded() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loaded
}

func (r *Runner) Unload() error {
	r.mu.Lock()
	r.loaded = false
	r.mu.Unlock()
	r.client.CloseIdleConnections()
	return nil
}

func (r *Runner) currentModel() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.model
}

// IsSupported reports whether the server's host accepts TCP connections.
// The answer is cached for ProbeInterval.
func (r *Runner) IsSupported() bool {
	r.probeMu.Lock()
	defer r.probeMu.Unlock()
	if !r.probedAt.IsZero() && time.Since(r.probedAt) < r.cfg.ProbeInterval {
		return r.reachable
	}
	r.reachable = r.probe()
	r.probedAt = time.Now()
	return r.reachable
}

func (r *Runner) probe() bool {
	u, err := url.Parse(r.base)
	if err != nil {
		return false
	}
	host := u.Host
	if u.Port() == "" {
		if u.Scheme == "https" {
			host = net.JoinHostPort(u.Hostname(), "443")
		} else {
			host = net.JoinHostPort(u.Hostname(), "80")
		}
	}
	conn, err := net.DialTimeout("tcp", host, r.cfg.ConnectTimeout)
	if err != nil {
		r.log.Debug().Err(err).Msg("remote runner unreachable")
		return false
	}
	_ = conn.Close()
	return true
}

// Run executes req with one blocking HTTP call.
func (r *Runner) Run(ctx context.Context, req runner.Request) runner.Result {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	switch r.cfg.Mode {
	case ModeSpeech:
		return r.speech(ctx, req)
	case ModeTranscription:
		return r.transcribe(ctx, req)
	}
	return r.complete(ctx, req)
}

// RunStreaming streams chat completions token by token over SSE. Speech and
// transcription answer with a single terminal result.
func (r *Runner) RunStreaming(ctx context.Context, req runner.Request) <-chan runner.Result {
	if r.cfg.Mode != ModeChat {
		return runner.Single(r.Run(ctx, req))
	}
	out := make(chan runner.Result)
	go func() {
		defer close(out)
		ctx, cancel := r.withTimeout(ctx)
		defer cancel()
		r.streamChat(ctx, req, out)
	}()
	return out
}

func (r *Runner) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.cfg.RequestTimeout > 0 {
		return context.WithTimeout(ctx, r.cfg.RequestTimeout)
	}
	return context.WithCancel(ctx)
}

func (r *Runner) newRequest(ctx context.Context, path, contentType string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.base+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if r.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)
	}
	return req, nil
}
