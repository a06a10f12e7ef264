// Package config loads the inferd configuration file. The format is picked
// by extension: .yaml/.yml, .json or .toml.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"inferd/internal/guardian"
	"inferd/internal/runner"
	"inferd/internal/settings"
)

// Config holds runtime parameters for the service.
// Zero values mean "unspecified"; ApplyDefaults fills them in.
type Config struct {
	Addr      string `json:"addr" yaml:"addr" toml:"addr"`
	LogLevel  string `json:"log_level" yaml:"log_level" toml:"log_level"`
	LogFormat string `json:"log_format" yaml:"log_format" toml:"log_format"`

	// ModelsDir is scanned for *.gguf files, one local runner per file.
	ModelsDir string      `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	Llama     LlamaConfig `json:"llama" yaml:"llama" toml:"llama"`
	Remotes   []Remote    `json:"remotes" yaml:"remotes" toml:"remotes"`

	BudgetMB int `json:"budget_mb" yaml:"budget_mb" toml:"budget_mb"`
	MarginMB int `json:"margin_mb" yaml:"margin_mb" toml:"margin_mb"`

	// Selection pins a runner name per capability ("llm", "tts", ...).
	Selection    map[string]string         `json:"selection" yaml:"selection" toml:"selection"`
	TieBreak     []string                  `json:"tie_break" yaml:"tie_break" toml:"tie_break"`
	RunnerParams map[string]map[string]any `json:"runner_params" yaml:"runner_params" toml:"runner_params"`
	Guardian     Guardian                  `json:"guardian" yaml:"guardian" toml:"guardian"`
	Admission    Admission                 `json:"admission" yaml:"admission" toml:"admission"`
	HTTP         HTTP                      `json:"http" yaml:"http" toml:"http"`
}

// LlamaConfig applies to every discovered GGUF runner.
type LlamaConfig struct {
	ContextSize int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	Threads     int    `json:"threads" yaml:"threads" toml:"threads"`
	GPULayers   int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Priority    string `json:"priority" yaml:"priority" toml:"priority"`
}

// Remote is one OpenAI-compatible endpoint.
type Remote struct {
	Name    string `json:"name" yaml:"name" toml:"name"`
	Mode    string `json:"mode" yaml:"mode" toml:"mode"`
	BaseURL string `json:"base_url" yaml:"base_url" toml:"base_url"`
	APIKey  string `json:"api_key" yaml:"api_key" toml:"api_key"`
	// APIKeyEnv names an environment variable holding the key.
	APIKeyEnv             string `json:"api_key_env" yaml:"api_key_env" toml:"api_key_env"`
	Model                 string `json:"model" yaml:"model" toml:"model"`
	Vision                bool   `json:"vision" yaml:"vision" toml:"vision"`
	Priority              string `json:"priority" yaml:"priority" toml:"priority"`
	Voice                 string `json:"voice" yaml:"voice" toml:"voice"`
	Format                string `json:"format" yaml:"format" toml:"format"`
	RequestTimeoutSeconds int    `json:"request_timeout_seconds" yaml:"request_timeout_seconds" toml:"request_timeout_seconds"`
	Disabled              bool   `json:"disabled" yaml:"disabled" toml:"disabled"`
}

// Key returns the API key, preferring APIKeyEnv when it is set and non-empty.
func (r Remote) Key() string {
	if r.APIKeyEnv != "" {
		if v := os.Getenv(r.APIKeyEnv); v != "" {
			return v
		}
	}
	return r.APIKey
}

// RequestTimeout converts the seconds field.
func (r Remote) RequestTimeout() time.Duration {
	return time.Duration(r.RequestTimeoutSeconds) * time.Second
}

type Guardian struct {
	Enabled bool `json:"enabled" yaml:"enabled" toml:"enabled"`
	// Pipeline is "terms" (keyword matcher) or "runner" (a GUARDIAN runner).
	Pipeline       string   `json:"pipeline" yaml:"pipeline" toml:"pipeline"`
	PollIntervalMS int      `json:"poll_interval_ms" yaml:"poll_interval_ms" toml:"poll_interval_ms"`
	Categories     []string `json:"categories" yaml:"categories" toml:"categories"`
	BlockedTerms   []string `json:"blocked_terms" yaml:"blocked_terms" toml:"blocked_terms"`
	Replacement    string   `json:"replacement" yaml:"replacement" toml:"replacement"`
	// FinalCheck runs the pipeline over the full text before a stream completes.
	FinalCheck bool `json:"final_check" yaml:"final_check" toml:"final_check"`
}

type Admission struct {
	MaxQueueDepth  int `json:"max_queue_depth" yaml:"max_queue_depth" toml:"max_queue_depth"`
	MaxWaitMS      int `json:"max_wait_ms" yaml:"max_wait_ms" toml:"max_wait_ms"`
	DrainTimeoutMS int `json:"drain_timeout_ms" yaml:"drain_timeout_ms" toml:"drain_timeout_ms"`
}

type HTTP struct {
	MaxBodyBytes          int64 `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	SessionTimeoutSeconds int   `json:"session_timeout_seconds" yaml:"session_timeout_seconds" toml:"session_timeout_seconds"`
	CORS                  CORS  `json:"cors" yaml:"cors" toml:"cors"`
}

type CORS struct {
	Enabled bool     `json:"enabled" yaml:"enabled" toml:"enabled"`
	Origins []string `json:"origins" yaml:"origins" toml:"origins"`
	Methods []string `json:"methods" yaml:"methods" toml:"methods"`
	Headers []string `json:"headers" yaml:"headers" toml:"headers"`
}

// Guardian pipeline names.
const (
	PipelineTerms  = "terms"
	PipelineRunner = "runner"
)

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(b, &cfg)
	case ".json":
		err = json.Unmarshal(b, &cfg)
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	if err != nil {
		return cfg, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}
	return cfg, nil
}

// ApplyDefaults fills unspecified fields.
func (c *Config) ApplyDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFormat == "" {
		c.LogFormat = "console"
	}
	if c.Guardian.Pipeline == "" {
		c.Guardian.Pipeline = PipelineTerms
	}
	if c.HTTP.CORS.Enabled {
		if len(c.HTTP.CORS.Methods) == 0 {
			c.HTTP.CORS.Methods = []string{"GET", "POST", "DELETE", "OPTIONS"}
		}
		if len(c.HTTP.CORS.Headers) == 0 {
			c.HTTP.CORS.Headers = []string{"Content-Type", "X-Session-ID", "X-Log-Level"}
		}
	}
}

// Validate checks values that would otherwise fail late.
func (c Config) Validate() error {
	switch c.Guardian.Pipeline {
	case "", PipelineTerms, PipelineRunner:
	default:
		return fmt.Errorf("unknown guardian pipeline %q", c.Guardian.Pipeline)
	}
	if _, err := runner.ParsePriority(c.Llama.Priority); err != nil {
		return fmt.Errorf("llama.priority: %w", err)
	}
	seen := map[string]bool{}
	for i, r := range c.Remotes {
		if r.BaseURL == "" {
			return fmt.Errorf("remotes[%d]: base_url is required", i)
		}
		if _, err := runner.ParsePriority(r.Priority); err != nil {
			return fmt.Errorf("remotes[%d].priority: %w", i, err)
		}
		if r.Name != "" {
			if seen[r.Name] {
				return fmt.Errorf("remotes[%d]: duplicate name %q", i, r.Name)
			}
			seen[r.Name] = true
		}
	}
	_, err := c.EngineSettings()
	return err
}

// EngineSettings maps the file onto a settings snapshot.
func (c Config) EngineSettings() (settings.EngineSettings, error) {
	s := settings.Default()
	s.SelectedRunners = make(map[runner.Capability]string, len(c.Selection))
	s.RunnerParams = make(map[string]map[string]any, len(c.RunnerParams))
	for capName, name := range c.Selection {
		cp, err := runner.ParseCapability(capName)
		if err != nil {
			return settings.EngineSettings{}, fmt.Errorf("selection: %w", err)
		}
		if name != "" {
			s.SelectedRunners[cp] = name
		}
	}
	for name, params := range c.RunnerParams {
		cp := make(map[string]any, len(params))
		for k, v := range params {
			cp[k] = v
		}
		s.RunnerParams[name] = cp
	}
	tb, err := settings.ParseTieBreak(c.TieBreak)
	if err != nil {
		return settings.EngineSettings{}, fmt.Errorf("tie_break: %w", err)
	}
	s.TieBreak = tb
	s.Guardian = guardian.Config{
		Enabled:      c.Guardian.Enabled,
		PollInterval: time.Duration(c.Guardian.PollIntervalMS) * time.Millisecond,
		Categories:   append([]string(nil), c.Guardian.Categories...),
		BlockedTerms: append([]string(nil), c.Guardian.BlockedTerms...),
		Replacement:  c.Guardian.Replacement,
		FinalCheck:   c.Guardian.FinalCheck,
	}
	return s, nil
}

func (a Admission) MaxWait() time.Duration {
	return time.Duration(a.MaxWaitMS) * time.Millisecond
}

func (a Admission) DrainTimeout() time.Duration {
	return time.Duration(a.DrainTimeoutMS) * time.Millisecond
}
