package config

import (
	"testing"
)

func TestLoad_NonexistentFile(t *testing.T) {
	if _, err := Load("/definitely/not/a/real/file-12345.yaml"); err == nil {
		t.Fatalf("expected error for nonexistent file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.yaml", "addr: :8080\n: broken\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected YAML unmarshal error")
	}
}

func TestLoad_InvalidJSON(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.json", `{ "addr": ":8080", "models_dir": }`)
	if _, err := Load(p); err == nil {
		t.Fatalf("expected JSON unmarshal error")
	}
}

func TestLoad_InvalidTOML(t *testing.T) {
	p := writeTempFile(t, t.TempDir(), "bad.toml", "addr=:8080\nmodels_dir\n")
	if _, err := Load(p); err == nil {
		t.Fatalf("expected TOML unmarshal error")
	}
}

func TestApplyDefaults(t *testing.T) {
	var c Config
	c.HTTP.CORS.Enabled = true
	c.ApplyDefaults()
	if c.Addr != ":8080" || c.LogLevel != "info" || c.LogFormat != "console" || c.Guardian.Pipeline != PipelineTerms {
		t.Fatalf("defaults: %+v", c)
	}
	if len(c.HTTP.CORS.Methods) == 0 || len(c.HTTP.CORS.Headers) == 0 {
		t.Fatalf("cors defaults: %+v", c.HTTP.CORS)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]Config{
		"pipeline":    {Guardian: Guardian{Pipeline: "llm"}},
		"llama prio":  {Llama: LlamaConfig{Priority: "urgent"}},
		"no base url": {Remotes: []Remote{{Name: "a"}}},
		"dup remote":  {Remotes: []Remote{{Name: "a", BaseURL: "http://x"}, {Name: "a", BaseURL: "http://y"}}},
		"selection":   {Selection: map[string]string{"video": "x"}},
		"tie-break":   {TieBreak: []string{"speed"}},
		"remote prio": {Remotes: []Remote{{BaseURL: "http://x", Priority: "max"}}},
	}
	for name, c := range cases {
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", name)
		}
	}
}

func TestRemoteKeyPrefersEnv(t *testing.T) {
	t.Setenv("INFERD_TEST_KEY", "from-env")
	r := Remote{APIKey: "inline", APIKeyEnv: "INFERD_TEST_KEY"}
	if r.Key() != "from-env" {
		t.Fatalf("key=%q", r.Key())
	}
	r.APIKeyEnv = "INFERD_TEST_KEY_UNSET"
	if r.Key() != "inline" {
		t.Fatalf("fallback key=%q", r.Key())
	}
}
