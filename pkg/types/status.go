package types

// RunnerInfo describes a registered runner for GET /runners.
type RunnerInfo struct {
	// example: llama.cpp/tinyllama-q4
	Name string `json:"name" example:"llama.cpp/tinyllama-q4"`
	// example: 1.0
	Version string `json:"version,omitempty" example:"1.0"`
	// Capabilities served (llm, vlm, asr, tts, guardian).
	Capabilities []string `json:"capabilities"`
	// example: llama.cpp
	Vendor string `json:"vendor" example:"llama.cpp"`
	// Whether the runner needs the network.
	// example: false
	Network bool `json:"network" example:"false"`
	// example: normal
	Priority string `json:"priority" example:"normal"`
	// example: true
	Enabled bool `json:"enabled" example:"true"`
	// Hardware/connectivity check result at request time.
	// example: true
	Supported bool `json:"supported" example:"true"`
	// example: false
	Loaded bool `json:"loaded" example:"false"`
	// Capabilities this runner is pinned to in the current settings.
	SelectedFor []string          `json:"selected_for,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// RunnersResponse wraps GET /runners.
type RunnersResponse struct {
	Runners []RunnerInfo `json:"runners"`
}

// RunnerStatus summarizes the lifecycle of one runner for /status.
type RunnerStatus struct {
	// example: llama.cpp/tinyllama-q4
	Name string `json:"name" example:"llama.cpp/tinyllama-q4"`
	// Lifecycle state (unloaded, loading, ready, draining, error).
	// example: ready
	State string `json:"state" example:"ready"`
	// example: true
	Loaded bool `json:"loaded" example:"true"`
	// Last time this runner served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated resident memory in MB.
	// example: 1200
	EstMB int `json:"est_mb" example:"1200"`
	// Requests waiting for a slot.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// Requests currently running.
	// example: 1
	Inflight int `json:"inflight" example:"1"`
	// Concurrency limit; 0 means unlimited.
	// example: 1
	MaxConcurrent int `json:"max_concurrent" example:"1"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// Last load error, if any.
	Error string `json:"error,omitempty"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// example: true
	Ready   bool           `json:"ready" example:"true"`
	Runners []RunnerStatus `json:"runners"`
	// Memory budget in MB across loaded runners; 0 means unlimited.
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// example: 1
	LoadsInProgress int `json:"loads_in_progress" example:"1"`
	// example: 0
	DrainingCount int `json:"draining_count" example:"0"`
	// Total loads and evictions since start.
	LoadsTotal     uint64 `json:"loads_total"`
	EvictionsTotal uint64 `json:"evictions_total"`
	// Active coordinator sessions, filled by the HTTP layer.
	ActiveSessions int `json:"active_sessions"`
	// Number of settings replacements since start.
	SettingsVersion uint64 `json:"settings_version"`
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}
