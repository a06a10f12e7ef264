package runner

import (
	"fmt"
	"strings"
)

// Vendor identifies who backs a runner and whether it needs the network.
type Vendor struct {
	Name    string `json:"name"`
	Network bool   `json:"network"`
}

// Local reports whether the vendor runs entirely on-device.
func (v Vendor) Local() bool { return !v.Network }

// Reference vendors used by the bundled runners.
var (
	VendorLlamaCpp         = Vendor{Name: "llama.cpp"}
	VendorOpenAICompatible = Vendor{Name: "openai-compatible", Network: true}
)

// Priority is a tier used to break ties between candidate runners.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityNormal
	PriorityHigh
)

func (p Priority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return fmt.Sprintf("priority(%d)", int(p))
	}
}

// ParsePriority maps "low", "normal" and "high"; empty means normal.
func ParsePriority(s string) (Priority, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "low":
		return PriorityLow, nil
	case "", "normal":
		return PriorityNormal, nil
	case "high":
		return PriorityHigh, nil
	}
	return PriorityNormal, NewError(CodeInvalidParameter, fmt.Sprintf("unknown priority %q", s))
}

// Requirements describe what a runner needs from the host.
type Requirements struct {
	RequiresNetwork bool `json:"requires_network"`
	// MemoryMB is the estimated resident size once loaded; 0 means negligible.
	MemoryMB int `json:"memory_mb,omitempty"`
	// MaxConcurrent bounds in-flight requests; 0 means unlimited.
	MaxConcurrent int      `json:"max_concurrent,omitempty"`
	Accelerators  []string `json:"accelerators,omitempty"`
}

// Metadata keys understood by the engine.
const (
	MetaModelID = "model_id"
)

// Descriptor is the static metadata of one runner. Treat it as a value:
// WithEnabled returns a modified copy and never touches the receiver.
type Descriptor struct {
	Name         string            `json:"name"`
	Version      string            `json:"version"`
	Capabilities []Capability      `json:"capabilities"`
	Vendor       Vendor            `json:"vendor"`
	Priority     Priority          `json:"priority"`
	Requirements Requirements      `json:"requirements"`
	Enabled      bool              `json:"enabled"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields Register relies on.
func (d Descriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return NewError(CodeInvalidInput, "runner descriptor has no name")
	}
	if len(d.Capabilities) == 0 {
		return NewError(CodeInvalidInput, fmt.Sprintf("runner %q declares no capabilities", d.Name))
	}
	for _, c := range d.Capabilities {
		if !c.Valid() {
			return NewError(CodeUnsupportedCapability, fmt.Sprintf("runner %q declares unknown capability %q", d.Name, c))
		}
	}
	return nil
}

// Supports reports whether the descriptor lists c.
func (d Descriptor) Supports(c Capability) bool {
	for _, have := range d.Capabilities {
		if have == c {
			return true
		}
	}
	return false
}

// ModelID returns the model identifier configured in metadata, if any.
func (d Descriptor) ModelID() string { return d.Metadata[MetaModelID] }

// Clone returns a deep copy.
func (d Descriptor) Clone() Descriptor {
	out := d
	out.Capabilities = append([]Capability(nil), d.Capabilities...)
	out.Requirements.Accelerators = append([]string(nil), d.Requirements.Accelerators...)
	if d.Metadata != nil {
		out.Metadata = make(map[string]string, len(d.Metadata))
		for k, v := range d.Metadata {
			out.Metadata[k] = v
		}
	}
	return out
}

// WithEnabled returns a copy with the enabled flag set.
func (d Descriptor) WithEnabled(enabled bool) Descriptor {
	out := d.Clone()
	out.Enabled = enabled
	return out
}
