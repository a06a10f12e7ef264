package runner

import (
	"fmt"
	"strings"
)

// Capability identifies a kind of AI task a request needs or a runner offers.
type Capability string

const (
	CapabilityLLM      Capability = "llm"
	CapabilityVLM      Capability = "vlm"
	CapabilityASR      Capability = "asr"
	CapabilityTTS      Capability = "tts"
	CapabilityGuardian Capability = "guardian"
)

// Capabilities returns the closed set of known capabilities in a stable order.
func Capabilities() []Capability {
	return []Capability{CapabilityLLM, CapabilityVLM, CapabilityASR, CapabilityTTS, CapabilityGuardian}
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	switch c {
	case CapabilityLLM, CapabilityVLM, CapabilityASR, CapabilityTTS, CapabilityGuardian:
		return true
	}
	return false
}

func (c Capability) String() string { return string(c) }

// ParseCapability accepts the lower- or upper-case name of a capability.
func ParseCapability(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", NewError(CodeUnsupportedCapability, fmt.Sprintf("unknown capability %q", s))
	}
	return c, nil
}
