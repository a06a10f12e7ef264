package runner

import (
	"context"
	"reflect"
)

// LoadConfig is what a runner needs to become ready.
type LoadConfig struct {
	ModelID  string
	Settings map[string]string
	Params   map[string]any
}

// Equal reports whether two configs would load the same thing.
func (c LoadConfig) Equal(o LoadConfig) bool {
	return c.ModelID == o.ModelID &&
		reflect.DeepEqual(nonNilS(c.Settings), nonNilS(o.Settings)) &&
		reflect.DeepEqual(nonNilA(c.Params), nonNilA(o.Params))
}

func nonNilS(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

func nonNilA(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}

// Runner is implemented by every inference backend.
//
// Load must be idempotent: loading an already loaded runner with an equal
// LoadConfig returns nil without unloading in between. RunStreaming returns a
// channel that yields zero or more partial results followed by exactly one
// terminal result, then closes; it must close early when ctx is done.
type Runner interface {
	Load(ctx context.Context, cfg LoadConfig) error
	IsLoaded() bool
	Unload() error
	Run(ctx context.Context, req Request) Result
	RunStreaming(ctx context.Context, req Request) <-chan Result
	Capabilities() []Capability
	// IsSupported checks hardware and connectivity right now.
	IsSupported() bool
	Describe() Descriptor
}

// AudioStreamer is implemented by TTS runners that can emit audio
// incrementally.
type AudioStreamer interface {
	StreamsAudio() bool
}
