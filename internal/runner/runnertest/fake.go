// Package runnertest provides an in-memory Runner for tests.
package runnertest

import (
	"context"
	"strings"
	"sync"
	"time"

	"inferd/internal/runner"
)

// Fake is a scriptable runner. Configure the exported fields before use;
// they are read under the runner's lock.
type Fake struct {
	mu sync.Mutex

	Desc      runner.Descriptor
	Supported bool

	// Chunks are streamed as partial results, ChunkDelay apart.
	Chunks     []string
	ChunkDelay time.Duration
	// HoldOpen keeps the stream open after the chunks until ctx is done.
	HoldOpen bool
	// StreamErr replaces the terminal success of a stream.
	StreamErr *runner.Error

	// RunText is returned by Run; defaults to the concatenated chunks.
	RunText  string
	RunAudio []byte
	RunErr   *runner.Error
	Panic    bool

	AudioStreaming bool
	// AudioChunks are streamed as partial results carrying OutputAudio
	// after the text chunks.
	AudioChunks [][]byte

	LoadErr error
	// LoadDelay makes Load take this long; Load gives up early when ctx is done.
	LoadDelay time.Duration

	loaded    bool
	loadCfg   runner.LoadConfig
	loads     int
	loadCalls int
	unloads   int
	requests  []runner.Request
}

// NewFake returns an enabled, supported local runner.
func NewFake(name string, caps ...runner.Capability) *Fake {
	return &Fake{
		Desc: runner.Descriptor{
			Name:         name,
			Version:      "test",
			Capabilities: caps,
			Vendor:       runner.Vendor{Name: "fake"},
			Priority:     runner.PriorityNormal,
			Enabled:      true,
		},
		Supported: true,
	}
}

func (f *Fake) Load(ctx context.Context, cfg runner.LoadConfig) error {
	f.mu.Lock()
	delay := f.LoadDelay
	f.mu.Unlock()
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loadCalls++
	if f.loaded && f.loadCfg.Equal(cfg) {
		return nil
	}
	if f.LoadErr != nil {
		return f.LoadErr
	}
	f.loaded = true
	f.loadCfg = cfg
	f.loads++
	return nil
}

func (f *Fake) IsLoaded() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loaded
}

func (f *Fake) Unload() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	f.unloads++
	return nil
}

func (f *Fake) Run(ctx context.Context, req runner.Request) runner.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	panicking, runErr := f.Panic, f.RunErr
	text := f.RunText
	if text == "" {
		text = strings.Join(f.Chunks, "")
	}
	audio := f.RunAudio
	f.mu.Unlock()
	if panicking {
		panic("fake runner panic")
	}
	if runErr != nil {
		return runner.Failure{Err: runErr}
	}
	res := runner.TextResult(text, false)
	if audio != nil {
		res.Outputs[runner.OutputAudio] = audio
	}
	return res
}

func (f *Fake) RunStreaming(ctx context.Context, req runner.Request) <-chan runner.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	chunks := append([]string(nil), f.Chunks...)
	audio := append([][]byte(nil), f.AudioChunks...)
	delay, hold, streamErr, panicking := f.ChunkDelay, f.HoldOpen, f.StreamErr, f.Panic
	f.mu.Unlock()
	if panicking {
		panic("fake runner panic")
	}

	ch := make(chan runner.Result)
	go func() {
		defer close(ch)
		send := func(r runner.Result) bool {
			select {
			case ch <- r:
				return true
			case <-ctx.Done():
				return false
			}
		}
		for _, c := range chunks {
			if delay > 0 {
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					return
				}
			}
			if !send(runner.TextResult(c, true)) {
				return
			}
		}
		for _, a := range audio {
			if !send(runner.Success{Outputs: map[string]any{runner.OutputAudio: a}, Partial: true}) {
				return
			}
		}
		if hold {
			<-ctx.Done()
			return
		}
		if streamErr != nil {
			send(runner.Failure{Err: streamErr})
			return
		}
		send(runner.TextResult("", false))
	}()
	return ch
}

func (f *Fake) Capabilities() []runner.Capability {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Capability(nil), f.Desc.Capabilities...)
}

func (f *Fake) IsSupported() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Supported
}

// SetSupported flips the hardware/connectivity answer.
func (f *Fake) SetSupported(v bool) {
	f.mu.Lock()
	f.Supported = v
	f.mu.Unlock()
}

func (f *Fake) Describe() runner.Descriptor {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Desc.Clone()
}

func (f *Fake) StreamsAudio() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.AudioStreaming
}

// Loads returns how many loads actually happened (idempotent calls excluded).
func (f *Fake) Loads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loads
}

// LoadCalls returns how many times Load was called.
func (f *Fake) LoadCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCalls
}

// Unloads returns how many times Unload was called.
func (f *Fake) Unloads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.unloads
}

// LoadConfig returns the config of the last effective load.
func (f *Fake) LoadConfig() runner.LoadConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.loadCfg
}

// Requests returns the requests seen by Run and RunStreaming.
func (f *Fake) Requests() []runner.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.Request(nil), f.requests...)
}
