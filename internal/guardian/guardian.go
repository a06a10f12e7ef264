// Package guardian defines the content-safety pass applied to generated text.
package guardian

import (
	"context"
	"time"
)

// DefaultPollInterval is how often the streaming watcher re-checks text.
const DefaultPollInterval = 150 * time.Millisecond

// Action is one masking finding over the accumulated text: the byte range
// [Start, End) should be redacted or flagged. Actions are comparable so
// callers can deduplicate findings by value.
type Action struct {
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Category    string `json:"category"`
	Replacement string `json:"replacement,omitempty"`
}

// Config tunes the Guardian pass. The zero value is disabled.
type Config struct {
	Enabled      bool          `json:"enabled"`
	PollInterval time.Duration `json:"poll_interval"`
	Categories   []string      `json:"categories,omitempty"`
	BlockedTerms []string      `json:"blocked_terms,omitempty"`
	Replacement  string        `json:"replacement,omitempty"`
	// FinalCheck checks the full text once more before a stream completes.
	FinalCheck bool `json:"final_check,omitempty"`
}

// Interval returns PollInterval or DefaultPollInterval when unset.
func (c Config) Interval() time.Duration {
	if c.PollInterval <= 0 {
		return DefaultPollInterval
	}
	return c.PollInterval
}

// Clone returns a deep copy.
func (c Config) Clone() Config {
	out := c
	out.Categories = append([]string(nil), c.Categories...)
	out.BlockedTerms = append([]string(nil), c.BlockedTerms...)
	return out
}

// Pipeline analyses text for unsafe spans. CheckProgressive is a pure
// function of text: called again on a longer prefix it may report the same
// findings again.
type Pipeline interface {
	CheckProgressive(ctx context.Context, text string, cfg Config) ([]Action, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, text string, cfg Config) ([]Action, error)

func (f PipelineFunc) CheckProgressive(ctx context.Context, text string, cfg Config) ([]Action, error) {
	return f(ctx, text, cfg)
}
