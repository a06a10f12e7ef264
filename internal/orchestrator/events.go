// Package orchestrator merges a runner's token stream with a concurrently
// running guardian pass into one ordered event stream.
package orchestrator

import (
	"inferd/internal/guardian"
	"inferd/internal/runner"
)

// Event is one item of an orchestrated stream: Content, SafetyMask,
// Complete or Error. A stream carries at most one terminal event and it is
// always the last.
type Event interface {
	isEvent()
}

// Content carries an incremental text delta.
type Content struct{ Delta string }

// SafetyMask asks the consumer to mask a span of the accumulated text.
type SafetyMask struct{ Action guardian.Action }

// Complete ends a successful stream with the full text.
type Complete struct{ Text string }

// Error ends a failed stream.
type Error struct{ Err *runner.Error }

func (Content) isEvent()    {}
func (SafetyMask) isEvent() {}
func (Complete) isEvent()   {}
func (Error) isEvent()      {}

// Terminal reports whether e ends the stream.
func Terminal(e Event) bool {
	switch e.(type) {
	case Complete, Error:
		return true
	}
	return false
}
