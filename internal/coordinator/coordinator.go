// Package coordinator converts external chat, speech and transcription
// requests into runner requests, executes them on the selected runner and
// converts the results back into external events.
//
// Every Process call returns a channel that carries at most one terminal
// event and is always closed. A channel closed without a terminal event
// means the caller cancelled (context or Cancel). Failures, including
// runner panics, never escape as Go errors or panics.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"inferd/internal/guardian"
	"inferd/internal/manager"
	"inferd/internal/runner"
	"inferd/internal/settings"
	"inferd/pkg/types"
)

// RunnerSource selects and leases runners. *manager.Manager implements it.
type RunnerSource interface {
	Acquire(ctx context.Context, c runner.Capability) (*manager.Lease, error)
	Settings() *settings.EngineSettings
}

// Config configures a Coordinator.
type Config struct {
	Source RunnerSource
	// Pipeline backs the guardian watcher for streaming chat; nil disables it
	// even when the settings enable the guardian.
	Pipeline guardian.Pipeline
	Logger   *zerolog.Logger
}

type Coordinator struct {
	src      RunnerSource
	pipeline guardian.Pipeline
	log      zerolog.Logger

	mu       sync.Mutex
	sessions map[string]context.CancelFunc
}

func New(cfg Config) *Coordinator {
	c := &Coordinator{
		src:      cfg.Source,
		pipeline: cfg.Pipeline,
		log:      zerolog.Nop(),
		sessions: make(map[string]context.CancelFunc),
	}
	if cfg.Logger != nil {
		c.log = *cfg.Logger
	}
	return c
}

// Cancel cancels an in-flight session. It reports whether the session was
// found; the session's channel then closes without a terminal event.
func (c *Coordinator) Cancel(sessionID string) bool {
	c.mu.Lock()
	cancel, ok := c.sessions[sessionID]
	c.mu.Unlock()
	if ok {
		cancel()
		c.log.Debug().Str("session", sessionID).Msg("session cancelled")
	}
	return ok
}

// CancelAll cancels every in-flight session; used at shutdown.
func (c *Coordinator) CancelAll() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cancel := range c.sessions {
		cancel()
	}
	return len(c.sessions)
}

// Active returns the number of in-flight sessions.
func (c *Coordinator) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sessions)
}

// begin registers a session. An empty id gets a fresh UUID; an id already
// in flight is a SESSION_CONFLICT.
func (c *Coordinator) begin(parent context.Context, id string) (string, context.Context, func(), error) {
	if id == "" {
		id = uuid.NewString()
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.sessions[id]; busy {
		return id, nil, nil, runner.NewError(runner.CodeSessionConflict, fmt.Sprintf("session %q already in progress", id))
	}
	ctx, cancel := context.WithCancel(parent)
	c.sessions[id] = cancel
	end := func() {
		c.mu.Lock()
		delete(c.sessions, id)
		c.mu.Unlock()
		cancel()
	}
	return id, ctx, end, nil
}

// event is the constraint shared by the external event types.
type event interface {
	types.ChatEvent | types.AudioEvent | types.TranscriptEvent
}

// sink delivers events for one session and enforces the single terminal.
type sink[E event] struct {
	ctx      context.Context
	out      chan E
	terminal func(E) bool
	done     bool
}

// send delivers ev unless the session already ended or was cancelled.
func (s *sink[E]) send(ev E) bool {
	if s.done || s.ctx.Err() != nil {
		return false
	}
	select {
	case s.out <- ev:
		if s.terminal(ev) {
			s.done = true
		}
		return true
	case <-s.ctx.Done():
		return false
	}
}

// start runs body in a session goroutine. body emits non-error events via
// the sink and returns an error to end the session with an error event.
func start[E event](c *Coordinator, parent context.Context, sessionID, kind string,
	terminal func(E) bool, fail func(id string, err *runner.Error) E,
	body func(ctx context.Context, id string, s *sink[E]) error,
) <-chan E {
	began := time.Now()
	id, ctx, end, err := c.begin(parent, sessionID)
	if err != nil {
		ch := make(chan E, 1)
		ch <- fail(id, runner.AsError(err))
		close(ch)
		sessionsTotal.WithLabelValues(kind, "rejected").Inc()
		c.log.Warn().Str("session", id).Str("kind", kind).Err(err).Msg("session rejected")
		return ch
	}
	activeSessions.Inc()
	log := c.log.With().Str("session", id).Str("kind", kind).Logger()
	log.Debug().Msg("session started")

	out := make(chan E)
	go func() {
		s := &sink[E]{ctx: ctx, out: out, terminal: terminal}
		outcome := "ok"
		defer func() {
			if r := recover(); r != nil {
				log.Error().Interface("panic", r).Msg("session panicked")
				outcome = "error"
				s.send(fail(id, runner.NewError(runner.CodeInternal, fmt.Sprintf("internal error: %v", r))))
			}
			if outcome == "ok" && !s.done {
				outcome = "cancelled"
			}
			close(out)
			end()
			activeSessions.Dec()
			sessionsTotal.WithLabelValues(kind, outcome).Inc()
			sessionDuration.WithLabelValues(kind).Observe(time.Since(began).Seconds())
			log.Debug().Str("outcome", outcome).Dur("took", time.Since(began)).Msg("session finished")
		}()

		if err := body(ctx, id, s); err != nil {
			if ctx.Err() != nil {
				outcome = "cancelled"
				return
			}
			outcome = "error"
			rerr := runner.AsError(err)
			log.Warn().Str("code", string(rerr.Code)).Err(rerr).Msg("session failed")
			s.send(fail(id, rerr))
		}
	}()
	return out
}

func errorBody(err *runner.Error) *types.ErrorBody {
	return &types.ErrorBody{Code: string(err.Code), Message: err.Message, Recoverable: err.Recoverable}
}

// drain consumes a runner stream, calling onPartial for each partial
// success, and returns the terminal success. A stream that closes without a
// terminal result is STREAM_INTERRUPTED unless ctx was cancelled.
func drain(ctx context.Context, results <-chan runner.Result, onPartial func(runner.Success) bool) (runner.Success, error) {
	for {
		select {
		case <-ctx.Done():
			return runner.Success{}, ctx.Err()
		case res, ok := <-results:
			if !ok {
				if err := ctx.Err(); err != nil {
					return runner.Success{}, err
				}
				return runner.Success{}, runner.NewError(runner.CodeStreamInterrupted, "runner stream ended without a result")
			}
			switch r := res.(type) {
			case runner.Failure:
				return runner.Success{}, failureErr(r)
			case runner.Success:
				if !r.Partial {
					return r, nil
				}
				if !onPartial(r) {
					return runner.Success{}, context.Canceled
				}
			}
		}
	}
}

func failureErr(f runner.Failure) error {
	if f.Err == nil {
		return runner.NewError(runner.CodeProcessingFailed, "runner reported failure without an error")
	}
	return f.Err
}
