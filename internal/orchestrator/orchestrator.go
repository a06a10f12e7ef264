package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"inferd/internal/guardian"
	"inferd/internal/runner"
)

// Options configures one orchestrated stream.
type Options struct {
	Guardian guardian.Config
	// Pipeline is required for the watcher to run; nil disables it.
	Pipeline guardian.Pipeline
	Logger   *zerolog.Logger
}

func (o Options) watching() bool { return o.Guardian.Enabled && o.Pipeline != nil }

type session struct {
	rn     runner.Runner
	req    runner.Request
	opts   Options
	log    zerolog.Logger
	mb     *mailbox
	text   transcript
	seen   sync.Map // guardian.Action -> struct{}
	cancel context.CancelFunc
}

// Stream runs req on rn in streaming mode and returns the ordered event
// stream. Content events are forwarded as chunks arrive; when the guardian
// is enabled a watcher checks the growing transcript every poll interval and
// emits each distinct SafetyMask once. The stream ends with exactly one
// Complete or Error, unless ctx is cancelled, in which case pending events
// are dropped and the channel closes without a terminal event.
//
// A mask may arrive after the Content it covers; consumers apply masks to
// the text they have already accumulated. The watcher stops when the feeder
// does, so a runner that finishes inside the first poll interval is never
// checked unless Guardian.FinalCheck is set. FinalCheck runs the pipeline
// once over the full text before Complete.
func Stream(ctx context.Context, rn runner.Runner, req runner.Request, opts Options) <-chan Event {
	out := make(chan Event)
	scope, cancel := context.WithCancel(ctx)
	s := &session{
		rn:     rn,
		req:    req,
		opts:   opts,
		log:    zerolog.Nop(),
		mb:     newMailbox(),
		cancel: cancel,
	}
	if opts.Logger != nil {
		s.log = opts.Logger.With().Str("session", req.SessionID).Logger()
	}

	g, gctx := errgroup.WithContext(scope)
	g.Go(func() error {
		// either side finishing ends the scope
		defer cancel()
		s.feed(gctx)
		return nil
	})
	if opts.watching() {
		g.Go(func() error {
			s.watch(gctx)
			return nil
		})
	}
	go func() {
		_ = g.Wait()
		cancel()
	}()
	go s.mb.pump(ctx, out)
	return out
}

// feed forwards the runner stream into the mailbox and closes it.
func (s *session) feed(ctx context.Context) {
	defer s.mb.close()
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("runner stream panicked")
			s.mb.push(Error{Err: runner.NewError(runner.CodeInternal, fmt.Sprintf("runner panic: %v", r))})
		}
	}()

	results := s.rn.RunStreaming(ctx, s.req)
	for {
		select {
		case <-ctx.Done():
			return
		case res, ok := <-results:
			if !ok {
				if ctx.Err() == nil {
					s.mb.push(Error{Err: runner.NewError(runner.CodeStreamInterrupted, "runner stream ended without a result")})
				}
				return
			}
			switch r := res.(type) {
			case runner.Success:
				if delta := r.Text(); delta != "" {
					// queue before publishing so no mask precedes its content
					s.mb.push(Content{Delta: delta})
					s.text.append(delta)
				}
				if !r.Partial {
					if s.opts.watching() && s.opts.Guardian.FinalCheck && !s.finalCheck(ctx) {
						return
					}
					s.mb.push(Complete{Text: s.text.String()})
					return
				}
			case runner.Failure:
				err := r.Err
				if err == nil {
					err = runner.NewError(runner.CodeProcessingFailed, "runner reported failure without an error")
				}
				s.mb.push(Error{Err: err})
				return
			}
		}
	}
}

// watch polls the transcript and runs the guardian pipeline on changes.
func (s *session) watch(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Msg("guardian pipeline panicked")
			s.mb.push(Error{Err: runner.NewError(runner.CodeInternal, fmt.Sprintf("guardian panic: %v", r))})
			s.cancel()
		}
	}()

	cfg := s.opts.Guardian
	ticker := time.NewTicker(cfg.Interval())
	defer ticker.Stop()
	lastVersion := 0
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		text, version := s.text.snapshot()
		if version == lastVersion {
			continue
		}
		lastVersion = version

		start := time.Now()
		actions, err := s.opts.Pipeline.CheckProgressive(ctx, text, cfg)
		checkDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			checkErrorsTotal.Inc()
			s.log.Warn().Err(err).Msg("guardian check failed")
			s.mb.push(Error{Err: runner.Wrap(runner.CodeProcessingFailed, "guardian check failed", err)})
			s.cancel()
			return
		}
		s.emitMasks(actions)
	}
}

// finalCheck runs the pipeline over the finished transcript. It reports
// false after pushing an Error.
func (s *session) finalCheck(ctx context.Context) bool {
	actions, err := s.opts.Pipeline.CheckProgressive(ctx, s.text.String(), s.opts.Guardian)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		checkErrorsTotal.Inc()
		s.log.Warn().Err(err).Msg("final guardian check failed")
		s.mb.push(Error{Err: runner.Wrap(runner.CodeProcessingFailed, "guardian check failed", err)})
		return false
	}
	s.emitMasks(actions)
	return true
}

func (s *session) emitMasks(actions []guardian.Action) {
	for _, a := range actions {
		if _, dup := s.seen.LoadOrStore(a, struct{}{}); dup {
			continue
		}
		if s.mb.push(SafetyMask{Action: a}) {
			masksTotal.WithLabelValues(a.Category).Inc()
		}
	}
}
