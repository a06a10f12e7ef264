package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/goleak"

	"inferd/internal/guardian"
	"inferd/internal/runner"
	"inferd/internal/runner/runnertest"
)

func collect(t *testing.T, ch <-chan Event) []Event {
	t.Helper()
	var out []Event
	timeout := time.After(3 * time.Second)
	for {
		select {
		case e, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, e)
		case <-timeout:
			t.Fatalf("stream did not close; got %#v", out)
		}
	}
}

func terminals(evs []Event) int {
	n := 0
	for _, e := range evs {
		if Terminal(e) {
			n++
		}
	}
	return n
}

func llm(chunks ...string) *runnertest.Fake {
	f := runnertest.NewFake("llm", runner.CapabilityLLM)
	f.Chunks = chunks
	return f
}

func TestStreamOrderWithoutGuardian(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("The", " cat", " sat")
	got := collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), Options{}))
	want := []Event{Content{"The"}, Content{" cat"}, Content{" sat"}, Complete{"The cat sat"}}
	if len(got) != len(want) {
		t.Fatalf("got %#v, want %#v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("event %d: got %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestStreamTrailingDeltaOnTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)
	rn := &scripted{results: []runner.Result{
		runner.TextResult("Hel", true),
		runner.TextResult("lo", false),
	}}
	got := collect(t, Stream(context.Background(), rn, runner.NewRequest("s", nil, nil), Options{}))
	if len(got) != 3 || got[1] != (Content{"lo"}) || got[2] != (Complete{"Hello"}) {
		t.Fatalf("got %#v", got)
	}
}

func TestLateMaskEmittedOnceAfterContent(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("The", " cat", " sat", " down")
	f.ChunkDelay = 40 * time.Millisecond
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: 5 * time.Millisecond, BlockedTerms: []string{"cat"}},
		Pipeline: guardian.NewTermPipeline(),
	}
	got := collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), opts))

	masks, catAt, maskAt := 0, -1, -1
	for i, e := range got {
		switch ev := e.(type) {
		case Content:
			if ev.Delta == " cat" {
				catAt = i
			}
		case SafetyMask:
			masks++
			maskAt = i
			if ev.Action.Start != 4 || ev.Action.End != 7 || ev.Action.Category != guardian.CategoryBlockedTerm {
				t.Fatalf("unexpected mask %+v", ev.Action)
			}
		}
	}
	if masks != 1 {
		t.Fatalf("masks = %d, want 1; events %#v", masks, got)
	}
	if maskAt < catAt {
		t.Fatalf("mask at %d precedes its content at %d", maskAt, catAt)
	}
	if c, ok := got[len(got)-1].(Complete); !ok || c.Text != "The cat sat down" {
		t.Fatalf("last event = %#v", got[len(got)-1])
	}
	if terminals(got) != 1 {
		t.Fatalf("terminal events = %d", terminals(got))
	}
}

func TestGuardianFailureEndsStreamOnce(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("unsafe")
	f.HoldOpen = true
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: 5 * time.Millisecond},
		Pipeline: guardian.PipelineFunc(func(context.Context, string, guardian.Config) ([]guardian.Action, error) {
			return nil, errors.New("model crashed")
		}),
	}
	got := collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), opts))
	if terminals(got) != 1 {
		t.Fatalf("terminal events = %d in %#v", terminals(got), got)
	}
	ev, ok := got[len(got)-1].(Error)
	if !ok || ev.Err.Code != runner.CodeProcessingFailed {
		t.Fatalf("last event = %#v", got[len(got)-1])
	}
}

func TestGuardianDisabledRunsNoWatcher(t *testing.T) {
	defer goleak.VerifyNone(t)
	called := make(chan struct{}, 1)
	opts := Options{
		Guardian: guardian.Config{Enabled: false, PollInterval: time.Millisecond},
		Pipeline: guardian.PipelineFunc(func(context.Context, string, guardian.Config) ([]guardian.Action, error) {
			called <- struct{}{}
			return nil, nil
		}),
	}
	f := llm("a", "b")
	f.ChunkDelay = 10 * time.Millisecond
	collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), opts))
	select {
	case <-called:
		t.Fatalf("pipeline called while guardian disabled")
	default:
	}
}

func TestRunnerFailureBecomesError(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("partial")
	f.StreamErr = runner.NewError(runner.CodeNetworkError, "connection reset")
	got := collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), Options{}))
	if len(got) != 2 {
		t.Fatalf("got %#v", got)
	}
	if ev, ok := got[1].(Error); !ok || ev.Err.Code != runner.CodeNetworkError {
		t.Fatalf("last event = %#v", got[1])
	}
}

func TestStreamClosedWithoutTerminalIsInterrupted(t *testing.T) {
	defer goleak.VerifyNone(t)
	rn := &scripted{results: []runner.Result{runner.TextResult("half", true)}}
	got := collect(t, Stream(context.Background(), rn, runner.NewRequest("s", nil, nil), Options{}))
	if len(got) != 2 {
		t.Fatalf("got %#v", got)
	}
	if ev, ok := got[1].(Error); !ok || ev.Err.Code != runner.CodeStreamInterrupted {
		t.Fatalf("last event = %#v", got[1])
	}
}

func TestRunnerPanicBecomesInternalError(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("x")
	f.Panic = true
	got := collect(t, Stream(context.Background(), f, runner.NewRequest("s", nil, nil), Options{}))
	if len(got) != 1 {
		t.Fatalf("got %#v", got)
	}
	if ev, ok := got[0].(Error); !ok || ev.Err.Code != runner.CodeInternal {
		t.Fatalf("event = %#v", got[0])
	}
}

func TestCancellationClosesWithoutTerminal(t *testing.T) {
	defer goleak.VerifyNone(t)
	f := llm("first")
	f.HoldOpen = true
	ctx, cancel := context.WithCancel(context.Background())
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: 5 * time.Millisecond, BlockedTerms: []string{"nothing"}},
		Pipeline: guardian.NewTermPipeline(),
	}
	ch := Stream(ctx, f, runner.NewRequest("s", nil, nil), opts)
	first := <-ch
	if first != (Content{"first"}) {
		t.Fatalf("first event = %#v", first)
	}
	cancel()
	rest := collect(t, ch)
	if terminals(rest) != 0 {
		t.Fatalf("terminal after cancellation: %#v", rest)
	}
}

func TestMailboxSealsAfterTerminal(t *testing.T) {
	mb := newMailbox()
	if !mb.push(Content{"a"}) || !mb.push(Complete{"a"}) {
		t.Fatalf("pushes before terminal must be accepted")
	}
	if mb.push(Error{Err: runner.NewError(runner.CodeInternal, "late")}) || mb.push(Content{"b"}) {
		t.Fatalf("pushes after terminal must be rejected")
	}
	mb.close()
	out := make(chan Event, 4)
	mb.pump(context.Background(), out)
	var got []Event
	for e := range out {
		got = append(got, e)
	}
	if len(got) != 2 || got[1] != (Complete{"a"}) {
		t.Fatalf("delivered %#v", got)
	}
}

// scripted streams a fixed list of results and then closes.
type scripted struct {
	runnertest.Fake
	results []runner.Result
}

func (s *scripted) RunStreaming(ctx context.Context, req runner.Request) <-chan runner.Result {
	ch := make(chan runner.Result)
	go func() {
		defer close(ch)
		for _, r := range s.results {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch
}

func TestFastRunnerUncheckedWithoutFinalCheck(t *testing.T) {
	defer goleak.VerifyNone(t)
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: time.Hour, BlockedTerms: []string{"bad"}},
		Pipeline: guardian.NewTermPipeline(),
	}
	got := collect(t, Stream(context.Background(), llm("a ", "bad", " word"), runner.NewRequest("s", nil, nil), opts))
	for _, e := range got {
		if _, ok := e.(SafetyMask); ok {
			t.Fatalf("unexpected mask before the first poll: %#v", got)
		}
	}
	if c, ok := got[len(got)-1].(Complete); !ok || c.Text != "a bad word" {
		t.Fatalf("last event = %#v", got[len(got)-1])
	}
}

func TestFinalCheckMasksFastRunner(t *testing.T) {
	defer goleak.VerifyNone(t)
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: time.Hour, BlockedTerms: []string{"bad"}, FinalCheck: true},
		Pipeline: guardian.NewTermPipeline(),
	}
	got := collect(t, Stream(context.Background(), llm("a ", "bad", " word"), runner.NewRequest("s", nil, nil), opts))
	if len(got) != 5 {
		t.Fatalf("events = %#v", got)
	}
	m, ok := got[3].(SafetyMask)
	if !ok || m.Action.Start != 2 || m.Action.End != 5 {
		t.Fatalf("mask before complete = %#v", got[3])
	}
	if _, ok := got[4].(Complete); !ok || terminals(got) != 1 {
		t.Fatalf("events = %#v", got)
	}
}

func TestFinalCheckFailureReplacesComplete(t *testing.T) {
	defer goleak.VerifyNone(t)
	opts := Options{
		Guardian: guardian.Config{Enabled: true, PollInterval: time.Hour, FinalCheck: true},
		Pipeline: guardian.PipelineFunc(func(context.Context, string, guardian.Config) ([]guardian.Action, error) {
			return nil, errors.New("model crashed")
		}),
	}
	got := collect(t, Stream(context.Background(), llm("hi"), runner.NewRequest("s", nil, nil), opts))
	if terminals(got) != 1 {
		t.Fatalf("terminal events = %d in %#v", terminals(got), got)
	}
	if ev, ok := got[len(got)-1].(Error); !ok || ev.Err.Code != runner.CodeProcessingFailed {
		t.Fatalf("last event = %#v", got[len(got)-1])
	}
}
