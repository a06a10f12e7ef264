package guardian

import (
	"context"
	"errors"
	"testing"

	"inferd/internal/runner"
)

func TestTermPipelineFindsWholeWords(t *testing.T) {
	p := NewTermPipeline()
	cfg := Config{Enabled: true, BlockedTerms: []string{"cat", " sat "}}
	got, err := p.CheckProgressive(context.Background(), "The Cat sat on concatenate", cfg)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	want := []Action{
		{Start: 4, End: 7, Category: CategoryBlockedTerm, Replacement: "***"},
		{Start: 8, End: 11, Category: CategoryBlockedTerm, Replacement: "***"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("action %d: got %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTermPipelineIsProgressive(t *testing.T) {
	p := NewTermPipeline()
	cfg := Config{BlockedTerms: []string{"bad"}, Replacement: "[x]"}
	first, _ := p.CheckProgressive(context.Background(), "a bad", cfg)
	second, _ := p.CheckProgressive(context.Background(), "a bad word", cfg)
	if len(first) != 1 || len(second) != 1 || first[0] != second[0] {
		t.Fatalf("expected the same finding on a longer prefix: %+v vs %+v", first, second)
	}
	if first[0].Replacement != "[x]" {
		t.Fatalf("replacement = %q", first[0].Replacement)
	}
}

func TestTermPipelineNoTerms(t *testing.T) {
	got, err := NewTermPipeline().CheckProgressive(context.Background(), "anything", Config{})
	if err != nil || got != nil {
		t.Fatalf("got %v, %v", got, err)
	}
}

func TestTermPipelineHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewTermPipeline().CheckProgressive(ctx, "x", Config{BlockedTerms: []string{"x"}}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestConfigInterval(t *testing.T) {
	if (Config{}).Interval() != DefaultPollInterval {
		t.Fatalf("default interval not applied")
	}
}

type guardianRunner struct {
	runner.Runner
	res runner.Result
	got runner.Request
}

func (g *guardianRunner) Run(ctx context.Context, req runner.Request) runner.Result {
	g.got = req
	return g.res
}

func TestRunnerPipelineDecodesJSONActions(t *testing.T) {
	gr := &guardianRunner{res: runner.Success{Outputs: map[string]any{
		runner.OutputActions: []any{map[string]any{"start": float64(1), "end": float64(3), "category": "pii"}},
	}}}
	p := NewRunnerPipeline(func(context.Context) (runner.Runner, error) { return gr, nil })
	got, err := p.CheckProgressive(context.Background(), "my ssn", Config{Categories: []string{"pii"}})
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(got) != 1 || got[0] != (Action{Start: 1, End: 3, Category: "pii"}) {
		t.Fatalf("unexpected actions: %+v", got)
	}
	if gr.got.Text() != "my ssn" {
		t.Fatalf("runner saw text %q", gr.got.Text())
	}
}

func TestRunnerPipelineFailureWithoutError(t *testing.T) {
	gr := &guardianRunner{res: runner.Failure{}}
	p := NewRunnerPipeline(func(context.Context) (runner.Runner, error) { return gr, nil })
	_, err := p.CheckProgressive(context.Background(), "x", Config{})
	if err == nil {
		t.Fatalf("expected an error for a failure with no cause")
	}
	if runner.CodeOf(err) != runner.CodeProcessingFailed {
		t.Fatalf("expected PROCESSING_FAILED, got %v", err)
	}
	if err.Error() == "" {
		t.Fatalf("empty error message")
	}
}

func TestRunnerPipelinePropagatesFailure(t *testing.T) {
	gr := &guardianRunner{res: runner.Failure{Err: runner.NewError(runner.CodeProcessingFailed, "nope")}}
	p := NewRunnerPipeline(func(context.Context) (runner.Runner, error) { return gr, nil })
	if _, err := p.CheckProgressive(context.Background(), "x", Config{}); runner.CodeOf(err) != runner.CodeProcessingFailed {
		t.Fatalf("expected PROCESSING_FAILED, got %v", err)
	}
	p = NewRunnerPipeline(func(context.Context) (runner.Runner, error) {
		return nil, runner.NewError(runner.CodeRunnerNotFound, "no guardian")
	})
	if _, err := p.CheckProgressive(context.Background(), "x", Config{}); !runner.IsRunnerNotFound(err) {
		t.Fatalf("expected RUNNER_NOT_FOUND, got %v", err)
	}
}
