package guardian

import (
	"context"
	"fmt"

	"inferd/internal/runner"
)

// Resolver returns the runner currently serving the GUARDIAN capability.
type Resolver func(ctx context.Context) (runner.Runner, error)

// RunnerPipeline delegates analysis to a runner with the GUARDIAN
// capability. The runner receives the text as InputText and the configured
// categories as the "categories" param, and must answer with OutputActions
// holding []Action (or decoded JSON objects with the same fields).
type RunnerPipeline struct {
	resolve Resolver
}

func NewRunnerPipeline(resolve Resolver) *RunnerPipeline {
	return &RunnerPipeline{resolve: resolve}
}

func (p *RunnerPipeline) CheckProgressive(ctx context.Context, text string, cfg Config) ([]Action, error) {
	rn, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	req := runner.NewRequest("", map[string]any{runner.InputText: text}, map[string]any{
		"categories": append([]string(nil), cfg.Categories...),
	})
	switch res := rn.Run(ctx, req).(type) {
	case runner.Failure:
		if res.Err == nil {
			return nil, runner.NewError(runner.CodeProcessingFailed, "guardian runner reported failure without an error")
		}
		return nil, res.Err
	case runner.Success:
		return decodeActions(res.Outputs[runner.OutputActions])
	default:
		return nil, fmt.Errorf("guardian: unexpected result %T", res)
	}
}

func decodeActions(v any) ([]Action, error) {
	switch a := v.(type) {
	case nil:
		return nil, nil
	case []Action:
		return append([]Action(nil), a...), nil
	case []any:
		out := make([]Action, 0, len(a))
		for _, e := range a {
			m, ok := e.(map[string]any)
			if !ok {
				return nil, runner.NewError(runner.CodeProcessingFailed, fmt.Sprintf("guardian: malformed action %T", e))
			}
			act := Action{
				Start: toInt(m["start"]),
				End:   toInt(m["end"]),
			}
			act.Category, _ = m["category"].(string)
			act.Replacement, _ = m["replacement"].(string)
			out = append(out, act)
		}
		return out, nil
	}
	return nil, runner.NewError(runner.CodeProcessingFailed, fmt.Sprintf("guardian: malformed actions %T", v))
}

func toInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case float64:
		return int(n)
	case int64:
		return int(n)
	}
	return 0
}
