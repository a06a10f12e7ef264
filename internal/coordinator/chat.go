package coordinator

import (
	"context"

	"inferd/internal/orchestrator"
	"inferd/internal/runner"
	"inferd/pkg/types"
)

// ProcessChat answers a chat request. The last message is the prompt; any
// image on it routes the request to a VLM. With Stream set the reply is
// orchestrated (content deltas, safety masks, completion); otherwise a
// single blocking run yields exactly one terminal event.
func (c *Coordinator) ProcessChat(ctx context.Context, sessionID string, req types.ChatRequest) <-chan types.ChatEvent {
	return start(c, ctx, sessionID, "chat",
		types.ChatEvent.Terminal,
		func(id string, err *runner.Error) types.ChatEvent {
			return types.ChatEvent{Type: types.EventError, SessionID: id, Error: errorBody(err)}
		},
		func(ctx context.Context, id string, s *sink[types.ChatEvent]) error {
			return c.chat(ctx, id, req, s)
		})
}

func (c *Coordinator) chat(ctx context.Context, id string, req types.ChatRequest, s *sink[types.ChatEvent]) error {
	rreq, capability, err := chatRequest(id, req)
	if err != nil {
		return err
	}
	snap := c.src.Settings()
	lease, err := c.src.Acquire(ctx, capability)
	if err != nil {
		return err
	}
	defer lease.Release()

	if !req.Stream {
		switch res := lease.Runner.Run(ctx, rreq).(type) {
		case runner.Failure:
			return failureErr(res)
		case runner.Success:
			s.send(types.ChatEvent{Type: types.EventComplete, SessionID: id, Text: res.Text()})
		}
		return nil
	}

	opts := orchestrator.Options{Guardian: snap.Guardian, Pipeline: c.pipeline, Logger: &c.log}
	for ev := range orchestrator.Stream(ctx, lease.Runner, rreq, opts) {
		switch e := ev.(type) {
		case orchestrator.Content:
			s.send(types.ChatEvent{Type: types.EventContent, SessionID: id, Delta: e.Delta})
		case orchestrator.SafetyMask:
			s.send(types.ChatEvent{Type: types.EventSafetyMask, SessionID: id, Mask: &types.SafetyMask{
				Start:       e.Action.Start,
				End:         e.Action.End,
				Category:    e.Action.Category,
				Replacement: e.Action.Replacement,
			}})
		case orchestrator.Complete:
			s.send(types.ChatEvent{Type: types.EventComplete, SessionID: id, Text: e.Text})
		case orchestrator.Error:
			return e.Err
		}
	}
	return ctx.Err()
}

// chatRequest builds the runner request and picks LLM or VLM.
func chatRequest(id string, req types.ChatRequest) (runner.Request, runner.Capability, error) {
	if len(req.Messages) == 0 {
		return runner.Request{}, "", runner.NewError(runner.CodeMissingInput, "chat request has no messages")
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Content == "" && len(last.Images) == 0 {
		return runner.Request{}, "", runner.NewError(runner.CodeMissingInput, "last message is empty")
	}

	inputs := map[string]any{runner.InputText: last.Content}
	capability := runner.CapabilityLLM
	if len(last.Images) > 0 {
		inputs[runner.InputImage] = append([][]byte(nil), last.Images...)
		capability = runner.CapabilityVLM
	}

	params := map[string]any{}
	setFloat(params, runner.ParamTemperature, req.Temperature)
	setInt(params, runner.ParamMaxTokens, req.MaxTokens)
	setFloat(params, runner.ParamTopP, req.TopP)
	setInt(params, runner.ParamTopK, req.TopK)
	setFloat(params, runner.ParamFrequencyPenalty, req.FrequencyPenalty)
	setFloat(params, runner.ParamPresencePenalty, req.PresencePenalty)
	setFloat(params, runner.ParamRepeatPenalty, req.RepeatPenalty)
	if len(req.Stop) > 0 {
		params[runner.ParamStop] = append([]string(nil), req.Stop...)
	}
	if req.Seed != nil {
		params[runner.ParamSeed] = *req.Seed
	}
	if req.MaxTokens != nil && *req.MaxTokens < 0 {
		return runner.Request{}, "", runner.NewError(runner.CodeInvalidParameter, "max_tokens must not be negative")
	}
	return runner.NewRequest(id, inputs, params), capability, nil
}

func setFloat(params map[string]any, key string, v *float64) {
	if v != nil {
		params[key] = *v
	}
}

func setInt(params map[string]any, key string, v *int) {
	if v != nil {
		params[key] = *v
	}
}
