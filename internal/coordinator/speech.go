package coordinator

import (
	"context"
	"strings"

	"inferd/internal/runner"
	"inferd/pkg/types"
)

// ProcessTTS synthesizes speech. Runners that implement runner.AudioStreamer
// and report true stream audio chunks; others answer with one blocking call.
// The complete event always carries the whole clip.
func (c *Coordinator) ProcessTTS(ctx context.Context, sessionID string, req types.TTSRequest) <-chan types.AudioEvent {
	return start(c, ctx, sessionID, "tts",
		types.AudioEvent.Terminal,
		func(id string, err *runner.Error) types.AudioEvent {
			return types.AudioEvent{Type: types.EventError, SessionID: id, Error: errorBody(err)}
		},
		func(ctx context.Context, id string, s *sink[types.AudioEvent]) error {
			return c.tts(ctx, id, req, s)
		})
}

func (c *Coordinator) tts(ctx context.Context, id string, req types.TTSRequest, s *sink[types.AudioEvent]) error {
	if strings.TrimSpace(req.Text) == "" {
		return runner.NewError(runner.CodeMissingInput, "tts request has no text")
	}
	if req.Speed != nil && *req.Speed <= 0 {
		return runner.NewError(runner.CodeInvalidParameter, "speed must be positive")
	}
	params := map[string]any{}
	if req.Voice != "" {
		params[runner.ParamVoice] = req.Voice
	}
	setFloat(params, runner.ParamSpeed, req.Speed)
	if req.Language != "" {
		params[runner.ParamLanguage] = req.Language
	}
	if req.Format != "" {
		params[runner.ParamAudioFormat] = req.Format
	}
	rreq := runner.NewRequest(id, map[string]any{runner.InputText: req.Text}, params)

	lease, err := c.src.Acquire(ctx, runner.CapabilityTTS)
	if err != nil {
		return err
	}
	defer lease.Release()

	if as, ok := lease.Runner.(runner.AudioStreamer); ok && as.StreamsAudio() {
		var audio []byte
		var last types.AudioEvent
		final, err := drain(ctx, lease.Runner.RunStreaming(ctx, rreq), func(r runner.Success) bool {
			last = audioEvent(id, types.EventAudio, r)
			audio = append(audio, last.Audio...)
			return s.send(last)
		})
		if err != nil {
			return err
		}
		done := audioEvent(id, types.EventComplete, final)
		done.Audio = append(audio, done.Audio...)
		if done.Format == "" {
			done.Format = last.Format
		}
		if done.SampleRate == 0 {
			done.SampleRate = last.SampleRate
		}
		s.send(done)
		return nil
	}

	switch res := lease.Runner.Run(ctx, rreq).(type) {
	case runner.Failure:
		return failureErr(res)
	case runner.Success:
		s.send(audioEvent(id, types.EventComplete, res))
	}
	return nil
}

func audioEvent(id, typ string, r runner.Success) types.AudioEvent {
	ev := types.AudioEvent{Type: typ, SessionID: id, Audio: r.Audio()}
	ev.Format, _ = r.Metadata[runner.MetaAudioFormat].(string)
	switch n := r.Metadata[runner.MetaSampleRate].(type) {
	case int:
		ev.SampleRate = n
	case float64:
		ev.SampleRate = int(n)
	}
	return ev
}

// ProcessASR transcribes speech. Without audio and with Stream set the
// runner listens on its microphone source and always streams; with audio the
// Stream flag picks streaming or blocking; without audio and without Stream
// the request is rejected with MISSING_INPUT.
func (c *Coordinator) ProcessASR(ctx context.Context, sessionID string, req types.ASRRequest) <-chan types.TranscriptEvent {
	return start(c, ctx, sessionID, "asr",
		types.TranscriptEvent.Terminal,
		func(id string, err *runner.Error) types.TranscriptEvent {
			return types.TranscriptEvent{Type: types.EventError, SessionID: id, Error: errorBody(err)}
		},
		func(ctx context.Context, id string, s *sink[types.TranscriptEvent]) error {
			return c.asr(ctx, id, req, s)
		})
}

func (c *Coordinator) asr(ctx context.Context, id string, req types.ASRRequest, s *sink[types.TranscriptEvent]) error {
	microphone := len(req.Audio) == 0
	if microphone && !req.Stream {
		return runner.NewError(runner.CodeMissingInput, "asr request has no audio")
	}
	inputs := map[string]any{}
	params := map[string]any{runner.ParamAudioSource: runner.AudioSourceFile}
	if microphone {
		params[runner.ParamAudioSource] = runner.AudioSourceMicrophone
	} else {
		inputs[runner.InputAudio] = append([]byte(nil), req.Audio...)
	}
	if req.Format != "" {
		params[runner.ParamAudioFormat] = req.Format
	}
	if req.Language != "" {
		params[runner.ParamLanguage] = req.Language
	}
	rreq := runner.NewRequest(id, inputs, params)

	lease, err := c.src.Acquire(ctx, runner.CapabilityASR)
	if err != nil {
		return err
	}
	defer lease.Release()

	if req.Stream {
		var text strings.Builder
		final, err := drain(ctx, lease.Runner.RunStreaming(ctx, rreq), func(r runner.Success) bool {
			delta := r.Text()
			text.WriteString(delta)
			return s.send(types.TranscriptEvent{Type: types.EventPartial, SessionID: id, Text: delta})
		})
		if err != nil {
			return err
		}
		text.WriteString(final.Text())
		s.send(types.TranscriptEvent{Type: types.EventComplete, SessionID: id, Text: text.String()})
		return nil
	}

	switch res := lease.Runner.Run(ctx, rreq).(type) {
	case runner.Failure:
		return failureErr(res)
	case runner.Success:
		s.send(types.TranscriptEvent{Type: types.EventComplete, SessionID: id, Text: res.Text()})
	}
	return nil
}
