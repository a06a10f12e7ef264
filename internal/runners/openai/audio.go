package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"strings"

	"inferd/internal/runner"
)

const maxAudioBytes = 64 << 20

type speechRequest struct {
	Model          string   `json:"model,omitempty"`
	Input          string   `json:"input"`
	Voice          string   `json:"voice,omitempty"`
	Speed          *float64 `json:"speed,omitempty"`
	ResponseFormat string   `json:"response_format,omitempty"`
}

// speech posts to /v1/audio/speech and returns the raw audio body.
func (r *Runner) speech(ctx context.Context, req runner.Request) runner.Result {
	text := req.Text()
	if strings.TrimSpace(text) == "" {
		return runner.Failure{Err: runner.NewError(runner.CodeMissingInput, "no text input")}
	}
	p := speechRequest{
		Model:          r.currentModel(),
		Input:          text,
		Voice:          firstNonEmpty(req.StringParam(runner.ParamVoice), r.cfg.Voice),
		Speed:          floatPtr(req, runner.ParamSpeed),
		ResponseFormat: firstNonEmpty(req.StringParam(runner.ParamAudioFormat), r.cfg.Format),
	}
	body, err := json.Marshal(p)
	if err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeInvalidParameter, "encode request", err)}
	}
	hreq, err := r.newRequest(ctx, "/v1/audio/speech", "application/json", body)
	if err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeInternal, "build request", err)}
	}
	resp, err := r.client.Do(hreq)
	if err != nil {
		return runner.Failure{Err: transportError(ctx, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return runner.Failure{Err: httpError(resp)}
	}
	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes))
	if err != nil {
		return runner.Failure{Err: transportError(ctx, err)}
	}
	format := p.ResponseFormat
	if format == "" {
		format = "mp3"
	}
	return runner.Success{
		Outputs: map[string]any{runner.OutputAudio: audio},
		Metadata: map[string]any{
			runner.MetaAudioFormat: format,
			runner.MetaRunner:      r.desc.Name,
		},
	}
}

// transcribe posts a multipart upload to /v1/audio/transcriptions. A remote
// server has no microphone, so microphone requests are rejected.
func (r *Runner) transcribe(ctx context.Context, req runner.Request) runner.Result {
	if req.StringParam(runner.ParamAudioSource) == runner.AudioSourceMicrophone {
		return runner.Failure{Err: runner.NewError(runner.CodeInvalidInput, "remote transcription needs audio input")}
	}
	audio := req.Audio()
	if len(audio) == 0 {
		return runner.Failure{Err: runner.NewError(runner.CodeMissingInput, "no audio input")}
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	format := firstNonEmpty(req.StringParam(runner.ParamAudioFormat), "wav")
	fw, err := mw.CreateFormFile("file", "audio."+format)
	if err == nil {
		_, err = fw.Write(audio)
	}
	if err == nil && r.currentModel() != "" {
		err = mw.WriteField("model", r.currentModel())
	}
	if err == nil {
		if lang := req.StringParam(runner.ParamLanguage); lang != "" {
			err = mw.WriteField("language", lang)
		}
	}
	if err == nil {
		err = mw.WriteField("response_format", "json")
	}
	if err == nil {
		err = mw.Close()
	}
	if err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeInternal, "encode upload", err)}
	}

	hreq, err := r.newRequest(ctx, "/v1/audio/transcriptions", mw.FormDataContentType(), buf.Bytes())
	if err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeInternal, "build request", err)}
	}
	resp, err := r.client.Do(hreq)
	if err != nil {
		return runner.Failure{Err: transportError(ctx, err)}
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return runner.Failure{Err: httpError(resp)}
	}
	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeProcessingFailed, "decode response", err)}
	}
	res := runner.TextResult(strings.TrimSpace(out.Text), false)
	res.Metadata[runner.MetaRunner] = r.desc.Name
	return res
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
