package openai

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"inferd/internal/runner"
)

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type chatMessage struct {
	Role string `json:"role"`
	// Content is a string, or []contentPart when images are attached.
	Content any `json:"content"`
}

// chatCompletionRequest is the payload for /v1/chat/completions.
type chatCompletionRequest struct {
	Model            string        `json:"model,omitempty"`
	Messages         []chatMessage `json:"messages"`
	MaxTokens        int           `json:"max_tokens,omitempty"`
	Temperature      *float64      `json:"temperature,omitempty"`
	TopP             *float64      `json:"top_p,omitempty"`
	FrequencyPenalty *float64      `json:"frequency_penalty,omitempty"`
	PresencePenalty  *float64      `json:"presence_penalty,omitempty"`
	Stop             []string      `json:"stop,omitempty"`
	Seed             *int64        `json:"seed,omitempty"`
	Stream           bool          `json:"stream"`
	// TopK and RepeatPenalty are not standard OpenAI; llama.cpp servers
	// accept them and others ignore them.
	TopK          int      `json:"top_k,omitempty"`
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// chatStreamChunk is a minimal subset of an OpenAI streaming response.
type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	// Some servers stream native objects instead.
	Content string `json:"content"`
}

func (r *Runner) chatPayload(req runner.Request, stream bool) (chatCompletionRequest, error) {
	text := req.Text()
	var content any = text
	if parts := imageParts(req); len(parts) > 0 {
		content = append([]contentPart{{Type: "text", Text: text}}, parts...)
	} else if text == "" {
		return chatCompletionRequest{}, runner.NewError(runner.CodeMissingInput, "no text input")
	}
	p := chatCompletionRequest{
		Model:    r.currentModel(),
		Messages: []chatMessage{{Role: "user", Content: content}},
		Stop:     req.StringsParam(runner.ParamStop),
		Stream:   stream,
	}
	if n, ok := req.IntParam(runner.ParamMaxTokens); ok {
		p.MaxTokens = n
	}
	if n, ok := req.IntParam(runner.ParamTopK); ok {
		p.TopK = n
	}
	p.Temperature = floatPtr(req, runner.ParamTemperature)
	p.TopP = floatPtr(req, runner.ParamTopP)
	p.FrequencyPenalty = floatPtr(req, runner.ParamFrequencyPenalty)
	p.PresencePenalty = floatPtr(req, runner.ParamPresencePenalty)
	p.RepeatPenalty = floatPtr(req, runner.ParamRepeatPenalty)
	if n, ok := req.IntParam(runner.ParamSeed); ok {
		seed := int64(n)
		p.Seed = &seed
	}
	return p, nil
}

func floatPtr(req runner.Request, key string) *float64 {
	if v, ok := req.FloatParam(key); ok {
		return &v
	}
	return nil
}

// imageParts turns image inputs into data-URI parts; string inputs are
// passed through as URLs.
func imageParts(req runner.Request) []contentPart {
	if s, ok := req.Image().(string); ok && s != "" {
		return []contentPart{{Type: "image_url", ImageURL: &imageURL{URL: s}}}
	}
	var parts []contentPart
	for _, img := range req.Images() {
		uri := "data:" + http.DetectContentType(img) + ";base64," + base64.StdEncoding.EncodeToString(img)
		parts = append(parts, contentPart{Type: "image_url", ImageURL: &imageURL{URL: uri}})
	}
	return parts
}

func (r *Runner) postChat(ctx context.Context, req runner.Request, stream bool) (*http.Response, *runner.Error) {
	payload, err := r.chatPayload(req, stream)
	if err != nil {
		return nil, runner.AsError(err)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, runner.Wrap(runner.CodeInvalidParameter, "encode request", err)
	}
	hreq, err := r.newRequest(ctx, "/v1/chat/completions", "application/json", body)
	if err != nil {
		return nil, runner.Wrap(runner.CodeInternal, "build request", err)
	}
	if stream {
		hreq.Header.Set("Accept", "text/event-stream")
	}
	resp, err := r.client.Do(hreq)
	if err != nil {
		return nil, transportError(ctx, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, httpError(resp)
	}
	return resp, nil
}

func (r *Runner) complete(ctx context.Context, req runner.Request) runner.Result {
	resp, rerr := r.postChat(ctx, req, false)
	if rerr != nil {
		return runner.Failure{Err: rerr}
	}
	defer resp.Body.Close()
	var out chatCompletionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return runner.Failure{Err: runner.Wrap(runner.CodeProcessingFailed, "decode response", err)}
	}
	if len(out.Choices) == 0 {
		return runner.Failure{Err: runner.NewError(runner.CodeProcessingFailed, "response has no choices")}
	}
	res := runner.TextResult(out.Choices[0].Message.Content, false)
	res.Metadata[runner.MetaFinishReason] = out.Choices[0].FinishReason
	res.Metadata[runner.MetaRunner] = r.desc.Name
	return res
}

// streamChat parses Server-Sent Events ("data: {...}" lines ending with
// "data: [DONE]") and forwards each content fragment as a partial result.
func (r *Runner) streamChat(ctx context.Context, req runner.Request, out chan<- runner.Result) {
	send := func(res runner.Result) bool {
		select {
		case out <- res:
			return true
		case <-ctx.Done():
			return false
		}
	}
	resp, rerr := r.postChat(ctx, req, true)
	if rerr != nil {
		send(runner.Failure{Err: rerr})
		return
	}
	defer resp.Body.Close()

	finish := ""
	br := bufio.NewReader(resp.Body)
	for {
		line, err := br.ReadString('\n')
		if line = strings.TrimSpace(line); line != "" && strings.HasPrefix(strings.ToLower(line), "data:") {
			data := strings.TrimSpace(line[len("data:"):])
			if data == "[DONE]" {
				break
			}
			var chunk chatStreamChunk
			if jerr := json.Unmarshal([]byte(data), &chunk); jerr != nil {
				r.log.Debug().Str("line", line).Msg("unknown stream line")
			} else {
				frag := chunk.Content
				if len(chunk.Choices) > 0 {
					frag = chunk.Choices[0].Delta.Content
					if fr := chunk.Choices[0].FinishReason; fr != "" {
						finish = fr
					}
				}
				if frag != "" && !send(runner.TextResult(frag, true)) {
					return
				}
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if ctx.Err() == nil {
				r.log.Warn().Err(err).Msg("stream read failed")
			}
			send(runner.Failure{Err: transportError(ctx, err)})
			return
		}
	}
	final := runner.TextResult("", false)
	final.Metadata[runner.MetaFinishReason] = finish
	final.Metadata[runner.MetaRunner] = r.desc.Name
	send(final)
}
