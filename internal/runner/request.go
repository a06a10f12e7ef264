package runner

import (
	"time"
)

// Input keys.
const (
	InputText  = "text"
	InputAudio = "audio"
	InputImage = "image"
)

// Parameter keys.
const (
	ParamTemperature      = "temperature"
	ParamMaxTokens        = "max_tokens"
	ParamTopP             = "top_p"
	ParamTopK             = "top_k"
	ParamFrequencyPenalty = "frequency_penalty"
	ParamPresencePenalty  = "presence_penalty"
	ParamRepeatPenalty    = "repeat_penalty"
	ParamStop             = "stop"
	ParamSeed             = "seed"
	ParamLanguage         = "language"
	ParamVoice            = "voice"
	ParamSpeed            = "speed"
	ParamAudioSource      = "audio_source"
	ParamAudioFormat      = "audio_format"
)

// Values of ParamAudioSource.
const (
	AudioSourceFile       = "file"
	AudioSourceMicrophone = "microphone"
)

// Request is one inference input. It is built once by NewRequest and never
// mutated afterwards; the With* helpers return new values. Callers must not
// write to Inputs or Params.
type Request struct {
	SessionID string
	Inputs    map[string]any
	Params    map[string]any
	Timestamp time.Time
}

// NewRequest copies inputs and params so later changes by the caller do not
// leak into the request.
func NewRequest(sessionID string, inputs, params map[string]any) Request {
	return Request{
		SessionID: sessionID,
		Inputs:    cloneMap(inputs),
		Params:    cloneMap(params),
		Timestamp: time.Now(),
	}
}

// WithParams returns a copy whose params are overlaid with overrides.
func (r Request) WithParams(overrides map[string]any) Request {
	out := r
	out.Inputs = cloneMap(r.Inputs)
	out.Params = cloneMap(r.Params)
	for k, v := range overrides {
		out.Params[k] = v
	}
	return out
}

// WithInputs returns a copy whose inputs are overlaid with overrides.
func (r Request) WithInputs(overrides map[string]any) Request {
	out := r
	out.Inputs = cloneMap(r.Inputs)
	out.Params = cloneMap(r.Params)
	for k, v := range overrides {
		out.Inputs[k] = v
	}
	return out
}

// Text returns the text input or "".
func (r Request) Text() string {
	s, _ := r.Inputs[InputText].(string)
	return s
}

// Audio returns the audio bytes input or nil.
func (r Request) Audio() []byte {
	b, _ := r.Inputs[InputAudio].([]byte)
	return b
}

// Image returns the image input (raw bytes or a URL/data URI string).
func (r Request) Image() any { return r.Inputs[InputImage] }

// Images returns the image input as raw byte slices. A single []byte is
// returned as a one-element slice; strings are not decoded.
func (r Request) Images() [][]byte {
	switch v := r.Inputs[InputImage].(type) {
	case []byte:
		return [][]byte{v}
	case [][]byte:
		return append([][]byte(nil), v...)
	}
	return nil
}

// StringParam returns a string parameter or "".
func (r Request) StringParam(key string) string {
	s, _ := r.Params[key].(string)
	return s
}

// FloatParam returns a numeric parameter as float64.
func (r Request) FloatParam(key string) (float64, bool) {
	switch v := r.Params[key].(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	}
	return 0, false
}

// IntParam returns a numeric parameter as int.
func (r Request) IntParam(key string) (int, bool) {
	switch v := r.Params[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case float32:
		return int(v), true
	}
	return 0, false
}

// StringsParam returns a []string parameter.
func (r Request) StringsParam(key string) []string {
	switch v := r.Params[key].(type) {
	case []string:
		return append([]string(nil), v...)
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func cloneMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
