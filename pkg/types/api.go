package types

// ChatMessage is one turn of a conversation. Only the last message is
// forwarded to the runner.
type ChatMessage struct {
	// Speaker role (user, assistant, system).
	// example: user
	Role string `json:"role" example:"user"`
	// Message text.
	// example: Describe this picture.
	Content string `json:"content" example:"Describe this picture."`
	// Optional encoded images (base64 in JSON). Any image routes the request to a VLM.
	Images [][]byte `json:"images,omitempty" swaggertype:"array,string"`
}

// ChatRequest is the body of POST /v1/chat. Sampling fields are forwarded
// only when set.
type ChatRequest struct {
	// Conversation so far; must not be empty.
	Messages []ChatMessage `json:"messages"`
	// If true, respond with NDJSON ChatEvent lines as tokens arrive.
	// example: true
	Stream bool `json:"stream,omitempty" example:"true"`
	// Sampling temperature (higher = more random).
	// example: 0.7
	Temperature *float64 `json:"temperature,omitempty" example:"0.7"`
	// Maximum number of new tokens to generate.
	// example: 128
	MaxTokens *int `json:"max_tokens,omitempty" example:"128"`
	// Nucleus sampling probability.
	// example: 0.9
	TopP *float64 `json:"top_p,omitempty" example:"0.9"`
	// Top-K sampling.
	// example: 40
	TopK *int `json:"top_k,omitempty" example:"40"`
	// example: 0
	FrequencyPenalty *float64 `json:"frequency_penalty,omitempty" example:"0"`
	// example: 0
	PresencePenalty *float64 `json:"presence_penalty,omitempty" example:"0"`
	// example: 1.1
	RepeatPenalty *float64 `json:"repeat_penalty,omitempty" example:"1.1"`
	// Optional stop sequences.
	Stop []string `json:"stop,omitempty"`
	// Random seed for reproducibility.
	// example: 42
	Seed *int64 `json:"seed,omitempty" example:"42"`
}

// Event types shared by chat, audio and transcript streams.
const (
	EventContent    = "content"
	EventSafetyMask = "safety_mask"
	EventAudio      = "audio"
	EventPartial    = "partial"
	EventComplete   = "complete"
	EventError      = "error"
)

// SafetyMask asks the client to replace Text[Start:End] (byte offsets into
// the accumulated response) with Replacement.
type SafetyMask struct {
	// example: 4
	Start int `json:"start" example:"4"`
	// example: 7
	End int `json:"end" example:"7"`
	// example: blocked_term
	Category string `json:"category" example:"blocked_term"`
	// example: ***
	Replacement string `json:"replacement,omitempty" example:"***"`
}

// ErrorBody is the terminal error of a session.
type ErrorBody struct {
	// Stable error code.
	// example: RUNNER_NOT_FOUND
	Code string `json:"code" example:"RUNNER_NOT_FOUND"`
	// example: no runner available for capability llm
	Message string `json:"message" example:"no runner available for capability llm"`
	// Whether retrying may succeed.
	// example: false
	Recoverable bool `json:"recoverable" example:"false"`
}

// ChatEvent is one line of a chat response stream.
type ChatEvent struct {
	// One of content, safety_mask, complete, error.
	// example: content
	Type string `json:"type" example:"content"`
	// example: 6f1c1d9e-0a57-4b4e-8d6c-5c8e4e8d1a11
	SessionID string `json:"session_id,omitempty"`
	// Incremental text for content events.
	// example: Hello
	Delta string `json:"delta,omitempty" example:"Hello"`
	// Full response text for complete events.
	Text  string      `json:"text,omitempty"`
	Mask  *SafetyMask `json:"mask,omitempty"`
	Error *ErrorBody  `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e ChatEvent) Terminal() bool { return e.Type == EventComplete || e.Type == EventError }

// TTSRequest is the body of POST /v1/tts.
type TTSRequest struct {
	// example: Hello there.
	Text string `json:"text" example:"Hello there."`
	// example: alloy
	Voice string `json:"voice,omitempty" example:"alloy"`
	// example: 1.0
	Speed *float64 `json:"speed,omitempty" example:"1.0"`
	// example: en
	Language string `json:"language,omitempty" example:"en"`
	// Requested audio container (runner dependent).
	// example: wav
	Format string `json:"format,omitempty" example:"wav"`
}

// AudioEvent carries synthesized audio. Audio events hold successive chunks;
// the complete event holds the whole clip.
type AudioEvent struct {
	// One of audio, complete, error.
	// example: complete
	Type      string `json:"type" example:"complete"`
	SessionID string `json:"session_id,omitempty"`
	// Audio bytes (base64 in JSON).
	Audio []byte `json:"audio,omitempty" swaggertype:"string"`
	// example: wav
	Format string `json:"format,omitempty" example:"wav"`
	// example: 24000
	SampleRate int        `json:"sample_rate,omitempty" example:"24000"`
	Error      *ErrorBody `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e AudioEvent) Terminal() bool { return e.Type == EventComplete || e.Type == EventError }

// ASRRequest is the body of POST /v1/asr. Without audio and with stream set,
// the runner transcribes from its own microphone source.
type ASRRequest struct {
	// Audio bytes (base64 in JSON).
	Audio []byte `json:"audio,omitempty" swaggertype:"string"`
	// example: wav
	Format string `json:"format,omitempty" example:"wav"`
	// example: en
	Language string `json:"language,omitempty" example:"en"`
	// example: false
	Stream bool `json:"stream,omitempty" example:"false"`
}

// TranscriptEvent carries recognized text.
type TranscriptEvent struct {
	// One of partial, complete, error.
	// example: complete
	Type      string `json:"type" example:"complete"`
	SessionID string `json:"session_id,omitempty"`
	// Incremental text for partial events, full transcript for complete.
	// example: hello world
	Text  string     `json:"text,omitempty" example:"hello world"`
	Error *ErrorBody `json:"error,omitempty"`
}

// Terminal reports whether the event ends the stream.
func (e TranscriptEvent) Terminal() bool { return e.Type == EventComplete || e.Type == EventError }

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
	// Stable engine error code, when the failure came from the engine.
	// example: INVALID_INPUT
	ErrorCode string `json:"error_code,omitempty" example:"INVALID_INPUT"`
}
