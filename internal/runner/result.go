package runner

// Output keys.
const (
	OutputText    = "text"
	OutputAudio   = "audio"
	OutputActions = "actions"
)

// Metadata keys commonly set by runners.
const (
	MetaFinishReason = "finish_reason"
	MetaAudioFormat  = "audio_format"
	MetaSampleRate   = "sample_rate"
	MetaRunner       = "runner"
)

// Result is the outcome of Run or one element of RunStreaming. It is either
// Success or Failure; consumers switch on the concrete type.
type Result interface {
	// Terminal reports whether no further results follow for the session.
	Terminal() bool
	isResult()
}

// Success carries outputs. Partial results of a stream carry incremental
// text under OutputText; the terminal success carries any trailing delta.
type Success struct {
	Outputs  map[string]any
	Metadata map[string]any
	Partial  bool
}

// Failure is always terminal.
type Failure struct {
	Err *Error
}

func (s Success) Terminal() bool { return !s.Partial }
func (Failure) Terminal() bool   { return true }

func (Success) isResult() {}
func (Failure) isResult() {}

// Text returns the text output or "".
func (s Success) Text() string {
	t, _ := s.Outputs[OutputText].(string)
	return t
}

// Audio returns the audio output or nil.
func (s Success) Audio() []byte {
	b, _ := s.Outputs[OutputAudio].([]byte)
	return b
}

// TextResult builds a success carrying text.
func TextResult(text string, partial bool) Success {
	return Success{Outputs: map[string]any{OutputText: text}, Metadata: map[string]any{}, Partial: partial}
}

// Fail wraps err (classified by AsError) in a Failure.
func Fail(err error) Failure { return Failure{Err: AsError(err)} }

// Single returns a closed channel holding exactly res. Runners without
// native streaming use it to satisfy RunStreaming.
func Single(res Result) <-chan Result {
	ch := make(chan Result, 1)
	ch <- res
	close(ch)
	return ch
}
