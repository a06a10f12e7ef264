//go:build llama

package llamacpp

import (
	"context"

	llama "github.com/go-skynet/go-llama.cpp"
)

// built indicates this binary was compiled with real llama support.
var built = true

var openModel = func(path string, mo modelOptions) (model, error) {
	opts := []llama.ModelOption{llama.SetContext(mo.ContextSize)}
	if mo.GPULayers > 0 {
		opts = append(opts, llama.SetGPULayers(mo.GPULayers))
	}
	m, err := llama.New(path, opts...)
	if err != nil {
		return nil, err
	}
	return &llamaModel{m: m}, nil
}

type llamaModel struct {
	m *llama.LLama
}

func (l *llamaModel) Predict(ctx context.Context, prompt string, po predictOptions, onToken func(string) bool) (string, error) {
	l.m.SetTokenCallback(func(tok string) bool {
		if ctx.Err() != nil {
			return false
		}
		if onToken == nil {
			return true
		}
		return onToken(tok)
	})
	defer l.m.SetTokenCallback(nil)
	return l.m.Predict(prompt, toPredictOptions(po)...)
}

func (l *llamaModel) Close() error {
	l.m.Free()
	return nil
}

func orDefault[T int | float32](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

func toPredictOptions(po predictOptions) []llama.PredictOption {
	opts := []llama.PredictOption{
		llama.SetTokens(max(1, po.MaxTokens)),
		llama.SetThreads(max(1, po.Threads)),
		llama.SetTopP(orDefault(po.TopP, llama.DefaultOptions.TopP)),
		llama.SetTopK(orDefault(po.TopK, llama.DefaultOptions.TopK)),
		llama.SetTemperature(orDefault(po.Temperature, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(orDefault(po.RepeatPenalty, llama.DefaultOptions.Penalty)),
	}
	if po.Seed != 0 {
		opts = append(opts, llama.SetSeed(po.Seed))
	}
	if len(po.Stop) > 0 {
		opts = append(opts, llama.SetStopWords(po.Stop...))
	}
	return opts
}
