//go:build !llama

package llamacpp

import "inferd/internal/runner"

// Without the 'llama' build tag runners register but never load.
var built = false

var openModel = func(path string, mo modelOptions) (model, error) {
	return nil, runner.NewError(runner.CodeHardwareUnavailable, "llama support not built (missing 'llama' build tag)")
}
