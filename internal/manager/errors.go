package manager

import (
	"fmt"

	"inferd/internal/runner"
)

// errBusy signals queue timeout/overflow or a draining runner (429 mapping).
func errBusy(name, why string) error {
	return runner.NewError(runner.CodeRunnerBusy, fmt.Sprintf("runner %s busy: %s", name, why))
}

// ErrRunnerNotFound returns the selection error for a missing runner name.
func ErrRunnerNotFound(name string) error {
	return runner.NewError(runner.CodeRunnerNotFound, fmt.Sprintf("runner %q not registered", name))
}

func errNoRunner(c runner.Capability) error {
	return runner.NewError(runner.CodeRunnerNotFound, fmt.Sprintf("no runner available for capability %s", c))
}

func errInsufficientMemory(name string, required, used, budget int) error {
	return runner.NewError(runner.CodeInsufficientMemory,
		fmt.Sprintf("runner %s needs %d MB; %d of %d MB in use by busy runners", name, required, used, budget))
}

// IsTooBusy reports whether err indicates backpressure (return 429).
func IsTooBusy(err error) bool { return runner.IsBusy(err) }
