package runner

import (
	"context"
	"errors"
	"fmt"
)

// Code is a stable symbolic error identifier.
type Code string

const (
	// validation
	CodeInvalidInput          Code = "INVALID_INPUT"
	CodeMissingInput          Code = "MISSING_INPUT"
	CodeInvalidParameter      Code = "INVALID_PARAMETER"
	CodeUnsupportedCapability Code = "UNSUPPORTED_CAPABILITY"
	CodeSessionConflict       Code = "SESSION_CONFLICT"
	// selection
	CodeRunnerNotFound Code = "RUNNER_NOT_FOUND"
	// processing
	CodeProcessingFailed  Code = "PROCESSING_FAILED"
	CodeModelLoadFailed   Code = "MODEL_LOAD_FAILED"
	CodeStreamInterrupted Code = "STREAM_INTERRUPTED"
	CodeTimeout           Code = "TIMEOUT"
	CodeNetworkError      Code = "NETWORK_ERROR"
	CodeCancelled         Code = "CANCELLED"
	CodeInternal          Code = "INTERNAL"
	// resource
	CodeInsufficientMemory  Code = "INSUFFICIENT_MEMORY"
	CodeHardwareUnavailable Code = "HARDWARE_UNAVAILABLE"
	CodeRunnerBusy          Code = "RUNNER_BUSY"
)

// Class groups codes by how callers should react.
type Class int

const (
	ClassProcessing Class = iota
	ClassValidation
	ClassSelection
	ClassResource
)

func (c Class) String() string {
	switch c {
	case ClassValidation:
		return "validation"
	case ClassSelection:
		return "selection"
	case ClassResource:
		return "resource"
	default:
		return "processing"
	}
}

// Class returns the class of a code; unknown codes count as processing.
func (c Code) Class() Class {
	switch c {
	case CodeInvalidInput, CodeMissingInput, CodeInvalidParameter, CodeUnsupportedCapability, CodeSessionConflict:
		return ClassValidation
	case CodeRunnerNotFound:
		return ClassSelection
	case CodeInsufficientMemory, CodeHardwareUnavailable, CodeRunnerBusy:
		return ClassResource
	default:
		return ClassProcessing
	}
}

// Recoverable is the default retry hint for the code's class.
func (c Code) Recoverable() bool {
	switch c.Class() {
	case ClassValidation, ClassSelection:
		return false
	}
	return true
}

// Error is the structured failure surfaced by runners and the coordinator.
type Error struct {
	Code        Code
	Message     string
	Recoverable bool
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil && e.Cause.Error() != e.Message {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError builds an error whose recoverable flag follows the code's class.
func NewError(code Code, msg string) *Error {
	return &Error{Code: code, Message: msg, Recoverable: code.Recoverable()}
}

// Wrap builds an error with a cause.
func Wrap(code Code, msg string, cause error) *Error {
	e := NewError(code, msg)
	e.Cause = cause
	return e
}

// AsError converts any error into an *Error. Existing *Error values anywhere
// in the chain are returned as is; context errors map to CANCELLED/TIMEOUT;
// everything else becomes INTERNAL.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var re *Error
	if errors.As(err, &re) {
		return re
	}
	switch {
	case errors.Is(err, context.Canceled):
		return Wrap(CodeCancelled, "request cancelled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(CodeTimeout, "request timed out", err)
	}
	return Wrap(CodeInternal, err.Error(), err)
}

// CodeOf returns the code of err, or "" when err is nil.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return AsError(err).Code
}

// IsRunnerNotFound reports whether no runner could serve a capability.
func IsRunnerNotFound(err error) bool { return CodeOf(err) == CodeRunnerNotFound }

// IsBusy reports whether err indicates admission backpressure.
func IsBusy(err error) bool { return CodeOf(err) == CodeRunnerBusy }

// IsValidation reports whether err is a caller input problem.
func IsValidation(err error) bool {
	return err != nil && CodeOf(err).Class() == ClassValidation
}

// IsCancelled reports whether err stems from caller cancellation.
func IsCancelled(err error) bool { return CodeOf(err) == CodeCancelled }
