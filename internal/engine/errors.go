package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/rcx/internal/ir"
)

// RuntimeError represents an error detected while loading or driving an
// engine.
//
// Out-of-bounds accesses are never errors and a timeout is an outcome, so
// the set of codes is small:
//   - LOAD_FAILED: the container could not be decoded
//   - CAPACITY_EXCEEDED: rules or heap do not fit the configured limits
//   - ALREADY_TERMINAL: Step was called after the run ended
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RunID identifies the affected run, when one was assigned.
	RunID string

	// Details contains additional context.
	Details map[string]string

	// Err is the underlying cause, if any.
	Err error
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeLoadFailed indicates the input container failed to decode.
	ErrCodeLoadFailed RuntimeErrorCode = "LOAD_FAILED"

	// ErrCodeCapacityExceeded indicates the rules or heap exceed a limit.
	ErrCodeCapacityExceeded RuntimeErrorCode = "CAPACITY_EXCEEDED"

	// ErrCodeAlreadyTerminal indicates a pass was requested after the
	// engine reached a terminal state.
	ErrCodeAlreadyTerminal RuntimeErrorCode = "ALREADY_TERMINAL"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.RunID != "" {
		msg = fmt.Sprintf("%s (run=%s)", msg, e.RunID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap exposes the cause.
func (e *RuntimeError) Unwrap() error {
	return e.Err
}

// IsLoadError reports whether err is a LOAD_FAILED runtime error.
func IsLoadError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeLoadFailed
	}
	return false
}

// IsCapacityError reports whether err is a CAPACITY_EXCEEDED runtime error
// or wraps ir.ErrCapacityExceeded.
func IsCapacityError(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) && re.Code == ErrCodeCapacityExceeded {
		return true
	}
	return errors.Is(err, ir.ErrCapacityExceeded)
}

// NewLoadError wraps a decode failure.
func NewLoadError(cause error) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeLoadFailed,
		Message: "container could not be loaded",
		Err:     cause,
	}
}

// NewCapacityError wraps a capacity failure hit while loading.
func NewCapacityError(cause *ir.CapacityError) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeCapacityExceeded,
		Message: fmt.Sprintf("%s exceed configured capacity", cause.Registry),
		Details: map[string]string{
			"registry": cause.Registry,
			"limit":    fmt.Sprintf("%d", cause.Limit),
		},
		Err: cause,
	}
}

// NewAlreadyTerminalError reports a pass requested in a terminal state.
func NewAlreadyTerminalError(runID string, state State) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeAlreadyTerminal,
		Message: fmt.Sprintf("engine already %s", state),
		RunID:   runID,
	}
}
