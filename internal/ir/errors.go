package ir

import (
	"errors"
	"fmt"
)

// ErrCapacityExceeded is the sentinel wrapped by every CapacityError.
var ErrCapacityExceeded = errors.New("capacity exceeded")

// CapacityError reports that a bounded container is full.
//
// Capacity failures are returned to the caller and never fatal; the caller
// decides whether to abort or ignore.
type CapacityError struct {
	// Registry names the full container ("motifs", "rules", "heap", ...).
	Registry string

	// Limit is the configured capacity.
	Limit int
}

// Error implements the error interface.
func (e *CapacityError) Error() string {
	return fmt.Sprintf("%s: %s (limit %d)", e.Registry, ErrCapacityExceeded, e.Limit)
}

// Unwrap allows errors.Is(err, ErrCapacityExceeded).
func (e *CapacityError) Unwrap() error {
	return ErrCapacityExceeded
}
