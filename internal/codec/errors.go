package codec

import (
	"errors"
	"fmt"
)

// Decode failure reasons. Match with errors.Is.
var (
	ErrShortInput     = errors.New("input shorter than container header")
	ErrBadMagic       = errors.New("magic mismatch")
	ErrTruncatedRules = errors.New("declared rule bytes exceed input")
)

// DecodeError reports a malformed container.
type DecodeError struct {
	// Reason is one of the ErrXxx sentinels above.
	Reason error

	// Offset is the byte position where decoding failed.
	Offset int

	// Detail adds context such as the observed magic or declared count.
	Detail string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("decode container at offset %d: %v (%s)", e.Offset, e.Reason, e.Detail)
	}
	return fmt.Sprintf("decode container at offset %d: %v", e.Offset, e.Reason)
}

// Unwrap exposes the reason for errors.Is.
func (e *DecodeError) Unwrap() error {
	return e.Reason
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
