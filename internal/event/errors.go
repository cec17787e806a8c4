package event

import (
	"errors"
	"fmt"
)

// ErrUnauthorized marks retrieval failures where the upstream source refused
// the credentials or could not find the event. The webhook endpoint answers
// these with 401.
var ErrUnauthorized = errors.New("unauthorized event retrieval")

// UnauthorizedError carries the upstream detail for an unauthorized retrieval.
type UnauthorizedError struct {
	ID     string
	Status int
	Err    error
}

func (e *UnauthorizedError) Error() string {
	msg := "unauthorized event retrieval"
	if e.ID != "" {
		msg += fmt.Sprintf(" for %q", e.ID)
	}
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnauthorizedError) Unwrap() error { return e.Err }

// Is reports ErrUnauthorized as a match so callers can use errors.Is.
func (e *UnauthorizedError) Is(target error) bool {
	return target == ErrUnauthorized
}

// IsUnauthorized reports whether err belongs to the unauthorized retrieval class.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}
