package notify

import (
	"context"
	"errors"
	"fmt"
)

// ErrNoPayload is returned when an adapted handler is called without arguments.
var ErrNoPayload = errors.New("notification has no payload")

// Adapt turns a single-payload handler into a notification callback. The
// callback may be given bookkeeping arguments (channel, start time) ahead of
// the payload; only the last argument reaches handler.
func Adapt[T any](handler func(context.Context, T) error) func(context.Context, ...any) error {
	return func(ctx context.Context, args ...any) error {
		if len(args) == 0 {
			return ErrNoPayload
		}
		last := args[len(args)-1]
		payload, ok := last.(T)
		if !ok {
			var zero T
			return fmt.Errorf("notification payload is %T, want %T", last, zero)
		}
		return handler(ctx, payload)
	}
}
