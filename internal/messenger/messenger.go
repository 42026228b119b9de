// Package messenger delivers campaign messages to individual phone
// numbers through an external messaging gateway.
package messenger

import (
	"context"
	"errors"
)

// Result reports what happened to a single send attempt.
// InvalidRecipient means the gateway rejected the number itself; the
// recipient will never be deliverable and should be suppressed.
type Result struct {
	Delivered        bool
	InvalidRecipient bool
	ProviderID       string
}

// Messenger sends one message to one phone number. A returned error
// covers gateway-level failures; recipient-level rejection is reported
// through Result.InvalidRecipient with a nil error.
type Messenger interface {
	Send(ctx context.Context, phone, message string) (Result, error)
}

// FatalError marks a gateway failure that will not clear on its own, a
// dead session or revoked credentials. Dispatch pauses the campaign
// instead of burning through the remaining recipients.
type FatalError struct {
	Err error
}

func (e *FatalError) Error() string { return e.Err.Error() }
func (e *FatalError) Unwrap() error { return e.Err }

// Fatal wraps err so IsFatal reports true for it.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &FatalError{Err: err}
}

// IsFatal reports whether err indicates the gateway itself is down.
func IsFatal(err error) bool {
	var fe *FatalError
	return errors.As(err, &fe)
}
