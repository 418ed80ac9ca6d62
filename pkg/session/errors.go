package session

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the state machine. Every failure leaves the
// machine in Idle before it is reported.
var (
	// ErrUnsupportedEnvironment is returned when the device has no AR capability.
	ErrUnsupportedEnvironment = errors.New("session: AR not supported on this device")

	// ErrPermissionDenied is returned when a required sensor permission is refused.
	ErrPermissionDenied = errors.New("session: permission denied")

	// ErrSessionRequestFailed is returned when the AR session cannot be
	// established or the scene cannot enter AR mode. The user may retry.
	ErrSessionRequestFailed = errors.New("session: session request failed")

	// ErrRequestTimeout is returned when the request phase takes longer than
	// Config.RequestTimeout.
	ErrRequestTimeout = fmt.Errorf("%w: timed out", ErrSessionRequestFailed)

	// ErrBusy is returned when a start is requested outside Idle.
	ErrBusy = errors.New("session: start rejected, machine not idle")

	// ErrNotActive is returned when an exit is requested without an active session.
	ErrNotActive = errors.New("session: no active AR session")
)

// Retryable reports whether the user may re-trigger the start action after err.
// Unsupported devices and denied permissions are terminal.
func Retryable(err error) bool {
	return errors.Is(err, ErrSessionRequestFailed)
}

// classify maps a collaborator error onto the error taxonomy. Errors that are
// already classified pass through.
func classify(err, fallback error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrUnsupportedEnvironment),
		errors.Is(err, ErrPermissionDenied),
		errors.Is(err, ErrSessionRequestFailed):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return ErrRequestTimeout
	}
	return fmt.Errorf("%w: %v", fallback, err)
}
