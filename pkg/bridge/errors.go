package bridge

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
)

// ErrClosed is returned for calls made on, or pending when, the connection closes.
var ErrClosed = errors.New("bridge: connection closed")

// CallError is a failed reply from the page.
type CallError struct {
	// Op is the call that failed.
	Op string

	// Code classifies the failure (protocol.Code*). May be empty.
	Code string

	// Message is the page's error text.
	Message string
}

// Error implements the error interface.
func (e *CallError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("bridge: %s failed (%s): %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("bridge: %s failed: %s", e.Op, e.Message)
}

// Unwrap maps the reply code onto the session error taxonomy.
func (e *CallError) Unwrap() error {
	switch e.Code {
	case protocol.CodeUnsupported:
		return session.ErrUnsupportedEnvironment
	case protocol.CodePermissionDenied:
		return session.ErrPermissionDenied
	case protocol.CodeSessionFailed:
		return session.ErrSessionRequestFailed
	}
	return nil
}
