package pipeline

import (
	"errors"
	"fmt"

	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
)

var (
	// ErrUnknownClient is returned for a client id with no runtime.
	ErrUnknownClient = errors.New("pipeline: unknown client")

	// ErrUnknownAction is returned for an action other than start or exit.
	ErrUnknownAction = errors.New("pipeline: unknown action")

	// ErrUnknownEvent is returned for an unrecognized XR event.
	ErrUnknownEvent = errors.New("pipeline: unknown xr event")

	// ErrStopped is returned when posting to a runtime that has stopped.
	ErrStopped = errors.New("pipeline: runtime stopped")
)

// ActionEvent maps a page action onto a session event.
func ActionEvent(action string) (session.Event, error) {
	switch action {
	case protocol.ActionStart:
		return session.StartRequested{}, nil
	case protocol.ActionExit:
		return session.ExitRequested{}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownAction, action)
}

// XREvent maps an XR runtime event onto a session event. Hit-test move and
// select events need a position.
func XREvent(data protocol.XREventData) (session.Event, error) {
	switch data.Event {
	case protocol.EventSessionEnd:
		return session.SessionEnded{Session: data.Session}, nil
	case protocol.EventHitTestStart:
		return session.HitTestStarted{}, nil
	case protocol.EventHitTestMove, protocol.EventHitTestSelect:
		if data.Position == nil {
			return nil, fmt.Errorf("%w: %s without position", ErrUnknownEvent, data.Event)
		}
		if data.Event == protocol.EventHitTestMove {
			return session.HitTestMoved{Position: data.Position.Vec()}, nil
		}
		return session.HitTestSelected{Position: data.Position.Vec()}, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, data.Event)
}
