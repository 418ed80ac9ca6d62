package session

import "gonum.org/v1/gonum/spatial/r3"

// Event is consumed by Machine.Handle.
type Event interface {
	event()
}

// StartRequested is the user's "start AR" action.
type StartRequested struct{}

// ExitRequested is the user's "exit AR" action.
type ExitRequested struct{}

// SessionEstablished reports that attempt reached AR mode.
type SessionEstablished struct {
	Attempt uint64
	Session XRSession
}

// RequestFailed reports that attempt failed or timed out.
type RequestFailed struct {
	Attempt uint64
	Err     error
}

// ExitCompleted reports that the exit started for SessionID finished.
type ExitCompleted struct {
	SessionID string
	Err       error
}

// SessionEnded is the XR session's "end" event. Session is the ended
// session's ID; empty means the current session.
type SessionEnded struct {
	Session string
}

// SupportChecked carries the result of Machine.CheckSupport.
type SupportChecked struct {
	Supported bool
	Err       error
}

// HitTestStarted is the renderer's hit-test "start" event.
type HitTestStarted struct{}

// HitTestMoved is the renderer's hit-test "move" event.
type HitTestMoved struct {
	Position r3.Vec
}

// HitTestSelected is the renderer's hit-test "select" event.
type HitTestSelected struct {
	Position r3.Vec
}

func (StartRequested) event()     {}
func (ExitRequested) event()      {}
func (SessionEstablished) event() {}
func (RequestFailed) event()      {}
func (ExitCompleted) event()      {}
func (SessionEnded) event()       {}
func (SupportChecked) event()     {}
func (HitTestStarted) event()     {}
func (HitTestMoved) event()       {}
func (HitTestSelected) event()    {}
