package session

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/r3"
)

// State is the AR session lifecycle state.
type State int

const (
	Idle State = iota
	Requesting
	Active
	Ending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Requesting:
		return "requesting"
	case Active:
		return "active"
	case Ending:
		return "ending"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a point-in-time view of the machine.
type Snapshot struct {
	State             State   `json:"state"`
	Placed            bool    `json:"placed"`
	PlacementRequired bool    `json:"placement_required"`
	SessionID         string  `json:"session_id,omitempty"`
	Attempt           uint64  `json:"attempt"`
	Anchor            *r3.Vec `json:"-"`
	LastError         string  `json:"last_error,omitempty"`
}

// PoseAllowed reports whether derived poses may reach the rendered object.
func (s Snapshot) PoseAllowed() bool {
	return s.State == Active && (!s.PlacementRequired || s.Placed)
}

// Listener is notified after every snapshot change.
type Listener func(prev, next Snapshot)
