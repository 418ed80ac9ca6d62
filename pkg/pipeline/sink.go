package pipeline

import (
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// Sink observes a runtime. Methods are called on the runtime's loop and must
// not block.
type Sink interface {
	PoseApplied(client string, frameID uint64, pose tracking.Pose)
	StateChanged(client string, snap session.Snapshot)
}

// SinkFuncs adapts plain functions to Sink. Nil fields are skipped.
type SinkFuncs struct {
	Pose  func(client string, frameID uint64, pose tracking.Pose)
	State func(client string, snap session.Snapshot)
}

// PoseApplied implements Sink.
func (s SinkFuncs) PoseApplied(client string, frameID uint64, pose tracking.Pose) {
	if s.Pose != nil {
		s.Pose(client, frameID, pose)
	}
}

// StateChanged implements Sink.
func (s SinkFuncs) StateChanged(client string, snap session.Snapshot) {
	if s.State != nil {
		s.State(client, snap)
	}
}
