package hub

import (
	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// PoseApplied broadcasts an applied pose to observers.
func (h *Hub) PoseApplied(client string, frameID uint64, pose tracking.Pose) {
	msg, err := protocol.NewPoseMessage(client, frameID, pose)
	h.publish(client, msg, err, false)
}

// StateChanged broadcasts a session snapshot to observers and retains it.
func (h *Hub) StateChanged(client string, snap session.Snapshot) {
	msg, err := protocol.NewStateMessage(client, snap)
	h.publish(client, msg, err, false)
}

// ClientEvent broadcasts a page connecting or leaving. A page that leaves
// loses its retained state.
func (h *Hub) ClientEvent(client, event string) {
	msg, err := protocol.NewClientMessage(client, event)
	h.publish(client, msg, err, event == protocol.ClientDisconnected)
}

func (h *Hub) publish(client string, msg *protocol.Message, err error, forget bool) {
	if err == nil {
		var e Event
		if e, err = NewEvent(client, msg); err == nil {
			e.forget = forget
			h.Broadcast(e)
			return
		}
	}
	h.logger.Warn("failed to encode event", "client", client, "error", err)
}
