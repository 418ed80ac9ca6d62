package protocol

import (
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// =============================================================================
// Helper functions for creating messages
// =============================================================================

// NewHandsMessage creates a hands message
func NewHandsMessage(frame tracking.Frame) (*Message, error) {
	return NewMessage(TypeHands, frame)
}

// NewActionMessage creates an action message
func NewActionMessage(action string) (*Message, error) {
	return NewMessage(TypeAction, ActionData{Action: action})
}

// NewXREventMessage creates an XR event message. position may be nil.
func NewXREventMessage(event string, position *Vec3) (*Message, error) {
	return NewMessage(TypeXREvent, XREventData{Event: event, Position: position})
}

// NewSessionEndMessage creates a session_end event for the session id
// returned by request_session.
func NewSessionEndMessage(session string) (*Message, error) {
	return NewMessage(TypeXREvent, XREventData{Event: EventSessionEnd, Session: session})
}

// NewXRReplyMessage creates a reply to an XR call
func NewXRReplyMessage(reply XRReplyData) (*Message, error) {
	return NewMessage(TypeXRReply, reply)
}

// NewXRCallMessage creates an XR call message
func NewXRCallMessage(call XRCallData) (*Message, error) {
	return NewMessage(TypeXRCall, call)
}

// NewAttrMessage creates a scene attribute message
func NewAttrMessage(entity, name, value string) (*Message, error) {
	return NewMessage(TypeAttr, AttrData{Entity: entity, Name: name, Value: value})
}

// NewControlMessage creates a UI message updating the start control
func NewControlMessage(c session.StartControl) (*Message, error) {
	return NewMessage(TypeUI, UIData{StartControl: &c})
}

// NewErrorMessage creates a UI message displaying an error
func NewErrorMessage(err error) (*Message, error) {
	return NewMessage(TypeUI, UIData{Error: err.Error()})
}

// NewTrackerOptionsMessage creates a tracker options message
func NewTrackerOptionsMessage(opts TrackerOptionsData) (*Message, error) {
	return NewMessage(TypeTrackerOptions, opts)
}

// NewStateMessage creates a state message
func NewStateMessage(client string, snap session.Snapshot) (*Message, error) {
	return NewMessage(TypeState, NewStateData(client, snap))
}

// NewPoseMessage creates a pose message
func NewPoseMessage(client string, frameID uint64, pose tracking.Pose) (*Message, error) {
	return NewMessage(TypePose, NewPoseData(client, frameID, pose))
}

// NewClientMessage creates a client lifecycle message
func NewClientMessage(client, event string) (*Message, error) {
	return NewMessage(TypeClient, ClientData{Client: client, Event: event})
}

// NewPingMessage creates a ping message
func NewPingMessage(id string) (*Message, error) {
	return NewMessage(TypePing, PingData{
		ID:        id,
		Timestamp: 0, // Will be set by NewMessage
	})
}

// NewPongMessage creates a pong response message
func NewPongMessage(id string, pingTS, pongTS int64) (*Message, error) {
	return NewMessage(TypePong, PongData{
		ID:        id,
		PingTS:    pingTS,
		PongTS:    pongTS,
		LatencyMs: pongTS - pingTS,
	})
}

// =============================================================================
// Helper functions for parsing messages
// =============================================================================

// GetHandsData extracts a landmark frame from a message
func (m *Message) GetHandsData() (*HandsData, error) {
	var data HandsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetActionData extracts action data from a message
func (m *Message) GetActionData() (*ActionData, error) {
	var data ActionData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetXREventData extracts XR event data from a message
func (m *Message) GetXREventData() (*XREventData, error) {
	var data XREventData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetXRReplyData extracts an XR reply from a message
func (m *Message) GetXRReplyData() (*XRReplyData, error) {
	var data XRReplyData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetXRCallData extracts an XR call from a message
func (m *Message) GetXRCallData() (*XRCallData, error) {
	var data XRCallData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetAttrData extracts attribute data from a message
func (m *Message) GetAttrData() (*AttrData, error) {
	var data AttrData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetUIData extracts UI data from a message
func (m *Message) GetUIData() (*UIData, error) {
	var data UIData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetTrackerOptions extracts tracker options from a message
func (m *Message) GetTrackerOptions() (*TrackerOptionsData, error) {
	var data TrackerOptionsData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetStateData extracts state data from a message
func (m *Message) GetStateData() (*StateData, error) {
	var data StateData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPoseData extracts pose data from a message
func (m *Message) GetPoseData() (*PoseData, error) {
	var data PoseData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPingData extracts ping data from a message
func (m *Message) GetPingData() (*PingData, error) {
	var data PingData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}

// GetPongData extracts pong data from a message
func (m *Message) GetPongData() (*PongData, error) {
	var data PongData
	if err := m.ParseData(&data); err != nil {
		return nil, err
	}
	return &data, nil
}
