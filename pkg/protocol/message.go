// Package protocol defines the WebSocket message types exchanged between the
// AR page and the pose service, and the events streamed to observers.
package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// MessageType identifies the type of WebSocket message
type MessageType string

const (
	// Page → Service messages
	TypeHands   MessageType = "hands"    // Landmark frame from the hand tracker
	TypeAction  MessageType = "action"   // Start/exit button pressed
	TypeXREvent MessageType = "xr_event" // WebXR session and hit-test events
	TypeXRReply MessageType = "xr_reply" // Answer to an xr_call

	// Service → Page messages
	TypeXRCall         MessageType = "xr_call"         // WebXR/scene runtime call
	TypeAttr           MessageType = "attr"            // Scene attribute write
	TypeUI             MessageType = "ui"              // Start control and error display
	TypeTrackerOptions MessageType = "tracker_options" // Hand tracker configuration

	// Service → Observer messages
	TypeState  MessageType = "state"  // Session snapshot
	TypePose   MessageType = "pose"   // Applied pose
	TypeClient MessageType = "client" // Page connected/disconnected

	// Bidirectional
	TypePing MessageType = "ping" // Health check
	TypePong MessageType = "pong" // Health check response
)

// Message is the base wrapper for all WebSocket messages
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp int64           `json:"ts,omitempty"` // Unix milliseconds
	Data      json.RawMessage `json:"data,omitempty"`
}

// NewMessage creates a new message with the current timestamp
func NewMessage(msgType MessageType, data interface{}) (*Message, error) {
	var rawData json.RawMessage
	if data != nil {
		var err error
		rawData, err = json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal message data: %w", err)
		}
	}

	return &Message{
		Type:      msgType,
		Timestamp: time.Now().UnixMilli(),
		Data:      rawData,
	}, nil
}

// ParseData unmarshals the message data into the provided struct
func (m *Message) ParseData(v interface{}) error {
	if m.Data == nil {
		return nil
	}
	return json.Unmarshal(m.Data, v)
}

// Bytes returns the JSON-encoded message
func (m *Message) Bytes() ([]byte, error) {
	return json.Marshal(m)
}

// ParseMessage parses a JSON message from bytes
func ParseMessage(data []byte) (*Message, error) {
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("failed to parse message: missing type")
	}
	return &msg, nil
}

// Vec3 is the wire form of a 3-D vector.
type Vec3 struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewVec3 converts from r3.Vec.
func NewVec3(v r3.Vec) Vec3 {
	return Vec3{X: v.X, Y: v.Y, Z: v.Z}
}

// Vec converts to r3.Vec.
func (v Vec3) Vec() r3.Vec {
	return r3.Vec{X: v.X, Y: v.Y, Z: v.Z}
}

// =============================================================================
// Page → Service Message Types
// =============================================================================

// HandsData is one tracker frame. Only the first hand drives the pose.
type HandsData = tracking.Frame

// Actions carried by ActionData.
const (
	ActionStart = "start"
	ActionExit  = "exit"
)

// ActionData is a user action on the page.
type ActionData struct {
	Action string `json:"action"`
}

// XR events carried by XREventData.
const (
	EventSessionEnd    = "session_end"
	EventHitTestStart  = "hit_test_start"
	EventHitTestMove   = "hit_test_move"
	EventHitTestSelect = "hit_test_select"
)

// XREventData is an event raised by the XR runtime or the renderer's
// hit-test component.
type XREventData struct {
	Event    string `json:"event"`
	Session  string `json:"session,omitempty"`  // session_end only, as returned by request_session
	Position *Vec3  `json:"position,omitempty"` // hit-test events only
}

// Reply codes, mapped onto the session error taxonomy.
const (
	CodeUnsupported      = "unsupported"
	CodePermissionDenied = "permission_denied"
	CodeSessionFailed    = "session_failed"
)

// XRReplyData answers an XRCallData with the same ID.
type XRReplyData struct {
	ID        string `json:"id"`
	OK        bool   `json:"ok"`
	Supported bool   `json:"supported,omitempty"` // is_supported only
	Session   string `json:"session,omitempty"`   // request_session only
	Error     string `json:"error,omitempty"`
	Code      string `json:"code,omitempty"`
}

// =============================================================================
// Service → Page Message Types
// =============================================================================

// XR call operations.
const (
	OpIsSupported        = "is_supported"
	OpRequestPermissions = "request_permissions"
	OpRequestSession     = "request_session"
	OpEndSession         = "end_session"
	OpEnterAR            = "enter_ar"
	OpExitAR             = "exit_ar"
)

// XRCallData asks the page to run an XR or scene operation.
type XRCallData struct {
	ID               string   `json:"id"`
	Op               string   `json:"op"`
	Mode             string   `json:"mode,omitempty"`
	Session          string   `json:"session,omitempty"`
	RequiredFeatures []string `json:"required_features,omitempty"`
	OptionalFeatures []string `json:"optional_features,omitempty"`
}

// AttrData sets one attribute on a scene entity.
type AttrData struct {
	Entity string `json:"entity"`
	Name   string `json:"name"`
	Value  string `json:"value"`
}

// UIData updates the start control, shows an error, or both.
type UIData struct {
	*session.StartControl
	Error string `json:"error,omitempty"`
}

// TrackerOptionsData configures the page's hand tracker.
// Field names follow the tracker's own option names.
type TrackerOptionsData struct {
	MaxNumHands            int     `json:"maxNumHands"`
	ModelComplexity        int     `json:"modelComplexity"`
	MinDetectionConfidence float64 `json:"minDetectionConfidence"`
	MinTrackingConfidence  float64 `json:"minTrackingConfidence"`
}

// DefaultTrackerOptions tracks a single hand at full model complexity.
func DefaultTrackerOptions() TrackerOptionsData {
	return TrackerOptionsData{
		MaxNumHands:            1,
		ModelComplexity:        1,
		MinDetectionConfidence: 0.5,
		MinTrackingConfidence:  0.5,
	}
}

// =============================================================================
// Observer Message Types
// =============================================================================

// StateData is a session snapshot for one client.
type StateData struct {
	Client            string `json:"client,omitempty"`
	State             string `json:"state"`
	Placed            bool   `json:"placed"`
	PlacementRequired bool   `json:"placement_required"`
	SessionID         string `json:"session_id,omitempty"`
	Attempt           uint64 `json:"attempt"`
	Anchor            *Vec3  `json:"anchor,omitempty"`
	LastError         string `json:"last_error,omitempty"`
}

// NewStateData converts a session snapshot.
func NewStateData(client string, snap session.Snapshot) StateData {
	d := StateData{
		Client:            client,
		State:             snap.State.String(),
		Placed:            snap.Placed,
		PlacementRequired: snap.PlacementRequired,
		SessionID:         snap.SessionID,
		Attempt:           snap.Attempt,
		LastError:         snap.LastError,
	}
	if snap.Anchor != nil {
		a := NewVec3(*snap.Anchor)
		d.Anchor = &a
	}
	return d
}

// PoseData is an applied pose.
type PoseData struct {
	Client   string            `json:"client,omitempty"`
	FrameID  uint64            `json:"frame_id,omitempty"`
	Scale    float64           `json:"scale"`
	Position Vec3              `json:"position"`
	Rotation tracking.Rotation `json:"rotation"`
}

// NewPoseData converts a pose.
func NewPoseData(client string, frameID uint64, pose tracking.Pose) PoseData {
	return PoseData{
		Client:   client,
		FrameID:  frameID,
		Scale:    pose.Scale,
		Position: NewVec3(pose.Position),
		Rotation: pose.Rotation,
	}
}

// Pose converts back to a tracking pose.
func (p PoseData) Pose() tracking.Pose {
	return tracking.Pose{Scale: p.Scale, Position: p.Position.Vec(), Rotation: p.Rotation}
}

// Client lifecycle events.
const (
	ClientConnected    = "connected"
	ClientDisconnected = "disconnected"
)

// ClientData announces a page connecting or leaving.
type ClientData struct {
	Client string `json:"client"`
	Event  string `json:"event"`
}

// =============================================================================
// Bidirectional Message Types
// =============================================================================

// PingData contains ping information
type PingData struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"ts"`
}

// PongData contains pong response
type PongData struct {
	ID        string `json:"id"`
	PingTS    int64  `json:"ping_ts"`
	PongTS    int64  `json:"pong_ts"`
	LatencyMs int64  `json:"latency_ms"`
}
