package session

import (
	"context"

	"gonum.org/v1/gonum/spatial/r3"
)

// Mode is an XR session mode.
type Mode string

// ModeImmersiveAR is the only mode this package requests.
const ModeImmersiveAR Mode = "immersive-ar"

// Feature names understood by WebXR runtimes.
const (
	FeatureHitTest    = "hit-test"
	FeatureDOMOverlay = "dom-overlay"
	FeatureLocalFloor = "local-floor"
)

// SessionInit lists the features requested with a session.
type SessionInit struct {
	RequiredFeatures []string `json:"required_features,omitempty"`
	OptionalFeatures []string `json:"optional_features,omitempty"`
}

// Device is the device permission and session API.
type Device interface {
	IsSupported(ctx context.Context, mode Mode) (bool, error)
	RequestPermissions(ctx context.Context) error
	RequestSession(ctx context.Context, mode Mode, init SessionInit) (XRSession, error)
}

// XRSession is an established AR session. Its "end" event is delivered to the
// machine as SessionEnded carrying the same ID.
type XRSession interface {
	ID() string
	End(ctx context.Context) error
}

// Scene is the renderer's AR mode control.
type Scene interface {
	EnterAR(ctx context.Context) error
	ExitAR(ctx context.Context) error
}

// StartControl describes the start/exit button.
type StartControl struct {
	Visible bool   `json:"start_visible"`
	Enabled bool   `json:"start_enabled"`
	Label   string `json:"start_label"`
}

// Start control labels.
const (
	LabelStart       = "Start AR"
	LabelStarting    = "Starting AR..."
	LabelExit        = "Exit AR"
	LabelUnsupported = "AR Not Supported"
	LabelError       = "AR Error"
)

// Surface is everything the machine shows to the user.
type Surface interface {
	SetStartControl(c StartControl) error
	ShowError(err error) error
	SetModelVisible(visible bool) error
	SetReticleVisible(visible bool) error
	MoveReticle(p r3.Vec) error
	SetAnchor(p r3.Vec) error
}
