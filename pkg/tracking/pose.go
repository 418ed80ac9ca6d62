package tracking

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// ErrMalformedFrame is returned when a landmark set lacks the thumb tip or the
// index fingertip. Callers skip the frame; smoothing state is left as it was.
var ErrMalformedFrame = errors.New("tracking: landmark set missing thumb tip or index fingertip")

// Rotation is an Euler rotation in degrees.
type Rotation struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Pose is the transform applied to the tracked object.
type Pose struct {
	Scale    float64
	Position r3.Vec
	Rotation Rotation
}

func (p Pose) String() string {
	return fmt.Sprintf("scale=%.3f pos=(%.3f, %.3f, %.3f) rot=(%.1f°, %.1f°, %.1f°)",
		p.Scale, p.Position.X, p.Position.Y, p.Position.Z,
		p.Rotation.X, p.Rotation.Y, p.Rotation.Z)
}

// State is the smoothing memory carried from one processed frame to the next.
// The zero value is a fresh state; every filter bootstraps on its first sample.
type State struct {
	Landmarks Landmarks
	Scale     Scalar
	Position  Vec
	Rotation  Vec
}

// PinchDistance is the distance between the two tips in the image plane.
func PinchDistance(index, thumb Landmark) float64 {
	return math.Hypot(index.X-thumb.X, index.Y-thumb.Y)
}

// TargetScale is the unsmoothed scale for a pinch.
func TargetScale(cfg Config, index, thumb Landmark) float64 {
	return PinchDistance(index, thumb) * cfg.ScaleGain
}

// TargetPosition maps the fingertip into object space, before smoothing.
// Image y grows downward, object y grows upward.
func TargetPosition(cfg Config, index Landmark) r3.Vec {
	return r3.Vec{
		X: (index.X - 0.5) * 2,
		Y: -(index.Y-0.5)*2 + cfg.VerticalOffset,
		Z: cfg.Depth.Z(index.Z),
	}
}

// TargetRotation tilts the object along the fingertip-to-thumb vector.
// Roll is not modeled.
func TargetRotation(index, thumb Landmark) Rotation {
	d := r3.Sub(thumb.Vec(), index.Vec())
	return Rotation{
		X: Degrees(math.Atan2(d.Y, d.Z)),
		Y: Degrees(math.Atan2(d.X, d.Z)),
		Z: 0,
	}
}

// DerivePose maps an already smoothed landmark set to a pose.
// It does not modify prev; the updated smoothing state is returned instead.
// On ErrMalformedFrame the returned state is prev unchanged.
func DerivePose(cfg Config, landmarks LandmarkSet, prev State) (Pose, State, error) {
	index, thumb, ok := landmarks.Pinch()
	if !ok {
		return Pose{}, prev, ErrMalformedFrame
	}

	next := prev

	next.Scale.Alpha = cfg.ScaleAlpha
	scale := next.Scale.Filter(TargetScale(cfg, index, thumb))

	next.Position.Alpha = cfg.PositionAlpha
	position := next.Position.Filter(TargetPosition(cfg, index))

	rotation := TargetRotation(index, thumb)
	if cfg.RotationAlpha > 0 {
		next.Rotation.Alpha = cfg.RotationAlpha
		r := next.Rotation.Filter(r3.Vec{X: rotation.X, Y: rotation.Y, Z: rotation.Z})
		rotation = Rotation{X: r.X, Y: r.Y, Z: r.Z}
	}

	return Pose{Scale: scale, Position: position, Rotation: rotation}, next, nil
}

// Step runs one raw landmark set through the whole pipeline: landmark
// smoothing followed by pose derivation. A set missing either tip is rejected
// before anything is smoothed.
func Step(cfg Config, raw LandmarkSet, prev State) (Pose, State, error) {
	if _, _, ok := raw.Pinch(); !ok {
		return Pose{}, prev, ErrMalformedFrame
	}
	next := prev
	next.Landmarks.Alpha = cfg.LandmarkAlpha
	smoothed := next.Landmarks.Filter(raw)
	return DerivePose(cfg, smoothed, next)
}
