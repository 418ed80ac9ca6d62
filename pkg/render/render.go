// Package render applies poses and visibility to objects in the external AR
// scene. It is the only place where numeric values become attribute strings.
package render

import (
	"fmt"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-handar/pkg/tracking"
)

// Attribute names understood by the scene renderer.
const (
	AttrScale    = "scale"
	AttrPosition = "position"
	AttrRotation = "rotation"
	AttrVisible  = "visible"
)

// ObjectHandle is a named object in the scene that accepts attribute writes.
type ObjectHandle interface {
	SetAttribute(name, value string) error
}

// ApplyPose writes scale, position and rotation to the object.
// Writing stops at the first failed attribute.
func ApplyPose(obj ObjectHandle, pose tracking.Pose) error {
	s := FormatFloat(pose.Scale)
	if err := obj.SetAttribute(AttrScale, Join(s, s, s)); err != nil {
		return fmt.Errorf("render: set scale: %w", err)
	}
	if err := SetPosition(obj, pose.Position); err != nil {
		return err
	}
	r := pose.Rotation
	if err := obj.SetAttribute(AttrRotation, FormatVec(r3.Vec{X: r.X, Y: r.Y, Z: r.Z})); err != nil {
		return fmt.Errorf("render: set rotation: %w", err)
	}
	return nil
}

// SetPosition writes a position attribute.
func SetPosition(obj ObjectHandle, p r3.Vec) error {
	if err := obj.SetAttribute(AttrPosition, FormatVec(p)); err != nil {
		return fmt.Errorf("render: set position: %w", err)
	}
	return nil
}

// SetVisible shows or hides the object.
func SetVisible(obj ObjectHandle, visible bool) error {
	if err := obj.SetAttribute(AttrVisible, strconv.FormatBool(visible)); err != nil {
		return fmt.Errorf("render: set visible: %w", err)
	}
	return nil
}

// FormatFloat uses the shortest representation that round-trips.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatVec renders "x y z".
func FormatVec(v r3.Vec) string {
	return Join(FormatFloat(v.X), FormatFloat(v.Y), FormatFloat(v.Z))
}

// Join separates attribute components with single spaces.
func Join(parts ...string) string {
	return strings.Join(parts, " ")
}

// ParseVec is the inverse of FormatVec.
func ParseVec(s string) (r3.Vec, error) {
	fields := strings.Fields(s)
	if len(fields) != 3 {
		return r3.Vec{}, fmt.Errorf("render: want 3 components, got %d in %q", len(fields), s)
	}
	var out [3]float64
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return r3.Vec{}, fmt.Errorf("render: component %d: %w", i, err)
		}
		out[i] = v
	}
	return r3.Vec{X: out[0], Y: out[1], Z: out[2]}, nil
}
