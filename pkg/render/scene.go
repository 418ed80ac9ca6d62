package render

import (
	"gonum.org/v1/gonum/spatial/r3"
)

// Entity names in the page's scene graph. The model is a child of the anchor,
// so live poses are relative to the placed anchor.
const (
	EntityModel   = "model"
	EntityReticle = "reticle"
	EntityAnchor  = "anchor"
)

// Resolver looks up a named object handle.
type Resolver interface {
	Object(name string) ObjectHandle
}

// Scene groups the handles the pipeline writes to.
type Scene struct {
	Model   ObjectHandle
	Reticle ObjectHandle
	Anchor  ObjectHandle
}

// NewScene resolves the standard entities.
func NewScene(r Resolver) Scene {
	return Scene{
		Model:   r.Object(EntityModel),
		Reticle: r.Object(EntityReticle),
		Anchor:  r.Object(EntityAnchor),
	}
}

// SetModelVisible shows or hides the tracked model.
func (s Scene) SetModelVisible(visible bool) error {
	return SetVisible(s.Model, visible)
}

// SetReticleVisible shows or hides the hit-test reticle.
func (s Scene) SetReticleVisible(visible bool) error {
	return SetVisible(s.Reticle, visible)
}

// MoveReticle follows the latest hit-test result.
func (s Scene) MoveReticle(p r3.Vec) error {
	return SetPosition(s.Reticle, p)
}

// SetAnchor pins the anchor at a placed hit point.
func (s Scene) SetAnchor(p r3.Vec) error {
	return SetPosition(s.Anchor, p)
}
