package tracking

import "gonum.org/v1/gonum/spatial/r3"

// Hand landmark indices, MediaPipe Hands numbering.
// Only ThumbTip and IndexTip drive the pose; the rest are carried for completeness.
const (
	Wrist        = 0
	ThumbCMC     = 1
	ThumbMCP     = 2
	ThumbIP      = 3
	ThumbTip     = 4
	IndexMCP     = 5
	IndexPIP     = 6
	IndexDIP     = 7
	IndexTip     = 8
	MiddleMCP    = 9
	MiddlePIP    = 10
	MiddleDIP    = 11
	MiddleTip    = 12
	RingMCP      = 13
	RingPIP      = 14
	RingDIP      = 15
	RingTip      = 16
	PinkyMCP     = 17
	PinkyPIP     = 18
	PinkyDIP     = 19
	PinkyTip     = 20
	NumLandmarks = 21
)

// Landmark is one tracked key point in normalized image space.
// X and Y are in [0,1] relative to the frame; Z is relative depth as reported by
// the tracking provider.
type Landmark struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Vec returns the landmark as a vector.
func (l Landmark) Vec() r3.Vec {
	return r3.Vec{X: l.X, Y: l.Y, Z: l.Z}
}

// LandmarkSet is the skeleton of one detected hand in one frame.
// A well-formed set has NumLandmarks entries, but providers occasionally emit
// shorter arrays and the pipeline tolerates that.
type LandmarkSet []Landmark

// At returns the landmark at index i, or false if the set is too short.
func (s LandmarkSet) At(i int) (Landmark, bool) {
	if i < 0 || i >= len(s) {
		return Landmark{}, false
	}
	return s[i], true
}

// Pinch returns the index fingertip and thumb tip.
// ok is false when either is missing.
func (s LandmarkSet) Pinch() (index, thumb Landmark, ok bool) {
	index, okIndex := s.At(IndexTip)
	thumb, okThumb := s.At(ThumbTip)
	return index, thumb, okIndex && okThumb
}

// Hand is one detected hand as delivered by the tracking provider.
type Hand struct {
	Landmarks  LandmarkSet `json:"landmarks"`
	Handedness string      `json:"handedness,omitempty"` // "Left" or "Right"
	Score      float64     `json:"score,omitempty"`
}

// Frame is a single tracking result. Hands may be empty.
type Frame struct {
	ID     uint64 `json:"frame_id,omitempty"`
	Hands  []Hand `json:"hands"`
	Width  int    `json:"width,omitempty"`
	Height int    `json:"height,omitempty"`
}

// Primary returns the hand the pipeline follows. The pipeline is single-target,
// so only the first hand counts.
func (f Frame) Primary() (Hand, bool) {
	if len(f.Hands) == 0 {
		return Hand{}, false
	}
	return f.Hands[0], true
}
