package tracking

import (
	"fmt"
	"strings"
)

// DepthMapping selects how the fingertip depth estimate becomes object-space z.
type DepthMapping int

const (
	// DepthOffset places the object one unit in front of the camera and pushes
	// it by the fingertip depth: z = -1 - depth.
	DepthOffset DepthMapping = iota
	// DepthFixed ignores the depth estimate: z = -1.5.
	DepthFixed
	// DepthScaled uses the depth estimate alone: z = -2 * depth.
	DepthScaled
)

// FixedDepth is the z used by DepthFixed.
const FixedDepth = -1.5

func (m DepthMapping) String() string {
	switch m {
	case DepthOffset:
		return "offset"
	case DepthFixed:
		return "fixed"
	case DepthScaled:
		return "scaled"
	default:
		return fmt.Sprintf("DepthMapping(%d)", int(m))
	}
}

// ParseDepthMapping parses "offset", "fixed" or "scaled".
func ParseDepthMapping(s string) (DepthMapping, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "offset":
		return DepthOffset, nil
	case "fixed":
		return DepthFixed, nil
	case "scaled":
		return DepthScaled, nil
	}
	return DepthOffset, fmt.Errorf("tracking: unknown depth mapping %q", s)
}

// Z maps a fingertip depth estimate to object-space z.
func (m DepthMapping) Z(depth float64) float64 {
	switch m {
	case DepthFixed:
		return FixedDepth
	case DepthScaled:
		return -depth * 2
	default:
		return -1 - depth
	}
}

// Config holds all tunable parameters for the gesture-to-pose pipeline
type Config struct {
	// Smoothing (blend factor toward the new sample, 0-1]
	LandmarkAlpha float64 // Whole landmark sets
	ScaleAlpha    float64 // Pinch scale
	PositionAlpha float64 // Object position, per axis
	RotationAlpha float64 // Object rotation, per axis. 0 applies raw rotation

	// Gesture mapping
	ScaleGain      float64      // Pinch distance to uniform scale
	VerticalOffset float64      // Added to y, roughly eye height when holding a phone
	Depth          DepthMapping // Fingertip depth to z
}

// DefaultConfig returns the recommended configuration
func DefaultConfig() Config {
	return Config{
		LandmarkAlpha: 0.3,
		ScaleAlpha:    0.2,
		PositionAlpha: 0.2,
		RotationAlpha: 0, // rotation tracks the pinch directly

		ScaleGain:      5,
		VerticalOffset: 1.6,
		Depth:          DepthOffset,
	}
}

// SteadyConfig trades latency for a calmer object
func SteadyConfig() Config {
	cfg := DefaultConfig()
	cfg.LandmarkAlpha = 0.2
	cfg.ScaleAlpha = 0.1
	cfg.PositionAlpha = 0.1
	cfg.RotationAlpha = 0.3
	return cfg
}

// SnappyConfig follows the hand closely
func SnappyConfig() Config {
	cfg := DefaultConfig()
	cfg.LandmarkAlpha = 0.6
	cfg.ScaleAlpha = 0.5
	cfg.PositionAlpha = 0.5
	return cfg
}

// Validate checks that every blend factor is usable.
func (c Config) Validate() error {
	alphas := []struct {
		name  string
		value float64
	}{
		{"landmark", c.LandmarkAlpha},
		{"scale", c.ScaleAlpha},
		{"position", c.PositionAlpha},
	}
	for _, a := range alphas {
		if a.value <= 0 || a.value > 1 {
			return fmt.Errorf("tracking: %s alpha %v out of range (0, 1]", a.name, a.value)
		}
	}
	if c.RotationAlpha < 0 || c.RotationAlpha > 1 {
		return fmt.Errorf("tracking: rotation alpha %v out of range [0, 1]", c.RotationAlpha)
	}
	if c.ScaleGain <= 0 {
		return fmt.Errorf("tracking: scale gain must be positive, got %v", c.ScaleGain)
	}
	return nil
}
