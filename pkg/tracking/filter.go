package tracking

import "gonum.org/v1/gonum/spatial/r3"

// Lerp blends a toward b by t.
func Lerp(a, b, t float64) float64 {
	return a*(1-t) + b*t
}

// Scalar is an exponential moving average over a single quantity.
// The zero value is unprimed: its first sample passes through unchanged.
type Scalar struct {
	Alpha  float64
	value  float64
	primed bool
}

// NewScalar returns a filter with blend factor alpha.
func NewScalar(alpha float64) Scalar {
	return Scalar{Alpha: alpha}
}

// Filter feeds raw into the filter and returns the smoothed value.
func (s *Scalar) Filter(raw float64) float64 {
	if !s.primed {
		s.value = raw
		s.primed = true
		return raw
	}
	s.value = Lerp(s.value, raw, s.Alpha)
	return s.value
}

// Value returns the last emitted value.
func (s Scalar) Value() float64 { return s.value }

// Primed reports whether the filter has seen a sample.
func (s Scalar) Primed() bool { return s.primed }

// Vec smooths each axis of a vector independently.
type Vec struct {
	Alpha  float64
	value  r3.Vec
	primed bool
}

// NewVec returns a vector filter with blend factor alpha.
func NewVec(alpha float64) Vec {
	return Vec{Alpha: alpha}
}

// Filter feeds raw into the filter and returns the smoothed vector.
func (v *Vec) Filter(raw r3.Vec) r3.Vec {
	if !v.primed {
		v.value = raw
		v.primed = true
		return raw
	}
	v.value = r3.Vec{
		X: Lerp(v.value.X, raw.X, v.Alpha),
		Y: Lerp(v.value.Y, raw.Y, v.Alpha),
		Z: Lerp(v.value.Z, raw.Z, v.Alpha),
	}
	return v.value
}

// Value returns the last emitted vector.
func (v Vec) Value() r3.Vec { return v.value }

// Primed reports whether the filter has seen a sample.
func (v Vec) Primed() bool { return v.primed }

// Landmarks smooths whole landmark sets, entry by entry.
type Landmarks struct {
	Alpha    float64
	previous LandmarkSet
}

// NewLandmarks returns a landmark set filter with blend factor alpha.
func NewLandmarks(alpha float64) Landmarks {
	return Landmarks{Alpha: alpha}
}

// Filter smooths raw against the previous output and stores the result as the
// next baseline. Entries with no stored counterpart pass through raw.
func (l *Landmarks) Filter(raw LandmarkSet) LandmarkSet {
	out := make(LandmarkSet, len(raw))
	for i, lm := range raw {
		prev, ok := l.previous.At(i)
		if !ok {
			out[i] = lm
			continue
		}
		out[i] = Landmark{
			X: Lerp(prev.X, lm.X, l.Alpha),
			Y: Lerp(prev.Y, lm.Y, l.Alpha),
			Z: Lerp(prev.Z, lm.Z, l.Alpha),
		}
	}
	l.previous = out
	return out
}

// Value returns the last emitted set. The returned slice must not be modified.
func (l Landmarks) Value() LandmarkSet { return l.previous }

// Primed reports whether the filter has seen a set.
func (l Landmarks) Primed() bool { return l.previous != nil }
