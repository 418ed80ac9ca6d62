package tracking

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"gonum.org/v1/gonum/spatial/r3"
)

// handSet returns a full landmark set with the given index fingertip and thumb tip.
func handSet(index, thumb Landmark) LandmarkSet {
	set := make(LandmarkSet, NumLandmarks)
	for i := range set {
		set[i] = Landmark{X: 0.5, Y: 0.5, Z: 0}
	}
	set[IndexTip] = index
	set[ThumbTip] = thumb
	return set
}

var approx = cmpopts.EquateApprox(0, 1e-9)

func TestDerivePose_ZeroPinch(t *testing.T) {
	cfg := DefaultConfig()
	set := handSet(Landmark{X: 0.5, Y: 0.5}, Landmark{X: 0.5, Y: 0.5})

	if got := TargetScale(cfg, set[IndexTip], set[ThumbTip]); got != 0 {
		t.Errorf("target scale = %v, want 0", got)
	}

	pose, _, err := DerivePose(cfg, set, State{})
	if err != nil {
		t.Fatalf("DerivePose: %v", err)
	}
	if pose.Scale != 0 {
		t.Errorf("scale = %v, want 0", pose.Scale)
	}
}

func TestDerivePose_FirstFrame(t *testing.T) {
	cfg := DefaultConfig()
	set := handSet(Landmark{X: 0.6, Y: 0.4, Z: 0}, Landmark{X: 0.5, Y: 0.5, Z: 0})

	pose, state, err := DerivePose(cfg, set, State{})
	if err != nil {
		t.Fatalf("DerivePose: %v", err)
	}

	if d := PinchDistance(set[IndexTip], set[ThumbTip]); math.Abs(d-0.1414) > 1e-4 {
		t.Errorf("pinch distance = %v, want ~0.1414", d)
	}
	raw := TargetScale(cfg, set[IndexTip], set[ThumbTip])
	if pose.Scale != raw {
		t.Errorf("first-frame scale = %v, want raw %v", pose.Scale, raw)
	}
	if math.Abs(pose.Scale-0.7071) > 1e-4 {
		t.Errorf("scale = %v, want ~0.707", pose.Scale)
	}

	want := Pose{
		Scale:    raw,
		Position: r3.Vec{X: 0.2, Y: 1.8, Z: -1},
		Rotation: Rotation{X: 90, Y: -90, Z: 0},
	}
	if diff := cmp.Diff(want, pose, approx); diff != "" {
		t.Errorf("pose mismatch (-want +got):\n%s", diff)
	}
	if !state.Scale.Primed() || !state.Position.Primed() {
		t.Error("state should be primed after first frame")
	}
	if state.Rotation.Primed() {
		t.Error("rotation filter should stay unused when RotationAlpha is 0")
	}
}

func TestDerivePose_SecondFrameIsSmoothed(t *testing.T) {
	cfg := DefaultConfig()
	first := handSet(Landmark{X: 0.6, Y: 0.4}, Landmark{X: 0.5, Y: 0.5})
	second := handSet(Landmark{X: 0.7, Y: 0.4}, Landmark{X: 0.5, Y: 0.5})

	p1, state, err := DerivePose(cfg, first, State{})
	if err != nil {
		t.Fatal(err)
	}
	p2, _, err := DerivePose(cfg, second, state)
	if err != nil {
		t.Fatal(err)
	}

	rawScale := TargetScale(cfg, second[IndexTip], second[ThumbTip])
	wantScale := Lerp(p1.Scale, rawScale, cfg.ScaleAlpha)
	if math.Abs(p2.Scale-wantScale) > 1e-12 {
		t.Errorf("scale = %v, want %v", p2.Scale, wantScale)
	}

	wantX := Lerp(p1.Position.X, (0.7-0.5)*2, cfg.PositionAlpha)
	if math.Abs(p2.Position.X-wantX) > 1e-12 {
		t.Errorf("x = %v, want %v", p2.Position.X, wantX)
	}

	// rotation is applied raw
	if diff := cmp.Diff(TargetRotation(second[IndexTip], second[ThumbTip]), p2.Rotation, approx); diff != "" {
		t.Errorf("rotation should be unsmoothed (-want +got):\n%s", diff)
	}
}

func TestDerivePose_RotationSmoothingOption(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RotationAlpha = 0.5

	first := handSet(Landmark{X: 0.5, Y: 0.5, Z: 0}, Landmark{X: 0.5, Y: 0.6, Z: 0.1})
	second := handSet(Landmark{X: 0.5, Y: 0.5, Z: 0}, Landmark{X: 0.5, Y: 0.5, Z: 0.1})

	p1, state, _ := DerivePose(cfg, first, State{})
	p2, _, _ := DerivePose(cfg, second, state)

	raw := TargetRotation(second[IndexTip], second[ThumbTip])
	want := Lerp(p1.Rotation.X, raw.X, 0.5)
	if math.Abs(p2.Rotation.X-want) > 1e-9 {
		t.Errorf("rotation x = %v, want %v", p2.Rotation.X, want)
	}
}

func TestDerivePose_Idempotent(t *testing.T) {
	cfg := DefaultConfig()
	_, state, _ := DerivePose(cfg, handSet(Landmark{X: 0.3, Y: 0.3, Z: -0.1}, Landmark{X: 0.4, Y: 0.2, Z: 0}), State{})
	set := handSet(Landmark{X: 0.62, Y: 0.41, Z: -0.05}, Landmark{X: 0.55, Y: 0.47, Z: 0.02})

	poseA, stateA, errA := DerivePose(cfg, set, state)
	poseB, stateB, errB := DerivePose(cfg, set, state)

	if errA != nil || errB != nil {
		t.Fatalf("errors: %v, %v", errA, errB)
	}
	if poseA != poseB {
		t.Errorf("poses differ: %v vs %v", poseA, poseB)
	}
	if !reflect.DeepEqual(stateA, stateB) {
		t.Error("returned states differ")
	}
}

func TestDerivePose_MissingLandmarks(t *testing.T) {
	cfg := DefaultConfig()
	_, state, _ := DerivePose(cfg, handSet(Landmark{X: 0.6, Y: 0.4}, Landmark{X: 0.5, Y: 0.5}), State{})

	tests := []struct {
		name string
		set  LandmarkSet
	}{
		{"empty", LandmarkSet{}},
		{"thumb only", make(LandmarkSet, ThumbTip+1)},
		{"nil", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, next, err := DerivePose(cfg, tt.set, state)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("err = %v, want ErrMalformedFrame", err)
			}
			if !reflect.DeepEqual(next, state) {
				t.Error("state should be unchanged on a malformed frame")
			}
		})
	}
}

func TestStep_MalformedLeavesLandmarkBaseline(t *testing.T) {
	cfg := DefaultConfig()
	_, state, err := Step(cfg, handSet(Landmark{X: 0.6, Y: 0.4}, Landmark{X: 0.5, Y: 0.5}), State{})
	if err != nil {
		t.Fatal(err)
	}

	short := LandmarkSet{{X: 0.9, Y: 0.9}, {X: 0.9, Y: 0.9}}
	_, next, err := Step(cfg, short, state)
	if !errors.Is(err, ErrMalformedFrame) {
		t.Fatalf("err = %v, want ErrMalformedFrame", err)
	}
	if len(next.Landmarks.Value()) != NumLandmarks {
		t.Errorf("landmark baseline replaced by short set (len %d)", len(next.Landmarks.Value()))
	}
}

func TestDepthMapping(t *testing.T) {
	tests := []struct {
		mapping DepthMapping
		depth   float64
		want    float64
	}{
		{DepthOffset, 0, -1},
		{DepthOffset, 0.2, -1.2},
		{DepthFixed, 0.2, -1.5},
		{DepthScaled, 0.2, -0.4},
		{DepthScaled, -0.1, 0.2},
	}

	for _, tt := range tests {
		t.Run(tt.mapping.String(), func(t *testing.T) {
			if got := tt.mapping.Z(tt.depth); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("Z(%v) = %v, want %v", tt.depth, got, tt.want)
			}
		})
	}
}

func TestTargetPosition_FlipsY(t *testing.T) {
	cfg := DefaultConfig()
	cfg.VerticalOffset = 0

	top := TargetPosition(cfg, Landmark{X: 0.5, Y: 0})
	bottom := TargetPosition(cfg, Landmark{X: 0.5, Y: 1})

	if top.Y != 1 || bottom.Y != -1 {
		t.Errorf("top.Y=%v bottom.Y=%v, want 1 and -1", top.Y, bottom.Y)
	}
}
