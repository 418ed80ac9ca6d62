package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// harness owns a machine the way a pipeline loop does: posted events queue
// up and the test decides when to handle them.
type harness struct {
	t      *testing.T
	ctx    context.Context
	mock   *Mock
	m      *Machine
	events chan Event
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := &harness{t: t, ctx: ctx, mock: NewMock(), events: make(chan Event, 16)}
	h.m = NewMachine(cfg, h.mock, h.mock, h.mock, func(ev Event) { h.events <- ev }, discardLogger)
	return h
}

func (h *harness) next() Event {
	h.t.Helper()
	select {
	case ev := <-h.events:
		return ev
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for a posted event")
		return nil
	}
}

func (h *harness) handle(ev Event) error {
	return h.m.Handle(h.ctx, ev)
}

func (h *harness) handleNext() error {
	h.t.Helper()
	return h.handle(h.next())
}

func (h *harness) activate() {
	h.t.Helper()
	require.NoError(h.t, h.handle(StartRequested{}))
	require.NoError(h.t, h.handleNext())
	require.Equal(h.t, Active, h.m.Snapshot().State)
}

func TestMachine_StartsIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	snap := h.m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.False(t, snap.Placed)
	assert.False(t, h.m.PoseAllowed())
}

func TestMachine_StartReachesActive(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	require.NoError(t, h.handle(StartRequested{}))
	assert.Equal(t, Requesting, h.m.Snapshot().State)
	assert.False(t, h.mock.LastControl().Enabled, "start control must be disabled while requesting")

	ev := h.next()
	require.IsType(t, SessionEstablished{}, ev)
	require.NoError(t, h.handle(ev))

	snap := h.m.Snapshot()
	assert.Equal(t, Active, snap.State)
	assert.NotEmpty(t, snap.SessionID)
	assert.True(t, h.m.PoseAllowed())
	assert.True(t, h.mock.ModelVisible())
	assert.Equal(t, LabelExit, h.mock.LastControl().Label)
	assert.Contains(t, h.mock.Calls(), "RequestPermissions")
	assert.Contains(t, h.mock.Calls(), "EnterAR")
}

func TestMachine_UnsupportedEmitsOneError(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mock.IsSupportedFunc = func(context.Context, Mode) (bool, error) { return false, nil }

	require.NoError(t, h.handle(StartRequested{}))
	err := h.handleNext()

	assert.ErrorIs(t, err, ErrUnsupportedEnvironment)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	shown := h.mock.Errors()
	require.Len(t, shown, 1)
	assert.ErrorIs(t, shown[0], ErrUnsupportedEnvironment)

	control := h.mock.LastControl()
	assert.False(t, control.Enabled)
	assert.Equal(t, LabelUnsupported, control.Label)
	assert.NotContains(t, h.mock.Calls(), "RequestSession")
}

func TestMachine_PermissionDenied(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mock.RequestPermissionsFunc = func(context.Context) error { return errors.New("camera blocked") }
	h.mock.RequestSessionFunc = func(context.Context, Mode, SessionInit) (XRSession, error) {
		return h.mock.NewSession(), nil
	}

	require.NoError(t, h.handle(StartRequested{}))
	err := h.handleNext()

	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.False(t, Retryable(err))
	assert.Equal(t, 1, h.mock.EndedSessions(), "a session obtained alongside a denied permission is ended")
	assert.NotContains(t, h.mock.Calls(), "EnterAR")
}

func TestMachine_SessionRequestFailedIsRetryable(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	fail := true
	h.mock.EnterARFunc = func(context.Context) error {
		if fail {
			return errors.New("scene refused")
		}
		return nil
	}

	require.NoError(t, h.handle(StartRequested{}))
	err := h.handleNext()
	require.ErrorIs(t, err, ErrSessionRequestFailed)
	assert.True(t, Retryable(err))
	assert.True(t, h.mock.LastControl().Enabled)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	fail = false
	h.activate()
	assert.Equal(t, uint64(2), h.m.Snapshot().Attempt)
}

func TestMachine_StartWhileRequestingIsRejected(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	release := make(chan struct{})
	h.mock.RequestSessionFunc = func(ctx context.Context, _ Mode, _ SessionInit) (XRSession, error) {
		<-release
		return h.mock.NewSession(), nil
	}

	require.NoError(t, h.handle(StartRequested{}))
	assert.ErrorIs(t, h.handle(StartRequested{}), ErrBusy)
	assert.Equal(t, Requesting, h.m.Snapshot().State)
	assert.Equal(t, uint64(1), h.m.Snapshot().Attempt)

	close(release)
	require.NoError(t, h.handleNext())
	assert.Equal(t, Active, h.m.Snapshot().State)
	assert.ErrorIs(t, h.handle(StartRequested{}), ErrBusy)
}

func TestMachine_RequestTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	h.mock.IsSupportedFunc = func(ctx context.Context, _ Mode) (bool, error) {
		<-ctx.Done()
		return false, ctx.Err()
	}

	require.NoError(t, h.handle(StartRequested{}))
	err := h.handleNext()

	assert.ErrorIs(t, err, ErrRequestTimeout)
	assert.ErrorIs(t, err, ErrSessionRequestFailed)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	// The cancelled request reports late; it must not disturb Idle.
	assert.NoError(t, h.handleNext())
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Len(t, h.mock.Errors(), 1)
}

func TestMachine_LateSessionAfterTimeoutIsEnded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 20 * time.Millisecond
	h := newHarness(t, cfg)
	release := make(chan struct{})
	h.mock.EnterARFunc = func(context.Context) error {
		<-release
		return nil
	}

	require.NoError(t, h.handle(StartRequested{}))
	require.ErrorIs(t, h.handleNext(), ErrRequestTimeout)

	close(release)
	ev := h.next()
	require.IsType(t, SessionEstablished{}, ev)
	require.NoError(t, h.handle(ev))

	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Eventually(t, func() bool { return h.mock.EndedSessions() == 1 }, time.Second, 5*time.Millisecond)
}

func TestMachine_StaleSessionEndKeepsLiveSession(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 50 * time.Millisecond
	h := newHarness(t, cfg)

	release := make(chan struct{})
	var enters atomic.Int32
	h.mock.EnterARFunc = func(context.Context) error {
		if enters.Add(1) == 1 {
			<-release
		}
		return nil
	}

	// Attempt 1 hangs in EnterAR and times out.
	require.NoError(t, h.handle(StartRequested{}))
	require.ErrorIs(t, h.handleNext(), ErrRequestTimeout)

	// Attempt 2 succeeds.
	h.activate()
	live := h.m.session.ID()

	// Attempt 1 finally lands; its session is ended and the page reports it.
	close(release)
	ev := h.next()
	stale, ok := ev.(SessionEstablished)
	require.True(t, ok, "got %T", ev)
	require.Equal(t, uint64(1), stale.Attempt)
	require.NoError(t, h.handle(stale))
	require.NotEqual(t, live, stale.Session.ID())

	require.NoError(t, h.handle(SessionEnded{Session: stale.Session.ID()}))
	assert.Equal(t, Active, h.m.Snapshot().State)
	assert.True(t, h.m.PoseAllowed())
	assert.Equal(t, live, h.m.session.ID())
	assert.NotContains(t, h.mock.Calls(), "ExitAR")
	assert.Eventually(t, func() bool { return h.mock.EndedSessions() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.handle(SessionEnded{Session: live}))
	assert.Equal(t, Idle, h.m.Snapshot().State)
}

func TestMachine_SessionEndBeforeEstablished(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	s := h.mock.NewSession()
	h.mock.RequestSessionFunc = func(context.Context, Mode, SessionInit) (XRSession, error) {
		return s, nil
	}
	release := make(chan struct{})
	h.mock.EnterARFunc = func(context.Context) error {
		<-release
		return nil
	}

	require.NoError(t, h.handle(StartRequested{}))

	// The end overtakes the request result.
	require.NoError(t, h.handle(SessionEnded{Session: s.ID()}))
	assert.Equal(t, Requesting, h.m.Snapshot().State)

	close(release)
	require.NoError(t, h.handleNext())

	snap := h.m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.SessionID)
	assert.False(t, h.m.PoseAllowed())
	assert.Equal(t, StartControl{Visible: true, Enabled: true, Label: LabelStart}, h.mock.LastControl())
	assert.Eventually(t, func() bool {
		for _, c := range h.mock.Calls() {
			if c == "ExitAR" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	// A fresh attempt is not affected by the earlier end.
	h.mock.RequestSessionFunc = nil
	h.mock.EnterARFunc = nil
	h.activate()
}

func TestMachine_EarlyEndOfOtherSessionIgnored(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	release := make(chan struct{})
	h.mock.EnterARFunc = func(context.Context) error {
		<-release
		return nil
	}

	require.NoError(t, h.handle(StartRequested{}))
	require.NoError(t, h.handle(SessionEnded{Session: "someone-else"}))
	close(release)
	require.NoError(t, h.handleNext())

	assert.Equal(t, Active, h.m.Snapshot().State)
	assert.True(t, h.m.PoseAllowed())
}

func TestMachine_ExitReturnsToIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.activate()

	require.NoError(t, h.handle(ExitRequested{}))
	assert.Equal(t, Ending, h.m.Snapshot().State)
	assert.False(t, h.m.PoseAllowed())

	ev := h.next()
	require.IsType(t, ExitCompleted{}, ev)
	require.NoError(t, h.handle(ev))

	snap := h.m.Snapshot()
	assert.Equal(t, Idle, snap.State)
	assert.Empty(t, snap.SessionID)
	assert.False(t, h.mock.ModelVisible())
	assert.Equal(t, StartControl{Visible: true, Enabled: true, Label: LabelStart}, h.mock.LastControl())
	assert.Contains(t, h.mock.Calls(), "ExitAR")
	assert.Equal(t, 1, h.mock.EndedSessions())
}

func TestMachine_ExitWhenIdle(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	assert.ErrorIs(t, h.handle(ExitRequested{}), ErrNotActive)
	assert.Equal(t, Idle, h.m.Snapshot().State)
}

func TestMachine_ExternalSessionEnd(t *testing.T) {
	h := newHarness(t, DefaultConfig())

	var states []State
	h.m.AddListener(func(prev, next Snapshot) {
		if prev.State != next.State {
			states = append(states, next.State)
		}
	})
	h.activate()

	require.NoError(t, h.handle(SessionEnded{}))
	assert.Equal(t, Idle, h.m.Snapshot().State)
	assert.Equal(t, []State{Requesting, Active, Ending, Idle}, states)
	assert.True(t, h.mock.LastControl().Enabled)
}

func TestMachine_SessionEndWhileEnding(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.activate()
	require.NoError(t, h.handle(ExitRequested{}))

	require.NoError(t, h.handle(SessionEnded{}))
	assert.Equal(t, Idle, h.m.Snapshot().State)

	// The exit goroutine still reports; it is ignored.
	require.NoError(t, h.handleNext())
	assert.Equal(t, Idle, h.m.Snapshot().State)
}

func TestMachine_PlacementIsOneShot(t *testing.T) {
	h := newHarness(t, PlacementConfig())
	h.activate()

	snap := h.m.Snapshot()
	assert.False(t, snap.Placed)
	assert.False(t, h.m.PoseAllowed(), "poses wait for placement")
	assert.True(t, h.mock.ReticleVisible())
	assert.False(t, h.mock.ModelVisible())

	first := r3.Vec{X: 0.2, Y: 0, Z: -1.4}
	second := r3.Vec{X: -1, Y: 0, Z: -3}

	require.NoError(t, h.handle(HitTestMoved{Position: first}))
	assert.Equal(t, first, h.mock.Reticle())

	require.NoError(t, h.handle(HitTestSelected{Position: first}))
	require.NoError(t, h.handle(HitTestSelected{Position: second}))
	require.NoError(t, h.handle(HitTestMoved{Position: second}))

	snap = h.m.Snapshot()
	assert.True(t, snap.Placed)
	require.NotNil(t, snap.Anchor)
	assert.Equal(t, first, *snap.Anchor)
	assert.Equal(t, []r3.Vec{first}, h.mock.Anchors())
	assert.Equal(t, first, h.mock.Reticle(), "reticle stops following after placement")
	assert.False(t, h.mock.ReticleVisible())
	assert.True(t, h.mock.ModelVisible())
	assert.True(t, h.m.PoseAllowed())
}

func TestMachine_PlacementResetsPerSession(t *testing.T) {
	h := newHarness(t, PlacementConfig())
	h.activate()
	require.NoError(t, h.handle(HitTestSelected{Position: r3.Vec{Z: -1}}))
	require.NoError(t, h.handle(SessionEnded{}))

	assert.False(t, h.m.Snapshot().Placed)
	assert.Nil(t, h.m.Snapshot().Anchor)

	h.activate()
	assert.False(t, h.m.Snapshot().Placed)
	assert.False(t, h.m.PoseAllowed())
}

func TestMachine_HitTestIgnoredWithoutPlacement(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	require.NoError(t, h.handle(HitTestSelected{Position: r3.Vec{Z: -1}}))
	assert.Empty(t, h.mock.Anchors())

	h.activate()
	require.NoError(t, h.handle(HitTestSelected{Position: r3.Vec{Z: -1}}))
	assert.Empty(t, h.mock.Anchors())
	assert.False(t, h.m.Snapshot().Placed)
}

func TestMachine_LateSupportResultKeepsFailureLabel(t *testing.T) {
	h := newHarness(t, DefaultConfig())
	h.mock.RequestPermissionsFunc = func(context.Context) error { return errors.New("camera blocked") }

	require.NoError(t, h.handle(StartRequested{}))
	require.ErrorIs(t, h.handleNext(), ErrPermissionDenied)
	want := StartControl{Visible: true, Enabled: false, Label: LabelError}
	require.Equal(t, want, h.mock.LastControl())

	require.NoError(t, h.handle(SupportChecked{Supported: true}))
	assert.Equal(t, want, h.mock.LastControl())
}

func TestMachine_CheckSupport(t *testing.T) {
	tests := []struct {
		name      string
		supported bool
		err       error
		want      StartControl
	}{
		{"supported", true, nil, StartControl{Visible: true, Enabled: true, Label: LabelStart}},
		{"unsupported", false, nil, StartControl{Visible: true, Enabled: false, Label: LabelUnsupported}},
		{"error", false, errors.New("no xr"), StartControl{Visible: true, Enabled: false, Label: LabelError}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, DefaultConfig())
			h.mock.IsSupportedFunc = func(context.Context, Mode) (bool, error) { return tt.supported, tt.err }

			h.m.CheckSupport(h.ctx)
			require.NoError(t, h.handleNext())

			assert.Equal(t, tt.want, h.mock.LastControl())
			assert.Equal(t, Idle, h.m.Snapshot().State)
		})
	}
}

func TestClassify(t *testing.T) {
	assert.ErrorIs(t, classify(context.DeadlineExceeded, ErrPermissionDenied), ErrRequestTimeout)
	assert.ErrorIs(t, classify(errors.New("x"), ErrPermissionDenied), ErrPermissionDenied)
	assert.ErrorIs(t, classify(ErrUnsupportedEnvironment, ErrSessionRequestFailed), ErrUnsupportedEnvironment)
	assert.NoError(t, classify(nil, ErrSessionRequestFailed))
}
