// Package session implements the AR session and placement state machine.
//
// The machine is driven by explicit events. It is not safe for concurrent use:
// the owner calls Handle from a single goroutine, and asynchronous work started
// by the machine (session requests, exits, support checks) reports back by
// posting events through the function given to NewMachine.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/spatial/r3"
)

// PostFunc delivers an event back to the goroutine that owns the machine.
type PostFunc func(Event)

// Machine is the session/placement state machine for one pipeline.
type Machine struct {
	cfg     Config
	device  Device
	scene   Scene
	surface Surface
	post    PostFunc
	logger  *slog.Logger

	snap      Snapshot
	session   XRSession
	cancel    context.CancelFunc // in-flight request
	timer     *time.Timer        // request timeout
	listeners []Listener

	// Session ids whose end arrived while Requesting
	endedEarly map[string]struct{}
}

// NewMachine creates a machine in Idle. A nil logger uses slog.Default().
func NewMachine(cfg Config, device Device, scene Scene, surface Surface, post PostFunc, logger *slog.Logger) *Machine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Machine{
		cfg:     cfg,
		device:  device,
		scene:   scene,
		surface: surface,
		post:    post,
		logger:  logger,
		snap: Snapshot{
			State:             Idle,
			PlacementRequired: cfg.PlacementRequired,
		},
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	return m.snap
}

// PoseAllowed reports whether poses may be applied right now.
func (m *Machine) PoseAllowed() bool {
	return m.snap.PoseAllowed()
}

// AddListener registers a callback for snapshot changes.
func (m *Machine) AddListener(l Listener) {
	m.listeners = append(m.listeners, l)
}

// CheckSupport checks device support in the background and posts SupportChecked.
func (m *Machine) CheckSupport(ctx context.Context) {
	go func() {
		if m.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.cfg.RequestTimeout)
			defer cancel()
		}
		supported, err := m.device.IsSupported(ctx, m.cfg.Mode)
		m.post(SupportChecked{Supported: supported, Err: err})
	}()
}

// Handle applies one event. It returns the error surfaced to the user, or a
// rejection such as ErrBusy; nil otherwise. ctx scopes any work the event
// starts.
func (m *Machine) Handle(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case StartRequested:
		return m.start(ctx)
	case SessionEstablished:
		m.established(e)
	case RequestFailed:
		return m.failed(e)
	case ExitRequested:
		return m.exit(ctx)
	case ExitCompleted:
		m.exitCompleted(e)
	case SessionEnded:
		m.ended(e)
	case SupportChecked:
		m.supportChecked(e)
	case HitTestStarted:
		m.logger.Debug("hit-test started", "state", m.snap.State)
	case HitTestMoved:
		if m.awaitingPlacement() {
			m.check("move reticle", m.surface.MoveReticle(e.Position))
		}
	case HitTestSelected:
		m.place(e.Position)
	default:
		return fmt.Errorf("session: unknown event %T", ev)
	}
	return nil
}

func (m *Machine) start(ctx context.Context) error {
	if m.snap.State != Idle {
		m.logger.Warn("start rejected", "state", m.snap.State)
		return ErrBusy
	}

	attempt := m.snap.Attempt + 1
	m.endedEarly = nil
	m.update(func(s *Snapshot) {
		s.State = Requesting
		s.Attempt = attempt
		s.LastError = ""
	})
	m.check("start control", m.surface.SetStartControl(StartControl{Visible: true, Enabled: false, Label: LabelStarting}))

	reqCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	if m.cfg.RequestTimeout > 0 {
		m.timer = time.AfterFunc(m.cfg.RequestTimeout, func() {
			m.post(RequestFailed{Attempt: attempt, Err: ErrRequestTimeout})
		})
	}

	go func() {
		s, err := m.request(reqCtx)
		if err != nil {
			m.post(RequestFailed{Attempt: attempt, Err: err})
			return
		}
		m.post(SessionEstablished{Attempt: attempt, Session: s})
	}()
	return nil
}

// request runs off the owning goroutine and touches only collaborators.
func (m *Machine) request(ctx context.Context) (XRSession, error) {
	supported, err := m.device.IsSupported(ctx, m.cfg.Mode)
	if err != nil {
		return nil, classify(err, ErrUnsupportedEnvironment)
	}
	if !supported {
		return nil, ErrUnsupportedEnvironment
	}

	var s XRSession
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return classify(m.device.RequestPermissions(gctx), ErrPermissionDenied)
	})
	g.Go(func() error {
		var err error
		s, err = m.device.RequestSession(gctx, m.cfg.Mode, m.cfg.Init)
		return classify(err, ErrSessionRequestFailed)
	})
	if err := g.Wait(); err != nil {
		m.endQuietly(s)
		return nil, err
	}

	if err := m.scene.EnterAR(ctx); err != nil {
		m.endQuietly(s)
		return nil, classify(err, ErrSessionRequestFailed)
	}
	return s, nil
}

func (m *Machine) established(e SessionEstablished) {
	if m.snap.State != Requesting || e.Attempt != m.snap.Attempt {
		m.logger.Info("dropping stale session", "attempt", e.Attempt, "current", m.snap.Attempt)
		// Another attempt may own the scene by now; only leave AR mode when idle.
		leaveAR := m.snap.State == Idle
		go func() {
			exitCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ExitTimeout)
			defer cancel()
			if leaveAR {
				m.scene.ExitAR(exitCtx)
			}
			m.endQuietly(e.Session)
		}()
		return
	}
	m.stopRequest()

	if _, gone := m.endedEarly[e.Session.ID()]; gone {
		m.endedEarly = nil
		m.logger.Info("session ended before it was established", "attempt", e.Attempt, "xr_session", e.Session.ID())
		go func() {
			exitCtx, cancel := context.WithTimeout(context.Background(), m.cfg.ExitTimeout)
			defer cancel()
			m.scene.ExitAR(exitCtx)
		}()
		m.finish()
		return
	}
	m.endedEarly = nil

	m.session = e.Session
	m.update(func(s *Snapshot) {
		s.State = Active
		s.SessionID = uuid.NewString()
		s.Placed = false
		s.Anchor = nil
	})

	m.check("start control", m.surface.SetStartControl(StartControl{Visible: true, Enabled: true, Label: LabelExit}))
	if m.cfg.PlacementRequired {
		m.check("model visibility", m.surface.SetModelVisible(false))
		m.check("reticle visibility", m.surface.SetReticleVisible(true))
	} else {
		m.check("model visibility", m.surface.SetModelVisible(true))
	}
	m.logger.Info("AR session active", "session_id", m.snap.SessionID, "placement", m.cfg.PlacementRequired)
}

func (m *Machine) failed(e RequestFailed) error {
	if m.snap.State != Requesting || e.Attempt != m.snap.Attempt {
		m.logger.Debug("ignoring stale failure", "attempt", e.Attempt, "err", e.Err)
		return nil
	}
	m.stopRequest()

	err := e.Err
	if err == nil {
		err = ErrSessionRequestFailed
	}
	m.update(func(s *Snapshot) {
		s.State = Idle
		s.LastError = err.Error()
	})

	control := StartControl{Visible: true, Enabled: true, Label: LabelStart}
	switch {
	case errors.Is(err, ErrUnsupportedEnvironment):
		control = StartControl{Visible: true, Enabled: false, Label: LabelUnsupported}
	case !Retryable(err):
		control = StartControl{Visible: true, Enabled: false, Label: LabelError}
	}
	m.check("start control", m.surface.SetStartControl(control))
	m.check("error display", m.surface.ShowError(err))

	m.logger.Warn("AR session request failed", "attempt", e.Attempt, "err", err)
	return err
}

func (m *Machine) exit(ctx context.Context) error {
	if m.snap.State != Active {
		m.logger.Debug("exit ignored", "state", m.snap.State)
		return ErrNotActive
	}

	id := m.snap.SessionID
	s := m.session
	m.update(func(snap *Snapshot) { snap.State = Ending })
	m.check("start control", m.surface.SetStartControl(StartControl{Visible: true, Enabled: false, Label: LabelExit}))

	go func() {
		exitCtx, cancel := context.WithTimeout(ctx, m.cfg.ExitTimeout)
		defer cancel()
		err := m.scene.ExitAR(exitCtx)
		if s != nil {
			if endErr := s.End(exitCtx); err == nil {
				err = endErr
			}
		}
		m.post(ExitCompleted{SessionID: id, Err: err})
	}()
	return nil
}

func (m *Machine) exitCompleted(e ExitCompleted) {
	if e.Err != nil {
		m.logger.Warn("exit finished with error", "session_id", e.SessionID, "err", e.Err)
	}
	if m.snap.State != Ending || e.SessionID != m.snap.SessionID {
		return
	}
	m.finish()
}

func (m *Machine) ended(e SessionEnded) {
	switch m.snap.State {
	case Requesting:
		// The end can overtake SessionEstablished; established checks this set.
		if e.Session != "" {
			if m.endedEarly == nil {
				m.endedEarly = make(map[string]struct{})
			}
			m.endedEarly[e.Session] = struct{}{}
		}
		return
	case Active, Ending:
		if !m.isCurrent(e.Session) {
			m.logger.Debug("end of another session ignored", "xr_session", e.Session, "state", m.snap.State)
			return
		}
	default:
		m.logger.Debug("session end ignored", "state", m.snap.State)
		return
	}

	if m.snap.State == Active {
		m.update(func(s *Snapshot) { s.State = Ending })
	}
	m.finish()
}

// isCurrent reports whether id names the live session. Empty matches.
func (m *Machine) isCurrent(id string) bool {
	return id == "" || (m.session != nil && m.session.ID() == id)
}

// finish completes Ending -> Idle.
func (m *Machine) finish() {
	id := m.snap.SessionID
	m.session = nil
	m.update(func(s *Snapshot) {
		s.State = Idle
		s.SessionID = ""
		s.Placed = false
		s.Anchor = nil
	})
	m.check("model visibility", m.surface.SetModelVisible(false))
	m.check("reticle visibility", m.surface.SetReticleVisible(false))
	m.check("start control", m.surface.SetStartControl(StartControl{Visible: true, Enabled: true, Label: LabelStart}))
	m.logger.Info("AR session ended", "session_id", id)
}

// supportChecked only labels the control before the first attempt; afterwards the
// attempt's outcome owns it.
func (m *Machine) supportChecked(e SupportChecked) {
	if m.snap.State != Idle || m.snap.Attempt > 0 {
		m.logger.Debug("late support check ignored", "state", m.snap.State, "attempt", m.snap.Attempt)
		return
	}
	control := StartControl{Visible: true, Enabled: true, Label: LabelStart}
	switch {
	case e.Err != nil:
		m.logger.Warn("AR support check failed", "err", e.Err)
		control = StartControl{Visible: true, Enabled: false, Label: LabelError}
	case !e.Supported:
		control = StartControl{Visible: true, Enabled: false, Label: LabelUnsupported}
	}
	m.check("start control", m.surface.SetStartControl(control))
}

func (m *Machine) awaitingPlacement() bool {
	return m.snap.State == Active && m.cfg.PlacementRequired && !m.snap.Placed
}

// place is one-shot per Active period.
func (m *Machine) place(p r3.Vec) {
	if !m.awaitingPlacement() {
		m.logger.Debug("hit-test select ignored",
			"state", m.snap.State, "placed", m.snap.Placed, "placement", m.cfg.PlacementRequired)
		return
	}

	anchor := p
	m.update(func(s *Snapshot) {
		s.Placed = true
		s.Anchor = &anchor
	})
	m.check("anchor", m.surface.SetAnchor(p))
	m.check("reticle visibility", m.surface.SetReticleVisible(false))
	m.check("model visibility", m.surface.SetModelVisible(true))
	m.logger.Info("object placed", "x", p.X, "y", p.Y, "z", p.Z)
}

func (m *Machine) stopRequest() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}

func (m *Machine) endQuietly(s XRSession) {
	if s == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.ExitTimeout)
	defer cancel()
	if err := s.End(ctx); err != nil {
		m.logger.Debug("ending abandoned session", "err", err)
	}
}

func (m *Machine) update(fn func(*Snapshot)) {
	prev := m.snap
	fn(&m.snap)
	if prev.State != m.snap.State {
		m.logger.Debug("session state transition", "from", prev.State.String(), "to", m.snap.State.String())
	}
	for _, l := range m.listeners {
		l(prev, m.snap)
	}
}

func (m *Machine) check(what string, err error) {
	if err != nil {
		m.logger.Warn("surface update failed", "what", what, "err", err)
	}
}
