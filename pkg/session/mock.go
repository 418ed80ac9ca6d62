package session

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"
)

// Mock implements Device, Scene and Surface for testing.
// All collaborator calls can be customized via function fields; surface calls
// are recorded.
type Mock struct {
	// IsSupportedFunc is called by IsSupported. If nil, reports support.
	IsSupportedFunc func(ctx context.Context, mode Mode) (bool, error)

	// RequestPermissionsFunc is called by RequestPermissions. If nil, grants.
	RequestPermissionsFunc func(ctx context.Context) error

	// RequestSessionFunc is called by RequestSession. If nil, returns a new MockSession.
	RequestSessionFunc func(ctx context.Context, mode Mode, init SessionInit) (XRSession, error)

	// EnterARFunc and ExitARFunc are called by EnterAR and ExitAR. If nil, succeed.
	EnterARFunc func(ctx context.Context) error
	ExitARFunc  func(ctx context.Context) error

	mu             sync.Mutex
	calls          []string
	controls       []StartControl
	errors         []error
	anchors        []r3.Vec
	reticle        r3.Vec
	modelVisible   bool
	reticleVisible bool
	sessions       []*MockSession
}

// NewMock creates a mock where every call succeeds.
func NewMock() *Mock {
	return &Mock{}
}

func (m *Mock) record(call string) {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.mu.Unlock()
}

// IsSupported implements Device.
func (m *Mock) IsSupported(ctx context.Context, mode Mode) (bool, error) {
	m.record("IsSupported")
	if m.IsSupportedFunc != nil {
		return m.IsSupportedFunc(ctx, mode)
	}
	return true, nil
}

// RequestPermissions implements Device.
func (m *Mock) RequestPermissions(ctx context.Context) error {
	m.record("RequestPermissions")
	if m.RequestPermissionsFunc != nil {
		return m.RequestPermissionsFunc(ctx)
	}
	return nil
}

// RequestSession implements Device.
func (m *Mock) RequestSession(ctx context.Context, mode Mode, init SessionInit) (XRSession, error) {
	m.record("RequestSession")
	if m.RequestSessionFunc != nil {
		return m.RequestSessionFunc(ctx, mode, init)
	}
	return m.NewSession(), nil
}

// NewSession returns a session tracked by the mock.
func (m *Mock) NewSession() *MockSession {
	s := &MockSession{id: uuid.NewString()}
	m.mu.Lock()
	m.sessions = append(m.sessions, s)
	m.mu.Unlock()
	return s
}

// EnterAR implements Scene.
func (m *Mock) EnterAR(ctx context.Context) error {
	m.record("EnterAR")
	if m.EnterARFunc != nil {
		return m.EnterARFunc(ctx)
	}
	return nil
}

// ExitAR implements Scene.
func (m *Mock) ExitAR(ctx context.Context) error {
	m.record("ExitAR")
	if m.ExitARFunc != nil {
		return m.ExitARFunc(ctx)
	}
	return nil
}

// SetStartControl implements Surface.
func (m *Mock) SetStartControl(c StartControl) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.controls = append(m.controls, c)
	return nil
}

// ShowError implements Surface.
func (m *Mock) ShowError(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors = append(m.errors, err)
	return nil
}

// SetModelVisible implements Surface.
func (m *Mock) SetModelVisible(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelVisible = visible
	return nil
}

// SetReticleVisible implements Surface.
func (m *Mock) SetReticleVisible(visible bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reticleVisible = visible
	return nil
}

// MoveReticle implements Surface.
func (m *Mock) MoveReticle(p r3.Vec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reticle = p
	return nil
}

// SetAnchor implements Surface.
func (m *Mock) SetAnchor(p r3.Vec) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.anchors = append(m.anchors, p)
	return nil
}

// Calls returns the collaborator calls made so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// Errors returns every error shown to the user.
func (m *Mock) Errors() []error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]error(nil), m.errors...)
}

// Anchors returns every anchor position set.
func (m *Mock) Anchors() []r3.Vec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]r3.Vec(nil), m.anchors...)
}

// LastControl returns the most recent start control state.
func (m *Mock) LastControl() StartControl {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.controls) == 0 {
		return StartControl{}
	}
	return m.controls[len(m.controls)-1]
}

// Reticle returns the last reticle position.
func (m *Mock) Reticle() r3.Vec {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reticle
}

// ModelVisible reports the model visibility.
func (m *Mock) ModelVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modelVisible
}

// ReticleVisible reports the reticle visibility.
func (m *Mock) ReticleVisible() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reticleVisible
}

// EndedSessions counts sessions that received End.
func (m *Mock) EndedSessions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, s := range m.sessions {
		if s.Ended() {
			n++
		}
	}
	return n
}

// MockSession is an XRSession that records End.
type MockSession struct {
	id    string
	mu    sync.Mutex
	ended bool
}

// ID implements XRSession.
func (s *MockSession) ID() string {
	return s.id
}

// End implements XRSession.
func (s *MockSession) End(ctx context.Context) error {
	s.mu.Lock()
	s.ended = true
	s.mu.Unlock()
	return nil
}

// Ended reports whether End was called.
func (s *MockSession) Ended() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}
