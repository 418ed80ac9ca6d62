// Package bridge drives the page's XR runtime and scene over a client
// connection. Collaborator calls become xr_call messages and block until the
// page answers with an xr_reply carrying the same id.
package bridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/render"
	"github.com/teslashibe/go-handar/pkg/session"
)

// Sender delivers a message to the page.
type Sender interface {
	Send(msg *protocol.Message) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(msg *protocol.Message) error

// Send implements Sender.
func (f SenderFunc) Send(msg *protocol.Message) error {
	return f(msg)
}

// Remote implements session.Device, session.Scene, session.Surface and
// render.Resolver on top of one page connection.
type Remote struct {
	sender Sender
	config *Config
	logger *slog.Logger
	scene  render.Scene

	mu      sync.Mutex
	pending map[string]chan protocol.XRReplyData
	closed  bool
}

var (
	_ session.Device  = (*Remote)(nil)
	_ session.Scene   = (*Remote)(nil)
	_ session.Surface = (*Remote)(nil)
	_ render.Resolver = (*Remote)(nil)
)

// New creates a Remote sending through sender.
func New(sender Sender, opts ...Option) *Remote {
	cfg := DefaultConfig()
	cfg.Apply(opts...)
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := &Remote{
		sender:  sender,
		config:  cfg,
		logger:  cfg.Logger,
		pending: make(map[string]chan protocol.XRReplyData),
	}
	r.scene = render.NewScene(r)
	return r
}

// Scene returns the entity handles backed by this connection.
func (r *Remote) Scene() render.Scene {
	return r.scene
}

// Hello sends the hand tracker options. Call it once after connecting.
func (r *Remote) Hello() error {
	msg, err := protocol.NewTrackerOptionsMessage(r.config.TrackerOptions)
	if err != nil {
		return err
	}
	return r.send(msg)
}

// Call sends an xr_call and waits for its reply. A reply with ok=false is
// returned as *CallError.
func (r *Remote) Call(ctx context.Context, call protocol.XRCallData) (protocol.XRReplyData, error) {
	if _, ok := ctx.Deadline(); !ok && r.config.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.CallTimeout)
		defer cancel()
	}

	call.ID = uuid.NewString()
	ch := make(chan protocol.XRReplyData, 1)

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return protocol.XRReplyData{}, ErrClosed
	}
	r.pending[call.ID] = ch
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.pending, call.ID)
		r.mu.Unlock()
	}()

	msg, err := protocol.NewXRCallMessage(call)
	if err != nil {
		return protocol.XRReplyData{}, err
	}
	if err := r.send(msg); err != nil {
		return protocol.XRReplyData{}, fmt.Errorf("bridge: send %s: %w", call.Op, err)
	}
	r.logger.Debug("xr call sent", "op", call.Op, "id", call.ID)

	select {
	case reply, ok := <-ch:
		if !ok {
			return protocol.XRReplyData{}, ErrClosed
		}
		if !reply.OK {
			return reply, &CallError{Op: call.Op, Code: reply.Code, Message: reply.Error}
		}
		return reply, nil
	case <-ctx.Done():
		return protocol.XRReplyData{}, fmt.Errorf("bridge: %s: %w", call.Op, ctx.Err())
	}
}

// Resolve delivers a reply to its pending call. It reports false for unknown
// or already answered ids.
func (r *Remote) Resolve(reply protocol.XRReplyData) bool {
	r.mu.Lock()
	ch, ok := r.pending[reply.ID]
	if ok {
		delete(r.pending, reply.ID)
	}
	r.mu.Unlock()

	if !ok {
		r.logger.Debug("unmatched xr reply", "id", reply.ID)
		return false
	}
	ch <- reply
	return true
}

// Pending returns the number of calls awaiting a reply.
func (r *Remote) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}

// Close fails every pending call with ErrClosed. Later calls fail immediately.
func (r *Remote) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for id, ch := range r.pending {
		close(ch)
		delete(r.pending, id)
	}
}

func (r *Remote) send(msg *protocol.Message) error {
	r.mu.Lock()
	closed := r.closed
	r.mu.Unlock()
	if closed {
		return ErrClosed
	}
	return r.sender.Send(msg)
}

// IsSupported implements session.Device.
func (r *Remote) IsSupported(ctx context.Context, mode session.Mode) (bool, error) {
	reply, err := r.Call(ctx, protocol.XRCallData{Op: protocol.OpIsSupported, Mode: string(mode)})
	if err != nil {
		return false, err
	}
	return reply.Supported, nil
}

// RequestPermissions implements session.Device.
func (r *Remote) RequestPermissions(ctx context.Context) error {
	_, err := r.Call(ctx, protocol.XRCallData{Op: protocol.OpRequestPermissions})
	return err
}

// RequestSession implements session.Device.
func (r *Remote) RequestSession(ctx context.Context, mode session.Mode, init session.SessionInit) (session.XRSession, error) {
	reply, err := r.Call(ctx, protocol.XRCallData{
		Op:               protocol.OpRequestSession,
		Mode:             string(mode),
		RequiredFeatures: init.RequiredFeatures,
		OptionalFeatures: init.OptionalFeatures,
	})
	if err != nil {
		return nil, err
	}
	return &remoteSession{remote: r, id: reply.Session}, nil
}

// EnterAR implements session.Scene.
func (r *Remote) EnterAR(ctx context.Context) error {
	_, err := r.Call(ctx, protocol.XRCallData{Op: protocol.OpEnterAR})
	return err
}

// ExitAR implements session.Scene.
func (r *Remote) ExitAR(ctx context.Context) error {
	_, err := r.Call(ctx, protocol.XRCallData{Op: protocol.OpExitAR})
	return err
}

// SetStartControl implements session.Surface.
func (r *Remote) SetStartControl(c session.StartControl) error {
	msg, err := protocol.NewControlMessage(c)
	if err != nil {
		return err
	}
	return r.send(msg)
}

// ShowError implements session.Surface.
func (r *Remote) ShowError(e error) error {
	msg, err := protocol.NewErrorMessage(e)
	if err != nil {
		return err
	}
	return r.send(msg)
}

// SetModelVisible implements session.Surface.
func (r *Remote) SetModelVisible(visible bool) error {
	return r.scene.SetModelVisible(visible)
}

// SetReticleVisible implements session.Surface.
func (r *Remote) SetReticleVisible(visible bool) error {
	return r.scene.SetReticleVisible(visible)
}

// MoveReticle implements session.Surface.
func (r *Remote) MoveReticle(p r3.Vec) error {
	return r.scene.MoveReticle(p)
}

// SetAnchor implements session.Surface.
func (r *Remote) SetAnchor(p r3.Vec) error {
	return r.scene.SetAnchor(p)
}

// Object implements render.Resolver.
func (r *Remote) Object(name string) render.ObjectHandle {
	return &entity{remote: r, name: name}
}

type entity struct {
	remote *Remote
	name   string
}

func (e *entity) SetAttribute(name, value string) error {
	msg, err := protocol.NewAttrMessage(e.name, name, value)
	if err != nil {
		return err
	}
	return e.remote.send(msg)
}

type remoteSession struct {
	remote *Remote
	id     string
}

// ID returns the page-assigned session id.
func (s *remoteSession) ID() string {
	return s.id
}

// End asks the page to end the session.
func (s *remoteSession) End(ctx context.Context) error {
	_, err := s.remote.Call(ctx, protocol.XRCallData{Op: protocol.OpEndSession, Session: s.id})
	return err
}
