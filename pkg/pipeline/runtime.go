// Package pipeline runs the gesture-to-pose pipeline and the AR session
// machine for one client on a single goroutine.
package pipeline

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/teslashibe/go-handar/pkg/render"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// DefaultQueueSize is the default event queue capacity.
const DefaultQueueSize = 64

// Config holds runtime configuration.
type Config struct {
	ClientID  string
	Tracking  tracking.Config
	Session   session.Config
	QueueSize int

	// CheckSupport checks AR support when the loop starts.
	CheckSupport bool

	Logger *slog.Logger
}

// DefaultConfig returns a configuration with default tracking and session settings.
func DefaultConfig(clientID string) Config {
	return Config{
		ClientID:     clientID,
		Tracking:     tracking.DefaultConfig(),
		Session:      session.DefaultConfig(),
		QueueSize:    DefaultQueueSize,
		CheckSupport: true,
	}
}

// Collaborators are the external systems a runtime drives.
type Collaborators struct {
	Device  session.Device
	Scene   session.Scene
	Surface session.Surface
	Model   render.ObjectHandle
}

// item is one queued unit of work. Exactly one field is set.
type item struct {
	frame *tracking.Frame
	event session.Event
}

// Runtime owns one tracker and one session machine. All of their state is
// touched only by Run.
type Runtime struct {
	id      string
	config  Config
	tracker *tracking.Tracker
	machine *session.Machine
	model   render.ObjectHandle
	sinks   []Sink
	logger  *slog.Logger

	events chan item
	done   chan struct{}

	snap atomic.Pointer[session.Snapshot]

	// Stats
	frames    atomic.Int64
	applied   atomic.Int64
	gated     atomic.Int64
	malformed atomic.Int64
	empty     atomic.Int64
	dropped   atomic.Int64
	rejected  atomic.Int64
}

// New creates a runtime. Call Run to start processing.
func New(cfg Config, c Collaborators, sinks ...Sink) *Runtime {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("client", cfg.ClientID)
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = DefaultQueueSize
	}

	r := &Runtime{
		id:      cfg.ClientID,
		config:  cfg,
		tracker: tracking.New(cfg.Tracking, logger),
		model:   c.Model,
		sinks:   sinks,
		logger:  logger,
		events:  make(chan item, cfg.QueueSize),
		done:    make(chan struct{}),
	}
	r.machine = session.NewMachine(cfg.Session, c.Device, c.Scene, c.Surface, r.postEvent, logger)
	r.machine.AddListener(r.stateChanged)

	snap := r.machine.Snapshot()
	r.snap.Store(&snap)
	return r
}

// ID returns the client id.
func (r *Runtime) ID() string {
	return r.id
}

// Run processes queued work until ctx is cancelled.
func (r *Runtime) Run(ctx context.Context) error {
	defer close(r.done)

	r.logger.Info("pipeline started", "placement", r.config.Session.PlacementRequired, "depth", r.config.Tracking.Depth.String())
	if r.config.CheckSupport {
		r.machine.CheckSupport(ctx)
	}

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("pipeline stopped", "frames", r.frames.Load(), "applied", r.applied.Load())
			return ctx.Err()
		case it := <-r.events:
			if it.frame != nil {
				r.processFrame(*it.frame)
			} else {
				r.handle(ctx, it.event)
			}
		}
	}
}

// Done is closed when Run returns.
func (r *Runtime) Done() <-chan struct{} {
	return r.done
}

// Frame queues a landmark frame. Frames are dropped rather than queued behind
// a full buffer; it reports whether the frame was accepted.
func (r *Runtime) Frame(frame tracking.Frame) bool {
	// A stopped runtime may still have queue room; never report it accepted.
	select {
	case <-r.done:
		return false
	default:
	}

	select {
	case r.events <- item{frame: &frame}:
		return true
	case <-r.done:
		return false
	default:
		r.dropped.Add(1)
		return false
	}
}

// Start queues a start request.
func (r *Runtime) Start() error {
	return r.Post(session.StartRequested{})
}

// Exit queues an exit request.
func (r *Runtime) Exit() error {
	return r.Post(session.ExitRequested{})
}

// Post queues a session event, waiting for room in the queue.
func (r *Runtime) Post(ev session.Event) error {
	select {
	case r.events <- item{event: ev}:
		return nil
	case <-r.done:
		return ErrStopped
	}
}

func (r *Runtime) postEvent(ev session.Event) {
	if err := r.Post(ev); err != nil {
		r.logger.Debug("dropping event after stop", "event", ev)
	}
}

// Snapshot returns the latest session snapshot. Safe from any goroutine.
func (r *Runtime) Snapshot() session.Snapshot {
	return *r.snap.Load()
}

func (r *Runtime) processFrame(frame tracking.Frame) {
	r.frames.Add(1)

	pose, ok := r.tracker.Process(frame)
	if !ok {
		if _, found := frame.Primary(); found {
			r.malformed.Add(1)
		} else {
			r.empty.Add(1)
		}
		return
	}

	if !r.machine.PoseAllowed() {
		r.gated.Add(1)
		return
	}

	if err := render.ApplyPose(r.model, pose); err != nil {
		r.logger.Warn("failed to apply pose", "frame_id", frame.ID, "error", err)
		return
	}
	r.applied.Add(1)

	for _, s := range r.sinks {
		s.PoseApplied(r.id, frame.ID, pose)
	}
}

func (r *Runtime) handle(ctx context.Context, ev session.Event) {
	if err := r.machine.Handle(ctx, ev); err != nil {
		r.rejected.Add(1)
		r.logger.Info("session event not applied", "event", ev, "error", err)
	}
}

func (r *Runtime) stateChanged(_, next session.Snapshot) {
	r.snap.Store(&next)
	for _, s := range r.sinks {
		s.StateChanged(r.id, next)
	}
}

// Stats holds runtime counters.
type Stats struct {
	Frames    int64 `json:"frames"`
	Applied   int64 `json:"applied"`
	Gated     int64 `json:"gated"`
	Malformed int64 `json:"malformed"`
	Empty     int64 `json:"empty"`
	Dropped   int64 `json:"dropped"`
	Rejected  int64 `json:"rejected"`
}

// Stats returns runtime counters. Safe from any goroutine.
func (r *Runtime) Stats() Stats {
	return Stats{
		Frames:    r.frames.Load(),
		Applied:   r.applied.Load(),
		Gated:     r.gated.Load(),
		Malformed: r.malformed.Load(),
		Empty:     r.empty.Load(),
		Dropped:   r.dropped.Load(),
		Rejected:  r.rejected.Load(),
	}
}
