package hub

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// eventBuffer is the fan-in queue length before events are dropped.
const eventBuffer = 256

// Hub maintains the set of active observers and broadcasts events to them
type Hub struct {
	name   string
	logger *slog.Logger

	observers map[*Observer]struct{}

	// Last state event per page, replayed on join
	retained map[string]Event

	events     chan Event
	register   chan *Observer
	unregister chan *Observer

	// Closed when Run returns
	done chan struct{}

	// Guards observers and retained for readers outside Run
	mu sync.RWMutex

	running atomic.Bool

	sent     atomic.Uint64
	dropped  atomic.Uint64
	evicted  atomic.Uint64
	replayed atomic.Uint64
}

// New creates a new Hub. A nil logger uses slog.Default().
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		observers:  make(map[*Observer]struct{}),
		retained:   make(map[string]Event),
		events:     make(chan Event, eventBuffer),
		register:   make(chan *Observer),
		unregister: make(chan *Observer),
		done:       make(chan struct{}),
	}
}

// Run owns the observer set until ctx is cancelled.
// This should be called in a goroutine
func (h *Hub) Run(ctx context.Context) {
	h.running.Store(true)
	defer func() {
		h.running.Store(false)
		h.mu.Lock()
		for o := range h.observers {
			delete(h.observers, o)
			close(o.send)
		}
		h.mu.Unlock()
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case o := <-h.register:
			h.join(o)

		case o := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.observers[o]; ok {
				delete(h.observers, o)
				close(o.send)
			}
			count := len(h.observers)
			h.mu.Unlock()
			h.logger.Info("observer disconnected", "remaining", count)

		case e := <-h.events:
			h.fanOut(e)
		}
	}
}

// join registers o and replays retained state that matches its filter.
func (h *Hub) join(o *Observer) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.observers[o] = struct{}{}
	for _, e := range h.retained {
		if !o.filter.Match(e) {
			continue
		}
		select {
		case o.send <- e:
			h.replayed.Add(1)
		default:
		}
	}
	h.logger.Info("observer connected", "total", len(h.observers), "client", o.filter.Client)
}

func (h *Hub) fanOut(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case e.Type == protocol.TypeState:
		h.retained[e.Client] = e
	case e.forget:
		delete(h.retained, e.Client)
	}

	for o := range h.observers {
		if !o.filter.Match(e) {
			continue
		}
		select {
		case o.send <- e:
			h.sent.Add(1)
		default:
			close(o.send)
			delete(h.observers, o)
			h.evicted.Add(1)
			h.logger.Warn("dropped slow observer", "client", o.filter.Client)
		}
	}
}

// Broadcast queues an event for every matching observer. It never blocks;
// events are dropped when the queue is full.
func (h *Hub) Broadcast(e Event) {
	select {
	case h.events <- e:
	default:
		h.dropped.Add(1)
		h.logger.Debug("event queue full, dropping", "type", e.Type, "client", e.Client)
	}
}

// Handler returns a Fiber handler that attaches websocket observers.
// Query parameters client and types narrow the feed.
func (h *Hub) Handler() fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		filter := ParseFilter(c.Query("client"), c.Query("types"))
		o, err := NewObserver(h, c, filter)
		if err != nil {
			c.Close()
			return
		}
		o.Run()
	})
}

// ObserverCount returns the number of connected observers
func (h *Hub) ObserverCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.observers)
}

// Retained returns how many pages have retained state.
func (h *Hub) Retained() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.retained)
}

// IsRunning returns whether the hub is running
func (h *Hub) IsRunning() bool {
	return h.running.Load()
}

// Stats contains hub statistics
type Stats struct {
	Observers int    `json:"observers"`
	Retained  int    `json:"retained"`
	Sent      uint64 `json:"sent"`
	Replayed  uint64 `json:"replayed"`
	Dropped   uint64 `json:"dropped"`
	Evicted   uint64 `json:"evicted"`
}

// Stats returns hub statistics
func (h *Hub) Stats() Stats {
	h.mu.RLock()
	observers, retained := len(h.observers), len(h.retained)
	h.mu.RUnlock()
	return Stats{
		Observers: observers,
		Retained:  retained,
		Sent:      h.sent.Load(),
		Replayed:  h.replayed.Load(),
		Dropped:   h.dropped.Load(),
		Evicted:   h.evicted.Load(),
	}
}
