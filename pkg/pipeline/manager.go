package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/teslashibe/go-handar/pkg/bridge"
	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// SendFunc delivers a message to one client.
type SendFunc func(clientID string, msg *protocol.Message) error

// ManagerConfig configures every runtime a Manager creates.
type ManagerConfig struct {
	Tracking     tracking.Config
	Session      session.Config
	QueueSize    int
	CheckSupport bool
	Bridge       []bridge.Option
	Logger       *slog.Logger
}

// DefaultManagerConfig returns the default per-client configuration.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		Tracking:     tracking.DefaultConfig(),
		Session:      session.DefaultConfig(),
		QueueSize:    DefaultQueueSize,
		CheckSupport: true,
	}
}

type client struct {
	runtime *Runtime
	remote  *bridge.Remote
	cancel  context.CancelFunc
}

// Manager keeps one runtime per connected client.
type Manager struct {
	config ManagerConfig
	send   SendFunc
	sinks  []Sink
	logger *slog.Logger

	mu      sync.RWMutex
	clients map[string]*client
}

// NewManager creates a manager that talks to clients through send.
func NewManager(cfg ManagerConfig, send SendFunc, sinks ...Sink) *Manager {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		config:  cfg,
		send:    send,
		sinks:   sinks,
		logger:  logger,
		clients: make(map[string]*client),
	}
}

// Connect starts a runtime for a new client and sends it the tracker options.
// An existing runtime for the same id is replaced.
func (m *Manager) Connect(ctx context.Context, clientID string) error {
	m.Disconnect(clientID)

	opts := append([]bridge.Option{bridge.WithLogger(m.logger.With("client", clientID))}, m.config.Bridge...)
	remote := bridge.New(bridge.SenderFunc(func(msg *protocol.Message) error {
		return m.send(clientID, msg)
	}), opts...)

	rt := New(Config{
		ClientID:     clientID,
		Tracking:     m.config.Tracking,
		Session:      m.config.Session,
		QueueSize:    m.config.QueueSize,
		CheckSupport: m.config.CheckSupport,
		Logger:       m.logger,
	}, Collaborators{
		Device:  remote,
		Scene:   remote,
		Surface: remote,
		Model:   remote.Scene().Model,
	}, m.sinks...)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.clients[clientID] = &client{runtime: rt, remote: remote, cancel: cancel}
	m.mu.Unlock()

	go rt.Run(runCtx)

	if err := remote.Hello(); err != nil {
		return fmt.Errorf("pipeline: hello %s: %w", clientID, err)
	}
	return nil
}

// Disconnect stops a client's runtime and fails its pending calls.
func (m *Manager) Disconnect(clientID string) {
	m.mu.Lock()
	c, ok := m.clients[clientID]
	delete(m.clients, clientID)
	m.mu.Unlock()

	if !ok {
		return
	}
	c.remote.Close()
	c.cancel()
}

// Close stops every runtime.
func (m *Manager) Close() {
	for _, id := range m.Clients() {
		m.Disconnect(id)
	}
}

func (m *Manager) get(clientID string) (*client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[clientID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownClient, clientID)
	}
	return c, nil
}

// Runtime returns a client's runtime.
func (m *Manager) Runtime(clientID string) (*Runtime, bool) {
	c, err := m.get(clientID)
	if err != nil {
		return nil, false
	}
	return c.runtime, true
}

// Hands queues a landmark frame.
func (m *Manager) Hands(clientID string, frame tracking.Frame) error {
	c, err := m.get(clientID)
	if err != nil {
		return err
	}
	c.runtime.Frame(frame)
	return nil
}

// Action queues a start or exit action.
func (m *Manager) Action(clientID, action string) error {
	c, err := m.get(clientID)
	if err != nil {
		return err
	}
	ev, err := ActionEvent(action)
	if err != nil {
		return err
	}
	return c.runtime.Post(ev)
}

// XREvent queues an XR runtime event.
func (m *Manager) XREvent(clientID string, data protocol.XREventData) error {
	c, err := m.get(clientID)
	if err != nil {
		return err
	}
	ev, err := XREvent(data)
	if err != nil {
		return err
	}
	return c.runtime.Post(ev)
}

// Reply resolves a pending XR call.
func (m *Manager) Reply(clientID string, reply protocol.XRReplyData) error {
	c, err := m.get(clientID)
	if err != nil {
		return err
	}
	c.remote.Resolve(reply)
	return nil
}

// State returns a client's session snapshot in wire form.
func (m *Manager) State(clientID string) (protocol.StateData, bool) {
	c, err := m.get(clientID)
	if err != nil {
		return protocol.StateData{}, false
	}
	return protocol.NewStateData(clientID, c.runtime.Snapshot()), true
}

// Stats returns a client's counters.
func (m *Manager) Stats(clientID string) (Stats, bool) {
	c, err := m.get(clientID)
	if err != nil {
		return Stats{}, false
	}
	return c.runtime.Stats(), true
}

// Clients returns the connected client ids, sorted.
func (m *Manager) Clients() []string {
	m.mu.RLock()
	ids := make([]string, 0, len(m.clients))
	for id := range m.clients {
		ids = append(ids, id)
	}
	m.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Totals sums counters across clients.
func (m *Manager) Totals() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var t Stats
	for _, c := range m.clients {
		s := c.runtime.Stats()
		t.Frames += s.Frames
		t.Applied += s.Applied
		t.Gated += s.Gated
		t.Malformed += s.Malformed
		t.Empty += s.Empty
		t.Dropped += s.Dropped
		t.Rejected += s.Rejected
	}
	return t
}
