// Package gateway accepts AR page connections over WebSocket and dispatches
// their messages to registered callbacks.
package gateway

import (
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// ClientConnection represents a connected page
type ClientConnection struct {
	ID        string
	Conn      *websocket.Conn
	Connected time.Time
	LastSeen  time.Time

	mu sync.Mutex
}

// Send sends a message to the page
func (c *ClientConnection) Send(msg *protocol.Message) error {
	data, err := msg.Bytes()
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, data)
}

func (c *ClientConnection) touch() {
	c.mu.Lock()
	c.LastSeen = time.Now()
	c.mu.Unlock()
}

// Gateway manages WebSocket connections from AR pages
type Gateway struct {
	mu      sync.RWMutex
	clients map[string]*ClientConnection
	logger  *slog.Logger

	// Callbacks
	onConnect    func(clientID string)
	onDisconnect func(clientID string)
	onHands      func(clientID string, frame *protocol.HandsData)
	onAction     func(clientID string, action *protocol.ActionData)
	onXREvent    func(clientID string, ev *protocol.XREventData)
	onReply      func(clientID string, reply *protocol.XRReplyData)

	// Stats
	messagesReceived atomic.Uint64
	messagesSent     atomic.Uint64
	framesReceived   atomic.Uint64
	parseErrors      atomic.Uint64
}

// New creates a gateway. A nil logger uses slog.Default().
func New(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		clients: make(map[string]*ClientConnection),
		logger:  logger,
	}
}

// OnConnect sets the callback for new page connections. It runs after the
// connection is registered, so Send to the new id works.
func (g *Gateway) OnConnect(callback func(clientID string)) {
	g.mu.Lock()
	g.onConnect = callback
	g.mu.Unlock()
}

// OnDisconnect sets the callback for closed page connections
func (g *Gateway) OnDisconnect(callback func(clientID string)) {
	g.mu.Lock()
	g.onDisconnect = callback
	g.mu.Unlock()
}

// OnHands sets the callback for incoming landmark frames
func (g *Gateway) OnHands(callback func(clientID string, frame *protocol.HandsData)) {
	g.mu.Lock()
	g.onHands = callback
	g.mu.Unlock()
}

// OnAction sets the callback for start/exit actions
func (g *Gateway) OnAction(callback func(clientID string, action *protocol.ActionData)) {
	g.mu.Lock()
	g.onAction = callback
	g.mu.Unlock()
}

// OnXREvent sets the callback for XR runtime events
func (g *Gateway) OnXREvent(callback func(clientID string, ev *protocol.XREventData)) {
	g.mu.Lock()
	g.onXREvent = callback
	g.mu.Unlock()
}

// OnReply sets the callback for XR call replies
func (g *Gateway) OnReply(callback func(clientID string, reply *protocol.XRReplyData)) {
	g.mu.Lock()
	g.onReply = callback
	g.mu.Unlock()
}

// RegisterRoutes registers WebSocket routes on a Fiber app
func (g *Gateway) RegisterRoutes(app *fiber.App) {
	// WebSocket upgrade middleware
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// Page connection endpoint
	app.Get("/ws/client", websocket.New(g.handleClient))
	app.Get("/ws/client/:id", websocket.New(g.handleClient))
}

// handleClient handles a page WebSocket connection
func (g *Gateway) handleClient(c *websocket.Conn) {
	clientID := c.Params("id")
	if clientID == "" {
		clientID = uuid.NewString()
	}

	client := &ClientConnection{
		ID:        clientID,
		Conn:      c,
		Connected: time.Now(),
		LastSeen:  time.Now(),
	}

	g.mu.Lock()
	if old, ok := g.clients[clientID]; ok {
		g.logger.Warn("client reconnected, replacing connection", "client", clientID)
		old.Conn.Close()
	}
	g.clients[clientID] = client
	clientCount := len(g.clients)
	connectCb := g.onConnect
	g.mu.Unlock()

	g.logger.Info("client connected", "client", clientID, "total", clientCount)
	if connectCb != nil {
		connectCb(clientID)
	}

	defer func() {
		g.mu.Lock()
		current := g.clients[clientID] == client
		if current {
			delete(g.clients, clientID)
		}
		clientCount := len(g.clients)
		disconnectCb := g.onDisconnect
		g.mu.Unlock()

		g.logger.Info("client disconnected", "client", clientID, "total", clientCount)
		if current && disconnectCb != nil {
			disconnectCb(clientID)
		}
	}()

	// Read loop
	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			g.logger.Debug("client read error", "client", clientID, "error", err)
			return
		}

		client.touch()
		g.messagesReceived.Add(1)
		g.handleMessage(clientID, data)
	}
}

// handleMessage processes an incoming message from a page
func (g *Gateway) handleMessage(clientID string, data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil {
		g.parseErrors.Add(1)
		g.logger.Warn("parse error", "client", clientID, "error", err)
		return
	}

	g.mu.RLock()
	handsCb := g.onHands
	actionCb := g.onAction
	xrEventCb := g.onXREvent
	replyCb := g.onReply
	g.mu.RUnlock()

	switch msg.Type {
	case protocol.TypeHands:
		g.framesReceived.Add(1)
		if handsCb != nil {
			if frame, err := msg.GetHandsData(); err == nil {
				handsCb(clientID, frame)
			} else {
				g.dataError(clientID, msg.Type, err)
			}
		}

	case protocol.TypeAction:
		if actionCb != nil {
			if action, err := msg.GetActionData(); err == nil {
				actionCb(clientID, action)
			} else {
				g.dataError(clientID, msg.Type, err)
			}
		}

	case protocol.TypeXREvent:
		if xrEventCb != nil {
			if ev, err := msg.GetXREventData(); err == nil {
				xrEventCb(clientID, ev)
			} else {
				g.dataError(clientID, msg.Type, err)
			}
		}

	case protocol.TypeXRReply:
		if replyCb != nil {
			if reply, err := msg.GetXRReplyData(); err == nil {
				replyCb(clientID, reply)
			} else {
				g.dataError(clientID, msg.Type, err)
			}
		}

	case protocol.TypePing:
		id := ""
		if ping, err := msg.GetPingData(); err == nil {
			id = ping.ID
		}
		if err := g.SendPong(clientID, id, msg.Timestamp); err != nil {
			g.logger.Debug("pong failed", "client", clientID, "error", err)
		}

	default:
		g.logger.Debug("ignoring message", "client", clientID, "type", msg.Type)
	}
}

func (g *Gateway) dataError(clientID string, typ protocol.MessageType, err error) {
	g.parseErrors.Add(1)
	g.logger.Warn("bad message data", "client", clientID, "type", typ, "error", err)
}

// Send sends a message to a specific page
func (g *Gateway) Send(clientID string, msg *protocol.Message) error {
	g.mu.RLock()
	client, ok := g.clients[clientID]
	g.mu.RUnlock()

	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "client not connected")
	}

	g.messagesSent.Add(1)
	return client.Send(msg)
}

// SendPong sends a pong response to a page
func (g *Gateway) SendPong(clientID, id string, pingTS int64) error {
	msg, err := protocol.NewPongMessage(id, pingTS, time.Now().UnixMilli())
	if err != nil {
		return err
	}
	return g.Send(clientID, msg)
}

// Broadcast sends a message to all connected pages
func (g *Gateway) Broadcast(msg *protocol.Message) {
	for _, client := range g.GetClients() {
		g.messagesSent.Add(1)
		if err := client.Send(msg); err != nil {
			g.logger.Warn("broadcast error", "client", client.ID, "error", err)
		}
	}
}

// GetClient returns a page connection by ID
func (g *Gateway) GetClient(clientID string) *ClientConnection {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.clients[clientID]
}

// GetClients returns all connected pages
func (g *Gateway) GetClients() []*ClientConnection {
	g.mu.RLock()
	defer g.mu.RUnlock()

	clients := make([]*ClientConnection, 0, len(g.clients))
	for _, c := range g.clients {
		clients = append(clients, c)
	}
	return clients
}

// ClientCount returns the number of connected pages
func (g *Gateway) ClientCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.clients)
}

// Stats contains gateway statistics
type Stats struct {
	ClientCount      int    `json:"client_count"`
	MessagesReceived uint64 `json:"messages_received"`
	MessagesSent     uint64 `json:"messages_sent"`
	FramesReceived   uint64 `json:"frames_received"`
	ParseErrors      uint64 `json:"parse_errors"`
}

// GetStats returns gateway statistics
func (g *Gateway) GetStats() Stats {
	return Stats{
		ClientCount:      g.ClientCount(),
		MessagesReceived: g.messagesReceived.Load(),
		MessagesSent:     g.messagesSent.Load(),
		FramesReceived:   g.framesReceived.Load(),
		ParseErrors:      g.parseErrors.Load(),
	}
}

// ClientInfo contains info about a connected page
type ClientInfo struct {
	ID        string    `json:"id"`
	Connected time.Time `json:"connected"`
	LastSeen  time.Time `json:"last_seen"`
}

// GetClientInfos returns info about all connected pages, sorted by ID
func (g *Gateway) GetClientInfos() []ClientInfo {
	clients := g.GetClients()

	infos := make([]ClientInfo, 0, len(clients))
	for _, c := range clients {
		c.mu.Lock()
		infos = append(infos, ClientInfo{
			ID:        c.ID,
			Connected: c.Connected,
			LastSeen:  c.LastSeen,
		})
		c.mu.Unlock()
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ID < infos[j].ID })
	return infos
}
