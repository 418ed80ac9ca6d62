package hub

import (
	"errors"
	"time"

	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

const (
	// writeWait is how long to wait for a write to complete
	writeWait = 10 * time.Second

	// pongWait is how long to wait for a pong response
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait
	pingPeriod = (pongWait * 9) / 10

	// maxMessageSize bounds observer input; only pings are expected
	maxMessageSize = 4 * 1024

	// sendBuffer is the per-observer queue length before eviction
	sendBuffer = 256
)

// ErrHubStopped is returned when registering with a hub that is not running.
var ErrHubStopped = errors.New("hub: stopped")

// Observer is one websocket subscriber to the event feed.
type Observer struct {
	hub    *Hub
	conn   *websocket.Conn
	filter Filter
	send   chan Event
}

// NewObserver registers an observer with the hub.
func NewObserver(hub *Hub, conn *websocket.Conn, filter Filter) (*Observer, error) {
	o := &Observer{
		hub:    hub,
		conn:   conn,
		filter: filter,
		send:   make(chan Event, sendBuffer),
	}
	select {
	case hub.register <- o:
		return o, nil
	case <-hub.done:
		return nil, ErrHubStopped
	}
}

// Filter returns the observer's subscription.
func (o *Observer) Filter() Filter {
	return o.filter
}

// Run starts the write pump and blocks in the read pump until the
// connection closes.
func (o *Observer) Run() {
	go o.writePump()
	o.readPump()
}

// readPump answers application pings and detects disconnection.
func (o *Observer) readPump() {
	defer func() {
		select {
		case o.hub.unregister <- o:
		case <-o.hub.done:
		}
		o.conn.Close()
	}()

	o.conn.SetReadLimit(maxMessageSize)
	o.conn.SetReadDeadline(time.Now().Add(pongWait))
	o.conn.SetPongHandler(func(string) error {
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := o.conn.ReadMessage()
		if err != nil {
			return
		}
		o.conn.SetReadDeadline(time.Now().Add(pongWait))
		o.handle(data)
	}
}

func (o *Observer) handle(data []byte) {
	msg, err := protocol.ParseMessage(data)
	if err != nil || msg.Type != protocol.TypePing {
		return
	}
	ping, err := msg.GetPingData()
	if err != nil {
		return
	}
	pong, err := protocol.NewPongMessage(ping.ID, msg.Timestamp, time.Now().UnixMilli())
	if err != nil {
		return
	}
	e, err := NewEvent(o.filter.Client, pong)
	if err != nil {
		return
	}
	// The hub may close send concurrently; only queue while registered.
	o.hub.mu.RLock()
	defer o.hub.mu.RUnlock()
	if _, ok := o.hub.observers[o]; !ok {
		return
	}
	select {
	case o.send <- e:
	default:
	}
}

// writePump is the only goroutine that writes to the connection.
func (o *Observer) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		o.conn.Close()
	}()

	for {
		select {
		case e, ok := <-o.send:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				o.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := o.conn.WriteMessage(websocket.TextMessage, e.Data); err != nil {
				return
			}

		case <-ticker.C:
			o.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := o.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
