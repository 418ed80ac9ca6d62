package hub

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func runHub(t *testing.T) *Hub {
	t.Helper()
	h := New("test", discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	require.Eventually(t, h.IsRunning, time.Second, time.Millisecond)
	return h
}

// attach registers a connection-less observer with the given queue length.
func attach(t *testing.T, h *Hub, buffer int, filter Filter) *Observer {
	t.Helper()
	o := &Observer{hub: h, filter: filter, send: make(chan Event, buffer)}
	h.register <- o
	require.Eventually(t, func() bool {
		h.mu.RLock()
		defer h.mu.RUnlock()
		_, ok := h.observers[o]
		return ok
	}, time.Second, time.Millisecond)
	return o
}

func receive(t *testing.T, o *Observer) Event {
	t.Helper()
	select {
	case e, ok := <-o.send:
		require.True(t, ok, "observer channel closed")
		return e
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return Event{}
	}
}

func assertQuiet(t *testing.T, o *Observer) {
	t.Helper()
	select {
	case e := <-o.send:
		t.Fatalf("unexpected event %s for %s", e.Type, e.Client)
	case <-time.After(50 * time.Millisecond):
	}
}

func event(client string, typ protocol.MessageType) Event {
	return Event{Client: client, Type: typ, Data: []byte(`{}`)}
}

func TestFilter(t *testing.T) {
	tests := []struct {
		name   string
		filter Filter
		event  Event
		want   bool
	}{
		{"empty matches all", Filter{}, event("a", protocol.TypePose), true},
		{"client match", ParseFilter("a", ""), event("a", protocol.TypeState), true},
		{"client mismatch", ParseFilter("a", ""), event("b", protocol.TypeState), false},
		{"type match", ParseFilter("", "pose, state"), event("b", protocol.TypeState), true},
		{"type mismatch", ParseFilter("", "pose"), event("b", protocol.TypeClient), false},
		{"both", ParseFilter("a", "pose"), event("a", protocol.TypePose), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.filter.Match(tt.event))
		})
	}
}

func TestHub_Broadcast(t *testing.T) {
	h := runHub(t)
	a := attach(t, h, 4, Filter{})
	b := attach(t, h, 4, Filter{})
	assert.Equal(t, 2, h.ObserverCount())

	h.Broadcast(Event{Client: "page", Type: protocol.TypePose, Data: []byte(`{"n":1}`)})

	assert.JSONEq(t, `{"n":1}`, string(receive(t, a).Data))
	assert.JSONEq(t, `{"n":1}`, string(receive(t, b).Data))
	assert.Equal(t, uint64(2), h.Stats().Sent)
}

func TestHub_FilteredObserver(t *testing.T) {
	h := runHub(t)
	only := attach(t, h, 4, ParseFilter("page-2", "pose"))

	h.Broadcast(event("page-1", protocol.TypePose))
	h.Broadcast(event("page-2", protocol.TypeState))
	h.Broadcast(event("page-2", protocol.TypePose))

	e := receive(t, only)
	assert.Equal(t, "page-2", e.Client)
	assert.Equal(t, protocol.TypePose, e.Type)
	assertQuiet(t, only)
}

func TestHub_ReplaysRetainedState(t *testing.T) {
	h := runHub(t)

	h.StateChanged("page-1", session.Snapshot{State: session.Requesting, Attempt: 1})
	h.StateChanged("page-1", session.Snapshot{State: session.Active, Attempt: 1})
	h.StateChanged("page-2", session.Snapshot{State: session.Idle})
	h.PoseApplied("page-1", 1, tracking.Pose{Scale: 1})
	require.Eventually(t, func() bool { return h.Retained() == 2 }, time.Second, time.Millisecond)

	late := attach(t, h, 4, ParseFilter("page-1", "state"))
	msg, err := protocol.ParseMessage(receive(t, late).Data)
	require.NoError(t, err)
	st, err := msg.GetStateData()
	require.NoError(t, err)
	assert.Equal(t, "active", st.State)
	assertQuiet(t, late)
	assert.Equal(t, uint64(1), h.Stats().Replayed)

	h.ClientEvent("page-1", protocol.ClientDisconnected)
	require.Eventually(t, func() bool { return h.Retained() == 1 }, time.Second, time.Millisecond)
}

func TestHub_EvictsSlowObserver(t *testing.T) {
	h := runHub(t)
	slow := attach(t, h, 1, Filter{})

	h.Broadcast(Event{Data: []byte(`1`)})
	h.Broadcast(Event{Data: []byte(`2`)})

	require.Eventually(t, func() bool { return h.ObserverCount() == 0 }, time.Second, time.Millisecond)
	assert.Equal(t, uint64(1), h.Stats().Evicted)

	// The queued event is still delivered before the close.
	e, ok := <-slow.send
	assert.True(t, ok)
	assert.Equal(t, "1", string(e.Data))
	_, ok = <-slow.send
	assert.False(t, ok)
}

func TestHub_Unregister(t *testing.T) {
	h := runHub(t)
	o := attach(t, h, 1, Filter{})

	h.unregister <- o
	require.Eventually(t, func() bool { return h.ObserverCount() == 0 }, time.Second, time.Millisecond)
	_, ok := <-o.send
	assert.False(t, ok)
}

func TestHub_StopClosesObservers(t *testing.T) {
	h := New("stop", discardLogger)
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	o := &Observer{hub: h, send: make(chan Event, 1)}
	h.register <- o
	cancel()
	<-h.done

	_, ok := <-o.send
	assert.False(t, ok)
	assert.False(t, h.IsRunning())

	_, err := NewObserver(h, nil, Filter{})
	assert.ErrorIs(t, err, ErrHubStopped)
}

func TestHub_Sink(t *testing.T) {
	h := runHub(t)
	o := attach(t, h, 4, Filter{})

	h.PoseApplied("page", 3, tracking.Pose{Scale: 1, Position: r3.Vec{Z: -1}})
	h.StateChanged("page", session.Snapshot{State: session.Active})
	h.ClientEvent("page", protocol.ClientConnected)

	pose := receive(t, o)
	assert.Equal(t, protocol.TypePose, pose.Type)
	assert.Equal(t, "page", pose.Client)
	msg, err := protocol.ParseMessage(pose.Data)
	require.NoError(t, err)
	data, err := msg.GetPoseData()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), data.FrameID)

	assert.Equal(t, protocol.TypeState, receive(t, o).Type)
	assert.Equal(t, protocol.TypeClient, receive(t, o).Type)
}

func TestHub_WebSocket(t *testing.T) {
	h := runHub(t)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/ws/events", h.Handler())
	go app.Listen(":18190")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18190/ws/events?client=page&types=state,pong", nil)
	require.NoError(t, err)
	defer ws.Close()

	require.Eventually(t, func() bool { return h.ObserverCount() == 1 }, time.Second, time.Millisecond)

	h.PoseApplied("page", 1, tracking.Pose{Scale: 1})
	h.StateChanged("page", session.Snapshot{State: session.Requesting, Attempt: 1})

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)

	msg, err := protocol.ParseMessage(data)
	require.NoError(t, err)
	st, err := msg.GetStateData()
	require.NoError(t, err)
	assert.Equal(t, "requesting", st.State)
	assert.Equal(t, "page", st.Client)

	// Application-level ping
	ping, err := protocol.NewPingMessage("p1")
	require.NoError(t, err)
	require.NoError(t, ws.WriteJSON(ping))

	_, data, err = ws.ReadMessage()
	require.NoError(t, err)
	msg, err = protocol.ParseMessage(data)
	require.NoError(t, err)
	pong, err := msg.GetPongData()
	require.NoError(t, err)
	assert.Equal(t, "p1", pong.ID)

	ws.Close()
	require.Eventually(t, func() bool { return h.ObserverCount() == 0 }, 2*time.Second, 5*time.Millisecond)
}
