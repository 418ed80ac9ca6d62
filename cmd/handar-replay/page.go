package main

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// page plays the browser side of the protocol: it answers xr_call requests as
// an AR-capable device would and records what the service draws.
type page struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
	verbose bool

	// refuse, when set, answers request_permissions with permission_denied.
	refuse bool

	active  chan struct{} // closed once enter_ar is answered
	ended   chan struct{} // closed once exit_ar is answered
	actOnce sync.Once
	endOnce sync.Once

	calls atomic.Int64
	attrs atomic.Int64

	mu      sync.Mutex
	entity  map[string]map[string]string
	session string
}

func newPage(conn *websocket.Conn, verbose bool) *page {
	return &page{
		conn:    conn,
		verbose: verbose,
		active:  make(chan struct{}),
		ended:   make(chan struct{}),
		entity:  make(map[string]map[string]string),
	}
}

func (p *page) send(msg *protocol.Message, err error) error {
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	return p.conn.WriteJSON(msg)
}

// readLoop runs until the connection closes.
func (p *page) readLoop() error {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.ParseMessage(data)
		if err != nil {
			fmt.Printf("⚠️  Bad message: %v\n", err)
			continue
		}
		p.handle(msg)
	}
}

func (p *page) handle(msg *protocol.Message) {
	switch msg.Type {
	case protocol.TypeXRCall:
		call, err := msg.GetXRCallData()
		if err != nil {
			return
		}
		p.calls.Add(1)
		if p.verbose {
			fmt.Printf("📞 %s %s\n", call.Op, call.Session)
		}
		if err := p.send(protocol.NewXRReplyMessage(p.answer(call))); err != nil {
			fmt.Printf("❌ Reply failed: %v\n", err)
		}
		switch call.Op {
		case protocol.OpEnterAR:
			p.actOnce.Do(func() { close(p.active) })
		case protocol.OpExitAR:
			p.endOnce.Do(func() { close(p.ended) })
		case protocol.OpEndSession:
			// A real XR runtime fires the session's end event after end().
			if err := p.send(protocol.NewSessionEndMessage(call.Session)); err != nil {
				fmt.Printf("❌ Session end failed: %v\n", err)
			}
		}

	case protocol.TypeAttr:
		attr, err := msg.GetAttrData()
		if err != nil {
			return
		}
		p.attrs.Add(1)
		p.mu.Lock()
		if p.entity[attr.Entity] == nil {
			p.entity[attr.Entity] = make(map[string]string)
		}
		p.entity[attr.Entity][attr.Name] = attr.Value
		p.mu.Unlock()

	case protocol.TypeUI:
		ui, err := msg.GetUIData()
		if err != nil {
			return
		}
		if ui.StartControl != nil {
			fmt.Printf("🔘 Button: %q enabled=%v\n", ui.Label, ui.Enabled)
		}
		if ui.Error != "" {
			fmt.Printf("⚠️  Error shown: %s\n", ui.Error)
		}

	case protocol.TypeTrackerOptions:
		opts, err := msg.GetTrackerOptions()
		if err == nil && p.verbose {
			fmt.Printf("🖐️  Tracker options: %+v\n", *opts)
		}
	}
}

func (p *page) answer(call *protocol.XRCallData) protocol.XRReplyData {
	reply := protocol.XRReplyData{ID: call.ID, OK: true}
	switch call.Op {
	case protocol.OpIsSupported:
		reply.Supported = true
	case protocol.OpRequestPermissions:
		if p.refuse {
			reply.OK = false
			reply.Code = protocol.CodePermissionDenied
			reply.Error = "camera permission denied"
		}
	case protocol.OpRequestSession:
		p.mu.Lock()
		p.session = uuid.NewString()
		reply.Session = p.session
		p.mu.Unlock()
	}
	return reply
}

// attr returns the last value written to entity.name.
func (p *page) attr(entity, name string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.entity[entity][name]
}
