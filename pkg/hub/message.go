// Package hub streams pose and session events to observers over websockets.
//
// One goroutine owns the observer set. Sinks hand it events, and it fans each
// one out to the observers whose filter matches. The latest state of every
// page is retained and replayed to observers that join mid-session.
package hub

import (
	"strings"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// Event is one pre-encoded protocol message about a page.
type Event struct {
	Client string
	Type   protocol.MessageType
	Data   []byte

	// forget drops the page's retained state
	forget bool
}

// NewEvent encodes msg for broadcast.
func NewEvent(client string, msg *protocol.Message) (Event, error) {
	data, err := msg.Bytes()
	if err != nil {
		return Event{}, err
	}
	return Event{Client: client, Type: msg.Type, Data: data}, nil
}

// Filter selects the events an observer receives. Zero values match everything.
type Filter struct {
	Client string
	Types  []protocol.MessageType
}

// ParseFilter builds a filter from query values: a page id and a
// comma-separated type list such as "pose,state".
func ParseFilter(client, types string) Filter {
	f := Filter{Client: strings.TrimSpace(client)}
	for _, t := range strings.Split(types, ",") {
		if t = strings.TrimSpace(t); t != "" {
			f.Types = append(f.Types, protocol.MessageType(t))
		}
	}
	return f
}

// Match reports whether e passes the filter.
func (f Filter) Match(e Event) bool {
	if f.Client != "" && e.Client != f.Client {
		return false
	}
	if len(f.Types) == 0 {
		return true
	}
	for _, t := range f.Types {
		if t == e.Type {
			return true
		}
	}
	return false
}
