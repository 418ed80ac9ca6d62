package web

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-handar/pkg/pipeline"
	"github.com/teslashibe/go-handar/pkg/protocol"
)

// ClientStatus is one page's session and counters
type ClientStatus struct {
	State protocol.StateData `json:"state"`
	Stats pipeline.Stats     `json:"stats"`
}

// handleHealth reports liveness
func (s *Server) handleHealth(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"version": s.config.Version,
		"clients": s.gateway.ClientCount(),
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

// handleStatus returns every client's session state and counters
func (s *Server) handleStatus(c *fiber.Ctx) error {
	clients := make([]ClientStatus, 0)
	for _, id := range s.manager.Clients() {
		state, ok := s.manager.State(id)
		if !ok {
			continue
		}
		stats, _ := s.manager.Stats(id)
		clients = append(clients, ClientStatus{State: state, Stats: stats})
	}
	return c.JSON(fiber.Map{
		"clients":   clients,
		"observers": s.events.ObserverCount(),
	})
}

// handleClientStats returns one client's counters
func (s *Server) handleClientStats(c *fiber.Ctx) error {
	stats, ok := s.manager.Stats(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "client not connected"})
	}
	return c.JSON(stats)
}

// handleMetrics renders counters in the Prometheus text format
func (s *Server) handleMetrics(c *fiber.Ctx) error {
	gw := s.gateway.GetStats()
	totals := s.manager.Totals()
	observers := s.events.Stats()

	var b strings.Builder
	metric := func(name, kind, help string, value any) {
		fmt.Fprintf(&b, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}

	metric("handar_clients", "gauge", "Connected page count", gw.ClientCount)
	metric("handar_messages_received", "counter", "Total messages received from pages", gw.MessagesReceived)
	metric("handar_messages_sent", "counter", "Total messages sent to pages", gw.MessagesSent)
	metric("handar_parse_errors", "counter", "Messages that failed to parse", gw.ParseErrors)
	metric("handar_frames_processed", "counter", "Landmark frames processed by live runtimes", totals.Frames)
	metric("handar_poses_applied", "counter", "Poses applied to the scene", totals.Applied)
	metric("handar_poses_gated", "counter", "Poses discarded while no session allowed them", totals.Gated)
	metric("handar_frames_malformed", "counter", "Frames missing the pinch landmarks", totals.Malformed)
	metric("handar_frames_dropped", "counter", "Frames dropped on a full queue", totals.Dropped)
	metric("handar_observers", "gauge", "Connected observer count", observers.Observers)
	metric("handar_observer_evictions", "counter", "Observers dropped for falling behind", observers.Evicted)
	metric("handar_observer_events_dropped", "counter", "Events dropped on a full feed queue", observers.Dropped)

	c.Set(fiber.HeaderContentType, "text/plain; version=0.0.4")
	return c.SendString(b.String())
}
