// Package web serves the AR pages, their WebSocket gateway, the observer feed
// and the operational endpoints from one Fiber app.
package web

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/teslashibe/go-handar/pkg/gateway"
	"github.com/teslashibe/go-handar/pkg/hub"
	"github.com/teslashibe/go-handar/pkg/pipeline"
	"github.com/teslashibe/go-handar/pkg/protocol"
)

// Config holds server settings.
type Config struct {
	Version   string
	StaticDir string // served at /, skipped when empty
	Debug     bool   // request logging
	Logger    *slog.Logger
}

// Server is the HTTP front of the pose service
type Server struct {
	app     *fiber.App
	config  Config
	logger  *slog.Logger
	started time.Time

	gateway *gateway.Gateway
	events  *hub.Hub
	manager *pipeline.Manager

	// ctx scopes the runtimes of connected pages
	ctx context.Context
}

// NewServer wires gateway callbacks to the manager and registers all routes.
// ctx bounds the lifetime of every per-client runtime.
func NewServer(ctx context.Context, cfg Config, gw *gateway.Gateway, events *hub.Hub, mgr *pipeline.Manager) *Server {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		config:  cfg,
		logger:  log,
		started: time.Now(),
		gateway: gw,
		events:  events,
		manager: mgr,
		ctx:     ctx,
	}

	app := fiber.New(fiber.Config{
		AppName:               "handar",
		DisableStartupMessage: true,
	})

	// Middleware
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Content-Type",
	}))
	if cfg.Debug {
		app.Use(logger.New())
	}

	// WebSocket routes (the gateway installs the /ws upgrade guard)
	gw.RegisterRoutes(app)
	app.Get("/ws/events", events.Handler())

	// API routes
	api := app.Group("/api")
	gw.RegisterAPIRoutes(api, mgr)
	api.Get("/status", s.handleStatus)
	api.Get("/clients/:id/stats", s.handleClientStats)

	app.Get("/health", s.handleHealth)
	app.Get("/metrics", s.handleMetrics)

	if cfg.StaticDir != "" {
		app.Static("/", cfg.StaticDir)
	}

	s.app = app
	s.wire()
	return s
}

// wire routes page traffic into the pipeline manager.
func (s *Server) wire() {
	s.gateway.OnConnect(func(clientID string) {
		if err := s.manager.Connect(s.ctx, clientID); err != nil {
			s.logger.Warn("client setup failed", "client", clientID, "error", err)
		}
		s.events.ClientEvent(clientID, protocol.ClientConnected)
	})

	s.gateway.OnDisconnect(func(clientID string) {
		s.manager.Disconnect(clientID)
		s.events.ClientEvent(clientID, protocol.ClientDisconnected)
	})

	s.gateway.OnHands(func(clientID string, frame *protocol.HandsData) {
		if err := s.manager.Hands(clientID, *frame); err != nil {
			s.logger.Debug("frame dropped", "client", clientID, "error", err)
		}
	})

	s.gateway.OnAction(func(clientID string, action *protocol.ActionData) {
		if err := s.manager.Action(clientID, action.Action); err != nil {
			s.logger.Warn("action rejected", "client", clientID, "action", action.Action, "error", err)
		}
	})

	s.gateway.OnXREvent(func(clientID string, ev *protocol.XREventData) {
		if err := s.manager.XREvent(clientID, *ev); err != nil {
			s.logger.Warn("xr event rejected", "client", clientID, "event", ev.Event, "error", err)
		}
	})

	s.gateway.OnReply(func(clientID string, reply *protocol.XRReplyData) {
		if err := s.manager.Reply(clientID, *reply); err != nil {
			s.logger.Debug("reply for unknown client", "client", clientID, "error", err)
		}
	})
}

// App returns the underlying Fiber app
func (s *Server) App() *fiber.App {
	return s.app
}

// Listen serves on addr until Shutdown
func (s *Server) Listen(addr string) error {
	s.logger.Info("server listening", "addr", addr)
	return s.app.Listen(addr)
}

// Shutdown gracefully stops the server and every client runtime
func (s *Server) Shutdown(ctx context.Context) error {
	s.manager.Close()
	if err := s.app.ShutdownWithContext(ctx); err != nil {
		return fmt.Errorf("web: shutdown: %w", err)
	}
	return nil
}
