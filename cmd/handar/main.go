// handar: pinch-gesture AR pose service
// Accepts WebSocket connections from AR pages and drives their scene from hand landmarks
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-handar/internal/config"
	"github.com/teslashibe/go-handar/internal/log"
	"github.com/teslashibe/go-handar/pkg/gateway"
	"github.com/teslashibe/go-handar/pkg/hub"
	"github.com/teslashibe/go-handar/pkg/pipeline"
	"github.com/teslashibe/go-handar/pkg/posebus"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/web"
)

var (
	version   = "0.1.0"
	port      = flag.String("port", "", "HTTP server port (default $HANDAR_PORT or 8080)")
	debug     = flag.Bool("debug", false, "Enable debug logging")
	static    = flag.String("static", "", "Directory served at / (default $HANDAR_STATIC_DIR)")
	placement = flag.Bool("placement", false, "Require hit-test placement before poses apply")
	broker    = flag.String("mqtt", "", "MQTT broker URL for pose publishing (default $MQTT_BROKER)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}

	// Flags override environment
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			cfg.Port = *port
		case "debug":
			if *debug {
				cfg.LogLevel = "debug"
			}
		case "static":
			cfg.StaticDir = *static
		case "placement":
			if *placement {
				timeout := cfg.Session.RequestTimeout
				cfg.Session = session.PlacementConfig()
				cfg.Session.RequestTimeout = timeout
			}
		case "mqtt":
			cfg.MQTTBroker = *broker
		}
	})

	log.Init(cfg.LogLevel)
	logger := log.L()

	fmt.Println()
	fmt.Println("✋ Handar v" + version)
	fmt.Println("   Pinch-gesture AR pose service")
	fmt.Println()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Observer feed
	events := hub.New("events", log.Component("hub"))
	go events.Run(ctx)

	sinks := []pipeline.Sink{events}

	// Optional MQTT pose publishing
	var publisher *posebus.Publisher
	if mqttCfg, ok := cfg.MQTT(); ok {
		mqttCfg.Logger = log.Component("posebus")
		publisher, err = posebus.Connect(mqttCfg)
		if err != nil {
			logger.Warn("MQTT disabled", "broker", mqttCfg.Broker, "error", err)
		} else {
			fmt.Printf("📡 Publishing poses to %s (%s/<client>/pose)\n", mqttCfg.Broker, mqttCfg.TopicPrefix)
			sinks = append(sinks, publisher)
		}
	}

	gw := gateway.New(log.Component("gateway"))

	mgrCfg := pipeline.DefaultManagerConfig()
	mgrCfg.Tracking = cfg.Tracking
	mgrCfg.Session = cfg.Session
	mgrCfg.Logger = log.Component("pipeline")
	mgr := pipeline.NewManager(mgrCfg, gw.Send, sinks...)

	server := web.NewServer(ctx, web.Config{
		Version:   version,
		StaticDir: cfg.StaticDir,
		Debug:     cfg.LogLevel == "debug",
		Logger:    log.Component("web"),
	}, gw, events, mgr)

	fmt.Printf("   Placement: %v   Depth: %s   Request timeout: %s\n",
		cfg.Session.PlacementRequired, cfg.Tracking.Depth, cfg.Session.RequestTimeout)
	fmt.Println()

	// Start server
	go func() {
		fmt.Printf("🚀 Starting server on %s\n", cfg.Addr())
		fmt.Printf("   Pages:   ws://localhost:%s/ws/client\n", cfg.Port)
		fmt.Printf("   Events:  ws://localhost:%s/ws/events\n", cfg.Port)
		fmt.Printf("   Health:  http://localhost:%s/health\n", cfg.Port)
		fmt.Printf("   Clients: http://localhost:%s/api/clients/\n", cfg.Port)
		fmt.Println()

		if err := server.Listen(cfg.Addr()); err != nil {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	fmt.Println("\n👋 Shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", "error", err)
	}
	cancel()
	if publisher != nil {
		publisher.Close()
	}

	fmt.Println("✅ Goodbye!")
}
