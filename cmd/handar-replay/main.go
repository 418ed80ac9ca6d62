// handar-replay: scripted AR page for the handar service
// Connects as a page, answers XR calls, and replays recorded landmark frames
package main

import (
	"context"
	"flag"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-handar/internal/httpc"
	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/render"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

var (
	server    = flag.String("server", "localhost:8080", "handar host:port")
	clientID  = flag.String("id", "replay", "Client ID to connect as")
	file      = flag.String("file", "", "Landmark frames, one JSON frame or landmark array per line (default: synthetic pinch)")
	fps       = flag.Int("fps", 30, "Frames per second")
	count     = flag.Int("frames", 300, "Synthetic frame count when no file is given")
	loop      = flag.Bool("loop", false, "Replay until interrupted")
	place     = flag.Bool("place", false, "Send a hit-test select after entering AR")
	rest      = flag.Bool("rest", false, "Start the session through the REST API instead of a page action")
	deny      = flag.Bool("deny", false, "Refuse the camera permission request")
	verbose   = flag.Bool("v", false, "Print every XR call")
	startWait = flag.Duration("wait", 10*time.Second, "How long to wait for AR mode")
)

func main() {
	flag.Parse()

	fmt.Println("🎬 Handar Replay")
	fmt.Println("================")

	frames, err := loadInput()
	if err != nil {
		fmt.Printf("❌ Failed to load frames: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %d frames at %d fps\n", len(frames), *fps)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Connect as a page
	u := url.URL{Scheme: "ws", Host: *server, Path: "/ws/client/" + *clientID}
	fmt.Printf("Connecting to %s...\n", u.String())
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		fmt.Printf("❌ Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close()
	fmt.Println("✅ Connected")

	p := newPage(conn, *verbose)
	p.refuse = *deny
	go func() {
		if err := p.readLoop(); err != nil && ctx.Err() == nil {
			fmt.Printf("🔌 Connection closed: %v\n", err)
			cancel()
		}
	}()

	// Enter AR
	if err := start(ctx, p); err != nil {
		fmt.Printf("❌ Start failed: %v\n", err)
		os.Exit(1)
	}
	select {
	case <-p.active:
		fmt.Println("🥽 AR mode entered")
	case <-time.After(*startWait):
		fmt.Println("❌ Timed out waiting for AR mode")
		os.Exit(1)
	case <-ctx.Done():
		return
	}

	if *place {
		anchor := protocol.Vec3{X: 0, Y: 0, Z: -1}
		if err := p.send(protocol.NewXREventMessage(protocol.EventHitTestSelect, &anchor)); err != nil {
			fmt.Printf("❌ Placement failed: %v\n", err)
		} else {
			fmt.Println("📍 Placed object")
		}
	}

	// Replay
	rate := max(*fps, 1)
	ticker := time.NewTicker(time.Second / time.Duration(rate))
	defer ticker.Stop()

	sent := 0
replay:
	for {
		for _, frame := range frames {
			select {
			case <-ctx.Done():
				break replay
			case <-ticker.C:
			}
			if err := p.send(protocol.NewHandsMessage(frame)); err != nil {
				fmt.Printf("❌ Send failed: %v\n", err)
				break replay
			}
			sent++
			if sent%(rate*2) == 0 {
				fmt.Printf("   %d frames, model scale=%q position=%q\n",
					sent, p.attr(render.EntityModel, render.AttrScale), p.attr(render.EntityModel, render.AttrPosition))
			}
		}
		if !*loop {
			break
		}
	}

	// Leave AR
	if err := p.send(protocol.NewActionMessage(protocol.ActionExit)); err == nil {
		select {
		case <-p.ended:
			fmt.Println("🚪 AR mode exited")
		case <-time.After(2 * time.Second):
		}
	}

	fmt.Println()
	fmt.Printf("📊 Sent %d frames, answered %d XR calls, received %d attribute writes\n",
		sent, p.calls.Load(), p.attrs.Load())
	fmt.Println("✅ Done")
}

func loadInput() ([]tracking.Frame, error) {
	if *file == "" {
		return synthFrames(*count), nil
	}
	f, err := os.Open(*file)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return loadFrames(f)
}

func start(ctx context.Context, p *page) error {
	if !*rest {
		return p.send(protocol.NewActionMessage(protocol.ActionStart))
	}
	endpoint := fmt.Sprintf("http://%s/api/clients/%s/start", *server, url.PathEscape(*clientID))
	_, err := httpc.Post(ctx, endpoint, "application/json", nil)
	return err
}
