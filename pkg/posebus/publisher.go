// Package posebus publishes applied poses and session state to an MQTT broker
// so other processes can follow the tracked object.
package posebus

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-handar/pkg/protocol"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// Topic suffixes under <prefix>/<client>/.
const (
	TopicPose  = "pose"
	TopicState = "state"
)

// ErrNoBroker is returned by Connect when no broker URL is configured.
var ErrNoBroker = errors.New("posebus: broker URL required")

// Config holds publisher settings.
type Config struct {
	Broker         string // e.g. tcp://localhost:1883
	ClientID       string
	TopicPrefix    string
	QoS            byte
	ConnectTimeout time.Duration
	Logger         *slog.Logger
}

// DefaultConfig returns the publisher defaults for broker.
func DefaultConfig(broker string) Config {
	return Config{
		Broker:         broker,
		ClientID:       "handar",
		TopicPrefix:    "handar",
		QoS:            0,
		ConnectTimeout: 5 * time.Second,
	}
}

// Client is the part of mqtt.Client the publisher uses.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher is a pipeline sink that mirrors poses and state to MQTT.
type Publisher struct {
	client Client
	config Config
	logger *slog.Logger

	published atomic.Uint64
	failed    atomic.Uint64
}

// Connect dials the broker and returns a publisher using the connection.
func Connect(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, ErrNoBroker
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.ConnectTimeout)

	client := mqtt.NewClient(opts)
	token := client.Connect()
	if cfg.ConnectTimeout <= 0 {
		token.Wait()
	} else if !token.WaitTimeout(cfg.ConnectTimeout) {
		return nil, fmt.Errorf("posebus: connect %s: timed out", cfg.Broker)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("posebus: connect %s: %w", cfg.Broker, err)
	}
	return NewPublisher(client, cfg), nil
}

// NewPublisher wraps an already connected client.
func NewPublisher(client Client, cfg Config) *Publisher {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		client: client,
		config: cfg,
		logger: logger,
	}
}

// Topic returns the topic for one client and kind.
func (p *Publisher) Topic(client, kind string) string {
	parts := make([]string, 0, 3)
	if prefix := strings.Trim(p.config.TopicPrefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	return strings.Join(append(parts, client, kind), "/")
}

// PoseApplied publishes a pose. It does not wait for the broker.
func (p *Publisher) PoseApplied(client string, frameID uint64, pose tracking.Pose) {
	p.publish(p.Topic(client, TopicPose), false, protocol.NewPoseData(client, frameID, pose))
}

// StateChanged publishes a retained session snapshot.
func (p *Publisher) StateChanged(client string, snap session.Snapshot) {
	p.publish(p.Topic(client, TopicState), true, protocol.NewStateData(client, snap))
}

func (p *Publisher) publish(topic string, retained bool, v any) {
	payload, err := json.Marshal(v)
	if err != nil {
		p.failed.Add(1)
		p.logger.Warn("encode failed", "topic", topic, "error", err)
		return
	}

	token := p.client.Publish(topic, p.config.QoS, retained, payload)
	p.published.Add(1)
	go func() {
		<-token.Done()
		if err := token.Error(); err != nil {
			p.failed.Add(1)
			p.logger.Warn("MQTT publish error", "topic", topic, "error", err)
		}
	}()
}

// Stats holds publish counters.
type Stats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
}

// Stats returns publish counters.
func (p *Publisher) Stats() Stats {
	return Stats{Published: p.published.Load(), Failed: p.failed.Load()}
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(250)
}
