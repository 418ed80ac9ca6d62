// Package config provides configuration helpers for go-handar commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/teslashibe/go-handar/internal/log"
	"github.com/teslashibe/go-handar/pkg/posebus"
	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

// Defaults.
const (
	DefaultPort          = "8080"
	DefaultLogLevel      = "info"
	DefaultStaticDir     = "./web"
	DefaultMQTTClientID  = "handar"
	DefaultMQTTTopicRoot = "handar"
)

// Service is the full configuration of the handar service.
type Service struct {
	Port      string
	LogLevel  string
	StaticDir string

	Tracking tracking.Config
	Session  session.Config

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string
}

// Load reads the service configuration from the environment.
func Load() (Service, error) {
	cfg := Service{
		Port:            Env("HANDAR_PORT", DefaultPort),
		LogLevel:        Env("LOG_LEVEL", DefaultLogLevel),
		StaticDir:       Env("HANDAR_STATIC_DIR", DefaultStaticDir),
		Tracking:        tracking.DefaultConfig(),
		Session:         session.DefaultConfig(),
		MQTTBroker:      os.Getenv("MQTT_BROKER"),
		MQTTClientID:    Env("MQTT_CLIENT_ID", DefaultMQTTClientID),
		MQTTTopicPrefix: Env("MQTT_TOPIC_PREFIX", DefaultMQTTTopicRoot),
	}

	if _, err := log.ParseLevel(cfg.LogLevel); err != nil {
		return cfg, fmt.Errorf("config: LOG_LEVEL: %w", err)
	}

	placement, err := EnvBool("HANDAR_PLACEMENT", false)
	if err != nil {
		return cfg, err
	}
	if placement {
		cfg.Session = session.PlacementConfig()
	}
	if cfg.Session.RequestTimeout, err = EnvDuration("HANDAR_REQUEST_TIMEOUT", cfg.Session.RequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.Tracking.RotationAlpha, err = EnvFloat("HANDAR_ROTATION_ALPHA", cfg.Tracking.RotationAlpha); err != nil {
		return cfg, err
	}
	if v := os.Getenv("HANDAR_DEPTH_MAPPING"); v != "" {
		if cfg.Tracking.Depth, err = tracking.ParseDepthMapping(v); err != nil {
			return cfg, fmt.Errorf("config: HANDAR_DEPTH_MAPPING: %w", err)
		}
	}
	if err := cfg.Tracking.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address for Port.
func (s Service) Addr() string {
	return ":" + s.Port
}

// MQTT returns the pose publisher config. ok is false when no broker is set.
func (s Service) MQTT() (cfg posebus.Config, ok bool) {
	if s.MQTTBroker == "" {
		return posebus.Config{}, false
	}
	cfg = posebus.DefaultConfig(s.MQTTBroker)
	cfg.ClientID = s.MQTTClientID
	cfg.TopicPrefix = s.MQTTTopicPrefix
	return cfg, true
}

// Env returns the value of key, or def if unset.
func Env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// EnvBool parses key as a bool, or returns def if unset.
func EnvBool(key string, def bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return b, nil
}

// EnvDuration parses key as a duration ("15s"), or returns def if unset.
func EnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// EnvFloat parses key as a float, or returns def if unset.
func EnvFloat(key string, def float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def, fmt.Errorf("config: %s: %w", key, err)
	}
	return f, nil
}
