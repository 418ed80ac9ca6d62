package bridge

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-handar/pkg/protocol"
)

// Config holds bridge configuration.
// Use functional options (WithXxx) to set these values.
type Config struct {
	// CallTimeout bounds each xr_call when the caller's context has no
	// deadline. Zero waits for the context.
	CallTimeout time.Duration

	// TrackerOptions is sent to the page by Hello.
	TrackerOptions protocol.TrackerOptionsData

	// Observability
	Logger *slog.Logger
}

// Option is a functional option for configuring a Remote.
type Option func(*Config)

// WithCallTimeout sets the per-call timeout.
func WithCallTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.CallTimeout = d
	}
}

// WithTrackerOptions overrides the hand tracker options sent on connect.
func WithTrackerOptions(opts protocol.TrackerOptionsData) Option {
	return func(c *Config) {
		c.TrackerOptions = opts
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// DefaultConfig returns the bridge defaults.
func DefaultConfig() *Config {
	return &Config{
		CallTimeout:    10 * time.Second,
		TrackerOptions: protocol.DefaultTrackerOptions(),
		Logger:         slog.Default(),
	}
}

// Apply applies options to the config.
func (c *Config) Apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}
