package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-handar/pkg/session"
	"github.com/teslashibe/go-handar/pkg/tracking"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Addr())
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, tracking.DefaultConfig(), cfg.Tracking)
	assert.Equal(t, session.DefaultConfig(), cfg.Session)

	_, ok := cfg.MQTT()
	assert.False(t, ok)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HANDAR_PORT", "9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("HANDAR_PLACEMENT", "true")
	t.Setenv("HANDAR_REQUEST_TIMEOUT", "3s")
	t.Setenv("HANDAR_DEPTH_MAPPING", "scaled")
	t.Setenv("HANDAR_ROTATION_ALPHA", "0.25")
	t.Setenv("MQTT_BROKER", "tcp://broker:1883")
	t.Setenv("MQTT_TOPIC_PREFIX", "lab")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Addr())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Session.PlacementRequired)
	assert.Contains(t, cfg.Session.Init.RequiredFeatures, session.FeatureHitTest)
	assert.Equal(t, 3*time.Second, cfg.Session.RequestTimeout)
	assert.Equal(t, tracking.DepthScaled, cfg.Tracking.Depth)
	assert.InDelta(t, 0.25, cfg.Tracking.RotationAlpha, 1e-12)

	mqttCfg, ok := cfg.MQTT()
	require.True(t, ok)
	assert.Equal(t, "tcp://broker:1883", mqttCfg.Broker)
	assert.Equal(t, "handar", mqttCfg.ClientID)
	assert.Equal(t, "lab", mqttCfg.TopicPrefix)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		key, value string
	}{
		{"LOG_LEVEL", "loud"},
		{"HANDAR_PLACEMENT", "maybe"},
		{"HANDAR_REQUEST_TIMEOUT", "soon"},
		{"HANDAR_ROTATION_ALPHA", "x"},
		{"HANDAR_ROTATION_ALPHA", "2"},
		{"HANDAR_DEPTH_MAPPING", "deep"},
	}

	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnv(t *testing.T) {
	t.Setenv("HANDAR_TEST_VALUE", "")
	assert.Equal(t, "def", Env("HANDAR_TEST_VALUE", "def"))
	t.Setenv("HANDAR_TEST_VALUE", "set")
	assert.Equal(t, "set", Env("HANDAR_TEST_VALUE", "def"))
}
