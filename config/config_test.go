package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solax-flow/internal/inverter"
	"solax-flow/internal/layout"
	"solax-flow/internal/solax"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, solax.DefaultURL, cfg.Telemetry.URL)
	assert.Equal(t, 15*time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, inverter.DefaultSlots, cfg.Inverters.Slots())
	assert.Equal(t, 16*time.Millisecond, cfg.Layout.FrameInterval)
	assert.Equal(t, layout.DefaultParams, cfg.Layout.Params)
	assert.Equal(t, 8045, cfg.API.Port)
	assert.False(t, cfg.MQTT.Enabled)
	assert.Equal(t, "solax", cfg.MQTT.TopicPrefix)
	assert.True(t, cfg.Database.Enabled)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
telemetry:
  interval: 30s
inverters:
  left_serial: AAA
  right_serial: BBB
layout:
  safe_pad: 32
  hub_size: 20
mqtt:
  enabled: true
  topic_prefix: home/solar
log:
  format: console
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 30*time.Second, cfg.Telemetry.Interval)
	assert.Equal(t, inverter.Slots{Left: "AAA", Right: "BBB"}, cfg.Inverters.Slots())
	assert.Equal(t, 32.0, cfg.Layout.SafePad)
	assert.Equal(t, 20.0, cfg.Layout.HubSize)
	assert.Equal(t, layout.DefaultParams.PadFromTile, cfg.Layout.PadFromTile, "unset params keep their default")
	assert.True(t, cfg.MQTT.Enabled)
	assert.Equal(t, "home/solar", cfg.MQTT.TopicPrefix)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SOLAXFLOW_INVERTERS_RIGHT_SERIAL", "ENV123")
	t.Setenv("SOLAXFLOW_API_PORT", "9000")

	cfg, err := Load(writeConfig(t, "inverters:\n  right_serial: FILE\n"))
	require.NoError(t, err)

	assert.Equal(t, "ENV123", cfg.Inverters.RightSerial)
	assert.Equal(t, 9000, cfg.API.Port)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	path := writeConfig(t, `
inverters:
  left_serial: SAME
  right_serial: SAME
api:
  port: 70000
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must differ")
	assert.Contains(t, err.Error(), "api.port 70000")
}
