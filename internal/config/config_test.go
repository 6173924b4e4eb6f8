package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/session"
	"github.com/srg/padbridge/internal/translator"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "padbridge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	require.NoError(t, cfg.Validate(), "defaults MUST validate")
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 10*time.Second, cfg.Scan.Timeout)
	assert.Equal(t, []string{"xbox"}, cfg.Scan.GamepadNames)
	assert.Equal(t, []string{"technic move"}, cfg.Scan.HubNames)
	assert.Equal(t, "compass", cfg.Gamepad.DPadEncoding)
	assert.True(t, cfg.Gamepad.ReadReportMap)
	assert.Equal(t, 500*time.Millisecond, cfg.Gamepad.InputTimeout)
	assert.Equal(t, 10*time.Second, cfg.Hub.ConnectTimeout)
	assert.Equal(t, time.Second, cfg.Hub.WriteTimeout)
	assert.False(t, cfg.Hub.WriteWithResponse)
	assert.Equal(t, 5*time.Second, cfg.Loop.HealthInterval)
	assert.Equal(t, 50, cfg.Loop.StatusEvery)
	assert.Equal(t, time.Second, cfg.Loop.PublishTimeout)
	assert.Equal(t, "padbridge/status", cfg.Telemetry.MQTT.Topic)

	tc, err := cfg.TranslatorConfig()
	require.NoError(t, err)
	assert.Equal(t, translator.DefaultConfig(), tc, "default file config MUST match the built-in control model")
}

func TestLoadEmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadOverlaysFile(t *testing.T) {
	// GOAL: Keys present in the file override defaults, everything else keeps its default
	path := writeConfig(t, `
log_level: debug
gamepad:
  dpad_encoding: bitmask
  input_timeout: 250ms
hub:
  write_with_response: true
  connect_rgb: "#00ff40"
translator:
  drive_source: pedals
  modes:
    slow:
      max_speed: 30
  bindings:
    emergency_stop: menu
loop:
  status_every: 10
telemetry:
  mqtt:
    broker: tcp://localhost:1883
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.Gamepad.InputTimeout)
	assert.True(t, cfg.Gamepad.ReadReportMap, "unset keys MUST keep defaults")
	assert.Equal(t, 10, cfg.Loop.StatusEvery)

	decode, err := cfg.DecodeOptions()
	require.NoError(t, err)
	assert.Equal(t, gamepad.DPadBitmask, decode.DPad)

	sessOpts, err := cfg.SessionOptions()
	require.NoError(t, err)
	assert.True(t, sessOpts.Hub.WithResponse)
	assert.Equal(t, &session.RGB{R: 0x00, G: 0xff, B: 0x40}, sessOpts.ConnectRGB)

	tc, err := cfg.TranslatorConfig()
	require.NoError(t, err)
	assert.Equal(t, translator.DrivePedals, tc.DriveSource)
	assert.Equal(t, 30, tc.Modes[translator.ModeSlow].MaxSpeed)
	assert.Equal(t, 2.5, tc.Modes[translator.ModeSlow].CurvePower, "partial mode override MUST keep other fields")
	assert.Equal(t, gamepad.ButtonMenu, tc.Bindings[translator.ActionEmergencyStop])
	assert.Equal(t, gamepad.ButtonLB, tc.Bindings[translator.ActionModeCycle])

	mqttOpts, ok := cfg.MQTTOptions()
	assert.True(t, ok)
	assert.Equal(t, "tcp://localhost:1883", mqttOpts.Broker)
	_, ok = cfg.RedisOptions()
	assert.False(t, ok, "redis MUST stay disabled without an address")

	loopOpts, err := cfg.LoopOptions(nil)
	require.NoError(t, err)
	assert.Equal(t, 250*time.Millisecond, loopOpts.InputTimeout)
	assert.Equal(t, time.Second, loopOpts.PublishTimeout, "publish timeout MUST reach the loop")
	assert.Equal(t, gamepad.DPadBitmask, loopOpts.Decode.DPad)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown key", "gamepad:\n  dpad: compass\n", "field dpad not found"},
		{"bad log level", "log_level: loud\n", "log_level"},
		{"bad dpad encoding", "gamepad:\n  dpad_encoding: diagonal\n", "gamepad.dpad_encoding"},
		{"bad drive source", "translator:\n  drive_source: wheel\n", "translator.drive_source"},
		{"bad mode", "translator:\n  initial_mode: sport\n", "translator.initial_mode"},
		{"unknown action", "translator:\n  bindings:\n    jump: a\n", "unknown action"},
		{"unknown button", "translator:\n  bindings:\n    headlights: z\n", "translator.bindings"},
		{"duplicate binding", "translator:\n  bindings:\n    headlights: x\n", "bound to both"},
		{"bad rgb", "hub:\n  connect_rgb: green\n", "hub.connect_rgb"},
		{"bad max speed", "translator:\n  modes:\n    turbo:\n      max_speed: 150\n", "max speed"},
		{"empty name patterns", "scan:\n  hub_names: []\n", "hub_names"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestValidateReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LogLevel = "loud"
	cfg.Gamepad.DPadEncoding = "diagonal"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "log_level")
	assert.Contains(t, err.Error(), "dpad_encoding")
}

func TestConfig_NewLogger(t *testing.T) {
	tests := []struct {
		name  string
		level string
		want  logrus.Level
	}{
		{"debug", "debug", logrus.DebugLevel},
		{"warn", "warn", logrus.WarnLevel},
		{"invalid falls back to info", "loud", logrus.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{LogLevel: tt.level}

			logger := cfg.NewLogger()

			assert.Equal(t, tt.want, logger.GetLevel())
			formatter, ok := logger.Formatter.(*logrus.TextFormatter)
			require.True(t, ok)
			assert.True(t, formatter.FullTimestamp)
			assert.Equal(t, time.RFC3339, formatter.TimestampFormat)
		})
	}
}

func TestParseRGB(t *testing.T) {
	rgb, err := ParseRGB("#FF8000")
	require.NoError(t, err)
	assert.Equal(t, session.RGB{R: 0xff, G: 0x80, B: 0x00}, rgb)

	rgb, err = ParseRGB("0a0b0c")
	require.NoError(t, err)
	assert.Equal(t, session.RGB{R: 0x0a, G: 0x0b, B: 0x0c}, rgb)

	for _, bad := range []string{"", "#fff", "#gg0000", "#00000000"} {
		_, err := ParseRGB(bad)
		assert.Error(t, err, "ParseRGB(%q) MUST fail", bad)
	}
}
