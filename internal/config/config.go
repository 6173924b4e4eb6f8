// Package config loads the bridge configuration: built-in defaults from struct
// tags, optionally overlaid by a YAML file, then validated and converted into the
// option structs of each component.
package config

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/control"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/hub"
	"github.com/srg/padbridge/internal/session"
	"github.com/srg/padbridge/internal/telemetry"
	"github.com/srg/padbridge/internal/translator"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	LogLevel   string           `yaml:"log_level" default:"info"`
	Scan       ScanConfig       `yaml:"scan"`
	Gamepad    GamepadConfig    `yaml:"gamepad"`
	Hub        HubConfig        `yaml:"hub"`
	Translator TranslatorConfig `yaml:"translator"`
	Loop       LoopConfig       `yaml:"loop"`
	Telemetry  TelemetryConfig  `yaml:"telemetry"`
}

type ScanConfig struct {
	Timeout      time.Duration `yaml:"timeout" default:"10s"`
	GamepadNames []string      `yaml:"gamepad_names"`
	HubNames     []string      `yaml:"hub_names"`
}

type GamepadConfig struct {
	DPadEncoding    string        `yaml:"dpad_encoding" default:"compass"`
	TriggerDeadZone float64       `yaml:"trigger_dead_zone"`
	ReadReportMap   bool          `yaml:"read_report_map" default:"true"`
	InputTimeout    time.Duration `yaml:"input_timeout" default:"500ms"`
}

type HubConfig struct {
	ConnectTimeout    time.Duration `yaml:"connect_timeout" default:"10s"`
	WriteTimeout      time.Duration `yaml:"write_timeout" default:"1s"`
	WriteWithResponse bool          `yaml:"write_with_response"`
	// ConnectRGB is shown on the hub LED after calibration, as "#rrggbb"; empty disables.
	ConnectRGB string `yaml:"connect_rgb"`
}

type ModeConfig struct {
	MaxSpeed   int     `yaml:"max_speed"`
	CurvePower float64 `yaml:"curve_power"`
	DeadZone   float64 `yaml:"dead_zone"`
}

type ModesConfig struct {
	Normal ModeConfig `yaml:"normal"`
	Turbo  ModeConfig `yaml:"turbo"`
	Slow   ModeConfig `yaml:"slow"`
}

type TranslatorConfig struct {
	InitialMode         string      `yaml:"initial_mode" default:"normal"`
	Modes               ModesConfig `yaml:"modes"`
	DriveSource         string      `yaml:"drive_source" default:"stick"`
	BrakeMultiplier     bool        `yaml:"brake_multiplier" default:"true"`
	BoostMultiplier     bool        `yaml:"boost_multiplier" default:"true"`
	BrakeLightThreshold float64     `yaml:"brake_light_threshold" default:"0.1"`
	InitialSpeedLimit   int         `yaml:"initial_speed_limit" default:"100"`
	SpeedLimitStep      int         `yaml:"speed_limit_step" default:"10"`
	DriveRamp           int         `yaml:"drive_ramp"`
	SteerRamp           int         `yaml:"steer_ramp"`
	RampPresets         []int       `yaml:"ramp_presets"`
	// Bindings maps action names to button names, overriding the defaults per action.
	Bindings map[string]string `yaml:"bindings"`
}

type LoopConfig struct {
	HealthInterval time.Duration `yaml:"health_interval" default:"5s"`
	StatusEvery    int           `yaml:"status_every" default:"50"`
	// PublishTimeout bounds each status publish on the background publisher
	PublishTimeout time.Duration `yaml:"publish_timeout" default:"1s"`
}

type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic" default:"padbridge/status"`
	ClientID string `yaml:"client_id" default:"padbridge"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key" default:"padbridge:status"`
	Channel  string `yaml:"channel" default:"padbridge:status"`
}

type TelemetryConfig struct {
	MQTT  MQTTConfig  `yaml:"mqtt"`
	Redis RedisConfig `yaml:"redis"`
}

// DefaultConfig returns default configuration values
func DefaultConfig() *Config {
	cfg := &Config{}
	defaults.SetDefaults(cfg)

	sessionDefaults := session.DefaultOptions()
	cfg.Scan.GamepadNames = sessionDefaults.GamepadPatterns
	cfg.Scan.HubNames = sessionDefaults.HubPatterns

	modes := translator.DefaultModes()
	cfg.Translator.Modes = ModesConfig{
		Normal: modeConfig(modes[translator.ModeNormal]),
		Turbo:  modeConfig(modes[translator.ModeTurbo]),
		Slow:   modeConfig(modes[translator.ModeSlow]),
	}
	cfg.Translator.RampPresets = translator.DefaultConfig().RampPresets
	return cfg
}

func modeConfig(p translator.ModeParams) ModeConfig {
	return ModeConfig{MaxSpeed: p.MaxSpeed, CurvePower: p.CurvePower, DeadZone: p.DeadZone}
}

func (m ModeConfig) params() translator.ModeParams {
	return translator.ModeParams{MaxSpeed: m.MaxSpeed, CurvePower: m.CurvePower, DeadZone: m.DeadZone}
}

// Load returns the defaults overlaid with the YAML file at path. An empty path
// yields the defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := cfg.Merge(data); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Merge overlays YAML content onto c; keys absent from data keep their values.
func (c *Config) Merge(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate converts every section once and reports all problems together
func (c *Config) Validate() error {
	var errs error
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = multierr.Append(errs, fmt.Errorf("log_level: %w", err))
	}
	if _, err := c.DecodeOptions(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.SessionOptions(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if _, err := c.TranslatorConfig(); err != nil {
		errs = multierr.Append(errs, err)
	}
	if c.Gamepad.InputTimeout <= 0 {
		errs = multierr.Append(errs, fmt.Errorf("gamepad.input_timeout must be positive"))
	}
	if c.Loop.StatusEvery < 0 {
		errs = multierr.Append(errs, fmt.Errorf("loop.status_every must not be negative"))
	}
	return errs
}

// NewLogger creates a configured logger instance
func (c *Config) NewLogger() *logrus.Logger {
	logger := logrus.New()
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339,
	})

	return logger
}

// DecodeOptions builds the report decoder options; the stick dead zone is set
// per mode by the control loop.
func (c *Config) DecodeOptions() (gamepad.DecodeOptions, error) {
	opts := gamepad.DefaultDecodeOptions()
	enc, err := gamepad.ParseDPadEncoding(c.Gamepad.DPadEncoding)
	if err != nil {
		return opts, fmt.Errorf("gamepad.dpad_encoding: %w", err)
	}
	if c.Gamepad.TriggerDeadZone < 0 || c.Gamepad.TriggerDeadZone >= 1 {
		return opts, fmt.Errorf("gamepad.trigger_dead_zone %g out of range [0,1)", c.Gamepad.TriggerDeadZone)
	}
	opts.DPad = enc
	opts.TriggerDeadZone = c.Gamepad.TriggerDeadZone
	return opts, nil
}

// SessionOptions builds the session manager options
func (c *Config) SessionOptions() (session.Options, error) {
	opts := session.DefaultOptions()
	opts.ScanTimeout = c.Scan.Timeout
	opts.ConnectTimeout = c.Hub.ConnectTimeout
	opts.HealthInterval = c.Loop.HealthInterval
	opts.GamepadPatterns = c.Scan.GamepadNames
	opts.HubPatterns = c.Scan.HubNames
	opts.ReadReportMap = c.Gamepad.ReadReportMap
	opts.Hub = hub.Options{
		WriteTimeout:     c.Hub.WriteTimeout,
		WithResponse:     c.Hub.WriteWithResponse,
		CalibrationDelay: hub.CalibrationDelay,
	}

	if len(opts.GamepadPatterns) == 0 || len(opts.HubPatterns) == 0 {
		return opts, fmt.Errorf("scan: gamepad_names and hub_names must not be empty")
	}
	if c.Hub.ConnectRGB != "" {
		rgb, err := ParseRGB(c.Hub.ConnectRGB)
		if err != nil {
			return opts, fmt.Errorf("hub.connect_rgb: %w", err)
		}
		opts.ConnectRGB = &rgb
	}
	return opts, nil
}

// TranslatorConfig builds the translator configuration, resolving mode, source
// and binding names.
func (c *Config) TranslatorConfig() (translator.Config, error) {
	tc := translator.DefaultConfig()
	t := c.Translator

	mode, err := translator.ParseMode(t.InitialMode)
	if err != nil {
		return tc, fmt.Errorf("translator.initial_mode: %w", err)
	}
	source, err := translator.ParseDriveSource(t.DriveSource)
	if err != nil {
		return tc, fmt.Errorf("translator.drive_source: %w", err)
	}

	tc.Modes = [3]translator.ModeParams{
		translator.ModeNormal: t.Modes.Normal.params(),
		translator.ModeTurbo:  t.Modes.Turbo.params(),
		translator.ModeSlow:   t.Modes.Slow.params(),
	}
	tc.InitialMode = mode
	tc.DriveSource = source
	tc.BrakeMultiplier = t.BrakeMultiplier
	tc.BoostMultiplier = t.BoostMultiplier
	tc.BrakeLightThreshold = t.BrakeLightThreshold
	tc.InitialSpeedLimit = t.InitialSpeedLimit
	tc.SpeedLimitStep = t.SpeedLimitStep
	tc.DriveRamp = t.DriveRamp
	tc.SteerRamp = t.SteerRamp
	tc.RampPresets = t.RampPresets

	for action, button := range t.Bindings {
		if tc.Bindings, err = tc.Bindings.Bind(action, button); err != nil {
			return tc, fmt.Errorf("translator.bindings: %w", err)
		}
	}

	if err := tc.Validate(); err != nil {
		return tc, fmt.Errorf("translator: %w", err)
	}
	return tc, nil
}

// LoopOptions builds the control loop options around sink
func (c *Config) LoopOptions(sink telemetry.Sink) (control.Options, error) {
	decode, err := c.DecodeOptions()
	if err != nil {
		return control.Options{}, err
	}
	return control.Options{
		InputTimeout:   c.Gamepad.InputTimeout,
		StatusEvery:    c.Loop.StatusEvery,
		PublishTimeout: c.Loop.PublishTimeout,
		Decode:         decode,
		Sink:           sink,
	}, nil
}

// MQTTOptions returns the MQTT sink options, or false when no broker is configured
func (c *Config) MQTTOptions() (telemetry.MQTTOptions, bool) {
	m := c.Telemetry.MQTT
	return telemetry.MQTTOptions{
		Broker:   m.Broker,
		Topic:    m.Topic,
		ClientID: m.ClientID,
	}, m.Broker != ""
}

// RedisOptions returns the Redis sink options, or false when no address is configured
func (c *Config) RedisOptions() (telemetry.RedisOptions, bool) {
	r := c.Telemetry.Redis
	return telemetry.RedisOptions{
		Addr:     r.Addr,
		Password: r.Password,
		DB:       r.DB,
		Key:      r.Key,
		Channel:  r.Channel,
	}, r.Addr != ""
}

// ParseRGB parses "#rrggbb" (the leading # is optional)
func ParseRGB(s string) (session.RGB, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(s), "#"))
	if err != nil || len(b) != 3 {
		return session.RGB{}, fmt.Errorf("invalid color %q (expected #rrggbb)", s)
	}
	return session.RGB{R: b[0], G: b[1], B: b[2]}, nil
}
