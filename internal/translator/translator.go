// Package translator turns decoded controller state into vehicle commands.
//
// A Translator is stateful (mode, speed limit, direction, light toggles, ramps and
// edge trackers) and is driven by exactly one caller, one Translate per cycle, so it
// holds no locks.
package translator

import (
	"fmt"
	"math"

	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/hub"
)

const (
	maxMotor = 100

	brakeFactor = 0.8
	boostFactor = 0.5
)

// VehicleCommand is one cycle's output
type VehicleCommand struct {
	Drive  int // motor A, [-100, 100]
	Steer  int // motor B, [-100, 100]
	Lights hub.Lights
	LED    hub.Color
	Stop   bool
}

func (c VehicleCommand) String() string {
	return fmt.Sprintf("drive=%d steer=%d lights=%s led=%s stop=%t", c.Drive, c.Steer, c.Lights, c.LED, c.Stop)
}

// Ramp limits how far one motor value may move per cycle
type Ramp struct {
	Prev    int
	MaxStep int // 0 = unramped
}

// Step moves Prev toward target by at most MaxStep and returns the new value.
// It never overshoots the target.
func (r *Ramp) Step(target int) int {
	if r.MaxStep <= 0 {
		r.Prev = target
		return target
	}
	delta := target - r.Prev
	switch {
	case delta > r.MaxStep:
		r.Prev += r.MaxStep
	case delta < -r.MaxStep:
		r.Prev -= r.MaxStep
	default:
		r.Prev = target
	}
	return r.Prev
}

// Reset forgets the previous output
func (r *Ramp) Reset() { r.Prev = 0 }

// EdgeTracker remembers last cycle's state of the monitored buttons
type EdgeTracker struct {
	monitored gamepad.ButtonSet
	prev      gamepad.ButtonSet
}

// NewEdgeTracker monitors the given buttons
func NewEdgeTracker(buttons ...gamepad.Button) EdgeTracker {
	return EdgeTracker{monitored: gamepad.NewButtonSet(buttons...)}
}

// Rising reports a not-pressed → pressed transition of b since the last Update
func (e *EdgeTracker) Rising(s gamepad.ControllerState, b gamepad.Button) bool {
	return s.Pressed(b) && !e.prev.Has(b)
}

// Update records the monitored buttons of s as the previous state
func (e *EdgeTracker) Update(s gamepad.ControllerState) {
	e.prev = s.Buttons & e.monitored
}

// Status is a snapshot of the translator's persistent fields
type Status struct {
	Mode       Mode
	SpeedLimit int
	Direction  int
	Headlights bool
	Taillights bool
	DriveRamp  int
	SteerRamp  int
}

func (s Status) String() string {
	lights := []byte("--")
	if s.Headlights {
		lights[0] = 'H'
	}
	if s.Taillights {
		lights[1] = 'T'
	}
	dir := "fwd"
	if s.Direction < 0 {
		dir = "rev"
	}
	return fmt.Sprintf("mode=%s limit=%d%% dir=%s lights=%s ramp=%s/%s",
		s.Mode, s.SpeedLimit, dir, lights, rampLabel(s.DriveRamp), rampLabel(s.SteerRamp))
}

func rampLabel(v int) string {
	if v <= 0 {
		return "off"
	}
	return fmt.Sprintf("%d", v)
}

// Translator converts controller state to vehicle commands
type Translator struct {
	cfg    Config
	logger *logrus.Logger

	mode       Mode
	speedLimit int
	direction  int
	headlights bool
	taillights bool
	drive      Ramp
	steer      Ramp
	edges      EdgeTracker
}

// New validates cfg and returns a translator in its initial state
func New(cfg Config, logger *logrus.Logger) (*Translator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid translator config: %w", err)
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Translator{
		cfg:        cfg,
		logger:     logger,
		mode:       cfg.InitialMode,
		speedLimit: lo.Clamp(cfg.InitialSpeedLimit, 0, maxMotor),
		direction:  1,
		drive:      Ramp{MaxStep: cfg.DriveRamp},
		steer:      Ramp{MaxStep: cfg.SteerRamp},
		edges:      NewEdgeTracker(cfg.Bindings[:]...),
	}, nil
}

// Mode returns the active control mode
func (t *Translator) Mode() Mode { return t.mode }

// ModeParams returns the active mode's parameters; the dead zone feeds the decoder.
func (t *Translator) ModeParams() ModeParams { return t.cfg.Modes[t.mode] }

// Status snapshots the persistent fields
func (t *Translator) Status() Status {
	return Status{
		Mode:       t.mode,
		SpeedLimit: t.speedLimit,
		Direction:  t.direction,
		Headlights: t.headlights,
		Taillights: t.taillights,
		DriveRamp:  t.drive.MaxStep,
		SteerRamp:  t.steer.MaxStep,
	}
}

// Translate runs one cycle: edge actions, then drive/steer shaping, then lights.
func (t *Translator) Translate(state gamepad.ControllerState) VehicleCommand {
	defer t.edges.Update(state)

	rising := func(a Action) bool {
		return t.edges.Rising(state, t.cfg.Bindings[a])
	}

	if rising(ActionEmergencyStop) {
		t.drive.Reset()
		t.steer.Reset()
		t.logger.Warn("Emergency stop")
		return VehicleCommand{Lights: hub.LightsBrake, LED: hub.ColorRed, Stop: true}
	}

	if rising(ActionModeCycle) {
		t.mode = (t.mode + 1) % modeCount
		t.logger.WithField("mode", t.mode).Info("Control mode changed")
	}
	if rising(ActionDirectionToggle) {
		t.direction = -t.direction
		t.logger.WithField("direction", t.direction).Info("Direction toggled")
	}
	if rising(ActionHeadlights) {
		t.headlights = !t.headlights
		t.logger.WithField("on", t.headlights).Info("Headlights toggled")
	}
	if rising(ActionTaillights) {
		t.taillights = !t.taillights
		t.logger.WithField("on", t.taillights).Info("Taillights toggled")
	}
	if rising(ActionSpeedUp) {
		t.adjustSpeedLimit(t.cfg.SpeedLimitStep)
	}
	if rising(ActionSpeedDown) {
		t.adjustSpeedLimit(-t.cfg.SpeedLimitStep)
	}
	if rising(ActionDriveRamp) {
		t.drive.MaxStep = t.nextRampPreset(t.drive.MaxStep)
		t.logger.WithField("max_step", t.drive.MaxStep).Info("Drive ramp changed")
	}
	if rising(ActionSteerRamp) {
		t.steer.MaxStep = t.nextRampPreset(t.steer.MaxStep)
		t.logger.WithField("max_step", t.steer.MaxStep).Info("Steering ramp changed")
	}

	params := t.cfg.Modes[t.mode]
	effectiveMax := min(params.MaxSpeed, t.speedLimit)

	drive := ApplyCurve(t.driveInput(state), params.CurvePower) * float64(t.direction)
	drive *= t.multiplier(state)
	steer := ApplyCurve(state.RightX, params.CurvePower)

	lights, led := t.lights(state)
	return VehicleCommand{
		Drive:  t.drive.Step(ScaleToMotor(drive, effectiveMax)),
		Steer:  t.steer.Step(ScaleToMotor(steer, effectiveMax)),
		Lights: lights,
		LED:    led,
	}
}

func (t *Translator) driveInput(state gamepad.ControllerState) float64 {
	if t.cfg.DriveSource != DrivePedals {
		return state.LeftY
	}
	if state.LeftTrigger > 0 {
		return -state.LeftTrigger
	}
	return state.RightTrigger
}

// multiplier applies the stick-mode LT brake and RT boost.
// Boost is applied after the speed limit, so full RT can push drive up to
// 1.5x the limit; only the final ±100 clamp bounds it.
func (t *Translator) multiplier(state gamepad.ControllerState) float64 {
	if t.cfg.DriveSource != DriveStick {
		return 1
	}
	m := 1.0
	if t.cfg.BrakeMultiplier {
		m *= 1 - brakeFactor*state.LeftTrigger
	}
	if t.cfg.BoostMultiplier {
		m *= 1 + boostFactor*state.RightTrigger
	}
	return m
}

func (t *Translator) lights(state gamepad.ControllerState) (hub.Lights, hub.Color) {
	var (
		lights hub.Lights
		led    hub.Color
	)
	switch {
	case t.headlights && t.taillights:
		lights, led = hub.LightsBoth, hub.ColorYellow
	case t.headlights:
		lights, led = hub.LightsHead, hub.ColorWhite
	case t.taillights:
		lights, led = hub.LightsTail, hub.ColorRed
	default:
		lights, led = hub.LightsOff, hub.ColorBlack
	}

	if t.cfg.DriveSource == DrivePedals && state.LeftTrigger > t.cfg.BrakeLightThreshold {
		lights = hub.LightsBrake
	}
	return lights, led
}

func (t *Translator) adjustSpeedLimit(delta int) {
	t.speedLimit = lo.Clamp(t.speedLimit+delta, 0, maxMotor)
	t.logger.WithField("limit", t.speedLimit).Info("Speed limit changed")
}

func (t *Translator) nextRampPreset(current int) int {
	presets := t.cfg.RampPresets
	if len(presets) == 0 {
		return current
	}
	idx := lo.IndexOf(presets, current)
	return presets[(idx+1)%len(presets)]
}

// ApplyCurve returns sign(x)*|x|^power; zero maps to zero.
func ApplyCurve(x, power float64) float64 {
	if x == 0 {
		return 0
	}
	return math.Copysign(math.Pow(math.Abs(x), power), x)
}

// ScaleToMotor rounds x*maxSpeed half away from zero and clamps to [-100, 100].
func ScaleToMotor(x float64, maxSpeed int) int {
	return hub.ClampSpeed(int(math.Round(x * float64(maxSpeed))))
}
