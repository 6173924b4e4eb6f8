package translator

import (
	"fmt"
	"strings"

	"github.com/samber/lo"
	"github.com/srg/padbridge/internal/gamepad"
)

// Mode is a driving style preset
type Mode int

const (
	ModeNormal Mode = iota
	ModeTurbo
	ModeSlow

	modeCount
)

var modeNames = [modeCount]string{"normal", "turbo", "slow"}

func (m Mode) String() string {
	if m < 0 || m >= modeCount {
		return fmt.Sprintf("mode(%d)", int(m))
	}
	return modeNames[m]
}

// ParseMode accepts normal, turbo or slow
func ParseMode(s string) (Mode, error) {
	idx := lo.IndexOf(modeNames[:], strings.ToLower(strings.TrimSpace(s)))
	if idx < 0 {
		return 0, fmt.Errorf("unknown control mode %q (must be normal, turbo or slow)", s)
	}
	return Mode(idx), nil
}

// ModeParams bounds and shapes the response in one mode
type ModeParams struct {
	MaxSpeed   int     // cap on |motor speed|, 0..100
	CurvePower float64 // exponent of sign(x)*|x|^p
	DeadZone   float64 // stick dead zone applied when decoding
}

// DefaultModes returns Normal (100, 2.0, 0.03), Turbo (100, 1.5, 0.05) and Slow (50, 2.5, 0.02)
func DefaultModes() [3]ModeParams {
	return [3]ModeParams{
		ModeNormal: {MaxSpeed: 100, CurvePower: 2.0, DeadZone: 0.03},
		ModeTurbo:  {MaxSpeed: 100, CurvePower: 1.5, DeadZone: 0.05},
		ModeSlow:   {MaxSpeed: 50, CurvePower: 2.5, DeadZone: 0.02},
	}
}

// DriveSource selects which inputs produce the drive axis
type DriveSource int

const (
	// DriveStick uses the left stick Y axis; LT/RT act as brake/boost multipliers.
	DriveStick DriveSource = iota
	// DrivePedals uses RT as gas and LT as brake; brake wins outright.
	DrivePedals
)

func (d DriveSource) String() string {
	if d == DrivePedals {
		return "pedals"
	}
	return "stick"
}

// ParseDriveSource accepts stick or pedals
func ParseDriveSource(s string) (DriveSource, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "stick", "":
		return DriveStick, nil
	case "pedals", "triggers":
		return DrivePedals, nil
	default:
		return 0, fmt.Errorf("unknown drive source %q (must be stick or pedals)", s)
	}
}

// Action is an edge-triggered control action. Declaration order is priority order.
type Action int

const (
	ActionEmergencyStop Action = iota
	ActionModeCycle
	ActionDirectionToggle
	ActionHeadlights
	ActionTaillights
	ActionSpeedUp
	ActionSpeedDown
	ActionDriveRamp
	ActionSteerRamp

	actionCount
)

var actionNames = [actionCount]string{
	"emergency_stop", "mode_cycle", "direction_toggle", "headlights", "taillights",
	"speed_up", "speed_down", "drive_ramp", "steer_ramp",
}

func (a Action) String() string {
	if a < 0 || a >= actionCount {
		return fmt.Sprintf("action(%d)", int(a))
	}
	return actionNames[a]
}

// ParseAction resolves an action name as used in configuration files
func ParseAction(s string) (Action, error) {
	idx := lo.IndexOf(actionNames[:], strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	if idx < 0 {
		return 0, fmt.Errorf("unknown action %q", s)
	}
	return Action(idx), nil
}

// Bindings maps every action to the button that triggers it
type Bindings [actionCount]gamepad.Button

// DefaultBindings: X stop, LB mode, Y direction, A head, B tail, D-pad up/down limit,
// D-pad right/left drive/steer ramp.
func DefaultBindings() Bindings {
	return Bindings{
		ActionEmergencyStop:   gamepad.ButtonX,
		ActionModeCycle:       gamepad.ButtonLB,
		ActionDirectionToggle: gamepad.ButtonY,
		ActionHeadlights:      gamepad.ButtonA,
		ActionTaillights:      gamepad.ButtonB,
		ActionSpeedUp:         gamepad.DPadUp,
		ActionSpeedDown:       gamepad.DPadDown,
		ActionDriveRamp:       gamepad.DPadRight,
		ActionSteerRamp:       gamepad.DPadLeft,
	}
}

// Bind returns a copy with action rebound to the named button
func (b Bindings) Bind(action, button string) (Bindings, error) {
	a, err := ParseAction(action)
	if err != nil {
		return b, err
	}
	btn, err := gamepad.ParseButton(button)
	if err != nil {
		return b, fmt.Errorf("binding %s: %w", a, err)
	}
	b[a] = btn
	return b, nil
}

// Validate rejects one button bound to two actions
func (b Bindings) Validate() error {
	seen := make(map[gamepad.Button]Action, actionCount)
	for a := Action(0); a < actionCount; a++ {
		if prev, dup := seen[b[a]]; dup {
			return fmt.Errorf("button %s is bound to both %s and %s", b[a], prev, a)
		}
		seen[b[a]] = a
	}
	return nil
}

// Config parameterizes a Translator
type Config struct {
	Modes       [3]ModeParams
	InitialMode Mode

	DriveSource DriveSource
	// Stick source only: LT scales drive by 1-0.8*LT, RT by 1+0.5*RT.
	BrakeMultiplier bool
	BoostMultiplier bool
	// Pedal source only: LT above this forces the brake light.
	BrakeLightThreshold float64

	InitialSpeedLimit int
	SpeedLimitStep    int

	// Per-cycle maximum change of each motor value; 0 disables ramping.
	DriveRamp   int
	SteerRamp   int
	RampPresets []int

	Bindings Bindings
}

// DefaultConfig returns the stock control model
func DefaultConfig() Config {
	return Config{
		Modes:               DefaultModes(),
		InitialMode:         ModeNormal,
		DriveSource:         DriveStick,
		BrakeMultiplier:     true,
		BoostMultiplier:     true,
		BrakeLightThreshold: 0.1,
		InitialSpeedLimit:   100,
		SpeedLimitStep:      10,
		RampPresets:         []int{0, 50, 20, 10, 5},
		Bindings:            DefaultBindings(),
	}
}

// Validate checks ranges and bindings
func (c Config) Validate() error {
	for m := Mode(0); m < modeCount; m++ {
		p := c.Modes[m]
		if p.MaxSpeed < 0 || p.MaxSpeed > 100 {
			return fmt.Errorf("mode %s: max speed %d out of range [0,100]", m, p.MaxSpeed)
		}
		if p.CurvePower <= 0 {
			return fmt.Errorf("mode %s: curve power must be positive, got %g", m, p.CurvePower)
		}
		if p.DeadZone < 0 || p.DeadZone >= 1 {
			return fmt.Errorf("mode %s: dead zone %g out of range [0,1)", m, p.DeadZone)
		}
	}
	if c.InitialMode < 0 || c.InitialMode >= modeCount {
		return fmt.Errorf("invalid initial mode %d", int(c.InitialMode))
	}
	if c.SpeedLimitStep <= 0 {
		return fmt.Errorf("speed limit step must be positive, got %d", c.SpeedLimitStep)
	}
	if c.BrakeLightThreshold < 0 || c.BrakeLightThreshold > 1 {
		return fmt.Errorf("brake light threshold %g out of range [0,1]", c.BrakeLightThreshold)
	}
	if c.DriveRamp < 0 || c.SteerRamp < 0 || lo.SomeBy(c.RampPresets, func(v int) bool { return v < 0 }) {
		return fmt.Errorf("ramp rates must not be negative")
	}
	return c.Bindings.Validate()
}
