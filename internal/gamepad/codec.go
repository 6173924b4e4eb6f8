// Package gamepad decodes BLE HID input reports of an Xbox Wireless Controller
// into a normalized ControllerState.
//
// Operational hazard: some controller firmware only starts sending input reports
// after the HID Report Map characteristic (0x2A4B) has been read once. Skipping the
// read leaves the link connected but silent, and nothing downstream can tell that
// apart from an idle controller.
package gamepad

import (
	"encoding/binary"
	"fmt"
	"math"
)

// GATT identifiers of the controller's HID-over-GATT profile
const (
	HIDServiceUUID   = "1812"
	ReportCharUUID   = "2a4d"
	ReportMapUUID    = "2a4b"
	MinReportLength  = 15
	triggerRawMax    = 1023
	stickRawMax      = 65535
	offsetLeftX      = 0
	offsetLeftY      = 2
	offsetRightX     = 4
	offsetRightY     = 6
	offsetLeftTrig   = 8
	offsetRightTrig  = 10
	offsetDPad       = 12
	offsetButtons    = 13
	offsetButtonsExt = 14
)

// primary (byte 13) and secondary (byte 14) button masks
var (
	primaryMasks = []struct {
		mask   byte
		button Button
	}{
		{0x01, ButtonA},
		{0x02, ButtonB},
		{0x08, ButtonX},
		{0x10, ButtonY},
		{0x40, ButtonLB},
		{0x80, ButtonRB},
	}
	secondaryMasks = []struct {
		mask   byte
		button Button
	}{
		{0x01, ButtonShare},
		{0x04, ButtonView},
		{0x08, ButtonMenu},
		{0x20, ButtonLS},
		{0x40, ButtonRS},
	}
)

// ControllerState is one decoded input report. Sticks are in [-1, 1] with up and
// right positive; triggers are in [0, 1].
type ControllerState struct {
	LeftX, LeftY   float64
	RightX, RightY float64
	LeftTrigger    float64
	RightTrigger   float64
	Buttons        ButtonSet
}

// Pressed reports whether b (including a D-pad direction) is held.
func (s ControllerState) Pressed(b Button) bool { return s.Buttons.Has(b) }

func (s ControllerState) String() string {
	return fmt.Sprintf("LS:(%.2f,%.2f) RS:(%.2f,%.2f) LT:%.2f RT:%.2f buttons:%v",
		s.LeftX, s.LeftY, s.RightX, s.RightY, s.LeftTrigger, s.RightTrigger, s.Buttons.List())
}

// DecodeOptions configures dead zones and the D-pad variant
type DecodeOptions struct {
	StickDeadZone   float64
	TriggerDeadZone float64
	DPad            DPadEncoding
}

// DefaultDecodeOptions matches the Normal control mode
func DefaultDecodeOptions() DecodeOptions {
	return DecodeOptions{StickDeadZone: 0.03, DPad: DPadCompass}
}

// Decode parses a raw input report. Returns false for reports shorter than
// MinReportLength; callers keep their previous state in that case.
func Decode(report []byte, opts DecodeOptions) (ControllerState, bool) {
	if len(report) < MinReportLength {
		return ControllerState{}, false
	}

	state := ControllerState{
		LeftX:        ApplyDeadZone(stickAxis(report, offsetLeftX), opts.StickDeadZone),
		LeftY:        -ApplyDeadZone(stickAxis(report, offsetLeftY), opts.StickDeadZone),
		RightX:       ApplyDeadZone(stickAxis(report, offsetRightX), opts.StickDeadZone),
		RightY:       -ApplyDeadZone(stickAxis(report, offsetRightY), opts.StickDeadZone),
		LeftTrigger:  ApplyDeadZone(triggerAxis(report, offsetLeftTrig), opts.TriggerDeadZone),
		RightTrigger: ApplyDeadZone(triggerAxis(report, offsetRightTrig), opts.TriggerDeadZone),
		Buttons:      opts.DPad.decode(report[offsetDPad]),
	}

	for _, m := range primaryMasks {
		if report[offsetButtons]&m.mask != 0 {
			state.Buttons = state.Buttons.With(m.button)
		}
	}
	for _, m := range secondaryMasks {
		if report[offsetButtonsExt]&m.mask != 0 {
			state.Buttons = state.Buttons.With(m.button)
		}
	}

	// inverted zero is -0
	state.LeftY += 0
	state.RightY += 0

	return state, true
}

// stickAxis maps 0..65535 linearly onto [-1, 1]
func stickAxis(report []byte, offset int) float64 {
	raw := binary.LittleEndian.Uint16(report[offset:])
	return float64(raw)/stickRawMax*2 - 1
}

// triggerAxis maps 0..1023 onto [0, 1]; values past 1023 saturate
func triggerAxis(report []byte, offset int) float64 {
	raw := binary.LittleEndian.Uint16(report[offset:])
	return math.Min(float64(raw)/triggerRawMax, 1)
}

// ApplyDeadZone zeroes |v| < dz and rescales the remaining range so the output
// still spans the full [-1, 1] without a jump at the threshold.
func ApplyDeadZone(v, dz float64) float64 {
	if dz <= 0 {
		return clampUnit(v)
	}
	if dz >= 1 {
		return 0
	}
	mag := math.Abs(v)
	if mag < dz {
		return 0
	}
	return clampUnit(math.Copysign((mag-dz)/(1-dz), v))
}

func clampUnit(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}
