// Package hub encodes commands for the LEGO Technic Move hub and sends them over
// its single vendor characteristic.
package hub

import (
	"fmt"
	"strings"
	"time"
)

// GATT identifiers of the hub's LEGO Wireless Protocol endpoint
const (
	ServiceUUID        = "00001623-1212-efde-1623-785feabcd123"
	CharacteristicUUID = "00001624-1212-efde-1623-785feabcd123"
)

const (
	hubID              = 0x00
	cmdPortOutput      = 0x81
	startupCompletion  = 0x11
	subCmdWriteDirect  = 0x51
	ledPort            = 0x32
	ledModeColor       = 0x00
	ledModeRGB         = 0x01
	driveFrameLen      = 0x0D
	motorFrameLen      = 0x08
	ledRGBFrameLen     = 0x0A
	driveModeAllMotors = 0x03
)

// CalibrationDelay separates the two steering calibration frames
const CalibrationDelay = 100 * time.Millisecond

var calibrationFrames = [2][]byte{
	{0x0d, 0x00, 0x81, 0x36, 0x11, 0x51, 0x00, 0x03, 0x00, 0x00, 0x00, 0x10, 0x00},
	{0x0d, 0x00, 0x81, 0x36, 0x11, 0x51, 0x00, 0x03, 0x00, 0x00, 0x00, 0x08, 0x00},
}

// Port is a hub output port
type Port byte

const (
	PortA     Port = 0x00
	PortB     Port = 0x01
	PortC     Port = 0x02
	PortD     Port = 0x03
	PortAB    Port = 0x32
	PortCD    Port = 0x33
	PortDrive Port = 0x36
)

var portNames = map[string]Port{
	"a": PortA, "b": PortB, "c": PortC, "d": PortD,
	"ab": PortAB, "cd": PortCD, "drive": PortDrive,
}

// ParsePort accepts a, b, c, d, ab, cd or drive
func ParsePort(s string) (Port, error) {
	if p, ok := portNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return p, nil
	}
	return 0, fmt.Errorf("unknown port %q (must be a, b, c, d, ab, cd or drive)", s)
}

// EndState is what a motor does after a stop command
type EndState byte

const (
	EndFloat EndState = 0x00
	EndBrake EndState = 0x7F
)

// Color is an index into the hub's fixed LED palette
type Color byte

const (
	ColorBlack Color = iota
	ColorPink
	ColorPurple
	ColorBlue
	ColorLightBlue
	ColorCyan
	ColorGreen
	ColorYellow
	ColorOrange
	ColorRed
	ColorWhite
)

var colorNames = [...]string{
	"black", "pink", "purple", "blue", "light_blue", "cyan", "green", "yellow", "orange", "red", "white",
}

func (c Color) String() string {
	if int(c) < len(colorNames) {
		return colorNames[c]
	}
	return fmt.Sprintf("color(%d)", byte(c))
}

// ParseColor resolves a palette name ("red", "light-blue")
func ParseColor(s string) (Color, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	for i, name := range colorNames {
		if name == key {
			return Color(i), nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// Lights is the vehicle light state carried by drive frames.
type Lights int

const (
	LightsOff Lights = iota
	LightsHead
	LightsTail
	LightsBoth
	LightsBrake
)

func (l Lights) String() string {
	switch l {
	case LightsOff:
		return "off"
	case LightsHead:
		return "head"
	case LightsTail:
		return "tail"
	case LightsBoth:
		return "both"
	case LightsBrake:
		return "brake"
	default:
		return fmt.Sprintf("lights(%d)", int(l))
	}
}

// Bits returns the 3-bit light field: bit2 set turns front and tail lights off,
// bit0 set forces the tail lights on in brake mode. The hub has no front-only
// state, so LightsHead shares the all-on pattern with LightsBoth.
func (l Lights) Bits() byte {
	switch l {
	case LightsHead, LightsBoth:
		return 0b000
	case LightsTail:
		return 0b101
	case LightsBrake:
		return 0b001
	default:
		return 0b100
	}
}

// ClampSpeed limits a motor value to [-100, 100]
func ClampSpeed(v int) int {
	switch {
	case v > 100:
		return 100
	case v < -100:
		return -100
	default:
		return v
	}
}

func signedByte(v int) byte {
	return byte(int8(ClampSpeed(v)))
}

// DriveFrame sets drive speed, steering angle and lights in one command.
func DriveFrame(speed, angle int, lights Lights) []byte {
	return []byte{
		driveFrameLen, hubID, cmdPortOutput, byte(PortDrive), startupCompletion, subCmdWriteDirect,
		0x00, driveModeAllMotors, 0x00,
		signedByte(speed), signedByte(angle), lights.Bits(), 0x00,
	}
}

// ParseDriveFrame recovers the speed, angle and light bits from a drive frame.
func ParseDriveFrame(frame []byte) (speed, angle int, lightBits byte, err error) {
	if len(frame) != driveFrameLen || frame[0] != driveFrameLen || frame[3] != byte(PortDrive) {
		return 0, 0, 0, fmt.Errorf("not a drive frame: % x", frame)
	}
	return int(int8(frame[9])), int(int8(frame[10])), frame[11], nil
}

// MotorPowerFrame starts a single port at power in [-100, 100].
func MotorPowerFrame(port Port, power int) []byte {
	return []byte{motorFrameLen, hubID, cmdPortOutput, byte(port), 0x00, subCmdWriteDirect, 0x00, signedByte(power)}
}

// MotorStopFrame stops a port, braking or coasting.
func MotorStopFrame(port Port, end EndState) []byte {
	return []byte{motorFrameLen, hubID, cmdPortOutput, byte(port), 0x00, subCmdWriteDirect, 0x00, byte(end)}
}

// LEDColorFrame sets the status LED to a palette color.
func LEDColorFrame(c Color) []byte {
	return []byte{motorFrameLen, hubID, cmdPortOutput, ledPort, 0x00, subCmdWriteDirect, ledModeColor, byte(c)}
}

// LEDRGBFrame sets the status LED to an arbitrary color.
func LEDRGBFrame(r, g, b uint8) []byte {
	return []byte{ledRGBFrameLen, hubID, cmdPortOutput, ledPort, 0x00, subCmdWriteDirect, ledModeRGB, r, g, b}
}

// CalibrationFrames returns copies of the two steering calibration frames,
// to be sent in order CalibrationDelay apart.
func CalibrationFrames() [2][]byte {
	return [2][]byte{
		append([]byte(nil), calibrationFrames[0]...),
		append([]byte(nil), calibrationFrames[1]...),
	}
}
