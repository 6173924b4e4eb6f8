package main

import (
	"errors"
	"fmt"

	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/session"
)

// Command-level errors
var (
	// ErrConnectionLost indicates a link dropped while the bridge was running.
	// This is distinct from a failed connect, which never reached the loop.
	ErrConnectionLost = errors.New("connection lost")
)

// FormatUserError turns internal error chains into one actionable line
func FormatUserError(err error) string {
	if err == nil {
		return ""
	}

	var nf *device.NotFoundError
	switch {
	case errors.Is(err, device.ErrBluetoothOff):
		return "Bluetooth is not available, is it turned on?"
	case errors.Is(err, session.ErrCalibrationFailed):
		return fmt.Sprintf("hub steering calibration failed, power-cycle the hub and retry (%v)", err)
	case errors.Is(err, ErrConnectionLost), errors.Is(err, session.ErrLinkLost):
		return fmt.Sprintf("%v; the hub was sent a stop command, restart padbridge to reconnect", err)
	case errors.Is(err, session.ErrNoDevice):
		return fmt.Sprintf("%v; make sure the controller is in pairing mode and the hub is switched on", err)
	case errors.As(err, &nf):
		return fmt.Sprintf("%v; is this the right device?", err)
	case errors.Is(err, device.ErrTimeout):
		return fmt.Sprintf("%v; move closer to the device and retry", err)
	case errors.Is(err, device.ErrUnsupported):
		return fmt.Sprintf("%v: not supported on this platform", err)
	default:
		return err.Error()
	}
}
