package session

import (
	"errors"
	"fmt"
)

// Link identifies one of the two managed BLE connections
type Link int

const (
	LinkGamepad Link = iota
	LinkHub

	linkCount
)

func (l Link) String() string {
	switch l {
	case LinkGamepad:
		return "gamepad"
	case LinkHub:
		return "hub"
	default:
		return fmt.Sprintf("link(%d)", int(l))
	}
}

// ConnectionState is the per-link state machine position
type ConnectionState int

const (
	Disconnected ConnectionState = iota
	Scanning
	Connecting
	Connected
	Error
)

func (s ConnectionState) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Scanning:
		return "scanning"
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

var (
	// ErrCalibrationFailed marks a hub connection torn down because steering calibration failed.
	ErrCalibrationFailed = errors.New("steering calibration failed")
	// ErrLinkLost is reported when a health check finds a link that was connected is gone.
	ErrLinkLost = errors.New("link lost")
	// ErrNoDevice is returned when a scan found no matching device for a link.
	ErrNoDevice = errors.New("no matching device found")
)
