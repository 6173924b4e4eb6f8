package gamepad

import (
	"fmt"
	"strings"
)

// DPadEncoding selects how byte 12 of the input report is interpreted.
// Controller firmware revisions differ and a wrong choice misreads diagonals
// without any error, so the encoding is configuration, not a guess.
type DPadEncoding int

const (
	// DPadCompass is the HID hat switch: 0 (or >8) centered, 1..8 clockwise from north.
	DPadCompass DPadEncoding = iota
	// DPadBitmask is one bit per direction: bit0 up, bit1 right, bit2 down, bit3 left.
	DPadBitmask
)

func (e DPadEncoding) String() string {
	switch e {
	case DPadCompass:
		return "compass"
	case DPadBitmask:
		return "bitmask"
	default:
		return fmt.Sprintf("dpad_encoding(%d)", int(e))
	}
}

// ParseDPadEncoding accepts "compass" (alias "hat") or "bitmask" (alias "4way").
func ParseDPadEncoding(s string) (DPadEncoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "compass", "hat", "":
		return DPadCompass, nil
	case "bitmask", "4way":
		return DPadBitmask, nil
	default:
		return 0, fmt.Errorf("unknown dpad encoding %q (must be compass or bitmask)", s)
	}
}

var compassDirections = [9]ButtonSet{
	0: 0,
	1: NewButtonSet(DPadUp),
	2: NewButtonSet(DPadUp, DPadRight),
	3: NewButtonSet(DPadRight),
	4: NewButtonSet(DPadDown, DPadRight),
	5: NewButtonSet(DPadDown),
	6: NewButtonSet(DPadDown, DPadLeft),
	7: NewButtonSet(DPadLeft),
	8: NewButtonSet(DPadUp, DPadLeft),
}

func (e DPadEncoding) decode(code byte) ButtonSet {
	switch e {
	case DPadBitmask:
		var s ButtonSet
		if code&0x01 != 0 {
			s = s.With(DPadUp)
		}
		if code&0x02 != 0 {
			s = s.With(DPadRight)
		}
		if code&0x04 != 0 {
			s = s.With(DPadDown)
		}
		if code&0x08 != 0 {
			s = s.With(DPadLeft)
		}
		return s
	default:
		if int(code) >= len(compassDirections) {
			return 0
		}
		return compassDirections[code]
	}
}
