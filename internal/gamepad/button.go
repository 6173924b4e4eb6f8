package gamepad

import (
	"fmt"
	"strings"
)

// Button identifies one digital input of the controller, including the four D-pad directions.
type Button uint8

const (
	ButtonA Button = iota
	ButtonB
	ButtonX
	ButtonY
	ButtonLB
	ButtonRB
	ButtonShare
	ButtonView
	ButtonMenu
	ButtonLS
	ButtonRS
	DPadUp
	DPadDown
	DPadLeft
	DPadRight

	buttonCount
)

var buttonNames = [buttonCount]string{
	ButtonA:     "a",
	ButtonB:     "b",
	ButtonX:     "x",
	ButtonY:     "y",
	ButtonLB:    "lb",
	ButtonRB:    "rb",
	ButtonShare: "share",
	ButtonView:  "view",
	ButtonMenu:  "menu",
	ButtonLS:    "ls",
	ButtonRS:    "rs",
	DPadUp:      "dpad_up",
	DPadDown:    "dpad_down",
	DPadLeft:    "dpad_left",
	DPadRight:   "dpad_right",
}

var buttonsByName = func() map[string]Button {
	m := make(map[string]Button, buttonCount)
	for b := Button(0); b < buttonCount; b++ {
		m[buttonNames[b]] = b
	}
	return m
}()

func (b Button) String() string {
	if b >= buttonCount {
		return fmt.Sprintf("button(%d)", uint8(b))
	}
	return buttonNames[b]
}

// ParseButton resolves a button name ("a", "LB", "dpad-up", ...) case-insensitively.
func ParseButton(name string) (Button, error) {
	key := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), "-", "_")
	if b, ok := buttonsByName[key]; ok {
		return b, nil
	}
	return 0, fmt.Errorf("unknown button %q", name)
}

// AllButtons returns every button in declaration order.
func AllButtons() []Button {
	out := make([]Button, 0, buttonCount)
	for b := Button(0); b < buttonCount; b++ {
		out = append(out, b)
	}
	return out
}

// ButtonSet is a bitset of pressed buttons.
type ButtonSet uint16

// NewButtonSet returns a set with the given buttons pressed
func NewButtonSet(buttons ...Button) ButtonSet {
	var s ButtonSet
	for _, b := range buttons {
		s = s.With(b)
	}
	return s
}

func (s ButtonSet) Has(b Button) bool { return s&(1<<b) != 0 }

func (s ButtonSet) With(b Button) ButtonSet { return s | 1<<b }

// List returns the pressed buttons in declaration order.
func (s ButtonSet) List() []Button {
	var out []Button
	for b := Button(0); b < buttonCount; b++ {
		if s.Has(b) {
			out = append(out, b)
		}
	}
	return out
}
