package main

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/session"
	"github.com/stretchr/testify/assert"
)

func TestFormatUserError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		contains string
	}{
		{"nil", nil, ""},
		{"bluetooth off", fmt.Errorf("scan failed: %w", device.ErrBluetoothOff), "is it turned on?"},
		{"calibration", fmt.Errorf("%w: calibration frame 2: timeout", session.ErrCalibrationFailed), "power-cycle the hub"},
		{"connection lost", fmt.Errorf("%w: %w", ErrConnectionLost, session.ErrLinkLost), "restart padbridge to reconnect"},
		{"link lost", fmt.Errorf("hub: %w", session.ErrLinkLost), "the hub was sent a stop command"},
		{"no device", fmt.Errorf("gamepad: %w", session.ErrNoDevice), "pairing mode"},
		{"not found", &device.NotFoundError{Resource: "characteristic", UUIDs: []string{"2a4d"}}, "is this the right device?"},
		{"timeout", fmt.Errorf("hub connect failed: %w", device.ErrTimeout), "move closer"},
		{"unsupported", device.ErrUnsupported, "not supported on this platform"},
		{"other", errors.New("something odd"), "something odd"},
		{"cancelled", context.Canceled, context.Canceled.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatUserError(tt.err)
			if tt.contains == "" {
				assert.Empty(t, got)
				return
			}
			assert.Contains(t, got, tt.contains)
		})
	}
}

func TestFormatUserError_KeepsCause(t *testing.T) {
	err := fmt.Errorf("gamepad connect failed: %w", device.ErrTimeout)
	assert.Contains(t, FormatUserError(err), "gamepad connect failed", "message MUST keep the original context")
}
