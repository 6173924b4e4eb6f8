package device

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      *NotFoundError
		expected string
	}{
		{name: "no ids", err: &NotFoundError{Resource: "device"}, expected: "device not found"},
		{name: "service", err: &NotFoundError{Resource: "service", UUIDs: []string{"1812"}}, expected: `service "1812" not found`},
		{
			name:     "characteristic in service",
			err:      &NotFoundError{Resource: "characteristic", UUIDs: []string{"1812", "2a4d"}},
			expected: `characteristic "2a4d" not found in service "1812"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestConnectionErrorIs(t *testing.T) {
	// GOAL: Verify wrapped connection errors are matched by state, not identity
	//
	// TEST SCENARIO: Wrap a fresh ConnectionError → errors.Is against sentinels → matches only its own state

	err := fmt.Errorf("write failed: %w", &ConnectionError{State: NotConnected, Msg: "peer gone"})

	assert.True(t, errors.Is(err, ErrNotConnected), "wrapped not_connected MUST match ErrNotConnected")
	assert.False(t, errors.Is(err, ErrAlreadyConnected), "different state MUST NOT match")
	assert.True(t, IsConnectionState(err, NotConnected))
	assert.False(t, IsConnectionState(errors.New("plain"), NotConnected))
	assert.Equal(t, "not_connected: peer gone", errors.Unwrap(err).Error())
}
