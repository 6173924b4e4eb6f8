//go:build linux

package goble

import (
	"github.com/go-ble/ble"
	"github.com/go-ble/ble/linux"
)

// newPlatformDevice opens the default HCI adapter. Requires CAP_NET_ADMIN or root.
func newPlatformDevice() (ble.Device, error) {
	return linux.NewDevice()
}
