package device

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// NotFoundError represents an error when a GATT resource is not found on a peer
type NotFoundError struct {
	Resource string   // "device", "service", "characteristic"
	UUIDs    []string // One or more identifiers (e.g., [serviceUUID] or [serviceUUID, charUUID])
}

func (e *NotFoundError) Error() string {
	if len(e.UUIDs) == 0 {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	if len(e.UUIDs) == 1 {
		return fmt.Sprintf("%s %q not found", e.Resource, e.UUIDs[0])
	}
	return fmt.Sprintf("%s %q not found in service %q", e.Resource, e.UUIDs[len(e.UUIDs)-1], e.UUIDs[0])
}

// ConnectionState represents the specific kind of connection state failure
type ConnectionState string

const (
	NotConnected     ConnectionState = "not_connected"
	AlreadyConnected ConnectionState = "already_connected"
	BluetoothOff     ConnectionState = "bluetooth_off"
)

// ConnectionError represents any connection-related problem
type ConnectionError struct {
	State ConnectionState
	Msg   string
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return string(e.State)
	}
	return fmt.Sprintf("%s: %s", e.State, e.Msg)
}

// Is allows errors.Is to compare ConnectionError values by State
func (e *ConnectionError) Is(target error) bool {
	if e == nil {
		return false
	}
	t, ok := target.(*ConnectionError)
	if !ok {
		return false
	}
	return e.State == t.State
}

// Predefined sentinel errors for connection states
var (
	ErrNotConnected     = &ConnectionError{State: NotConnected}
	ErrAlreadyConnected = &ConnectionError{State: AlreadyConnected}
	ErrBluetoothOff     = &ConnectionError{State: BluetoothOff, Msg: "is Bluetooth turned on?"}
)

// Operation errors
var (
	ErrTimeout     = errors.New("timeout")
	ErrUnsupported = errors.New("unsupported")
)

// IsConnectionState reports whether err is a ConnectionError with the given state
func IsConnectionState(err error, state ConnectionState) bool {
	var cerr *ConnectionError
	if errors.As(err, &cerr) {
		return cerr.State == state
	}
	return false
}

// Advertisement is the subset of a BLE advertisement used for peer discovery
type Advertisement interface {
	LocalName() string
	Addr() string
	RSSI() int
	Connectable() bool
	Services() []string
}

// Scanner represents a BLE adapter capable of scanning for advertisements
type Scanner interface {
	Scan(ctx context.Context, allowDup bool, handler func(Advertisement)) error
}

// Dialer opens GATT connections to peers by address
type Dialer interface {
	Dial(ctx context.Context, address string) (Client, error)
}

// Adapter is a local BLE controller: it scans and dials.
type Adapter interface {
	Scanner
	Dialer
}

// Client is a live GATT connection to one peer.
type Client interface {
	Address() string

	// DiscoverService returns the discovered service with the given UUID or a *NotFoundError.
	DiscoverService(uuid string) (Service, error)

	// Pair runs the pairing/bonding handshake. Returns ErrUnsupported when the
	// platform stack does not expose bonding.
	Pair(ctx context.Context) error

	IsConnected() bool

	// Disconnected is closed once the peer or the stack drops the link.
	Disconnected() <-chan struct{}

	Disconnect() error
}

// Service is a discovered GATT service
type Service interface {
	UUID() string
	Characteristic(uuid string) (Characteristic, error)
}

// Characteristic is a discovered GATT characteristic
type Characteristic interface {
	UUID() string

	// Read returns the characteristic value, failing with ErrTimeout after timeout.
	Read(timeout time.Duration) ([]byte, error)

	// Write sends data, failing with ErrTimeout when the stack does not accept it in time.
	Write(data []byte, withResponse bool, timeout time.Duration) error

	// Subscribe delivers notifications to handler. The handler runs on the stack's
	// goroutine and must not block.
	Subscribe(handler func([]byte)) error

	Unsubscribe() error
}
