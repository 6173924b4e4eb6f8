// Package session owns the two BLE links of the bridge: it scans for a gamepad
// and a hub, connects them, keeps their per-link state machines and periodically
// re-verifies that both links are still alive.
//
// A Manager is driven by one goroutine (the control loop or a CLI command) and
// holds no locks. The only value crossing goroutines is the latest gamepad input
// report, handed over through a mailbox.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/hub"
	"github.com/srg/padbridge/internal/mailbox"
	"go.uber.org/multierr"
)

// RGB is an LED color
type RGB struct {
	R, G, B uint8
}

// Options configures discovery, connection and health checking
type Options struct {
	ScanTimeout     time.Duration
	ConnectTimeout  time.Duration
	ReadTimeout     time.Duration
	HealthInterval  time.Duration
	GamepadPatterns []string
	HubPatterns     []string

	// ReadReportMap reads the HID report map after connecting; some controller
	// firmware stays silent until it has been read once.
	ReadReportMap bool

	Hub hub.Options
	// ConnectRGB, when set, is shown on the hub LED once calibration succeeds.
	ConnectRGB *RGB

	Clock clock.Clock
}

// DefaultOptions returns the stock timeouts and name patterns
func DefaultOptions() Options {
	return Options{
		ScanTimeout:     10 * time.Second,
		ConnectTimeout:  10 * time.Second,
		ReadTimeout:     2 * time.Second,
		HealthInterval:  5 * time.Second,
		GamepadPatterns: []string{"xbox"},
		HubPatterns:     []string{"technic move"},
		ReadReportMap:   true,
		Hub:             hub.DefaultOptions(),
	}
}

// ConnectResult reports the outcome of ConnectAll per link; a nil error means connected.
// ScanErr is set when discovery itself failed, in which case both links carry it too.
type ConnectResult struct {
	Scan    ScanResult
	ScanErr error
	Gamepad error
	Hub     error
}

// OK reports whether both links are connected
func (r ConnectResult) OK() bool {
	return r.Gamepad == nil && r.Hub == nil
}

// Err combines both link errors
func (r ConnectResult) Err() error {
	if r.ScanErr != nil {
		return r.ScanErr
	}
	var err error
	if r.Gamepad != nil {
		err = multierr.Append(err, fmt.Errorf("gamepad: %w", r.Gamepad))
	}
	if r.Hub != nil {
		err = multierr.Append(err, fmt.Errorf("hub: %w", r.Hub))
	}
	return err
}

// HealthResult reports which links are still alive
type HealthResult struct {
	Gamepad bool
	Hub     bool
}

// OK reports whether both links are alive
func (r HealthResult) OK() bool {
	return r.Gamepad && r.Hub
}

// Err returns ErrLinkLost naming the dead links, or nil
func (r HealthResult) Err() error {
	switch {
	case r.OK():
		return nil
	case !r.Gamepad && !r.Hub:
		return fmt.Errorf("gamepad and hub: %w", ErrLinkLost)
	case !r.Gamepad:
		return fmt.Errorf("gamepad: %w", ErrLinkLost)
	default:
		return fmt.Errorf("hub: %w", ErrLinkLost)
	}
}

// Manager owns the gamepad and hub connections
type Manager struct {
	adapter device.Adapter
	opts    Options
	logger  *logrus.Logger
	clock   clock.Clock

	states  [linkCount]ConnectionState
	clients [linkCount]device.Client
	found   ScanResult

	reportChar device.Characteristic
	inbox      *mailbox.Mailbox[[]byte]
	hub        *hub.Client

	lastHealth time.Time
}

// NewManager creates a manager with both links Disconnected
func NewManager(adapter device.Adapter, opts Options, logger *logrus.Logger) *Manager {
	if logger == nil {
		logger = logrus.New()
	}
	defaults := DefaultOptions()
	if opts.ScanTimeout <= 0 {
		opts.ScanTimeout = defaults.ScanTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaults.ConnectTimeout
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = defaults.ReadTimeout
	}
	if opts.HealthInterval <= 0 {
		opts.HealthInterval = defaults.HealthInterval
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}

	return &Manager{
		adapter: adapter,
		opts:    opts,
		logger:  logger,
		clock:   opts.Clock,
		inbox:   mailbox.New[[]byte](),
	}
}

// State returns the current state of link
func (m *Manager) State(l Link) ConnectionState {
	return m.states[l]
}

// Gamepad returns the mailbox receiving raw input reports
func (m *Manager) Gamepad() *mailbox.Mailbox[[]byte] {
	return m.inbox
}

// Hub returns the hub command client, or nil while the hub is not connected
func (m *Manager) Hub() *hub.Client {
	if m.states[LinkHub] != Connected {
		return nil
	}
	return m.hub
}

func (m *Manager) setState(l Link, s ConnectionState) {
	if m.states[l] == s {
		return
	}
	m.logger.WithFields(logrus.Fields{
		"link": l,
		"from": m.states[l],
		"to":   s,
	}).Debug("Link state changed")
	m.states[l] = s
}

// dial moves link to Connecting and opens the GATT connection
func (m *Manager) dial(ctx context.Context, l Link, address string) (device.Client, error) {
	if m.states[l] == Connected {
		return nil, device.ErrAlreadyConnected
	}
	m.setState(l, Connecting)

	m.logger.WithFields(logrus.Fields{
		"link":    l,
		"address": address,
	}).Info("Connecting...")

	dialCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	defer cancel()

	client, err := m.adapter.Dial(dialCtx, address)
	if err != nil {
		m.setState(l, Error)
		return nil, fmt.Errorf("%s connect failed: %w", l, err)
	}
	return client, nil
}

// abort tears down a half-open connection and marks the link Error
func (m *Manager) abort(l Link, client device.Client, cause error) error {
	if err := client.Disconnect(); err != nil {
		m.logger.WithError(err).WithField("link", l).Warn("Disconnect after failed setup failed")
	}
	m.setState(l, Error)
	return cause
}

// ConnectGamepad connects to the controller at address and subscribes to its
// input reports. Reports are copied into the Gamepad mailbox.
func (m *Manager) ConnectGamepad(ctx context.Context, address string) error {
	client, err := m.dial(ctx, LinkGamepad, address)
	if err != nil {
		return err
	}

	svc, err := client.DiscoverService(gamepad.HIDServiceUUID)
	if err != nil {
		return m.abort(LinkGamepad, client, fmt.Errorf("gamepad HID service: %w", err))
	}
	report, err := svc.Characteristic(gamepad.ReportCharUUID)
	if err != nil {
		return m.abort(LinkGamepad, client, fmt.Errorf("gamepad input report: %w", err))
	}

	if m.opts.ReadReportMap {
		m.readReportMap(svc)
	}

	if err := report.Subscribe(func(data []byte) {
		m.inbox.Put(append([]byte(nil), data...))
	}); err != nil {
		return m.abort(LinkGamepad, client, fmt.Errorf("gamepad subscribe: %w", err))
	}

	m.clients[LinkGamepad] = client
	m.reportChar = report
	m.setState(LinkGamepad, Connected)
	m.lastHealth = m.clock.Now()

	m.logger.WithField("address", address).Info("Gamepad connected")
	return nil
}

func (m *Manager) readReportMap(svc device.Service) {
	char, err := svc.Characteristic(gamepad.ReportMapUUID)
	if err != nil {
		m.logger.WithError(err).Warn("HID report map not found, input reports may never arrive")
		return
	}
	data, err := char.Read(m.opts.ReadTimeout)
	if err != nil {
		m.logger.WithError(err).Warn("HID report map read failed, input reports may never arrive")
		return
	}
	m.logger.WithField("bytes", len(data)).Debug("Read HID report map")
}

// ConnectHub connects to the hub at address, pairs, and calibrates steering.
// A calibration failure disconnects and leaves the link in Error.
func (m *Manager) ConnectHub(ctx context.Context, address string) error {
	client, err := m.dial(ctx, LinkHub, address)
	if err != nil {
		return err
	}

	svc, err := client.DiscoverService(hub.ServiceUUID)
	if err != nil {
		return m.abort(LinkHub, client, fmt.Errorf("hub service: %w", err))
	}
	char, err := svc.Characteristic(hub.CharacteristicUUID)
	if err != nil {
		return m.abort(LinkHub, client, fmt.Errorf("hub characteristic: %w", err))
	}

	pairCtx, cancel := context.WithTimeout(ctx, m.opts.ConnectTimeout)
	err = client.Pair(pairCtx)
	cancel()
	switch {
	case err == nil:
		m.logger.Info("Hub paired")
	case errors.Is(err, device.ErrUnsupported):
		m.logger.Warn("Pairing not supported by this Bluetooth stack, hub commands may be ignored")
	default:
		m.logger.WithError(err).Warn("Hub pairing failed, hub commands may be ignored")
	}

	hc := hub.NewClient(char, m.opts.Hub, m.logger)
	if err := hc.Calibrate(ctx); err != nil {
		m.logger.WithError(err).Error("Hub calibration failed, disconnecting")
		return m.abort(LinkHub, client, fmt.Errorf("%w: %w", ErrCalibrationFailed, err))
	}

	if c := m.opts.ConnectRGB; c != nil {
		if err := hc.SetLEDRGB(c.R, c.G, c.B); err != nil {
			m.logger.WithError(err).Warn("Failed to set connect indicator")
		}
	}

	m.clients[LinkHub] = client
	m.hub = hc
	m.setState(LinkHub, Connected)
	m.lastHealth = m.clock.Now()

	m.logger.WithField("address", address).Info("Hub connected")
	return nil
}

// ConnectAll connects both links. A link with an address is dialed directly;
// a scan runs only when some unconnected link has none. Each link reports its own error.
func (m *Manager) ConnectAll(ctx context.Context, gamepadAddr, hubAddr string) ConnectResult {
	var result ConnectResult

	needPad := m.states[LinkGamepad] != Connected
	needHub := m.states[LinkHub] != Connected
	if (needPad && gamepadAddr == "") || (needHub && hubAddr == "") {
		found, err := m.Scan(ctx)
		if err != nil {
			return ConnectResult{ScanErr: err, Gamepad: err, Hub: err}
		}
		result.Scan = found
		if gamepadAddr == "" && found.Gamepad != nil {
			gamepadAddr = found.Gamepad.Address
		}
		if hubAddr == "" && found.Hub != nil {
			hubAddr = found.Hub.Address
		}
	}

	if needPad {
		if gamepadAddr == "" {
			result.Gamepad = ErrNoDevice
		} else {
			result.Gamepad = m.ConnectGamepad(ctx, gamepadAddr)
		}
	}
	if needHub {
		if hubAddr == "" {
			result.Hub = ErrNoDevice
		} else {
			result.Hub = m.ConnectHub(ctx, hubAddr)
		}
	}
	return result
}

// HealthDue reports whether the health interval has elapsed since the last check
func (m *Manager) HealthDue() bool {
	return m.clock.Since(m.lastHealth) >= m.opts.HealthInterval
}

// CheckHealth asks the transport whether each connected link is still up.
// A connected link found dead moves to Disconnected.
func (m *Manager) CheckHealth() HealthResult {
	m.lastHealth = m.clock.Now()

	alive := func(l Link) bool {
		if m.states[l] != Connected {
			return false
		}
		if c := m.clients[l]; c != nil && c.IsConnected() {
			return true
		}
		m.logger.WithField("link", l).Error("Link lost")
		m.setState(l, Disconnected)
		return false
	}

	return HealthResult{
		Gamepad: alive(LinkGamepad),
		Hub:     alive(LinkHub),
	}
}

// DisconnectAll releases both links. Safe to call repeatedly.
func (m *Manager) DisconnectAll() error {
	var errs error

	if m.reportChar != nil && m.clients[LinkGamepad] != nil && m.clients[LinkGamepad].IsConnected() {
		if err := m.reportChar.Unsubscribe(); err != nil {
			m.logger.WithError(err).Debug("Unsubscribe from input reports failed")
		}
	}
	m.reportChar = nil
	m.hub = nil

	for l := Link(0); l < linkCount; l++ {
		client := m.clients[l]
		m.clients[l] = nil
		m.setState(l, Disconnected)
		if client == nil {
			continue
		}
		if err := client.Disconnect(); err != nil && !errors.Is(err, device.ErrNotConnected) {
			errs = multierr.Append(errs, fmt.Errorf("%s disconnect: %w", l, err))
		}
	}

	if errs == nil {
		m.logger.Info("Disconnected")
	}
	return errs
}
