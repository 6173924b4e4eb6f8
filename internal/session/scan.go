package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/cornelk/hashmap"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/hub"
)

// DeviceKind classifies a discovered peer
type DeviceKind int

const (
	KindOther DeviceKind = iota
	KindGamepad
	KindHub
)

func (k DeviceKind) String() string {
	switch k {
	case KindGamepad:
		return "gamepad"
	case KindHub:
		return "hub"
	default:
		return "other"
	}
}

// DiscoveredDevice is one deduplicated peer seen during a scan
type DiscoveredDevice struct {
	Name     string
	Address  string
	RSSI     int
	Kind     DeviceKind
	Services []string
}

// ScanResult carries the first matching peer per link plus every device seen,
// in discovery order.
type ScanResult struct {
	Gamepad *DiscoveredDevice
	Hub     *DiscoveredDevice
	Devices []DiscoveredDevice
}

// Found reports whether a peer for link was discovered
func (r ScanResult) Found(l Link) bool {
	return r.device(l) != nil
}

func (r ScanResult) device(l Link) *DiscoveredDevice {
	if l == LinkHub {
		return r.Hub
	}
	return r.Gamepad
}

// Classify matches the advertised name against the patterns (case-insensitive
// substring) and falls back to the advertised services.
func Classify(adv device.Advertisement, gamepadPatterns, hubPatterns []string) DeviceKind {
	name := strings.ToLower(adv.LocalName())
	matches := func(patterns []string) bool {
		return name != "" && lo.SomeBy(patterns, func(p string) bool {
			return p != "" && strings.Contains(name, strings.ToLower(p))
		})
	}
	advertises := func(uuid string) bool {
		return lo.SomeBy(adv.Services(), func(s string) bool { return device.SameUUID(s, uuid) })
	}

	switch {
	case matches(hubPatterns), advertises(hub.ServiceUUID):
		return KindHub
	case matches(gamepadPatterns), advertises(gamepad.HIDServiceUUID):
		return KindGamepad
	default:
		return KindOther
	}
}

// Scan discovers peers until both a gamepad and a hub are found or the scan
// timeout elapses. Links without a match go back to Disconnected.
func (m *Manager) Scan(ctx context.Context) (ScanResult, error) {
	for l := Link(0); l < linkCount; l++ {
		if m.states[l] != Connected {
			m.setState(l, Scanning)
		}
	}

	m.found = ScanResult{}
	scanCtx, cancel := context.WithTimeout(ctx, m.opts.ScanTimeout)
	defer cancel()

	var (
		devices = hashmap.New[string, *DiscoveredDevice]()
		padDev  atomic.Pointer[DiscoveredDevice]
		hubDev  atomic.Pointer[DiscoveredDevice]

		// devices dedupes by address; ordered is the listing, in discovery order
		orderMu sync.Mutex
		ordered []*DiscoveredDevice
	)

	m.logger.WithField("timeout", m.opts.ScanTimeout).Info("Scanning for gamepad and hub...")

	err := m.adapter.Scan(scanCtx, false, func(adv device.Advertisement) {
		addr := adv.Addr()
		if _, seen := devices.Get(addr); seen {
			return
		}

		dev := &DiscoveredDevice{
			Name:     adv.LocalName(),
			Address:  addr,
			RSSI:     adv.RSSI(),
			Kind:     Classify(adv, m.opts.GamepadPatterns, m.opts.HubPatterns),
			Services: adv.Services(),
		}
		if _, existing := devices.GetOrInsert(addr, dev); existing {
			return
		}
		orderMu.Lock()
		ordered = append(ordered, dev)
		orderMu.Unlock()

		fields := logrus.Fields{"name": dev.Name, "address": dev.Address, "rssi": dev.RSSI, "kind": dev.Kind}
		switch dev.Kind {
		case KindGamepad:
			if padDev.CompareAndSwap(nil, dev) {
				m.logger.WithFields(fields).Info("Found gamepad")
			}
		case KindHub:
			if hubDev.CompareAndSwap(nil, dev) {
				m.logger.WithFields(fields).Info("Found hub")
			}
		default:
			m.logger.WithFields(fields).Debug("Discovered device")
		}

		if padDev.Load() != nil && hubDev.Load() != nil {
			cancel()
		}
	})

	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		for l := Link(0); l < linkCount; l++ {
			if m.states[l] == Scanning {
				m.setState(l, Error)
			}
		}
		return ScanResult{}, fmt.Errorf("scan failed: %w", err)
	}
	if ctx.Err() != nil {
		m.resetScanning()
		return ScanResult{}, ctx.Err()
	}

	orderMu.Lock()
	result := ScanResult{
		Gamepad: padDev.Load(),
		Hub:     hubDev.Load(),
		Devices: make([]DiscoveredDevice, 0, len(ordered)),
	}
	for _, d := range ordered {
		result.Devices = append(result.Devices, *d)
	}
	orderMu.Unlock()

	m.found = result
	m.resetScanning()

	m.logger.WithFields(logrus.Fields{
		"device_count": len(result.Devices),
		"gamepad":      result.Found(LinkGamepad),
		"hub":          result.Found(LinkHub),
	}).Info("Scan completed")

	return result, nil
}

// resetScanning moves links that found nothing back to Disconnected
func (m *Manager) resetScanning() {
	for l := Link(0); l < linkCount; l++ {
		if m.states[l] == Scanning && !m.found.Found(l) {
			m.setState(l, Disconnected)
		}
	}
}
