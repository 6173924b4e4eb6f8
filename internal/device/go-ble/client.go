package goble

import (
	"context"
	"fmt"
	"sync"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/groutine"
)

// bonder is implemented by stacks that expose pairing/bonding on the client.
type bonder interface {
	Pair(ctx context.Context) error
}

// BLEClient wraps a connected ble.Client and its discovered profile.
type BLEClient struct {
	client  ble.Client
	address string
	logger  *logrus.Logger

	services map[string]*BLEService

	mu        sync.RWMutex
	connected bool
	done      chan struct{}
	closeOnce sync.Once
}

func newClient(client ble.Client, address string, profile *ble.Profile, logger *logrus.Logger) *BLEClient {
	c := &BLEClient{
		client:    client,
		address:   address,
		logger:    logger,
		services:  make(map[string]*BLEService),
		connected: true,
		done:      make(chan struct{}),
	}

	if profile != nil {
		for _, svc := range profile.Services {
			uuid := device.NormalizeUUID(svc.UUID.String())
			c.services[uuid] = &BLEService{uuid: uuid, svc: svc, client: client, logger: logger}
			logger.WithFields(logrus.Fields{
				"address":         address,
				"service_uuid":    uuid,
				"characteristics": len(svc.Characteristics),
			}).Debug("Found service")
		}
	}

	// Stack-reported link loss
	groutine.Go(context.Background(), "ble-disconnect-monitor", func(ctx context.Context) {
		select {
		case <-client.Disconnected():
			logger.WithField("address", address).Warn("BLE stack reported disconnection")
			c.markDisconnected()
		case <-c.done:
		}
	})

	return c
}

func (c *BLEClient) Address() string { return c.address }

// DiscoverService returns the service from the profile discovered at dial time
func (c *BLEClient) DiscoverService(uuid string) (device.Service, error) {
	svc, ok := c.services[device.NormalizeUUID(uuid)]
	if !ok {
		return nil, &device.NotFoundError{Resource: "service", UUIDs: []string{uuid}}
	}
	return svc, nil
}

// Pair bonds with the peer when the underlying client supports it.
func (c *BLEClient) Pair(ctx context.Context) error {
	if !c.IsConnected() {
		return device.ErrNotConnected
	}
	b, ok := c.client.(bonder)
	if !ok {
		return fmt.Errorf("%w: pairing is not exposed by this BLE stack", device.ErrUnsupported)
	}
	return NormalizeError(b.Pair(ctx))
}

func (c *BLEClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

func (c *BLEClient) Disconnected() <-chan struct{} {
	return c.done
}

// Disconnect cancels the connection. Calling it on a dropped link is a no-op.
func (c *BLEClient) Disconnect() error {
	if !c.IsConnected() {
		c.logger.WithField("address", c.address).Debug("Disconnect called but already disconnected")
		return nil
	}
	c.markDisconnected()

	if err := c.client.CancelConnection(); err != nil {
		c.logger.WithFields(logrus.Fields{
			"address": c.address,
			"error":   err,
		}).Warn("BLE device disconnected with errors")
		return NormalizeError(err)
	}

	c.logger.WithField("address", c.address).Info("BLE device disconnected")
	return nil
}

func (c *BLEClient) markDisconnected() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.closeOnce.Do(func() { close(c.done) })
}

// BLEService is a discovered service bound to its client
type BLEService struct {
	uuid   string
	svc    *ble.Service
	client ble.Client
	logger *logrus.Logger
}

func (s *BLEService) UUID() string { return s.uuid }

func (s *BLEService) Characteristic(uuid string) (device.Characteristic, error) {
	want := device.NormalizeUUID(uuid)
	for _, ch := range s.svc.Characteristics {
		if device.NormalizeUUID(ch.UUID.String()) == want {
			return &BLECharacteristic{uuid: want, char: ch, client: s.client, logger: s.logger}, nil
		}
	}
	return nil, &device.NotFoundError{Resource: "characteristic", UUIDs: []string{s.uuid, uuid}}
}
