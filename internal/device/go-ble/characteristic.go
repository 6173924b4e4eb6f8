package goble

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-ble/ble"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
)

// BLECharacteristic is a discovered characteristic bound to its client
type BLECharacteristic struct {
	uuid   string
	char   *ble.Characteristic
	client ble.Client
	logger *logrus.Logger

	// go-ble clients are not safe for concurrent writes to the same handle
	writeMu sync.Mutex
}

func (c *BLECharacteristic) UUID() string { return c.uuid }

// Read reads the current value of the characteristic from the device with the specified timeout.
// This prevents indefinite blocking if the device becomes unresponsive during a read operation.
func (c *BLECharacteristic) Read(timeout time.Duration) ([]byte, error) {
	type readResult struct {
		data []byte
		err  error
	}
	resultCh := make(chan readResult, 1)

	go func() {
		data, err := c.client.ReadCharacteristic(c.char)
		resultCh <- readResult{data: data, err: err}
	}()

	select {
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("failed to read characteristic %s: %w", c.uuid, NormalizeError(result.err))
		}
		return result.data, nil
	case <-time.After(timeout):
		return nil, fmt.Errorf("%w: reading characteristic %s after %v", device.ErrTimeout, c.uuid, timeout)
	}
}

// Write sends data with or without a response, bounded by timeout.
// A write that times out keeps running in the stack; its late result is discarded.
func (c *BLECharacteristic) Write(data []byte, withResponse bool, timeout time.Duration) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	errCh := make(chan error, 1)
	go func() {
		errCh <- c.client.WriteCharacteristic(c.char, data, !withResponse)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to write characteristic %s: %w", c.uuid, NormalizeError(err))
		}
		c.logger.WithFields(logrus.Fields{
			"char_uuid": c.uuid,
			"bytes":     len(data),
			"data":      fmt.Sprintf("%x", data),
		}).Trace("Wrote characteristic")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("%w: writing characteristic %s after %v", device.ErrTimeout, c.uuid, timeout)
	}
}

// Subscribe enables notifications. The handler receives the stack's buffer; copy it if retained.
func (c *BLECharacteristic) Subscribe(handler func([]byte)) error {
	err := c.client.Subscribe(c.char, false, func(data []byte) {
		handler(data)
	})
	if err != nil {
		return fmt.Errorf("failed to subscribe to characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	c.logger.WithField("char_uuid", c.uuid).Debug("Subscribed to notifications")
	return nil
}

func (c *BLECharacteristic) Unsubscribe() error {
	if err := c.client.Unsubscribe(c.char, false); err != nil {
		return fmt.Errorf("failed to unsubscribe from characteristic %s: %w", c.uuid, NormalizeError(err))
	}
	return nil
}
