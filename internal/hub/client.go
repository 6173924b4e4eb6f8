package hub

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
)

// Options controls how frames are written
type Options struct {
	WriteTimeout     time.Duration
	WithResponse     bool
	CalibrationDelay time.Duration
}

// DefaultOptions returns a 1s write bound, unacknowledged writes and the standard calibration gap
func DefaultOptions() Options {
	return Options{
		WriteTimeout:     time.Second,
		CalibrationDelay: CalibrationDelay,
	}
}

// Client sends encoded frames to a connected hub characteristic.
type Client struct {
	char   device.Characteristic
	opts   Options
	logger *logrus.Logger
}

// NewClient wraps the hub command characteristic
func NewClient(char device.Characteristic, opts Options, logger *logrus.Logger) *Client {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultOptions().WriteTimeout
	}
	return &Client{char: char, opts: opts, logger: logger}
}

// Send writes one raw frame, bounded by the configured write timeout.
func (c *Client) Send(frame []byte) error {
	c.logger.WithFields(logrus.Fields{
		"frame": fmt.Sprintf("% x", frame),
	}).Debug("Sending hub frame")

	if err := c.char.Write(frame, c.opts.WithResponse, c.opts.WriteTimeout); err != nil {
		return fmt.Errorf("hub write failed: %w", err)
	}
	return nil
}

// Drive sets drive speed, steering angle and lights
func (c *Client) Drive(speed, angle int, lights Lights) error {
	return c.Send(DriveFrame(speed, angle, lights))
}

func (c *Client) MotorPower(port Port, power int) error {
	return c.Send(MotorPowerFrame(port, power))
}

func (c *Client) MotorStop(port Port, end EndState) error {
	return c.Send(MotorStopFrame(port, end))
}

func (c *Client) SetLEDColor(color Color) error {
	return c.Send(LEDColorFrame(color))
}

func (c *Client) SetLEDRGB(r, g, b uint8) error {
	return c.Send(LEDRGBFrame(r, g, b))
}

// Calibrate runs the steering calibration exchange. The hub ignores steering
// until it has seen both frames.
func (c *Client) Calibrate(ctx context.Context) error {
	frames := CalibrationFrames()

	c.logger.Info("Calibrating steering...")
	if err := c.Send(frames[0]); err != nil {
		return fmt.Errorf("calibration frame 1: %w", err)
	}

	select {
	case <-ctx.Done():
		return fmt.Errorf("calibration interrupted: %w", ctx.Err())
	case <-time.After(c.opts.CalibrationDelay):
	}

	if err := c.Send(frames[1]); err != nil {
		return fmt.Errorf("calibration frame 2: %w", err)
	}

	c.logger.Info("Steering calibrated")
	return nil
}
