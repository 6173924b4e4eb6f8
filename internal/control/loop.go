// Package control runs the bridge cycle: wait for the latest input report,
// decode it, translate it, and send the resulting commands to the hub.
package control

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
	"github.com/srg/padbridge/internal/device"
	"github.com/srg/padbridge/internal/gamepad"
	"github.com/srg/padbridge/internal/groutine"
	"github.com/srg/padbridge/internal/hub"
	"github.com/srg/padbridge/internal/mailbox"
	"github.com/srg/padbridge/internal/session"
	"github.com/srg/padbridge/internal/telemetry"
	"github.com/srg/padbridge/internal/translator"
)

// Links is the part of the session manager the loop drives
type Links interface {
	Gamepad() *mailbox.Mailbox[[]byte]
	Hub() *hub.Client
	State(session.Link) session.ConnectionState
	HealthDue() bool
	CheckHealth() session.HealthResult
	DisconnectAll() error
}

// Options configures the loop
type Options struct {
	InputTimeout   time.Duration
	StatusEvery    int // cycles between status snapshots; 0 disables
	// PublishTimeout bounds one Sink.Publish call. Publishing runs off the loop.
	PublishTimeout time.Duration
	Decode         gamepad.DecodeOptions
	Sink           telemetry.Sink
	Clock          clock.Clock
}

// DefaultOptions returns a 500ms input wait and a status snapshot every 50 cycles
func DefaultOptions() Options {
	return Options{
		InputTimeout:   500 * time.Millisecond,
		StatusEvery:    50,
		PublishTimeout: time.Second,
		Decode:         gamepad.DefaultDecodeOptions(),
	}
}

type driveState struct {
	drive, steer int
	lights       hub.Lights
}

// Loop is the single-threaded bridge cycle
type Loop struct {
	links  Links
	tr     *translator.Translator
	opts   Options
	logger *logrus.Logger
	clock  clock.Clock

	state     gamepad.ControllerState
	cmd       translator.VehicleCommand
	sentDrive *driveState
	sentLED   *hub.Color

	cycles    uint64
	malformed int64

	// latest snapshot waiting for the publisher goroutine
	status    *mailbox.Mailbox[telemetry.Snapshot]
	pubOnce   sync.Once
	pubCancel context.CancelFunc
	pubDone   chan struct{}
}

// New creates a loop over connected links
func New(links Links, tr *translator.Translator, opts Options, logger *logrus.Logger) *Loop {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.InputTimeout <= 0 {
		opts.InputTimeout = DefaultOptions().InputTimeout
	}
	if opts.PublishTimeout <= 0 {
		opts.PublishTimeout = DefaultOptions().PublishTimeout
	}
	if opts.Clock == nil {
		opts.Clock = clock.New()
	}
	return &Loop{
		links:  links,
		tr:     tr,
		opts:   opts,
		logger: logger,
		clock:  opts.Clock,
		status: mailbox.New[telemetry.Snapshot](),
	}
}

// Cycles returns the number of completed cycles
func (l *Loop) Cycles() uint64 { return l.cycles }

// Command returns the last translated command
func (l *Loop) Command() translator.VehicleCommand { return l.cmd }

// Run steps until ctx is cancelled or a link is lost, then sends a final stop
// command and disconnects. Cancellation is not an error.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.WithFields(logrus.Fields{
		"mode":   l.tr.Mode(),
		"status": l.tr.Status(),
	}).Info("Control loop started")

	var err error
	for err == nil {
		err = l.Step(ctx)
	}

	l.Shutdown()

	if errors.Is(err, context.Canceled) {
		l.logger.Info("Control loop stopped")
		return nil
	}
	return err
}

// Step runs one cycle. It blocks at most the input timeout waiting for a report;
// without a new report the previous controller state is translated again.
func (l *Loop) Step(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if l.links.HealthDue() {
		if err := l.links.CheckHealth().Err(); err != nil {
			l.logger.WithError(err).Error("Health check failed")
			return err
		}
	}

	inbox := l.links.Gamepad()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case raw := <-inbox.C():
		inbox.MarkTaken()
		l.decode(raw)
	case <-l.clock.After(l.opts.InputTimeout):
		l.logger.Trace("No input report, reusing last state")
	}

	l.cmd = l.tr.Translate(l.state)

	hc := l.links.Hub()
	if hc == nil {
		return fmt.Errorf("hub: %w", session.ErrLinkLost)
	}
	if err := l.send(hc, l.cmd); err != nil {
		return err
	}

	l.cycles++
	if l.opts.StatusEvery > 0 && l.cycles%uint64(l.opts.StatusEvery) == 0 {
		l.publishStatus()
	}
	return nil
}

func (l *Loop) decode(raw []byte) {
	opts := l.opts.Decode
	opts.StickDeadZone = l.tr.ModeParams().DeadZone

	state, ok := gamepad.Decode(raw, opts)
	if !ok {
		l.malformed++
		l.logger.WithField("length", len(raw)).Debug("Discarding malformed input report")
		return
	}
	l.state = state
}

// send writes the drive and LED frames that changed since the last cycle.
// An emergency stop is always sent.
func (l *Loop) send(hc *hub.Client, cmd translator.VehicleCommand) error {
	drive := driveState{drive: cmd.Drive, steer: cmd.Steer, lights: cmd.Lights}
	if cmd.Stop {
		drive = driveState{lights: hub.LightsBrake}
		l.sentDrive, l.sentLED = nil, nil
	}

	if l.sentDrive == nil || *l.sentDrive != drive {
		if err := hc.Drive(drive.drive, drive.steer, drive.lights); err != nil {
			return l.writeFailed("drive", err)
		}
		l.sentDrive = &drive
	}

	if l.sentLED == nil || *l.sentLED != cmd.LED {
		if err := hc.SetLEDColor(cmd.LED); err != nil {
			return l.writeFailed("led", err)
		}
		led := cmd.LED
		l.sentLED = &led
	}
	return nil
}

// writeFailed drops the sent-cache so the frame is retried next cycle; a
// disconnected link ends the loop.
func (l *Loop) writeFailed(what string, err error) error {
	l.sentDrive, l.sentLED = nil, nil
	if errors.Is(err, device.ErrNotConnected) {
		return fmt.Errorf("hub: %w: %w", session.ErrLinkLost, err)
	}
	l.logger.WithError(err).WithField("frame", what).Warn("Hub write failed")
	return nil
}

// Snapshot captures the current status for telemetry
func (l *Loop) Snapshot() telemetry.Snapshot {
	st := l.tr.Status()
	metrics := l.links.Gamepad().GetMetrics()
	dir := "fwd"
	if st.Direction < 0 {
		dir = "rev"
	}
	return telemetry.Snapshot{
		Time:               l.clock.Now(),
		Cycle:              l.cycles,
		Mode:               st.Mode.String(),
		SpeedLimit:         st.SpeedLimit,
		Direction:          dir,
		Headlights:         st.Headlights,
		Taillights:         st.Taillights,
		DriveRamp:          st.DriveRamp,
		SteerRamp:          st.SteerRamp,
		Drive:              l.cmd.Drive,
		Steer:              l.cmd.Steer,
		Lights:             l.cmd.Lights.String(),
		LED:                l.cmd.LED.String(),
		Gamepad:            l.links.State(session.LinkGamepad).String(),
		Hub:                l.links.State(session.LinkHub).String(),
		ReportsReceived:    metrics.Put,
		ReportsOverwritten: metrics.Overwritten,
		ReportsMalformed:   l.malformed,
	}
}

// publishStatus logs the status line and hands the snapshot to the publisher.
// It never blocks: an unpublished snapshot is replaced by the newer one.
func (l *Loop) publishStatus() {
	l.logger.Info(l.tr.Status().String())
	if l.opts.Sink == nil {
		return
	}
	l.pubOnce.Do(l.startPublisher)
	l.status.Put(l.Snapshot())
}

func (l *Loop) startPublisher() {
	ctx, cancel := context.WithCancel(context.Background())
	l.pubCancel = cancel
	l.pubDone = make(chan struct{})

	groutine.Go(ctx, "status-publisher", func(ctx context.Context) {
		defer close(l.pubDone)
		for {
			select {
			case <-ctx.Done():
				// flush the last snapshot so the final status is not lost
				if snap, ok := l.status.TryTake(); ok {
					l.publish(context.Background(), snap)
				}
				return
			case snap := <-l.status.C():
				l.status.MarkTaken()
				l.publish(ctx, snap)
			}
		}
	})
}

func (l *Loop) publish(ctx context.Context, snap telemetry.Snapshot) {
	ctx, cancel := context.WithTimeout(ctx, l.opts.PublishTimeout)
	defer cancel()
	if err := l.opts.Sink.Publish(ctx, snap); err != nil {
		l.logger.WithError(err).WithField("cycle", snap.Cycle).Warn("Failed to publish status")
	}
}

// stopPublisher stops the publisher after it flushes any pending snapshot
func (l *Loop) stopPublisher() {
	if l.pubCancel == nil {
		return
	}
	l.pubCancel()
	<-l.pubDone
	l.pubCancel = nil
}

// Shutdown sends one best-effort zero-speed, lights-off command and releases both links
func (l *Loop) Shutdown() {
	if hc := l.links.Hub(); hc != nil {
		if err := hc.Drive(0, 0, hub.LightsOff); err != nil {
			l.logger.WithError(err).Warn("Failed to send final stop command")
		}
	}
	l.stopPublisher()
	if err := l.links.DisconnectAll(); err != nil {
		l.logger.WithError(err).Warn("Disconnect failed")
	}
}
