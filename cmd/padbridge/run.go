package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padbridge/internal/config"
	"github.com/srg/padbridge/internal/control"
	"github.com/srg/padbridge/internal/session"
	"github.com/srg/padbridge/internal/telemetry"
	"github.com/srg/padbridge/internal/translator"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect the gamepad and hub and start driving",
	Long: `Scan for a gamepad and a Technic Move hub (or use the given addresses),
connect both, calibrate the hub's steering and run the control loop until
Ctrl+C or a link is lost.

Default controls:
  Left stick Y    drive (or RT gas / LT brake with --drive-source pedals)
  Right stick X   steering
  LT / RT         brake / boost multiplier (stick drive)
  X               emergency stop
  LB              cycle mode (normal, turbo, slow)
  Y               toggle direction
  A / B           headlights / taillights
  D-pad up/down   speed limit +/-
  D-pad right/left  cycle drive / steering ramp`,
	RunE: runBridge,
}

func init() {
	runCmd.Flags().String("gamepad", "", "Gamepad address (skips scanning for it)")
	runCmd.Flags().String("hub", "", "Hub address (skips scanning for it)")
	runCmd.Flags().String("mode", "", "Initial control mode (normal, turbo, slow)")
	runCmd.Flags().String("drive-source", "", "Drive input (stick, pedals)")
	runCmd.Flags().String("mqtt-broker", "", "Publish status to this MQTT broker (tcp://host:port)")
	runCmd.Flags().String("redis", "", "Publish status to this Redis server (host:port)")
}

// applyRunFlags overrides config values with explicitly set flags
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if v, _ := flags.GetString("mode"); v != "" {
		cfg.Translator.InitialMode = v
	}
	if v, _ := flags.GetString("drive-source"); v != "" {
		cfg.Translator.DriveSource = v
	}
	if v, _ := flags.GetString("mqtt-broker"); v != "" {
		cfg.Telemetry.MQTT.Broker = v
	}
	if v, _ := flags.GetString("redis"); v != "" {
		cfg.Telemetry.Redis.Addr = v
	}
	return cfg.Validate()
}

// buildSinks always logs status; MQTT and Redis are added when configured.
// A sink that cannot connect is skipped with a warning.
func buildSinks(ctx context.Context, cfg *config.Config, logger *logrus.Logger) telemetry.Fanout {
	sinks := telemetry.Fanout{telemetry.NewLogSink(logger, logrus.DebugLevel)}

	if opts, ok := cfg.MQTTOptions(); ok {
		sink, err := telemetry.NewMQTTSink(opts, logger)
		if err != nil {
			logger.WithError(err).Warn("MQTT status publishing disabled")
		} else {
			sinks = append(sinks, sink)
		}
	}
	if opts, ok := cfg.RedisOptions(); ok {
		sink, err := telemetry.NewRedisSink(ctx, opts)
		if err != nil {
			logger.WithError(err).Warn("Redis status publishing disabled")
		} else {
			logger.WithField("addr", opts.Addr).Info("Publishing status to Redis")
			sinks = append(sinks, sink)
		}
	}
	return sinks
}

func runBridge(cmd *cobra.Command, _ []string) error {
	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sessOpts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	trCfg, err := cfg.TranslatorConfig()
	if err != nil {
		return err
	}

	tr, err := translator.New(trCfg, logger)
	if err != nil {
		return err
	}
	mgr := session.NewManager(newAdapter(logger), sessOpts, logger)

	out := cmd.OutOrStdout()
	gamepadAddr, _ := cmd.Flags().GetString("gamepad")
	hubAddr, _ := cmd.Flags().GetString("hub")
	phase := "Connecting"
	if gamepadAddr == "" || hubAddr == "" {
		phase = "Scanning"
	}
	progress := NewProgressPrinter(out, "Connecting", phase)
	progress.Start()
	result := mgr.ConnectAll(ctx, gamepadAddr, hubAddr)
	progress.Stop()
	if !result.OK() {
		if dErr := mgr.DisconnectAll(); dErr != nil {
			logger.WithError(dErr).Warn("Cleanup after failed connect")
		}
		return result.Err()
	}

	sinks := buildSinks(ctx, cfg, logger)
	defer func() {
		if err := sinks.Close(); err != nil {
			logger.WithError(err).Debug("Closing status sinks")
		}
	}()

	loopOpts, err := cfg.LoopOptions(sinks)
	if err != nil {
		return err
	}
	loop := control.New(mgr, tr, loopOpts, logger)

	fmt.Fprintf(out, "%s %s\n", color.GreenString("Connected."), tr.Status())
	fmt.Fprintln(out, "Press Ctrl+C to stop.")

	if err := loop.Run(ctx); err != nil {
		if errors.Is(err, session.ErrLinkLost) {
			return fmt.Errorf("%w: %w", ErrConnectionLost, err)
		}
		return err
	}

	fmt.Fprintln(out, color.YellowString("Stopped."))
	return nil
}
