package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padbridge/internal/config"
	"github.com/srg/padbridge/internal/hub"
	"github.com/srg/padbridge/internal/session"
)

var hubCmd = &cobra.Command{
	Use:   "hub",
	Short: "Bench-test a Technic Move hub without a gamepad",
	Long: `Connect to a hub (scanning for one unless --address is given), pair and
calibrate it, send a single command and disconnect.`,
}

var hubMotorCmd = &cobra.Command{
	Use:   "motor",
	Short: "Run one motor port at a fixed power, then stop it",
	Example: `  padbridge hub motor --port A --power 50 --duration 2s
  padbridge hub motor --port B --power -30 --float`,
	RunE: runHubMotor,
}

var hubLEDCmd = &cobra.Command{
	Use:   "led",
	Short: "Set the hub LED to a named color or an RGB value",
	Example: `  padbridge hub led --color green
  padbridge hub led --rgb "#ff8000"`,
	RunE: runHubLED,
}

func init() {
	hubCmd.PersistentFlags().String("address", "", "Hub address (skips scanning)")

	hubMotorCmd.Flags().String("port", "A", "Motor port (A, B, C, D, AB, CD)")
	hubMotorCmd.Flags().Int("power", 50, "Power -100..100")
	hubMotorCmd.Flags().Duration("duration", time.Second, "How long to run before stopping")
	hubMotorCmd.Flags().Bool("float", false, "Let the motor coast instead of braking when stopping")

	hubLEDCmd.Flags().String("color", "", "Color name (black, pink, purple, blue, light_blue, cyan, green, yellow, orange, red, white)")
	hubLEDCmd.Flags().String("rgb", "", "RGB color as #rrggbb")
	hubLEDCmd.MarkFlagsMutuallyExclusive("color", "rgb")
	hubLEDCmd.MarkFlagsOneRequired("color", "rgb")

	hubCmd.AddCommand(hubMotorCmd)
	hubCmd.AddCommand(hubLEDCmd)
}

// withHub connects to the hub, runs fn, and always disconnects
func withHub(cmd *cobra.Command, cfg *config.Config, logger *logrus.Logger, fn func(ctx context.Context, hc *hub.Client) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	mgr := session.NewManager(newAdapter(logger), opts, logger)
	defer func() {
		if err := mgr.DisconnectAll(); err != nil {
			logger.WithError(err).Warn("Disconnect failed")
		}
	}()

	address, _ := cmd.Flags().GetString("address")
	if address == "" {
		found, err := mgr.Scan(ctx)
		if err != nil {
			return err
		}
		if found.Hub == nil {
			return fmt.Errorf("hub: %w", session.ErrNoDevice)
		}
		address = found.Hub.Address
	}

	if err := mgr.ConnectHub(ctx, address); err != nil {
		return err
	}
	return fn(ctx, mgr.Hub())
}

func runHubMotor(cmd *cobra.Command, _ []string) error {
	portName, _ := cmd.Flags().GetString("port")
	port, err := hub.ParsePort(portName)
	if err != nil {
		return err
	}
	power, _ := cmd.Flags().GetInt("power")
	if power < -100 || power > 100 {
		return fmt.Errorf("invalid power %d: must be within -100..100", power)
	}
	duration, _ := cmd.Flags().GetDuration("duration")
	end := hub.EndBrake
	if coast, _ := cmd.Flags().GetBool("float"); coast {
		end = hub.EndFloat
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withHub(cmd, cfg, logger, func(ctx context.Context, hc *hub.Client) error {
		if err := hc.MotorPower(port, power); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Port %s at power %d for %s\n", strings.ToUpper(portName), power, duration)

		select {
		case <-ctx.Done():
		case <-time.After(duration):
		}
		return hc.MotorStop(port, end)
	})
}

func runHubLED(cmd *cobra.Command, _ []string) error {
	var send func(hc *hub.Client) error

	if name, _ := cmd.Flags().GetString("color"); name != "" {
		c, err := hub.ParseColor(name)
		if err != nil {
			return err
		}
		send = func(hc *hub.Client) error { return hc.SetLEDColor(c) }
	} else {
		value, _ := cmd.Flags().GetString("rgb")
		rgb, err := config.ParseRGB(value)
		if err != nil {
			return err
		}
		send = func(hc *hub.Client) error { return hc.SetLEDRGB(rgb.R, rgb.G, rgb.B) }
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}
	cmd.SilenceUsage = true

	return withHub(cmd, cfg, logger, func(_ context.Context, hc *hub.Client) error {
		return send(hc)
	})
}
