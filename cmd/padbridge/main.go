package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"unicode"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/padbridge/internal/device"
	goble "github.com/srg/padbridge/internal/device/go-ble"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// formatVersion adds 'v' prefix if version starts with a digit
func formatVersion(ver string) string {
	if len(ver) > 0 && unicode.IsDigit(rune(ver[0])) {
		return "v" + ver
	}
	return ver
}

// newAdapter opens the local Bluetooth controller (can be overridden in tests)
var newAdapter = func(logger *logrus.Logger) device.Adapter {
	return goble.NewAdapter(logger)
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "padbridge",
	Short: "Drive a LEGO Technic Move hub with a Bluetooth gamepad",
	Long: `Bridge between a Bluetooth LE gamepad (Xbox Wireless Controller) and a
LEGO Technic Move hub:

- Scan for nearby controllers and hubs
- Connect both, pair and calibrate the hub's steering
- Translate sticks, triggers and buttons into drive, steering and light commands
- Publish periodic status to MQTT and/or Redis
- Bench-test hub motors and LED without a controller

Press Ctrl+C to stop; the hub always receives a final stop command.`,
	Version: fmt.Sprintf("%s (commit %s, built %s)", formatVersion(version), commit, date),
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Ctrl+C is a normal exit, not an error - exit silently
		if errors.Is(err, context.Canceled) {
			return
		}
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", FormatUserError(err))
		os.Exit(1)
	}
}

func init() {
	// Silence Cobra's "Error:" prefix - main() prints clean errors
	rootCmd.SilenceErrors = true

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(hubCmd)

	// Global flags
	rootCmd.PersistentFlags().String("log-level", "", "Log level (debug, info, warn, error); overrides the config file")
	rootCmd.PersistentFlags().Bool("verbose", false, "Shorthand for --log-level debug")
	rootCmd.PersistentFlags().StringP("config", "c", "", "YAML configuration file")

	// Add -v as a short flag for --version
	rootCmd.Flags().BoolP("version", "v", false, "Show version information")
}
