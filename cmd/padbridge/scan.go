package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/srg/padbridge/internal/session"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan for gamepads and hubs",
	Long: `Scan for nearby Bluetooth LE devices and classify them as gamepad, hub or other.

The scan ends early once both a gamepad and a hub have been found.`,
	RunE: runScan,
}

func init() {
	scanCmd.Flags().DurationP("duration", "d", 0, "Scan duration (default from config, 10s)")
	scanCmd.Flags().StringP("format", "f", "table", "Output format (table, json)")
}

type scanEntry struct {
	Name     string   `json:"name"`
	Address  string   `json:"address"`
	RSSI     int      `json:"rssi"`
	Kind     string   `json:"kind"`
	Services []string `json:"services,omitempty"`
}

func runScan(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("invalid format '%s': must be one of [table json]", format)
	}

	cfg, logger, err := configureLogger(cmd)
	if err != nil {
		return err
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	opts, err := cfg.SessionOptions()
	if err != nil {
		return err
	}
	if d, _ := cmd.Flags().GetDuration("duration"); d > 0 {
		opts.ScanTimeout = d
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mgr := session.NewManager(newAdapter(logger), opts, logger)

	out := cmd.OutOrStdout()
	progress := NewProgressPrinter(out, "Scanning for gamepads and hubs", "Scanning")
	if format == "table" {
		progress.Start()
	}
	result, err := mgr.Scan(ctx)
	progress.Stop()
	if err != nil {
		return err
	}

	if format == "json" {
		return writeScanJSON(out, result.Devices)
	}
	return writeScanTable(out, result.Devices)
}

func scanEntries(devices []session.DiscoveredDevice) []scanEntry {
	entries := make([]scanEntry, 0, len(devices))
	for _, d := range devices {
		entries = append(entries, scanEntry{
			Name:     d.Name,
			Address:  d.Address,
			RSSI:     d.RSSI,
			Kind:     d.Kind.String(),
			Services: d.Services,
		})
	}
	return entries
}

func writeScanJSON(w io.Writer, devices []session.DiscoveredDevice) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(scanEntries(devices))
}

func kindLabel(k session.DeviceKind) string {
	switch k {
	case session.KindGamepad:
		return color.GreenString(k.String())
	case session.KindHub:
		return color.CyanString(k.String())
	default:
		return k.String()
	}
}

func writeScanTable(w io.Writer, devices []session.DiscoveredDevice) error {
	if len(devices) == 0 {
		fmt.Fprintln(w, "No devices discovered")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tNAME\tADDRESS\tRSSI\tSERVICES")
	fmt.Fprintln(tw, strings.Repeat("-", 72))

	for _, d := range devices {
		name := d.Name
		if name == "" {
			name = "(unnamed)"
		}
		if len(name) > 24 {
			name = name[:21] + "..."
		}
		services := strings.Join(d.Services, ",")
		if len(services) > 30 {
			services = services[:27] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d dBm\t%s\n", kindLabel(d.Kind), name, d.Address, d.RSSI, services)
	}
	return tw.Flush()
}
