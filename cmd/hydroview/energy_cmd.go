package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/pkg/analytics"
	"github.com/hydroview/hydroview/pkg/config"
)

var (
	energyDir       string
	energyTimestamp string
	energyValue     string
)

var energyCmd = &cobra.Command{
	Use:   "energy",
	Short: "Compute energy-consumption rollups from telemetry exports",
	Long: `Run the energy rollups over the telemetry CSV exports and print the
report as JSON: trailing-week average, week-over-week change, peak,
off-peak average, and daily/hourly/weekday patterns.

Examples:
  hydroview energy
  hydroview energy --telemetry ./exports/telemetry
  hydroview energy --value-column power_kw`,
	RunE: runEnergy,
}

func init() {
	cfg := config.Global().Get()

	energyCmd.Flags().StringVar(&energyDir, "telemetry", cfg.Data.TelemetryDir, "Directory holding the telemetry CSV exports")
	energyCmd.Flags().StringVar(&energyTimestamp, "timestamp-column", "timestamp", "Telemetry timestamp column")
	energyCmd.Flags().StringVar(&energyValue, "value-column", "kw", "Telemetry kW reading column")

	rootCmd.AddCommand(energyCmd)
}

func runEnergy(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	energy, err := analytics.NewEnergy(analytics.Options{
		TimestampColumn: energyTimestamp,
		ValueColumn:     energyValue,
	})
	if err != nil {
		return err
	}
	defer energy.Close()

	report, err := energy.Report(ctx, filepath.Join(energyDir, "Telemetry *.csv"))
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
