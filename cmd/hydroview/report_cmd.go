package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/segment"
	"github.com/hydroview/hydroview/pkg/tui"
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print a runtime report to the terminal",
	Long: `Load the sequence exports and print a styled runtime summary:
total runtime, production/maintenance split, and time per category.

Examples:
  hydroview report --data ./exports
  hydroview report --policy raw_split`,
	RunE: runReport,
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

func runReport(cmd *cobra.Command, args []string) error {
	cfg := config.Global().Get()

	opts, err := segmentOptions(cfg)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	src, err := newSource(cfg)
	if err != nil {
		return err
	}

	tui.PrintHeader("v" + version)

	bar := tui.ShowProgress(-1, "  loading exports")
	result, err := loader.LoadSequences(ctx, src)
	if err != nil {
		bar.Finish()
		return fmt.Errorf("loading sequences: %w", err)
	}

	mapping, err := loader.LoadStates(ctx, src)
	bar.Finish()
	if err != nil {
		return fmt.Errorf("loading state table: %w", err)
	}

	tui.PrintLoadResult(result)

	table, err := segment.New().Segment(result.Events, mapping, opts)
	if err != nil {
		return err
	}

	summary := segment.Summarize(table)
	tui.PrintSummary(&summary)
	tui.PrintCategoryTotals(segment.TotalByCategory(table))
	return nil
}
