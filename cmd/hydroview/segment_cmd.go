package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/export"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/segment"
	"github.com/hydroview/hydroview/pkg/tui"
)

var segmentOutput string

var segmentCmd = &cobra.Command{
	Use:   "segment",
	Short: "Segment the sequence exports into a runtime table",
	Long: `Load the sequence CSV exports, apply the state mapping, and write the
segmented runtime table.

The output format follows the file extension: .json, .xlsx, or .parquet.
Without --output the table is written to stdout as JSON.

Examples:
  hydroview segment --data ./exports
  hydroview segment --policy clean_split -o segments.xlsx
  hydroview segment --include Production,Maintenance -o segments.parquet`,
	RunE: runSegment,
}

func init() {
	segmentCmd.Flags().StringVarP(&segmentOutput, "output", "o", "", "Output file (.json, .xlsx, .parquet); stdout when empty")
	rootCmd.AddCommand(segmentCmd)
}

func runSegment(cmd *cobra.Command, args []string) error {
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

	start := time.Now()

	result, err := loader.LoadSequences(ctx, src)
	if err != nil {
		return fmt.Errorf("loading sequences: %w", err)
	}

	mapping, err := loader.LoadStates(ctx, src)
	if err != nil {
		return fmt.Errorf("loading state table: %w", err)
	}

	table, err := segment.New().Segment(result.Events, mapping, opts)
	if err != nil {
		return err
	}

	if verbose {
		tui.PrintLoadResult(result)
		fmt.Fprintf(os.Stderr, "  segmented %d rows in %s\n", len(table), elapsed(start))
	}

	if segmentOutput == "" {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(table)
	}

	out, err := os.Create(segmentOutput)
	if err != nil {
		return err
	}
	defer out.Close()

	switch filepath.Ext(segmentOutput) {
	case ".xlsx":
		err = export.WriteXLSX(out, table)
	case ".parquet":
		err = export.WriteParquet(out, table)
	case ".json":
		err = json.NewEncoder(out).Encode(table)
	default:
		return fmt.Errorf("unsupported output extension %q (use .json, .xlsx, or .parquet)", filepath.Ext(segmentOutput))
	}
	if err != nil {
		return err
	}

	if verbose {
		tui.PrintDone(fmt.Sprintf("wrote %s (%d rows)", segmentOutput, len(table)))
	}
	return nil
}
