package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hydroview/hydroview/pkg/config"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/segment"
	"github.com/hydroview/hydroview/pkg/tui"
	"github.com/hydroview/hydroview/pkg/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the export directory and reprint the report on change",
	Long: `Watch the export directory for new or rewritten CSV drops and print a
fresh runtime report after each change.

Examples:
  hydroview watch --data ./exports
  hydroview watch --policy clean_split`,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
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
	if cfg.S3.Bucket != "" {
		return fmt.Errorf("watch only works on a local export directory")
	}

	refresh := func() error {
		result, err := loader.LoadSequences(ctx, src)
		if err != nil {
			return err
		}
		mapping, err := loader.LoadStates(ctx, src)
		if err != nil {
			return err
		}
		table, err := segment.New().Segment(result.Events, mapping, opts)
		if err != nil {
			return err
		}

		tui.PrintLoadResult(result)
		summary := segment.Summarize(table)
		tui.PrintSummary(&summary)
		return nil
	}

	tui.PrintHeader("v" + version)
	if err := refresh(); err != nil {
		// A cold start with no drops yet is fine; keep watching.
		tui.PrintError(err)
	}

	watcher, err := watch.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watcher.OnChange = func(path string) error {
		fmt.Println()
		tui.PrintDone("change detected: " + path)
		return refresh()
	}
	watcher.OnError = func(err error) {
		tui.PrintError(err)
	}

	if err := watcher.Watch(dataDir, loader.SequencePattern); err != nil {
		return err
	}
	if err := watcher.Watch(dataDir, loader.StatesFile); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("  watching", dataDir, "(Ctrl+C to stop)")
	if err := watcher.Run(ctx); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
