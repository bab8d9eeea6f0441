package loader

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/source"
)

// SequencePattern matches the per-period sequence export files.
const SequencePattern = "Sequences *.csv"

// loadConcurrency bounds concurrent per-file reads.
const loadConcurrency = 4

// LoadResult is a combined, chronological event stream plus the load
// diagnostics the caller surfaces.
type LoadResult struct {
	// Events sorted ascending by timestamp, exact duplicates removed.
	Events []model.Event

	// Files is the number of export files combined.
	Files int

	// Dropped counts malformed rows (bad timestamp or code).
	Dropped int

	// Duplicates counts exact duplicate rows removed (the later copy of
	// each duplicate pair is kept).
	Duplicates int
}

// LoadSequences loads and combines every sequence export from the source.
func LoadSequences(ctx context.Context, src source.Source) (*LoadResult, error) {
	return LoadEvents(ctx, src, SequencePattern)
}

// LoadEvents loads all files matching pattern concurrently, combines them
// into one stream, sorts by timestamp and removes exact duplicates.
func LoadEvents(ctx context.Context, src source.Source, pattern string) (*LoadResult, error) {
	names, err := src.List(ctx, pattern)
	if err != nil {
		return nil, err
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoFiles, pattern)
	}

	perFile := make([][]model.Event, len(names))
	perFileDropped := make([]int, len(names))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(loadConcurrency)
	for i, name := range names {
		i, name := i, name
		g.Go(func() error {
			rc, err := src.Open(ctx, name)
			if err != nil {
				return fmt.Errorf("loader: open %s: %w", name, err)
			}
			defer rc.Close()

			events, dropped, err := NewParser().ParseEvents(rc)
			if err != nil {
				return fmt.Errorf("loader: parse %s: %w", name, err)
			}
			perFile[i] = events
			perFileDropped[i] = dropped
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &LoadResult{Files: len(names)}
	var combined []model.Event
	for i := range perFile {
		combined = append(combined, perFile[i]...)
		result.Dropped += perFileDropped[i]
	}

	sort.SliceStable(combined, func(i, j int) bool {
		return combined[i].Timestamp.Before(combined[j].Timestamp)
	})

	result.Events = dedupeKeepLast(combined)
	result.Duplicates = len(combined) - len(result.Events)
	return result, nil
}

type eventKey struct {
	unixNano int64
	code     int64
	message  string
}

// dedupeKeepLast removes exact duplicate rows, keeping the last occurrence
// of each. Export periods overlap, so the same row often arrives twice.
func dedupeKeepLast(events []model.Event) []model.Event {
	last := make(map[eventKey]int, len(events))
	for i, ev := range events {
		last[keyOf(ev)] = i
	}
	out := make([]model.Event, 0, len(last))
	for i, ev := range events {
		if last[keyOf(ev)] == i {
			out = append(out, ev)
		}
	}
	return out
}

func keyOf(ev model.Event) eventKey {
	return eventKey{unixNano: ev.Timestamp.UnixNano(), code: ev.Code, message: ev.Message}
}
