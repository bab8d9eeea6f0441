// Package source abstracts where the pilot's CSV exports live: the local
// data directory, or the S3 bucket the pilot units sync their exports to.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

var (
	// ErrNotFound is returned when a named file does not exist.
	ErrNotFound = errors.New("source: file not found")

	// ErrNoFiles is returned when a pattern matches nothing.
	ErrNoFiles = errors.New("source: no files match pattern")
)

// Source lists and opens export files.
type Source interface {
	// List returns the names of files matching the glob pattern, in
	// lexical order.
	List(ctx context.Context, pattern string) ([]string, error)

	// Open opens a named file for reading. The caller closes it.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// Dir serves files from a local directory tree.
type Dir struct {
	root string
}

// NewDir returns a Source over the given directory.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// List implements Source using filepath globbing relative to the root.
func (d *Dir) List(ctx context.Context, pattern string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	matches, err := filepath.Glob(filepath.Join(d.root, pattern))
	if err != nil {
		return nil, fmt.Errorf("source: bad pattern %q: %w", pattern, err)
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		rel, err := filepath.Rel(d.root, m)
		if err != nil {
			return nil, err
		}
		names = append(names, rel)
	}
	return names, nil
}

// Open implements Source.
func (d *Dir) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(d.root, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return f, err
}
