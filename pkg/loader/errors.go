package loader

import "errors"

var (
	// ErrInvalidCSV is returned when a file has no parseable header.
	ErrInvalidCSV = errors.New("loader: invalid CSV format")

	// ErrMissingColumn is returned when a required column is missing.
	ErrMissingColumn = errors.New("loader: required column missing")

	// ErrNoFiles is returned when no export files match the pattern.
	ErrNoFiles = errors.New("loader: no matching files")
)
