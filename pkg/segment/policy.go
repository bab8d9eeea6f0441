package segment

import (
	"errors"
	"fmt"
	"strings"
)

// Policy determines how events and days whose attributed duration would
// exceed 24 hours are resolved.
type Policy int

const (
	// PolicyHide removes every calendar day whose total exceeds 24 hours.
	PolicyHide Policy = iota
	// PolicyCleanSplit splits across midnight and additionally suppresses
	// duplicate Maintenance/System rows and caps their day portions.
	PolicyCleanSplit
	// PolicyRawSplit splits events across midnight chronologically.
	PolicyRawSplit
	// PolicyShowAll keeps raw durations without day-boundary correction.
	PolicyShowAll
)

// ErrUnknownPolicy indicates a policy token that is not one of
// hide, clean_split, raw_split or show_all.
var ErrUnknownPolicy = errors.New("segment: unknown policy")

func (p Policy) String() string {
	switch p {
	case PolicyHide:
		return "hide"
	case PolicyCleanSplit:
		return "clean_split"
	case PolicyRawSplit:
		return "raw_split"
	case PolicyShowAll:
		return "show_all"
	default:
		return "unknown"
	}
}

// ParsePolicy parses a string into a Policy. Unknown tokens are an error,
// never a silent default.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "hide":
		return PolicyHide, nil
	case "clean_split", "clean-split", "clean split":
		return PolicyCleanSplit, nil
	case "raw_split", "raw-split", "raw split":
		return PolicyRawSplit, nil
	case "show_all", "show-all", "show all":
		return PolicyShowAll, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownPolicy, s)
	}
}

func (p Policy) valid() bool {
	switch p {
	case PolicyHide, PolicyCleanSplit, PolicyRawSplit, PolicyShowAll:
		return true
	}
	return false
}
