// Package model defines core data structures for HydroView.
package model

import (
	"fmt"
	"time"
)

// Event is a single timestamped state-code record from the pilot's
// sequence log.
type Event struct {
	// Timestamp is the absolute time the state was entered.
	Timestamp time.Time

	// Code is the source system's raw numeric state identifier.
	Code int64

	// Message is the free-text description attached to the record.
	Message string
}

// Category is one of the five coarse buckets a raw State Type maps to.
type Category string

const (
	CategoryProduction    Category = "Production"
	CategoryMaintenance   Category = "Maintenance"
	CategoryTesting       Category = "Testing"
	CategorySystem        Category = "System"
	CategoryManufacturing Category = "Manufacturing"
)

// Categories lists all categories in display order.
var Categories = []Category{
	CategoryProduction,
	CategoryMaintenance,
	CategorySystem,
	CategoryTesting,
	CategoryManufacturing,
}

// Valid reports whether c is one of the five known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryProduction, CategoryMaintenance, CategoryTesting,
		CategorySystem, CategoryManufacturing:
		return true
	}
	return false
}

// State describes one row of the Sequence States mapping table.
type State struct {
	// ID matches Event.Code.
	ID int64

	// Name is the human-readable sequence name (unused by the core).
	Name string

	// Type is the raw State Type string, e.g. "Water Production".
	Type string
}

// StateMapping resolves raw state codes to their State rows.
// It is a read-only reference table loaded once per dataset.
type StateMapping struct {
	states map[int64]State

	// Version fingerprints the mapping contents for cache keying.
	Version string
}

// NewStateMapping builds a mapping from the given state rows.
// Later duplicates of the same ID win, matching the CSV loader's
// keep-last behavior.
func NewStateMapping(states []State) *StateMapping {
	m := &StateMapping{states: make(map[int64]State, len(states))}
	for _, s := range states {
		m.states[s.ID] = s
	}
	m.Version = fmt.Sprintf("v%d", len(m.states))
	return m
}

// Lookup returns the state row for a code.
func (m *StateMapping) Lookup(code int64) (State, bool) {
	s, ok := m.states[code]
	return s, ok
}

// Len returns the number of distinct state codes.
func (m *StateMapping) Len() int {
	return len(m.states)
}

// Date is a calendar day. It is comparable and safe as a map key.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// DateOf returns the calendar date of t in its own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Next returns the following calendar day.
func (d Date) Next() Date {
	t := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
	return DateOf(t)
}

// Midnight returns the start of the day in loc.
func (d Date) Midnight(loc *time.Location) time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, loc)
}

// Before reports whether d precedes other.
func (d Date) Before(other Date) bool {
	if d.Year != other.Year {
		return d.Year < other.Year
	}
	if d.Month != other.Month {
		return d.Month < other.Month
	}
	return d.Day < other.Day
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// SegmentedEvent is one row of the segmenter output: an event's duration
// (or a split portion of it) attributed to a single calendar day.
type SegmentedEvent struct {
	// Timestamp is the original start time, or midnight of the advanced
	// day for continuation portions produced by a split policy.
	Timestamp time.Time `json:"timestamp"`

	// Category the event's State Type mapped to.
	Category Category `json:"category"`

	// Date is the calendar day this portion is attributed to.
	Date Date `json:"date"`

	// Hour is the local hour of Timestamp.
	Hour int `json:"hour"`

	// DurationMinutes is the non-negative duration attributed to this
	// (event, date) pair.
	DurationMinutes float64 `json:"duration_minutes"`
}

// MinutesPerDay is the day budget the overflow policies enforce.
const MinutesPerDay = 24 * 60
