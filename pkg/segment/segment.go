// Package segment implements the sequence duration segmenter: it turns a
// raw stream of timestamped state events into a day-bounded,
// category-labeled duration table under a caller-selected overflow policy,
// plus the aggregate views built on that table.
package segment

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/hydroview/hydroview/internal/model"
)

// stateCategories translates raw State Type strings to categories.
// State Types absent from this table are dropped from the output.
var stateCategories = map[string]model.Category{
	"Water Production":        model.CategoryProduction,
	"Cleaning & Disinfection": model.CategoryMaintenance,
	"Testing":                 model.CategoryTesting,
	"System Management":       model.CategorySystem,
	"Manufacturing":           model.CategoryManufacturing,
	"In-Field Self Test":      model.CategoryTesting,
}

// maintenanceDayCap is the longest day portion a split Maintenance or
// System span may occupy under the clean-split policy.
const maintenanceDayCap = 8 * 60

// Options selects the overflow policy and category visibility for one
// Segment call. Selections are per-call parameters, never process state.
type Options struct {
	// Policy resolves events and days exceeding the 24-hour budget.
	Policy Policy

	// Include restricts output to the given categories. The filter is
	// applied before durations are computed, so excluded rows do not
	// take part in neighboring deltas. Nil means all categories.
	Include map[model.Category]bool

	// Location for calendar-date and hour attribution. Nil means each
	// timestamp's own location.
	Location *time.Location
}

// Segmenter computes day-bounded duration tables from raw event streams.
// It holds no state; every call derives a fresh table from its inputs.
type Segmenter struct{}

// New returns a Segmenter.
func New() *Segmenter {
	return &Segmenter{}
}

// Segment sorts events chronologically, computes each event's duration as
// the delta to the next event (the tail gets the median of the rest),
// attaches date, hour and category, and applies the overflow policy.
//
// Empty input, or input that is empty after category filtering, yields an
// empty table and no error. An invalid policy is rejected immediately.
func (s *Segmenter) Segment(events []model.Event, mapping *model.StateMapping, opts Options) ([]model.SegmentedEvent, error) {
	if !opts.Policy.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(opts.Policy))
	}

	type staged struct {
		ts  time.Time
		cat model.Category
	}

	// Categorize and filter first: rows dropped here must not bias the
	// deltas measured between the rows that remain.
	rows := make([]staged, 0, len(events))
	for _, ev := range events {
		st, ok := mapping.Lookup(ev.Code)
		if !ok {
			continue
		}
		cat, ok := stateCategories[st.Type]
		if !ok {
			continue
		}
		if opts.Include != nil && !opts.Include[cat] {
			continue
		}
		ts := ev.Timestamp
		if opts.Location != nil {
			ts = ts.In(opts.Location)
		}
		rows = append(rows, staged{ts: ts, cat: cat})
	}
	if len(rows) == 0 {
		return []model.SegmentedEvent{}, nil
	}

	// Stable: equal timestamps keep their input order, so reruns on the
	// same input are byte-identical.
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].ts.Before(rows[j].ts)
	})

	durations := make([]float64, len(rows))
	for i := 0; i < len(rows)-1; i++ {
		d := rows[i+1].ts.Sub(rows[i].ts).Minutes()
		if d < 0 {
			d = -d
		}
		durations[i] = d
	}
	durations[len(rows)-1] = median(durations[:len(rows)-1])

	table := make([]model.SegmentedEvent, len(rows))
	for i, r := range rows {
		table[i] = model.SegmentedEvent{
			Timestamp:       r.ts,
			Category:        r.cat,
			Date:            model.DateOf(r.ts),
			Hour:            r.ts.Hour(),
			DurationMinutes: durations[i],
		}
	}

	switch opts.Policy {
	case PolicyShowAll:
		return table, nil
	case PolicyHide:
		return hideOverfullDays(table), nil
	case PolicyRawSplit:
		return splitOverflow(table, false), nil
	default: // PolicyCleanSplit
		return cleanPostPass(splitOverflow(table, true)), nil
	}
}

// median of the pandas kind: even-length input averages the two middle
// values. An empty input yields 0, so a single event carries no duration.
func median(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// hideOverfullDays drops every calendar day whose total attributed
// duration exceeds the day budget. Days are dropped whole, not truncated.
func hideOverfullDays(table []model.SegmentedEvent) []model.SegmentedEvent {
	totals := make(map[model.Date]float64)
	for _, row := range table {
		totals[row.Date] += row.DurationMinutes
	}
	out := make([]model.SegmentedEvent, 0, len(table))
	for _, row := range table {
		if totals[row.Date] <= model.MinutesPerDay {
			out = append(out, row)
		}
	}
	return out
}

// splitAcc is the accumulator threaded through the split fold.
type splitAcc struct {
	date     model.Date
	dayTotal float64
	lastCat  model.Category
	haveLast bool
}

// splitOverflow folds over the chronological table splitting any event
// whose duration would push the running day total past the 24-hour
// budget: the fitting portion stays on the current day and the remainder
// spills into successive days as midnight-stamped continuation rows.
// Portions of one event always sum to its original duration.
//
// When clean is set, consecutive Maintenance/System rows are suppressed
// as duplicates and their spilled day portions are capped at 8 hours.
func splitOverflow(table []model.SegmentedEvent, clean bool) []model.SegmentedEvent {
	out := make([]model.SegmentedEvent, 0, len(table))
	var acc splitAcc

	for i, row := range table {
		if i == 0 || row.Date != acc.date {
			// New calendar day: the running total restarts at the
			// event's wall-clock offset into its day, so splits land
			// on actual midnight.
			acc.date = row.Date
			acc.dayTotal = minuteOfDay(row.Timestamp)
			acc.haveLast = false
		}

		dup := clean && acc.haveLast && acc.lastCat == row.Category && capped(row.Category)
		remaining := model.MinutesPerDay - acc.dayTotal

		if row.DurationMinutes <= remaining {
			if !dup {
				out = append(out, row)
				acc.lastCat = row.Category
				acc.haveLast = true
				acc.dayTotal += row.DurationMinutes
			}
			continue
		}

		if remaining > 0 && !dup {
			first := row
			first.DurationMinutes = remaining
			out = append(out, first)
			acc.lastCat = row.Category
			acc.haveLast = true
		}

		rem := row.DurationMinutes - remaining
		date := acc.date
		var lastChunk float64
		for rem > 0 {
			date = date.Next()
			chunk := math.Min(model.MinutesPerDay, rem)
			if clean && capped(row.Category) {
				chunk = math.Min(chunk, maintenanceDayCap)
			}
			skip := clean && acc.haveLast && acc.lastCat == row.Category && capped(row.Category)
			if !skip {
				next := row
				next.Date = date
				next.Timestamp = date.Midnight(row.Timestamp.Location())
				next.Hour = 0
				next.DurationMinutes = chunk
				out = append(out, next)
				acc.lastCat = row.Category
				acc.haveLast = true
			}
			rem -= chunk
			lastChunk = chunk
		}
		acc.date = date
		acc.dayTotal = lastChunk
	}
	return out
}

// cleanPostPass re-validates a clean-split table: days whose total still
// exceeds the budget are dropped whole, then adjacent same-day
// Maintenance/System rows of equal category are pruned.
func cleanPostPass(table []model.SegmentedEvent) []model.SegmentedEvent {
	sorted := make([]model.SegmentedEvent, len(table))
	copy(sorted, table)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date.Before(sorted[j].Date)
		}
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	totals := make(map[model.Date]float64)
	for _, row := range sorted {
		totals[row.Date] += row.DurationMinutes
	}

	out := make([]model.SegmentedEvent, 0, len(sorted))
	for i, row := range sorted {
		if totals[row.Date] > model.MinutesPerDay {
			continue
		}
		if i > 0 && sorted[i-1].Date == row.Date &&
			sorted[i-1].Category == row.Category && capped(row.Category) {
			continue
		}
		out = append(out, row)
	}
	return out
}

// capped reports whether c is subject to clean-split duplicate
// suppression and the 8-hour day cap.
func capped(c model.Category) bool {
	return c == model.CategoryMaintenance || c == model.CategorySystem
}

// minuteOfDay returns t's offset into its calendar day in minutes.
func minuteOfDay(t time.Time) float64 {
	midnight := model.DateOf(t).Midnight(t.Location())
	return t.Sub(midnight).Minutes()
}
