package segment

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/hydroview/hydroview/internal/model"
)

func testMapping() *model.StateMapping {
	return model.NewStateMapping([]model.State{
		{ID: 1, Name: "RO Production", Type: "Water Production"},
		{ID: 2, Name: "CIP Cycle", Type: "Cleaning & Disinfection"},
		{ID: 3, Name: "Membrane Test", Type: "Testing"},
		{ID: 4, Name: "Standby", Type: "System Management"},
		{ID: 5, Name: "Factory Run", Type: "Manufacturing"},
		{ID: 6, Name: "Self Test", Type: "In-Field Self Test"},
		{ID: 7, Name: "Legacy Mode", Type: "Decommissioned"},
	})
}

func ts(t *testing.T, value string) time.Time {
	t.Helper()
	parsed, err := time.Parse("2006-01-02T15:04", value)
	if err != nil {
		t.Fatalf("bad test timestamp %q: %v", value, err)
	}
	return parsed
}

func ev(t *testing.T, value string, code int64) model.Event {
	t.Helper()
	return model.Event{Timestamp: ts(t, value), Code: code}
}

func sumDurations(table []model.SegmentedEvent) float64 {
	var total float64
	for _, row := range table {
		total += row.DurationMinutes
	}
	return total
}

func TestSegmentRawSplitScenario(t *testing.T) {
	// 180 min of production starting at 23:00 must land as 60 min on the
	// first day and 120 min on the next.
	events := []model.Event{
		ev(t, "2024-01-01T23:00", 1),
		ev(t, "2024-01-02T02:00", 1),
		ev(t, "2024-01-02T04:00", 2),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyRawSplit})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 rows, got %d: %+v", len(got), got)
	}

	first, cont := got[0], got[1]
	if first.Date != (model.Date{Year: 2024, Month: time.January, Day: 1}) || first.DurationMinutes != 60 {
		t.Errorf("first portion = %v min on %v, want 60 on 2024-01-01", first.DurationMinutes, first.Date)
	}
	if cont.Date != (model.Date{Year: 2024, Month: time.January, Day: 2}) || cont.DurationMinutes != 120 {
		t.Errorf("continuation = %v min on %v, want 120 on 2024-01-02", cont.DurationMinutes, cont.Date)
	}
	if cont.Hour != 0 || cont.Timestamp.Hour() != 0 || cont.Timestamp.Minute() != 0 {
		t.Errorf("continuation not re-stamped at midnight: %v (hour %d)", cont.Timestamp, cont.Hour)
	}
	if first.Category != model.CategoryProduction || cont.Category != model.CategoryProduction {
		t.Errorf("split portions changed category: %v, %v", first.Category, cont.Category)
	}

	// The tail event's duration is the median of the two real deltas.
	last := got[3]
	if last.Category != model.CategoryMaintenance || last.DurationMinutes != 150 {
		t.Errorf("tail row = %v min %v, want 150 min Maintenance", last.DurationMinutes, last.Category)
	}
}

func TestSegmentMedianImputation(t *testing.T) {
	tests := []struct {
		name  string
		times []string
		want  float64
	}{
		{
			name:  "even delta count averages the middle pair",
			times: []string{"2024-03-01T10:00", "2024-03-01T10:10", "2024-03-01T10:30"},
			want:  15, // median([10, 20])
		},
		{
			name:  "odd delta count takes the middle value",
			times: []string{"2024-03-01T10:00", "2024-03-01T10:05", "2024-03-01T10:25", "2024-03-01T11:25"},
			want:  20, // median([5, 20, 60])
		},
		{
			name:  "single event carries no duration",
			times: []string{"2024-03-01T10:00"},
			want:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := make([]model.Event, len(tt.times))
			for i, v := range tt.times {
				events[i] = ev(t, v, 1)
			}
			got, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}
			if tail := got[len(got)-1].DurationMinutes; tail != tt.want {
				t.Errorf("tail duration = %v, want %v", tail, tt.want)
			}
		})
	}
}

func TestSegmentShowAllConservation(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T00:00", 1),
		ev(t, "2024-02-01T09:00", 2),
		ev(t, "2024-02-03T01:00", 1), // 2400 min, overflows its day
		ev(t, "2024-02-03T02:00", 4),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(got) != len(events) {
		t.Fatalf("ShowAll changed row count: got %d, want %d", len(got), len(events))
	}

	// 540 + 2400 + 60 real deltas plus median(540, 2400, 60) for the tail.
	want := 540.0 + 2400 + 60 + 540
	if diff := math.Abs(sumDurations(got) - want); diff > 1e-9 {
		t.Errorf("total duration = %v, want %v", sumDurations(got), want)
	}
}

func TestSegmentHideDropsWholeDays(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T00:00", 1), // 2940 min to the next event: day dropped
		ev(t, "2024-02-03T01:00", 1),
		ev(t, "2024-02-03T02:00", 2),
		ev(t, "2024-02-03T03:00", 4),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyHide})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	overfull := model.Date{Year: 2024, Month: time.February, Day: 1}
	perDay := make(map[model.Date]float64)
	for _, row := range got {
		if row.Date == overfull {
			t.Errorf("row on dropped day survived: %+v", row)
		}
		perDay[row.Date] += row.DurationMinutes
	}
	for date, total := range perDay {
		if total > model.MinutesPerDay {
			t.Errorf("day %v total %v exceeds the budget", date, total)
		}
	}
	if len(got) != 3 {
		t.Errorf("expected the 3 rows of 2024-02-03, got %d", len(got))
	}
}

func TestSegmentRawSplitConservesTotals(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T12:00", 1),
		ev(t, "2024-02-04T06:00", 2), // 3960 min: spills across three midnights
		ev(t, "2024-02-04T07:00", 1),
		ev(t, "2024-02-04T09:00", 4),
	}

	raw, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
	if err != nil {
		t.Fatalf("Segment show_all: %v", err)
	}
	split, err := New().Segment(events, testMapping(), Options{Policy: PolicyRawSplit})
	if err != nil {
		t.Fatalf("Segment raw_split: %v", err)
	}

	if diff := math.Abs(sumDurations(raw) - sumDurations(split)); diff > 1e-9 {
		t.Errorf("raw split lost time: show_all=%v raw_split=%v", sumDurations(raw), sumDurations(split))
	}
	if len(split) <= len(raw) {
		t.Errorf("expected split to expand rows: %d <= %d", len(split), len(raw))
	}
}

func TestSegmentCleanSplitProperties(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T00:00", 1),
		ev(t, "2024-02-01T08:00", 2),
		ev(t, "2024-02-01T09:00", 2), // consecutive Maintenance, suppressed
		ev(t, "2024-02-01T10:00", 2),
		ev(t, "2024-02-01T11:00", 1), // 2340 min of Production, spills past midnight
		ev(t, "2024-02-03T02:00", 4),
		ev(t, "2024-02-03T03:00", 4), // consecutive System, suppressed
		ev(t, "2024-02-03T04:00", 1),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyCleanSplit})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}

	perDay := make(map[model.Date]float64)
	for _, row := range got {
		perDay[row.Date] += row.DurationMinutes
	}
	for date, total := range perDay {
		if total > model.MinutesPerDay {
			t.Errorf("day %v total %v exceeds the budget after clean split", date, total)
		}
	}

	for i := 1; i < len(got); i++ {
		prev, cur := got[i-1], got[i]
		if prev.Date == cur.Date && prev.Category == cur.Category &&
			(cur.Category == model.CategoryMaintenance || cur.Category == model.CategorySystem) {
			t.Errorf("adjacent duplicate %v rows on %v survived clean split", cur.Category, cur.Date)
		}
	}
}

func TestSegmentCategoryClosure(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T00:00", 1),
		ev(t, "2024-02-01T01:00", 7),  // mapped code, State Type outside the dictionary
		ev(t, "2024-02-01T02:00", 99), // unmapped code
		ev(t, "2024-02-01T03:00", 6),  // In-Field Self Test folds into Testing
		ev(t, "2024-02-01T04:00", 2),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected unmapped rows dropped, got %d rows", len(got))
	}
	for _, row := range got {
		if !row.Category.Valid() {
			t.Errorf("row has category outside the closed set: %q", row.Category)
		}
	}
	if got[1].Category != model.CategoryTesting {
		t.Errorf("In-Field Self Test mapped to %v, want Testing", got[1].Category)
	}
}

func TestSegmentIncludeFilterPrecedesDurations(t *testing.T) {
	// Excluding the Testing row in the middle widens the surviving
	// production row's delta; the filter runs before durations on purpose.
	events := []model.Event{
		ev(t, "2024-02-01T00:00", 1),
		ev(t, "2024-02-01T00:30", 3),
		ev(t, "2024-02-01T01:00", 1),
	}

	all, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if all[0].DurationMinutes != 30 {
		t.Fatalf("unfiltered first delta = %v, want 30", all[0].DurationMinutes)
	}

	include := map[model.Category]bool{
		model.CategoryProduction:  true,
		model.CategoryMaintenance: true,
		model.CategorySystem:      true,
	}
	filtered, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll, Include: include})
	if err != nil {
		t.Fatalf("Segment filtered: %v", err)
	}
	if len(filtered) != 2 {
		t.Fatalf("expected 2 rows after filtering, got %d", len(filtered))
	}
	if filtered[0].DurationMinutes != 60 {
		t.Errorf("filtered first delta = %v, want 60", filtered[0].DurationMinutes)
	}
}

func TestSegmentEmptyInputs(t *testing.T) {
	include := map[model.Category]bool{model.CategoryProduction: true}
	tests := []struct {
		name   string
		events []model.Event
		opts   Options
	}{
		{name: "no events", events: nil, opts: Options{Policy: PolicyHide}},
		{
			name: "all rows filtered out",
			events: []model.Event{
				ev(t, "2024-02-01T00:00", 5),
				ev(t, "2024-02-01T01:00", 3),
			},
			opts: Options{Policy: PolicyCleanSplit, Include: include},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := New().Segment(tt.events, testMapping(), tt.opts)
			if err != nil {
				t.Fatalf("empty input must not error: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("expected empty output, got %d rows", len(got))
			}
		})
	}
}

func TestSegmentRejectsUnknownPolicy(t *testing.T) {
	_, err := New().Segment(nil, testMapping(), Options{Policy: Policy(42)})
	if !errors.Is(err, ErrUnknownPolicy) {
		t.Fatalf("expected ErrUnknownPolicy, got %v", err)
	}
}

func TestSegmentIdempotent(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T23:30", 1),
		ev(t, "2024-02-02T01:30", 2),
		ev(t, "2024-02-02T01:30", 4), // equal timestamps keep input order
		ev(t, "2024-02-02T05:00", 1),
	}

	for _, policy := range []Policy{PolicyHide, PolicyCleanSplit, PolicyRawSplit, PolicyShowAll} {
		first, err := New().Segment(events, testMapping(), Options{Policy: policy})
		if err != nil {
			t.Fatalf("Segment %v: %v", policy, err)
		}
		second, err := New().Segment(events, testMapping(), Options{Policy: policy})
		if err != nil {
			t.Fatalf("Segment %v rerun: %v", policy, err)
		}
		if !reflect.DeepEqual(first, second) {
			t.Errorf("policy %v is not deterministic", policy)
		}
	}
}

func TestSegmentSortsUnsortedInput(t *testing.T) {
	events := []model.Event{
		ev(t, "2024-02-01T03:00", 2),
		ev(t, "2024-02-01T01:00", 1),
		ev(t, "2024-02-01T02:00", 4),
	}

	got, err := New().Segment(events, testMapping(), Options{Policy: PolicyShowAll})
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	for i := 1; i < len(got); i++ {
		if got[i].Timestamp.Before(got[i-1].Timestamp) {
			t.Fatalf("output not chronological at row %d", i)
		}
	}
	if got[0].Category != model.CategoryProduction || got[0].DurationMinutes != 60 {
		t.Errorf("first sorted row = %v/%v min, want Production/60", got[0].Category, got[0].DurationMinutes)
	}
}
