package segment

import (
	"math"
	"testing"
	"time"

	"github.com/hydroview/hydroview/internal/model"
)

func seg(t *testing.T, value string, cat model.Category, minutes float64) model.SegmentedEvent {
	t.Helper()
	stamp := ts(t, value)
	return model.SegmentedEvent{
		Timestamp:       stamp,
		Category:        cat,
		Date:            model.DateOf(stamp),
		Hour:            stamp.Hour(),
		DurationMinutes: minutes,
	}
}

func TestTotalByCategory(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryProduction, 120),
		seg(t, "2024-04-01T02:00", model.CategoryMaintenance, 30),
		seg(t, "2024-04-01T02:30", model.CategoryProduction, 90),
	}

	got := TotalByCategory(table)
	if got[model.CategoryProduction] != 210 {
		t.Errorf("Production = %v, want 210", got[model.CategoryProduction])
	}
	if got[model.CategoryMaintenance] != 30 {
		t.Errorf("Maintenance = %v, want 30", got[model.CategoryMaintenance])
	}
	if len(got) != 2 {
		t.Errorf("unexpected categories present: %v", got)
	}
}

func TestTotalByCategoryEmpty(t *testing.T) {
	if got := TotalByCategory(nil); len(got) != 0 {
		t.Errorf("empty input produced totals: %v", got)
	}
}

func TestDailyDistribution(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryProduction, 100),
		seg(t, "2024-04-01T10:00", model.CategoryProduction, 50),
		seg(t, "2024-04-02T00:00", model.CategoryProduction, 25),
		seg(t, "2024-04-02T01:00", model.CategorySystem, 5),
	}

	got := DailyDistribution(table)
	day1 := model.Date{Year: 2024, Month: time.April, Day: 1}
	day2 := model.Date{Year: 2024, Month: time.April, Day: 2}

	if got[DayCategory{Date: day1, Category: model.CategoryProduction}] != 150 {
		t.Errorf("day1 Production = %v, want 150", got[DayCategory{Date: day1, Category: model.CategoryProduction}])
	}
	if got[DayCategory{Date: day2, Category: model.CategoryProduction}] != 25 {
		t.Errorf("day2 Production = %v, want 25", got[DayCategory{Date: day2, Category: model.CategoryProduction}])
	}
	if got[DayCategory{Date: day2, Category: model.CategorySystem}] != 5 {
		t.Errorf("day2 System = %v, want 5", got[DayCategory{Date: day2, Category: model.CategorySystem}])
	}
}

func TestHourlyPatternNormalizesPerHour(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T06:00", model.CategoryProduction, 45),
		seg(t, "2024-04-01T06:30", model.CategoryMaintenance, 15),
		seg(t, "2024-04-02T06:10", model.CategoryProduction, 15),
		seg(t, "2024-04-01T09:00", model.CategorySystem, 30),
	}

	got := HourlyPattern(table)

	if share := got[HourCategory{Hour: 6, Category: model.CategoryProduction}]; share != 80 {
		t.Errorf("hour 6 Production share = %v, want 80", share)
	}
	if share := got[HourCategory{Hour: 6, Category: model.CategoryMaintenance}]; share != 20 {
		t.Errorf("hour 6 Maintenance share = %v, want 20", share)
	}
	if share := got[HourCategory{Hour: 9, Category: model.CategorySystem}]; share != 100 {
		t.Errorf("hour 9 System share = %v, want 100", share)
	}

	// Shares within any hour sum to 100.
	byHour := make(map[int]float64)
	for key, share := range got {
		byHour[key.Hour] += share
	}
	for hour, sum := range byHour {
		if math.Abs(sum-100) > 1e-9 {
			t.Errorf("hour %d shares sum to %v, want 100", hour, sum)
		}
	}
}

func TestHourlyPatternZeroDurations(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T06:00", model.CategoryProduction, 0),
	}
	got := HourlyPattern(table)
	if share := got[HourCategory{Hour: 6, Category: model.CategoryProduction}]; share != 0 {
		t.Errorf("zero-total hour share = %v, want 0", share)
	}
}

func TestTransitionCounts(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryProduction, 10),
		seg(t, "2024-04-01T00:10", model.CategoryProduction, 10),
		seg(t, "2024-04-01T00:20", model.CategoryMaintenance, 10),
		seg(t, "2024-04-01T00:30", model.CategoryProduction, 10),
	}

	got := TransitionCounts(table)
	want := map[Transition]int{
		{From: model.CategoryProduction, To: model.CategoryProduction}:  1,
		{From: model.CategoryProduction, To: model.CategoryMaintenance}: 1,
		{From: model.CategoryMaintenance, To: model.CategoryProduction}: 1,
	}
	if len(got) != len(want) {
		t.Fatalf("transition count = %v, want %v", got, want)
	}
	for key, n := range want {
		if got[key] != n {
			t.Errorf("transition %v -> %v = %d, want %d", key.From, key.To, got[key], n)
		}
	}
}

func TestTransitionCountsDegenerate(t *testing.T) {
	if got := TransitionCounts(nil); len(got) != 0 {
		t.Errorf("nil input produced transitions: %v", got)
	}
	single := []model.SegmentedEvent{seg(t, "2024-04-01T00:00", model.CategoryProduction, 10)}
	if got := TransitionCounts(single); len(got) != 0 {
		t.Errorf("single row produced transitions: %v", got)
	}
}

func TestSummarize(t *testing.T) {
	table := []model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryProduction, 300),
		seg(t, "2024-04-01T05:00", model.CategoryMaintenance, 100),
		seg(t, "2024-04-01T07:00", model.CategoryTesting, 100),
	}

	got := Summarize(table)
	if got.TotalRuntimeMinutes != 500 {
		t.Errorf("TotalRuntimeMinutes = %v, want 500", got.TotalRuntimeMinutes)
	}
	if got.StateChanges != 3 {
		t.Errorf("StateChanges = %d, want 3", got.StateChanges)
	}
	if math.Abs(got.AverageDurationMinutes-500.0/3) > 1e-9 {
		t.Errorf("AverageDurationMinutes = %v", got.AverageDurationMinutes)
	}
	// Percentages split production vs maintenance only; the Testing
	// minutes count toward runtime but not the denominator.
	if got.ProductionPercent != 75 {
		t.Errorf("ProductionPercent = %v, want 75", got.ProductionPercent)
	}
	if got.MaintenancePercent != 25 {
		t.Errorf("MaintenancePercent = %v, want 25", got.MaintenancePercent)
	}
	if got.ProductionMaintenanceRatio != 3 {
		t.Errorf("ProductionMaintenanceRatio = %v, want 3", got.ProductionMaintenanceRatio)
	}
}

func TestSummarizeGuardsZeroDenominators(t *testing.T) {
	empty := Summarize(nil)
	if empty != (Summary{}) {
		t.Errorf("empty table summary = %+v, want zero value", empty)
	}

	noMaintenance := Summarize([]model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryProduction, 60),
	})
	if noMaintenance.ProductionMaintenanceRatio != 0 {
		t.Errorf("ratio without maintenance = %v, want 0", noMaintenance.ProductionMaintenanceRatio)
	}

	testingOnly := Summarize([]model.SegmentedEvent{
		seg(t, "2024-04-01T00:00", model.CategoryTesting, 120),
	})
	if testingOnly.ProductionPercent != 0 || testingOnly.MaintenancePercent != 0 {
		t.Errorf("percentages without production or maintenance = %v/%v, want 0/0",
			testingOnly.ProductionPercent, testingOnly.MaintenancePercent)
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name              string
		current, previous float64
		want              float64
	}{
		{name: "increase", current: 150, previous: 100, want: 50},
		{name: "decrease", current: 75, previous: 100, want: -25},
		{name: "no change", current: 100, previous: 100, want: 0},
		{name: "zero previous", current: 100, previous: 0, want: 0},
		{name: "both zero", current: 0, previous: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PercentChange(tt.current, tt.previous); got != tt.want {
				t.Errorf("PercentChange(%v, %v) = %v, want %v", tt.current, tt.previous, got, tt.want)
			}
		})
	}
}
