package segment

import "github.com/hydroview/hydroview/internal/model"

// DayCategory keys the daily distribution view.
type DayCategory struct {
	Date     model.Date
	Category model.Category
}

// HourCategory keys the hourly pattern view.
type HourCategory struct {
	Hour     int
	Category model.Category
}

// Transition is an adjacent category pair in chronological order.
type Transition struct {
	From model.Category
	To   model.Category
}

// TotalByCategory sums attributed minutes per category.
func TotalByCategory(table []model.SegmentedEvent) map[model.Category]float64 {
	totals := make(map[model.Category]float64)
	for _, row := range table {
		totals[row.Category] += row.DurationMinutes
	}
	return totals
}

// DailyDistribution sums attributed minutes per (date, category) pair.
func DailyDistribution(table []model.SegmentedEvent) map[DayCategory]float64 {
	dist := make(map[DayCategory]float64)
	for _, row := range table {
		dist[DayCategory{Date: row.Date, Category: row.Category}] += row.DurationMinutes
	}
	return dist
}

// HourlyPattern returns, for each (hour, category) pair, the category's
// percentage share of that hour's total minutes. Hours with a zero total
// contribute 0, never a division error.
func HourlyPattern(table []model.SegmentedEvent) map[HourCategory]float64 {
	minutes := make(map[HourCategory]float64)
	hourTotals := make(map[int]float64)
	for _, row := range table {
		minutes[HourCategory{Hour: row.Hour, Category: row.Category}] += row.DurationMinutes
		hourTotals[row.Hour] += row.DurationMinutes
	}

	pattern := make(map[HourCategory]float64, len(minutes))
	for key, m := range minutes {
		total := hourTotals[key.Hour]
		if total == 0 {
			pattern[key] = 0
			continue
		}
		pattern[key] = m / total * 100
	}
	return pattern
}

// TransitionCounts counts each adjacent category pair in chronological
// order. Self-transitions are counted: this is a raw adjacency count.
func TransitionCounts(table []model.SegmentedEvent) map[Transition]int {
	counts := make(map[Transition]int)
	for i := 1; i < len(table); i++ {
		counts[Transition{From: table[i-1].Category, To: table[i].Category}]++
	}
	return counts
}

// Summary is the headline efficiency view of a segmented table.
type Summary struct {
	// TotalRuntimeMinutes is the sum of all attributed durations.
	TotalRuntimeMinutes float64 `json:"total_runtime_minutes"`

	// AverageDurationMinutes is the mean row duration, 0 when empty.
	AverageDurationMinutes float64 `json:"average_duration_minutes"`

	// StateChanges is the number of rows in the table.
	StateChanges int `json:"state_changes"`

	ProductionMinutes  float64 `json:"production_minutes"`
	MaintenanceMinutes float64 `json:"maintenance_minutes"`

	// Percentages of combined production+maintenance time, so the two
	// tiles always sum to 100; 0 when neither was recorded.
	ProductionPercent  float64 `json:"production_percent"`
	MaintenancePercent float64 `json:"maintenance_percent"`

	// ProductionMaintenanceRatio is production over maintenance minutes,
	// 0 when no maintenance time was recorded.
	ProductionMaintenanceRatio float64 `json:"production_maintenance_ratio"`
}

// Summarize computes the headline production-vs-maintenance metrics.
// An empty table yields the zero Summary.
func Summarize(table []model.SegmentedEvent) Summary {
	var s Summary
	for _, row := range table {
		s.TotalRuntimeMinutes += row.DurationMinutes
		switch row.Category {
		case model.CategoryProduction:
			s.ProductionMinutes += row.DurationMinutes
		case model.CategoryMaintenance:
			s.MaintenanceMinutes += row.DurationMinutes
		}
	}
	s.StateChanges = len(table)
	if s.StateChanges > 0 {
		s.AverageDurationMinutes = s.TotalRuntimeMinutes / float64(s.StateChanges)
	}
	if pm := s.ProductionMinutes + s.MaintenanceMinutes; pm > 0 {
		s.ProductionPercent = s.ProductionMinutes / pm * 100
		s.MaintenancePercent = s.MaintenanceMinutes / pm * 100
	}
	if s.MaintenanceMinutes > 0 {
		s.ProductionMaintenanceRatio = s.ProductionMinutes / s.MaintenanceMinutes
	}
	return s
}

// PercentChange returns the relative change from previous to current as a
// percentage. A zero previous value yields 0 rather than a blow-up, so
// week-over-week tiles render cleanly on first use.
func PercentChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}
