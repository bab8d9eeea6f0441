package export

import (
	"fmt"
	"io"
	"sort"

	"github.com/xuri/excelize/v2"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/segment"
)

// WriteXLSX writes the report workbook: the segmented table plus the
// aggregate views, one sheet each.
func WriteXLSX(w io.Writer, table []model.SegmentedEvent) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := writeSegmentsSheet(f, table); err != nil {
		return err
	}
	if err := writeSummarySheet(f, table); err != nil {
		return err
	}
	if err := writeDailySheet(f, table); err != nil {
		return err
	}
	if err := writeHourlySheet(f, table); err != nil {
		return err
	}
	if err := writeTransitionsSheet(f, table); err != nil {
		return err
	}

	// The workbook opens on the segments sheet; drop the default one.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("export: delete default sheet: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("export: write workbook: %w", err)
	}
	return nil
}

func newSheet(f *excelize.File, name string, header []interface{}) error {
	if _, err := f.NewSheet(name); err != nil {
		return fmt.Errorf("export: create sheet %s: %w", name, err)
	}
	if err := f.SetSheetRow(name, "A1", &header); err != nil {
		return fmt.Errorf("export: header for %s: %w", name, err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("export: row %d of %s: %w", rowNum, sheet, err)
	}
	return nil
}

func writeSegmentsSheet(f *excelize.File, table []model.SegmentedEvent) error {
	const sheet = "Segments"
	if err := newSheet(f, sheet, []interface{}{"timestamp", "category", "date", "hour", "duration_minutes"}); err != nil {
		return err
	}
	for i, row := range table {
		values := []interface{}{
			row.Timestamp.Format("2006-01-02 15:04:05"),
			string(row.Category),
			row.Date.String(),
			row.Hour,
			row.DurationMinutes,
		}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeSummarySheet(f *excelize.File, table []model.SegmentedEvent) error {
	const sheet = "Summary"
	if err := newSheet(f, sheet, []interface{}{"metric", "value"}); err != nil {
		return err
	}

	s := segment.Summarize(table)
	rows := [][]interface{}{
		{"total_runtime_minutes", s.TotalRuntimeMinutes},
		{"average_duration_minutes", s.AverageDurationMinutes},
		{"state_changes", s.StateChanges},
		{"production_minutes", s.ProductionMinutes},
		{"maintenance_minutes", s.MaintenanceMinutes},
		{"production_percent", s.ProductionPercent},
		{"maintenance_percent", s.MaintenancePercent},
		{"production_maintenance_ratio", s.ProductionMaintenanceRatio},
	}
	for i, values := range rows {
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeDailySheet(f *excelize.File, table []model.SegmentedEvent) error {
	const sheet = "Daily"
	if err := newSheet(f, sheet, []interface{}{"date", "category", "minutes"}); err != nil {
		return err
	}

	dist := segment.DailyDistribution(table)
	keys := make([]segment.DayCategory, 0, len(dist))
	for key := range dist {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Date != keys[j].Date {
			return keys[i].Date.Before(keys[j].Date)
		}
		return keys[i].Category < keys[j].Category
	})

	for i, key := range keys {
		values := []interface{}{key.Date.String(), string(key.Category), dist[key]}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeHourlySheet(f *excelize.File, table []model.SegmentedEvent) error {
	const sheet = "Hourly"
	if err := newSheet(f, sheet, []interface{}{"hour", "category", "percent"}); err != nil {
		return err
	}

	pattern := segment.HourlyPattern(table)
	keys := make([]segment.HourCategory, 0, len(pattern))
	for key := range pattern {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].Hour != keys[j].Hour {
			return keys[i].Hour < keys[j].Hour
		}
		return keys[i].Category < keys[j].Category
	})

	for i, key := range keys {
		values := []interface{}{key.Hour, string(key.Category), pattern[key]}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func writeTransitionsSheet(f *excelize.File, table []model.SegmentedEvent) error {
	const sheet = "Transitions"
	if err := newSheet(f, sheet, []interface{}{"from", "to", "count"}); err != nil {
		return err
	}

	counts := segment.TransitionCounts(table)
	keys := make([]segment.Transition, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].From != keys[j].From {
			return keys[i].From < keys[j].From
		}
		return keys[i].To < keys[j].To
	})

	for i, key := range keys {
		values := []interface{}{string(key.From), string(key.To), counts[key]}
		if err := setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}
