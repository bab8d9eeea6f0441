// Package analytics computes energy-consumption rollups for the overview
// page directly over the raw Telemetry CSV exports, using DuckDB so the
// files never have to be loaded into process memory.
package analytics

import (
	"context"
	"database/sql"
	"fmt"
	"runtime"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/segment"
)

// Options names the telemetry columns. Exports vary in casing only.
type Options struct {
	// TimestampColumn holds the reading time. Default "timestamp".
	TimestampColumn string

	// ValueColumn holds the kW reading. Default "kw".
	ValueColumn string
}

func (o *Options) defaults() {
	if o.TimestampColumn == "" {
		o.TimestampColumn = "timestamp"
	}
	if o.ValueColumn == "" {
		o.ValueColumn = "kw"
	}
}

// Energy runs telemetry rollups on an embedded DuckDB instance.
type Energy struct {
	db   *sql.DB
	opts Options
}

// NewEnergy opens an in-memory DuckDB instance.
func NewEnergy(opts Options) (*Energy, error) {
	opts.defaults()

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("analytics: failed to initialize DuckDB: %w", err)
	}
	db.Exec(fmt.Sprintf("SET threads=%d", runtime.NumCPU()))

	return &Energy{db: db, opts: opts}, nil
}

// Close closes the embedded database.
func (e *Energy) Close() error {
	return e.db.Close()
}

// DailyUsage is one day's consumption rollup.
type DailyUsage struct {
	Date   model.Date `json:"date"`
	MeanKW float64    `json:"mean_kw"`
	MaxKW  float64    `json:"max_kw"`
	MinKW  float64    `json:"min_kw"`
}

// Report is the energy view of the overview page.
type Report struct {
	// DailyAverageKW is the mean reading over the trailing 7 days.
	DailyAverageKW float64 `json:"daily_average_kw"`

	// WeekOverWeekPercent compares the trailing 7 days to the 7 before.
	WeekOverWeekPercent float64 `json:"week_over_week_percent"`

	// PeakKW is the all-time maximum reading.
	PeakKW float64 `json:"peak_kw"`

	// PeakChangePercent compares PeakKW to the pre-trailing-week peak.
	PeakChangePercent float64 `json:"peak_change_percent"`

	// OffPeakAverageKW averages readings between 22:00 and 06:00.
	OffPeakAverageKW float64 `json:"off_peak_average_kw"`

	Daily []DailyUsage `json:"daily"`

	// HourlyPattern is the mean reading per hour of day.
	HourlyPattern [24]float64 `json:"hourly_pattern"`

	// DayOfWeek is the mean reading per weekday, Monday first.
	DayOfWeek [7]float64 `json:"day_of_week"`
}

// Report computes the rollups over every telemetry file matching the
// glob pattern (e.g. "data/telemetry/Telemetry *.csv").
func (e *Energy) Report(ctx context.Context, pattern string) (*Report, error) {
	if _, err := e.db.ExecContext(ctx, e.viewSQL(pattern)); err != nil {
		return nil, fmt.Errorf("analytics: failed to register telemetry view: %w", err)
	}

	var maxTS sql.NullTime
	if err := e.db.QueryRowContext(ctx, "SELECT max(ts) FROM telemetry").Scan(&maxTS); err != nil {
		return nil, fmt.Errorf("analytics: max timestamp: %w", err)
	}
	if !maxTS.Valid {
		return &Report{}, nil // no telemetry is a normal state
	}

	weekAgo := maxTS.Time.AddDate(0, 0, -7)
	twoWeeksAgo := maxTS.Time.AddDate(0, 0, -14)

	report := &Report{}

	var current, previous sql.NullFloat64
	err := e.db.QueryRowContext(ctx,
		`SELECT
			avg(kw) FILTER (WHERE ts >= ?),
			avg(kw) FILTER (WHERE ts >= ? AND ts < ?)
		FROM telemetry`,
		weekAgo, twoWeeksAgo, weekAgo,
	).Scan(&current, &previous)
	if err != nil {
		return nil, fmt.Errorf("analytics: weekly averages: %w", err)
	}
	report.DailyAverageKW = current.Float64
	report.WeekOverWeekPercent = segment.PercentChange(current.Float64, previous.Float64)

	var peak, previousPeak sql.NullFloat64
	err = e.db.QueryRowContext(ctx,
		"SELECT max(kw), max(kw) FILTER (WHERE ts < ?) FROM telemetry",
		weekAgo,
	).Scan(&peak, &previousPeak)
	if err != nil {
		return nil, fmt.Errorf("analytics: peak usage: %w", err)
	}
	report.PeakKW = peak.Float64
	report.PeakChangePercent = segment.PercentChange(peak.Float64, previousPeak.Float64)

	var offPeak sql.NullFloat64
	err = e.db.QueryRowContext(ctx,
		"SELECT avg(kw) FROM telemetry WHERE hour(ts) >= 22 OR hour(ts) < 6",
	).Scan(&offPeak)
	if err != nil {
		return nil, fmt.Errorf("analytics: off-peak average: %w", err)
	}
	report.OffPeakAverageKW = offPeak.Float64

	if report.Daily, err = e.daily(ctx); err != nil {
		return nil, err
	}
	if err := e.hourly(ctx, report); err != nil {
		return nil, err
	}
	if err := e.dayOfWeek(ctx, report); err != nil {
		return nil, err
	}
	return report, nil
}

// viewSQL builds the view registration statement for a file pattern.
func (e *Energy) viewSQL(pattern string) string {
	return fmt.Sprintf(
		`CREATE OR REPLACE VIEW telemetry AS
		SELECT "%s"::TIMESTAMP AS ts, "%s"::DOUBLE AS kw
		FROM read_csv_auto('%s', union_by_name=true)`,
		e.opts.TimestampColumn,
		e.opts.ValueColumn,
		strings.ReplaceAll(pattern, "'", "''"),
	)
}

func (e *Energy) daily(ctx context.Context) ([]DailyUsage, error) {
	rows, err := e.db.QueryContext(ctx,
		`SELECT date_trunc('day', ts) AS day, avg(kw), max(kw), min(kw)
		FROM telemetry GROUP BY 1 ORDER BY 1`,
	)
	if err != nil {
		return nil, fmt.Errorf("analytics: daily usage: %w", err)
	}
	defer rows.Close()

	var daily []DailyUsage
	for rows.Next() {
		var day time.Time
		var usage DailyUsage
		if err := rows.Scan(&day, &usage.MeanKW, &usage.MaxKW, &usage.MinKW); err != nil {
			return nil, fmt.Errorf("analytics: daily usage scan: %w", err)
		}
		usage.Date = model.DateOf(day)
		daily = append(daily, usage)
	}
	return daily, rows.Err()
}

func (e *Energy) hourly(ctx context.Context, report *Report) error {
	rows, err := e.db.QueryContext(ctx,
		"SELECT hour(ts), avg(kw) FROM telemetry GROUP BY 1",
	)
	if err != nil {
		return fmt.Errorf("analytics: hourly pattern: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var hour int
		var avg float64
		if err := rows.Scan(&hour, &avg); err != nil {
			return fmt.Errorf("analytics: hourly pattern scan: %w", err)
		}
		if hour >= 0 && hour < 24 {
			report.HourlyPattern[hour] = avg
		}
	}
	return rows.Err()
}

func (e *Energy) dayOfWeek(ctx context.Context, report *Report) error {
	// DuckDB dayofweek: 0 = Sunday. The report is Monday-first.
	rows, err := e.db.QueryContext(ctx,
		"SELECT dayofweek(ts), avg(kw) FROM telemetry GROUP BY 1",
	)
	if err != nil {
		return fmt.Errorf("analytics: day-of-week pattern: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dow int
		var avg float64
		if err := rows.Scan(&dow, &avg); err != nil {
			return fmt.Errorf("analytics: day-of-week scan: %w", err)
		}
		if dow >= 0 && dow < 7 {
			report.DayOfWeek[(dow+6)%7] = avg
		}
	}
	return rows.Err()
}
