// Package tui renders the terminal report output.
// Simple, streaming, no complex TUI - just clean styled output.
package tui

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/schollz/progressbar/v3"

	"github.com/hydroview/hydroview/internal/model"
	"github.com/hydroview/hydroview/pkg/loader"
	"github.com/hydroview/hydroview/pkg/segment"
)

// Colors (Swiss minimal)
var (
	accent  = lipgloss.Color("#0066FF")
	muted   = lipgloss.Color("#666666")
	success = lipgloss.Color("#00CC66")
	white   = lipgloss.Color("#FFFFFF")
)

// Styles
var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(white)
	accentStyle  = lipgloss.NewStyle().Foreground(accent).Bold(true)
	mutedStyle   = lipgloss.NewStyle().Foreground(muted)
	successStyle = lipgloss.NewStyle().Foreground(success).Bold(true)
)

// PrintHeader prints the application banner.
func PrintHeader(version string) {
	fmt.Println()
	fmt.Println(titleStyle.Render("  HYDROVIEW") + mutedStyle.Render(" "+version))
	fmt.Println(mutedStyle.Render("  Treatment unit runtime dashboard"))
	fmt.Println()
}

// PrintLoadResult prints what the loader found.
func PrintLoadResult(result *loader.LoadResult) {
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Files:"), titleStyle.Render(fmt.Sprintf("%d", result.Files)))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Events:"), titleStyle.Render(formatNumber(int64(len(result.Events)))))
	if result.Dropped > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Dropped rows:"), titleStyle.Render(fmt.Sprintf("%d", result.Dropped)))
	}
	if result.Duplicates > 0 {
		fmt.Printf("  %s %s\n", mutedStyle.Render("Duplicates:"), titleStyle.Render(fmt.Sprintf("%d", result.Duplicates)))
	}
	fmt.Println(mutedStyle.Render("  ─────────────────────────────────────"))
}

// PrintSummary prints the runtime summary block.
func PrintSummary(s *segment.Summary) {
	fmt.Println()
	fmt.Println(accentStyle.Render("▸ RUNTIME SUMMARY"))
	fmt.Println()
	fmt.Printf("  %s %s\n", mutedStyle.Render("Total runtime:"), titleStyle.Render(formatMinutes(s.TotalRuntimeMinutes)))
	fmt.Printf("  %s %s\n", mutedStyle.Render("State changes:"), titleStyle.Render(fmt.Sprintf("%d", s.StateChanges)))
	fmt.Printf("  %s %s\n", mutedStyle.Render("Avg duration:"), titleStyle.Render(formatMinutes(s.AverageDurationMinutes)))
	fmt.Printf("  %s %s %s\n",
		mutedStyle.Render("Production:"),
		titleStyle.Render(formatMinutes(s.ProductionMinutes)),
		mutedStyle.Render(fmt.Sprintf("(%.1f%%)", s.ProductionPercent)))
	fmt.Printf("  %s %s %s\n",
		mutedStyle.Render("Maintenance:"),
		titleStyle.Render(formatMinutes(s.MaintenanceMinutes)),
		mutedStyle.Render(fmt.Sprintf("(%.1f%%)", s.MaintenancePercent)))
	if s.ProductionMaintenanceRatio > 0 {
		fmt.Printf("  %s %s\n",
			mutedStyle.Render("Prod/maint ratio:"),
			successStyle.Render(fmt.Sprintf("%.2f", s.ProductionMaintenanceRatio)))
	}
	fmt.Println()
}

// PrintCategoryTotals prints per-category totals, largest first.
func PrintCategoryTotals(totals map[model.Category]float64) {
	type entry struct {
		category model.Category
		minutes  float64
	}
	entries := make([]entry, 0, len(totals))
	var max float64
	for category, minutes := range totals {
		entries = append(entries, entry{category, minutes})
		if minutes > max {
			max = minutes
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].minutes > entries[j].minutes })

	fmt.Println(accentStyle.Render("▸ TIME BY CATEGORY"))
	fmt.Println()
	for _, e := range entries {
		fmt.Printf("  %-14s %s %s\n",
			mutedStyle.Render(string(e.category)),
			bar(e.minutes, max, 30),
			titleStyle.Render(formatMinutes(e.minutes)))
	}
	fmt.Println()
}

// bar renders a fixed-width proportional bar.
func bar(value, max float64, width int) string {
	if max <= 0 {
		return mutedStyle.Render(repeatRune('░', width))
	}
	filled := int(value / max * float64(width))
	if filled > width {
		filled = width
	}
	return accentStyle.Render(repeatRune('█', filled)) + mutedStyle.Render(repeatRune('░', width-filled))
}

func repeatRune(r rune, n int) string {
	out := make([]rune, n)
	for i := range out {
		out[i] = r
	}
	return string(out)
}

// PrintDone prints a completion line.
func PrintDone(message string) {
	fmt.Println(successStyle.Render("  ✓ " + message))
}

// PrintError prints an error line.
func PrintError(err error) {
	fmt.Println(lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000")).Render("  ✗ " + err.Error()))
}

// ShowProgress creates a progress bar for file processing.
func ShowProgress(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(false),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "",
			BarEnd:        "",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
}

// formatMinutes renders a minute count as hours and minutes.
func formatMinutes(m float64) string {
	total := int(m)
	if total < 60 {
		return fmt.Sprintf("%dm", total)
	}
	return fmt.Sprintf("%dh %dm", total/60, total%60)
}

func formatNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}
	if n < 1000000 {
		return fmt.Sprintf("%.1fK", float64(n)/1000)
	}
	return fmt.Sprintf("%.1fM", float64(n)/1000000)
}
