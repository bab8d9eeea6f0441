package loader

import (
	"math"
	"strconv"
	"strings"
)

// NormalizeValue coerces a raw lab-result field to a float. The exports
// use lab-report conventions: "<0.5" means below detection limit, ">2000"
// means above the assay ceiling, "N/R" means not reported, and "5 LINT"
// carries a lab annotation after the reading. Anything unparseable is 0.
func NormalizeValue(raw string) float64 {
	s := strings.TrimSpace(raw)
	switch {
	case s == "" || s == "N/R":
		return 0
	case strings.HasPrefix(s, "<"):
		return floatOrZero(strings.TrimPrefix(s, "<"))
	case strings.HasPrefix(s, ">"):
		rest := strings.TrimPrefix(s, ">")
		if isDigits(rest) {
			return floatOrZero(rest)
		}
		return 2000
	case strings.HasSuffix(s, "LINT"):
		parts := strings.Fields(s)
		if len(parts) == 0 {
			return 0
		}
		return floatOrZero(strings.TrimPrefix(parts[0], "<"))
	default:
		return floatOrZero(s)
	}
}

// NormalizeParameter scales a value into [0, 1] against its configured
// range. pH is scored as distance from neutral rather than position in
// the range, so 6.5 and 7.5 chart identically on the radar tiles.
func NormalizeParameter(value float64, param string, min, max float64) float64 {
	if strings.EqualFold(strings.TrimSpace(param), "ph") {
		maxDeviation := math.Max(math.Abs(max-7), math.Abs(min-7))
		if maxDeviation == 0 {
			return 0
		}
		return math.Abs(value-7) / maxDeviation
	}

	rangeSize := max - min
	if rangeSize == 0 {
		return 0
	}
	return (value - min) / rangeSize
}

func floatOrZero(s string) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return f
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
