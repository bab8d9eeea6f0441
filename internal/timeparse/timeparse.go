// Package timeparse parses the mixed timestamp formats found in the
// pilot's CSV exports. Timestamps without an explicit zone default to UTC.
package timeparse

import (
	"errors"
	"time"
)

// ErrInvalidTimestamp indicates a timestamp that matched no known format.
var ErrInvalidTimestamp = errors.New("timeparse: invalid timestamp format")

// Layouts ordered by likelihood in the exports.
var layouts = []string{
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z",
	"2006-01-02T15:04:05Z",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05.000",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"01/02/2006 15:04:05",
	"2006/01/02 15:04:05",
	time.RFC3339,
	time.RFC3339Nano,
}

// Parse parses a timestamp byte slice, fast-pathing ISO 8601 with direct
// byte arithmetic before falling back to the layout list.
func Parse(b []byte) (time.Time, error) {
	if len(b) == 0 {
		return time.Time{}, ErrInvalidTimestamp
	}

	if len(b) >= 10 && b[4] == '-' && b[7] == '-' {
		if t, err := parseISO8601(b); err == nil {
			return t, nil
		}
	}

	s := string(b)
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return time.Time{}, ErrInvalidTimestamp
}

// parseISO8601 parses YYYY-MM-DD[T ]HH:MM:SS[.frac][Z|±HH:MM] without
// allocation.
func parseISO8601(b []byte) (time.Time, error) {
	year := parseInt4(b[0:4])
	month := parseInt2(b[5:7])
	day := parseInt2(b[8:10])

	if year < 0 || month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, ErrInvalidTimestamp
	}

	var hour, minute, second, nsec int
	loc := time.UTC

	if len(b) > 10 && (b[10] == 'T' || b[10] == ' ') {
		if len(b) < 19 {
			return time.Time{}, ErrInvalidTimestamp
		}
		hour = parseInt2(b[11:13])
		minute = parseInt2(b[14:16])
		second = parseInt2(b[17:19])
		if hour < 0 || hour > 23 || minute < 0 || minute > 59 || second < 0 || second > 60 {
			return time.Time{}, ErrInvalidTimestamp
		}

		if len(b) > 19 && b[19] == '.' {
			fracEnd := 20
			for fracEnd < len(b) && b[fracEnd] >= '0' && b[fracEnd] <= '9' {
				fracEnd++
			}
			nsec = parseFraction(b[20:fracEnd])
		}

		for i := 19; i < len(b); i++ {
			if b[i] == 'Z' {
				loc = time.UTC
				break
			}
			if b[i] == '+' || b[i] == '-' {
				if i+5 <= len(b) {
					offsetHours := parseInt2(b[i+1 : i+3])
					offsetMins := 0
					if i+6 <= len(b) && b[i+3] == ':' {
						offsetMins = parseInt2(b[i+4 : i+6])
					} else if i+5 <= len(b) {
						offsetMins = parseInt2(b[i+3 : i+5])
					}
					offset := offsetHours*3600 + offsetMins*60
					if b[i] == '-' {
						offset = -offset
					}
					loc = time.FixedZone("", offset)
				}
				break
			}
		}
	}

	return time.Date(year, time.Month(month), day, hour, minute, second, nsec, loc), nil
}

func parseInt4(b []byte) int {
	if len(b) != 4 || !allDigits(b) {
		return -1
	}
	return int(b[0]-'0')*1000 + int(b[1]-'0')*100 + int(b[2]-'0')*10 + int(b[3]-'0')
}

func parseInt2(b []byte) int {
	if len(b) != 2 || !allDigits(b) {
		return -1
	}
	return int(b[0]-'0')*10 + int(b[1]-'0')
}

// parseFraction converts fractional-second digits to nanoseconds.
func parseFraction(b []byte) int {
	var result int64
	multiplier := int64(100000000)
	for i := 0; i < len(b) && i < 9; i++ {
		result += int64(b[i]-'0') * multiplier
		multiplier /= 10
	}
	return int(result)
}

func allDigits(b []byte) bool {
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
