package timeparse

import (
	"errors"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  time.Time
	}{
		{"2024-01-15T10:30:00Z", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00.500Z", time.Date(2024, 1, 15, 10, 30, 0, 500e6, time.UTC)},
		{"2024-01-15 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)},
		{"2024-01-15T10:30:00+02:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", 2*3600))},
		{"2024-01-15T10:30:00-05:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.FixedZone("", -5*3600))},
		{"15/01/2024 10:30:00", time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse([]byte(tt.input))
			if err != nil {
				t.Fatalf("Parse(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Parse(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestParseDefaultsToUTC(t *testing.T) {
	got, err := Parse([]byte("2024-06-01 08:00:00"))
	if err != nil {
		t.Fatal(err)
	}
	if got.Location() != time.UTC {
		t.Errorf("zone-less timestamp parsed in %v, want UTC", got.Location())
	}
}

func TestParseInvalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2024-13-01T00:00:00Z", "2024-01-32", "10:30:00"} {
		if _, err := Parse([]byte(input)); !errors.Is(err, ErrInvalidTimestamp) {
			t.Errorf("Parse(%q) err = %v, want ErrInvalidTimestamp", input, err)
		}
	}
}
