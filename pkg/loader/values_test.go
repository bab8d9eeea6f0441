package loader

import (
	"math"
	"testing"
)

func TestNormalizeValue(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{input: "3.14", want: 3.14},
		{input: " 42 ", want: 42},
		{input: "<0.5", want: 0.5},
		{input: ">100", want: 100},
		{input: ">1.5", want: 2000}, // non-integer above-ceiling readings clamp
		{input: ">high", want: 2000},
		{input: "N/R", want: 0},
		{input: "5 LINT", want: 5},
		{input: "<5 LINT", want: 0}, // combined markers are unparseable
		{input: "", want: 0},
		{input: "pending", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeValue(tt.input); got != tt.want {
				t.Errorf("NormalizeValue(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNormalizeParameter(t *testing.T) {
	tests := []struct {
		name     string
		value    float64
		param    string
		min, max float64
		want     float64
	}{
		{name: "mid range", value: 50, param: "Turbidity", min: 0, max: 100, want: 0.5},
		{name: "at minimum", value: 10, param: "TOC", min: 10, max: 20, want: 0},
		{name: "zero range", value: 5, param: "TOC", min: 5, max: 5, want: 0},
		{name: "ph neutral", value: 7, param: "pH", min: 6, max: 9, want: 0},
		{name: "ph acidic", value: 6, param: "pH", min: 6, max: 9, want: 0.5},
		{name: "ph alkaline scores by deviation", value: 8, param: "PH", min: 6, max: 9, want: 0.5},
		{name: "ph degenerate range", value: 8, param: "pH", min: 7, max: 7, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NormalizeParameter(tt.value, tt.param, tt.min, tt.max)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("NormalizeParameter(%v, %q, %v, %v) = %v, want %v",
					tt.value, tt.param, tt.min, tt.max, got, tt.want)
			}
		})
	}
}
