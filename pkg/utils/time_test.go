package utils

import (
	"testing"
	"time"
)

func TestGetDayStartFrom(t *testing.T) {
	input := time.Date(2024, 1, 15, 14, 30, 45, 123, time.UTC)
	expected := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

	if got := GetDayStartFrom(input); !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestGetDayStartFromConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	// 01:30 UTC+3 = 22:30 предыдущего дня в UTC
	input := time.Date(2024, 1, 15, 1, 30, 0, 0, loc)
	expected := time.Date(2024, 1, 14, 0, 0, 0, 0, time.UTC)

	if got := GetDayStartFrom(input); !got.Equal(expected) {
		t.Errorf("expected %v, got %v", expected, got)
	}
}

func TestTimeBucket(t *testing.T) {
	base := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a    time.Time
		b    time.Time
		same bool
	}{
		{"same bucket", base.Add(3 * time.Minute), base.Add(4 * time.Minute), true},
		{"bucket boundary", base.Add(4*time.Minute + 59*time.Second), base.Add(5 * time.Minute), false},
		{"adjacent buckets", base, base.Add(5 * time.Minute), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ba := TimeBucket(tt.a, 5*time.Minute)
			bb := TimeBucket(tt.b, 5*time.Minute)
			if (ba == bb) != tt.same {
				t.Errorf("buckets %d and %d, expected same=%v", ba, bb, tt.same)
			}
		})
	}
}

func TestPercentChange(t *testing.T) {
	tests := []struct {
		name     string
		base     float64
		current  float64
		expected float64
	}{
		{"up 1 percent", 50000, 50500, 1.0},
		{"down 1 percent", 50000, 49500, 1.0},
		{"no change", 50000, 50000, 0},
		{"zero base", 0, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PercentChange(tt.base, tt.current)
			if diff := got - tt.expected; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("expected %f, got %f", tt.expected, got)
			}
		})
	}
}
