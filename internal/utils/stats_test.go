package utils

import (
	"math"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestMean(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
	}{
		{"empty", nil, 0},
		{"single", []float64{5}, 5},
		{"several", []float64{1, 2, 3, 4}, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.values); !almostEqual(got, tt.want) {
				t.Fatalf("expected %f, got %f", tt.want, got)
			}
		})
	}
}

func TestStdDev(t *testing.T) {
	if got := StdDev(nil); got != 0 {
		t.Fatalf("expected 0 for empty input, got %f", got)
	}
	if got := StdDev([]float64{4, 4, 4}); got != 0 {
		t.Fatalf("expected 0 for constant input, got %f", got)
	}
	// Population std dev of {2, 4, 4, 4, 5, 5, 7, 9} is exactly 2.
	got := StdDev([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	if !almostEqual(got, 2) {
		t.Fatalf("expected 2, got %f", got)
	}
}

func TestZScore(t *testing.T) {
	if got := ZScore(10, 5, 0); got != 0 {
		t.Fatalf("expected 0 for zero std dev, got %f", got)
	}
	if got := ZScore(10, 4, 2); !almostEqual(got, 3) {
		t.Fatalf("expected 3, got %f", got)
	}
	if got := ZScore(1, 4, 2); !almostEqual(got, -1.5) {
		t.Fatalf("expected -1.5, got %f", got)
	}
}

func TestPercentage(t *testing.T) {
	if got := Percentage(1, 0); got != 0 {
		t.Fatalf("expected 0 for zero total, got %f", got)
	}
	if got := Percentage(25, 100); !almostEqual(got, 25) {
		t.Fatalf("expected 25, got %f", got)
	}
}

func TestClamp(t *testing.T) {
	tests := []struct {
		value, min, max, want float64
	}{
		{5, 0, 10, 5},
		{-1, 0, 10, 0},
		{15, 0, 10, 10},
	}
	for _, tt := range tests {
		if got := Clamp(tt.value, tt.min, tt.max); got != tt.want {
			t.Fatalf("Clamp(%f, %f, %f): expected %f, got %f", tt.value, tt.min, tt.max, tt.want, got)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize(5, 3, 3); got != 0.5 {
		t.Fatalf("expected 0.5 for degenerate range, got %f", got)
	}
	if got := Normalize(5, 0, 10); !almostEqual(got, 0.5) {
		t.Fatalf("expected 0.5, got %f", got)
	}
	if got := Normalize(-5, 0, 10); got != 0 {
		t.Fatalf("expected clamp to 0, got %f", got)
	}
	if got := Normalize(50, 0, 10); got != 1 {
		t.Fatalf("expected clamp to 1, got %f", got)
	}
}

func TestMovingAverage(t *testing.T) {
	if got := MovingAverage(nil, 3); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}
	if got := MovingAverage([]float64{1, 2}, 0); got != nil {
		t.Fatalf("expected nil for zero window, got %v", got)
	}

	got := MovingAverage([]float64{1, 2, 3, 4}, 2)
	want := []float64{1, 1.5, 2.5, 3.5}
	if len(got) != len(want) {
		t.Fatalf("expected %d points, got %d", len(want), len(got))
	}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("point %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}

func TestEMA(t *testing.T) {
	if got := EMA(nil, 0.5); got != nil {
		t.Fatalf("expected nil for empty input, got %v", got)
	}

	got := EMA([]float64{1, 2, 3}, 0.5)
	want := []float64{1, 1.5, 2.25}
	for i := range want {
		if !almostEqual(got[i], want[i]) {
			t.Fatalf("point %d: expected %f, got %f", i, want[i], got[i])
		}
	}
}
