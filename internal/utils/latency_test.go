package utils

import (
	"testing"
	"time"
)

func TestLatencyTrackerEmpty(t *testing.T) {
	lt := NewLatencyTracker(10)
	if lt.Count() != 0 {
		t.Fatalf("expected no samples, got %d", lt.Count())
	}
	if got := lt.Percentile(50); got != 0 {
		t.Fatalf("expected zero duration, got %v", got)
	}
}

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 10; i++ {
		lt.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := lt.Percentile(0); got != time.Millisecond {
		t.Fatalf("expected 1ms at p0, got %v", got)
	}
	if got := lt.Percentile(100); got != 10*time.Millisecond {
		t.Fatalf("expected 10ms at p100, got %v", got)
	}
	if got := lt.Percentile(50); got != 5*time.Millisecond {
		t.Fatalf("expected 5ms at p50, got %v", got)
	}
}

func TestLatencyTrackerBoundsSamples(t *testing.T) {
	lt := NewLatencyTracker(5)
	for i := 1; i <= 20; i++ {
		lt.Observe(time.Duration(i) * time.Millisecond)
	}

	if lt.Count() != 5 {
		t.Fatalf("expected 5 samples retained, got %d", lt.Count())
	}
	// Oldest samples are dropped, so the minimum is now 16ms.
	if got := lt.Percentile(0); got != 16*time.Millisecond {
		t.Fatalf("expected 16ms minimum after eviction, got %v", got)
	}
}

func TestLatencyTrackerDefaultSize(t *testing.T) {
	lt := NewLatencyTracker(0)
	lt.Observe(time.Second)
	if lt.Count() != 1 {
		t.Fatalf("expected 1 sample, got %d", lt.Count())
	}
}
