package ratelimit

import (
	"testing"
	"time"
)

func TestWindowStartAlignsToBoundary(t *testing.T) {
	window := 60 * time.Second
	now := time.Date(2026, 1, 1, 12, 0, 37, 0, time.UTC)

	got := windowStart(now, window)

	want := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("windowStart(%v, %v) = %v, want %v", now, window, got, want)
	}
}

func TestWindowStartStableWithinWindow(t *testing.T) {
	window := 60 * time.Second
	t1 := time.Date(2026, 1, 1, 12, 0, 1, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 12, 0, 59, 0, time.UTC)

	if windowStart(t1, window) != windowStart(t2, window) {
		t.Error("windowStart() should be stable for timestamps in the same window")
	}
}

func TestWindowStartAdvancesAcrossBoundary(t *testing.T) {
	window := 60 * time.Second
	t1 := time.Date(2026, 1, 1, 12, 0, 59, 0, time.UTC)
	t2 := time.Date(2026, 1, 1, 12, 1, 0, 0, time.UTC)

	if windowStart(t1, window) == windowStart(t2, window) {
		t.Error("windowStart() should advance once the window boundary is crossed")
	}
}
