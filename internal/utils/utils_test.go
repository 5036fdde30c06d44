package utils

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestAppErrorKinds(t *testing.T) {
	base := NewAppError("repo.Fetch", KindRepositoryUnavailable, "connection refused", errors.New("dial tcp"))

	if !IsKind(base, KindRepositoryUnavailable) {
		t.Fatalf("kind = %v, want repository-unavailable", KindOf(base))
	}
	if IsKind(base, KindEntityNotFound) {
		t.Fatal("kind must not match entity-not-found")
	}

	wrapped := fmt.Errorf("analysis failed: %w", base)
	if !IsKind(wrapped, KindRepositoryUnavailable) {
		t.Fatal("kind must survive wrapping")
	}

	if KindOf(errors.New("plain")) != KindInternal {
		t.Fatal("plain errors must default to internal")
	}
	if IsKind(nil, KindInternal) {
		t.Fatal("nil error carries no kind")
	}
}

func TestSameCalendarDay(t *testing.T) {
	a := time.Date(2026, 8, 18, 0, 30, 0, 0, time.UTC)
	b := time.Date(2026, 8, 18, 23, 45, 0, 0, time.UTC)
	c := time.Date(2026, 8, 19, 0, 15, 0, 0, time.UTC)

	if !SameCalendarDay(a, b) {
		t.Fatal("same-day timestamps reported as different days")
	}
	if SameCalendarDay(b, c) {
		t.Fatal("adjacent-day timestamps reported as same day")
	}
}

func TestClamp01(t *testing.T) {
	cases := []struct{ in, want float64 }{
		{-0.5, 0},
		{0, 0},
		{0.42, 0.42},
		{1, 1},
		{3.7, 1},
	}
	for _, tc := range cases {
		if got := Clamp01(tc.in); got != tc.want {
			t.Fatalf("Clamp01(%f) = %f, want %f", tc.in, got, tc.want)
		}
	}
}

func TestLatencyTrackerPercentile(t *testing.T) {
	tracker := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}

	if got := tracker.Percentile(0); got != time.Millisecond {
		t.Fatalf("p0 = %v, want 1ms", got)
	}
	if got := tracker.Percentile(100); got != 100*time.Millisecond {
		t.Fatalf("p100 = %v, want 100ms", got)
	}
	p95 := tracker.Percentile(95)
	if p95 < 90*time.Millisecond || p95 > 100*time.Millisecond {
		t.Fatalf("p95 = %v, want in the tail", p95)
	}
	if tracker.Count() != 100 {
		t.Fatalf("count = %d, want 100", tracker.Count())
	}
}

func TestLatencyTrackerBoundsSamples(t *testing.T) {
	tracker := NewLatencyTracker(10)
	for i := 0; i < 50; i++ {
		tracker.Observe(time.Duration(i) * time.Millisecond)
	}
	if tracker.Count() != 10 {
		t.Fatalf("count = %d, want bounded at 10", tracker.Count())
	}
}
