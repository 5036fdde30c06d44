package engine

import (
	"sort"
	"time"

	"github.com/orbitalworks/satlink-rca/internal/models"
)

// interval is a half-closed degraded time span used for overlap arithmetic.
type interval struct {
	start time.Time
	end   time.Time
}

func (iv interval) duration() time.Duration {
	if iv.end.Before(iv.start) {
		return 0
	}
	return iv.end.Sub(iv.start)
}

// eventInterval converts an event window into an interval, giving zero-length
// windows one nominal sample interval so that exact simultaneity produces
// full overlap instead of an empty measure.
func eventInterval(event models.DegradationEvent, sampleInterval time.Duration) interval {
	iv := interval{start: event.Window.Start, end: event.Window.End}
	if !iv.end.After(iv.start) {
		iv.end = iv.start.Add(sampleInterval)
	}
	return iv
}

// mergeIntervals unions overlapping or touching intervals into a sorted,
// disjoint list.
func mergeIntervals(intervals []interval) []interval {
	if len(intervals) == 0 {
		return nil
	}
	sorted := append([]interval(nil), intervals...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].start.Before(sorted[j].start) })

	merged := []interval{sorted[0]}
	for _, iv := range sorted[1:] {
		last := &merged[len(merged)-1]
		if !iv.start.After(last.end) {
			if iv.end.After(last.end) {
				last.end = iv.end
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// intersectIntervals computes the pairwise intersection of two disjoint
// sorted lists.
func intersectIntervals(a, b []interval) []interval {
	var out []interval
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		start := maxTime(a[i].start, b[j].start)
		end := minTime(a[i].end, b[j].end)
		if start.Before(end) {
			out = append(out, interval{start: start, end: end})
		}
		if a[i].end.Before(b[j].end) {
			i++
		} else {
			j++
		}
	}
	return out
}

func totalDuration(intervals []interval) time.Duration {
	var total time.Duration
	for _, iv := range intervals {
		total += iv.duration()
	}
	return total
}

func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
