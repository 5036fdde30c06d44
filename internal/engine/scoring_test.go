package engine

import (
	"math"
	"testing"
	"time"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
)

func gradeEvent(entityID string, start, end time.Time, magnitude float64) models.DegradationEvent {
	return models.DegradationEvent{
		EntityID:    entityID,
		EntityType:  models.EntityTypeLink,
		MetricName:  MetricGrade,
		Window:      models.TimeRange{Start: start, End: end},
		Magnitude:   magnitude,
		SampleCount: 1,
		IsCritical:  true,
	}
}

func TestSeverityFormula(t *testing.T) {
	cfg := config.Default()
	scorer := NewSeverityScorer(cfg.Scoring)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	cand := Candidate{
		AffectedEntities: []string{"l1", "l2"},
		Evidence: []models.DegradationEvent{
			gradeEvent("l1", ts, ts, 0.6),
			gradeEvent("l2", ts, ts, 0.4),
		},
	}
	series := map[string]EntitySeries{
		"l1": {EntityID: "l1", Samples: make([]models.MetricSample, 4), CriticalSamples: 1},
		"l2": {EntityID: "l2", Samples: make([]models.MetricSample, 4), CriticalSamples: 1},
	}

	// 0.4*0.5 + 0.3*(2/8) + 0.3*(2/4)
	want := 0.4*0.5 + 0.3*0.25 + 0.3*0.5
	got := scorer.Score(cand, series, 4)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("severity = %f, want %f", got, want)
	}
}

func TestSeverityClampedAndBounded(t *testing.T) {
	cfg := config.Default()
	scorer := NewSeverityScorer(cfg.Scoring)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	cand := Candidate{
		AffectedEntities: []string{"l1"},
		Evidence:         []models.DegradationEvent{gradeEvent("l1", ts, ts, 1.0)},
	}
	series := map[string]EntitySeries{
		"l1": {EntityID: "l1", Samples: make([]models.MetricSample, 1), CriticalSamples: 1},
	}

	got := scorer.Score(cand, series, 1)
	if got < 0 || got > 1 {
		t.Fatalf("severity = %f out of [0,1]", got)
	}
	if got != 1 {
		t.Fatalf("severity = %f, want 1 for maximal inputs", got)
	}

	if empty := scorer.Score(Candidate{}, series, 1); empty != 0 {
		t.Fatalf("severity with no evidence = %f, want 0", empty)
	}
}

func TestConfidenceBidirectionalSimultaneity(t *testing.T) {
	cfg := config.Default()
	est := NewConfidenceEstimator(cfg.Scoring, cfg.Detection)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	window := models.TimeRange{Start: ts, End: ts.Add(time.Hour)}
	cand := Candidate{
		AffectedEntities: []string{"77"},
		Evidence: []models.DegradationEvent{
			{EntityID: "77", MetricName: MetricIBDegradation, Window: window, Magnitude: 1, SampleCount: 2},
			{EntityID: "77", MetricName: MetricOBDegradation, Window: window, Magnitude: 1, SampleCount: 2},
		},
	}
	series := map[string]EntitySeries{
		"77": {EntityID: "77", Samples: make([]models.MetricSample, 2)},
	}

	// consistency 1, overlap 1, adequacy 2/3.
	want := 0.35 + 0.45 + 0.20*(2.0/3.0)
	got := est.Estimate(cand, series)
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("confidence = %f, want %f", got, want)
	}
	if got < 0.90 {
		t.Fatalf("confidence = %f, want >= 0.90", got)
	}
}

func TestConfidenceDropsWithInconsistentMagnitudes(t *testing.T) {
	cfg := config.Default()
	est := NewConfidenceEstimator(cfg.Scoring, cfg.Detection)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	uniform := Candidate{
		AffectedEntities: []string{"l1", "l2"},
		Evidence: []models.DegradationEvent{
			gradeEvent("l1", ts, ts.Add(time.Hour), 0.5),
			gradeEvent("l2", ts, ts.Add(time.Hour), 0.5),
		},
	}
	spread := Candidate{
		AffectedEntities: []string{"l1", "l2"},
		Evidence: []models.DegradationEvent{
			gradeEvent("l1", ts, ts.Add(time.Hour), 0.9),
			gradeEvent("l2", ts, ts.Add(time.Hour), 0.1),
		},
	}
	series := map[string]EntitySeries{
		"l1": {EntityID: "l1", Samples: make([]models.MetricSample, 5)},
		"l2": {EntityID: "l2", Samples: make([]models.MetricSample, 5)},
	}

	if u, s := est.Estimate(uniform, series), est.Estimate(spread, series); s >= u {
		t.Fatalf("spread confidence %f not below uniform %f", s, u)
	}
}

func TestConfidenceDropsWithoutOverlap(t *testing.T) {
	cfg := config.Default()
	est := NewConfidenceEstimator(cfg.Scoring, cfg.Detection)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	overlapping := Candidate{
		AffectedEntities: []string{"l1", "l2"},
		Evidence: []models.DegradationEvent{
			gradeEvent("l1", ts, ts.Add(2*time.Hour), 0.5),
			gradeEvent("l2", ts, ts.Add(2*time.Hour), 0.5),
		},
	}
	disjoint := Candidate{
		AffectedEntities: []string{"l1", "l2"},
		Evidence: []models.DegradationEvent{
			gradeEvent("l1", ts, ts.Add(2*time.Hour), 0.5),
			gradeEvent("l2", ts.Add(10*time.Hour), ts.Add(12*time.Hour), 0.5),
		},
	}
	series := map[string]EntitySeries{
		"l1": {EntityID: "l1", Samples: make([]models.MetricSample, 5)},
		"l2": {EntityID: "l2", Samples: make([]models.MetricSample, 5)},
	}

	o, d := est.Estimate(overlapping, series), est.Estimate(disjoint, series)
	if d >= o {
		t.Fatalf("disjoint confidence %f not below overlapping %f", d, o)
	}
}

func TestConfidenceZeroForMissingEntity(t *testing.T) {
	cfg := config.Default()
	est := NewConfidenceEstimator(cfg.Scoring, cfg.Detection)
	ts := time.Date(2026, 8, 20, 9, 0, 0, 0, time.UTC)

	cand := Candidate{
		AffectedEntities: []string{"ghost"},
		Evidence:         []models.DegradationEvent{gradeEvent("ghost", ts, ts, 0.5)},
	}

	got := est.Estimate(cand, map[string]EntitySeries{})
	// consistency 1, overlap 1 (single group), adequacy 0.
	want := 0.35 + 0.45
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("confidence = %f, want %f", got, want)
	}
}

func TestIntervalMergeAndIntersect(t *testing.T) {
	ts := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	h := func(n int) time.Time { return ts.Add(time.Duration(n) * time.Hour) }

	merged := mergeIntervals([]interval{
		{start: h(0), end: h(2)},
		{start: h(1), end: h(3)},
		{start: h(5), end: h(6)},
	})
	if len(merged) != 2 {
		t.Fatalf("merged = %d intervals, want 2", len(merged))
	}
	if !merged[0].start.Equal(h(0)) || !merged[0].end.Equal(h(3)) {
		t.Fatalf("first merged interval = %+v", merged[0])
	}

	intersected := intersectIntervals(
		[]interval{{start: h(0), end: h(3)}},
		[]interval{{start: h(2), end: h(5)}},
	)
	if len(intersected) != 1 {
		t.Fatalf("intersection = %d intervals, want 1", len(intersected))
	}
	if got := totalDuration(intersected); got != time.Hour {
		t.Fatalf("intersection duration = %v, want 1h", got)
	}
}
