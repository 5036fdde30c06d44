// Package engine implements the correlation pipeline: degradation detection,
// per-scope pattern correlation, severity and confidence scoring, root-cause
// classification, and recommendation lookup.
package engine

import (
	"time"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Metric names the detector watches on each sample.
const (
	MetricGrade         = "grade"
	MetricIBDegradation = "ib_degradation"
	MetricOBDegradation = "ob_degradation"
	MetricIBInstability = "ib_instability"
	MetricOBInstability = "ob_instability"
)

// EntitySeries is one entity's window of samples plus everything the
// detector derived from it.
type EntitySeries struct {
	EntityID string
	Samples  []models.MetricSample
	Events   []models.DegradationEvent
	// CriticalSamples counts samples degraded under any watched metric;
	// a sample tripping several thresholds counts once.
	CriticalSamples int
}

// Detector classifies raw samples into critical/unstable degradation events,
// merging temporally contiguous readings per metric.
type Detector struct {
	cfg config.DetectionConfig
}

// NewDetector constructs a Detector with the given thresholds.
func NewDetector(cfg config.DetectionConfig) *Detector {
	return &Detector{cfg: cfg}
}

// Analyze derives degradation events from one entity's samples, which must
// be ordered ascending by timestamp. Empty input yields empty events; the
// orchestrator reports that as insufficient data, not as a fault.
func (d *Detector) Analyze(entityID string, samples []models.MetricSample) EntitySeries {
	series := EntitySeries{EntityID: entityID, Samples: samples}
	if len(samples) == 0 {
		return series
	}

	for _, metric := range []string{
		MetricGrade,
		MetricIBDegradation, MetricOBDegradation,
		MetricIBInstability, MetricOBInstability,
	} {
		series.Events = append(series.Events, d.detectMetric(entityID, metric, samples)...)
	}

	for _, sample := range samples {
		if d.sampleDegraded(sample) {
			series.CriticalSamples++
		}
	}

	return series
}

// detectMetric scans one metric across the window and merges adjacent
// degraded samples (gap within the tolerance) into one event recording the
// peak magnitude and the covering window.
func (d *Detector) detectMetric(entityID, metric string, samples []models.MetricSample) []models.DegradationEvent {
	var events []models.DegradationEvent
	var current *models.DegradationEvent

	flush := func() {
		if current != nil {
			events = append(events, *current)
			current = nil
		}
	}

	for _, sample := range samples {
		magnitude, peak, degraded := d.evaluate(metric, sample)
		if !degraded {
			continue
		}

		if current != nil && !withinTolerance(current.Window.End, sample.Timestamp, d.cfg.MergeTolerance) {
			flush()
		}

		if current == nil {
			current = &models.DegradationEvent{
				EntityID:   entityID,
				EntityType: sample.EntityType,
				MetricName: metric,
				Window:     models.TimeRange{Start: sample.Timestamp, End: sample.Timestamp},
				Magnitude:  magnitude,
				PeakValue:  peak,
				IsCritical: metric != MetricIBInstability && metric != MetricOBInstability,
			}
		} else {
			current.Window.End = sample.Timestamp
			if magnitude > current.Magnitude {
				current.Magnitude = magnitude
				current.PeakValue = peak
			}
		}
		current.SampleCount++
	}
	flush()

	return events
}

// evaluate returns the normalized exceedance for one metric on one sample.
// Grade degrades downward from its threshold; every other watched metric
// degrades upward.
func (d *Detector) evaluate(metric string, sample models.MetricSample) (magnitude, peak float64, degraded bool) {
	switch metric {
	case MetricGrade:
		if sample.Grade >= d.cfg.GradeCriticalThreshold {
			return 0, 0, false
		}
		return utils.Clamp01((d.cfg.GradeCriticalThreshold - sample.Grade) / d.cfg.GradeCriticalThreshold), sample.Grade, true
	case MetricIBDegradation:
		return d.overThreshold(sample.IBDegradation, d.cfg.DegradationThreshold)
	case MetricOBDegradation:
		return d.overThreshold(sample.OBDegradation, d.cfg.DegradationThreshold)
	case MetricIBInstability:
		return d.overThreshold(sample.IBInstability, d.cfg.InstabilityThreshold)
	case MetricOBInstability:
		return d.overThreshold(sample.OBInstability, d.cfg.InstabilityThreshold)
	}
	return 0, 0, false
}

func (d *Detector) overThreshold(value, threshold float64) (float64, float64, bool) {
	if value < threshold {
		return 0, 0, false
	}
	return utils.Clamp01((value - threshold) / threshold), value, true
}

func (d *Detector) sampleDegraded(sample models.MetricSample) bool {
	return sample.Grade < d.cfg.GradeCriticalThreshold ||
		sample.IBDegradation >= d.cfg.DegradationThreshold ||
		sample.OBDegradation >= d.cfg.DegradationThreshold ||
		sample.IBInstability >= d.cfg.InstabilityThreshold ||
		sample.OBInstability >= d.cfg.InstabilityThreshold
}

func withinTolerance(prev, next time.Time, tolerance time.Duration) bool {
	if next.Before(prev) {
		prev, next = next, prev
	}
	return next.Sub(prev) <= tolerance || utils.SameCalendarDay(prev, next)
}
