package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeSuccess labels analyses that completed with patterns evaluated.
	OutcomeSuccess = "success"
	// OutcomeInsufficientData labels analyses whose window held no telemetry.
	OutcomeInsufficientData = "insufficient_data"
	// OutcomeError labels analyses that failed on a dependency or bad input.
	OutcomeError = "error"
)

var (
	analysesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satlink_rca",
			Name:      "analyses_total",
			Help:      "Total number of correlation analyses handled, partitioned by scope and outcome.",
		},
		[]string{"scope", "outcome"},
	)

	analysisDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "satlink_rca",
			Name:      "analysis_seconds",
			Help:      "Correlation analysis latency in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 10},
		},
		[]string{"scope"},
	)

	patternsFound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "satlink_rca",
			Name:      "patterns_found_total",
			Help:      "Total degradation patterns emitted, partitioned by root cause.",
		},
		[]string{"root_cause"},
	)
)

// Register attaches satlink-rca collectors to the supplied Prometheus
// registerer. Re-registration is harmless.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		analysesTotal,
		analysisDurationSeconds,
		patternsFound,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveAnalysis records one analysis duration and outcome.
func ObserveAnalysis(scope string, duration time.Duration, outcome string) {
	analysesTotal.WithLabelValues(scope, outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	analysisDurationSeconds.WithLabelValues(scope).Observe(duration.Seconds())
}

// CountPattern records one emitted pattern by root cause.
func CountPattern(rootCause string) {
	patternsFound.WithLabelValues(rootCause).Inc()
}
