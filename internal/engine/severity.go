package engine

import (
	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// SeverityScorer computes
//
//	severity = clamp01(w1·avg_magnitude + w2·degraded_fraction + w3·breadth_fraction)
//
// where avg_magnitude is the mean normalized threshold exceedance across the
// evidence, degraded_fraction is the share of in-window samples that are
// critical on the affected entities, and breadth_fraction is the affected
// entity count over the total entities in scope. Weights sum to 1.
type SeverityScorer struct {
	cfg config.ScoringConfig
}

// NewSeverityScorer constructs a scorer with validated weights.
func NewSeverityScorer(cfg config.ScoringConfig) *SeverityScorer {
	return &SeverityScorer{cfg: cfg}
}

// Score computes severity for one candidate.
func (s *SeverityScorer) Score(cand Candidate, series map[string]EntitySeries, totalEntities int) float64 {
	if len(cand.Evidence) == 0 {
		return 0
	}

	var magnitudeSum float64
	for _, event := range cand.Evidence {
		magnitudeSum += event.Magnitude
	}
	avgMagnitude := magnitudeSum / float64(len(cand.Evidence))

	var sampleTotal, criticalTotal int
	for _, entityID := range cand.AffectedEntities {
		if entity, ok := series[entityID]; ok {
			sampleTotal += len(entity.Samples)
			criticalTotal += entity.CriticalSamples
		}
	}
	degradedFraction := 0.0
	if sampleTotal > 0 {
		degradedFraction = float64(criticalTotal) / float64(sampleTotal)
	}

	breadthFraction := 0.0
	if totalEntities > 0 {
		breadthFraction = float64(len(cand.AffectedEntities)) / float64(totalEntities)
	}

	return utils.Clamp01(
		s.cfg.SeverityMagnitudeWeight*avgMagnitude +
			s.cfg.SeverityFractionWeight*degradedFraction +
			s.cfg.SeverityBreadthWeight*breadthFraction)
}
