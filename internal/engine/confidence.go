package engine

import (
	"math"
	"sort"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// ConfidenceEstimator computes
//
//	confidence = clamp01(c1·consistency + c2·overlap_ratio + c3·sample_adequacy)
//
// consistency falls with the spread of degradation magnitude across affected
// entities; overlap_ratio measures how much of the degraded time all
// implicated signals share; sample_adequacy floors confidence on windows
// thinner than the minimum sample count instead of raising an error.
//
// The bidirectional-link rule's exact simultaneity makes its inbound and
// outbound intervals identical, so overlap_ratio lands at 1.0 and the 90%+
// confidence tier falls out of the formula with no special casing.
type ConfidenceEstimator struct {
	cfg config.ScoringConfig
	det config.DetectionConfig
}

// NewConfidenceEstimator constructs an estimator with validated weights.
func NewConfidenceEstimator(cfg config.ScoringConfig, det config.DetectionConfig) *ConfidenceEstimator {
	return &ConfidenceEstimator{cfg: cfg, det: det}
}

// Estimate computes confidence for one candidate.
func (e *ConfidenceEstimator) Estimate(cand Candidate, series map[string]EntitySeries) float64 {
	if len(cand.Evidence) == 0 {
		return 0
	}

	consistency := e.consistency(cand)
	overlap := e.overlapRatio(cand)
	adequacy := e.sampleAdequacy(cand, series)

	return utils.Clamp01(
		e.cfg.ConfidenceConsistency*consistency +
			e.cfg.ConfidenceOverlap*overlap +
			e.cfg.ConfidenceSampleAdequacy*adequacy)
}

// consistency is inversely proportional to the population spread of mean
// degradation magnitude across affected entities. Magnitudes are normalized
// to [0,1], so twice the standard deviation spans the usable range. A single
// affected entity is perfectly consistent.
func (e *ConfidenceEstimator) consistency(cand Candidate) float64 {
	perEntity := make(map[string][]float64)
	for _, event := range cand.Evidence {
		perEntity[event.EntityID] = append(perEntity[event.EntityID], event.Magnitude)
	}
	if len(perEntity) <= 1 {
		return 1
	}

	means := make([]float64, 0, len(perEntity))
	for _, magnitudes := range perEntity {
		sum := 0.0
		for _, m := range magnitudes {
			sum += m
		}
		means = append(means, sum/float64(len(magnitudes)))
	}

	mean := 0.0
	for _, m := range means {
		mean += m
	}
	mean /= float64(len(means))

	variance := 0.0
	for _, m := range means {
		variance += (m - mean) * (m - mean)
	}
	variance /= float64(len(means))

	return utils.Clamp01(1 - 2*math.Sqrt(variance))
}

// overlapRatio is the degraded time shared by all implicated signals over
// the degraded time covered by any of them. Signals are keyed by entity and
// metric so a bidirectional pattern compares its two directions.
func (e *ConfidenceEstimator) overlapRatio(cand Candidate) float64 {
	groups := make(map[string][]interval)
	for _, event := range cand.Evidence {
		key := event.EntityID + "\x00" + event.MetricName
		groups[key] = append(groups[key], eventInterval(event, e.det.SampleInterval))
	}
	if len(groups) <= 1 {
		return 1
	}

	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var intersection, union []interval
	for i, key := range keys {
		merged := mergeIntervals(groups[key])
		if i == 0 {
			intersection = merged
			union = merged
			continue
		}
		intersection = intersectIntervals(intersection, merged)
		union = mergeIntervals(append(union, merged...))
	}

	unionTotal := totalDuration(union)
	if unionTotal <= 0 {
		return 0
	}
	return utils.Clamp01(float64(totalDuration(intersection)) / float64(unionTotal))
}

// sampleAdequacy penalizes windows with fewer than the minimum sample count
// on any affected entity, flooring confidence rather than failing.
func (e *ConfidenceEstimator) sampleAdequacy(cand Candidate, series map[string]EntitySeries) float64 {
	adequacy := 1.0
	for _, entityID := range cand.AffectedEntities {
		entity, ok := series[entityID]
		if !ok {
			return 0
		}
		ratio := float64(len(entity.Samples)) / float64(e.cfg.MinSamplesPerEntity)
		if ratio < adequacy {
			adequacy = ratio
		}
	}
	return utils.Clamp01(adequacy)
}
