package models

import "time"

// PatternType enumerates the four physical root-cause classes.
type PatternType string

const (
	PatternEquipmentFailure      PatternType = "equipment_failure"
	PatternAntennaAlignment      PatternType = "antenna_alignment"
	PatternSatelliteInterference PatternType = "satellite_interference"
	PatternAntennaMisalignment   PatternType = "antenna_misalignment"
)

// PatternTypes lists all classes in classifier output order.
var PatternTypes = []PatternType{
	PatternEquipmentFailure,
	PatternAntennaAlignment,
	PatternSatelliteInterference,
	PatternAntennaMisalignment,
}

// Valid reports whether t is one of the enumerated classes.
func (t PatternType) Valid() bool {
	for _, known := range PatternTypes {
		if t == known {
			return true
		}
	}
	return false
}

// CorrelationScope selects which correlation rule and feature set apply.
type CorrelationScope string

const (
	ScopeNetwork           CorrelationScope = "network"
	ScopeHubAntenna        CorrelationScope = "hub_antenna"
	ScopeSatellite         CorrelationScope = "satellite"
	ScopeLinkBidirectional CorrelationScope = "link"
)

// RuleCause returns the root cause implied by a scope's correlation rule,
// used when the classifier is unavailable or below the confidence floor.
func (s CorrelationScope) RuleCause() PatternType {
	switch s {
	case ScopeNetwork:
		return PatternEquipmentFailure
	case ScopeHubAntenna:
		return PatternAntennaAlignment
	case ScopeSatellite:
		return PatternSatelliteInterference
	default:
		return PatternAntennaMisalignment
	}
}

// DegradationEvent is a run of temporally contiguous critical samples on one
// entity, merged within the configured tolerance. Magnitude is the peak
// normalized exceedance over the triggering threshold, in [0,1].
type DegradationEvent struct {
	EntityID    string     `json:"entity_id"`
	EntityType  EntityType `json:"entity_type"`
	MetricName  string     `json:"metric_name"`
	Window      TimeRange  `json:"window"`
	Magnitude   float64    `json:"magnitude"`
	PeakValue   float64    `json:"peak_value"`
	SampleCount int        `json:"sample_count"`
	IsCritical  bool       `json:"is_critical"`
}

// DegradationPattern is one correlated degradation across entities, scored
// and classified. Severity and confidence are always clamped to [0,1] and
// RootCause is always one of the enumerated classes.
type DegradationPattern struct {
	PatternType       PatternType        `json:"pattern_type"`
	Severity          float64            `json:"severity"`
	Confidence        float64            `json:"confidence"`
	AffectedEntities  []string           `json:"affected_entities"`
	Evidence          []DegradationEvent `json:"evidence"`
	RootCause         PatternType        `json:"root_cause"`
	SupportingMetrics map[string]float64 `json:"supporting_metrics,omitempty"`
	DetectedAt        time.Time          `json:"detected_at"`
}
