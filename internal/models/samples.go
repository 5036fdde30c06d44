package models

import "time"

// EntityType enumerates the kinds of entities telemetry is recorded against.
type EntityType string

const (
	EntityTypeNetwork   EntityType = "network"
	EntityTypeSite      EntityType = "site"
	EntityTypeSatellite EntityType = "satellite"
	EntityTypeLink      EntityType = "link"
	EntityTypeDevice    EntityType = "device"
)

// MetricSample is one telemetry reading for an entity. Samples are immutable
// and produced by the metrics repository in ascending timestamp order.
type MetricSample struct {
	EntityID      string     `json:"entity_id"`
	EntityType    EntityType `json:"entity_type"`
	Timestamp     time.Time  `json:"timestamp"`
	Grade         float64    `json:"grade"`
	Availability  float64    `json:"availability"`
	IBDegradation float64    `json:"ib_degradation"`
	OBDegradation float64    `json:"ob_degradation"`
	IBInstability float64    `json:"ib_instability"`
	OBInstability float64    `json:"ob_instability"`
	UpTime        float64    `json:"up_time"`
	Latency       float64    `json:"latency"`
	Congestion    float64    `json:"congestion"`
}

// TimeRange bounds a span of telemetry.
type TimeRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Duration returns the length of the range, zero when inverted.
func (r TimeRange) Duration() time.Duration {
	if r.End.Before(r.Start) {
		return 0
	}
	return r.End.Sub(r.Start)
}

// LinkRef is the topology record for a single link: which site terminates it,
// which network it belongs to, and which satellite (if any) carries it.
type LinkRef struct {
	LinkID    string
	SiteID    string
	NetworkID string
	Satellite string
	LinkName  string
}
