package engine

import (
	"sort"
	"time"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Candidate is a correlated degradation found by one scope rule, before
// scoring and classification.
type Candidate struct {
	Scope            models.CorrelationScope
	PatternType      models.PatternType
	AffectedEntities []string
	Evidence         []models.DegradationEvent
	Supporting       map[string]float64
}

// Correlator applies the scope-specific grouping rules. Scopes are evaluated
// independently; patterns are never merged across scopes even when entities
// overlap.
type Correlator struct {
	cfg config.CorrelationConfig
	det config.DetectionConfig
}

// NewCorrelator constructs a Correlator.
func NewCorrelator(cfg config.CorrelationConfig, det config.DetectionConfig) *Correlator {
	return &Correlator{cfg: cfg, det: det}
}

// Correlate dispatches to the rule for the scope.
func (c *Correlator) Correlate(scope models.CorrelationScope, series map[string]EntitySeries, topo []models.LinkRef) []Candidate {
	switch scope {
	case models.ScopeNetwork:
		return c.networkEquipmentFailure(series, topo)
	case models.ScopeHubAntenna:
		return c.hubAntennaAlignment(series)
	case models.ScopeSatellite:
		return c.satelliteInterference(series)
	case models.ScopeLinkBidirectional:
		return c.linkBidirectionalMisalignment(series)
	}
	return nil
}

// networkEquipmentFailure flags clusters of grade degradation landing on at
// least MinSitesForPattern distinct sites within the co-occurrence window.
// Events join a cluster when their window starts within the window of the
// cluster's covered span, so a long-running outage and a later dip that
// overlaps it correlate. Breadth across sites is the signature of shared
// equipment failure.
func (c *Correlator) networkEquipmentFailure(series map[string]EntitySeries, topo []models.LinkRef) []Candidate {
	siteOf := make(map[string]string, len(topo))
	for _, ref := range topo {
		siteOf[ref.LinkID] = ref.SiteID
	}

	events := collectEvents(series, MetricGrade)
	if len(events) == 0 {
		return nil
	}
	sort.Slice(events, func(i, j int) bool {
		if events[i].Window.Start.Equal(events[j].Window.Start) {
			return events[i].EntityID < events[j].EntityID
		}
		return events[i].Window.Start.Before(events[j].Window.Start)
	})

	var candidates []Candidate
	var cluster []models.DegradationEvent
	var clusterEnd time.Time

	flush := func() {
		if cand, ok := c.clusterCandidate(cluster, siteOf); ok {
			candidates = append(candidates, cand)
		}
		cluster = cluster[:0]
		clusterEnd = time.Time{}
	}

	for _, event := range events {
		if len(cluster) > 0 && event.Window.Start.Sub(clusterEnd) > c.cfg.CoOccurrenceWindow {
			flush()
		}
		cluster = append(cluster, event)
		if event.Window.End.After(clusterEnd) {
			clusterEnd = event.Window.End
		}
	}
	flush()

	return candidates
}

func (c *Correlator) clusterCandidate(cluster []models.DegradationEvent, siteOf map[string]string) (Candidate, bool) {
	if len(cluster) == 0 {
		return Candidate{}, false
	}

	sites := make(map[string]struct{})
	links := make(map[string]struct{})
	minGrade := cluster[0].PeakValue
	for _, event := range cluster {
		links[event.EntityID] = struct{}{}
		if site, ok := siteOf[event.EntityID]; ok {
			sites[site] = struct{}{}
		}
		if event.PeakValue < minGrade {
			minGrade = event.PeakValue
		}
	}
	if len(sites) < c.cfg.MinSitesForPattern {
		return Candidate{}, false
	}

	return Candidate{
		Scope:            models.ScopeNetwork,
		PatternType:      models.PatternEquipmentFailure,
		AffectedEntities: sortedKeys(links),
		Evidence:         append([]models.DegradationEvent(nil), cluster...),
		Supporting: map[string]float64{
			"affected_sites": float64(len(sites)),
			"affected_links": float64(len(links)),
			"min_grade":      minGrade,
		},
	}, true
}

// hubAntennaAlignment requires a sustained instability run spanning at
// least MinConsecutiveDays calendar days on links sharing the hub. A single
// isolated dip never qualifies.
func (c *Correlator) hubAntennaAlignment(series map[string]EntitySeries) []Candidate {
	var evidence []models.DegradationEvent
	links := make(map[string]struct{})

	for _, entityID := range sortedSeriesKeys(series) {
		for _, event := range series[entityID].Events {
			if event.MetricName != MetricIBInstability && event.MetricName != MetricOBInstability {
				continue
			}
			if !c.sustained(event) {
				continue
			}
			evidence = append(evidence, event)
			links[event.EntityID] = struct{}{}
		}
	}

	if len(evidence) == 0 {
		return nil
	}

	return []Candidate{{
		Scope:            models.ScopeHubAntenna,
		PatternType:      models.PatternAntennaAlignment,
		AffectedEntities: sortedKeys(links),
		Evidence:         evidence,
		Supporting: map[string]float64{
			"affected_links": float64(len(links)),
			"sustained_runs": float64(len(evidence)),
			"min_run_days":   float64(c.cfg.MinConsecutiveDays),
		},
	}}
}

// sustained reports whether a merged instability event covers at least
// MinConsecutiveDays distinct calendar days. Raw sample counts do not
// qualify: a burst of sub-daily readings inside a single day is still an
// isolated dip.
func (c *Correlator) sustained(event models.DegradationEvent) bool {
	days := int(utils.DayKey(event.Window.End).Sub(utils.DayKey(event.Window.Start)).Hours()/24) + 1
	return days >= c.cfg.MinConsecutiveDays
}

// satelliteInterference requires simultaneous grade degradation on at least
// MinLinksForSatellite links sharing the satellite, with real temporal
// overlap between their degraded intervals.
func (c *Correlator) satelliteInterference(series map[string]EntitySeries) []Candidate {
	degraded := make(map[string][]interval)
	var avgGradeSum float64
	var avgGradeCount int

	for _, entityID := range sortedSeriesKeys(series) {
		s := series[entityID]
		var intervals []interval
		for _, event := range s.Events {
			if event.MetricName != MetricGrade {
				continue
			}
			intervals = append(intervals, eventInterval(event, c.det.SampleInterval))
			avgGradeSum += event.PeakValue
			avgGradeCount++
		}
		if len(intervals) > 0 {
			degraded[entityID] = mergeIntervals(intervals)
		}
	}

	if len(degraded) < c.cfg.MinLinksForSatellite {
		return nil
	}

	overlapping := linksWithPeakOverlap(degraded, c.cfg.MinLinksForSatellite)
	if len(overlapping) < c.cfg.MinLinksForSatellite {
		return nil
	}

	var evidence []models.DegradationEvent
	links := make(map[string]struct{})
	for _, entityID := range overlapping {
		links[entityID] = struct{}{}
		for _, event := range series[entityID].Events {
			if event.MetricName == MetricGrade {
				evidence = append(evidence, event)
			}
		}
	}

	supporting := map[string]float64{
		"affected_links": float64(len(links)),
	}
	if avgGradeCount > 0 {
		supporting["avg_degraded_grade"] = avgGradeSum / float64(avgGradeCount)
	}

	return []Candidate{{
		Scope:            models.ScopeSatellite,
		PatternType:      models.PatternSatelliteInterference,
		AffectedEntities: sortedKeys(links),
		Evidence:         evidence,
		Supporting:       supporting,
	}}
}

// linksWithPeakOverlap sweeps the degraded intervals and returns the links
// covering any instant where at least minLinks are simultaneously degraded.
func linksWithPeakOverlap(degraded map[string][]interval, minLinks int) []string {
	type edge struct {
		at    time.Time
		delta int
	}
	var edges []edge
	for _, intervals := range degraded {
		for _, iv := range intervals {
			edges = append(edges, edge{at: iv.start, delta: 1}, edge{at: iv.end, delta: -1})
		}
	}
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].at.Equal(edges[j].at) {
			// Starts before ends so touching intervals count as overlapping.
			return edges[i].delta > edges[j].delta
		}
		return edges[i].at.Before(edges[j].at)
	})

	depth := 0
	var peakAt time.Time
	found := false
	for _, e := range edges {
		depth += e.delta
		if depth >= minLinks && !found {
			peakAt = e.at
			found = true
		}
	}
	if !found {
		return nil
	}

	var links []string
	for entityID, intervals := range degraded {
		for _, iv := range intervals {
			if !peakAt.Before(iv.start) && !peakAt.After(iv.end) {
				links = append(links, entityID)
				break
			}
		}
	}
	sort.Strings(links)
	return links
}

// linkBidirectionalMisalignment requires inbound and outbound degradation on
// the same sample timestamp. Simultaneity is the defining signature and is
// checked exactly, sample by sample, never approximated from merged windows.
func (c *Correlator) linkBidirectionalMisalignment(series map[string]EntitySeries) []Candidate {
	var candidates []Candidate

	for _, entityID := range sortedSeriesKeys(series) {
		s := series[entityID]

		var ibEvidence, obEvidence *models.DegradationEvent
		var qualifying int
		peakIB, peakOB := 0.0, 0.0

		for _, sample := range s.Samples {
			if sample.IBDegradation < c.det.DegradationThreshold || sample.OBDegradation < c.det.DegradationThreshold {
				continue
			}
			qualifying++
			if sample.IBDegradation > peakIB {
				peakIB = sample.IBDegradation
			}
			if sample.OBDegradation > peakOB {
				peakOB = sample.OBDegradation
			}
			ibEvidence = extendDirectional(ibEvidence, entityID, MetricIBDegradation, sample.Timestamp,
				sample.IBDegradation, c.det.DegradationThreshold)
			obEvidence = extendDirectional(obEvidence, entityID, MetricOBDegradation, sample.Timestamp,
				sample.OBDegradation, c.det.DegradationThreshold)
		}

		if qualifying == 0 {
			continue
		}

		candidates = append(candidates, Candidate{
			Scope:            models.ScopeLinkBidirectional,
			PatternType:      models.PatternAntennaMisalignment,
			AffectedEntities: []string{entityID},
			Evidence:         []models.DegradationEvent{*ibEvidence, *obEvidence},
			Supporting: map[string]float64{
				"simultaneous_samples": float64(qualifying),
				"peak_ib_degradation":  peakIB,
				"peak_ob_degradation":  peakOB,
			},
		})
	}

	return candidates
}

func extendDirectional(event *models.DegradationEvent, entityID, metric string, ts time.Time, value, threshold float64) *models.DegradationEvent {
	magnitude := utils.Clamp01((value - threshold) / threshold)
	if event == nil {
		return &models.DegradationEvent{
			EntityID:    entityID,
			EntityType:  models.EntityTypeLink,
			MetricName:  metric,
			Window:      models.TimeRange{Start: ts, End: ts},
			Magnitude:   magnitude,
			PeakValue:   value,
			SampleCount: 1,
			IsCritical:  true,
		}
	}
	event.Window.End = ts
	event.SampleCount++
	if magnitude > event.Magnitude {
		event.Magnitude = magnitude
		event.PeakValue = value
	}
	return event
}

func collectEvents(series map[string]EntitySeries, metric string) []models.DegradationEvent {
	var events []models.DegradationEvent
	for _, entityID := range sortedSeriesKeys(series) {
		for _, event := range series[entityID].Events {
			if event.MetricName == metric {
				events = append(events, event)
			}
		}
	}
	return events
}

func sortedSeriesKeys(series map[string]EntitySeries) []string {
	keys := make([]string, 0, len(series))
	for key := range series {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
