package models

import "time"

// AnalysisStatus is the terminal outcome reported to callers.
type AnalysisStatus string

const (
	StatusSuccess          AnalysisStatus = "success"
	StatusInsufficientData AnalysisStatus = "insufficient_data"
)

// AnalysisState tracks per-request progression through the engine phases.
type AnalysisState string

const (
	StateRequested               AnalysisState = "requested"
	StateDataFetched             AnalysisState = "data_fetched"
	StateEventsDetected          AnalysisState = "events_detected"
	StatePatternsCorrelated      AnalysisState = "patterns_correlated"
	StateScored                  AnalysisState = "scored"
	StateClassified              AnalysisState = "classified"
	StateRecommendationsAttached AnalysisState = "recommendations_attached"
	StateCompleted               AnalysisState = "completed"
	StateInsufficientData        AnalysisState = "insufficient_data"
	StateFailed                  AnalysisState = "failed"
)

// AnalysisRequest is a scope-specific correlation request.
type AnalysisRequest struct {
	Scope         CorrelationScope `json:"scope" validate:"required"`
	EntityID      string           `json:"entity_identifier" validate:"required"`
	HoursLookback int              `json:"hours_lookback" validate:"min=1,max=168"`
}

// CorrelationAnalysis is the complete result of one correlation request.
// It is created fresh per request and is not self-persisting.
type CorrelationAnalysis struct {
	AnalysisID       string               `json:"analysis_id"`
	Scope            CorrelationScope     `json:"scope"`
	EntityID         string               `json:"entity_id"`
	HoursAnalyzed    int                  `json:"hours_analyzed"`
	Patterns         []DegradationPattern `json:"patterns_found"`
	CorrelationScore float64              `json:"correlation_score"`
	Recommendations  []string             `json:"recommendations"`
	GeneratedAt      time.Time            `json:"generated_at"`
}

// AnalysisResponse is the caller-facing envelope around an analysis.
type AnalysisResponse struct {
	Status   AnalysisStatus      `json:"status"`
	Analysis CorrelationAnalysis `json:"analysis"`
}
