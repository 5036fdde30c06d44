package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/orbitalworks/satlink-rca/internal/metrics"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Analyzer is the scoped analysis surface the service fronts. The engine
// satisfies it in production; tests inject fakes.
type Analyzer interface {
	AnalyzeNetwork(ctx context.Context, networkID string, hours int) (*models.AnalysisResponse, error)
	AnalyzeHubAntenna(ctx context.Context, siteID string, hours int) (*models.AnalysisResponse, error)
	AnalyzeSatellite(ctx context.Context, satellite string, hours int) (*models.AnalysisResponse, error)
	AnalyzeLinkBidirectional(ctx context.Context, linkID string, hours int) (*models.AnalysisResponse, error)
}

// AnalysisService is the caller-facing facade: it validates requests,
// dispatches by scope, and records latency and outcome metrics.
type AnalysisService struct {
	analyzer  Analyzer
	logger    *slog.Logger
	validate  *validator.Validate
	latencies *utils.LatencyTracker
}

// NewAnalysisService constructs the facade.
func NewAnalysisService(analyzer Analyzer, logger *slog.Logger) *AnalysisService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisService{
		analyzer:  analyzer,
		logger:    logger,
		validate:  validator.New(),
		latencies: utils.NewLatencyTracker(1024),
	}
}

// Analyze validates and runs one correlation request.
func (s *AnalysisService) Analyze(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	if err := s.validateRequest(req); err != nil {
		return nil, err
	}

	start := time.Now()
	resp, err := s.dispatch(ctx, req)
	duration := time.Since(start)

	scope := string(req.Scope)
	if err != nil {
		metrics.ObserveAnalysis(scope, duration, metrics.OutcomeError)
		s.logger.Error("analysis failed",
			slog.String("scope", scope),
			slog.String("entity_id", req.EntityID),
			slog.Any("error", err))
		return nil, err
	}

	s.latencies.Observe(duration)
	outcome := metrics.OutcomeSuccess
	if resp.Status == models.StatusInsufficientData {
		outcome = metrics.OutcomeInsufficientData
	}
	metrics.ObserveAnalysis(scope, duration, outcome)
	for _, pattern := range resp.Analysis.Patterns {
		metrics.CountPattern(string(pattern.RootCause))
	}

	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("analysis latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}
	return resp, nil
}

func (s *AnalysisService) dispatch(ctx context.Context, req models.AnalysisRequest) (*models.AnalysisResponse, error) {
	switch req.Scope {
	case models.ScopeNetwork:
		return s.analyzer.AnalyzeNetwork(ctx, req.EntityID, req.HoursLookback)
	case models.ScopeHubAntenna:
		return s.analyzer.AnalyzeHubAntenna(ctx, req.EntityID, req.HoursLookback)
	case models.ScopeSatellite:
		return s.analyzer.AnalyzeSatellite(ctx, req.EntityID, req.HoursLookback)
	case models.ScopeLinkBidirectional:
		return s.analyzer.AnalyzeLinkBidirectional(ctx, req.EntityID, req.HoursLookback)
	default:
		return nil, utils.NewAppError("service.Analyze", utils.KindConfiguration,
			"unknown scope "+string(req.Scope), nil)
	}
}

func (s *AnalysisService) validateRequest(req models.AnalysisRequest) error {
	// HoursLookback zero means "use default" and is filled downstream, so it
	// is validated only when set.
	if req.Scope == "" || req.EntityID == "" {
		return utils.NewAppError("service.Analyze", utils.KindConfiguration,
			"scope and entity_identifier are required", nil)
	}
	if req.HoursLookback != 0 {
		if err := s.validate.Struct(req); err != nil {
			return utils.NewAppError("service.Analyze", utils.KindConfiguration,
				"invalid analysis request", err)
		}
	}
	return nil
}

// LatencyP95 returns the current p95 analysis latency.
func (s *AnalysisService) LatencyP95() time.Duration {
	return s.latencies.Percentile(95)
}
