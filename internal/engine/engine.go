package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/orbitalworks/satlink-rca/internal/config"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// MetricsRepository is the telemetry access the engine depends on. The
// Postgres store satisfies it in production; tests inject fakes.
type MetricsRepository interface {
	NetworkLinks(ctx context.Context, networkID string) ([]models.LinkRef, error)
	HubLinks(ctx context.Context, siteID string) ([]models.LinkRef, error)
	SatelliteLinks(ctx context.Context, satellite string) ([]models.LinkRef, error)
	Link(ctx context.Context, linkID string) (models.LinkRef, error)
	FetchSeriesBatch(ctx context.Context, linkIDs []string, since time.Time) (map[string][]models.MetricSample, error)
}

// Engine runs the full correlation pipeline for one request: fetch, detect,
// correlate, score, classify, recommend. Requests are independent; the engine
// holds no per-request state and is safe for concurrent use.
type Engine struct {
	repo        MetricsRepository
	detector    *Detector
	correlator  *Correlator
	severity    *SeverityScorer
	confidence  *ConfidenceEstimator
	classifier  *RootCauseClassifier
	recommender *Recommender
	cfg         config.EngineConfig
	logger      *slog.Logger

	// Injectable clocks and ID sources keep analyses reproducible in tests.
	now   func() time.Time
	newID func() string
}

// New wires an Engine from its parts.
func New(
	repo MetricsRepository,
	detector *Detector,
	correlator *Correlator,
	severity *SeverityScorer,
	confidence *ConfidenceEstimator,
	classifier *RootCauseClassifier,
	recommender *Recommender,
	cfg config.EngineConfig,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		repo:        repo,
		detector:    detector,
		correlator:  correlator,
		severity:    severity,
		confidence:  confidence,
		classifier:  classifier,
		recommender: recommender,
		cfg:         cfg,
		logger:      logger,
		now:         time.Now,
		newID:       func() string { return strings.Split(uuid.NewString(), "-")[0] },
	}
}

// WithClock overrides the engine clock. Intended for tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// WithIDSource overrides analysis ID suffix generation. Intended for tests.
func (e *Engine) WithIDSource(newID func() string) *Engine {
	e.newID = newID
	return e
}

// AnalyzeNetwork correlates degradation across every link in a network.
func (e *Engine) AnalyzeNetwork(ctx context.Context, networkID string, hours int) (*models.AnalysisResponse, error) {
	return e.analyze(ctx, models.ScopeNetwork, "NET", networkID, hours, func(ctx context.Context) ([]models.LinkRef, error) {
		return e.repo.NetworkLinks(ctx, networkID)
	})
}

// AnalyzeHubAntenna correlates sustained instability across a hub's links.
func (e *Engine) AnalyzeHubAntenna(ctx context.Context, siteID string, hours int) (*models.AnalysisResponse, error) {
	return e.analyze(ctx, models.ScopeHubAntenna, "HUB", siteID, hours, func(ctx context.Context) ([]models.LinkRef, error) {
		return e.repo.HubLinks(ctx, siteID)
	})
}

// AnalyzeSatellite correlates degradation across links sharing a satellite.
func (e *Engine) AnalyzeSatellite(ctx context.Context, satellite string, hours int) (*models.AnalysisResponse, error) {
	return e.analyze(ctx, models.ScopeSatellite, "SAT", satellite, hours, func(ctx context.Context) ([]models.LinkRef, error) {
		return e.repo.SatelliteLinks(ctx, satellite)
	})
}

// AnalyzeLinkBidirectional checks one link for simultaneous inbound and
// outbound degradation.
func (e *Engine) AnalyzeLinkBidirectional(ctx context.Context, linkID string, hours int) (*models.AnalysisResponse, error) {
	return e.analyze(ctx, models.ScopeLinkBidirectional, "LINK", linkID, hours, func(ctx context.Context) ([]models.LinkRef, error) {
		link, err := e.repo.Link(ctx, linkID)
		if err != nil {
			return nil, err
		}
		return []models.LinkRef{link}, nil
	})
}

func (e *Engine) analyze(
	ctx context.Context,
	scope models.CorrelationScope,
	idPrefix, entityID string,
	hours int,
	fetchLinks func(ctx context.Context) ([]models.LinkRef, error),
) (*models.AnalysisResponse, error) {
	hours, err := e.resolveLookback(hours)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, e.cfg.RequestTimeout)
	defer cancel()

	analysisID := fmt.Sprintf("%s-%s-%s", idPrefix, entityID, e.newID())
	log := e.logger.With(
		slog.String("analysis_id", analysisID),
		slog.String("scope", string(scope)),
		slog.String("entity_id", entityID),
		slog.Int("hours", hours),
	)
	log.Info("analysis started", slog.String("state", string(models.StateRequested)))

	links, err := fetchLinks(ctx)
	if err != nil {
		log.Error("analysis failed", slog.String("state", string(models.StateFailed)), slog.Any("error", err))
		return nil, err
	}
	if len(links) == 0 {
		log.Info("no links in scope", slog.String("state", string(models.StateInsufficientData)))
		return e.insufficient(analysisID, scope, entityID, hours), nil
	}

	linkIDs := make([]string, len(links))
	for i, link := range links {
		linkIDs[i] = link.LinkID
	}
	since := e.now().Add(-time.Duration(hours) * time.Hour)
	seriesByLink, err := e.repo.FetchSeriesBatch(ctx, linkIDs, since)
	if err != nil {
		log.Error("analysis failed", slog.String("state", string(models.StateFailed)), slog.Any("error", err))
		return nil, err
	}
	log.Debug("telemetry fetched",
		slog.String("state", string(models.StateDataFetched)),
		slog.Int("links", len(links)))

	series := make(map[string]EntitySeries, len(links))
	totalSamples := 0
	totalEvents := 0
	for _, id := range linkIDs {
		entity := e.detector.Analyze(id, seriesByLink[id])
		series[id] = entity
		totalSamples += len(entity.Samples)
		totalEvents += len(entity.Events)
	}
	if totalSamples == 0 {
		log.Info("window holds no samples", slog.String("state", string(models.StateInsufficientData)))
		return e.insufficient(analysisID, scope, entityID, hours), nil
	}
	log.Debug("degradation events detected",
		slog.String("state", string(models.StateEventsDetected)),
		slog.Int("samples", totalSamples),
		slog.Int("events", totalEvents))

	candidates := e.correlator.Correlate(scope, series, links)
	log.Debug("candidates correlated",
		slog.String("state", string(models.StatePatternsCorrelated)),
		slog.Int("candidates", len(candidates)))

	detectedAt := e.now().UTC()
	patterns := make([]models.DegradationPattern, 0, len(candidates))
	for _, cand := range candidates {
		patterns = append(patterns, models.DegradationPattern{
			PatternType:       cand.PatternType,
			Severity:          e.severity.Score(cand, series, len(links)),
			Confidence:        e.confidence.Estimate(cand, series),
			AffectedEntities:  cand.AffectedEntities,
			Evidence:          cand.Evidence,
			SupportingMetrics: cand.Supporting,
			DetectedAt:        detectedAt,
		})
	}
	log.Debug("candidates scored", slog.String("state", string(models.StateScored)))

	for i, cand := range candidates {
		patterns[i].RootCause = e.classifier.Classify(ctx, cand, series, len(links))
	}
	sortPatterns(patterns)
	log.Debug("patterns classified", slog.String("state", string(models.StateClassified)))

	score := 0.0
	for _, pattern := range patterns {
		if s := pattern.Severity * pattern.Confidence; s > score {
			score = s
		}
	}
	score = utils.Clamp01(score)

	recommendations := e.recommender.Generate(patterns)
	log.Debug("recommendations attached",
		slog.String("state", string(models.StateRecommendationsAttached)),
		slog.Int("recommendations", len(recommendations)))

	log.Info("analysis completed",
		slog.String("state", string(models.StateCompleted)),
		slog.Int("patterns", len(patterns)),
		slog.Float64("correlation_score", score))

	return &models.AnalysisResponse{
		Status: models.StatusSuccess,
		Analysis: models.CorrelationAnalysis{
			AnalysisID:       analysisID,
			Scope:            scope,
			EntityID:         entityID,
			HoursAnalyzed:    hours,
			Patterns:         patterns,
			CorrelationScore: score,
			Recommendations:  recommendations,
			GeneratedAt:      detectedAt,
		},
	}, nil
}

// resolveLookback substitutes the default for zero and rejects out-of-range
// windows before any data is fetched.
func (e *Engine) resolveLookback(hours int) (int, error) {
	if hours == 0 {
		return e.cfg.DefaultLookbackHours, nil
	}
	if hours < 1 || hours > e.cfg.MaxLookbackHours {
		return 0, utils.NewAppError("engine.analyze", utils.KindConfiguration,
			fmt.Sprintf("hours lookback %d outside [1,%d]", hours, e.cfg.MaxLookbackHours), nil)
	}
	return hours, nil
}

// insufficient builds the empty-but-successful result for windows with no
// usable telemetry. Absence of data is a finding, not an error.
func (e *Engine) insufficient(analysisID string, scope models.CorrelationScope, entityID string, hours int) *models.AnalysisResponse {
	return &models.AnalysisResponse{
		Status: models.StatusInsufficientData,
		Analysis: models.CorrelationAnalysis{
			AnalysisID:       analysisID,
			Scope:            scope,
			EntityID:         entityID,
			HoursAnalyzed:    hours,
			Patterns:         []models.DegradationPattern{},
			CorrelationScore: 0,
			Recommendations:  []string{InsufficientDataMessage},
			GeneratedAt:      e.now().UTC(),
		},
	}
}

// sortPatterns orders by severity descending with deterministic tie-breaks
// so identical inputs always serialize identically.
func sortPatterns(patterns []models.DegradationPattern) {
	sort.SliceStable(patterns, func(i, j int) bool {
		if patterns[i].Severity != patterns[j].Severity {
			return patterns[i].Severity > patterns[j].Severity
		}
		if patterns[i].PatternType != patterns[j].PatternType {
			return patterns[i].PatternType < patterns[j].PatternType
		}
		return firstEntity(patterns[i]) < firstEntity(patterns[j])
	})
}

func firstEntity(p models.DegradationPattern) string {
	if len(p.AffectedEntities) == 0 {
		return ""
	}
	return p.AffectedEntities[0]
}
