package engine

import (
	"context"
	"log/slog"

	"github.com/orbitalworks/satlink-rca/internal/ml"
	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// ClassifierProvider hands the engine a loaded classifier, typically backed
// by the model cache. A nil provider or a provider error degrades to the
// rule-derived root cause.
type ClassifierProvider func(ctx context.Context) (ml.Classifier, error)

// RootCauseClassifier wraps the injected pretrained classifier as one signal
// among several. It never trains or mutates the model, and never fails a
// request: any classifier problem falls back to the root cause implied by
// the matching scope rule.
type RootCauseClassifier struct {
	provider ClassifierProvider
	floor    float64
	logger   *slog.Logger
}

// NewRootCauseClassifier constructs the wrapper. floor is the minimum
// max-class probability accepted from the model.
func NewRootCauseClassifier(provider ClassifierProvider, floor float64, logger *slog.Logger) *RootCauseClassifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &RootCauseClassifier{provider: provider, floor: floor, logger: logger}
}

// Classify returns the root cause for a scored candidate. The rule-derived
// label wins whenever the classifier is missing, errors, emits an unknown
// label, or sits below the confidence floor.
func (r *RootCauseClassifier) Classify(ctx context.Context, cand Candidate, series map[string]EntitySeries, totalEntities int) models.PatternType {
	fallback := cand.Scope.RuleCause()

	if r.provider == nil {
		return fallback
	}

	classifier, err := r.provider(ctx)
	if err != nil {
		unavailable := utils.NewAppError("classifier.provide", utils.KindClassifierUnavailable, "classifier unavailable", err)
		r.logger.Warn("classifier unavailable, using rule-derived root cause",
			slog.String("scope", string(cand.Scope)), slog.Any("error", unavailable))
		return fallback
	}

	features := FeatureVector(cand, series, totalEntities)
	prediction, err := classifier.Predict(features[:])
	if err != nil {
		r.logger.Warn("classifier prediction failed, using rule-derived root cause",
			slog.String("scope", string(cand.Scope)), slog.Any("error", err))
		return fallback
	}

	if prediction.MaxProbability() < r.floor {
		r.logger.Debug("classifier below confidence floor",
			slog.String("label", prediction.Label),
			slog.Float64("probability", prediction.MaxProbability()),
			slog.Float64("floor", r.floor))
		return fallback
	}

	label := models.PatternType(prediction.Label)
	if !label.Valid() {
		r.logger.Warn("classifier emitted unknown label, using rule-derived root cause",
			slog.String("label", prediction.Label))
		return fallback
	}
	return label
}

// FeatureVector derives the fixed-length classifier input from a candidate's
// affected entities. Layout follows ml.FeatureNames.
func FeatureVector(cand Candidate, series map[string]EntitySeries, totalEntities int) [ml.FeatureDim]float64 {
	var features [ml.FeatureDim]float64

	var (
		sampleCount    int
		criticalCount  int
		grade          float64
		availability   float64
		ibDeg, obDeg   float64
		ibInst, obInst float64
		latency        float64
		upTime         float64
	)

	for _, entityID := range cand.AffectedEntities {
		entity, ok := series[entityID]
		if !ok {
			continue
		}
		criticalCount += entity.CriticalSamples
		for _, sample := range entity.Samples {
			sampleCount++
			grade += sample.Grade
			availability += sample.Availability
			ibDeg += sample.IBDegradation
			obDeg += sample.OBDegradation
			ibInst += sample.IBInstability
			obInst += sample.OBInstability
			latency += sample.Latency
			upTime += sample.UpTime
		}
	}

	if sampleCount == 0 {
		return features
	}

	n := float64(sampleCount)
	features[0] = grade / n / 10.0
	features[1] = availability / n / 100.0
	features[2] = ibDeg / n
	features[3] = obDeg / n
	features[4] = ibInst / n
	features[5] = obInst / n
	features[6] = latency / n / 1000.0
	features[7] = upTime / n / 100.0
	features[8] = float64(criticalCount) / n
	if totalEntities > 0 {
		features[9] = float64(len(cand.AffectedEntities)) / float64(totalEntities)
	}
	return features
}
