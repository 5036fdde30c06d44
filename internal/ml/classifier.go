// Package ml hosts the pretrained root-cause classifier artifacts consumed
// by the correlation engine: an opaque prediction interface, a versioned
// on-disk model store, and a bounded cache of loaded models. Models are
// trained elsewhere; nothing here mutates them.
package ml

import (
	"fmt"
	"math"
)

// FeatureDim is the fixed length of the classifier feature vector.
const FeatureDim = 10

// ClassCount is the number of root-cause classes a model discriminates.
const ClassCount = 4

// FeatureNames documents the vector layout, index for index.
var FeatureNames = [FeatureDim]string{
	"avg_grade",
	"availability",
	"ib_degradation",
	"ob_degradation",
	"ib_instability",
	"ob_instability",
	"latency",
	"up_time",
	"degraded_fraction",
	"breadth_fraction",
}

// Prediction is the outcome of a single classification.
type Prediction struct {
	// Label is the class with the highest probability.
	Label string
	// Probabilities holds one entry per class, in Classes() order, summing to 1.
	Probabilities []float64
	// ModelVersion identifies the artifact that produced the prediction.
	ModelVersion string
}

// MaxProbability returns the probability of the predicted label.
func (p Prediction) MaxProbability() float64 {
	max := 0.0
	for _, prob := range p.Probabilities {
		if prob > max {
			max = prob
		}
	}
	return max
}

// Classifier is the narrow prediction surface the engine consumes. The
// underlying serialization format never leaks past this interface.
type Classifier interface {
	Predict(features []float64) (Prediction, error)
	Classes() []string
	Version() string
}

// LinearClassifier is a pretrained multinomial softmax model: one weight row
// and intercept per class over the fixed feature vector.
type LinearClassifier struct {
	classes    []string
	weights    [][]float64
	intercepts []float64
	version    string
}

// Predict computes class probabilities for the feature vector.
func (c *LinearClassifier) Predict(features []float64) (Prediction, error) {
	if len(features) != FeatureDim {
		return Prediction{}, fmt.Errorf("feature vector has %d dimensions, want %d", len(features), FeatureDim)
	}

	logits := make([]float64, len(c.classes))
	for i, row := range c.weights {
		sum := c.intercepts[i]
		for j, w := range row {
			sum += w * features[j]
		}
		logits[i] = sum
	}

	probs := softmax(logits)

	best := 0
	for i := range probs {
		if probs[i] > probs[best] {
			best = i
		}
	}

	return Prediction{
		Label:         c.classes[best],
		Probabilities: probs,
		ModelVersion:  c.version,
	}, nil
}

// Classes returns the class labels in probability order.
func (c *LinearClassifier) Classes() []string {
	return append([]string(nil), c.classes...)
}

// Version returns the artifact version string.
func (c *LinearClassifier) Version() string {
	return c.version
}

func softmax(logits []float64) []float64 {
	max := logits[0]
	for _, v := range logits[1:] {
		if v > max {
			max = v
		}
	}

	sum := 0.0
	probs := make([]float64, len(logits))
	for i, v := range logits {
		probs[i] = math.Exp(v - max)
		sum += probs[i]
	}
	for i := range probs {
		probs[i] /= sum
	}
	return probs
}
