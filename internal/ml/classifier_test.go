package ml

import (
	"math"
	"testing"
)

func testClassifier() *LinearClassifier {
	// Weight rows chosen so a high third feature pushes the prediction to
	// the third class.
	weights := make([][]float64, ClassCount)
	for i := range weights {
		weights[i] = make([]float64, FeatureDim)
	}
	weights[2][2] = 8.0
	return &LinearClassifier{
		classes:    []string{"equipment_failure", "antenna_alignment", "satellite_interference", "antenna_misalignment"},
		weights:    weights,
		intercepts: make([]float64, ClassCount),
		version:    "1",
	}
}

func TestLinearClassifierPredict(t *testing.T) {
	c := testClassifier()

	features := make([]float64, FeatureDim)
	features[2] = 1.0
	pred, err := c.Predict(features)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}

	if pred.Label != "satellite_interference" {
		t.Fatalf("label = %s, want satellite_interference", pred.Label)
	}
	if pred.ModelVersion != "1" {
		t.Fatalf("model version = %s, want 1", pred.ModelVersion)
	}

	sum := 0.0
	for _, p := range pred.Probabilities {
		if p < 0 || p > 1 {
			t.Fatalf("probability %f out of [0,1]", p)
		}
		sum += p
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %f, want 1", sum)
	}
	if pred.MaxProbability() != pred.Probabilities[2] {
		t.Fatalf("max probability %f does not match predicted class", pred.MaxProbability())
	}
}

func TestLinearClassifierUniformWithoutSignal(t *testing.T) {
	c := testClassifier()

	pred, err := c.Predict(make([]float64, FeatureDim))
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	for _, p := range pred.Probabilities {
		if math.Abs(p-0.25) > 1e-9 {
			t.Fatalf("probability = %f, want uniform 0.25 with zero features", p)
		}
	}
}

func TestLinearClassifierRejectsWrongDimension(t *testing.T) {
	c := testClassifier()
	if _, err := c.Predict(make([]float64, FeatureDim-1)); err == nil {
		t.Fatal("expected error for short feature vector")
	}
}
