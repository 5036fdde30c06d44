package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeModelDir(t *testing.T, root, name, version string, tamperChecksum bool) {
	t.Helper()

	weights := make([][]float64, ClassCount)
	for i := range weights {
		weights[i] = make([]float64, FeatureDim)
	}
	mf := modelFile{
		Classes:    []string{"equipment_failure", "antenna_alignment", "satellite_interference", "antenna_misalignment"},
		Weights:    weights,
		Intercepts: make([]float64, ClassCount),
	}
	data, err := json.Marshal(mf)
	require.NoError(t, err)

	dir := filepath.Join(root, name+"_v"+version)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), data, 0o644))

	sum := sha256.Sum256(data)
	checksum := hex.EncodeToString(sum[:])
	if tamperChecksum {
		checksum = "deadbeef"
	}
	meta, err := json.Marshal(Metadata{
		ModelName:    name,
		Version:      version,
		ModelType:    "linear_softmax",
		TrainingDate: "2026-07-01",
		Checksum:     checksum,
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "metadata.json"), meta, 0o644))
}

func TestManagerLoadVerifiesChecksum(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "linear_softmax", "1", false)

	m := NewManager(root, nil)
	classifier, meta, err := m.Load("linear_softmax", "1")
	require.NoError(t, err)
	require.NotNil(t, classifier)
	require.NotNil(t, meta)
	assert.Equal(t, "1", classifier.Version())
	assert.Equal(t, "linear_softmax", meta.ModelName)
}

func TestManagerLoadRejectsTamperedArtifact(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "linear_softmax", "1", true)

	m := NewManager(root, nil)
	_, _, err := m.Load("linear_softmax", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "checksum mismatch")
}

func TestManagerLoadLatest(t *testing.T) {
	root := t.TempDir()
	writeModelDir(t, root, "linear_softmax", "1", false)
	writeModelDir(t, root, "linear_softmax", "2", false)

	m := NewManager(root, nil)
	classifier, _, err := m.LoadLatest("linear_softmax")
	require.NoError(t, err)
	assert.Equal(t, "2", classifier.Version())

	versions, err := m.Versions("linear_softmax")
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "2"}, versions)
}

func TestManagerLoadMissingModel(t *testing.T) {
	m := NewManager(t.TempDir(), nil)
	_, _, err := m.Load("linear_softmax", "9")
	require.Error(t, err)
}

func TestManagerRejectsBadDimensions(t *testing.T) {
	root := t.TempDir()
	dir := filepath.Join(root, "linear_softmax_v1")
	require.NoError(t, os.MkdirAll(dir, 0o755))

	mf := modelFile{
		Classes:    []string{"only_one"},
		Weights:    [][]float64{make([]float64, FeatureDim)},
		Intercepts: []float64{0},
	}
	data, err := json.Marshal(mf)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.json"), data, 0o644))

	m := NewManager(root, nil)
	_, _, err = m.Load("linear_softmax", "1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "classes")
}
