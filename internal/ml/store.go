package ml

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Metadata describes a stored model artifact: who trained it, when, and how
// well it performed. The checksum covers the model file.
type Metadata struct {
	ModelName    string             `json:"model_name"`
	Version      string             `json:"version"`
	ModelType    string             `json:"model_type"`
	TrainingDate string             `json:"training_date"`
	Description  string             `json:"description"`
	Metrics      map[string]float64 `json:"metrics"`
	Checksum     string             `json:"checksum"`
}

// modelFile is the on-disk layout of a linear softmax artifact.
type modelFile struct {
	Classes      []string    `json:"classes"`
	Weights      [][]float64 `json:"weights"`
	Intercepts   []float64   `json:"intercepts"`
	FeatureNames []string    `json:"feature_names"`
}

// Manager loads versioned model artifacts from a directory tree shaped
// <dir>/<name>_v<version>/{model.json,metadata.json}.
type Manager struct {
	dir    string
	logger *slog.Logger
}

// NewManager constructs a Manager rooted at dir.
func NewManager(dir string, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, logger: logger}
}

// Load reads one specific model version, verifies its checksum, and
// validates its dimensions. Dimensionality is checked here, once, not on
// every prediction.
func (m *Manager) Load(name, version string) (*LinearClassifier, *Metadata, error) {
	modelDir := filepath.Join(m.dir, fmt.Sprintf("%s_v%s", name, version))
	return m.loadDir(modelDir, version)
}

// LoadLatest reads the highest version of the named model.
func (m *Manager) LoadLatest(name string) (*LinearClassifier, *Metadata, error) {
	versions, err := m.Versions(name)
	if err != nil {
		return nil, nil, err
	}
	if len(versions) == 0 {
		return nil, nil, fmt.Errorf("no versions found for model %s", name)
	}
	latest := versions[len(versions)-1]
	return m.Load(name, latest)
}

// Versions lists available versions of the named model in ascending order.
func (m *Manager) Versions(name string) ([]string, error) {
	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil, fmt.Errorf("read models dir: %w", err)
	}

	prefix := name + "_v"
	versions := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.IsDir() || !strings.HasPrefix(entry.Name(), prefix) {
			continue
		}
		versions = append(versions, strings.TrimPrefix(entry.Name(), prefix))
	}
	sort.Strings(versions)
	return versions, nil
}

func (m *Manager) loadDir(modelDir, version string) (*LinearClassifier, *Metadata, error) {
	modelPath := filepath.Join(modelDir, "model.json")
	data, err := os.ReadFile(modelPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read model artifact: %w", err)
	}

	meta, err := readMetadata(filepath.Join(modelDir, "metadata.json"))
	if err != nil {
		return nil, nil, err
	}

	if meta != nil && meta.Checksum != "" {
		sum := sha256.Sum256(data)
		if got := hex.EncodeToString(sum[:]); got != meta.Checksum {
			return nil, nil, fmt.Errorf("model %s checksum mismatch: artifact %s, metadata %s", modelDir, got, meta.Checksum)
		}
	}

	var mf modelFile
	if err := json.Unmarshal(data, &mf); err != nil {
		return nil, nil, fmt.Errorf("parse model artifact: %w", err)
	}
	if err := validateModel(mf); err != nil {
		return nil, nil, fmt.Errorf("model %s: %w", modelDir, err)
	}

	if meta != nil && meta.Version != "" {
		version = meta.Version
	}

	m.logger.Info("model loaded",
		slog.String("path", modelPath),
		slog.String("version", version))

	return &LinearClassifier{
		classes:    mf.Classes,
		weights:    mf.Weights,
		intercepts: mf.Intercepts,
		version:    version,
	}, meta, nil
}

func readMetadata(path string) (*Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read model metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("parse model metadata: %w", err)
	}
	return &meta, nil
}

func validateModel(mf modelFile) error {
	if len(mf.Classes) != ClassCount {
		return fmt.Errorf("model has %d classes, want %d", len(mf.Classes), ClassCount)
	}
	if len(mf.Weights) != ClassCount || len(mf.Intercepts) != ClassCount {
		return fmt.Errorf("weights/intercepts rows do not match class count %d", ClassCount)
	}
	for i, row := range mf.Weights {
		if len(row) != FeatureDim {
			return fmt.Errorf("class %d weight row has %d features, want %d", i, len(row), FeatureDim)
		}
	}
	if len(mf.FeatureNames) != 0 && len(mf.FeatureNames) != FeatureDim {
		return fmt.Errorf("feature_names has %d entries, want %d", len(mf.FeatureNames), FeatureDim)
	}
	return nil
}
