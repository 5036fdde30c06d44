package config

import (
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Config captures everything required to run the correlation engine.
type Config struct {
	Logging         LoggingConfig         `yaml:"logging"`
	Database        DatabaseConfig        `yaml:"database"`
	Detection       DetectionConfig       `yaml:"detection"`
	Correlation     CorrelationConfig     `yaml:"correlation"`
	Scoring         ScoringConfig         `yaml:"scoring"`
	Classifier      ClassifierConfig      `yaml:"classifier"`
	Recommendations RecommendationsConfig `yaml:"recommendations"`
	Engine          EngineConfig          `yaml:"engine"`
	Sweep           SweepConfig           `yaml:"sweep"`
}

// LoggingConfig controls structured logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// DatabaseConfig configures the telemetry store connection.
type DatabaseConfig struct {
	URL          string        `yaml:"url"`
	MaxConns     int32         `yaml:"maxConns" validate:"min=1"`
	MinConns     int32         `yaml:"minConns" validate:"min=0"`
	QueryTimeout time.Duration `yaml:"queryTimeout" validate:"gt=0"`
}

// DetectionConfig holds the thresholds that classify a sample as degraded.
type DetectionConfig struct {
	// GradeCriticalThreshold marks any grade below it as critical (1-10 scale).
	GradeCriticalThreshold float64 `yaml:"gradeCriticalThreshold" validate:"gt=0,lte=10"`
	// InstabilityThreshold applies to ib/ob instability metrics.
	InstabilityThreshold float64 `yaml:"instabilityThreshold" validate:"gt=0"`
	// DegradationThreshold applies to ib/ob degradation metrics.
	DegradationThreshold float64 `yaml:"degradationThreshold" validate:"gt=0"`
	// MergeTolerance is the maximum gap between critical samples merged into
	// one event. The default keeps samples on the same calendar day together.
	MergeTolerance time.Duration `yaml:"mergeTolerance" validate:"gt=0"`
	// SampleInterval is the nominal spacing between samples, used to give
	// zero-length event windows a duration when computing overlap.
	SampleInterval time.Duration `yaml:"sampleInterval" validate:"gt=0"`
}

// CorrelationConfig holds the per-scope rule knobs.
type CorrelationConfig struct {
	// CoOccurrenceWindow bounds how far apart degradation events on distinct
	// sites may sit while still counting as simultaneous (network rule).
	CoOccurrenceWindow time.Duration `yaml:"coOccurrenceWindow" validate:"gt=0"`
	// MinSitesForPattern is the distinct-site floor for equipment failure.
	MinSitesForPattern int `yaml:"minSitesForPattern" validate:"min=2"`
	// MinConsecutiveDays is the sustained-run floor for antenna alignment.
	MinConsecutiveDays int `yaml:"minConsecutiveDays" validate:"min=1"`
	// MinLinksForSatellite is the breadth floor for satellite interference.
	MinLinksForSatellite int `yaml:"minLinksForSatellite" validate:"min=2"`
}

// ScoringConfig holds the severity and confidence formula weights.
// Each triple must sum to 1.
type ScoringConfig struct {
	SeverityMagnitudeWeight  float64 `yaml:"severityMagnitudeWeight" validate:"gte=0,lte=1"`
	SeverityFractionWeight   float64 `yaml:"severityFractionWeight" validate:"gte=0,lte=1"`
	SeverityBreadthWeight    float64 `yaml:"severityBreadthWeight" validate:"gte=0,lte=1"`
	ConfidenceConsistency    float64 `yaml:"confidenceConsistencyWeight" validate:"gte=0,lte=1"`
	ConfidenceOverlap        float64 `yaml:"confidenceOverlapWeight" validate:"gte=0,lte=1"`
	ConfidenceSampleAdequacy float64 `yaml:"confidenceSampleAdequacyWeight" validate:"gte=0,lte=1"`
	// MinSamplesPerEntity floors confidence on thin windows instead of erroring.
	MinSamplesPerEntity int `yaml:"minSamplesPerEntity" validate:"min=1"`
}

// ClassifierConfig configures the pretrained root-cause classifier.
type ClassifierConfig struct {
	ModelsDir string `yaml:"modelsDir"`
	ModelName string `yaml:"modelName"`
	// Version pins a model version; empty loads the latest.
	Version string `yaml:"version"`
	// ConfidenceFloor is the minimum max-class probability accepted before
	// falling back to the rule-derived root cause.
	ConfidenceFloor float64       `yaml:"confidenceFloor" validate:"gte=0,lte=1"`
	CacheCapacity   int           `yaml:"cacheCapacity" validate:"min=1"`
	CacheTTL        time.Duration `yaml:"cacheTTL" validate:"gt=0"`
}

// RecommendationsConfig points at an optional YAML override of the
// recommendation table.
type RecommendationsConfig struct {
	Path string `yaml:"path"`
}

// EngineConfig bounds per-request behaviour.
type EngineConfig struct {
	DefaultLookbackHours int           `yaml:"defaultLookbackHours" validate:"min=1,max=168"`
	MaxLookbackHours     int           `yaml:"maxLookbackHours" validate:"min=1,max=168"`
	RequestTimeout       time.Duration `yaml:"requestTimeout" validate:"gt=0"`
}

// SweepConfig controls the periodic all-network sweep runner.
type SweepConfig struct {
	Interval       time.Duration `yaml:"interval" validate:"gt=0"`
	Workers        int           `yaml:"workers" validate:"min=1"`
	MetricsAddress string        `yaml:"metricsAddress"`
}

// Load initialises Config from a YAML file plus environment overrides, then
// validates it. Malformed weights or thresholds fail here, before any data
// is fetched.
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv("SATRCA_CONFIG")
	}

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", path, err)
			}
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", JSON: false},
		Database: DatabaseConfig{
			MaxConns:     10,
			MinConns:     2,
			QueryTimeout: 5 * time.Second,
		},
		Detection: DetectionConfig{
			GradeCriticalThreshold: 7.0,
			InstabilityThreshold:   0.3,
			DegradationThreshold:   0.2,
			MergeTolerance:         24 * time.Hour,
			SampleInterval:         time.Hour,
		},
		Correlation: CorrelationConfig{
			CoOccurrenceWindow:   3 * time.Hour,
			MinSitesForPattern:   2,
			MinConsecutiveDays:   3,
			MinLinksForSatellite: 2,
		},
		Scoring: ScoringConfig{
			SeverityMagnitudeWeight:  0.4,
			SeverityFractionWeight:   0.3,
			SeverityBreadthWeight:    0.3,
			ConfidenceConsistency:    0.35,
			ConfidenceOverlap:        0.45,
			ConfidenceSampleAdequacy: 0.20,
			MinSamplesPerEntity:      3,
		},
		Classifier: ClassifierConfig{
			ModelsDir:       "models/root_cause",
			ModelName:       "linear_softmax",
			ConfidenceFloor: 0.5,
			CacheCapacity:   4,
			CacheTTL:        time.Hour,
		},
		Engine: EngineConfig{
			DefaultLookbackHours: 24,
			MaxLookbackHours:     168,
			RequestTimeout:       10 * time.Second,
		},
		Sweep: SweepConfig{
			Interval:       15 * time.Minute,
			Workers:        8,
			MetricsAddress: ":2112",
		},
	}
}

var structValidator = validator.New()

// Validate checks struct tags plus the weight-sum invariants.
func (c *Config) Validate() error {
	const op = "config.Validate"

	if err := structValidator.Struct(c); err != nil {
		return utils.NewAppError(op, utils.KindConfiguration, "invalid configuration", err)
	}

	sevSum := c.Scoring.SeverityMagnitudeWeight + c.Scoring.SeverityFractionWeight + c.Scoring.SeverityBreadthWeight
	if math.Abs(sevSum-1.0) > 1e-9 {
		return utils.NewAppError(op, utils.KindConfiguration,
			fmt.Sprintf("severity weights must sum to 1, got %.4f", sevSum), nil)
	}

	confSum := c.Scoring.ConfidenceConsistency + c.Scoring.ConfidenceOverlap + c.Scoring.ConfidenceSampleAdequacy
	if math.Abs(confSum-1.0) > 1e-9 {
		return utils.NewAppError(op, utils.KindConfiguration,
			fmt.Sprintf("confidence weights must sum to 1, got %.4f", confSum), nil)
	}

	if c.Engine.DefaultLookbackHours > c.Engine.MaxLookbackHours {
		return utils.NewAppError(op, utils.KindConfiguration,
			"default lookback exceeds maximum lookback", nil)
	}

	return nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SATRCA_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SATRCA_LOG_FORMAT"); v == "json" {
		cfg.Logging.JSON = true
	}
	if v := os.Getenv("SATRCA_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("SATRCA_MODELS_DIR"); v != "" {
		cfg.Classifier.ModelsDir = v
	}
	if v := os.Getenv("SATRCA_MODEL_VERSION"); v != "" {
		cfg.Classifier.Version = v
	}
	if v := os.Getenv("SATRCA_RECOMMENDATIONS_PATH"); v != "" {
		cfg.Recommendations.Path = v
	}
	if v := os.Getenv("SATRCA_SWEEP_METRICS_ADDRESS"); v != "" {
		cfg.Sweep.MetricsAddress = v
	}
	if v := os.Getenv("SATRCA_SWEEP_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sweep.Workers = n
		}
	}
	if v := os.Getenv("SATRCA_REQUEST_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Engine.RequestTimeout = d
		}
	}
}
