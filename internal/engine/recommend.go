package engine

import (
	"fmt"
	"log/slog"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/orbitalworks/satlink-rca/internal/models"
	"github.com/orbitalworks/satlink-rca/internal/utils"
)

// Severity tiers for recommendation lookup.
const (
	tierCritical = "critical"
	tierHigh     = "high"
	tierModerate = "moderate"

	criticalSeverity = 0.75
	highSeverity     = 0.50
)

// NoPatternsMessage is returned when analysis completes without any
// correlated pattern.
const NoPatternsMessage = "No correlated degradation detected in the analysis window"

// InsufficientDataMessage is attached when the window held no samples.
const InsufficientDataMessage = "Insufficient data for analysis"

// Playbook maps a root cause to remediation steps per severity tier.
type Playbook map[models.PatternType]map[string][]string

// Recommender turns scored patterns into ordered, de-duplicated operator
// actions. The playbook can be overridden from a YAML file so operations
// can tune remediation text without a rebuild.
type Recommender struct {
	playbook Playbook
	logger   *slog.Logger
}

// NewRecommender builds a Recommender. overridePath is optional; a missing
// file falls back to the built-in playbook, a malformed one is an error.
func NewRecommender(overridePath string, logger *slog.Logger) (*Recommender, error) {
	if logger == nil {
		logger = slog.Default()
	}
	playbook := defaultPlaybook()

	if overridePath != "" {
		data, err := os.ReadFile(overridePath)
		if err != nil {
			if os.IsNotExist(err) {
				logger.Info("recommendation playbook not found, using defaults",
					slog.String("path", overridePath))
				return &Recommender{playbook: playbook, logger: logger}, nil
			}
			return nil, utils.NewAppError("recommend.load", utils.KindConfiguration,
				fmt.Sprintf("read playbook %s", overridePath), err)
		}
		var override Playbook
		if err := yaml.Unmarshal(data, &override); err != nil {
			return nil, utils.NewAppError("recommend.load", utils.KindConfiguration,
				fmt.Sprintf("parse playbook %s", overridePath), err)
		}
		for cause, tiers := range override {
			if !cause.Valid() {
				return nil, utils.NewAppError("recommend.load", utils.KindConfiguration,
					fmt.Sprintf("unknown root cause %q in playbook", cause), nil)
			}
			if playbook[cause] == nil {
				playbook[cause] = map[string][]string{}
			}
			for tier, steps := range tiers {
				playbook[cause][tier] = steps
			}
		}
		logger.Info("recommendation playbook overrides applied",
			slog.String("path", overridePath), slog.Int("causes", len(override)))
	}
	return &Recommender{playbook: playbook, logger: logger}, nil
}

// Generate returns recommendations for the given patterns. Steps are
// de-duplicated and ordered by pattern severity, then by first appearance
// within a pattern's playbook entry, so identical inputs always produce the
// same output.
func (r *Recommender) Generate(patterns []models.DegradationPattern) []string {
	if len(patterns) == 0 {
		return []string{NoPatternsMessage}
	}

	ordered := make([]models.DegradationPattern, len(patterns))
	copy(ordered, patterns)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Severity > ordered[j].Severity
	})

	seen := make(map[string]struct{})
	var out []string
	for _, pattern := range ordered {
		for _, step := range r.stepsFor(pattern) {
			if _, dup := seen[step]; dup {
				continue
			}
			seen[step] = struct{}{}
			out = append(out, step)
		}
	}
	if len(out) == 0 {
		return []string{NoPatternsMessage}
	}
	return out
}

func (r *Recommender) stepsFor(pattern models.DegradationPattern) []string {
	tiers, ok := r.playbook[pattern.RootCause]
	if !ok {
		r.logger.Warn("no playbook entry for root cause",
			slog.String("root_cause", string(pattern.RootCause)))
		return nil
	}
	tier := tierModerate
	switch {
	case pattern.Severity >= criticalSeverity:
		tier = tierCritical
	case pattern.Severity >= highSeverity:
		tier = tierHigh
	}
	if steps, ok := tiers[tier]; ok && len(steps) > 0 {
		return steps
	}
	// Fall down the tiers rather than returning nothing.
	for _, fallback := range []string{tierHigh, tierModerate} {
		if steps, ok := tiers[fallback]; ok && len(steps) > 0 {
			return steps
		}
	}
	return nil
}

func defaultPlaybook() Playbook {
	return Playbook{
		models.PatternEquipmentFailure: {
			tierCritical: {
				"Check hub equipment and power infrastructure",
				"Review recent configuration changes",
				"Verify network connectivity",
				"Dispatch field technician to the affected hub site",
			},
			tierHigh: {
				"Check hub equipment and power infrastructure",
				"Review recent configuration changes",
				"Verify network connectivity",
			},
			tierModerate: {
				"Check hub equipment and power infrastructure",
				"Review recent configuration changes",
				"Verify network connectivity",
			},
		},
		models.PatternAntennaAlignment: {
			tierCritical: {
				"Schedule immediate antenna inspection at the hub",
				"Survey the antenna for physical obstruction or damage",
				"Check mount stability and recent weather exposure",
			},
			tierHigh: {
				"Schedule antenna inspection at the hub",
				"Review pointing logs for drift",
				"Check mount stability and recent weather exposure",
			},
			tierModerate: {
				"Monitor hub instability trend over the next 48 hours",
				"Review pointing logs for drift",
			},
		},
		models.PatternSatelliteInterference: {
			tierCritical: {
				"Open an interference case with the satellite operator",
				"Capture a carrier spectrum snapshot for the affected transponder",
				"Cross-check other links on the same satellite for onset time",
			},
			tierHigh: {
				"Capture a carrier spectrum snapshot for the affected transponder",
				"Cross-check other links on the same satellite for onset time",
				"Review uplink power levels on affected carriers",
			},
			tierModerate: {
				"Cross-check other links on the same satellite for onset time",
				"Review uplink power levels on affected carriers",
			},
		},
		models.PatternAntennaMisalignment: {
			tierCritical: {
				"Schedule remote-terminal antenna repointing",
				"Verify both inbound and outbound carrier levels after repointing",
				"Inspect the terminal mount for movement or damage",
			},
			tierHigh: {
				"Schedule remote-terminal antenna repointing",
				"Verify both inbound and outbound carrier levels after repointing",
			},
			tierModerate: {
				"Review terminal pointing history",
				"Verify both inbound and outbound carrier levels",
			},
		},
	}
}
