package config

import (
	"fmt"
	"os"

	"atlas-of-us/backend/internal/constants"

	"gopkg.in/yaml.v3"
)

// Thresholds is a LOW/HIGH pair for similarity triage. Scores below Low mint a
// new node, scores at or above High reuse the top match without asking the model.
type Thresholds struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
}

// SimilarityPolicy holds the tunable similarity thresholds used by the pipeline
type SimilarityPolicy struct {
	General             Thresholds `yaml:"general"`
	Trait               Thresholds `yaml:"trait"`
	DomainExists        float64    `yaml:"domain_exists"`
	GeneralizationMatch float64    `yaml:"generalization_match"`
	TopK                int        `yaml:"top_k"`
}

// DefaultSimilarityPolicy returns the compiled-in thresholds
func DefaultSimilarityPolicy() SimilarityPolicy {
	return SimilarityPolicy{
		General: Thresholds{
			Low:  constants.SimilarityThresholdLow,
			High: constants.SimilarityThresholdHigh,
		},
		Trait: Thresholds{
			Low:  constants.TraitSimilarityThresholdLow,
			High: constants.TraitSimilarityThresholdHigh,
		},
		DomainExists:        constants.DomainExistsThreshold,
		GeneralizationMatch: constants.GeneralizationMatchThreshold,
		TopK:                constants.SimilarityTopK,
	}
}

// LoadSimilarityPolicy overlays the YAML file at path (if any) and then the
// SIMILARITY_* environment variables on top of the defaults.
func LoadSimilarityPolicy(path string) (SimilarityPolicy, error) {
	policy := DefaultSimilarityPolicy()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return policy, fmt.Errorf("failed to read similarity policy: %w", err)
		}
		if err := yaml.Unmarshal(data, &policy); err != nil {
			return policy, fmt.Errorf("failed to parse similarity policy: %w", err)
		}
	}

	policy.General.Low = getEnvFloat("SIMILARITY_LOW", policy.General.Low)
	policy.General.High = getEnvFloat("SIMILARITY_HIGH", policy.General.High)
	policy.Trait.Low = getEnvFloat("TRAIT_SIMILARITY_LOW", policy.Trait.Low)
	policy.Trait.High = getEnvFloat("TRAIT_SIMILARITY_HIGH", policy.Trait.High)
	policy.DomainExists = getEnvFloat("DOMAIN_EXISTS_THRESHOLD", policy.DomainExists)

	if err := policy.Validate(); err != nil {
		return policy, err
	}
	return policy, nil
}

// Validate checks every threshold lies in [0,1] and each pair is ordered
func (p SimilarityPolicy) Validate() error {
	for name, t := range map[string]Thresholds{"general": p.General, "trait": p.Trait} {
		if t.Low < 0 || t.High > 1 || t.Low > t.High {
			return fmt.Errorf("%s thresholds must satisfy 0 <= low <= high <= 1, got %.2f/%.2f", name, t.Low, t.High)
		}
	}
	if p.DomainExists < 0 || p.DomainExists > 1 {
		return fmt.Errorf("domain_exists must be within [0,1], got %.2f", p.DomainExists)
	}
	if p.GeneralizationMatch < 0 || p.GeneralizationMatch > 1 {
		return fmt.Errorf("generalization_match must be within [0,1], got %.2f", p.GeneralizationMatch)
	}
	if p.TopK < 1 {
		return fmt.Errorf("top_k must be at least 1")
	}
	return nil
}
