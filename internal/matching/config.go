// Package matching scores candidates against jobs, caches the results per pair
// and sorts a job pool into recommended and improvement buckets.
package matching

import (
	"fmt"
)

const (
	// BasicWeight and SemanticWeight blend the lexical and semantic scores.
	BasicWeight    = 0.3
	SemanticWeight = 0.7

	DefaultThreshold        = 75
	DefaultImprovementFloor = 30
	DefaultConcurrency      = 1
	maxConcurrency          = 8
)

// Config controls classification and orchestration.
type Config struct {
	// Threshold is the lowest final score classified as recommended.
	Threshold float64 `mapstructure:"threshold"`
	// ImprovementFloor is the lowest final score in the improvement bucket.
	ImprovementFloor float64 `mapstructure:"improvement-floor"`
	// Concurrency bounds in-flight pair evaluations.
	Concurrency int `mapstructure:"concurrency"`
	// StampProfileVersion makes a record computed against an older profile a cache miss.
	StampProfileVersion bool `mapstructure:"stamp-profile-version"`
	// AnalyzeGaps requests a gap analysis for every job below the threshold.
	AnalyzeGaps bool `mapstructure:"analyze-gaps"`
	// PersistFailedJudgments stores pairs whose semantic judgment failed with a
	// semantic score of 0, so they are served from the cache like any other.
	PersistFailedJudgments bool `mapstructure:"persist-failed-judgments"`
}

func DefaultConfig() Config {
	return Config{
		Threshold:           DefaultThreshold,
		ImprovementFloor:    DefaultImprovementFloor,
		Concurrency:         DefaultConcurrency,
		StampProfileVersion: true,
	}
}

func (c Config) Validate() error {
	if c.Threshold < 0 || c.Threshold > 100 {
		return fmt.Errorf("threshold must be within 0..100, got %v", c.Threshold)
	}
	if c.ImprovementFloor < 0 || c.ImprovementFloor > c.Threshold {
		return fmt.Errorf("improvement floor must be within 0..threshold, got %v", c.ImprovementFloor)
	}
	if c.Concurrency < 1 || c.Concurrency > maxConcurrency {
		return fmt.Errorf("concurrency must be within 1..%d, got %d", maxConcurrency, c.Concurrency)
	}
	return nil
}

// Blend combines a lexical and a semantic score into the final score.
func Blend(basic, semantic float64) float64 {
	return basic*BasicWeight + semantic*SemanticWeight
}
