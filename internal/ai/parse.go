package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/mitchellh/mapstructure"

	"github.com/spigell/job-matcher/internal/marketplace"
)

type matchPayload struct {
	Score  *float64 `mapstructure:"score"`
	Reason string   `mapstructure:"reason"`
}

func parseMatch(raw string) (MatchAssessment, error) {
	var payload matchPayload
	if err := decodeObject(raw, &payload); err != nil {
		return MatchAssessment{}, err
	}
	if payload.Score == nil {
		return MatchAssessment{}, errors.New("score is missing")
	}

	score := *payload.Score
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return MatchAssessment{}, fmt.Errorf("score is not a number: %v", score)
	}

	return MatchAssessment{
		Score:  clampScore(score),
		Reason: strings.TrimSpace(payload.Reason),
	}, nil
}

func parseGaps(raw string) (*marketplace.GapAnalysis, error) {
	var gaps marketplace.GapAnalysis
	if err := decodeObject(raw, &gaps); err != nil {
		return nil, err
	}

	gaps.MissingSkills = cleanList(gaps.MissingSkills)
	gaps.SuggestedCourses = cleanList(gaps.SuggestedCourses)
	gaps.MissingExperience = strings.TrimSpace(gaps.MissingExperience)
	gaps.MissingEducation = strings.TrimSpace(gaps.MissingEducation)

	return &gaps, nil
}

// decodeObject extracts the JSON object from a model answer and decodes it
// into target, tolerating loosely typed values such as "90" for numbers.
func decodeObject(raw string, target any) error {
	cleaned := extractJSON(raw)
	if cleaned == "" {
		return errors.New("empty response")
	}

	var data map[string]any
	if err := json.Unmarshal([]byte(cleaned), &data); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		Result:           target,
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(data); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	raw = strings.TrimSpace(raw)

	// Models sometimes wrap the object in prose.
	if !strings.HasPrefix(raw, "{") {
		start := strings.Index(raw, "{")
		end := strings.LastIndex(raw, "}")
		if start != -1 && end > start {
			raw = raw[start : end+1]
		}
	}

	return raw
}

func clampScore(score float64) float64 {
	return math.Max(0, math.Min(100, score))
}

func cleanList(items []string) []string {
	cleaned := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			cleaned = append(cleaned, item)
		}
	}
	return cleaned
}
