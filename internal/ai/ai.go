// Package ai asks an external language model to judge candidate/job fit.
package ai

import (
	"context"
)

const (
	ReasonMissingCredential = "missing credential"
	ReasonRequestFailed     = "request failed"
	ReasonInvalidResponse   = "invalid response format"
)

// Generator sends a system instruction and a user prompt to a chat model and
// returns the text of the first answer.
type Generator interface {
	GenerateContent(ctx context.Context, system, prompt string) (string, error)
	Model() string
}

// MatchAssessment is the semantic judgment of one pair. Failed is set when the
// zero-value fallback was returned; Reason then names the failure.
type MatchAssessment struct {
	Score  float64
	Reason string
	Raw    string
	Failed bool
}

func failedAssessment(reason string) MatchAssessment {
	return MatchAssessment{Reason: reason, Failed: true}
}
