package ai

import (
	"context"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/telemetry"
	"github.com/spigell/job-matcher/internal/utils"
)

const defaultMaxLogLength = 200

var tracer = telemetry.Tracer("github.com/spigell/job-matcher/internal/ai")

// Judge turns generator answers into match scores and gap analyses. It never
// returns errors: failures produce zero-value results.
type Judge struct {
	generator Generator
	logger    *zap.Logger
	maxLogLen int
}

// GapAssessment is the advice-mode result. Reason is empty on success.
type GapAssessment struct {
	Gaps   *marketplace.GapAnalysis
	Reason string
}

func (g GapAssessment) Failed() bool {
	return g.Reason != ""
}

// NewJudge returns a judge. A nil generator means no provider credential is
// configured and every call yields the missing credential result.
func NewJudge(generator Generator, provider string, log *zap.Logger, maxLogLength int) *Judge {
	if maxLogLength <= 0 {
		maxLogLength = defaultMaxLogLength
	}

	model := ""
	if generator != nil {
		model = generator.Model()
	}

	return &Judge{
		generator: generator,
		logger:    logger.WithCommonFields(log, provider, model),
		maxLogLen: maxLogLength,
	}
}

// JudgeMatch scores the candidate against the job on a 0-100 scale.
func (j *Judge) JudgeMatch(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job) MatchAssessment {
	if j.generator == nil {
		return failedAssessment(ReasonMissingCredential)
	}

	raw, ok := j.generate(ctx, "judge_match", matchSystemInstruction, buildPrompt(matchPromptTemplate, candidate, job), candidate.ID, job.ID)
	if !ok {
		return failedAssessment(ReasonRequestFailed)
	}

	assessment, err := parseMatch(raw)
	if err != nil {
		j.logger.Warn("invalid match response",
			append(logger.MatchFields(candidate.ID, job.ID),
				zap.Error(err),
				zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
			)...,
		)
		failed := failedAssessment(ReasonInvalidResponse)
		failed.Raw = raw
		return failed
	}

	assessment.Raw = raw
	return assessment
}

// JudgeGaps returns the gap analysis, empty on any failure.
func (j *Judge) JudgeGaps(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job) *marketplace.GapAnalysis {
	return j.AssessGaps(ctx, candidate, job).Gaps
}

// AssessGaps is JudgeGaps that also reports why the analysis is empty.
func (j *Judge) AssessGaps(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job) GapAssessment {
	if j.generator == nil {
		return GapAssessment{Gaps: marketplace.EmptyGapAnalysis(), Reason: ReasonMissingCredential}
	}

	raw, ok := j.generate(ctx, "judge_gaps", gapsSystemInstruction, buildPrompt(gapsPromptTemplate, candidate, job), candidate.ID, job.ID)
	if !ok {
		return GapAssessment{Gaps: marketplace.EmptyGapAnalysis(), Reason: ReasonRequestFailed}
	}

	gaps, err := parseGaps(raw)
	if err != nil {
		j.logger.Warn("invalid gap analysis response",
			append(logger.MatchFields(candidate.ID, job.ID),
				zap.Error(err),
				zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
			)...,
		)
		return GapAssessment{Gaps: marketplace.EmptyGapAnalysis(), Reason: ReasonInvalidResponse}
	}

	return GapAssessment{Gaps: gaps}
}

// Available reports whether a provider is configured.
func (j *Judge) Available() bool {
	return j != nil && j.generator != nil
}

func (j *Judge) generate(ctx context.Context, operation, system, prompt, candidateID, jobID string) (string, bool) {
	ctx, span := tracer.Start(ctx, "ai."+operation)
	defer span.End()
	span.SetAttributes(
		attribute.String(logger.FieldModel, j.generator.Model()),
		attribute.String(logger.FieldCandidate, candidateID),
		attribute.String(logger.FieldJob, jobID),
	)

	fields := logger.MatchFields(candidateID, jobID)

	j.logger.Debug("generate content request", append(fields,
		zap.String("operation", operation),
		zap.Int("prompt_length", utf8.RuneCountInString(prompt)),
		zap.String("prompt_preview", utils.TruncateForLog(prompt, j.maxLogLen)),
	)...)

	raw, err := j.generator.GenerateContent(ctx, system, prompt)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ReasonRequestFailed)
		j.logger.Warn("generate content failed", append(fields,
			zap.String("operation", operation),
			zap.Error(err),
		)...)
		return "", false
	}

	j.logger.Debug("generate content response", append(fields,
		zap.String("operation", operation),
		zap.Int("response_length", utf8.RuneCountInString(raw)),
		zap.String("response_preview", utils.TruncateForLog(raw, j.maxLogLen)),
	)...)

	return raw, true
}
