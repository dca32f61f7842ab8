package matching

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/telemetry"
)

var tracer = telemetry.Tracer("github.com/spigell/job-matcher/internal/matching")

// Judge is the semantic judgment the cache computes missing entries with.
type Judge interface {
	JudgeMatch(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job) ai.MatchAssessment
	AssessGaps(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job) ai.GapAssessment
}

// Cache serves MatchRecords from the store and computes the missing ones.
// Calls for the same pair that overlap in time share one computation.
type Cache struct {
	store  marketplace.Store
	judge  Judge
	cfg    Config
	logger *zap.Logger
	group  singleflight.Group
	now    func() time.Time
}

func NewCache(store marketplace.Store, judge Judge, cfg Config, log *zap.Logger) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{
		store:  store,
		judge:  judge,
		cfg:    cfg,
		logger: log,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// GetOrCreateMatch returns the stored record for the pair when it is scored
// and current, otherwise computes, persists and returns a new one. The only
// error is the caller's canceled context; a computation shared with other
// callers keeps running for them.
func (c *Cache) GetOrCreateMatch(ctx context.Context, candidateID string, candidate *marketplace.Candidate, job *marketplace.Job) (*marketplace.MatchRecord, error) {
	return c.match(ctx, candidateID, candidate, job, false)
}

// RecomputeMatch computes and overwrites the pair's scores regardless of what
// is stored.
func (c *Cache) RecomputeMatch(ctx context.Context, candidateID string, candidate *marketplace.Candidate, job *marketplace.Job) (*marketplace.MatchRecord, error) {
	return c.match(ctx, candidateID, candidate, job, true)
}

func (c *Cache) match(ctx context.Context, candidateID string, candidate *marketplace.Candidate, job *marketplace.Job, force bool) (*marketplace.MatchRecord, error) {
	ctx, span := tracer.Start(ctx, "matching.GetOrCreateMatch")
	defer span.End()
	span.SetAttributes(
		attribute.String(logger.FieldCandidate, candidateID),
		attribute.String(logger.FieldJob, job.ID),
		attribute.Bool("force", force),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	key := "match:" + candidateID + ":" + job.ID
	if force {
		key = "recompute:" + candidateID + ":" + job.ID
	}

	// The shared computation outlives any single caller. Each caller stops
	// waiting when its own ctx is done.
	shared := context.WithoutCancel(ctx)
	results := c.group.DoChan(key, func() (any, error) {
		existing := c.load(shared, candidateID, job.ID)
		if !force && existing.Scored() && c.current(existing.ScoresProfileAt, candidate) {
			span.SetAttributes(attribute.String("cache.result", "hit"))
			return existing, nil
		}
		span.SetAttributes(attribute.String("cache.result", "miss"))

		return c.computeMatch(shared, candidateID, candidate, job, existing), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		if res.Shared {
			c.logger.Debug("shared match computation", logger.MatchFields(candidateID, job.ID)...)
		}
		return copyRecord(res.Val.(*marketplace.MatchRecord)), nil
	}
}

func (c *Cache) computeMatch(ctx context.Context, candidateID string, candidate *marketplace.Candidate, job *marketplace.Job, existing *marketplace.MatchRecord) *marketplace.MatchRecord {
	fields := logger.MatchFields(candidateID, job.ID)

	basic := SkillOverlap(candidate.Skills, job.RequiredSkills)
	assessment := c.judge.JudgeMatch(ctx, candidate, job)

	scores := &marketplace.MatchScores{
		Basic:     basic,
		Semantic:  assessment.Score,
		Final:     Blend(basic, assessment.Score),
		Reason:    assessment.Reason,
		ProfileAt: candidate.UpdatedAt,
	}
	update := marketplace.MatchUpdate{Scores: scores}

	c.logger.Debug("match computed", append(fields,
		zap.Float64("basic_score", scores.Basic),
		zap.Float64("ai_score", scores.Semantic),
		zap.Float64("final_score", scores.Final),
		zap.Bool("judgment_failed", assessment.Failed),
	)...)

	rec := update.Apply(copyRecord(existing), candidateID, job.ID, c.now())

	// Unless configured otherwise a failed judgment is served but not cached,
	// so the next call retries it.
	if assessment.Failed && !c.cfg.PersistFailedJudgments {
		c.logger.Info("semantic judgment unavailable, result not cached", append(fields,
			zap.String("reason", assessment.Reason),
		)...)
		return rec
	}

	if err := c.store.UpsertMatchRecord(ctx, candidateID, job.ID, update); err != nil {
		c.logger.Warn("failed to persist match record", append(fields, zap.Error(err))...)
		return rec
	}

	// Serve the stored row so later cache hits return the same record.
	if stored := c.load(ctx, candidateID, job.ID); stored.Scored() {
		return stored
	}

	return rec
}

// GetOrCreateImprovements returns the stored gap analysis for the pair when it
// is current, otherwise asks the judge for one and persists it.
func (c *Cache) GetOrCreateImprovements(ctx context.Context, candidateID string, candidate *marketplace.Candidate, job *marketplace.Job) (*marketplace.GapAnalysis, error) {
	ctx, span := tracer.Start(ctx, "matching.GetOrCreateImprovements")
	defer span.End()
	span.SetAttributes(
		attribute.String(logger.FieldCandidate, candidateID),
		attribute.String(logger.FieldJob, job.ID),
	)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	shared := context.WithoutCancel(ctx)
	results := c.group.DoChan("gaps:"+candidateID+":"+job.ID, func() (any, error) {
		if gaps := c.CachedImprovements(c.load(shared, candidateID, job.ID), candidate); gaps != nil {
			span.SetAttributes(attribute.String("cache.result", "hit"))
			return gaps, nil
		}
		span.SetAttributes(attribute.String("cache.result", "miss"))

		assessment := c.judge.AssessGaps(shared, candidate, job)

		fields := logger.MatchFields(candidateID, job.ID)
		if assessment.Failed() {
			c.logger.Info("gap analysis unavailable, result not cached", append(fields,
				zap.String("reason", assessment.Reason),
			)...)
			return assessment.Gaps, nil
		}

		profileAt := candidate.UpdatedAt
		update := marketplace.MatchUpdate{Improvement: assessment.Gaps, GapsProfileAt: &profileAt}
		if err := c.store.UpsertMatchRecord(shared, candidateID, job.ID, update); err != nil {
			c.logger.Warn("failed to persist gap analysis", append(fields, zap.Error(err))...)
		}

		return assessment.Gaps, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-results:
		if res.Err != nil {
			return nil, res.Err
		}
		gaps := *res.Val.(*marketplace.GapAnalysis)
		return &gaps, nil
	}
}

// CachedImprovements returns the record's gap analysis when it is current, or nil.
func (c *Cache) CachedImprovements(rec *marketplace.MatchRecord, candidate *marketplace.Candidate) *marketplace.GapAnalysis {
	if rec == nil || rec.Improvement == nil || !c.current(rec.GapsProfileAt, candidate) {
		return nil
	}
	gaps := *rec.Improvement
	return &gaps
}

// load reads the pair's record. Store errors count as a miss.
func (c *Cache) load(ctx context.Context, candidateID, jobID string) *marketplace.MatchRecord {
	rec, err := c.store.GetMatchRecord(ctx, candidateID, jobID)
	if err != nil {
		c.logger.Warn("failed to read match record", append(logger.MatchFields(candidateID, jobID), zap.Error(err))...)
		return nil
	}
	return rec
}

// current reports whether a part computed against the profile version stamped
// at profileAt may be served for candidate.
func (c *Cache) current(profileAt *time.Time, candidate *marketplace.Candidate) bool {
	if !c.cfg.StampProfileVersion {
		return true
	}
	if profileAt == nil {
		return candidate.UpdatedAt.IsZero()
	}
	return profileAt.Equal(candidate.UpdatedAt)
}

func copyRecord(rec *marketplace.MatchRecord) *marketplace.MatchRecord {
	if rec == nil {
		return nil
	}
	cp := *rec
	return &cp
}
