package matching

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spigell/job-matcher/internal/filtering"
	"github.com/spigell/job-matcher/internal/logger"
	"github.com/spigell/job-matcher/internal/marketplace"
)

// ErrLoadJobs is returned when the job pool cannot be enumerated.
var ErrLoadJobs = errors.New("failed to load jobs")

type Bucket int

const (
	BucketNone Bucket = iota
	BucketImprovement
	BucketRecommended
)

func (b Bucket) String() string {
	switch b {
	case BucketRecommended:
		return "recommended"
	case BucketImprovement:
		return "improvement"
	default:
		return "none"
	}
}

// Classify places a final score in a bucket. Both boundaries are inclusive on
// the upper side. A gap analysis listing a missing skill moves a job below the
// floor into the improvement bucket.
func Classify(final float64, gaps *marketplace.GapAnalysis, cfg Config) Bucket {
	switch {
	case final >= cfg.Threshold:
		return BucketRecommended
	case final >= cfg.ImprovementFloor, gaps.HasMissingSkills():
		return BucketImprovement
	default:
		return BucketNone
	}
}

// Match is one evaluated job.
type Match struct {
	Job    *marketplace.Job         `json:"job"`
	Record *marketplace.MatchRecord `json:"record"`
	Gaps   *marketplace.GapAnalysis `json:"gaps,omitempty"`
	Bucket string                   `json:"bucket"`
}

// Recommendation holds recommended jobs sorted by final score, highest first,
// and improvement jobs in pool order.
type Recommendation struct {
	Recommended []*Match `json:"recommended"`
	Improvement []*Match `json:"improvement"`
}

// SessionCache is a best-effort string cache.
type SessionCache interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, value string) error
}

// Recommender evaluates a candidate against the job pool.
type Recommender struct {
	store    marketplace.Store
	cache    *Cache
	cfg      Config
	filters  []filtering.Filter
	filter   *filtering.Config
	sessions SessionCache
	logger   *zap.Logger

	// OnProgress, when set, is called after each job with the number of
	// evaluated jobs and the pool size. Calls are serialized.
	OnProgress func(done, total int)
}

type Option func(*Recommender)

// WithFilters replaces the default filter pipeline.
func WithFilters(cfg *filtering.Config, steps ...filtering.Filter) Option {
	return func(r *Recommender) {
		r.filter = cfg
		r.filters = steps
	}
}

// WithSessionCache sets the cache used by RefreshMatches.
func WithSessionCache(sessions SessionCache) Option {
	return func(r *Recommender) {
		r.sessions = sessions
	}
}

func NewRecommender(store marketplace.Store, cache *Cache, cfg Config, log *zap.Logger, opts ...Option) *Recommender {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Recommender{
		store:   store,
		cache:   cache,
		cfg:     cfg,
		filters: filtering.Default(),
		filter:  &filtering.Config{},
		logger:  log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecommendJobs loads the jobs of the candidate's category, scores each one
// through the cache and classifies the results.
func (r *Recommender) RecommendJobs(ctx context.Context, candidate *marketplace.Candidate) (*Recommendation, error) {
	ctx, span := tracer.Start(ctx, "matching.RecommendJobs")
	defer span.End()
	span.SetAttributes(attribute.String(logger.FieldCandidate, candidate.ID))

	jobs, err := r.loadJobs(ctx, candidate)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	return r.evaluate(ctx, candidate, jobs, false)
}

// RecommendFromPool is RecommendJobs over a caller-supplied pool. The pool is
// not modified.
func (r *Recommender) RecommendFromPool(ctx context.Context, candidate *marketplace.Candidate, pool *marketplace.Jobs) (*Recommendation, error) {
	jobs, err := r.narrow(ctx, candidate, pool)
	if err != nil {
		return nil, err
	}
	return r.evaluate(ctx, candidate, jobs, false)
}

func (r *Recommender) loadJobs(ctx context.Context, candidate *marketplace.Candidate) (*marketplace.Jobs, error) {
	pool, err := r.store.ListJobs(ctx, marketplace.JobFilter{CollarType: candidate.Collar})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadJobs, err)
	}
	return r.narrow(ctx, candidate, pool)
}

func (r *Recommender) narrow(ctx context.Context, candidate *marketplace.Candidate, pool *marketplace.Jobs) (*marketplace.Jobs, error) {
	jobs := &marketplace.Jobs{}
	if pool != nil {
		jobs.Items = append(jobs.Items, pool.Items...)
	}

	deps := filtering.Deps{Store: r.store, Logger: r.logger, Candidate: candidate}
	jobs, err := filtering.Run(ctx, r.filter, deps, r.filters, jobs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadJobs, err)
	}
	return jobs, nil
}

func (r *Recommender) evaluate(ctx context.Context, candidate *marketplace.Candidate, jobs *marketplace.Jobs, force bool) (*Recommendation, error) {
	total := jobs.Len()
	results := make([]*Match, total)

	var (
		progressMu sync.Mutex
		done       int
	)

	g, gctx := errgroup.WithContext(ctx)
	concurrency := r.cfg.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)

	for i, job := range jobs.Items {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			match, err := r.evaluateJob(gctx, candidate, job, force)
			if err != nil {
				return err
			}
			results[i] = match

			progressMu.Lock()
			done++
			if r.OnProgress != nil {
				r.OnProgress(done, total)
			}
			progressMu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rec := &Recommendation{Recommended: []*Match{}, Improvement: []*Match{}}
	for _, match := range results {
		switch match.Bucket {
		case BucketRecommended.String():
			rec.Recommended = append(rec.Recommended, match)
		case BucketImprovement.String():
			rec.Improvement = append(rec.Improvement, match)
		}
	}

	sort.SliceStable(rec.Recommended, func(i, j int) bool {
		return rec.Recommended[i].Record.Final() > rec.Recommended[j].Record.Final()
	})

	r.logger.Info("recommendation ready",
		zap.String(logger.FieldCandidate, candidate.ID),
		zap.Int("jobs", total),
		zap.Int("recommended", len(rec.Recommended)),
		zap.Int("improvement", len(rec.Improvement)),
	)

	return rec, nil
}

func (r *Recommender) evaluateJob(ctx context.Context, candidate *marketplace.Candidate, job *marketplace.Job, force bool) (*Match, error) {
	var (
		record *marketplace.MatchRecord
		err    error
	)
	if force {
		record, err = r.cache.RecomputeMatch(ctx, candidate.ID, candidate, job)
	} else {
		record, err = r.cache.GetOrCreateMatch(ctx, candidate.ID, candidate, job)
	}
	if err != nil {
		return nil, err
	}

	final := record.Final()
	gaps := r.cache.CachedImprovements(record, candidate)
	if gaps == nil && r.cfg.AnalyzeGaps && final < r.cfg.Threshold {
		gaps, err = r.cache.GetOrCreateImprovements(ctx, candidate.ID, candidate, job)
		if err != nil {
			return nil, err
		}
	}

	return &Match{
		Job:    job,
		Record: record,
		Gaps:   gaps,
		Bucket: Classify(final, gaps, r.cfg).String(),
	}, nil
}
