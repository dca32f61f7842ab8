package matching

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/spigell/job-matcher/internal/ai"
	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/marketplace/memory"
)

type stubJudge struct {
	mu         sync.Mutex
	scores     map[string]float64
	gaps       map[string][]string
	failReason string
	matchCalls int
	gapCalls   int
}

func newStubJudge(scores map[string]float64) *stubJudge {
	return &stubJudge{scores: scores, gaps: map[string][]string{}}
}

func (s *stubJudge) JudgeMatch(_ context.Context, _ *marketplace.Candidate, job *marketplace.Job) ai.MatchAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.matchCalls++
	if s.failReason != "" {
		return ai.MatchAssessment{Reason: s.failReason, Failed: true}
	}
	return ai.MatchAssessment{Score: s.scores[job.ID], Reason: "stub reason for " + job.ID}
}

func (s *stubJudge) AssessGaps(_ context.Context, _ *marketplace.Candidate, job *marketplace.Job) ai.GapAssessment {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gapCalls++
	if s.failReason != "" {
		return ai.GapAssessment{Gaps: marketplace.EmptyGapAnalysis(), Reason: s.failReason}
	}
	gaps := marketplace.EmptyGapAnalysis()
	gaps.MissingSkills = append(gaps.MissingSkills, s.gaps[job.ID]...)
	return ai.GapAssessment{Gaps: gaps}
}

func (s *stubJudge) calls() (int, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matchCalls, s.gapCalls
}

// flakyStore fails selected operations of an otherwise working store.
type flakyStore struct {
	*memory.Store
	failReads  bool
	failWrites bool
	failList   bool
}

var errStoreDown = errors.New("store is down")

func (f *flakyStore) GetMatchRecord(ctx context.Context, candidateID, jobID string) (*marketplace.MatchRecord, error) {
	if f.failReads {
		return nil, errStoreDown
	}
	return f.Store.GetMatchRecord(ctx, candidateID, jobID)
}

func (f *flakyStore) UpsertMatchRecord(ctx context.Context, candidateID, jobID string, update marketplace.MatchUpdate) error {
	if f.failWrites {
		return errStoreDown
	}
	return f.Store.UpsertMatchRecord(ctx, candidateID, jobID, update)
}

func (f *flakyStore) ListJobs(ctx context.Context, filter marketplace.JobFilter) (*marketplace.Jobs, error) {
	if f.failList {
		return nil, errStoreDown
	}
	return f.Store.ListJobs(ctx, filter)
}

var profileTime = time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

func seededStore() *memory.Store {
	store := memory.New()
	store.Seed(memory.Fixture{
		Candidates: []*marketplace.Candidate{{
			ID:        "c1",
			Collar:    marketplace.CollarBlue,
			Skills:    "Welding, Forklift driving",
			UpdatedAt: profileTime,
		}},
		Jobs: []*marketplace.Job{
			{ID: "weld", CollarType: marketplace.CollarBlue, RequiredSkills: "Welding, Forklift driving, Safety certification"},
			{ID: "drive", CollarType: marketplace.CollarBlue, RequiredSkills: "Forklift driving"},
			{ID: "cook", CollarType: marketplace.CollarBlue, RequiredSkills: "Cooking"},
			{ID: "paint", CollarType: marketplace.CollarBlue, RequiredSkills: "Painting, Welding"},
			{ID: "office", CollarType: marketplace.CollarWhite, RequiredSkills: "Excel"},
		},
	})
	return store
}

func candidate(store *memory.Store) *marketplace.Candidate {
	c, err := store.GetCandidate(context.Background(), "c1")
	if err != nil {
		panic(err)
	}
	return c
}

// gatedJudge blocks every judgment until release is closed and reports the
// first one on started.
type gatedJudge struct {
	*stubJudge
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedJudge(scores map[string]float64) *gatedJudge {
	return &gatedJudge{
		stubJudge: newStubJudge(scores),
		started:   make(chan struct{}),
		release:   make(chan struct{}),
	}
}

func (g *gatedJudge) wait() {
	g.once.Do(func() { close(g.started) })
	<-g.release
}

func (g *gatedJudge) JudgeMatch(ctx context.Context, c *marketplace.Candidate, job *marketplace.Job) ai.MatchAssessment {
	g.wait()
	return g.stubJudge.JudgeMatch(ctx, c, job)
}

func (g *gatedJudge) AssessGaps(ctx context.Context, c *marketplace.Candidate, job *marketplace.Job) ai.GapAssessment {
	g.wait()
	return g.stubJudge.AssessGaps(ctx, c, job)
}
