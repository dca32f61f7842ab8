// Package memory is an in-process marketplace.Store. It backs tests and offline
// runs seeded from a JSON fixture.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-matcher/internal/marketplace"
)

type pairKey struct {
	candidateID string
	jobID       string
}

type Store struct {
	mu           sync.RWMutex
	candidates   map[string]*marketplace.Candidate
	jobs         []*marketplace.Job
	applications []*marketplace.Application
	matches      map[pairKey]*marketplace.MatchRecord

	now func() time.Time
}

// Fixture is the on-disk seed format.
type Fixture struct {
	Candidates   []*marketplace.Candidate   `json:"candidates"`
	Jobs         []*marketplace.Job         `json:"jobs"`
	Applications []*marketplace.Application `json:"applications"`
}

func New() *Store {
	return &Store{
		candidates: make(map[string]*marketplace.Candidate),
		matches:    make(map[pairKey]*marketplace.MatchRecord),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// NewFromFile builds a store seeded from a JSON fixture file.
func NewFromFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}

	var fixture Fixture
	if err := json.Unmarshal(data, &fixture); err != nil {
		return nil, fmt.Errorf("decode fixture %q: %w", path, err)
	}

	s := New()
	s.Seed(fixture)
	return s, nil
}

func (s *Store) Seed(f Fixture) {
	for _, c := range f.Candidates {
		s.PutCandidate(c)
	}
	for _, j := range f.Jobs {
		s.PutJob(j)
	}
	for _, a := range f.Applications {
		s.PutApplication(a)
	}
}

func (s *Store) PutCandidate(c *marketplace.Candidate) {
	if c == nil {
		return
	}
	cp := *c
	s.mu.Lock()
	s.candidates[cp.ID] = &cp
	s.mu.Unlock()
}

// TouchCandidate moves the candidate's updated_at, as a profile edit would.
func (s *Store) TouchCandidate(id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.candidates[id]
	if !ok {
		return fmt.Errorf("candidate %s: %w", id, marketplace.ErrNotFound)
	}
	c.UpdatedAt = at
	return nil
}

func (s *Store) PutJob(j *marketplace.Job) {
	if j == nil {
		return
	}
	cp := *j

	s.mu.Lock()
	defer s.mu.Unlock()

	for i, existing := range s.jobs {
		if existing.ID == cp.ID {
			s.jobs[i] = &cp
			return
		}
	}
	s.jobs = append(s.jobs, &cp)
}

func (s *Store) PutApplication(a *marketplace.Application) {
	if a == nil {
		return
	}
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.mu.Lock()
	s.applications = append(s.applications, &cp)
	s.mu.Unlock()
}

func (s *Store) GetCandidate(_ context.Context, id string) (*marketplace.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.candidates[id]
	if !ok {
		return nil, fmt.Errorf("candidate %s: %w", id, marketplace.ErrNotFound)
	}
	cp := *c
	return &cp, nil
}

func (s *Store) GetJob(_ context.Context, id string) (*marketplace.Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, j := range s.jobs {
		if j.ID == id {
			cp := *j
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("job %s: %w", id, marketplace.ErrNotFound)
}

func (s *Store) ListJobs(_ context.Context, filter marketplace.JobFilter) (*marketplace.Jobs, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	jobs := &marketplace.Jobs{Items: make([]*marketplace.Job, 0, len(s.jobs))}
	for _, j := range s.jobs {
		if !filter.Matches(j) {
			continue
		}
		cp := *j
		jobs.Items = append(jobs.Items, &cp)
	}
	return jobs, nil
}

func (s *Store) ListApplications(_ context.Context, candidateID string) (marketplace.Applications, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var apps marketplace.Applications
	for _, a := range s.applications {
		if a.UserID == candidateID {
			cp := *a
			apps = append(apps, &cp)
		}
	}
	return apps, nil
}

func (s *Store) GetMatchRecord(_ context.Context, candidateID, jobID string) (*marketplace.MatchRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.matches[pairKey{candidateID, jobID}]
	if !ok {
		return nil, nil
	}
	return copyRecord(rec), nil
}

func (s *Store) UpsertMatchRecord(_ context.Context, candidateID, jobID string, update marketplace.MatchUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{candidateID, jobID}
	rec := update.Apply(copyRecord(s.matches[key]), candidateID, jobID, s.now())
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	s.matches[key] = rec
	return nil
}

// MatchRecords returns the number of stored match records.
func (s *Store) MatchRecords() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

func copyRecord(rec *marketplace.MatchRecord) *marketplace.MatchRecord {
	if rec == nil {
		return nil
	}
	cp := *rec
	if rec.FinalScore != nil {
		v := *rec.FinalScore
		cp.FinalScore = &v
	}
	if rec.Improvement != nil {
		gaps := *rec.Improvement
		gaps.MissingSkills = slices.Clone(rec.Improvement.MissingSkills)
		gaps.SuggestedCourses = slices.Clone(rec.Improvement.SuggestedCourses)
		cp.Improvement = &gaps
	}
	return &cp
}
