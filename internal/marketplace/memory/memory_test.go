package memory

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spigell/job-matcher/internal/marketplace"
)

func TestUpsertMatchRecordKeepsOneRowPerPair(t *testing.T) {
	ctx := context.Background()
	s := New()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.UpsertMatchRecord(ctx, "c1", "j1", marketplace.MatchUpdate{
				Scores: &marketplace.MatchScores{Final: float64(i)},
			})
			if err != nil {
				t.Errorf("upsert: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if got := s.MatchRecords(); got != 1 {
		t.Fatalf("expected 1 record, got %d", got)
	}

	rec, err := s.GetMatchRecord(ctx, "c1", "j1")
	if err != nil || rec == nil {
		t.Fatalf("expected record, got %v, %v", rec, err)
	}
	if rec.ID == "" {
		t.Fatalf("expected record id to be assigned")
	}
}

func TestPartialUpsertKeepsScores(t *testing.T) {
	ctx := context.Background()
	s := New()

	if err := s.UpsertMatchRecord(ctx, "c1", "j1", marketplace.MatchUpdate{
		Scores: &marketplace.MatchScores{Basic: 10, Semantic: 20, Final: 17, Reason: "r"},
	}); err != nil {
		t.Fatalf("upsert scores: %v", err)
	}

	first, _ := s.GetMatchRecord(ctx, "c1", "j1")

	if err := s.UpsertMatchRecord(ctx, "c1", "j1", marketplace.MatchUpdate{
		Improvement: &marketplace.GapAnalysis{MissingSkills: []string{"SQL"}},
	}); err != nil {
		t.Fatalf("upsert improvement: %v", err)
	}

	rec, _ := s.GetMatchRecord(ctx, "c1", "j1")
	if rec.Final() != 17 || rec.Reason != "r" {
		t.Fatalf("scores were overwritten: %+v", rec)
	}
	if rec.ID != first.ID {
		t.Fatalf("expected stable id, got %s and %s", first.ID, rec.ID)
	}
	if !rec.Improvement.HasMissingSkills() {
		t.Fatalf("expected improvement to be stored")
	}

	rec.Improvement.MissingSkills[0] = "mutated"
	again, _ := s.GetMatchRecord(ctx, "c1", "j1")
	if again.Improvement.MissingSkills[0] != "SQL" {
		t.Fatalf("stored record must not alias returned copies")
	}
}

func TestGetMatchRecordMissing(t *testing.T) {
	rec, err := New().GetMatchRecord(context.Background(), "c", "j")
	if err != nil || rec != nil {
		t.Fatalf("expected nil, nil; got %v, %v", rec, err)
	}
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fixture.json")
	fixture := `{
  "candidates": [{"id": "c1", "collar": "blue", "skills": "Welding", "updated_at": "2026-01-01T00:00:00Z"}],
  "jobs": [
    {"id": "j1", "collar_type": "blue", "required_skills": "Welding"},
    {"id": "j2", "collar_type": "white", "required_skills": "Excel"}
  ],
  "applications": [{"user_id": "c1", "job_id": "j2"}]
}`
	if err := os.WriteFile(path, []byte(fixture), 0o600); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	s, err := NewFromFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx := context.Background()

	c, err := s.GetCandidate(ctx, "c1")
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if !c.UpdatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected updated_at: %v", c.UpdatedAt)
	}

	blue, _ := s.ListJobs(ctx, marketplace.JobFilter{CollarType: marketplace.CollarBlue})
	if blue.Len() != 1 || blue.Items[0].ID != "j1" {
		t.Fatalf("unexpected blue jobs: %+v", blue.Items)
	}

	apps, _ := s.ListApplications(ctx, "c1")
	if ids := apps.JobIDs(); len(ids) != 1 || ids[0] != "j2" {
		t.Fatalf("unexpected applications: %v", ids)
	}

	if _, err := s.GetJob(ctx, "missing"); !errors.Is(err, marketplace.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTouchCandidate(t *testing.T) {
	s := New()
	s.PutCandidate(&marketplace.Candidate{ID: "c1"})

	at := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	if err := s.TouchCandidate("c1", at); err != nil {
		t.Fatalf("touch: %v", err)
	}

	c, _ := s.GetCandidate(context.Background(), "c1")
	if !c.UpdatedAt.Equal(at) {
		t.Fatalf("expected updated_at %v, got %v", at, c.UpdatedAt)
	}

	if err := s.TouchCandidate("missing", at); !errors.Is(err, marketplace.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
