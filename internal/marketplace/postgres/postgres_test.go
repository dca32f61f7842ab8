package postgres

import (
	"context"
	"os"
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/spigell/job-matcher/internal/marketplace"
)

const testDSNEnv = "JOB_MATCHER_TEST_DATABASE_URL"

// Rows inserted without an id, as the PostgREST adapter does, need a server-side default.
func TestSchemaGeneratesMatchIDs(t *testing.T) {
	create := regexp.MustCompile(`(?s)CREATE TABLE IF NOT EXISTS job_matches \((.*?)\n\);`).FindStringSubmatch(schema)
	if create == nil {
		t.Fatal("job_matches table not found in schema")
	}
	if !regexp.MustCompile(`\bid\s+uuid PRIMARY KEY DEFAULT gen_random_uuid\(\)`).MatchString(create[1]) {
		t.Fatalf("job_matches.id has no generated default:\n%s", create[1])
	}
	if !regexp.MustCompile(`ALTER TABLE job_matches ALTER COLUMN id SET DEFAULT gen_random_uuid\(\);`).MatchString(schema) {
		t.Fatal("existing job_matches tables are not upgraded with the id default")
	}
}

func TestUpsertArgsLeavesAbsentPartsNull(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	gapsAt := now.Add(-time.Hour)

	tests := []struct {
		name            string
		update          marketplace.MatchUpdate
		wantScores      bool
		wantImprovement bool
	}{
		{
			name:       "scores only",
			update:     marketplace.MatchUpdate{Scores: &marketplace.MatchScores{Basic: 50, Semantic: 80, Final: 71, Reason: "ok", ProfileAt: now}},
			wantScores: true,
		},
		{
			name:           "improvement only",
			update:         marketplace.MatchUpdate{Improvement: &marketplace.GapAnalysis{MissingSkills: []string{"go"}}, GapsProfileAt: &gapsAt},
			wantImprovement: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := upsertArgs("c1", "j1", tt.update, now)
			if len(args) != 11 {
				t.Fatalf("expected 11 args, got %d", len(args))
			}

			final, _ := args[5].(*float64)
			if tt.wantScores != (final != nil) {
				t.Fatalf("final score presence: got %v, want %v", final != nil, tt.wantScores)
			}
			if tt.wantScores && *final != 71 {
				t.Fatalf("unexpected final score %v", *final)
			}

			raw, _ := args[8].(string)
			if tt.wantImprovement != (raw != "") {
				t.Fatalf("improvement presence: got %q", raw)
			}
			if tt.wantImprovement && raw != `{"missing_skills":["go"],"missing_experience":"","missing_education":"","suggested_courses":null}` {
				t.Fatalf("unexpected improvement json %s", raw)
			}
		})
	}
}

func TestStoreRoundTrip(t *testing.T) {
	dsn := os.Getenv(testDSNEnv)
	if dsn == "" {
		t.Skipf("%s is not set", testDSNEnv)
	}

	ctx := context.Background()
	store, err := Connect(ctx, Options{DSN: dsn})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(store.Close)

	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	candidateID := uuid.NewString()
	jobID := uuid.NewString()
	if _, err := store.pool.Exec(ctx,
		`INSERT INTO job_seekers (id, full_name, collar, skills, updated_at) VALUES ($1::uuid, 'Ana', 'white', 'go, sql', now())`,
		candidateID); err != nil {
		t.Fatalf("seed candidate: %v", err)
	}
	if _, err := store.pool.Exec(ctx,
		`INSERT INTO jobs (id, title, collar_type, required_skills) VALUES ($1::uuid, 'Backend', 'white', 'go')`,
		jobID); err != nil {
		t.Fatalf("seed job: %v", err)
	}
	t.Cleanup(func() {
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM job_matches WHERE user_id = $1::uuid`, candidateID)
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM jobs WHERE id = $1::uuid`, jobID)
		_, _ = store.pool.Exec(context.Background(), `DELETE FROM job_seekers WHERE id = $1::uuid`, candidateID)
	})

	candidate, err := store.GetCandidate(ctx, candidateID)
	if err != nil {
		t.Fatalf("get candidate: %v", err)
	}
	if candidate.Skills != "go, sql" || candidate.Collar != "white" {
		t.Fatalf("unexpected candidate %+v", candidate)
	}

	jobs, err := store.ListJobs(ctx, marketplace.JobFilter{CollarType: "white"})
	if err != nil {
		t.Fatalf("list jobs: %v", err)
	}
	if jobs.FindByID(jobID) == nil {
		t.Fatalf("seeded job missing from list")
	}

	rec, err := store.GetMatchRecord(ctx, candidateID, jobID)
	if err != nil || rec != nil {
		t.Fatalf("expected no record, got %+v, %v", rec, err)
	}

	profileAt := candidate.UpdatedAt
	scores := marketplace.MatchUpdate{Scores: &marketplace.MatchScores{Basic: 100, Semantic: 90, Final: 93, Reason: "fit", ProfileAt: profileAt}}
	if err := store.UpsertMatchRecord(ctx, candidateID, jobID, scores); err != nil {
		t.Fatalf("upsert scores: %v", err)
	}
	gaps := marketplace.MatchUpdate{Improvement: &marketplace.GapAnalysis{MissingSkills: []string{"k8s"}}, GapsProfileAt: &profileAt}
	if err := store.UpsertMatchRecord(ctx, candidateID, jobID, gaps); err != nil {
		t.Fatalf("upsert gaps: %v", err)
	}

	rec, err = store.GetMatchRecord(ctx, candidateID, jobID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if rec.Final() != 93 || rec.Reason != "fit" {
		t.Fatalf("scores were overwritten: %+v", rec)
	}
	if !rec.Improvement.HasMissingSkills() || rec.Improvement.MissingSkills[0] != "k8s" {
		t.Fatalf("unexpected improvement %+v", rec.Improvement)
	}

	var rows int
	if err := store.pool.QueryRow(ctx,
		`SELECT count(*) FROM job_matches WHERE user_id = $1::uuid AND job_id = $2::uuid`,
		candidateID, jobID).Scan(&rows); err != nil {
		t.Fatalf("count: %v", err)
	}
	if rows != 1 {
		t.Fatalf("expected one row per pair, got %d", rows)
	}

	if _, err := store.GetJob(ctx, uuid.NewString()); err == nil {
		t.Fatalf("expected not found error")
	}
}
