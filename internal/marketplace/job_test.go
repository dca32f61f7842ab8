package marketplace

import (
	"testing"
	"time"
)

func testJobs() *Jobs {
	return &Jobs{Items: []*Job{
		{ID: "1", CompanyID: "acme", Title: "Welder", CollarType: CollarBlue, RequiredSkills: "Welding"},
		{ID: "2", CompanyID: "globex", Title: "Analyst", CollarType: CollarWhite},
		{ID: "3", CompanyID: "acme", Title: "Driver", CollarType: CollarBlue},
	}}
}

func TestJobsExcludePreservesOrder(t *testing.T) {
	jobs := testJobs()

	excluded := jobs.Exclude(JobCompanyField, []string{"acme"})
	if len(excluded) != 2 || excluded[0] != "1" || excluded[1] != "3" {
		t.Fatalf("unexpected excluded ids: %v", excluded)
	}
	if jobs.Len() != 1 || jobs.Items[0].ID != "2" {
		t.Fatalf("unexpected remaining jobs: %+v", jobs.Items)
	}

	if got := jobs.Exclude(JobIDField, nil); got != nil {
		t.Fatalf("expected nothing excluded, got %v", got)
	}
}

func TestJobsKeep(t *testing.T) {
	jobs := testJobs()

	dropped := jobs.Keep(func(j *Job) bool { return j.CollarType == CollarBlue })
	if len(dropped) != 1 || dropped[0] != "2" {
		t.Fatalf("unexpected dropped ids: %v", dropped)
	}
	if jobs.Items[0].ID != "1" || jobs.Items[1].ID != "3" {
		t.Fatalf("expected order to be preserved, got %+v", jobs.Items)
	}
	if jobs.FindByID("3") == nil || jobs.FindByID("2") != nil {
		t.Fatalf("FindByID mismatch after Keep")
	}
}

func TestReportByCompany(t *testing.T) {
	report := testJobs().ReportByCompany()

	entries, ok := report["acme"]
	if !ok {
		t.Fatalf("expected company key in report")
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0]["title"] != "Welder" || entries[0]["required skills"] != "Welding" {
		t.Fatalf("unexpected entry: %v", entries[0])
	}
}

func TestJobFilterMatches(t *testing.T) {
	job := &Job{ID: "1", CompanyID: "acme", CollarType: CollarBlue}

	if !(JobFilter{}).Matches(job) {
		t.Fatalf("empty filter should match")
	}
	if (JobFilter{CollarType: CollarWhite}).Matches(job) {
		t.Fatalf("collar mismatch should not match")
	}
	if !(JobFilter{CollarType: CollarBlue, CompanyID: "acme"}).Matches(job) {
		t.Fatalf("expected match")
	}
	if (JobFilter{}).Matches(nil) {
		t.Fatalf("nil job should not match")
	}
}

func TestMatchUpdateApply(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	profileAt := now.Add(-time.Hour)

	rec := MatchUpdate{Scores: &MatchScores{Basic: 50, Semantic: 80, Final: 71, Reason: "ok", ProfileAt: profileAt}}.
		Apply(nil, "c1", "j1", now)

	if !rec.Scored() || rec.Final() != 71 {
		t.Fatalf("expected final score 71, got %+v", rec)
	}
	if rec.CandidateID != "c1" || rec.JobID != "j1" {
		t.Fatalf("unexpected keys: %+v", rec)
	}
	if rec.Improvement != nil {
		t.Fatalf("expected no improvement yet")
	}

	gaps := &GapAnalysis{MissingSkills: []string{"Excel"}}
	rec = MatchUpdate{Improvement: gaps, GapsProfileAt: &profileAt}.Apply(rec, "c1", "j1", now)

	if rec.Final() != 71 {
		t.Fatalf("improvement update must not touch scores, got %v", rec.Final())
	}
	if !rec.Improvement.HasMissingSkills() {
		t.Fatalf("expected missing skills")
	}
	if rec.GapsProfileAt == nil || !rec.GapsProfileAt.Equal(profileAt) {
		t.Fatalf("expected gaps stamp, got %v", rec.GapsProfileAt)
	}
}

func TestUnscoredRecord(t *testing.T) {
	var rec *MatchRecord
	if rec.Scored() || rec.Final() != 0 {
		t.Fatalf("nil record must be unscored")
	}
	if EmptyGapAnalysis().HasMissingSkills() {
		t.Fatalf("empty analysis must not report missing skills")
	}
}
