package postgrest

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/spigell/job-matcher/internal/marketplace"
)

const (
	tableCandidates   = "job_seekers"
	tableJobs         = "jobs"
	tableApplications = "applications"
	tableMatches      = "job_matches"

	matchConflictKey = "user_id,job_id"
)

func (c *Client) GetCandidate(ctx context.Context, id string) (*marketplace.Candidate, error) {
	var rows []*marketplace.Candidate
	if err := c.getJSON(ctx, tableCandidates, url.Values{"id": {eq(id)}, "limit": {"1"}}, &rows); err != nil {
		return nil, fmt.Errorf("get candidate: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("candidate %s: %w", id, marketplace.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) GetJob(ctx context.Context, id string) (*marketplace.Job, error) {
	var rows []*marketplace.Job
	if err := c.getJSON(ctx, tableJobs, url.Values{"id": {eq(id)}, "limit": {"1"}}, &rows); err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("job %s: %w", id, marketplace.ErrNotFound)
	}
	return rows[0], nil
}

func (c *Client) ListJobs(ctx context.Context, filter marketplace.JobFilter) (*marketplace.Jobs, error) {
	q := url.Values{"select": {"*"}}
	if filter.CollarType != "" {
		q.Set("collar_type", eq(filter.CollarType))
	}
	if filter.CompanyID != "" {
		q.Set("company_id", eq(filter.CompanyID))
	}

	var rows []*marketplace.Job
	if err := c.getJSON(ctx, tableJobs, q, &rows); err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}

	return &marketplace.Jobs{Items: rows}, nil
}

func (c *Client) ListApplications(ctx context.Context, candidateID string) (marketplace.Applications, error) {
	var rows marketplace.Applications
	if err := c.getJSON(ctx, tableApplications, url.Values{"user_id": {eq(candidateID)}}, &rows); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	return rows, nil
}

func (c *Client) GetMatchRecord(ctx context.Context, candidateID, jobID string) (*marketplace.MatchRecord, error) {
	q := url.Values{
		"user_id": {eq(candidateID)},
		"job_id":  {eq(jobID)},
		"limit":   {"1"},
	}

	var rows []*marketplace.MatchRecord
	if err := c.getJSON(ctx, tableMatches, q, &rows); err != nil {
		return nil, fmt.Errorf("get match record: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpsertMatchRecord sends only the columns present in the update so a merge
// leaves the others as stored.
func (c *Client) UpsertMatchRecord(ctx context.Context, candidateID, jobID string, update marketplace.MatchUpdate) error {
	if err := c.upsertJSON(ctx, tableMatches, matchConflictKey, matchPayload(candidateID, jobID, update, c.now())); err != nil {
		return fmt.Errorf("upsert match record: %w", err)
	}
	return nil
}

func matchPayload(candidateID, jobID string, update marketplace.MatchUpdate, now time.Time) map[string]any {
	payload := map[string]any{
		"user_id":    candidateID,
		"job_id":     jobID,
		"updated_at": now,
	}

	if sc := update.Scores; sc != nil {
		payload["basic_score"] = sc.Basic
		payload["ai_score"] = sc.Semantic
		payload["final_score"] = sc.Final
		payload["ai_reason"] = sc.Reason
		payload["scores_profile_at"] = sc.ProfileAt
	}

	if update.Improvement != nil {
		payload["improvement"] = update.Improvement
		if update.GapsProfileAt != nil {
			payload["gaps_profile_at"] = *update.GapsProfileAt
		}
	}

	return payload
}
