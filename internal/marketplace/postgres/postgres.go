// Package postgres implements marketplace.Store on top of a pgx connection pool.
package postgres

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spigell/job-matcher/internal/marketplace"
)

//go:embed schema.sql
var schema string

const migrationLockID = 746295115

// Options configures the pool.
type Options struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

func Connect(ctx context.Context, opts Options) (*Store, error) {
	dsn := strings.TrimSpace(opts.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if opts.MaxConns > 0 {
		cfg.MaxConns = opts.MaxConns
	}
	if opts.ConnectTimeout > 0 {
		cfg.ConnConfig.ConnectTimeout = opts.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}

	pingCtx := ctx
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &Store{pool: pool, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Migrate applies the embedded schema under an advisory lock.
func (s *Store) Migrate(ctx context.Context) error {
	conn, err := s.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("take migration lock: %w", err)
	}
	defer func() {
		_, _ = conn.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", migrationLockID)
	}()

	if _, err := conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

const candidateColumns = `id::text, COALESCE(full_name, ''), COALESCE(collar, ''), COALESCE(skills, ''),
	COALESCE(education, ''), COALESCE(experience, ''), updated_at`

func (s *Store) GetCandidate(ctx context.Context, id string) (*marketplace.Candidate, error) {
	var (
		c         marketplace.Candidate
		updatedAt *time.Time
	)

	err := s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM job_seekers WHERE id = $1::uuid`, id,
	).Scan(&c.ID, &c.FullName, &c.Collar, &c.Skills, &c.Education, &c.Experience, &updatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("candidate %s: %w", id, marketplace.ErrNotFound)
		}
		return nil, fmt.Errorf("select candidate: %w", err)
	}
	if updatedAt != nil {
		c.UpdatedAt = updatedAt.UTC()
	}

	return &c, nil
}

const jobColumns = `id::text, COALESCE(company_id::text, ''), COALESCE(title, ''), COALESCE(description, ''),
	COALESCE(collar_type, ''), COALESCE(required_skills, ''), required_experience_years,
	COALESCE(education_level, ''), COALESCE(education_degree, ''), COALESCE(education_major, ''),
	COALESCE(location, ''), is_remote, updated_at`

func scanJob(row pgx.Row) (*marketplace.Job, error) {
	var (
		j         marketplace.Job
		updatedAt *time.Time
	)
	err := row.Scan(&j.ID, &j.CompanyID, &j.Title, &j.Description, &j.CollarType, &j.RequiredSkills,
		&j.RequiredExperienceYears, &j.EducationLevel, &j.EducationDegree, &j.EducationMajor,
		&j.Location, &j.IsRemote, &updatedAt)
	if err != nil {
		return nil, err
	}
	if updatedAt != nil {
		j.UpdatedAt = updatedAt.UTC()
	}
	return &j, nil
}

func (s *Store) GetJob(ctx context.Context, id string) (*marketplace.Job, error) {
	job, err := scanJob(s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1::uuid`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("job %s: %w", id, marketplace.ErrNotFound)
		}
		return nil, fmt.Errorf("select job: %w", err)
	}
	return job, nil
}

func (s *Store) ListJobs(ctx context.Context, filter marketplace.JobFilter) (*marketplace.Jobs, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs
		WHERE ($1 = '' OR collar_type = $1)
		  AND ($2 = '' OR company_id::text = $2)
		ORDER BY created_at, id`

	rows, err := s.pool.Query(ctx, query, filter.CollarType, filter.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("select jobs: %w", err)
	}
	defer rows.Close()

	jobs := &marketplace.Jobs{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		jobs.Items = append(jobs.Items, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}

	return jobs, nil
}

func (s *Store) ListApplications(ctx context.Context, candidateID string) (marketplace.Applications, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id::text, user_id::text, job_id::text, created_at FROM applications WHERE user_id = $1::uuid`,
		candidateID,
	)
	if err != nil {
		return nil, fmt.Errorf("select applications: %w", err)
	}
	defer rows.Close()

	var apps marketplace.Applications
	for rows.Next() {
		var a marketplace.Application
		if err := rows.Scan(&a.ID, &a.UserID, &a.JobID, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		apps = append(apps, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate applications: %w", err)
	}
	return apps, nil
}

func (s *Store) GetMatchRecord(ctx context.Context, candidateID, jobID string) (*marketplace.MatchRecord, error) {
	var (
		rec              marketplace.MatchRecord
		basic, semantic  *float64
		reason           *string
		improvement      []byte
		scoresAt, gapsAt *time.Time
	)

	err := s.pool.QueryRow(ctx,
		`SELECT id::text, user_id::text, job_id::text, basic_score, ai_score, final_score, ai_reason,
			improvement, scores_profile_at, gaps_profile_at, updated_at
		 FROM job_matches WHERE user_id = $1::uuid AND job_id = $2::uuid`,
		candidateID, jobID,
	).Scan(&rec.ID, &rec.CandidateID, &rec.JobID, &basic, &semantic, &rec.FinalScore, &reason,
		&improvement, &scoresAt, &gapsAt, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("select match record: %w", err)
	}

	if basic != nil {
		rec.BasicScore = *basic
	}
	if semantic != nil {
		rec.SemanticScore = *semantic
	}
	if reason != nil {
		rec.Reason = *reason
	}
	rec.ScoresProfileAt = scoresAt
	rec.GapsProfileAt = gapsAt

	if len(improvement) > 0 && string(improvement) != "null" {
		var gaps marketplace.GapAnalysis
		if err := json.Unmarshal(improvement, &gaps); err != nil {
			return nil, fmt.Errorf("decode improvement: %w", err)
		}
		rec.Improvement = &gaps
	}

	return &rec, nil
}

const upsertMatch = `INSERT INTO job_matches (id, user_id, job_id, basic_score, ai_score, final_score, ai_reason,
		scores_profile_at, improvement, gaps_profile_at, updated_at)
	VALUES ($1::uuid, $2::uuid, $3::uuid, $4, $5, $6, $7, $8, $9::jsonb, $10, $11)
	ON CONFLICT (user_id, job_id) DO UPDATE SET
		basic_score       = COALESCE(EXCLUDED.basic_score, job_matches.basic_score),
		ai_score          = COALESCE(EXCLUDED.ai_score, job_matches.ai_score),
		final_score       = COALESCE(EXCLUDED.final_score, job_matches.final_score),
		ai_reason         = COALESCE(EXCLUDED.ai_reason, job_matches.ai_reason),
		scores_profile_at = COALESCE(EXCLUDED.scores_profile_at, job_matches.scores_profile_at),
		improvement       = COALESCE(EXCLUDED.improvement, job_matches.improvement),
		gaps_profile_at   = COALESCE(EXCLUDED.gaps_profile_at, job_matches.gaps_profile_at),
		updated_at        = EXCLUDED.updated_at`

func (s *Store) UpsertMatchRecord(ctx context.Context, candidateID, jobID string, update marketplace.MatchUpdate) error {
	args := upsertArgs(candidateID, jobID, update, s.now())

	if _, err := s.pool.Exec(ctx, upsertMatch, args...); err != nil {
		return fmt.Errorf("upsert match record: %w", err)
	}
	return nil
}

func upsertArgs(candidateID, jobID string, update marketplace.MatchUpdate, now time.Time) []any {
	var (
		basic, semantic, final *float64
		reason                 *string
		scoresAt, gapsAt       *time.Time
		improvement            any
	)

	if sc := update.Scores; sc != nil {
		basic, semantic, final = &sc.Basic, &sc.Semantic, &sc.Final
		reason = &sc.Reason
		at := sc.ProfileAt
		scoresAt = &at
	}

	if update.Improvement != nil {
		// GapAnalysis only holds strings, Marshal cannot fail.
		raw, _ := json.Marshal(update.Improvement)
		improvement = string(raw)
		gapsAt = update.GapsProfileAt
	}

	return []any{uuid.NewString(), candidateID, jobID, basic, semantic, final, reason, scoresAt, improvement, gapsAt, now}
}
