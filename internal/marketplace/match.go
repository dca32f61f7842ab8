package marketplace

import (
	"time"
)

// GapAnalysis is advice describing what a candidate lacks for a job.
type GapAnalysis struct {
	MissingSkills     []string `json:"missing_skills" mapstructure:"missing_skills"`
	MissingExperience string   `json:"missing_experience" mapstructure:"missing_experience"`
	MissingEducation  string   `json:"missing_education" mapstructure:"missing_education"`
	SuggestedCourses  []string `json:"suggested_courses" mapstructure:"suggested_courses"`
}

// EmptyGapAnalysis is the zero-value advice with non-nil lists.
func EmptyGapAnalysis() *GapAnalysis {
	return &GapAnalysis{
		MissingSkills:    []string{},
		SuggestedCourses: []string{},
	}
}

// HasMissingSkills reports whether at least one missing skill is listed.
func (g *GapAnalysis) HasMissingSkills() bool {
	return g != nil && len(g.MissingSkills) > 0
}

// MatchRecord is the cached evaluation of one candidate/job pair. FinalScore is
// nil until scores have been computed for the pair.
type MatchRecord struct {
	ID            string       `json:"id,omitempty"`
	CandidateID   string       `json:"user_id"`
	JobID         string       `json:"job_id"`
	BasicScore    float64      `json:"basic_score"`
	SemanticScore float64      `json:"ai_score"`
	FinalScore    *float64     `json:"final_score"`
	Reason        string       `json:"ai_reason"`
	Improvement   *GapAnalysis `json:"improvement,omitempty"`

	// Profile timestamps the scores and the improvement were computed against.
	ScoresProfileAt *time.Time `json:"scores_profile_at,omitempty"`
	GapsProfileAt   *time.Time `json:"gaps_profile_at,omitempty"`

	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// Scored reports whether the record carries a final score.
func (m *MatchRecord) Scored() bool {
	return m != nil && m.FinalScore != nil
}

// Final returns the final score or 0 when the record is not scored.
func (m *MatchRecord) Final() float64 {
	if !m.Scored() {
		return 0
	}
	return *m.FinalScore
}

// MatchScores are the computed scores of a pair.
type MatchScores struct {
	Basic     float64
	Semantic  float64
	Final     float64
	Reason    string
	ProfileAt time.Time
}

// MatchUpdate is a partial upsert. Nil parts leave the stored columns untouched.
type MatchUpdate struct {
	Scores        *MatchScores
	Improvement   *GapAnalysis
	GapsProfileAt *time.Time
}

// Apply merges the update into rec, creating the record when rec is nil.
func (u MatchUpdate) Apply(rec *MatchRecord, candidateID, jobID string, now time.Time) *MatchRecord {
	if rec == nil {
		rec = &MatchRecord{CandidateID: candidateID, JobID: jobID}
	}

	if u.Scores != nil {
		final := u.Scores.Final
		profileAt := u.Scores.ProfileAt
		rec.BasicScore = u.Scores.Basic
		rec.SemanticScore = u.Scores.Semantic
		rec.FinalScore = &final
		rec.Reason = u.Scores.Reason
		rec.ScoresProfileAt = &profileAt
	}

	if u.Improvement != nil {
		gaps := *u.Improvement
		rec.Improvement = &gaps
		if u.GapsProfileAt != nil {
			at := *u.GapsProfileAt
			rec.GapsProfileAt = &at
		}
	}

	rec.UpdatedAt = now
	return rec
}
