package ai

import (
	_ "embed"
	"strconv"
	"strings"

	"github.com/spigell/job-matcher/internal/marketplace"
)

//go:embed match_prompt.md
var matchPromptTemplate string

//go:embed gaps_prompt.md
var gapsPromptTemplate string

const (
	matchSystemInstruction = "You are a recruiter scoring candidate and job compatibility. Answer with a single JSON object."
	gapsSystemInstruction  = "You are a friendly career coach. Answer with a single JSON object."

	notSpecified = "not specified"
)

func buildPrompt(template string, candidate *marketplace.Candidate, job *marketplace.Job) string {
	replacer := strings.NewReplacer(
		"{{CANDIDATE_SKILLS}}", orNotSpecified(candidate.Skills),
		"{{CANDIDATE_EDUCATION}}", orNotSpecified(candidate.Education),
		"{{CANDIDATE_EXPERIENCE}}", orNotSpecified(candidate.Experience),
		"{{JOB_TITLE}}", orNotSpecified(job.Title),
		"{{JOB_SKILLS}}", orNotSpecified(job.RequiredSkills),
		"{{JOB_EXPERIENCE}}", experienceYears(job.RequiredExperienceYears),
		"{{JOB_EDUCATION}}", jobEducation(job),
		"{{JOB_DESCRIPTION}}", orNotSpecified(job.Description),
	)
	return replacer.Replace(template)
}

func orNotSpecified(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return notSpecified
	}
	return s
}

func experienceYears(years *float64) string {
	if years == nil {
		return notSpecified
	}
	return strconv.FormatFloat(*years, 'f', -1, 64)
}

func jobEducation(job *marketplace.Job) string {
	var parts []string
	for _, p := range []string{job.EducationLevel, job.EducationDegree, job.EducationMajor} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	if len(parts) == 0 {
		return notSpecified
	}
	return strings.Join(parts, ", ")
}
