package marketplace

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

const (
	JobIDField      = "ID"
	JobCompanyField = "CompanyID"
)

// Job is a posting owned by a company.
type Job struct {
	ID                      string    `json:"id" mapstructure:"id"`
	CompanyID               string    `json:"company_id,omitempty" mapstructure:"company_id"`
	Title                   string    `json:"title,omitempty" mapstructure:"title"`
	Description             string    `json:"description,omitempty" mapstructure:"description"`
	CollarType              string    `json:"collar_type,omitempty" mapstructure:"collar_type"`
	RequiredSkills          string    `json:"required_skills,omitempty" mapstructure:"required_skills"`
	RequiredExperienceYears *float64  `json:"required_experience_years,omitempty" mapstructure:"required_experience_years"`
	EducationLevel          string    `json:"education_level,omitempty" mapstructure:"education_level"`
	EducationDegree         string    `json:"education_degree,omitempty" mapstructure:"education_degree"`
	EducationMajor          string    `json:"education_major,omitempty" mapstructure:"education_major"`
	Location                string    `json:"location,omitempty" mapstructure:"location"`
	IsRemote                bool      `json:"is_remote,omitempty" mapstructure:"is_remote"`
	UpdatedAt               time.Time `json:"updated_at,omitempty" mapstructure:"updated_at"`
}

// JobFilter narrows ListJobs. Empty fields match everything.
type JobFilter struct {
	CollarType string
	CompanyID  string
}

// Matches reports whether the job satisfies the filter.
func (f JobFilter) Matches(job *Job) bool {
	if job == nil {
		return false
	}
	if f.CollarType != "" && job.CollarType != f.CollarType {
		return false
	}
	if f.CompanyID != "" && job.CompanyID != f.CompanyID {
		return false
	}
	return true
}

type Jobs struct {
	Items []*Job
}

func (j *Jobs) Len() int {
	return len(j.Items)
}

func (j *Jobs) FindByID(id string) *Job {
	for _, job := range j.Items {
		if job.ID == id {
			return job
		}
	}
	return nil
}

func (job *Job) GetStringField(name string) string {
	switch name {
	case JobIDField:
		return job.ID
	case JobCompanyField:
		return job.CompanyID
	default:
		return ""
	}
}

// Exclude removes every job whose field equals one of targets and returns the
// removed job ids. Order of the remaining jobs is preserved.
func (j *Jobs) Exclude(name string, targets []string) []string {
	if len(targets) == 0 {
		return nil
	}

	set := make(map[string]struct{}, len(targets))
	for _, target := range targets {
		set[target] = struct{}{}
	}

	var excluded []string
	kept := j.Items[:0]
	for _, job := range j.Items {
		if _, ok := set[job.GetStringField(name)]; ok {
			excluded = append(excluded, job.ID)
			continue
		}
		kept = append(kept, job)
	}
	j.Items = kept

	return excluded
}

// Keep retains only the jobs accepted by fn and returns the ids of dropped jobs.
func (j *Jobs) Keep(fn func(*Job) bool) []string {
	var dropped []string
	kept := j.Items[:0]
	for _, job := range j.Items {
		if fn(job) {
			kept = append(kept, job)
			continue
		}
		dropped = append(dropped, job.ID)
	}
	j.Items = kept
	return dropped
}

// ReportByCompany groups a short description of each job by company id.
func (j *Jobs) ReportByCompany() map[string][]map[string]string {
	report := make(map[string][]map[string]string)
	for _, job := range j.Items {
		key := job.CompanyID
		if key == "" {
			key = "unknown"
		}
		report[key] = append(report[key], map[string]string{
			"id":              job.ID,
			"title":           job.Title,
			"collar":          job.CollarType,
			"location":        job.Location,
			"required skills": job.RequiredSkills,
		})
	}
	return report
}

func (j *Jobs) DumpToTmpFile() (string, error) {
	file, err := os.CreateTemp("", "jobs_*.json")
	if err != nil {
		return "", err
	}
	defer file.Close()

	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(j); err != nil {
		return "", fmt.Errorf("encode jobs: %w", err)
	}
	return file.Name(), nil
}
