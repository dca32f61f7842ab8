package filtering

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/marketplace"
)

type categoryFilter struct {
	disabled bool
	reason   string
}

// NewCategory creates a filter that keeps jobs whose collar tag equals the
// candidate's. Candidates without a category keep every job.
func NewCategory() Filter {
	return &categoryFilter{}
}

func (f *categoryFilter) Name() string { return "category" }

func (f *categoryFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *categoryFilter) IsEnabled() bool { return !f.disabled }

func (f *categoryFilter) Validate(*Config) error { return nil }

func (f *categoryFilter) Apply(_ context.Context, deps Deps, jobs *marketplace.Jobs) (*marketplace.Jobs, Step, error) {
	initial := jobs.Len()
	if deps.Candidate == nil || strings.TrimSpace(deps.Candidate.Collar) == "" {
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	collar := deps.Candidate.Collar
	dropped := jobs.Keep(func(job *marketplace.Job) bool {
		return strings.EqualFold(job.CollarType, collar)
	})
	if deps.Logger != nil && len(dropped) > 0 {
		deps.Logger.Info("excluding jobs outside the candidate category",
			zap.String("collar", collar),
			zap.Strings("excluded_jobs", dropped),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(dropped), Left: jobs.Len()}, nil
}

func (f *categoryFilter) Status() Status {
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: f.reason}
}
