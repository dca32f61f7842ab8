package filtering

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/marketplace"
)

const includeAppliedMsg = "include applied flag is set"

type appliedHistoryFilter struct {
	ignore   bool
	disabled bool
	reason   string
}

// NewAppliedHistory creates a filter that removes jobs the candidate already applied to.
func NewAppliedHistory() Filter {
	return &appliedHistoryFilter{}
}

func (f *appliedHistoryFilter) Name() string { return "applied_history" }

func (f *appliedHistoryFilter) Disable(reason string) {
	f.disabled = true
	f.reason = reason
}

func (f *appliedHistoryFilter) IsEnabled() bool { return !f.disabled }

func (f *appliedHistoryFilter) Validate(cfg *Config) error {
	f.ignore = cfg != nil && cfg.IncludeApplied
	return nil
}

func (f *appliedHistoryFilter) Apply(ctx context.Context, deps Deps, jobs *marketplace.Jobs) (*marketplace.Jobs, Step, error) {
	initial := jobs.Len()
	if f.ignore {
		if deps.Logger != nil {
			deps.Logger.Info("keeping already applied jobs", zap.String("reason", includeAppliedMsg))
		}
		return jobs, Step{Initial: initial, Left: initial}, nil
	}

	if deps.Store == nil {
		return jobs, Step{}, errors.New("store is required")
	}
	if deps.Candidate == nil {
		return jobs, Step{}, errors.New("candidate is required")
	}

	applications, err := deps.Store.ListApplications(ctx, deps.Candidate.ID)
	if err != nil {
		return jobs, Step{}, fmt.Errorf("list applications: %w", err)
	}

	excluded := jobs.Exclude(marketplace.JobIDField, applications.JobIDs())
	if deps.Logger != nil && len(excluded) > 0 {
		deps.Logger.Info("excluding jobs the candidate applied to",
			zap.Strings("excluded_jobs", excluded),
			zap.Int("jobs_left", jobs.Len()),
		)
	}

	return jobs, Step{Initial: initial, Dropped: len(excluded), Left: jobs.Len()}, nil
}

func (f *appliedHistoryFilter) Status() Status {
	details := map[string]string{
		"exclude_applied": strconv.FormatBool(!f.ignore),
	}
	reason := f.reason
	if reason == "" && f.ignore {
		reason = "skip requested via flag"
	}
	return Status{Name: f.Name(), Enabled: f.IsEnabled(), Reason: reason, Details: details}
}
