package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-matcher/internal/marketplace"
	"github.com/spigell/job-matcher/internal/matching"
)

const (
	PromptShowImprovements = "Show improvement advice for a job"
	PromptReportByCompany  = "Report by companies"
	PromptJobsToFile       = "Dump recommended jobs to file"
	PromptExit             = "Exit"
	PromptBack             = "back"
)

var errExit = errors.New("exit requested")

var prompt = promptui.Select{
	Label: "What next?",
	Items: []string{PromptShowImprovements, PromptReportByCompany, PromptJobsToFile, PromptExit},
}

var recommendCmd = &cobra.Command{
	Use:   "recommend",
	Short: "Score the job pool against a job seeker and print the best fits",
	Run: func(cmd *cobra.Command, _ []string) {
		recommend(cmd)
	},
}

func init() {
	rootCmd.AddCommand(recommendCmd)

	recommendCmd.Flags().StringP("candidate", "c", "", "job seeker id")
	recommendCmd.Flags().BoolP("refresh", "r", false, "recompute every pair and overwrite stored scores")
	recommendCmd.Flags().BoolP("include-applied", "f", false, "do not exclude jobs the job seeker already applied to")
	recommendCmd.Flags().BoolP("auto-approve", "y", false, "print the results and exit without asking")

	recommendCmd.MarkFlagRequired("candidate")
}

func recommend(cmd *cobra.Command) {
	ctx := context.Background()

	e := setup(ctx)
	defer e.Close()
	logger := e.logger

	candidateID, _ := cmd.Flags().GetString("candidate")
	refresh, _ := cmd.Flags().GetBool("refresh")
	includeApplied, _ := cmd.Flags().GetBool("include-applied")
	autoApprove, _ := cmd.Flags().GetBool("auto-approve")

	candidate, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		logger.Fatal("getting the job seeker", zap.Error(err), zap.String("candidate", candidateID))
	}

	if !e.judge.Available() {
		logger.Warn("no ai provider configured, jobs are ranked by skill overlap only")
	}

	recommender := e.recommender(includeApplied)

	var rec *matching.Recommendation
	if refresh {
		rec, err = recommender.RefreshMatches(ctx, candidate)
	} else {
		rec, err = recommender.RecommendJobs(ctx, candidate)
	}
	if err != nil {
		logger.Fatal("recommending jobs", zap.Error(err))
	}

	logRecommendation(logger, rec)

	if len(rec.Recommended)+len(rec.Improvement) == 0 {
		logger.Info("exiting", zap.String("reason", "no suitable jobs found"))
		return
	}

	if autoApprove {
		return
	}

	for {
		_, action, err := prompt.Run()
		if err != nil {
			logger.Fatal("exiting", zap.Error(err))
		}

		if err := handleAction(ctx, action, e, candidate, rec); err != nil {
			if errors.Is(err, errExit) {
				return
			}
			logger.Fatal("exiting", zap.Error(err))
		}
	}
}

func handleAction(ctx context.Context, action string, e *env, candidate *marketplace.Candidate, rec *matching.Recommendation) error {
	jobs := recommendedJobs(rec)

	switch action {
	case PromptExit:
		e.logger.Info("exiting", zap.String("reason", "got exit from prompt"))
		return errExit
	case PromptShowImprovements:
		return showImprovements(ctx, e, candidate, rec)
	case PromptReportByCompany:
		pretty, _ := json.MarshalIndent(jobs.ReportByCompany(), "", "  ")
		e.logger.Info(string(pretty), zap.Int("jobs count", jobs.Len()))
		return nil
	case PromptJobsToFile:
		filename, err := jobs.DumpToTmpFile()
		if err != nil {
			return fmt.Errorf("dump results to file: %w", err)
		}
		e.logger.Info("dumping result to file", zap.String("filename", filename))
		return nil
	default:
		return fmt.Errorf("invalid action: %s", action)
	}
}

func showImprovements(ctx context.Context, e *env, candidate *marketplace.Candidate, rec *matching.Recommendation) error {
	matches := append(append([]*matching.Match{}, rec.Recommended...), rec.Improvement...)

	for {
		items := make([]string, 0, len(matches)+1)
		for _, m := range matches {
			items = append(items, matchLabel(m))
		}

		jobPrompt := promptui.Select{
			Label: "Choose a job and press ENTER",
			Items: append(items, PromptBack),
			Size:  10,
		}

		idx, selected, err := jobPrompt.Run()
		if err != nil {
			return err
		}
		if selected == PromptBack {
			return nil
		}

		job := matches[idx].Job
		gaps, err := e.cache.GetOrCreateImprovements(ctx, candidate.ID, candidate, job)
		if err != nil {
			return fmt.Errorf("improvements for job %s: %w", job.ID, err)
		}

		pretty, _ := json.MarshalIndent(gaps, "", "  ")
		e.logger.Info(string(pretty), zap.String("job", job.ID), zap.String("title", job.Title))
	}
}

func logRecommendation(logger *zap.Logger, rec *matching.Recommendation) {
	logger.Info("evaluation finished",
		zap.Int("recommended", len(rec.Recommended)),
		zap.Int("improvement", len(rec.Improvement)),
	)

	for _, m := range rec.Recommended {
		logger.Info("recommended job", matchFields(m)...)
	}
	for _, m := range rec.Improvement {
		fields := matchFields(m)
		if m.Gaps != nil {
			fields = append(fields, zap.Strings("missing skills", m.Gaps.MissingSkills))
		}
		logger.Info("job worth improving for", fields...)
	}
}

func matchFields(m *matching.Match) []zap.Field {
	fields := []zap.Field{
		zap.String("job", m.Job.ID),
		zap.String("title", m.Job.Title),
		zap.String("company", m.Job.CompanyID),
	}
	if m.Record != nil {
		fields = append(fields,
			zap.Float64("final score", m.Record.Final()),
			zap.Float64("basic score", m.Record.BasicScore),
			zap.Float64("ai score", m.Record.SemanticScore),
			zap.String("reason", m.Record.Reason),
		)
	}
	return fields
}

func matchLabel(m *matching.Match) string {
	score := 0.0
	if m.Record != nil {
		score = m.Record.Final()
	}
	return fmt.Sprintf("%s %s / %s / %.0f (%s)", m.Job.ID, m.Job.Title, m.Job.CompanyID, score, m.Bucket)
}

func recommendedJobs(rec *matching.Recommendation) *marketplace.Jobs {
	jobs := &marketplace.Jobs{Items: make([]*marketplace.Job, 0, len(rec.Recommended))}
	for _, m := range rec.Recommended {
		jobs.Items = append(jobs.Items, m.Job)
	}
	return jobs
}
