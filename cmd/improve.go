package cmd

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var improveCmd = &cobra.Command{
	Use:   "improve",
	Short: "Explain what a job seeker lacks for a job",
	Run: func(cmd *cobra.Command, _ []string) {
		improve(cmd)
	},
}

func init() {
	rootCmd.AddCommand(improveCmd)

	improveCmd.Flags().StringP("candidate", "c", "", "job seeker id")
	improveCmd.Flags().String("job", "", "job id")

	improveCmd.MarkFlagRequired("candidate")
	improveCmd.MarkFlagRequired("job")
}

func improve(cmd *cobra.Command) {
	ctx := context.Background()

	e := setup(ctx)
	defer e.Close()
	logger := e.logger

	candidateID, _ := cmd.Flags().GetString("candidate")
	jobID, _ := cmd.Flags().GetString("job")

	candidate, err := e.store.GetCandidate(ctx, candidateID)
	if err != nil {
		logger.Fatal("getting the job seeker", zap.Error(err), zap.String("candidate", candidateID))
	}

	job, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		logger.Fatal("getting the job", zap.Error(err), zap.String("job", jobID))
	}

	gaps, err := e.cache.GetOrCreateImprovements(ctx, candidate.ID, candidate, job)
	if err != nil {
		logger.Fatal("getting improvements", zap.Error(err))
	}

	pretty, _ := json.MarshalIndent(gaps, "", "  ")
	logger.Info(string(pretty), zap.String("job", job.ID), zap.String("title", job.Title))
}
