package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/job-matcher/internal/matching"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Print the skill overlap score of two comma separated skill lists",
	RunE: func(cmd *cobra.Command, _ []string) error {
		candidateSkills, _ := cmd.Flags().GetString("candidate-skills")
		jobSkills, _ := cmd.Flags().GetString("job-skills")

		fmt.Fprintf(cmd.OutOrStdout(), "%.2f\n", matching.SkillOverlap(candidateSkills, jobSkills))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scoreCmd)

	scoreCmd.Flags().String("candidate-skills", "", "skills of the job seeker, comma separated")
	scoreCmd.Flags().String("job-skills", "", "skills the job requires, comma separated")
}
