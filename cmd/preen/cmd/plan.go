package cmd

import (
	"github.com/spf13/cobra"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show what install would do without writing anything",
	Long: `Run the pipeline up to planning: scan, validate, merge, and diff
against the destination, then report the plan in the manifest. Nothing is
written, no lock is taken.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPipeline(cmd, true)
	},
}

func init() {
	addPipelineFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}
