package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/avolkau/preen/internal/logging"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "unknown"
	Date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "preen",
	Short: "Aggregate and install AI agent/skill plugin content",
	Long: `Preen discovers plugin directories under one or more source roots,
validates each agent and skill file's frontmatter, merges same-name items
under a deterministic first-source-wins policy, and installs the result
into a destination tree, only touching files that actually changed.

Every run emits a JSON manifest recording provenance, invalid items and
collisions for operator review.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, _ := cmd.Flags().GetString("log-level")
		return logging.SetLevel(level)
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("preen %s (commit: %s, built: %s)\n", Version, Commit, Date)
	},
}

func init() {
	rootCmd.PersistentFlags().String("log-level", "warn", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("config", "", "Path to a preen.jsonc config file")
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// runError carries a non-zero process exit code out of a command whose
// diagnostics were already reported via the manifest and summary.
type runError struct {
	code   int
	status string
}

func (e *runError) Error() string {
	return fmt.Sprintf("run finished with status %s", e.status)
}

// ExitCode maps a command error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var re *runError
	if errors.As(err, &re) {
		return re.code
	}
	return 1
}

// IsSilent reports whether the error's diagnostics were already printed
// and main should not repeat them.
func IsSilent(err error) bool {
	var re *runError
	return errors.As(err, &re)
}
