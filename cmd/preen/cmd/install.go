package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avolkau/preen/internal/core"
)

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Scan sources, merge content and install it into the destination",
	Long: `Run the full pipeline: scan every configured source root for plugin
directories, validate agent and skill frontmatter, merge items by name
(first source wins), and write new or changed files into the destination.

Unchanged files are left untouched, so repeated runs against unchanged
sources are no-ops. The JSON manifest is written to --manifest (stdout by
default); the human summary goes to stderr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		return runPipeline(cmd, dryRun)
	},
}

func init() {
	addPipelineFlags(installCmd)
	installCmd.Flags().Bool("dry-run", false, "Compute and report the plan without writing anything")
	rootCmd.AddCommand(installCmd)
}

// addPipelineFlags registers the flags shared by install and plan.
func addPipelineFlags(cmd *cobra.Command) {
	cmd.Flags().StringArrayP("source", "s", nil, "Source root to scan (repeatable, order is significant)")
	cmd.Flags().StringP("dest", "d", "", "Destination root directory")
	cmd.Flags().Bool("prune-stale", false, "Remove managed files no longer claimed by any source")
	cmd.Flags().String("on-collision", "", "Collision policy: warn (default) or fail")
	cmd.Flags().String("manifest", "-", "Manifest output path ('-' for stdout)")
	cmd.Flags().Int("workers", 0, "Scan worker pool size")
}

// runPipeline loads configuration, executes the orchestrator and reports
// the manifest. Shared by install and plan.
func runPipeline(cmd *cobra.Command, dryRun bool) error {
	cfg, err := resolveRunConfig(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	orch := core.NewOrchestrator(cfg, dryRun)
	manifest := orch.Run(ctx)

	if err := writeManifest(cmd, manifest); err != nil {
		return err
	}
	manifest.Summary(os.Stderr)

	if code := manifest.ExitCode(); code != 0 {
		return &runError{code: code, status: string(manifest.ExitStatus)}
	}
	return nil
}

// resolveRunConfig loads the config file (if any) and applies flag
// overrides. Flags win over the file; the file wins over defaults.
func resolveRunConfig(cmd *cobra.Command) (*core.RunConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	optional := path == ""
	if optional {
		path = core.DefaultConfigFile
	}

	cfg, err := core.LoadConfig(path, optional)
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("source") {
		cfg.Sources, _ = cmd.Flags().GetStringArray("source")
	}
	if cmd.Flags().Changed("dest") {
		cfg.Dest, _ = cmd.Flags().GetString("dest")
	}
	if cmd.Flags().Changed("prune-stale") {
		cfg.PruneStale, _ = cmd.Flags().GetBool("prune-stale")
	}
	if cmd.Flags().Changed("on-collision") {
		cfg.OnCollision, _ = cmd.Flags().GetString("on-collision")
	}
	if cmd.Flags().Changed("workers") {
		cfg.Workers, _ = cmd.Flags().GetInt("workers")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// writeManifest serializes the manifest to the configured sink.
func writeManifest(cmd *cobra.Command, manifest *core.Manifest) error {
	sink, _ := cmd.Flags().GetString("manifest")
	if sink == "" || sink == "-" {
		return manifest.WriteJSON(os.Stdout)
	}

	f, err := os.Create(sink)
	if err != nil {
		return fmt.Errorf("creating manifest file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return manifest.WriteJSON(f)
}
