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

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check plugin content without installing",
	Long: `Scan the configured source roots and validate every agent and skill
file's frontmatter. Prints each invalid item with its reason. Exits
non-zero if any item is invalid, so plugin repositories can lint
themselves in CI.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveValidateConfig(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		scanner := core.NewScanner(cfg.Sources)
		plugins, warnings, err := scanner.ListPlugins(ctx)
		if err != nil {
			return err
		}

		total := 0
		invalid := 0
		for _, plugin := range plugins {
			items, itemWarnings, err := scanner.ScanPlugin(ctx, plugin)
			if err != nil {
				return err
			}
			warnings = append(warnings, itemWarnings...)
			for _, item := range items {
				total++
				classified := core.Classify(item)
				if classified.IsValid() {
					continue
				}
				invalid++
				fmt.Fprintf(os.Stdout, "invalid %s %s: %s\n",
					classified.Kind, classified.Path, classified.Invalid)
			}
		}

		for _, w := range warnings {
			fmt.Fprintf(os.Stderr, "warning: %s: %s\n", w.Code, w.Path)
		}
		fmt.Fprintf(os.Stdout, "%d item(s) checked, %d invalid\n", total, invalid)

		if invalid > 0 {
			return &runError{code: 1, status: "invalid items found"}
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringArrayP("source", "s", nil, "Source root to scan (repeatable)")
	rootCmd.AddCommand(validateCmd)
}

// resolveValidateConfig is like resolveRunConfig but only needs sources;
// the destination is not consulted.
func resolveValidateConfig(cmd *cobra.Command) (*core.RunConfig, error) {
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
	if len(cfg.Sources) == 0 {
		return nil, fmt.Errorf("no source roots configured")
	}
	return cfg, nil
}
