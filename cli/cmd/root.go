// Package cmd contains CLI commands.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/verdict/cli/internal/config"
)

var (
	cfg     *config.Config
	format  string
	verbose bool
)

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "verdict",
	Short: "Verdict CLI - DeepEval migration pilot",
	Long: `Verdict re-scores backend answers with DeepEval-style GEval criteria
and compares the outcomes against the backend's own boolean judgments,
so the team can decide whether the criteria judge is ready to replace
the custom one.

Examples:
  # Run the pilot over a directory of evaluation artifacts
  verdict run --test-dir ./test_data

  # Cap the run at ten cases with a stricter pass threshold
  verdict run --test-dir ./test_data --limit 10 --threshold 0.7

  # List recorded pilot runs
  verdict history list

  # Compare the agreement rates of two runs
  verdict history diff <run-a> <run-b>

  # Export raw results as CSV
  verdict export --input output/deepeval_results_20240115_103000.json --format csv
`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg = config.DefaultConfig()
		if format != "" {
			cfg.Format = format
		}
		if verbose {
			cfg.Verbose = true
		}
	},
}

// Execute runs the CLI. An interrupt cancels the command context so a
// long evaluation loop stops between cases instead of mid-flight.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&format, "output", "o", "", "Output format (table, json, yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	// Add subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(criteriaCmd)
	rootCmd.AddCommand(versionCmd)
}

// versionCmd prints version info.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("verdict version 0.1.0")
	},
}
