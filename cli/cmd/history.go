package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/verdict/cli/internal/output"
	"github.com/instantcocoa/verdict/pkg/config"
	"github.com/instantcocoa/verdict/pkg/telemetry"
	"github.com/instantcocoa/verdict/services/pilot"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Pilot run history",
	Long:  "Commands for listing and comparing recorded pilot runs.",
}

// historyStore opens the configured run history store. With the
// in-memory backend there is nothing to read across processes, so the
// commands warn instead of silently showing nothing.
func historyStore(ctx context.Context) (pilot.Store, func(), *slog.Logger, error) {
	base, err := config.Load("verdict")
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	logLevel := base.LogLevel
	if cfg.Verbose {
		logLevel = "debug"
	}
	tel, err := telemetry.Setup(ctx, telemetry.Config{
		ServiceName:    "verdict",
		ServiceVersion: base.Version,
		Environment:    base.Environment,
		LogLevel:       logLevel,
		LogFormat:      base.LogFormat,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to setup telemetry: %w", err)
	}
	logger := tel.Logger()

	if base.UseMemoryStorage() {
		output.Info("Using in-memory storage; run history does not persist across processes. Set VERDICT_STORAGE_BACKEND=postgres to keep it.")
	}

	store, cleanup, err := buildStore(ctx, base, logger)
	if err != nil {
		return nil, nil, nil, err
	}
	return store, cleanup, logger, nil
}

var historyListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recorded pilot runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, _, err := historyStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		providerName, _ := cmd.Flags().GetString("provider")
		model, _ := cmd.Flags().GetString("model")
		limit, _ := cmd.Flags().GetInt("limit")
		offset, _ := cmd.Flags().GetInt("offset")

		runs, total, err := store.ListRuns(ctx, pilot.ListRunsQuery{
			Provider: providerName,
			Model:    model,
			Limit:    limit,
			Offset:   offset,
		})
		if err != nil {
			return fmt.Errorf("failed to list runs: %w", err)
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format).WithOutput(cmd.OutOrStdout())
			return w.Print(runs)
		}

		output.Info("Found %d runs (showing %d)", total, len(runs))

		table := output.Table{
			Headers: []string{"ID", "CREATED", "PROVIDER", "MODEL", "CASES", "AGREEMENT", "COST"},
			Rows:    make([][]string, len(runs)),
		}
		for i, r := range runs {
			id := r.ID
			if len(id) > 8 {
				id = id[:8]
			}
			table.Rows[i] = []string{
				id,
				r.CreatedAt.Format("2006-01-02 15:04"),
				r.Provider,
				r.Model,
				fmt.Sprintf("%d/%d", r.Evaluated, r.TotalCases),
				fmt.Sprintf("%.1f%%", r.AgreementRate*100),
				fmt.Sprintf("$%.4f", r.CostUSD),
			}
		}

		w := output.NewWriter("table").WithOutput(cmd.OutOrStdout())
		return w.Print(table)
	},
}

var historyShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one recorded run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, _, err := historyStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		run, err := store.GetRun(ctx, args[0])
		if err != nil {
			return fmt.Errorf("failed to get run: %w", err)
		}
		if run == nil {
			return fmt.Errorf("run not found: %s", args[0])
		}

		w := output.NewWriter(cfg.Format).WithOutput(cmd.OutOrStdout())
		return w.Print(run)
	},
}

var historyDiffCmd = &cobra.Command{
	Use:   "diff <run-a> <run-b>",
	Short: "Compare the agreement rates of two runs",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		store, cleanup, logger, err := historyStore(ctx)
		if err != nil {
			return err
		}
		defer cleanup()

		svc := pilot.NewService(nil, nil, store, logger)
		diff, err := svc.DiffRuns(ctx, args[0], args[1])
		if err != nil {
			return err
		}

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format).WithOutput(cmd.OutOrStdout())
			return w.Print(diff)
		}

		table := output.Table{
			Headers: []string{"METRIC", "RUN A", "RUN B", "DELTA", ""},
			Rows:    [][]string{diffRow(diff.Composite)},
		}
		for _, d := range diff.Metrics {
			table.Rows = append(table.Rows, diffRow(d))
		}

		w := output.NewWriter("table").WithOutput(cmd.OutOrStdout())
		if err := w.Print(table); err != nil {
			return err
		}

		if diff.Regressions > 0 {
			output.Error("%d regressions, %d improvements", diff.Regressions, diff.Improvements)
		} else {
			output.Success("%d regressions, %d improvements", diff.Regressions, diff.Improvements)
		}
		return nil
	},
}

func diffRow(d pilot.RateDelta) []string {
	marker := ""
	switch {
	case d.Regression:
		marker = "regression"
	case d.Improvement:
		marker = "improvement"
	}
	return []string{
		d.Metric,
		fmt.Sprintf("%.1f%%", d.RateA*100),
		fmt.Sprintf("%.1f%%", d.RateB*100),
		fmt.Sprintf("%+.1f%%", d.Delta*100),
		marker,
	}
}

func init() {
	historyListCmd.Flags().String("provider", "", "Filter by provider")
	historyListCmd.Flags().String("model", "", "Filter by model")
	historyListCmd.Flags().Int("limit", 20, "Max runs to show")
	historyListCmd.Flags().Int("offset", 0, "Runs to skip")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyShowCmd)
	historyCmd.AddCommand(historyDiffCmd)
}
