package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/verdict/cli/internal/output"
	"github.com/instantcocoa/verdict/services/judge"
)

var criteriaCmd = &cobra.Command{
	Use:   "criteria",
	Short: "List the judge criteria",
	Long:  "Shows the GEval criteria the pilot scores every answer against.",
	RunE: func(cmd *cobra.Command, args []string) error {
		criteria := judge.DefaultCriteria()

		if cfg.Format == "json" || cfg.Format == "yaml" {
			w := output.NewWriter(cfg.Format).WithOutput(cmd.OutOrStdout())
			return w.Print(criteria)
		}

		table := output.Table{
			Headers: []string{"NAME", "USES QUESTION", "STEPS", "DESCRIPTION"},
			Rows:    make([][]string, len(criteria)),
		}
		for i, c := range criteria {
			usesQuestion := "no"
			if c.UsesQuestion {
				usesQuestion = "yes"
			}
			table.Rows[i] = []string{
				c.Name,
				usesQuestion,
				fmt.Sprintf("%d", len(c.Steps)),
				output.Truncate(c.Description, 60),
			}
		}

		w := output.NewWriter("table").WithOutput(cmd.OutOrStdout())
		return w.Print(table)
	},
}
