package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/instantcocoa/verdict/cli/internal/output"
	"github.com/instantcocoa/verdict/services/dataset"
	"github.com/instantcocoa/verdict/services/pilot"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export raw results to another format",
	Long: `Flattens a deepeval_results JSON artifact into tabular rows and
writes them as csv, jsonl, json or parquet.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		input, _ := cmd.Flags().GetString("input")
		formatName, _ := cmd.Flags().GetString("format")
		outPath, _ := cmd.Flags().GetString("out")

		results, err := pilot.ReadResults(input)
		if err != nil {
			return err
		}

		dataFormat, err := dataset.ParseDataFormat(formatName)
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if outPath != "" {
			f, err := os.Create(outPath)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer f.Close()
			w = f
		}

		if err := pilot.Export(w, results, dataFormat); err != nil {
			return err
		}

		if outPath != "" {
			output.Success("Exported %d results to %s", len(results), outPath)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().String("input", "", "Path to a deepeval_results JSON artifact (required)")
	exportCmd.Flags().String("format", "csv", "Export format (csv, jsonl, json, parquet)")
	exportCmd.Flags().String("out", "", "Output file (default stdout)")
	_ = exportCmd.MarkFlagRequired("input")
}
