package pilot

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/instantcocoa/verdict/services/compare"
	"github.com/instantcocoa/verdict/services/dataset"
)

// ReadResults loads a raw results artifact written by a previous run.
func ReadResults(path string) ([]compare.CaseResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read results file: %w", err)
	}
	var results []compare.CaseResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, fmt.Errorf("failed to parse results file %s: %w", path, err)
	}
	return results, nil
}

// ExportRows flattens per-case results into tabular rows: one row per
// case with a score/passed column pair per indicator. Failed cases keep
// their identity and error but no score columns.
func ExportRows(results []compare.CaseResult) []dataset.Row {
	rows := make([]dataset.Row, 0, len(results))
	for _, r := range results {
		row := dataset.Row{
			"file_name": r.FileName,
			"question":  r.Question,
			"error":     r.Error,
		}
		for _, name := range dataset.IndicatorNames() {
			if s, ok := r.Scores[name]; ok {
				row[name+"_score"] = s.Score
				row[name+"_passed"] = s.Passed
			}
		}
		if r.ComprehensiveAnswer != nil {
			row["comprehensive_answer"] = *r.ComprehensiveAnswer
		}
		rows = append(rows, row)
	}
	return rows
}

// Export writes flattened results to w in the requested format.
func Export(w io.Writer, results []compare.CaseResult, format dataset.DataFormat) error {
	writer, err := dataset.NewWriter(format)
	if err != nil {
		return err
	}
	if err := writer.Write(w, ExportRows(results), dataset.DefaultCSVOptions()); err != nil {
		return fmt.Errorf("failed to export results: %w", err)
	}
	return nil
}
