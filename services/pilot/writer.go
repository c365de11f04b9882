package pilot

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/instantcocoa/verdict/services/compare"
)

// ErrReportWrite matches any artifact write failure via errors.Is. A
// run that cannot persist its artifacts is aborted.
var ErrReportWrite = errors.New("report write failed")

// WriteError is a failed artifact write. It matches both ErrReportWrite
// and its cause through errors.Is.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error { return []error{ErrReportWrite, e.Err} }

// ArtifactWriter persists the three run artifacts into one directory,
// creating it on first write.
type ArtifactWriter struct {
	dir string
}

// NewArtifactWriter creates a writer rooted at dir.
func NewArtifactWriter(dir string) *ArtifactWriter {
	return &ArtifactWriter{dir: dir}
}

// WriteResults writes the raw per-case results array.
func (w *ArtifactWriter) WriteResults(results []compare.CaseResult, stamp string) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("deepeval_results_%s.json", stamp))
	return path, w.writeJSON(path, results)
}

// WriteComparison writes the comparison statistics artifact.
func (w *ArtifactWriter) WriteComparison(c *compare.Comparison, stamp string) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("comparison_%s.json", stamp))
	return path, w.writeJSON(path, c)
}

// WriteReport writes the rendered markdown report.
func (w *ArtifactWriter) WriteReport(report, stamp string) (string, error) {
	path := filepath.Join(w.dir, fmt.Sprintf("comparison_report_%s.md", stamp))
	if err := w.ensureDir(); err != nil {
		return path, err
	}
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return path, &WriteError{Path: path, Err: err}
	}
	return path, nil
}

func (w *ArtifactWriter) writeJSON(path string, v any) error {
	if err := w.ensureDir(); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

func (w *ArtifactWriter) ensureDir() error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return &WriteError{Path: w.dir, Err: err}
	}
	return nil
}
