// Package pilot orchestrates a comparison run: it loads the evaluation
// artifacts, scores every case with the criteria judge, compares the
// outcomes against the prior backend judgments and persists the three
// run artifacts plus a history record.
package pilot

import (
	"io"
	"time"
)

// RunOptions configures a single pilot run.
type RunOptions struct {
	// TestDir is the artifact location: a directory, an s3:// prefix or
	// an http(s):// base URL.
	TestDir string
	// Limit caps the number of comparable cases evaluated; 0 means all.
	Limit int
	// Threshold converts scores to booleans: passed = score >= threshold.
	Threshold float64
	// Thresholds overrides Threshold per indicator name.
	Thresholds map[string]float64
	// OutputDir receives the three run artifacts. Defaults to "output".
	OutputDir string
	// Provider and Model are recorded on the run for history diffs.
	Provider string
	Model    string
	// Progress receives the console narration; nil discards it.
	Progress io.Writer
}

// PilotRun is one recorded invocation, the unit the history commands
// list and diff.
type PilotRun struct {
	ID         string             `json:"id"`
	CreatedAt  time.Time          `json:"created_at"`
	TestDir    string             `json:"test_dir"`
	Provider   string             `json:"provider"`
	Model      string             `json:"model"`
	Thresholds map[string]float64 `json:"thresholds"`

	TotalCases  int `json:"total_cases"`
	Evaluated   int `json:"evaluated"`
	Failed      int `json:"failed"`
	Unevaluable int `json:"unevaluable"`
	Malformed   int `json:"malformed"`

	AgreementRate float64            `json:"agreement_rate"`
	MetricRates   map[string]float64 `json:"metric_rates"`

	ResultsPath    string `json:"results_path"`
	ComparisonPath string `json:"comparison_path"`
	ReportPath     string `json:"report_path"`

	PromptTokens     int     `json:"prompt_tokens"`
	CompletionTokens int     `json:"completion_tokens"`
	TotalTokens      int     `json:"total_tokens"`
	CostUSD          float64 `json:"cost_usd"`
}

// RateDelta is one metric's agreement-rate movement between two runs.
type RateDelta struct {
	Metric      string  `json:"metric"`
	RateA       float64 `json:"rate_a"`
	RateB       float64 `json:"rate_b"`
	Delta       float64 `json:"delta"`
	Regression  bool    `json:"regression"`
	Improvement bool    `json:"improvement"`
}

// RunDiff compares the agreement rates of two recorded runs.
type RunDiff struct {
	RunA         *PilotRun   `json:"run_a"`
	RunB         *PilotRun   `json:"run_b"`
	Composite    RateDelta   `json:"composite"`
	Metrics      []RateDelta `json:"metrics"`
	Regressions  int         `json:"regressions"`
	Improvements int         `json:"improvements"`
}
