// Package compare aligns criteria-judge results against prior backend
// judgments and tallies agreement statistics.
package compare

import (
	"github.com/instantcocoa/verdict/services/dataset"
)

// Score is one criterion's outcome for a case as serialized in the raw
// results artifact.
type Score struct {
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Reason    string  `json:"reason"`
}

// CaseResult is one judged case in the raw results artifact. Failed
// evaluations carry a nil score map and an error message; the prior
// judgment is kept either way.
type CaseResult struct {
	FileName            string           `json:"file_name"`
	Question            string           `json:"question"`
	BackendAnswer       string           `json:"backend_answer"`
	Scores              map[string]Score `json:"deepeval_scores"`
	ComprehensiveAnswer *bool            `json:"deepeval_comprehensive_answer"`
	BackendEvaluation   dataset.Judgment `json:"backend_evaluation"`
	Error               string           `json:"error,omitempty"`
}

// Failed reports whether the case carries a complete judgment set. A
// single missing indicator score disqualifies the whole case so partial
// data never enters the comparison.
func (r CaseResult) Failed() bool {
	if r.Error != "" || len(r.Scores) == 0 || r.ComprehensiveAnswer == nil {
		return true
	}
	for _, name := range dataset.IndicatorNames() {
		if _, ok := r.Scores[name]; !ok {
			return true
		}
	}
	return false
}

// Summary aggregates case counts for a run. MalformedRecords comes from
// loader accounting and is filled in by the caller; Compare never sees
// malformed records because the loader already dropped them.
type Summary struct {
	TotalCases            int     `json:"total_cases"`
	SuccessfulEvaluations int     `json:"successful_evaluations"`
	FailedEvaluations     int     `json:"failed_evaluations"`
	UnevaluableCases      int     `json:"unevaluable_cases"`
	MalformedRecords      int     `json:"malformed_records"`
	AgreementRate         float64 `json:"agreement_rate"`
}

// MetricComparison tallies agreement for a single indicator.
type MetricComparison struct {
	Agreements    int     `json:"agreements"`
	Disagreements int     `json:"disagreements"`
	Total         int     `json:"total"`
	AgreementRate float64 `json:"agreement_rate"`
	BackendTrue   int     `json:"backend_true"`
	BackendFalse  int     `json:"backend_false"`
	DeepevalTrue  int     `json:"deepeval_true"`
	DeepevalFalse int     `json:"deepeval_false"`
}

// CompositeComparison tallies agreement on the derived comprehensive
// answer.
type CompositeComparison struct {
	Agreements    int     `json:"agreements"`
	Disagreements int     `json:"disagreements"`
	AgreementRate float64 `json:"agreement_rate"`
}

// Disagreement records one indicator-level split between the judges.
type Disagreement struct {
	FileName       string  `json:"file_name"`
	Question       string  `json:"question"`
	Metric         string  `json:"metric"`
	BackendValue   bool    `json:"backend_value"`
	DeepevalValue  bool    `json:"deepeval_value"`
	DeepevalScore  float64 `json:"deepeval_score"`
	DeepevalReason string  `json:"deepeval_reason"`
}

// Comparison is the full statistics artifact.
type Comparison struct {
	Timestamp         string                       `json:"timestamp"`
	Summary           Summary                      `json:"summary"`
	MetricComparisons map[string]*MetricComparison `json:"metric_comparisons"`
	Composite         CompositeComparison          `json:"comprehensive_answer_comparison"`
	Disagreements     []Disagreement               `json:"disagreements"`
	Unevaluable       []dataset.UnevaluableCase    `json:"unevaluable"`
}

// Compare tallies per-indicator and composite agreement between the
// prior judgments embedded in the results and the criteria judge's
// booleans. Failed evaluations are counted and excluded; unevaluable
// cases enter the totals so nothing disappears silently. The
// disagreement list preserves result order, indicators in canonical
// order within a case.
func Compare(results []CaseResult, unevaluable []dataset.UnevaluableCase) *Comparison {
	c := &Comparison{
		Summary: Summary{
			TotalCases:       len(results) + len(unevaluable),
			UnevaluableCases: len(unevaluable),
		},
		MetricComparisons: make(map[string]*MetricComparison, 4),
		Disagreements:     []Disagreement{},
		Unevaluable:       append([]dataset.UnevaluableCase{}, unevaluable...),
	}
	for _, name := range dataset.IndicatorNames() {
		c.MetricComparisons[name] = &MetricComparison{}
	}

	for _, r := range results {
		if r.Failed() {
			c.Summary.FailedEvaluations++
			continue
		}
		c.Summary.SuccessfulEvaluations++

		for _, metric := range dataset.IndicatorNames() {
			score := r.Scores[metric]
			backendValue, _ := r.BackendEvaluation.Indicator(metric)

			stats := c.MetricComparisons[metric]
			stats.Total++
			if backendValue {
				stats.BackendTrue++
			} else {
				stats.BackendFalse++
			}
			if score.Passed {
				stats.DeepevalTrue++
			} else {
				stats.DeepevalFalse++
			}

			if backendValue == score.Passed {
				stats.Agreements++
			} else {
				stats.Disagreements++
				reason := score.Reason
				if reason == "" {
					reason = "N/A"
				}
				c.Disagreements = append(c.Disagreements, Disagreement{
					FileName:       r.FileName,
					Question:       r.Question,
					Metric:         metric,
					BackendValue:   backendValue,
					DeepevalValue:  score.Passed,
					DeepevalScore:  score.Score,
					DeepevalReason: reason,
				})
			}
		}

		if r.BackendEvaluation.Composite() == *r.ComprehensiveAnswer {
			c.Composite.Agreements++
		} else {
			c.Composite.Disagreements++
		}
	}

	if c.Summary.SuccessfulEvaluations > 0 {
		c.Composite.AgreementRate = float64(c.Composite.Agreements) / float64(c.Summary.SuccessfulEvaluations)
		c.Summary.AgreementRate = c.Composite.AgreementRate
	}
	for _, stats := range c.MetricComparisons {
		if stats.Total > 0 {
			stats.AgreementRate = float64(stats.Agreements) / float64(stats.Total)
		}
	}

	return c
}
