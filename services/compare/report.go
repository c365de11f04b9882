package compare

import (
	"fmt"
	"strings"

	"github.com/instantcocoa/verdict/services/dataset"
)

// reportDisagreementLimit caps how many disagreements the markdown
// report spells out in full.
const reportDisagreementLimit = 20

// RenderReport renders the comparison as a markdown document with a
// summary, per-indicator breakdown, disagreement detail and a verdict.
func RenderReport(c *Comparison) string {
	var lines []string
	add := func(s string) {
		lines = append(lines, s)
	}
	addf := func(format string, args ...any) {
		lines = append(lines, fmt.Sprintf(format, args...))
	}

	add("# DeepEval Migration Pilot - Comparison Report\n")
	generated := c.Timestamp
	if generated == "" {
		generated = "N/A"
	}
	addf("**Generated**: %s\n", generated)

	add("## Summary\n")
	addf("- **Total test cases**: %d", c.Summary.TotalCases)
	addf("- **Successful evaluations**: %d", c.Summary.SuccessfulEvaluations)
	addf("- **Failed evaluations**: %d", c.Summary.FailedEvaluations)
	addf("- **Unevaluable cases**: %d", c.Summary.UnevaluableCases)
	addf("- **Malformed records**: %d", c.Summary.MalformedRecords)
	addf("- **Overall agreement rate**: %s\n", percent(c.Summary.AgreementRate))

	add("## Comprehensive Answer Comparison\n")
	addf("- **Agreements**: %d", c.Composite.Agreements)
	addf("- **Disagreements**: %d", c.Composite.Disagreements)
	addf("- **Agreement rate**: %s\n", percent(c.Composite.AgreementRate))

	add("## Individual Metric Comparisons\n")
	add("| Metric | Agreement Rate | Agreements | Disagreements | Backend T/F | DeepEval T/F |")
	add("|--------|----------------|------------|---------------|-------------|--------------|")
	for _, metric := range dataset.IndicatorNames() {
		stats, ok := c.MetricComparisons[metric]
		if !ok {
			continue
		}
		addf("| `%s` | %s | %d | %d | %d/%d | %d/%d |",
			metric, percent(stats.AgreementRate),
			stats.Agreements, stats.Disagreements,
			stats.BackendTrue, stats.BackendFalse,
			stats.DeepevalTrue, stats.DeepevalFalse)
	}
	add("")

	if len(c.Disagreements) > 0 {
		add("## Disagreements Detail\n")
		addf("Found %d disagreements:\n", len(c.Disagreements))

		for idx, d := range c.Disagreements {
			if idx >= reportDisagreementLimit {
				break
			}
			addf("### %d. %s\n", idx+1, d.Metric)
			addf("**File**: `%s`\n", d.FileName)
			addf("**Question**: %s\n", truncate(d.Question, 100))
			addf("- **Backend**: `%v`", d.BackendValue)
			addf("- **DeepEval**: `%v` (score: %.3f)", d.DeepevalValue, d.DeepevalScore)
			addf("- **Reason**: %s\n", truncate(d.DeepevalReason, 200))
		}

		if len(c.Disagreements) > reportDisagreementLimit {
			addf("\n*(Showing first %d of %d disagreements)*\n",
				reportDisagreementLimit, len(c.Disagreements))
		}
	} else {
		add("## Disagreements Detail\n")
		add("No disagreements found! DeepEval perfectly matches backend evaluation.\n")
	}

	if len(c.Unevaluable) > 0 {
		add("## Unevaluable Cases\n")
		addf("%d cases could not be compared:\n", len(c.Unevaluable))
		for _, u := range c.Unevaluable {
			addf("- `%s`: %s (%s)", u.FileName, truncate(u.Question, 100), u.Reason)
		}
		add("")
	}

	add("## Interpretation\n")
	rate := c.Summary.AgreementRate
	switch {
	case rate >= 0.9:
		add("**Verdict**: ✅ **Excellent Agreement**\n")
		add("DeepEval metrics show excellent agreement (>90%) with your custom LLM judge. " +
			"This suggests DeepEval can effectively replicate your evaluation logic. " +
			"Consider proceeding with migration.\n")
	case rate >= 0.7:
		add("**Verdict**: ⚠️ **Good Agreement with Minor Differences**\n")
		add("DeepEval metrics show good agreement (70-90%) with your custom LLM judge. " +
			"Review the disagreements to understand where the evaluation logic differs. " +
			"You may need to fine-tune GEval criteria or thresholds.\n")
	default:
		add("**Verdict**: ❌ **Significant Differences**\n")
		add("DeepEval metrics show significant disagreement (<70%) with your custom LLM judge. " +
			"Carefully review the disagreements to understand the gaps. " +
			"Consider refining GEval criteria or sticking with your custom judge.\n")
	}

	add("## Recommendations\n")
	for _, metric := range dataset.IndicatorNames() {
		stats, ok := c.MetricComparisons[metric]
		if !ok {
			continue
		}
		if stats.AgreementRate < 0.7 && stats.Total > 0 {
			addf("- **%s**: Low agreement (%s). Review GEval criteria and adjust threshold or wording.\n",
				metric, percent(stats.AgreementRate))
		}
	}
	if c.Summary.FailedEvaluations > 0 {
		addf("- %d evaluations failed. Check API errors or rate limiting.\n",
			c.Summary.FailedEvaluations)
	}

	return strings.Join(lines, "\n")
}

// percent formats a rate in [0,1] as a percentage with one decimal.
func percent(rate float64) string {
	return fmt.Sprintf("%.1f%%", rate*100)
}

// truncate caps s at max runes, appending an ellipsis only when text
// was actually dropped.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
