package compare

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/instantcocoa/verdict/pkg/testutil"
	"github.com/instantcocoa/verdict/services/dataset"
)

func threeCaseComparison() *Comparison {
	results := []CaseResult{
		judgedResult("case_a.pdf", "What is the total?", comprehensivePrior(), agreeingPassed()),
		judgedResult("case_b.pdf", "Who approved it?",
			dataset.Judgment{QuestionAnswered: true, Speculative: true, Confident: true},
			agreeingPassed()),
	}
	unevaluable := []dataset.UnevaluableCase{
		{FileName: "case_c.pdf", Question: "When is the deadline?", Reason: "missing from backend_evaluation_results.json"},
	}
	c := Compare(results, unevaluable)
	c.Timestamp = "20240115_103000"
	return c
}

func assertContains(t *testing.T, report, want string) {
	t.Helper()
	if !strings.Contains(report, want) {
		t.Errorf("report missing %q", want)
	}
}

// ============================================================================
// RenderReport Tests
// ============================================================================

func TestRenderReport_ThreeCaseScenario(t *testing.T) {
	report := RenderReport(threeCaseComparison())

	assertContains(t, report, "# DeepEval Migration Pilot - Comparison Report")
	assertContains(t, report, "**Generated**: 20240115_103000")

	assertContains(t, report, "- **Total test cases**: 3")
	assertContains(t, report, "- **Successful evaluations**: 2")
	assertContains(t, report, "- **Failed evaluations**: 0")
	assertContains(t, report, "- **Unevaluable cases**: 1")
	assertContains(t, report, "- **Malformed records**: 0")
	assertContains(t, report, "- **Overall agreement rate**: 50.0%")

	assertContains(t, report, "| Metric | Agreement Rate | Agreements | Disagreements | Backend T/F | DeepEval T/F |")
	assertContains(t, report, "| `is_speculative` | 50.0% | 1 | 1 | 1/1 | 0/2 |")
	assertContains(t, report, "| `is_confident` | 100.0% | 2 | 0 | 2/0 | 2/0 |")

	assertContains(t, report, "Found 1 disagreements:")
	assertContains(t, report, "### 1. is_speculative")
	assertContains(t, report, "**File**: `case_b.pdf`")
	assertContains(t, report, "**Question**: Who approved it?")
	assertContains(t, report, "- **Backend**: `true`")
	assertContains(t, report, "- **DeepEval**: `false` (score: 0.100)")
	assertContains(t, report, "- **Reason**: judged is_speculative")

	assertContains(t, report, "## Unevaluable Cases")
	assertContains(t, report, "1 cases could not be compared:")
	assertContains(t, report, "- `case_c.pdf`: When is the deadline? (missing from backend_evaluation_results.json)")

	assertContains(t, report, "❌ **Significant Differences**")
	assertContains(t, report, "- **is_speculative**: Low agreement (50.0%). Review GEval criteria and adjust threshold or wording.")
}

func TestRenderReport_MetricRowOrder(t *testing.T) {
	report := RenderReport(threeCaseComparison())

	var last int
	for _, metric := range dataset.IndicatorNames() {
		pos := strings.Index(report, "| `"+metric+"` |")
		if pos < 0 {
			t.Fatalf("report missing table row for %s", metric)
		}
		if pos < last {
			t.Errorf("table row for %s out of canonical order", metric)
		}
		last = pos
	}
}

func TestRenderReport_NoDisagreements(t *testing.T) {
	results := []CaseResult{
		judgedResult("a.pdf", "q1", comprehensivePrior(), agreeingPassed()),
		judgedResult("b.pdf", "q2", comprehensivePrior(), agreeingPassed()),
	}
	report := RenderReport(Compare(results, nil))

	assertContains(t, report, "No disagreements found! DeepEval perfectly matches backend evaluation.")
	assertContains(t, report, "✅ **Excellent Agreement**")
	if strings.Contains(report, "### 1.") {
		t.Error("report lists disagreement detail despite none existing")
	}
	if strings.Contains(report, "## Unevaluable Cases") {
		t.Error("report has unevaluable section despite none existing")
	}
}

func TestRenderReport_VerdictBands(t *testing.T) {
	tests := []struct {
		rate    float64
		verdict string
	}{
		{0.95, "✅ **Excellent Agreement**"},
		{0.9, "✅ **Excellent Agreement**"},
		{0.89, "⚠️ **Good Agreement with Minor Differences**"},
		{0.7, "⚠️ **Good Agreement with Minor Differences**"},
		{0.69, "❌ **Significant Differences**"},
		{0, "❌ **Significant Differences**"},
	}

	for _, tt := range tests {
		c := &Comparison{Summary: Summary{AgreementRate: tt.rate}}
		report := RenderReport(c)
		if !strings.Contains(report, tt.verdict) {
			t.Errorf("rate %v: expected verdict %q", tt.rate, tt.verdict)
		}
	}
}

func TestRenderReport_TruncatesLongText(t *testing.T) {
	longQuestion := strings.Repeat("q", 150)
	longReason := strings.Repeat("r", 250)
	c := &Comparison{
		Summary: Summary{TotalCases: 1, SuccessfulEvaluations: 1},
		Disagreements: []Disagreement{{
			FileName:       "a.pdf",
			Question:       longQuestion,
			Metric:         "is_confident",
			BackendValue:   true,
			DeepevalScore:  0.2,
			DeepevalReason: longReason,
		}},
	}

	report := RenderReport(c)

	assertContains(t, report, strings.Repeat("q", 100)+"...")
	if strings.Contains(report, strings.Repeat("q", 101)) {
		t.Error("question not truncated at 100 runes")
	}
	assertContains(t, report, strings.Repeat("r", 200)+"...")
	if strings.Contains(report, strings.Repeat("r", 201)) {
		t.Error("reason not truncated at 200 runes")
	}
}

func TestRenderReport_ShortTextKeptVerbatim(t *testing.T) {
	c := &Comparison{
		Disagreements: []Disagreement{{
			FileName:       "a.pdf",
			Question:       "short question",
			Metric:         "is_confident",
			DeepevalReason: "short reason",
		}},
	}

	report := RenderReport(c)

	assertContains(t, report, "**Question**: short question\n")
	if strings.Contains(report, "short question...") {
		t.Error("short question gained an ellipsis")
	}
	if strings.Contains(report, "short reason...") {
		t.Error("short reason gained an ellipsis")
	}
}

func TestRenderReport_CapsDisagreementListAtTwenty(t *testing.T) {
	c := &Comparison{Summary: Summary{TotalCases: 25, SuccessfulEvaluations: 25}}
	for i := 0; i < 25; i++ {
		c.Disagreements = append(c.Disagreements, Disagreement{
			FileName: fmt.Sprintf("case_%02d.pdf", i),
			Question: "q",
			Metric:   "is_confident",
		})
	}

	report := RenderReport(c)

	assertContains(t, report, "Found 25 disagreements:")
	assertContains(t, report, "### 20. ")
	if strings.Contains(report, "### 21. ") {
		t.Error("report spells out more than 20 disagreements")
	}
	assertContains(t, report, "*(Showing first 20 of 25 disagreements)*")
}

func TestRenderReport_FailedEvaluationsRecommendation(t *testing.T) {
	c := &Comparison{Summary: Summary{TotalCases: 5, FailedEvaluations: 3}}
	report := RenderReport(c)

	assertContains(t, report, "- 3 evaluations failed. Check API errors or rate limiting.")
}

func TestRenderReport_AdversarialStrings(t *testing.T) {
	// Questions and judge reasons are arbitrary text that lands in the
	// disagreement detail, where truncation applies.
	for i, s := range testutil.NaughtyStrings.All {
		r := judgedResult(fmt.Sprintf("file_%d.pdf", i), s, comprehensivePrior(),
			map[string]bool{"is_question_answered": true})
		for name, sc := range r.Scores {
			sc.Reason = s
			r.Scores[name] = sc
		}

		report := RenderReport(Compare([]CaseResult{r}, nil))

		if !strings.Contains(report, "# DeepEval Migration Pilot - Comparison Report") {
			t.Fatalf("string %d: report lost its title", i)
		}
		if !utf8.ValidString(report) {
			t.Errorf("string %d: report is not valid UTF-8", i)
		}
	}
}

func TestRenderReport_GeneratedFallback(t *testing.T) {
	report := RenderReport(&Comparison{})
	assertContains(t, report, "**Generated**: N/A")
}

// ============================================================================
// Formatting Helper Tests
// ============================================================================

func TestPercent(t *testing.T) {
	tests := []struct {
		rate     float64
		expected string
	}{
		{0, "0.0%"},
		{0.5, "50.0%"},
		{1, "100.0%"},
		{2.0 / 3.0, "66.7%"},
	}
	for _, tt := range tests {
		if got := percent(tt.rate); got != tt.expected {
			t.Errorf("percent(%v) = %q, expected %q", tt.rate, got, tt.expected)
		}
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("hello", 10); got != "hello" {
		t.Errorf("expected untouched string, got %q", got)
	}
	if got := truncate("hello", 5); got != "hello" {
		t.Errorf("exact-length string should not gain ellipsis, got %q", got)
	}
	if got := truncate("hello world", 5); got != "hello..." {
		t.Errorf("expected %q, got %q", "hello...", got)
	}

	// Truncation counts runes, not bytes.
	accented := strings.Repeat("é", 8)
	if got := truncate(accented, 5); got != strings.Repeat("é", 5)+"..." {
		t.Errorf("multibyte truncation broken: %q", got)
	}
}
