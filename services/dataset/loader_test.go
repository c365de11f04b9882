package dataset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/instantcocoa/verdict/pkg/testutil"
)

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	return data
}

func judgmentFixture(answered, needsMore, speculative, confident bool) map[string]any {
	return map[string]any{
		"is_question_answered":            answered,
		"requires_additional_information": needsMore,
		"is_speculative":                  speculative,
		"is_confident":                    confident,
	}
}

// testArtifacts returns a complete artifact set: two files, three
// questions, every case present in all three artifacts.
func testArtifacts(t *testing.T) map[string][]byte {
	t.Helper()
	return map[string][]byte{
		GoldenAnswersFile: mustJSON(t, map[string]map[string]string{
			"report_a.pdf": {
				"What is the revenue?": "Revenue was $10M.",
				"Who signed it?":       "The CFO signed it.",
			},
			"report_b.pdf": {
				"When was it filed?": "Filed on 2024-01-15.",
			},
		}),
		BackendAnswersFile: mustJSON(t, map[string]map[string]string{
			"report_a.pdf": {
				"What is the revenue?": "The revenue was $10M in 2023.",
				"Who signed it?":       "It was signed by the CFO.",
			},
			"report_b.pdf": {
				"When was it filed?": "It was filed on January 15, 2024.",
			},
		}),
		BackendEvaluationFile: mustJSON(t, map[string]map[string]any{
			"report_a.pdf": {
				"What is the revenue?": judgmentFixture(true, false, false, true),
				"Who signed it?":       judgmentFixture(true, false, true, true),
			},
			"report_b.pdf": {
				"When was it filed?": judgmentFixture(false, true, false, false),
			},
		}),
	}
}

func newTestLoader(files map[string][]byte) *Loader {
	return NewLoader(NewInlineSource(files), testutil.DiscardLogger())
}

// ============================================================================
// Join Tests
// ============================================================================

func TestLoader_Load_JoinsArtifacts(t *testing.T) {
	result, err := newTestLoader(testArtifacts(t)).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Cases) != 3 {
		t.Fatalf("expected 3 cases, got %d", len(result.Cases))
	}
	if result.Discovered != 3 {
		t.Errorf("expected 3 discovered, got %d", result.Discovered)
	}
	if len(result.Unevaluable) != 0 {
		t.Errorf("expected no unevaluable cases, got %d", len(result.Unevaluable))
	}
	if result.Malformed != 0 {
		t.Errorf("expected no malformed records, got %d", result.Malformed)
	}

	c := result.Cases[0]
	if c.FileName != "report_a.pdf" || c.Question != "What is the revenue?" {
		t.Fatalf("unexpected first case: %s / %s", c.FileName, c.Question)
	}
	if c.GoldenAnswer != "Revenue was $10M." {
		t.Errorf("unexpected golden answer: %q", c.GoldenAnswer)
	}
	if c.BackendAnswer != "The revenue was $10M in 2023." {
		t.Errorf("unexpected backend answer: %q", c.BackendAnswer)
	}
	if !c.Prior.QuestionAnswered || c.Prior.NeedsMoreInfo || c.Prior.Speculative || !c.Prior.Confident {
		t.Errorf("unexpected prior judgment: %+v", c.Prior)
	}
}

func TestLoader_Load_CanonicalOrder(t *testing.T) {
	result, err := newTestLoader(testArtifacts(t)).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	expected := []struct {
		file     string
		question string
	}{
		{"report_a.pdf", "What is the revenue?"},
		{"report_a.pdf", "Who signed it?"},
		{"report_b.pdf", "When was it filed?"},
	}

	if len(result.Cases) != len(expected) {
		t.Fatalf("expected %d cases, got %d", len(expected), len(result.Cases))
	}
	for i, exp := range expected {
		if result.Cases[i].FileName != exp.file || result.Cases[i].Question != exp.question {
			t.Errorf("case %d = %s / %s, expected %s / %s",
				i, result.Cases[i].FileName, result.Cases[i].Question, exp.file, exp.question)
		}
	}
}

func TestLoader_Load_MissingArtifactFatal(t *testing.T) {
	files := testArtifacts(t)
	delete(files, BackendEvaluationFile)

	_, err := newTestLoader(files).Load(context.Background(), 0)
	if err == nil {
		t.Fatal("expected error for missing artifact")
	}

	var missing *MissingArtifactError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingArtifactError, got %T: %v", err, err)
	}
	if missing.Name != BackendEvaluationFile {
		t.Errorf("expected missing %s, got %s", BackendEvaluationFile, missing.Name)
	}
}

// ============================================================================
// Gap Tests
// ============================================================================

func TestLoader_Load_GapsAreUnevaluable(t *testing.T) {
	files := testArtifacts(t)
	// Drop report_b.pdf from the prior judgments only.
	files[BackendEvaluationFile] = mustJSON(t, map[string]map[string]any{
		"report_a.pdf": {
			"What is the revenue?": judgmentFixture(true, false, false, true),
			"Who signed it?":       judgmentFixture(true, false, true, true),
		},
	})

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Cases) != 2 {
		t.Errorf("expected 2 cases, got %d", len(result.Cases))
	}
	if result.Discovered != 3 {
		t.Errorf("expected 3 discovered, got %d", result.Discovered)
	}
	if len(result.Unevaluable) != 1 {
		t.Fatalf("expected 1 unevaluable case, got %d", len(result.Unevaluable))
	}

	u := result.Unevaluable[0]
	if u.FileName != "report_b.pdf" || u.Question != "When was it filed?" {
		t.Errorf("unexpected unevaluable case: %s / %s", u.FileName, u.Question)
	}
	if u.Reason != "missing from backend_evaluation_results.json" {
		t.Errorf("unexpected reason: %q", u.Reason)
	}
}

func TestLoader_Load_GapInMultipleArtifacts(t *testing.T) {
	files := testArtifacts(t)
	// report_b.pdf exists only in the prior judgments.
	files[GoldenAnswersFile] = mustJSON(t, map[string]map[string]string{
		"report_a.pdf": {
			"What is the revenue?": "Revenue was $10M.",
			"Who signed it?":       "The CFO signed it.",
		},
	})
	files[BackendAnswersFile] = mustJSON(t, map[string]map[string]string{
		"report_a.pdf": {
			"What is the revenue?": "The revenue was $10M in 2023.",
			"Who signed it?":       "It was signed by the CFO.",
		},
	})

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Unevaluable) != 1 {
		t.Fatalf("expected 1 unevaluable case, got %d", len(result.Unevaluable))
	}
	if result.Unevaluable[0].Reason != "missing from golden_answers.json, backend_answers.json" {
		t.Errorf("unexpected reason: %q", result.Unevaluable[0].Reason)
	}
}

// ============================================================================
// Malformed Record Tests
// ============================================================================

func TestLoader_Load_MalformedAnswerSkipped(t *testing.T) {
	files := testArtifacts(t)
	files[BackendAnswersFile] = mustJSON(t, map[string]map[string]any{
		"report_a.pdf": {
			"What is the revenue?": 42, // not a string
			"Who signed it?":       "It was signed by the CFO.",
		},
		"report_b.pdf": {
			"When was it filed?": "It was filed on January 15, 2024.",
		},
	})

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Cases) != 2 {
		t.Errorf("expected 2 cases, got %d", len(result.Cases))
	}
	if result.Malformed != 1 {
		t.Errorf("expected 1 malformed record, got %d", result.Malformed)
	}
	if result.Discovered != 3 {
		t.Errorf("expected 3 discovered, got %d", result.Discovered)
	}
	for _, c := range result.Cases {
		if c.Question == "What is the revenue?" {
			t.Error("malformed case should have been skipped")
		}
	}
}

func TestLoader_Load_MalformedJudgmentSkipped(t *testing.T) {
	tests := []struct {
		name     string
		judgment any
	}{
		{"missing indicator", map[string]any{
			"is_question_answered":            true,
			"requires_additional_information": false,
			"is_speculative":                  false,
			// is_confident absent
		}},
		{"indicator not boolean", map[string]any{
			"is_question_answered":            "yes",
			"requires_additional_information": false,
			"is_speculative":                  false,
			"is_confident":                    true,
		}},
		{"judgment not object", "comprehensive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			files := testArtifacts(t)
			files[BackendEvaluationFile] = mustJSON(t, map[string]map[string]any{
				"report_a.pdf": {
					"What is the revenue?": tt.judgment,
					"Who signed it?":       judgmentFixture(true, false, true, true),
				},
				"report_b.pdf": {
					"When was it filed?": judgmentFixture(false, true, false, false),
				},
			})

			result, err := newTestLoader(files).Load(context.Background(), 0)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if result.Malformed != 1 {
				t.Errorf("expected 1 malformed record, got %d", result.Malformed)
			}
			if len(result.Cases) != 2 {
				t.Errorf("expected 2 cases, got %d", len(result.Cases))
			}
		})
	}
}

func TestLoader_Load_ExtraJudgmentFieldsIgnored(t *testing.T) {
	files := testArtifacts(t)
	judgment := judgmentFixture(true, false, false, true)
	judgment["comprehensive_answer"] = true
	judgment["model"] = "backend-v2"
	files[BackendEvaluationFile] = mustJSON(t, map[string]map[string]any{
		"report_a.pdf": {
			"What is the revenue?": judgment,
			"Who signed it?":       judgmentFixture(true, false, true, true),
		},
		"report_b.pdf": {
			"When was it filed?": judgmentFixture(false, true, false, false),
		},
	})

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if result.Malformed != 0 {
		t.Errorf("expected no malformed records, got %d", result.Malformed)
	}
	if len(result.Cases) != 3 {
		t.Errorf("expected 3 cases, got %d", len(result.Cases))
	}
}

func TestLoader_Load_BadFileEntryCounted(t *testing.T) {
	files := testArtifacts(t)
	// The whole report_b.pdf entry in the golden answers is garbage.
	files[GoldenAnswersFile] = mustJSON(t, map[string]any{
		"report_a.pdf": map[string]string{
			"What is the revenue?": "Revenue was $10M.",
			"Who signed it?":       "The CFO signed it.",
		},
		"report_b.pdf": "not an object",
	})

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if result.Malformed != 1 {
		t.Errorf("expected 1 malformed record, got %d", result.Malformed)
	}
	// report_b.pdf still appears in the other artifacts, so its case
	// surfaces as a gap rather than disappearing.
	if len(result.Unevaluable) != 1 {
		t.Fatalf("expected 1 unevaluable case, got %d", len(result.Unevaluable))
	}
	if result.Unevaluable[0].Reason != "missing from golden_answers.json" {
		t.Errorf("unexpected reason: %q", result.Unevaluable[0].Reason)
	}
}

// ============================================================================
// Limit Tests
// ============================================================================

func TestLoader_Load_LimitCapsCases(t *testing.T) {
	result, err := newTestLoader(testArtifacts(t)).Load(context.Background(), 2)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Cases) != 2 {
		t.Fatalf("expected 2 cases, got %d", len(result.Cases))
	}
	// First two in canonical order.
	if result.Cases[0].Question != "What is the revenue?" || result.Cases[1].Question != "Who signed it?" {
		t.Errorf("unexpected cases under limit: %q, %q",
			result.Cases[0].Question, result.Cases[1].Question)
	}
	// Counts still reflect the full scan.
	if result.Discovered != 3 {
		t.Errorf("expected 3 discovered, got %d", result.Discovered)
	}
}

func TestLoader_Load_LimitZeroMeansAll(t *testing.T) {
	result, err := newTestLoader(testArtifacts(t)).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(result.Cases) != 3 {
		t.Errorf("expected all 3 cases, got %d", len(result.Cases))
	}
}

func TestLoader_Load_LimitStillCountsGaps(t *testing.T) {
	files := testArtifacts(t)
	files[BackendEvaluationFile] = mustJSON(t, map[string]map[string]any{
		"report_a.pdf": {
			"What is the revenue?": judgmentFixture(true, false, false, true),
			"Who signed it?":       judgmentFixture(true, false, true, true),
		},
	})

	result, err := newTestLoader(files).Load(context.Background(), 1)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(result.Cases) != 1 {
		t.Errorf("expected 1 case, got %d", len(result.Cases))
	}
	// The gap sorts after the limit cutoff but is still reported.
	if len(result.Unevaluable) != 1 {
		t.Errorf("expected 1 unevaluable case, got %d", len(result.Unevaluable))
	}
	if result.Discovered != 3 {
		t.Errorf("expected 3 discovered, got %d", result.Discovered)
	}
}

// ============================================================================
// Hostile Input Tests
// ============================================================================

func TestLoader_Load_NaughtyStrings(t *testing.T) {
	golden := make(map[string]string)
	backend := make(map[string]string)
	prior := make(map[string]any)
	for i, s := range testutil.NaughtyStrings.All {
		q := fmt.Sprintf("%04d %s", i, s)
		golden[q] = s
		backend[q] = s
		prior[q] = judgmentFixture(true, false, false, true)
	}

	files := map[string][]byte{
		GoldenAnswersFile:     mustJSON(t, map[string]any{"hostile.pdf": golden}),
		BackendAnswersFile:    mustJSON(t, map[string]any{"hostile.pdf": backend}),
		BackendEvaluationFile: mustJSON(t, map[string]any{"hostile.pdf": prior}),
	}

	result, err := newTestLoader(files).Load(context.Background(), 0)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(result.Cases) != len(testutil.NaughtyStrings.All) {
		t.Fatalf("expected %d cases, got %d", len(testutil.NaughtyStrings.All), len(result.Cases))
	}
	if result.Malformed != 0 || len(result.Unevaluable) != 0 {
		t.Errorf("expected clean load, got malformed=%d unevaluable=%d",
			result.Malformed, len(result.Unevaluable))
	}
	for _, c := range result.Cases {
		if c.BackendAnswer != backend[c.Question] {
			t.Errorf("answer corrupted for question %q", c.Question)
		}
	}
}
