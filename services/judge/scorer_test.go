package judge

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/instantcocoa/verdict/pkg/retry"
	"github.com/instantcocoa/verdict/pkg/testutil"
)

// =============================================================================
// Test Helpers
// =============================================================================

func testScorerConfig() Config {
	cfg := DefaultConfig()
	cfg.RequestTimeout = 5 * time.Second
	cfg.Retry = retry.Config{
		MaxRetries:  2,
		BaseBackoff: time.Millisecond,
		MaxBackoff:  5 * time.Millisecond,
		MaxJitter:   time.Millisecond,
	}
	return cfg
}

func newTestScorer(mock *testutil.MockHTTPClient, cfg Config) *CriteriaScorer {
	provider := NewOpenAIProvider("test-key").WithHTTPClient(mock)
	return NewCriteriaScorer(provider, cfg, testutil.DiscardLogger())
}

func answeredCriterion(t *testing.T) Criterion {
	t.Helper()
	c, ok := CriterionByName(CriterionQuestionAnswered)
	if !ok {
		t.Fatal("default criteria missing is_question_answered")
	}
	return c
}

func speculativeCriterion(t *testing.T) Criterion {
	t.Helper()
	c, ok := CriterionByName(CriterionSpeculative)
	if !ok {
		t.Fatal("default criteria missing is_speculative")
	}
	return c
}

// openAIWireRequest mirrors the request body shape for assertions.
type openAIWireRequest struct {
	Model    string `json:"model"`
	Messages []struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	} `json:"messages"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

func decodeLastRequest(t *testing.T, mock *testutil.MockHTTPClient) openAIWireRequest {
	t.Helper()
	var req openAIWireRequest
	if err := json.Unmarshal(mock.LastRequestBody(), &req); err != nil {
		t.Fatalf("failed to decode request body: %v", err)
	}
	return req
}

// =============================================================================
// Score Tests
// =============================================================================

func TestScore_Success(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockScoreResponse(1.0, "answers all parts directly"))

	scorer := newTestScorer(mock, testScorerConfig())

	input := CaseInput{Question: "What is the notice period?", Answer: "The notice period is 30 days."}
	result, err := scorer.Score(context.Background(), answeredCriterion(t), input)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Criterion != CriterionQuestionAnswered {
		t.Errorf("Criterion = %q, want %q", result.Criterion, CriterionQuestionAnswered)
	}
	if result.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", result.Score)
	}
	if result.Threshold != 0.5 {
		t.Errorf("Threshold = %v, want 0.5", result.Threshold)
	}
	if !result.Passed {
		t.Error("expected Passed = true")
	}
	if result.Reason != "answers all parts directly" {
		t.Errorf("Reason = %q", result.Reason)
	}
	if result.Usage.TotalTokens != 30 {
		t.Errorf("Usage.TotalTokens = %d, want 30", result.Usage.TotalTokens)
	}
}

func TestScore_ThresholdBoundary(t *testing.T) {
	justBelow := math.Nextafter(0.5, 0)

	tests := []struct {
		name       string
		score      float64
		wantPassed bool
	}{
		{"exactly at threshold", 0.5, true},
		{"one step below threshold", justBelow, false},
		{"zero", 0.0, false},
		{"one", 1.0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := testutil.NewMockHTTPClient()
			mock.AddResponse(testutil.MockScoreResponse(tt.score, "boundary check"))

			scorer := newTestScorer(mock, testScorerConfig())

			result, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "It might be 30 days."})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.Passed != tt.wantPassed {
				t.Errorf("score %v: Passed = %v, want %v", tt.score, result.Passed, tt.wantPassed)
			}
		})
	}
}

func TestScore_PerCriterionThreshold(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockScoreResponse(0.6, "some hedging"))

	cfg := testScorerConfig()
	cfg.Thresholds = map[string]float64{CriterionSpeculative: 0.7}
	scorer := newTestScorer(mock, cfg)

	result, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "Probably 30 days."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Threshold != 0.7 {
		t.Errorf("Threshold = %v, want per-criterion override 0.7", result.Threshold)
	}
	if result.Passed {
		t.Error("0.6 should not pass a 0.7 threshold")
	}
}

func TestScore_RetriesOnRateLimit(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockErrorResponse(429, "rate limit exceeded"))
	mock.AddResponse(testutil.MockScoreResponse(1.0, "recovered"))

	scorer := newTestScorer(mock, testScorerConfig())

	result, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "The document states 30 days."})
	if err != nil {
		t.Fatalf("expected success after retry, got: %v", err)
	}
	if result.Score != 1.0 {
		t.Errorf("Score = %v, want 1.0", result.Score)
	}
	if got := len(mock.Requests()); got != 2 {
		t.Errorf("expected 2 attempts, got %d", got)
	}
}

func TestScore_DoesNotRetryClientError(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.SetDefaultResponse(testutil.MockErrorResponse(401, "invalid api key"))

	scorer := newTestScorer(mock, testScorerConfig())

	_, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "30 days."})
	if err == nil {
		t.Fatal("expected error, got nil")
	}

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %T: %v", err, err)
	}
	if apiErr.StatusCode != 401 {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("expected 1 attempt for non-retryable error, got %d", got)
	}
}

func TestScore_ExhaustsRetries(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.SetDefaultResponse(testutil.MockErrorResponse(503, "overloaded"))

	cfg := testScorerConfig()
	scorer := newTestScorer(mock, cfg)

	_, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "30 days."})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed after 2 retries") {
		t.Errorf("expected retry exhaustion error, got: %v", err)
	}
	if got := len(mock.Requests()); got != cfg.Retry.MaxRetries+1 {
		t.Errorf("expected %d attempts, got %d", cfg.Retry.MaxRetries+1, got)
	}
}

func TestScore_UnparseableReply(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockOpenAIResponse("I am unable to evaluate this answer."))

	scorer := newTestScorer(mock, testScorerConfig())

	_, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "30 days."})
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "failed to parse is_speculative reply") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestScore_FencedReply(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockOpenAIResponse("```json\n{\"score\": 0.0, \"reason\": \"no hedging language\"}\n```"))

	scorer := newTestScorer(mock, testScorerConfig())

	result, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "The document states 30 days."})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Score != 0.0 {
		t.Errorf("Score = %v, want 0.0", result.Score)
	}
	if result.Passed {
		t.Error("0.0 should not pass")
	}
}

// =============================================================================
// Prompt Construction Tests
// =============================================================================

func TestScore_PromptIncludesQuestion(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockScoreResponse(1.0, "ok"))

	scorer := newTestScorer(mock, testScorerConfig())

	input := CaseInput{Question: "What is the governing law?", Answer: "The governing law is Delaware."}
	if _, err := scorer.Score(context.Background(), answeredCriterion(t), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := decodeLastRequest(t, mock)
	if len(req.Messages) != 2 {
		t.Fatalf("expected system + user messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != "system" {
		t.Errorf("first message role = %q, want system", req.Messages[0].Role)
	}

	user := req.Messages[1].Content
	if !strings.Contains(user, "QUESTION:\nWhat is the governing law?") {
		t.Error("user prompt missing question")
	}
	if !strings.Contains(user, "ANSWER:\nThe governing law is Delaware.") {
		t.Error("user prompt missing answer")
	}
	if !strings.Contains(user, "Evaluation steps:\n1. ") {
		t.Error("user prompt missing numbered evaluation steps")
	}
}

func TestScore_PromptOmitsQuestionForAnswerOnlyCriteria(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockScoreResponse(0.0, "ok"))

	scorer := newTestScorer(mock, testScorerConfig())

	input := CaseInput{Question: "What is the governing law?", Answer: "The governing law is Delaware."}
	if _, err := scorer.Score(context.Background(), speculativeCriterion(t), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := decodeLastRequest(t, mock)
	user := req.Messages[1].Content
	if strings.Contains(user, "QUESTION:") {
		t.Error("answer-only criterion should not see the question")
	}
	if !strings.Contains(user, "ANSWER:") {
		t.Error("user prompt missing answer")
	}
}

func TestScore_SendsZeroTemperature(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.AddResponse(testutil.MockScoreResponse(1.0, "ok"))

	scorer := newTestScorer(mock, testScorerConfig())

	if _, err := scorer.Score(context.Background(), speculativeCriterion(t), CaseInput{Answer: "30 days."}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	body := string(mock.LastRequestBody())
	if !strings.Contains(body, `"temperature":0`) {
		t.Errorf("request body should carry explicit temperature, got: %s", body)
	}

	req := decodeLastRequest(t, mock)
	if req.Model != "gpt-4o-mini" {
		t.Errorf("Model = %q, want default gpt-4o-mini", req.Model)
	}
}

// =============================================================================
// Context Tests
// =============================================================================

func TestScore_CancelledContextStopsRetrying(t *testing.T) {
	mock := testutil.NewMockHTTPClient()
	mock.SetDefaultResponse(testutil.MockErrorResponse(503, "overloaded"))

	scorer := newTestScorer(mock, testScorerConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := scorer.Score(ctx, speculativeCriterion(t), CaseInput{Answer: "30 days."})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got: %v", err)
	}
	if got := len(mock.Requests()); got != 1 {
		t.Errorf("expected retries to stop after cancellation, got %d attempts", got)
	}
}
