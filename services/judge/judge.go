// Package judge provides the criteria-based LLM scoring metric piloted
// against the backend's boolean answer evaluation.
package judge

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Message represents a chat message.
type Message struct {
	Role    string // system, user, assistant
	Content string
}

// CompletionParams contains parameters for a completion request.
type CompletionParams struct {
	Model       string
	Messages    []Message
	Temperature float64
	MaxTokens   int
}

// CompletionResult contains the result of a completion request.
type CompletionResult struct {
	ID       string
	Content  string
	Provider string
	Model    string
	Usage    Usage
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CostUSD          float64
}

// Add accumulates usage from another call.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CostUSD += other.CostUSD
}

// CaseInput is the material the judge scores: a question from the
// golden dataset and the answer the backend generated for it.
type CaseInput struct {
	Question string
	Answer   string
}

// ScoreResult is one criterion's judgment of a case. Usage is excluded
// from JSON so cached results replay with zero token spend.
type ScoreResult struct {
	Criterion string  `json:"criterion"`
	Score     float64 `json:"score"`
	Threshold float64 `json:"threshold"`
	Passed    bool    `json:"passed"`
	Reason    string  `json:"reason"`
	Usage     Usage   `json:"-"`
}

// Scorer judges a single case against a single criterion.
type Scorer interface {
	Score(ctx context.Context, criterion Criterion, input CaseInput) (*ScoreResult, error)
}

// HTTPClient is the interface providers use for outbound calls.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// APIError is a provider HTTP failure. It carries the status code so
// callers can decide whether the call is worth retrying.
type APIError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s API error (status %d): %s", e.Provider, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s API error: status %d", e.Provider, e.StatusCode)
}

// IsRetryable reports whether err is a transient provider failure:
// timeouts, rate limits, server-side errors, or network problems.
func IsRetryable(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusRequestTimeout ||
			apiErr.StatusCode == http.StatusTooManyRequests ||
			apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	return errors.Is(err, context.DeadlineExceeded)
}
