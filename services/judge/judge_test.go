package judge

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
)

// =============================================================================
// APIError Tests
// =============================================================================

func TestAPIError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *APIError
		want string
	}{
		{
			name: "with message",
			err:  &APIError{Provider: "openai", StatusCode: 429, Message: "rate limit exceeded"},
			want: "openai API error (status 429): rate limit exceeded",
		},
		{
			name: "without message",
			err:  &APIError{Provider: "anthropic", StatusCode: 503},
			want: "anthropic API error: status 503",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

// =============================================================================
// Retry Classification Tests
// =============================================================================

// fakeNetError implements net.Error.
type fakeNetError struct{}

func (*fakeNetError) Error() string   { return "dial tcp 127.0.0.1:443: i/o timeout" }
func (*fakeNetError) Timeout() bool   { return true }
func (*fakeNetError) Temporary() bool { return true }

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &APIError{Provider: "openai", StatusCode: 429}, true},
		{"request timeout", &APIError{Provider: "openai", StatusCode: 408}, true},
		{"server error", &APIError{Provider: "openai", StatusCode: 500}, true},
		{"bad gateway", &APIError{Provider: "openrouter", StatusCode: 502}, true},
		{"overloaded", &APIError{Provider: "anthropic", StatusCode: 529}, true},
		{"bad request", &APIError{Provider: "openai", StatusCode: 400}, false},
		{"unauthorized", &APIError{Provider: "openai", StatusCode: 401}, false},
		{"not found", &APIError{Provider: "ollama", StatusCode: 404}, false},
		{"wrapped api error", fmt.Errorf("request failed: %w", &APIError{StatusCode: 503}), true},
		{"network error", &fakeNetError{}, true},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"wrapped deadline", fmt.Errorf("request failed: %w", context.DeadlineExceeded), true},
		{"cancellation", context.Canceled, false},
		{"plain error", errors.New("no choices in response"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Errorf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

// =============================================================================
// Usage Tests
// =============================================================================

func TestUsage_Add(t *testing.T) {
	total := Usage{}

	total.Add(Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120, CostUSD: 0.001})
	total.Add(Usage{PromptTokens: 200, CompletionTokens: 30, TotalTokens: 230, CostUSD: 0.002})

	if total.PromptTokens != 300 {
		t.Errorf("PromptTokens = %d, want 300", total.PromptTokens)
	}
	if total.CompletionTokens != 50 {
		t.Errorf("CompletionTokens = %d, want 50", total.CompletionTokens)
	}
	if total.TotalTokens != 350 {
		t.Errorf("TotalTokens = %d, want 350", total.TotalTokens)
	}
	if math.Abs(total.CostUSD-0.003) > 1e-12 {
		t.Errorf("CostUSD = %f, want 0.003", total.CostUSD)
	}
}

func TestUsage_AddZero(t *testing.T) {
	total := Usage{PromptTokens: 10, TotalTokens: 10}
	total.Add(Usage{})

	if total.PromptTokens != 10 || total.TotalTokens != 10 {
		t.Errorf("adding zero usage changed totals: %+v", total)
	}
}
