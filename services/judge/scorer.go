package judge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/instantcocoa/verdict/pkg/retry"
)

// systemPrompt pins the judge to the JSON reply contract parseScoreReply
// expects.
const systemPrompt = `You are an evaluation judge. Score the ANSWER against the criteria using only the evaluation steps provided. Respond with JSON only, in the form {"score": <number between 0.0 and 1.0>, "reason": "<one sentence>"}. Do not include any other text.`

// Config holds scorer configuration.
type Config struct {
	Model            string
	Temperature      float64
	MaxTokens        int
	RequestTimeout   time.Duration
	DefaultThreshold float64
	// Thresholds overrides the default threshold per criterion name.
	Thresholds map[string]float64
	Retry      retry.Config
}

// DefaultConfig returns scorer configuration with sensible defaults.
// Temperature stays at zero so repeated runs score the same answers
// the same way.
func DefaultConfig() Config {
	return Config{
		Model:            "gpt-4o-mini",
		Temperature:      0,
		MaxTokens:        512,
		RequestTimeout:   60 * time.Second,
		DefaultThreshold: 0.5,
		Retry:            retry.DefaultConfig(),
	}
}

// CriteriaScorer judges answers against criteria using an LLM provider.
type CriteriaScorer struct {
	provider Provider
	cfg      Config
	logger   *slog.Logger
	tracer   trace.Tracer
}

var _ Scorer = (*CriteriaScorer)(nil)

// NewCriteriaScorer creates a scorer backed by the given provider.
func NewCriteriaScorer(provider Provider, cfg Config, logger *slog.Logger) *CriteriaScorer {
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = logger
	}
	return &CriteriaScorer{
		provider: provider,
		cfg:      cfg,
		logger:   logger.With("component", "scorer"),
		tracer:   otel.Tracer("judge"),
	}
}

// Score judges one criterion for a single answer.
func (s *CriteriaScorer) Score(ctx context.Context, criterion Criterion, input CaseInput) (*ScoreResult, error) {
	ctx, span := s.tracer.Start(ctx, "judge.Score",
		trace.WithAttributes(
			attribute.String("criterion", criterion.Name),
			attribute.String("provider", s.provider.Name()),
			attribute.String("model", s.cfg.Model),
		))
	defer span.End()

	params := CompletionParams{
		Model:       s.cfg.Model,
		Messages:    buildMessages(criterion, input),
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxTokens,
	}

	result, err := retry.Do(ctx, s.cfg.Retry, "score "+criterion.Name, IsRetryable, func() (*CompletionResult, error) {
		// Each attempt gets its own deadline so a stalled call is
		// retried instead of consuming the whole run budget.
		callCtx := ctx
		if s.cfg.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
			defer cancel()
		}
		return s.provider.Complete(callCtx, params)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion failed")
		return nil, err
	}

	reply, err := parseScoreReply(result.Content)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unparseable reply")
		return nil, fmt.Errorf("failed to parse %s reply: %w", criterion.Name, err)
	}

	threshold := s.thresholdFor(criterion.Name)
	scored := &ScoreResult{
		Criterion: criterion.Name,
		Score:     reply.Score,
		Threshold: threshold,
		Passed:    reply.Score >= threshold,
		Reason:    reply.Reason,
		Usage:     result.Usage,
	}

	s.logger.DebugContext(ctx, "criterion scored",
		"criterion", criterion.Name,
		"score", scored.Score,
		"passed", scored.Passed,
		"tokens", result.Usage.TotalTokens,
	)
	span.SetAttributes(
		attribute.Float64("score", scored.Score),
		attribute.Bool("passed", scored.Passed),
	)

	return scored, nil
}

func (s *CriteriaScorer) thresholdFor(name string) float64 {
	if t, ok := s.cfg.Thresholds[name]; ok {
		return t
	}
	return s.cfg.DefaultThreshold
}

// buildMessages renders the judge prompt for one criterion. Criteria
// that judge only the answer's phrasing never see the question.
func buildMessages(criterion Criterion, input CaseInput) []Message {
	var b strings.Builder
	b.WriteString("Criteria:\n")
	b.WriteString(criterion.Description)
	b.WriteString("\n\nEvaluation steps:\n")
	for i, step := range criterion.Steps {
		fmt.Fprintf(&b, "%d. %s\n", i+1, step)
	}
	if criterion.UsesQuestion {
		b.WriteString("\nQUESTION:\n")
		b.WriteString(input.Question)
		b.WriteString("\n")
	}
	b.WriteString("\nANSWER:\n")
	b.WriteString(input.Answer)

	return []Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
