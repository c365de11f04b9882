package pilot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/instantcocoa/verdict/services/compare"
	"github.com/instantcocoa/verdict/services/dataset"
	"github.com/instantcocoa/verdict/services/judge"
)

// timestampLayout stamps artifact filenames; downstream tooling globs on
// this exact format.
const timestampLayout = "20060102_150405"

// regressionEpsilon is the rate movement beyond which a history diff
// flags a regression or improvement.
const regressionEpsilon = 0.01

// RunResult carries everything a completed run produced.
type RunResult struct {
	Run        *PilotRun
	Comparison *compare.Comparison
	Results    []compare.CaseResult
}

// Service runs the pilot end to end.
type Service struct {
	loader *dataset.Loader
	scorer judge.Scorer
	store  Store
	logger *slog.Logger
	tracer trace.Tracer
}

// NewService wires the pilot from its three collaborators. The store
// may be nil when run history is not wanted.
func NewService(loader *dataset.Loader, scorer judge.Scorer, store Store, logger *slog.Logger) *Service {
	return &Service{
		loader: loader,
		scorer: scorer,
		store:  store,
		logger: logger.With("component", "pilot"),
		tracer: otel.Tracer("pilot"),
	}
}

// Run executes one full pilot: load, evaluate sequentially, compare,
// write artifacts, record history. Per-case evaluation problems never
// abort the run; missing artifacts and artifact write failures do.
func (s *Service) Run(ctx context.Context, opts RunOptions) (*RunResult, error) {
	ctx, span := s.tracer.Start(ctx, "pilot.Run",
		trace.WithAttributes(attribute.String("test_dir", opts.TestDir)))
	defer span.End()

	out := opts.Progress
	if out == nil {
		out = io.Discard
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "output"
	}

	start := time.Now()
	stamp := start.Format(timestampLayout)
	divider := strings.Repeat("=", 70)

	fmt.Fprintf(out, "\n%s\n", divider)
	fmt.Fprintln(out, "DEEPEVAL MIGRATION PILOT")
	fmt.Fprintln(out, divider)
	fmt.Fprintf(out, "Test directory: %s\n", opts.TestDir)
	limit := "all"
	if opts.Limit > 0 {
		limit = strconv.Itoa(opts.Limit)
	}
	fmt.Fprintf(out, "Limit: %s\n", limit)
	fmt.Fprintf(out, "Threshold: %g\n", opts.Threshold)
	fmt.Fprintf(out, "Output directory: %s\n", opts.OutputDir)
	fmt.Fprintf(out, "%s\n\n", divider)

	fmt.Fprintln(out, "Loading backend test data...")
	load, err := s.loader.Load(ctx, opts.Limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load failed")
		return nil, err
	}
	fmt.Fprintf(out, "✓ Loaded %d test cases\n", len(load.Cases))
	if len(load.Unevaluable) > 0 || load.Malformed > 0 {
		fmt.Fprintf(out, "  Skipped: %d unevaluable, %d malformed\n", len(load.Unevaluable), load.Malformed)
	}

	s.logger.InfoContext(ctx, "starting pilot run",
		"test_dir", opts.TestDir,
		"cases", len(load.Cases),
		"unevaluable", len(load.Unevaluable),
		"malformed", load.Malformed,
		"threshold", opts.Threshold,
	)

	fmt.Fprintf(out, "\n%s\n", divider)
	fmt.Fprintln(out, "EVALUATING WITH DEEPEVAL")
	fmt.Fprintf(out, "%s\n\n", divider)

	results := make([]compare.CaseResult, 0, len(load.Cases))
	var usage judge.Usage
	for i, c := range load.Cases {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fmt.Fprintf(out, "[%d/%d] Evaluating: %s\n", i+1, len(load.Cases), c.FileName)
		fmt.Fprintf(out, "  Question: %s\n", shorten(c.Question, 80))

		rec, caseUsage := s.evaluateCase(ctx, c)
		usage.Add(caseUsage)
		if rec.Error != "" {
			fmt.Fprintf(out, "  ✗ Error: %s\n", rec.Error)
		} else {
			fmt.Fprintf(out, "  ✓ DeepEval comprehensive_answer: %t\n", *rec.ComprehensiveAnswer)
		}
		results = append(results, rec)
	}

	writer := NewArtifactWriter(opts.OutputDir)
	resultsPath, err := writer.WriteResults(results, stamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact write failed")
		return nil, err
	}
	fmt.Fprintf(out, "\n✓ Raw results saved to: %s\n", resultsPath)

	fmt.Fprintf(out, "\n%s\n", divider)
	fmt.Fprintln(out, "GENERATING COMPARISON REPORT")
	fmt.Fprintf(out, "%s\n\n", divider)

	comparison := compare.Compare(results, load.Unevaluable)
	comparison.Timestamp = start.UTC().Format(time.RFC3339)
	comparison.Summary.MalformedRecords = load.Malformed

	comparisonPath, err := writer.WriteComparison(comparison, stamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact write failed")
		return nil, err
	}
	fmt.Fprintf(out, "✓ Comparison JSON saved to: %s\n", comparisonPath)

	reportPath, err := writer.WriteReport(compare.RenderReport(comparison), stamp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "artifact write failed")
		return nil, err
	}
	fmt.Fprintf(out, "✓ Markdown report saved to: %s\n", reportPath)

	fmt.Fprintf(out, "\n%s\n", divider)
	fmt.Fprintln(out, "SUMMARY")
	fmt.Fprintln(out, divider)
	fmt.Fprintf(out, "Total test cases: %d\n", comparison.Summary.TotalCases)
	fmt.Fprintf(out, "Evaluated: %d\n", comparison.Summary.SuccessfulEvaluations)
	fmt.Fprintf(out, "Failed: %d\n", comparison.Summary.FailedEvaluations)
	fmt.Fprintf(out, "Unevaluable: %d\n", comparison.Summary.UnevaluableCases)
	fmt.Fprintf(out, "Malformed records: %d\n", comparison.Summary.MalformedRecords)
	fmt.Fprintf(out, "Agreement rate: %.1f%%\n", comparison.Summary.AgreementRate*100)
	fmt.Fprintf(out, "\nMetric agreements:\n")
	for _, metric := range dataset.IndicatorNames() {
		stats := comparison.MetricComparisons[metric]
		fmt.Fprintf(out, "  %s: %.1f%% (%d/%d)\n", metric, stats.AgreementRate*100, stats.Agreements, stats.Total)
	}
	fmt.Fprintf(out, "\nTokens used: %d (prompt %d, completion %d)\n",
		usage.TotalTokens, usage.PromptTokens, usage.CompletionTokens)
	fmt.Fprintf(out, "Estimated cost: $%.4f\n", usage.CostUSD)
	fmt.Fprintf(out, "%s\n\n", divider)

	fmt.Fprintln(out, "✓ Pilot completed successfully!")
	fmt.Fprintf(out, "  View detailed report: %s\n", reportPath)

	run := &PilotRun{
		ID:               uuid.New().String(),
		CreatedAt:        start,
		TestDir:          opts.TestDir,
		Provider:         opts.Provider,
		Model:            opts.Model,
		Thresholds:       effectiveThresholds(opts),
		TotalCases:       comparison.Summary.TotalCases,
		Evaluated:        comparison.Summary.SuccessfulEvaluations,
		Failed:           comparison.Summary.FailedEvaluations,
		Unevaluable:      comparison.Summary.UnevaluableCases,
		Malformed:        comparison.Summary.MalformedRecords,
		AgreementRate:    comparison.Summary.AgreementRate,
		MetricRates:      metricRates(comparison),
		ResultsPath:      resultsPath,
		ComparisonPath:   comparisonPath,
		ReportPath:       reportPath,
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CostUSD:          usage.CostUSD,
	}
	if s.store != nil {
		// History is supplementary: a store failure must not fail a run
		// whose artifacts are already on disk.
		if err := s.store.CreateRun(ctx, run); err != nil {
			s.logger.WarnContext(ctx, "failed to record run history", "run_id", run.ID, "error", err)
		}
	}

	s.logger.InfoContext(ctx, "pilot run complete",
		"run_id", run.ID,
		"total", run.TotalCases,
		"evaluated", run.Evaluated,
		"failed", run.Failed,
		"agreement_rate", run.AgreementRate,
		"total_tokens", run.TotalTokens,
		"cost_usd", run.CostUSD,
	)
	span.SetAttributes(
		attribute.Int("cases", run.TotalCases),
		attribute.Float64("agreement_rate", run.AgreementRate),
	)

	return &RunResult{Run: run, Comparison: comparison, Results: results}, nil
}

// evaluateCase scores the four criteria for one case in canonical
// order. The first scoring error fails the whole case: the record keeps
// the prior judgment but carries no partial score set.
func (s *Service) evaluateCase(ctx context.Context, c dataset.EvaluationCase) (compare.CaseResult, judge.Usage) {
	rec := compare.CaseResult{
		FileName:          c.FileName,
		Question:          c.Question,
		BackendAnswer:     c.BackendAnswer,
		BackendEvaluation: c.Prior,
	}
	input := judge.CaseInput{Question: c.Question, Answer: c.BackendAnswer}

	var usage judge.Usage
	scores := make(map[string]compare.Score, 4)
	for _, criterion := range judge.DefaultCriteria() {
		res, err := s.scorer.Score(ctx, criterion, input)
		if err != nil {
			s.logger.WarnContext(ctx, "case evaluation failed",
				"file", c.FileName,
				"criterion", criterion.Name,
				"error", err,
			)
			rec.Error = err.Error()
			return rec, usage
		}
		usage.Add(res.Usage)
		scores[criterion.Name] = compare.Score{
			Score:     res.Score,
			Threshold: res.Threshold,
			Passed:    res.Passed,
			Reason:    res.Reason,
		}
	}

	judged := dataset.Judgment{
		QuestionAnswered: scores[judge.CriterionQuestionAnswered].Passed,
		NeedsMoreInfo:    scores[judge.CriterionNeedsMoreInfo].Passed,
		Speculative:      scores[judge.CriterionSpeculative].Passed,
		Confident:        scores[judge.CriterionConfident].Passed,
	}
	composite := judged.Composite()
	rec.Scores = scores
	rec.ComprehensiveAnswer = &composite
	return rec, usage
}

// GetRun retrieves one recorded run; nil when the ID is unknown.
func (s *Service) GetRun(ctx context.Context, id string) (*PilotRun, error) {
	run, err := s.store.GetRun(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns recorded runs matching the query, newest first.
func (s *Service) ListRuns(ctx context.Context, query ListRunsQuery) ([]*PilotRun, int, error) {
	runs, total, err := s.store.ListRuns(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, total, nil
}

// DiffRuns compares the agreement rates of two recorded runs and flags
// movements beyond the regression epsilon.
func (s *Service) DiffRuns(ctx context.Context, idA, idB string) (*RunDiff, error) {
	runA, err := s.store.GetRun(ctx, idA)
	if err != nil {
		return nil, fmt.Errorf("failed to get run A: %w", err)
	}
	if runA == nil {
		return nil, fmt.Errorf("run not found: %s", idA)
	}

	runB, err := s.store.GetRun(ctx, idB)
	if err != nil {
		return nil, fmt.Errorf("failed to get run B: %w", err)
	}
	if runB == nil {
		return nil, fmt.Errorf("run not found: %s", idB)
	}

	diff := &RunDiff{
		RunA:      runA,
		RunB:      runB,
		Composite: rateDelta("comprehensive_answer", runA.AgreementRate, runB.AgreementRate),
	}
	tally := func(d RateDelta) {
		if d.Regression {
			diff.Regressions++
		} else if d.Improvement {
			diff.Improvements++
		}
	}
	tally(diff.Composite)
	for _, metric := range dataset.IndicatorNames() {
		d := rateDelta(metric, runA.MetricRates[metric], runB.MetricRates[metric])
		diff.Metrics = append(diff.Metrics, d)
		tally(d)
	}

	return diff, nil
}

func rateDelta(metric string, a, b float64) RateDelta {
	delta := b - a
	return RateDelta{
		Metric:      metric,
		RateA:       a,
		RateB:       b,
		Delta:       delta,
		Regression:  delta < -regressionEpsilon,
		Improvement: delta > regressionEpsilon,
	}
}

// effectiveThresholds resolves the per-indicator thresholds a run
// actually used: the global default overlaid with any overrides.
func effectiveThresholds(opts RunOptions) map[string]float64 {
	thresholds := make(map[string]float64, 4)
	for _, name := range dataset.IndicatorNames() {
		thresholds[name] = opts.Threshold
		if t, ok := opts.Thresholds[name]; ok {
			thresholds[name] = t
		}
	}
	return thresholds
}

// metricRates flattens per-indicator agreement rates for the run record.
func metricRates(c *compare.Comparison) map[string]float64 {
	rates := make(map[string]float64, len(c.MetricComparisons))
	for name, stats := range c.MetricComparisons {
		rates[name] = stats.AgreementRate
	}
	return rates
}

// shorten caps a console line at max runes, marking dropped text.
func shorten(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
