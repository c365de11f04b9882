package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

// Loader reads the three evaluation artifacts from a Source and joins
// them into comparable cases.
type Loader struct {
	source Source
	logger *slog.Logger
}

// NewLoader creates a loader over the given source.
func NewLoader(source Source, logger *slog.Logger) *Loader {
	return &Loader{
		source: source,
		logger: logger.With("component", "loader"),
	}
}

// caseKey is the stable identity shared by all three artifacts.
type caseKey struct {
	file     string
	question string
}

// Load reads all three artifacts and returns the joined cases in
// canonical (file, question) order. A limit greater than zero caps the
// number of comparable cases returned; gaps and malformed records are
// still counted across the full scan so totals never hide data loss.
func (l *Loader) Load(ctx context.Context, limit int) (*LoadResult, error) {
	golden, goldenBad, err := l.decodeArtifact(ctx, GoldenAnswersFile)
	if err != nil {
		return nil, err
	}
	backend, backendBad, err := l.decodeArtifact(ctx, BackendAnswersFile)
	if err != nil {
		return nil, err
	}
	prior, priorBad, err := l.decodeArtifact(ctx, BackendEvaluationFile)
	if err != nil {
		return nil, err
	}

	keys := make(map[caseKey]struct{})
	for k := range golden {
		keys[k] = struct{}{}
	}
	for k := range backend {
		keys[k] = struct{}{}
	}
	for k := range prior {
		keys[k] = struct{}{}
	}

	sorted := make([]caseKey, 0, len(keys))
	for k := range keys {
		sorted = append(sorted, k)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].file != sorted[j].file {
			return sorted[i].file < sorted[j].file
		}
		return sorted[i].question < sorted[j].question
	})

	result := &LoadResult{
		Discovered: len(sorted),
		Malformed:  goldenBad + backendBad + priorBad,
	}

	for _, k := range sorted {
		goldenRaw, haveGolden := golden[k]
		backendRaw, haveBackend := backend[k]
		priorRaw, havePrior := prior[k]

		if !haveGolden || !haveBackend || !havePrior {
			result.Unevaluable = append(result.Unevaluable, UnevaluableCase{
				FileName: k.file,
				Question: k.question,
				Reason:   missingFrom(haveGolden, haveBackend, havePrior),
			})
			continue
		}

		c := EvaluationCase{FileName: k.file, Question: k.question}
		if err := json.Unmarshal(goldenRaw, &c.GoldenAnswer); err != nil {
			l.skipMalformed(ctx, result, k, GoldenAnswersFile, "answer is not a string")
			continue
		}
		if err := json.Unmarshal(backendRaw, &c.BackendAnswer); err != nil {
			l.skipMalformed(ctx, result, k, BackendAnswersFile, "answer is not a string")
			continue
		}
		if err := decodeJudgment(priorRaw, &c.Prior); err != nil {
			l.skipMalformed(ctx, result, k, BackendEvaluationFile, err.Error())
			continue
		}

		if limit > 0 && len(result.Cases) >= limit {
			continue
		}
		result.Cases = append(result.Cases, c)
	}

	l.logger.InfoContext(ctx, "loaded evaluation cases",
		"discovered", result.Discovered,
		"cases", len(result.Cases),
		"unevaluable", len(result.Unevaluable),
		"malformed", result.Malformed)

	return result, nil
}

// decodeArtifact flattens one artifact's {file: {question: value}}
// nesting into raw values keyed by case identity. File entries that are
// not objects are skipped and counted.
func (l *Loader) decodeArtifact(ctx context.Context, name string) (map[caseKey]json.RawMessage, int, error) {
	rc, err := l.source.Open(ctx, name)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	var files map[string]json.RawMessage
	if err := json.NewDecoder(rc).Decode(&files); err != nil {
		return nil, 0, fmt.Errorf("failed to parse %s: %w", name, err)
	}

	values := make(map[caseKey]json.RawMessage)
	bad := 0
	for file, raw := range files {
		var questions map[string]json.RawMessage
		if err := json.Unmarshal(raw, &questions); err != nil {
			l.logger.WarnContext(ctx, "skipping malformed file entry",
				"artifact", name, "file", file, "error", err)
			bad++
			continue
		}
		for q, v := range questions {
			values[caseKey{file: file, question: q}] = v
		}
	}

	return values, bad, nil
}

func (l *Loader) skipMalformed(ctx context.Context, result *LoadResult, k caseKey, artifact, reason string) {
	result.Malformed++
	l.logger.WarnContext(ctx, "skipping malformed record",
		"artifact", artifact, "file", k.file, "question", k.question, "reason", reason)
}

// decodeJudgment decodes a prior judgment, requiring all four
// indicators to be present booleans. Extra fields are ignored.
func decodeJudgment(raw json.RawMessage, j *Judgment) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return fmt.Errorf("judgment is not an object")
	}
	for _, name := range IndicatorNames() {
		rawVal, ok := fields[name]
		if !ok {
			return fmt.Errorf("missing indicator %s", name)
		}
		var b bool
		if err := json.Unmarshal(rawVal, &b); err != nil {
			return fmt.Errorf("indicator %s is not a boolean", name)
		}
	}
	return json.Unmarshal(raw, j)
}

func missingFrom(haveGolden, haveBackend, havePrior bool) string {
	var missing []string
	if !haveGolden {
		missing = append(missing, GoldenAnswersFile)
	}
	if !haveBackend {
		missing = append(missing, BackendAnswersFile)
	}
	if !havePrior {
		missing = append(missing, BackendEvaluationFile)
	}
	return "missing from " + strings.Join(missing, ", ")
}
