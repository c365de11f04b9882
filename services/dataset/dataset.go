// Package dataset loads the evaluation artifacts for a pilot run and
// joins them into comparable test cases.
package dataset

import (
	"errors"
	"fmt"
	"strings"
)

// Artifact file names expected in a test directory.
const (
	GoldenAnswersFile     = "golden_answers.json"
	BackendAnswersFile    = "backend_answers.json"
	BackendEvaluationFile = "backend_evaluation_results.json"
)

// ArtifactNames returns the three required artifact file names.
func ArtifactNames() []string {
	return []string{GoldenAnswersFile, BackendAnswersFile, BackendEvaluationFile}
}

// IndicatorNames returns the four boolean indicator names in canonical
// order.
func IndicatorNames() []string {
	return []string{
		"is_question_answered",
		"requires_additional_information",
		"is_speculative",
		"is_confident",
	}
}

// Judgment holds one judge's four boolean indicators for a single case.
// Both the prior backend judge and the criteria judge produce one.
type Judgment struct {
	QuestionAnswered bool `json:"is_question_answered"`
	NeedsMoreInfo    bool `json:"requires_additional_information"`
	Speculative      bool `json:"is_speculative"`
	Confident        bool `json:"is_confident"`
}

// Composite reduces the four indicators to a single verdict: the answer
// is comprehensive when it answers the question, needs no further
// information, does not speculate and is stated with confidence.
func (j Judgment) Composite() bool {
	return j.QuestionAnswered && !j.NeedsMoreInfo && !j.Speculative && j.Confident
}

// Indicator returns the named indicator value. The second return is
// false for names outside the canonical four.
func (j Judgment) Indicator(name string) (bool, bool) {
	switch name {
	case "is_question_answered":
		return j.QuestionAnswered, true
	case "requires_additional_information":
		return j.NeedsMoreInfo, true
	case "is_speculative":
		return j.Speculative, true
	case "is_confident":
		return j.Confident, true
	}
	return false, false
}

// EvaluationCase is one fully joined test case: the question asked, the
// reference answer, the generated answer under evaluation and the prior
// judge's verdict. A case only exists once all three artifacts have an
// entry for it.
type EvaluationCase struct {
	FileName      string
	Question      string
	GoldenAnswer  string
	BackendAnswer string
	Prior         Judgment
}

// UnevaluableCase identifies a case that appears in at least one
// artifact but cannot be compared because another artifact has no entry
// for it.
type UnevaluableCase struct {
	FileName string `json:"file_name"`
	Question string `json:"question"`
	Reason   string `json:"reason"`
}

// LoadResult is the outcome of loading a test directory.
type LoadResult struct {
	// Cases holds the comparable cases in canonical order, capped by
	// the loader's limit.
	Cases []EvaluationCase
	// Unevaluable lists cases missing from one or more artifacts.
	Unevaluable []UnevaluableCase
	// Malformed counts records skipped for structural problems.
	Malformed int
	// Discovered counts the distinct (file, question) identities seen
	// across all artifacts, before any limit applies.
	Discovered int
}

// MissingArtifactError indicates a required input artifact could not be
// located anywhere the source knows to look. It aborts the run.
type MissingArtifactError struct {
	Name     string
	Searched []string
}

// ErrMissingArtifact matches any MissingArtifactError via errors.Is.
var ErrMissingArtifact = errors.New("missing required artifact")

func (e *MissingArtifactError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("missing required artifact %s", e.Name)
	}
	return fmt.Sprintf("missing required artifact %s (looked in %s)", e.Name, strings.Join(e.Searched, ", "))
}

func (e *MissingArtifactError) Unwrap() error { return ErrMissingArtifact }
