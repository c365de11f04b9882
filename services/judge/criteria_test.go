package judge

import (
	"strings"
	"testing"
)

func TestDefaultCriteria_Order(t *testing.T) {
	criteria := DefaultCriteria()

	if len(criteria) != 4 {
		t.Fatalf("expected 4 criteria, got %d", len(criteria))
	}

	wantOrder := []string{
		CriterionQuestionAnswered,
		CriterionNeedsMoreInfo,
		CriterionSpeculative,
		CriterionConfident,
	}
	for i, c := range criteria {
		if c.Name != wantOrder[i] {
			t.Errorf("criteria[%d].Name = %q, want %q", i, c.Name, wantOrder[i])
		}
	}
}

func TestDefaultCriteria_Complete(t *testing.T) {
	for _, c := range DefaultCriteria() {
		if c.Description == "" {
			t.Errorf("%s has empty description", c.Name)
		}
		if len(c.Steps) != 4 {
			t.Errorf("%s has %d steps, want 4", c.Name, len(c.Steps))
		}
		// Every criterion scores on the 0.0/1.0 convention.
		if !strings.Contains(c.Description, "1.0") || !strings.Contains(c.Description, "0.0") {
			t.Errorf("%s description missing score anchors", c.Name)
		}
	}
}

// Only the answered-question criterion judges the answer against the
// question; the other three inspect the answer's phrasing alone.
func TestDefaultCriteria_QuestionVisibility(t *testing.T) {
	for _, c := range DefaultCriteria() {
		want := c.Name == CriterionQuestionAnswered
		if c.UsesQuestion != want {
			t.Errorf("%s UsesQuestion = %v, want %v", c.Name, c.UsesQuestion, want)
		}
	}
}

func TestCriterionNames(t *testing.T) {
	names := CriterionNames()
	criteria := DefaultCriteria()

	if len(names) != len(criteria) {
		t.Fatalf("CriterionNames returned %d names, want %d", len(names), len(criteria))
	}
	for i, name := range names {
		if criteria[i].Name != name {
			t.Errorf("names[%d] = %q, criteria[%d].Name = %q", i, name, i, criteria[i].Name)
		}
	}
}

func TestCriterionByName(t *testing.T) {
	c, ok := CriterionByName(CriterionSpeculative)
	if !ok {
		t.Fatal("expected to find is_speculative")
	}
	if c.Name != CriterionSpeculative {
		t.Errorf("Name = %q, want %q", c.Name, CriterionSpeculative)
	}
	if !strings.Contains(c.Description, "hedging") {
		t.Errorf("is_speculative description should mention hedging, got %q", c.Description)
	}

	if _, ok := CriterionByName("is_helpful"); ok {
		t.Error("expected lookup miss for unknown criterion")
	}
}
