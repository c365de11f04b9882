package judge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// scoreReply is the JSON shape the judge model is instructed to return.
type scoreReply struct {
	Score  float64 `json:"score"`
	Reason string  `json:"reason"`
}

// scorePattern matches a labeled score in free-form model output, e.g.
// `"score": 0.8` or `Score: 0.8`.
var scorePattern = regexp.MustCompile(`(?i)"?score"?\s*[:=]\s*(-?[0-9]+(?:\.[0-9]+)?)`)

// parseScoreReply parses a judge completion into a score and reason.
// It expects JSON, possibly wrapped in a markdown code block, and falls
// back to scanning for a labeled score when the reply is not valid JSON.
// Scores are clamped to [0, 1].
func parseScoreReply(content string) (scoreReply, error) {
	jsonContent := extractJSON(content)

	var reply scoreReply
	if err := json.Unmarshal([]byte(jsonContent), &reply); err == nil {
		reply.Score = clampScore(reply.Score)
		return reply, nil
	}

	if m := scorePattern.FindStringSubmatch(content); m != nil {
		score, err := strconv.ParseFloat(m[1], 64)
		if err == nil {
			return scoreReply{
				Score:  clampScore(score),
				Reason: strings.TrimSpace(content),
			}, nil
		}
	}

	return scoreReply{}, fmt.Errorf("no score found in response")
}

func clampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}

// extractJSON extracts JSON content from a model reply that may wrap it
// in markdown code blocks. It looks for content between ```json and ```
// markers, or returns the input trimmed if no markers are found.
func extractJSON(responseText string) string {
	// Search for the first ```json fence on its own line and collect
	// content until the closing ```.
	lines := strings.Split(responseText, "\n")
	var jsonBuffer bytes.Buffer
	inJSONBlock := false
	foundJSON := false

	for _, line := range lines {
		if !inJSONBlock && line == "```json" {
			inJSONBlock = true
			foundJSON = true
			continue
		}

		if inJSONBlock && line == "```" {
			break
		}

		if inJSONBlock {
			if jsonBuffer.Len() > 0 {
				jsonBuffer.WriteString("\n")
			}
			jsonBuffer.WriteString(line)
		}
	}

	if foundJSON {
		// An empty fenced block falls through to the caller as an
		// unmarshal error.
		return strings.TrimSpace(jsonBuffer.String())
	}

	responseText = strings.TrimSpace(responseText)

	// Inline fences without newlines still get stripped.
	if strings.HasPrefix(responseText, "```json") && strings.HasSuffix(responseText, "```") {
		responseText = strings.TrimPrefix(responseText, "```json")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	} else {
		// These do nothing if the markers aren't there, so always do it.
		responseText = strings.TrimPrefix(responseText, "```")
		responseText = strings.TrimSuffix(responseText, "```")
		responseText = strings.TrimSpace(responseText)
	}

	return responseText
}
