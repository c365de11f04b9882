package testutil

import (
	_ "embed"
	"encoding/json"
	"strings"
)

//go:embed testdata/blns.json
var blnsJSON []byte

// NaughtyStrings provides a curated selection from the Big List of
// Naughty Strings (BLNS).
// https://github.com/minimaxir/big-list-of-naughty-strings
//
// Evaluation answers and questions are arbitrary text that ends up in
// JSON artifacts, markdown reports, SQL rows and cache keys; these
// strings are known to break naive handling of each.
var NaughtyStrings = loadNaughtyStrings()

// NaughtyStringCategories provides categorized subsets for targeted
// testing.
var NaughtyStringCategories = categorizeStrings()

type naughtyStringSet struct {
	// All contains the full curated list
	All []string

	// Categorized subsets for targeted testing
	Empty           []string
	Numeric         []string
	SpecialChars    []string
	Unicode         []string
	RTL             []string
	Emoji           []string
	Markdown        []string
	ScriptInjection []string
	SQLInjection    []string
	PathTraversal   []string
	FormatStrings   []string
}

func loadNaughtyStrings() *naughtyStringSet {
	var all []string
	if err := json.Unmarshal(blnsJSON, &all); err != nil {
		// Fallback to minimal set if JSON fails to parse
		return &naughtyStringSet{
			All: []string{"", "null", "undefined", "'", "\"", "<script>", "../"},
		}
	}

	return &naughtyStringSet{All: all}
}

func categorizeStrings() *naughtyStringSet {
	base := loadNaughtyStrings()
	result := &naughtyStringSet{All: base.All}

	for _, s := range base.All {
		lower := strings.ToLower(s)

		if s == "" || lower == "null" || lower == "nil" || lower == "none" || lower == "undefined" {
			result.Empty = append(result.Empty, s)
		}

		if isNumericTest(s) {
			result.Numeric = append(result.Numeric, s)
		}

		if isSpecialChars(s) {
			result.SpecialChars = append(result.SpecialChars, s)
		}

		if hasNonASCII(s) && !isEmoji(s) {
			result.Unicode = append(result.Unicode, s)
		}

		if hasRTL(s) {
			result.RTL = append(result.RTL, s)
		}

		if isEmoji(s) {
			result.Emoji = append(result.Emoji, s)
		}

		if isMarkdown(s) {
			result.Markdown = append(result.Markdown, s)
		}

		if isScriptInjection(s) {
			result.ScriptInjection = append(result.ScriptInjection, s)
		}

		if isSQLInjection(s) {
			result.SQLInjection = append(result.SQLInjection, s)
		}

		if isPathTraversal(s) {
			result.PathTraversal = append(result.PathTraversal, s)
		}

		if isFormatString(s) {
			result.FormatStrings = append(result.FormatStrings, s)
		}
	}

	return result
}

func isNumericTest(s string) bool {
	numericPatterns := []string{"0", "1", "-1", "1.0", "-1.0", "NaN", "Infinity", "-Infinity", "1e", "0x", "0b", "0o"}
	for _, p := range numericPatterns {
		if strings.HasPrefix(s, p) || s == p {
			return true
		}
	}
	return false
}

func isSpecialChars(s string) bool {
	specials := []string{"\\", "/", "'", "\"", "`", "<", ">", "&", "|", ";", "$", "(", ")", "{", "}", "[", "]"}
	for _, sp := range specials {
		if s == sp || (len(s) <= 3 && strings.Contains(s, sp)) {
			return true
		}
	}
	return false
}

func hasNonASCII(s string) bool {
	for _, r := range s {
		if r > 127 {
			return true
		}
	}
	return false
}

func hasRTL(s string) bool {
	rtlChars := []rune{
		0x200F, // Right-to-left mark
		0x202B, // Right-to-left embedding
		0x202E, // Right-to-left override
		0x2067, // Right-to-left isolate
	}
	for _, r := range s {
		for _, rtl := range rtlChars {
			if r == rtl {
				return true
			}
		}
		// Arabic range
		if r >= 0x0600 && r <= 0x06FF {
			return true
		}
		// Hebrew range
		if r >= 0x0590 && r <= 0x05FF {
			return true
		}
	}
	return false
}

func isEmoji(s string) bool {
	for _, r := range s {
		// Emoji ranges (simplified)
		if (r >= 0x1F300 && r <= 0x1F9FF) || // Misc Symbols, Emoticons, etc.
			(r >= 0x2600 && r <= 0x26FF) || // Misc Symbols
			(r >= 0x2700 && r <= 0x27BF) || // Dingbats
			(r >= 0x1F600 && r <= 0x1F64F) { // Emoticons
			return true
		}
	}
	return false
}

func isMarkdown(s string) bool {
	// Strings that disturb markdown tables and report structure
	patterns := []string{"|", "#", "**", "```", "---", "[", "]("}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

func isScriptInjection(s string) bool {
	lower := strings.ToLower(s)
	patterns := []string{"<script", "javascript:", "onerror=", "onload=", "onclick=", "eval(", "alert(", "document."}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isSQLInjection(s string) bool {
	lower := strings.ToLower(s)
	patterns := []string{"' or ", "' and ", "union select", "drop table", "--", "/*", "*/", "1=1", "1'='1"}
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	// Classic patterns
	if strings.HasPrefix(s, "'") || strings.HasSuffix(s, "--") {
		return true
	}
	return false
}

func isPathTraversal(s string) bool {
	patterns := []string{"../", "..\\", "%2e%2e", "....//", "/etc/passwd", "c:\\windows"}
	lower := strings.ToLower(s)
	for _, p := range patterns {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func isFormatString(s string) bool {
	patterns := []string{"%s", "%d", "%x", "%n", "%p", "{0}", "%(", "${"}
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// RandomSample returns n strings sampled evenly from the full list.
// Useful for quick robustness checks without testing the entire list.
func (n *naughtyStringSet) RandomSample(count int) []string {
	if count >= len(n.All) {
		return n.All
	}
	// Simple deterministic sampling for reproducibility
	result := make([]string, count)
	step := len(n.All) / count
	for i := 0; i < count; i++ {
		result[i] = n.All[i*step]
	}
	return result
}

// ForEach iterates through all strings, calling fn for each.
// Stops if fn returns false.
func (n *naughtyStringSet) ForEach(fn func(s string) bool) {
	for _, s := range n.All {
		if !fn(s) {
			return
		}
	}
}
