// Package metrics holds local text features and the Prometheus collectors for
// runs and tool calls.
package metrics

import (
	"strings"
	"unicode/utf8"
)

// Features are size measures of a piece of text.
type Features struct {
	Bytes int
	Runes int
	Words int
	Lines int
}

// CountFeatures measures s.
func CountFeatures(s string) Features {
	return Features{
		Bytes: len(s),
		Runes: utf8.RuneCountInString(s),
		Words: len(strings.Fields(s)),
		Lines: countLines(s),
	}
}

// countLines is 0 for "", else one more than the number of newlines.
func countLines(s string) int {
	if s == "" {
		return 0
	}
	return 1 + strings.Count(s, "\n")
}

// Fields is f as an event payload.
func (f Features) Fields() map[string]any {
	return map[string]any{
		"bytes": f.Bytes,
		"runes": f.Runes,
		"words": f.Words,
		"lines": f.Lines,
	}
}
