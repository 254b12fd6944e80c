package windowing

import (
	"unicode/utf8"

	"github.com/petasbytes/chatloop/message"
)

// TokenCounter estimates input-token cost for messages or groups.
type TokenCounter interface {
	CountMessage(m message.Message) int
	CountGroup(g Group, all []message.Message) int
}

// HeuristicCounter is the default deterministic estimator.
// Rules:
// - content: rune count plus one block overhead
// - each tool call: runes of its name and arguments plus one block overhead
// Attachments and metadata are not sent as text and cost nothing.
type HeuristicCounter struct{}

// Fixed per-block overhead for deterministic counts; changing this requires updating the guard test.
const blockOverhead = 4

// CountMessage estimates one message.
func (HeuristicCounter) CountMessage(m message.Message) int {
	total := utf8.RuneCountInString(m.Content) + blockOverhead
	for _, c := range m.ToolCalls {
		total += utf8.RuneCountInString(c.Function.Name) + utf8.RuneCountInString(c.Function.Arguments) + blockOverhead
	}
	return total
}

// CountGroup sums the messages of g.
func (h HeuristicCounter) CountGroup(g Group, all []message.Message) int {
	total := 0
	for i := g.Start; i < g.End && i < len(all); i++ {
		total += h.CountMessage(all[i])
	}
	return total
}
