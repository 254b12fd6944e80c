// Package windowing trims a conversation to a token budget without splitting
// a tool-call round from its results.
package windowing

import (
	"log/slog"

	"github.com/petasbytes/chatloop/message"
)

// GroupKind denotes the atomic unit type when preparing a send window.
type GroupKind int

const (
	GroupSingleton GroupKind = iota
	// GroupToolCalls is an assistant message with tool calls followed by the
	// tool messages answering every one of them.
	GroupToolCalls
)

// Group describes a contiguous span of messages [Start, End) in the original slice.
type Group struct {
	Kind  GroupKind
	Start int // inclusive index into msgs
	End   int // exclusive index into msgs
}

// GroupBlocks groups messages into atomic units that keep tool calls and their
// results together.
// Invariants:
// - A tool-call group is an assistant message with tool calls and the run of
// tool messages directly after it.
// - The tool messages must answer every call ID and no other ID; order is free.
// - Error results (metadata is_error) group like any other result.
// - Anything else is a singleton, including tool messages of an incomplete round.
func GroupBlocks(msgs []message.Message) []Group {
	groups := make([]Group, 0, len(msgs))
	for i := 0; i < len(msgs); {
		if end, ok := toolCallGroupEnd(msgs, i); ok {
			groups = append(groups, Group{Kind: GroupToolCalls, Start: i, End: end})
			i = end
			continue
		}
		groups = append(groups, Group{Kind: GroupSingleton, Start: i, End: i + 1})
		i++
	}
	return groups
}

// toolCallGroupEnd reports the exclusive end of a valid tool-call group
// starting at i.
func toolCallGroupEnd(msgs []message.Message, i int) (int, bool) {
	m := msgs[i]
	if m.Role != message.RoleAssistant || len(m.ToolCalls) == 0 {
		return 0, false
	}
	callIDs := make(map[string]struct{}, len(m.ToolCalls))
	for _, c := range m.ToolCalls {
		if c.ID != "" {
			callIDs[c.ID] = struct{}{}
		}
	}

	resultIDs := make(map[string]struct{})
	j := i + 1
	for ; j < len(msgs) && msgs[j].Role == message.RoleTool; j++ {
		resultIDs[msgs[j].ToolCallID] = struct{}{}
	}

	var reason string
	switch {
	case j == i+1:
		reason = "no_results"
	case !coversAll(resultIDs, callIDs):
		reason = "missing_results"
	case !coversAll(callIDs, resultIDs):
		reason = "extra_results"
	default:
		return j, true
	}
	slog.Debug("windowing: exclude tool-call group", "reason", reason, "idx", i)
	return 0, false
}

// coversAll checks that every id in required is present in have.
func coversAll(have, required map[string]struct{}) bool {
	for id := range required {
		if _, ok := have[id]; !ok {
			return false
		}
	}
	return true
}
