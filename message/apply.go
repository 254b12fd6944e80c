package message

import (
	"maps"
	"slices"
	"time"
)

// Apply merges update into m and returns the result.
//
// Rules:
//   - Content: update.Content is appended to m.Content.
//   - FinishReason, ToolCallID, RunID: taken from update unconditionally,
//     including the empty value.
//   - ToolCalls: merged by ID; a matching call is merged with ToolCall.Apply,
//     unmatched calls are appended in arrival order.
//   - Modified: refreshed to now.
//
// All other fields keep m's values. The IDs of m and update are not compared.
func (m Message) Apply(update Message) Message {
	out := m.clone()
	out.Content += update.Content
	out.FinishReason = update.FinishReason
	out.ToolCallID = update.ToolCallID
	out.RunID = update.RunID

	for _, tc := range update.ToolCalls {
		if i := slices.IndexFunc(out.ToolCalls, func(c ToolCall) bool { return c.ID == tc.ID }); i >= 0 {
			out.ToolCalls[i] = out.ToolCalls[i].Apply(tc)
			continue
		}
		out.ToolCalls = append(out.ToolCalls, tc)
	}

	out.touch(m.Modified)
	return out
}

// Apply merges a streamed tool-call fragment into c. Arguments are appended;
// the function name and type are replaced only when the update carries one.
func (c ToolCall) Apply(update ToolCall) ToolCall {
	if update.Type != "" {
		c.Type = update.Type
	}
	if update.Function.Name != "" {
		c.Function.Name = update.Function.Name
	}
	c.Function.Arguments += update.Function.Arguments
	return c
}

// ApplyMetadata sets key to *value. A nil value leaves the message unchanged.
func (m Message) ApplyMetadata(key string, value *string) Message {
	if value == nil {
		return m
	}
	out := m.clone()
	if out.Metadata == nil {
		out.Metadata = make(map[string]string, 1)
	}
	out.Metadata[key] = *value
	out.touch(m.Modified)
	return out
}

// ApplyKind replaces the message kind.
func (m Message) ApplyKind(kind Kind) Message {
	out := m.clone()
	out.Kind = kind
	out.touch(m.Modified)
	return out
}

// clone copies the slices and maps so updates never alias the receiver.
func (m Message) clone() Message {
	out := m
	out.ToolCalls = slices.Clone(m.ToolCalls)
	out.Attachments = slices.Clone(m.Attachments)
	out.Metadata = maps.Clone(m.Metadata)
	return out
}

// touch sets Modified to now, keeping it strictly after prev.
func (m *Message) touch(prev time.Time) {
	now := time.Now()
	if !now.After(prev) {
		now = prev.Add(time.Nanosecond)
	}
	m.Modified = now
}
