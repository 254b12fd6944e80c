package runner

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/petasbytes/chatloop/message"
)

// UnknownToolContent is the content of the message synthesized for a failed
// tool call.
const UnknownToolContent = "Unknown tool."

const unknownToolLabel = "Unknown tool"

// CallTools runs handler for every tool call in msg concurrently, at most limit
// at a time (limit <= 0 means no limit), and waits for all of them.
//
// Result messages are returned in tool-call order, each stamped with msg.RunID.
// Messages without an ID get a fresh one; a missing role defaults to tool.
// ShouldContinue is true only when every call asked to continue. A message
// without tool calls yields a zero ToolResult.
func CallTools(ctx context.Context, msg message.Message, handler ToolHandler, limit int) ToolResult {
	if len(msg.ToolCalls) == 0 || handler == nil {
		return ToolResult{}
	}

	results := make([]ToolResult, len(msg.ToolCalls))
	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, call := range msg.ToolCalls {
		g.Go(func() error {
			results[i] = invoke(ctx, call, handler)
			return nil
		})
	}
	_ = g.Wait()

	out := ToolResult{ShouldContinue: true}
	for _, res := range results {
		for _, m := range res.Messages {
			m = ensureIdentity(m, message.RoleTool)
			m.RunID = msg.RunID
			out.Messages = append(out.Messages, m)
		}
		out.ShouldContinue = out.ShouldContinue && res.ShouldContinue
	}
	return out
}

func invoke(ctx context.Context, call message.ToolCall, handler ToolHandler) (res ToolResult) {
	defer func() {
		if p := recover(); p != nil {
			res = unknownTool(call, fmt.Errorf("tool handler panic: %v", p))
		}
	}()
	r, err := handler(ctx, call)
	if err != nil {
		return unknownTool(call, err)
	}
	return r
}

func unknownTool(call message.ToolCall, err error) ToolResult {
	label, detail := unknownToolLabel, err.Error()
	m := message.NewTool(call.ID, call.Function.Name, UnknownToolContent).
		ApplyMetadata(message.MetaLabel, &label).
		ApplyMetadata(message.MetaError, &detail)
	return ToolResult{Messages: []message.Message{m}}
}
