package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/petasbytes/chatloop/internal/metrics"
	"github.com/petasbytes/chatloop/internal/telemetry"
	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// ErrUnknownTool is returned by a Handler for a call naming no registered tool.
var ErrUnknownTool = errors.New("tool not found")

// Registry returns all tool definitions wired for the agent.
func Registry() []ToolDefinition {
	return []ToolDefinition{ReadFileDefinition, ListFilesDefinition, EditFileDefinition, FinishDefinition}
}

// Specs describes defs to a chat backend.
func Specs(defs []ToolDefinition) []runner.Tool {
	out := make([]runner.Tool, 0, len(defs))
	for _, d := range defs {
		out = append(out, runner.Tool{Name: d.Name, Description: d.Description, Parameters: d.InputSchema})
	}
	return out
}

// Handler dispatches tool calls to defs by name.
//
// Every known call yields one tool message answering it. A tool error becomes
// the message content, flagged with metadata is_error=true, and the run goes
// on so the model can react. A successful terminal tool stops the run. An
// unknown name is reported as ErrUnknownTool.
func Handler(defs []ToolDefinition) runner.ToolHandler {
	byName := make(map[string]ToolDefinition, len(defs))
	for _, d := range defs {
		byName[d.Name] = d
	}

	return func(ctx context.Context, call message.ToolCall) (runner.ToolResult, error) {
		name := call.Function.Name
		input := json.RawMessage(call.Function.Arguments)
		if len(input) == 0 {
			input = json.RawMessage("{}")
		}
		start := time.Now()

		def, ok := byName[name]
		if !ok {
			emitToolExec(ctx, name, start, len(input), 0, "tool not found")
			metrics.ObserveTool(name, metrics.ToolUnknown, time.Since(start).Seconds())
			return runner.ToolResult{}, fmt.Errorf("%w: %q", ErrUnknownTool, name)
		}

		out, err := def.Function(ctx, input)
		if err != nil {
			// Telemetry gets a generic string; the model gets the detail.
			emitToolExec(ctx, name, start, len(input), 0, "tool error")
			metrics.ObserveTool(name, metrics.ToolError, time.Since(start).Seconds())
			reply := message.NewTool(call.ID, name, err.Error())
			reply.Metadata = map[string]string{message.MetaIsError: "true"}
			return runner.ToolResult{Messages: []message.Message{reply}, ShouldContinue: true}, nil
		}

		emitToolExec(ctx, name, start, len(input), len(out), "")
		metrics.ObserveTool(name, metrics.ToolOK, time.Since(start).Seconds())
		return runner.ToolResult{
			Messages:       []message.Message{message.NewTool(call.ID, name, out)},
			ShouldContinue: !def.Terminal,
		}, nil
	}
}

func emitToolExec(ctx context.Context, name string, start time.Time, inSize, outSize int, errStr string) {
	runID, _ := telemetry.RunIDFromContext(ctx)
	fields := map[string]any{
		"tool_name":   name,
		"duration_ms": time.Since(start).Milliseconds(),
		"input_size":  inSize,
		"output_size": outSize,
		"run_id":      runID,
		"error":       nil,
	}
	if errStr != "" {
		fields["error"] = errStr
	}
	telemetry.Emit("tool_exec", fields)
}
