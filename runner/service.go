package runner

import (
	"context"

	"github.com/invopop/jsonschema"

	"github.com/petasbytes/chatloop/message"
)

// Tool describes a function the model may call.
type Tool struct {
	Name        string
	Description string
	Parameters  *jsonschema.Schema
}

// ChatRequest is one backend round.
type ChatRequest struct {
	Model    string
	Messages []message.Message
	Tools    []Tool
	// ToolChoice forces the model to call this tool. Nil leaves the choice to the model.
	ToolChoice *Tool
}

// ChatService is a chat backend.
//
// CompletionStream calls onUpdate once per delta, sequentially, on the calling
// goroutine. Deltas of one response share a message ID. If onUpdate returns an
// error the stream is abandoned and that error is returned.
type ChatService interface {
	Completion(ctx context.Context, req ChatRequest) (message.Message, error)
	CompletionStream(ctx context.Context, req ChatRequest, onUpdate func(message.Message) error) error
}

// ToolResult is a handler's answer to one tool call, or the reduced answer of
// all calls in a message.
type ToolResult struct {
	Messages       []message.Message
	ShouldContinue bool
}

// ToolHandler executes one tool call. A returned error, or a panic, is turned
// into an "Unknown tool." message that stops the run.
type ToolHandler func(ctx context.Context, call message.ToolCall) (ToolResult, error)
