package runner_test

import (
	"context"
	"fmt"
	"sync"

	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// fakeService records every request and answers from reply. In streaming mode
// the reply is split into deltas by deltas, when set.
type fakeService struct {
	mu       sync.Mutex
	requests []runner.ChatRequest
	reply    func(i int, req runner.ChatRequest) (message.Message, error)
	deltas   func(i int, req runner.ChatRequest) ([]message.Message, error)
}

func (f *fakeService) record(req runner.ChatRequest) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	return len(f.requests) - 1
}

func (f *fakeService) Requests() []runner.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]runner.ChatRequest(nil), f.requests...)
}

func (f *fakeService) Completion(ctx context.Context, req runner.ChatRequest) (message.Message, error) {
	i := f.record(req)
	return f.reply(i, req)
}

func (f *fakeService) CompletionStream(ctx context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	i := f.record(req)
	var ds []message.Message
	if f.deltas != nil {
		var err error
		if ds, err = f.deltas(i, req); err != nil {
			return err
		}
	} else {
		m, err := f.reply(i, req)
		if err != nil {
			return err
		}
		ds = []message.Message{m}
	}
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := onUpdate(d); err != nil {
			return fmt.Errorf("fake stream: %w", err)
		}
	}
	return nil
}

// toolCallReply answers every request with one call to tool.
func toolCallReply(tool string) func(int, runner.ChatRequest) (message.Message, error) {
	return func(i int, _ runner.ChatRequest) (message.Message, error) {
		m := message.NewAssistant("")
		m.FinishReason = message.FinishToolCalls
		m.ToolCalls = []message.ToolCall{{
			ID:       fmt.Sprintf("call-%d", i),
			Type:     "function",
			Function: message.FunctionCall{Name: tool, Arguments: `{"n":1}`},
		}}
		return m, nil
	}
}

func textReply(text string) func(int, runner.ChatRequest) (message.Message, error) {
	return func(int, runner.ChatRequest) (message.Message, error) {
		m := message.NewAssistant(text)
		m.FinishReason = message.FinishStop
		return m, nil
	}
}

// echoHandler answers each call with a tool message and the given continuation.
func echoHandler(cont bool) runner.ToolHandler {
	return func(_ context.Context, call message.ToolCall) (runner.ToolResult, error) {
		return runner.ToolResult{
			Messages:       []message.Message{message.NewTool(call.ID, call.Function.Name, "ok:"+call.Function.Name)},
			ShouldContinue: cont,
		}, nil
	}
}

func withCalls(names ...string) message.Message {
	m := message.NewAssistant("")
	m.RunID = "run-x"
	for i, n := range names {
		m.ToolCalls = append(m.ToolCalls, message.ToolCall{
			ID:       fmt.Sprintf("c%d", i),
			Function: message.FunctionCall{Name: n},
		})
	}
	return m
}
