package runner

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/petasbytes/chatloop/message"
)

// Extraction failures returned by Response.ToolCall and Response.Decode.
var (
	ErrMissingMessage   = errors.New("runner: response has no messages")
	ErrMissingToolCalls = errors.New("runner: last message has no tool calls")
	ErrToolCallNotFound = errors.New("runner: tool call not found")
)

// ArgumentsError reports tool-call arguments that do not decode into the
// requested type.
type ArgumentsError struct {
	Name string
	Err  error
}

func (e *ArgumentsError) Error() string {
	return fmt.Sprintf("runner: decode arguments of %q: %v", e.Name, e.Err)
}

func (e *ArgumentsError) Unwrap() error { return e.Err }

// Response holds the messages a run produced, excluding the seed history.
type Response struct {
	RunID    string
	Messages []message.Message
	// Truncated is set when the run ended only because it hit the loop limit.
	Truncated bool
	// Iterations is the number of backend requests made.
	Iterations int
}

// Last returns the trailing message.
func (r *Response) Last() (message.Message, bool) {
	if r == nil {
		return message.Message{}, false
	}
	return message.Last(r.Messages)
}

// ToolCall returns the first call named name in the trailing message.
func (r *Response) ToolCall(name string) (message.ToolCall, error) {
	last, ok := r.Last()
	if !ok {
		return message.ToolCall{}, ErrMissingMessage
	}
	if len(last.ToolCalls) == 0 {
		return message.ToolCall{}, ErrMissingToolCalls
	}
	call, ok := last.ToolCall(name)
	if !ok {
		return message.ToolCall{}, fmt.Errorf("%w: %q", ErrToolCallNotFound, name)
	}
	return call, nil
}

// Decode unmarshals the arguments of the trailing message's call named name
// into v.
func (r *Response) Decode(name string, v any) error {
	call, err := r.ToolCall(name)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), v); err != nil {
		return &ArgumentsError{Name: name, Err: err}
	}
	return nil
}

// DecodeToolArguments is the typed form of Response.Decode.
func DecodeToolArguments[T any](r *Response, name string) (T, error) {
	var v T
	err := r.Decode(name, &v)
	return v, err
}
