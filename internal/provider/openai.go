package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// DefaultOpenAIModel is used when neither Options nor the request name a model.
const DefaultOpenAIModel = openai.GPT4oMini

var errNoChoices = errors.New("openai: response has no choices")

// emptyParameters stands in for a tool without a schema; the API requires an object.
var emptyParameters = json.RawMessage(`{"type":"object","properties":{}}`)

// OpenAI is a runner.ChatService backed by the Chat Completions API or any
// compatible endpoint.
type OpenAI struct {
	client    *openai.Client
	model     string
	maxTokens int
}

// NewOpenAI returns a Chat Completions client. BaseURL points it at a
// compatible endpoint.
func NewOpenAI(o Options) *OpenAI {
	cfg := openai.DefaultConfig(o.APIKey)
	if o.BaseURL != "" {
		cfg.BaseURL = o.BaseURL
	}
	if o.HTTPClient != nil {
		cfg.HTTPClient = o.HTTPClient
	}
	model := DefaultOpenAIModel
	if o.Model != "" {
		model = o.Model
	}
	return &OpenAI{client: openai.NewClientWithConfig(cfg), model: model, maxTokens: o.maxTokens()}
}

// Completion sends one request and converts the first choice.
func (c *OpenAI) Completion(ctx context.Context, req runner.ChatRequest) (message.Message, error) {
	res, err := c.client.CreateChatCompletion(ctx, c.request(req))
	if err != nil {
		return message.Message{}, fmt.Errorf("openai: %w", err)
	}
	if len(res.Choices) == 0 {
		return message.Message{}, errNoChoices
	}
	choice := res.Choices[0]
	out := message.Message{
		ID:           res.ID,
		Role:         message.RoleAssistant,
		Content:      choice.Message.Content,
		FinishReason: openaiFinish(choice.FinishReason),
	}
	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, message.ToolCall{
			ID:       tc.ID,
			Type:     string(tc.Type),
			Function: message.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
		})
	}
	return out, nil
}

// CompletionStream emits one delta per chunk of the first choice. Tool-call
// IDs only arrive on the first fragment of each call, so later fragments are
// matched to them by index.
func (c *OpenAI) CompletionStream(ctx context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	r := c.request(req)
	r.Stream = true
	stream, err := c.client.CreateChatCompletionStream(ctx, r)
	if err != nil {
		return fmt.Errorf("openai: %w", err)
	}
	defer stream.Close()

	ids := make(map[int]string)
	for {
		chunk, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("openai: %w", err)
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]
		delta := message.Message{
			ID:           chunk.ID,
			Role:         message.RoleAssistant,
			Content:      choice.Delta.Content,
			FinishReason: openaiFinish(choice.FinishReason),
		}
		for _, tc := range choice.Delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			if tc.ID != "" {
				ids[idx] = tc.ID
			}
			delta.ToolCalls = append(delta.ToolCalls, message.ToolCall{
				ID:       ids[idx],
				Type:     string(tc.Type),
				Function: message.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			})
		}
		if delta.Content == "" && len(delta.ToolCalls) == 0 && delta.FinishReason == "" {
			continue
		}
		if err := onUpdate(delta); err != nil {
			return err
		}
	}
}

func (c *OpenAI) request(req runner.ChatRequest) openai.ChatCompletionRequest {
	model := c.model
	if req.Model != "" {
		model = req.Model
	}
	out := openai.ChatCompletionRequest{Model: model, MaxTokens: c.maxTokens}

	for _, m := range req.Messages {
		msg := openai.ChatCompletionMessage{
			Role:       string(m.Role),
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		if m.Role != message.RoleTool {
			msg.Name = m.Name
		}
		for _, tc := range m.ToolCalls {
			typ := openai.ToolType(tc.Type)
			if typ == "" {
				typ = openai.ToolTypeFunction
			}
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:       tc.ID,
				Type:     typ,
				Function: openai.FunctionCall{Name: tc.Function.Name, Arguments: tc.Function.Arguments},
			})
		}
		out.Messages = append(out.Messages, msg)
	}

	for _, t := range req.Tools {
		def := &openai.FunctionDefinition{Name: t.Name, Description: t.Description, Parameters: emptyParameters}
		if t.Parameters != nil {
			def.Parameters = t.Parameters
		}
		out.Tools = append(out.Tools, openai.Tool{Type: openai.ToolTypeFunction, Function: def})
	}
	if req.ToolChoice != nil {
		out.ToolChoice = openai.ToolChoice{
			Type:     openai.ToolTypeFunction,
			Function: openai.ToolFunction{Name: req.ToolChoice.Name},
		}
	}
	return out
}

func openaiFinish(r openai.FinishReason) message.FinishReason {
	switch r {
	case "", openai.FinishReasonNull:
		return ""
	case openai.FinishReasonLength:
		return message.FinishLength
	case openai.FinishReasonToolCalls, openai.FinishReasonFunctionCall:
		return message.FinishToolCalls
	case openai.FinishReasonContentFilter:
		return message.FinishContentFilter
	default:
		return message.FinishStop
	}
}
