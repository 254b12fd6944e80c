package provider

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/invopop/jsonschema"

	"github.com/petasbytes/chatloop/message"
	"github.com/petasbytes/chatloop/runner"
)

// DefaultAnthropicModel is used when neither Options nor the request name a model.
const DefaultAnthropicModel = anthropic.ModelClaude3_7SonnetLatest

// Anthropic is a runner.ChatService backed by the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
}

// NewAnthropic returns a client for the Messages API. The API key defaults to
// ANTHROPIC_API_KEY.
func NewAnthropic(o Options) *Anthropic {
	var opts []option.RequestOption
	if o.APIKey != "" {
		opts = append(opts, option.WithAPIKey(o.APIKey))
	}
	if o.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(o.BaseURL))
	}
	if o.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(o.HTTPClient))
	}
	model := DefaultAnthropicModel
	if o.Model != "" {
		model = anthropic.Model(o.Model)
	}
	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     model,
		maxTokens: int64(o.maxTokens()),
	}
}

// Completion sends one request and joins the text blocks of the reply.
func (a *Anthropic) Completion(ctx context.Context, req runner.ChatRequest) (message.Message, error) {
	res, err := a.client.Messages.New(ctx, a.params(req))
	if err != nil {
		return message.Message{}, fmt.Errorf("anthropic: %w", err)
	}

	out := message.Message{
		ID:           res.ID,
		Role:         message.RoleAssistant,
		FinishReason: anthropicFinish(res.StopReason),
	}
	for _, block := range res.Content {
		switch v := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += v.Text
		case anthropic.ToolUseBlock:
			out.ToolCalls = append(out.ToolCalls, message.ToolCall{
				ID:       v.ID,
				Type:     "function",
				Function: message.FunctionCall{Name: v.Name, Arguments: string(v.Input)},
			})
		}
	}
	return out, nil
}

// CompletionStream emits one delta per text or tool-input fragment. Tool-use
// blocks announce their ID and name at block start; later input fragments are
// matched to that ID by block index.
func (a *Anthropic) CompletionStream(ctx context.Context, req runner.ChatRequest, onUpdate func(message.Message) error) error {
	stream := a.client.Messages.NewStreaming(ctx, a.params(req))
	defer stream.Close()

	var id string
	calls := make(map[int64]string)
	emit := func(d message.Message) error {
		d.ID = id
		d.Role = message.RoleAssistant
		return onUpdate(d)
	}

	for stream.Next() {
		var err error
		switch ev := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			id = ev.Message.ID
		case anthropic.ContentBlockStartEvent:
			switch b := ev.ContentBlock.AsAny().(type) {
			case anthropic.TextBlock:
				if b.Text != "" {
					err = emit(message.Message{Content: b.Text})
				}
			case anthropic.ToolUseBlock:
				calls[ev.Index] = b.ID
				err = emit(message.Message{ToolCalls: []message.ToolCall{{
					ID:       b.ID,
					Type:     "function",
					Function: message.FunctionCall{Name: b.Name},
				}}})
			}
		case anthropic.ContentBlockDeltaEvent:
			switch d := ev.Delta.AsAny().(type) {
			case anthropic.TextDelta:
				err = emit(message.Message{Content: d.Text})
			case anthropic.InputJSONDelta:
				if callID, ok := calls[ev.Index]; ok && d.PartialJSON != "" {
					err = emit(message.Message{ToolCalls: []message.ToolCall{{
						ID:       callID,
						Function: message.FunctionCall{Arguments: d.PartialJSON},
					}}})
				}
			}
		case anthropic.MessageDeltaEvent:
			if ev.Delta.StopReason != "" {
				err = emit(message.Message{FinishReason: anthropicFinish(ev.Delta.StopReason)})
			}
		}
		if err != nil {
			return err
		}
	}
	if err := stream.Err(); err != nil {
		return fmt.Errorf("anthropic: %w", err)
	}
	return nil
}

func (a *Anthropic) params(req runner.ChatRequest) anthropic.MessageNewParams {
	model := a.model
	if req.Model != "" {
		model = anthropic.Model(req.Model)
	}
	params := anthropic.MessageNewParams{
		Model:     model,
		MaxTokens: a.maxTokens,
	}

	for _, m := range req.Messages {
		if m.Role == message.RoleSystem {
			if m.Content != "" {
				params.System = append(params.System, anthropic.TextBlockParam{Text: m.Content})
			}
			continue
		}
		role, blocks := anthropicBlocks(m)
		if len(blocks) == 0 {
			continue
		}
		// Tool results travel as user content; consecutive same-role
		// messages share one turn so results stay ahead of any text.
		if n := len(params.Messages); n > 0 && params.Messages[n-1].Role == role {
			params.Messages[n-1].Content = append(params.Messages[n-1].Content, blocks...)
			continue
		}
		params.Messages = append(params.Messages, anthropic.MessageParam{Role: role, Content: blocks})
	}

	for _, t := range req.Tools {
		params.Tools = append(params.Tools, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        t.Name,
			Description: anthropic.String(t.Description),
			InputSchema: anthropicSchema(t.Parameters),
		}})
	}
	if req.ToolChoice != nil {
		params.ToolChoice = anthropic.ToolChoiceParamOfTool(req.ToolChoice.Name)
	}
	return params
}

func anthropicBlocks(m message.Message) (anthropic.MessageParamRole, []anthropic.ContentBlockParamUnion) {
	switch m.Role {
	case message.RoleTool:
		isError := m.Metadata[message.MetaIsError] == "true"
		return anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{
			anthropic.NewToolResultBlock(m.ToolCallID, m.Content, isError),
		}
	case message.RoleAssistant:
		var blocks []anthropic.ContentBlockParamUnion
		if m.Content != "" {
			blocks = append(blocks, anthropic.NewTextBlock(m.Content))
		}
		for _, c := range m.ToolCalls {
			args := c.Function.Arguments
			if args == "" {
				args = "{}"
			}
			blocks = append(blocks, anthropic.NewToolUseBlock(c.ID, json.RawMessage(args), c.Function.Name))
		}
		return anthropic.MessageParamRoleAssistant, blocks
	default:
		if m.Content == "" {
			return anthropic.MessageParamRoleUser, nil
		}
		return anthropic.MessageParamRoleUser, []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(m.Content)}
	}
}

func anthropicSchema(s *jsonschema.Schema) anthropic.ToolInputSchemaParam {
	var p anthropic.ToolInputSchemaParam
	if s == nil {
		return p
	}
	if s.Properties != nil {
		p.Properties = s.Properties
	}
	p.Required = s.Required
	return p
}

func anthropicFinish(r anthropic.StopReason) message.FinishReason {
	switch r {
	case "":
		return ""
	case anthropic.StopReasonMaxTokens:
		return message.FinishLength
	case anthropic.StopReasonToolUse:
		return message.FinishToolCalls
	case anthropic.StopReasonRefusal:
		return message.FinishContentFilter
	default:
		return message.FinishStop
	}
}
