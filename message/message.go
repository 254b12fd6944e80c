package message

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Kind controls where a message is visible.
type Kind string

const (
	// KindNone messages are sent to the backend and shown.
	KindNone Kind = ""
	// KindInstruction messages are sent to the backend but hidden unless debugging.
	KindInstruction Kind = "instruction"
	// KindLocal messages are shown but never sent.
	KindLocal Kind = "local"
	// KindError messages are shown but never sent.
	KindError Kind = "error"
)

// Role identifies the author of a message.
type Role string

const (
	// RoleSystem carries instructions for the model.
	RoleSystem Role = "system"
	// RoleAssistant is a model reply.
	RoleAssistant Role = "assistant"
	// RoleUser is a human turn.
	RoleUser Role = "user"
	// RoleTool answers one tool call, linked by ToolCallID.
	RoleTool Role = "tool"
)

// FinishReason tells why the backend stopped generating. Empty means unset.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishCancelled     FinishReason = "cancelled"
)

// Well-known metadata keys.
const (
	// MetaLabel is a short human-readable label for UIs.
	MetaLabel = "label"
	// MetaError carries the error text behind a synthesized message.
	MetaError = "error"
	// MetaIsError is "true" on tool results that report a tool failure.
	MetaIsError = "is_error"
	// MetaMemoryPrefix prefixes keys recorded from <memory key="..."> directives.
	MetaMemoryPrefix = "memory."
)

// AttachmentKind selects which reference an Attachment carries.
type AttachmentKind string

const (
	AttachmentAsset      AttachmentKind = "asset"
	AttachmentAgent      AttachmentKind = "agent"
	AttachmentAutomation AttachmentKind = "automation"
	AttachmentComponent  AttachmentKind = "component"
)

// Attachment references a binary asset, an agent, an automation, or carries an
// opaque named component with a JSON payload.
type Attachment struct {
	Kind    AttachmentKind  `json:"kind"`
	ID      string          `json:"id,omitempty"`
	Name    string          `json:"name,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// FunctionCall is the function half of a tool call. Arguments may be a partial
// JSON document while a response is still streaming.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is a model request to invoke an external function.
type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type,omitempty"`
	Function FunctionCall `json:"function"`
}

// Message is one conversational turn. Treat values as immutable: Apply and the
// other Apply* helpers return updated copies.
type Message struct {
	ID           string            `json:"id"`
	Kind         Kind              `json:"kind,omitempty"`
	Role         Role              `json:"role"`
	Content      string            `json:"content,omitempty"`
	Attachments  []Attachment      `json:"attachments,omitempty"`
	ToolCalls    []ToolCall        `json:"tool_calls,omitempty"`
	ToolCallID   string            `json:"tool_call_id,omitempty"`
	RunID        string            `json:"run_id,omitempty"`
	Name         string            `json:"name,omitempty"`
	FinishReason FinishReason      `json:"finish_reason,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Created      time.Time         `json:"created"`
	Modified     time.Time         `json:"modified"`
}

// NewID returns a fresh message identifier.
func NewID() string { return uuid.NewString() }

// New returns a message with a fresh ID and both timestamps set to now.
func New(role Role, content string) Message {
	now := time.Now()
	return Message{
		ID:       NewID(),
		Role:     role,
		Content:  content,
		Created:  now,
		Modified: now,
	}
}

// NewSystem, NewUser and NewAssistant are New with a fixed role.
func NewSystem(content string) Message    { return New(RoleSystem, content) }
func NewUser(content string) Message      { return New(RoleUser, content) }
func NewAssistant(content string) Message { return New(RoleAssistant, content) }

// NewTool returns a tool-result message answering the tool call toolCallID.
func NewTool(toolCallID, name, content string) Message {
	m := New(RoleTool, content)
	m.ToolCallID = toolCallID
	m.Name = name
	return m
}

// SameRevision reports whether a and b are the same revision of the same
// logical message: equal IDs and equal modification times. Content is not
// compared.
func SameRevision(a, b Message) bool {
	return a.ID == b.ID && a.Modified.Equal(b.Modified)
}

// ToolCall returns the first tool call whose function name is name.
func (m Message) ToolCall(name string) (ToolCall, bool) {
	for _, tc := range m.ToolCalls {
		if tc.Function.Name == name {
			return tc, true
		}
	}
	return ToolCall{}, false
}

// Sendable reports whether a message of this kind may be sent to a backend.
func (k Kind) Sendable() bool {
	return k != KindLocal && k != KindError
}
