package tools

import (
	"context"
	"encoding/json"

	"github.com/invopop/jsonschema"
)

// ToolDefinition is a tool the model may call.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
	Function    func(ctx context.Context, input json.RawMessage) (string, error)
	// Terminal tools end the run once their result is recorded.
	Terminal bool
}

// GenerateSchema reflects T into an inline JSON Schema. Unknown properties are
// rejected and no $ref indirection is emitted, which is what providers accept.
func GenerateSchema[T any]() *jsonschema.Schema {
	reflector := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return reflector.Reflect(v)
}
