package tools

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// FinishInput is the argument of the finish tool.
type FinishInput struct {
	Summary string `json:"summary" jsonschema_description:"Short summary of what was done, shown to the user."`
}

// FinishDefinition ends the run. Its result is the summary itself.
var FinishDefinition = ToolDefinition{
	Name:        "finish",
	Description: "Call when the task is complete. Ends the run; no further model turns follow.",
	InputSchema: GenerateSchema[FinishInput](),
	Function:    Finish,
	Terminal:    true,
}

// Finish returns the trimmed summary. An empty summary is an error.
func Finish(ctx context.Context, input json.RawMessage) (string, error) {
	var in FinishInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	summary := strings.TrimSpace(in.Summary)
	if summary == "" {
		return "", errors.New("summary must not be empty")
	}
	return summary, nil
}
