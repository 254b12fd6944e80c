package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/petasbytes/chatloop/internal/sandbox"
)

type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"Target relative file path"`
	OldStr string `json:"old_str" jsonschema_description:"Exact text to replace; must be present when editing an existing file."`
	NewStr string `json:"new_str" jsonschema_description:"New text to write or replace old_str with"`
}

var EditFileDefinition = ToolDefinition{
	Name: "edit_file",
	Description: `Create or modify a text file addressed by a relative path within the workspace.

When old_str is empty and the file doesn't exist, a new file is created.

When editing an existing file, all occurrences of old_str are replaced with new_str; old_str and new_str must be different.
`,
	InputSchema: GenerateSchema[EditFileInput](),
	Function:    EditFile,
}

var (
	errInvalidEdit    = errors.New("invalid edit parameters")
	errOldStrRequired = errors.New("old_str must be provided when editing an existing file")
	errOldStrMissing  = errors.New("old_str not found in file")
)

// EditFile creates a file (empty old_str, missing file) or replaces every
// occurrence of old_str in an existing one.
func EditFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in EditFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	if in.Path == "" || in.OldStr == in.NewStr {
		return "", errInvalidEdit
	}

	root, err := sandbox.Default()
	if err != nil {
		return "", err
	}

	old, err := root.ReadFile(in.Path)
	switch {
	case errors.Is(err, os.ErrNotExist) && in.OldStr == "":
		if err := root.WriteFile(in.Path, in.NewStr); err != nil {
			return "", err
		}
		return fmt.Sprintf("Successfully created file %s", in.Path), nil
	case err != nil:
		// Sandbox denials on the read side are reported as write denials so
		// the model sees the operation it attempted.
		var te sandbox.ToolError
		if errors.As(err, &te) && te.Code == sandbox.CodeDeniedRead {
			return "", sandbox.ToolError{Code: sandbox.CodeDeniedWrite, Message: "writes under .git/ or .agent/ are not allowed"}
		}
		return "", err
	case in.OldStr == "":
		return "", errOldStrRequired
	}

	updated := strings.ReplaceAll(old, in.OldStr, in.NewStr)
	if updated == old {
		return "", errOldStrMissing
	}
	if err := root.WriteFile(in.Path, updated); err != nil {
		return "", err
	}
	return "OK", nil
}
