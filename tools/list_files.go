package tools

import (
	"context"
	"encoding/json"

	"github.com/petasbytes/chatloop/internal/sandbox"
)

type ListFilesInput struct {
	Path     string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from (defaults to current directory)."`
	Page     int    `json:"page,omitempty" jsonschema_description:"1-based page number (default 1)."`
	PageSize int    `json:"page_size,omitempty" jsonschema_description:"Page size (default 200)."`
}

const defaultListFilesPageSize = 200

var ListFilesDefinition = ToolDefinition{
	Name:        "list_files",
	Description: "List names of files in a directory within the workspace (non-recursive). Directories end with a slash.",
	InputSchema: GenerateSchema[ListFilesInput](),
	Function:    ListFiles,
}

// ListFiles returns one page of the sorted directory listing as a JSON array.
// Non-positive page and page_size fall back to 1 and 200; a page past the end
// is "[]".
func ListFiles(ctx context.Context, input json.RawMessage) (string, error) {
	var in ListFilesInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	page := max(in.Page, 1)
	size := in.PageSize
	if size <= 0 {
		size = defaultListFilesPageSize
	}

	root, err := sandbox.Default()
	if err != nil {
		return "", err
	}
	names, err := root.ListDir(in.Path)
	if err != nil {
		return "", err
	}

	start := (page - 1) * size
	if start >= len(names) {
		return "[]", nil
	}
	b, err := json.Marshal(names[start:min(start+size, len(names))])
	if err != nil {
		return "", err
	}
	return string(b), nil
}
