package tools

import (
	"context"
	"encoding/json"
	"strings"
	"unicode/utf8"

	"github.com/petasbytes/chatloop/internal/sandbox"
)

type ReadFileInput struct {
	Path   string `json:"path" jsonschema_description:"Relative file path."`
	Offset int    `json:"offset,omitempty" jsonschema_description:"Line offset (0-based) to start reading from."`
	Limit  int    `json:"limit,omitempty" jsonschema_description:"Maximum lines to return from offset (default 200)."`
}

const (
	defaultReadFileLimit = 200
	maxLineRunes         = 2000
	maxOutputRunes       = 12_000
)

// TruncationSentinel ends a read_file result that does not hold every
// requested line in full.
const TruncationSentinel = "-- truncated; use offset/limit to fetch more --\n"

var ReadFileDefinition = ToolDefinition{
	Name:        "read_file",
	Description: "Read the contents of a file addressed by a relative file path within the workspace. Directory paths and unsafe paths are rejected.",
	InputSchema: GenerateSchema[ReadFileInput](),
	Function:    ReadFile,
}

// ReadFile returns a window of lines of a sandboxed file. Offset is clamped
// to [0, lines] and a non-positive limit means 200. Lines longer than 2000
// runes and outputs longer than 12000 runes are cut, and any cut, including
// lines left past the window, is signalled by TruncationSentinel.
func ReadFile(ctx context.Context, input json.RawMessage) (string, error) {
	var in ReadFileInput
	if err := json.Unmarshal(input, &in); err != nil {
		return "", err
	}
	root, err := sandbox.Default()
	if err != nil {
		return "", err
	}
	content, err := root.ReadFile(in.Path)
	if err != nil {
		return "", err
	}

	lines := strings.Split(content, "\n")
	offset := min(max(in.Offset, 0), len(lines))
	limit := in.Limit
	if limit <= 0 {
		limit = defaultReadFileLimit
	}
	end := min(offset+limit, len(lines))

	window := lines[offset:end]
	truncated := end < len(lines)
	for i, line := range window {
		if cut, ok := clampRunes(line, maxLineRunes); ok {
			window[i] = cut
			truncated = true
		}
	}

	out := strings.Join(window, "\n")
	if cut, ok := clampRunes(out, maxOutputRunes); ok {
		out = cut
		truncated = true
	}
	if !truncated {
		return out, nil
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	return out + TruncationSentinel, nil
}

// clampRunes cuts s to at most n runes and reports whether it cut anything.
func clampRunes(s string, n int) (string, bool) {
	if utf8.RuneCountInString(s) <= n {
		return s, false
	}
	r := []rune(s)
	return string(r[:n]), true
}
