package sandbox

import (
	"os"
	"path/filepath"
	"sort"
)

// ReadFile returns the content of the file at relPath under the read root.
func (r Root) ReadFile(relPath string) (string, error) {
	abs, err := ValidateRelPath(r.Read, relPath)
	if err != nil {
		return "", err
	}
	fi, err := os.Stat(abs)
	if err != nil {
		return "", err
	}
	if fi.IsDir() {
		return "", ToolError{Code: CodeNotAFile, Message: "path is a directory"}
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// WriteFile writes content to relPath under the write root, creating parent
// directories as needed.
func (r Root) WriteFile(relPath, content string) error {
	abs, err := ValidateWritePath(r.Write, relPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return err
	}
	return os.WriteFile(abs, []byte(content), 0o644)
}

// ListDir returns the sorted entry names of the directory at relDir under the
// read root. Directories carry a trailing "/". It does not recurse.
func (r Root) ListDir(relDir string) ([]string, error) {
	if relDir == "" {
		relDir = "."
	}
	abs, err := ValidateRelPath(r.Read, relDir)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
