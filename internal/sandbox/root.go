package sandbox

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Root is a pair of absolute, symlink-resolved directories bounding tool reads
// and writes.
type Root struct {
	Read  string
	Write string
}

// NewRoot resolves read and write roots. An empty read root is the working
// directory; an empty write root is the read root.
func NewRoot(read, write string) (Root, error) {
	if read == "" {
		cwd, err := os.Getwd()
		if err != nil {
			return Root{}, fmt.Errorf("sandbox: getwd: %w", err)
		}
		read = cwd
	}
	if write == "" {
		write = read
	}

	var err error
	if read, err = resolve(read); err != nil {
		return Root{}, err
	}
	if write, err = resolve(write); err != nil {
		return Root{}, err
	}
	return Root{Read: read, Write: write}, nil
}

func resolve(dir string) (string, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("sandbox: abs %q: %w", dir, err)
	}
	// Non-existent roots are kept as-is.
	if r, err := filepath.EvalSymlinks(abs); err == nil {
		abs = r
	}
	return abs, nil
}

var (
	defaultOnce sync.Once
	defaultRoot Root
	defaultErr  error
)

// Default returns the process-wide root from AGT_READ_ROOT and AGT_WRITE_ROOT,
// resolved on first use.
func Default() (Root, error) {
	defaultOnce.Do(func() {
		defaultRoot, defaultErr = NewRoot(os.Getenv("AGT_READ_ROOT"), os.Getenv("AGT_WRITE_ROOT"))
	})
	return defaultRoot, defaultErr
}

// ValidateRelPath resolves relPath under absRoot for reading. It rejects
// absolute paths, traversal and symlink escapes, and anything under .git/ or
// .agent/.
func ValidateRelPath(absRoot, relPath string) (string, error) {
	candidate, rel, err := confine(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underPrivateDir(rel) {
		return "", ToolError{Code: CodeDeniedRead, Message: "reads under .git/ or .agent/ are not allowed"}
	}
	return candidate, nil
}

// ValidateWritePath resolves relPath under absRoot for writing. On top of the
// read rules it refuses go.mod and go.sum anywhere in the tree.
func ValidateWritePath(absRoot, relPath string) (string, error) {
	candidate, rel, err := confine(absRoot, relPath)
	if err != nil {
		return "", err
	}
	if underPrivateDir(rel) {
		return "", ToolError{Code: CodeDeniedWrite, Message: "writes under .git/ or .agent/ are not allowed"}
	}
	switch filepath.Base(rel) {
	case "go.mod", "go.sum":
		return "", ToolError{Code: CodeDeniedWrite, Message: "module files are read-only"}
	}
	return candidate, nil
}

// confine joins relPath to absRoot, resolves symlinks on the deepest existing
// ancestor and checks the result is still under absRoot.
func confine(absRoot, relPath string) (candidate, rel string, err error) {
	if filepath.IsAbs(relPath) {
		return "", "", ToolError{Code: CodeOutsideSandbox, Message: "absolute paths are not allowed"}
	}
	candidate = filepath.Join(absRoot, filepath.Clean(relPath))

	if resolved, err := filepath.EvalSymlinks(candidate); err == nil {
		candidate = resolved
	} else if parent, err := filepath.EvalSymlinks(filepath.Dir(candidate)); err == nil {
		// The leaf may not exist yet; a symlinked parent still reveals an escape.
		candidate = filepath.Join(parent, filepath.Base(candidate))
	}

	rel, err = filepath.Rel(absRoot, candidate)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", "", ToolError{Code: CodeOutsideSandbox, Message: "requested path resolves outside the sandbox root"}
	}
	return candidate, filepath.ToSlash(rel), nil
}

func underPrivateDir(rel string) bool {
	for _, dir := range []string{".git", ".agent"} {
		if rel == dir || strings.HasPrefix(rel, dir+"/") {
			return true
		}
	}
	return false
}
