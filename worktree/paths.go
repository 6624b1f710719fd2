package worktree

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

func realPathOrAbs(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return abs, nil
		}
		return "", err
	}
	return real, nil
}

// normalizePath is realPathOrAbs that falls back to a cleaned path.
func normalizePath(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	if real, err := realPathOrAbs(path); err == nil {
		return real
	}
	return filepath.Clean(path)
}

func samePath(a, b string) bool {
	return normalizePath(a) == normalizePath(b)
}

// isWithin reports whether path is root or below it.
func isWithin(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
