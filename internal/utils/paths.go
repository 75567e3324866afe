package utils

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrEmptyPath signals an empty relative path.
	ErrEmptyPath = errors.New("path is empty")
	// ErrPathEscape signals a relative path that would leave its root.
	ErrPathEscape = errors.New("path escapes its root directory")
)

// HasTraversal reports whether rel contains a parent-directory segment, is
// absolute, or carries a NUL byte. Both slash styles count as separators.
func HasTraversal(rel string) bool {
	if strings.ContainsRune(rel, 0) {
		return true
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) || filepath.VolumeName(rel) != "" {
		return true
	}
	for _, seg := range strings.FieldsFunc(rel, func(r rune) bool { return r == '/' || r == '\\' }) {
		if seg == ".." {
			return true
		}
	}
	return false
}

// SafeJoin joins rel under root and returns the absolute, cleaned result.
// Traversal segments are rejected rather than neutralized. When the target
// (or its nearest existing parent) is reachable through symlinks, the real
// path is checked against the real root as well.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", ErrEmptyPath
	}
	if HasTraversal(rel) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolve root: %w", err)
	}
	joined := filepath.Join(absRoot, filepath.FromSlash(rel))
	if !within(absRoot, joined) || joined == absRoot {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}

	realRoot, err := filepath.EvalSymlinks(absRoot)
	if err != nil {
		// The root does not exist yet, so nothing below it can be a symlink.
		return joined, nil
	}
	if real, ok := realExistingPrefix(joined); ok && !within(realRoot, real) {
		return "", fmt.Errorf("%w: %q", ErrPathEscape, rel)
	}
	return joined, nil
}

// within reports whether path is root or lies below it.
func within(root, path string) bool {
	r, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return r == "." || (r != ".." && !strings.HasPrefix(r, ".."+string(filepath.Separator)))
}

// realExistingPrefix resolves symlinks on the longest existing prefix of path.
func realExistingPrefix(path string) (string, bool) {
	for p := path; ; {
		if _, err := os.Lstat(p); err == nil {
			real, err := filepath.EvalSymlinks(p)
			if err != nil {
				return "", false
			}
			return real, true
		}
		parent := filepath.Dir(p)
		if parent == p {
			return "", false
		}
		p = parent
	}
}
