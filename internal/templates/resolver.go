package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"pdf-generator/internal/domain"
	u "pdf-generator/internal/utils"
)

// DefaultExtension is appended to logical template names.
const DefaultExtension = ".j2"

// Resolver maps logical template names to files below a template root.
type Resolver struct {
	root string
	ext  string
}

// NewResolver creates a Resolver for root. An empty ext falls back to
// DefaultExtension.
func NewResolver(root, ext string) (*Resolver, error) {
	if root == "" {
		return nil, errors.New("template root is empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve template root: %w", err)
	}
	if ext == "" {
		ext = DefaultExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return &Resolver{root: abs, ext: ext}, nil
}

// Root returns the absolute template root.
func (r *Resolver) Root() string { return r.root }

// Resolve returns the absolute path of the template file for name.
func (r *Resolver) Resolve(name string) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("%w: template name is empty", domain.ErrBadInput)
	}
	if u.HasTraversal(name) {
		return "", fmt.Errorf("%w: invalid template name %q", domain.ErrBadInput, name)
	}

	path, err := u.SafeJoin(r.root, name+r.ext)
	if err != nil {
		return "", fmt.Errorf("%w: invalid template name %q", domain.ErrBadInput, name)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", fmt.Errorf("%w: template %q", domain.ErrNotFound, name)
	}
	return path, nil
}

// Name returns the logical name for a path produced by Resolve. It is used
// to keep absolute paths out of client-facing messages.
func (r *Resolver) Name(path string) string {
	rel, err := filepath.Rel(r.root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return strings.TrimSuffix(filepath.ToSlash(rel), r.ext)
}
