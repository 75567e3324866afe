package templates

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/flosch/pongo2/v6"

	"pdf-generator/internal/domain"
)

// Engine renders Jinja-style templates with pongo2. Compiled templates are
// cached per path and recompiled when the file's mtime or size changes.
type Engine struct {
	root     string
	set      *pongo2.TemplateSet
	useCache bool
	cache    sync.Map // path -> *compiled
}

type compiled struct {
	modTime time.Time
	size    int64
	tpl     *pongo2.Template
}

// NewEngine creates an Engine whose includes and extends resolve below root.
func NewEngine(root string, useCache bool) (*Engine, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve template root: %w", err)
	}
	loader, err := pongo2.NewLocalFileSystemLoader(abs)
	if err != nil {
		return nil, fmt.Errorf("template loader: %w", err)
	}
	return &Engine{
		root:     abs,
		set:      pongo2.NewSet("pdf-generator", loader),
		useCache: useCache,
	}, nil
}

// Render executes the template at path with data, which must be a JSON
// object decoded as map[string]interface{}.
func (e *Engine) Render(path string, data interface{}) (string, error) {
	vars, ok := data.(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("%w: context must be a JSON object", domain.ErrBadInput)
	}

	tpl, err := e.template(path)
	if err != nil {
		return "", err
	}

	out, err := tpl.Execute(templateContext(vars))
	if err != nil {
		return "", e.renderError(path, err)
	}
	return out, nil
}

// ContextKey exposes the whole render context, including keys that are not
// valid identifiers. A top-level key of the same name takes precedence.
const ContextKey = "context"

// templateContext drops top-level keys pongo2 rejects as identifiers
// (anything outside [A-Za-z0-9_]); no template can refer to them directly.
func templateContext(vars map[string]interface{}) pongo2.Context {
	ctx := make(pongo2.Context, len(vars)+1)
	for k, v := range vars {
		if isIdentifier(k) {
			ctx[k] = v
		}
	}
	if _, ok := ctx[ContextKey]; !ok {
		ctx[ContextKey] = vars
	}
	return ctx
}

func isIdentifier(key string) bool {
	if key == "" {
		return false
	}
	for i := 0; i < len(key); i++ {
		c := key[i]
		if !(c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z') {
			return false
		}
	}
	return true
}

func (e *Engine) template(path string) (*pongo2.Template, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: template %q", domain.ErrNotFound, e.name(path))
	}

	if e.useCache {
		if v, ok := e.cache.Load(path); ok {
			c := v.(*compiled)
			if c.modTime.Equal(info.ModTime()) && c.size == info.Size() {
				return c.tpl, nil
			}
		}
	}

	tpl, err := e.set.FromFile(path)
	if err != nil {
		return nil, e.renderError(path, err)
	}
	if e.useCache {
		// Concurrent misses may compile twice; the last store wins.
		e.cache.Store(path, &compiled{modTime: info.ModTime(), size: info.Size(), tpl: tpl})
	}
	return tpl, nil
}

// renderError converts a pongo2 error into ErrRenderFailure with a message
// that names the logical template instead of its absolute path.
func (e *Engine) renderError(path string, err error) error {
	name := e.name(path)

	var msg string
	var perr *pongo2.Error
	if errors.As(err, &perr) {
		cause := "template error"
		if perr.OrigError != nil {
			cause = perr.OrigError.Error()
		}
		if perr.Line > 0 {
			msg = fmt.Sprintf("%s (line %d, column %d): %s", name, perr.Line, perr.Column, cause)
		} else {
			msg = fmt.Sprintf("%s: %s", name, cause)
		}
	} else {
		msg = fmt.Sprintf("%s: %v", name, err)
	}

	msg = strings.ReplaceAll(msg, e.root+string(filepath.Separator), "")
	return fmt.Errorf("%w: %s", domain.ErrRenderFailure, msg)
}

func (e *Engine) name(path string) string {
	rel, err := filepath.Rel(e.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
