package pdf

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"

	u "pdf-generator/internal/utils"
)

// PageOptions controls paper geometry. Dimensions are in inches.
type PageOptions struct {
	Paper  u.PaperSize
	Margin float64
}

// Converter turns an HTML document into PDF bytes.
type Converter interface {
	Convert(ctx context.Context, htmlDoc string, opts PageOptions) ([]byte, error)
	Close() error
}

// NewConverter builds the converter selected by cfg.PDF.Engine. baseDir is
// the directory relative asset URLs in rendered documents resolve against.
func NewConverter(cfg u.Config, baseDir string) (Converter, error) {
	if baseDir != "" {
		abs, err := filepath.Abs(baseDir)
		if err != nil {
			return nil, fmt.Errorf("resolve asset base: %w", err)
		}
		baseDir = abs
	}
	switch cfg.PDF.Engine {
	case u.EngineRod:
		return NewRodConverter(cfg, baseDir), nil
	case u.EngineChromedp, "":
		return NewChromeConverter(cfg, baseDir), nil
	default:
		return nil, fmt.Errorf("unknown pdf engine %q", cfg.PDF.Engine)
	}
}

// writeDocument stores htmlDoc in a temp file, with a <base> element pointing
// at baseDir, and returns a file:// URL for it plus a cleanup func.
func writeDocument(htmlDoc, baseDir string) (string, func(), error) {
	f, err := os.CreateTemp("", "pdf-generator-*.html")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp file: %w", err)
	}
	name := f.Name()
	cleanup := func() { _ = os.Remove(name) }

	if _, err := f.WriteString(withBase(htmlDoc, baseDir)); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("writing temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("closing temp file: %w", err)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("resolving temp file: %w", err)
	}
	return "file://" + filepath.ToSlash(abs), cleanup, nil
}

// withBase injects <base href="file://baseDir/"> right after <head>, or at
// the top of the document when there is no head element. Documents that
// already declare a base are left alone.
func withBase(htmlDoc, baseDir string) string {
	if baseDir == "" {
		return htmlDoc
	}
	lower := strings.ToLower(htmlDoc)
	if strings.Contains(lower, "<base ") {
		return htmlDoc
	}

	href := "file://" + filepath.ToSlash(baseDir)
	if !strings.HasSuffix(href, "/") {
		href += "/"
	}
	tag := `<base href="` + html.EscapeString(href) + `">`

	if idx := headTagIndex(lower); idx != -1 {
		if end := strings.Index(lower[idx:], ">"); end != -1 {
			pos := idx + end + 1
			return htmlDoc[:pos] + tag + htmlDoc[pos:]
		}
	}
	return tag + htmlDoc
}

// headTagIndex finds the opening <head> tag in a lowercased document,
// skipping look-alikes such as <header>.
func headTagIndex(lower string) int {
	from := 0
	for {
		i := strings.Index(lower[from:], "<head")
		if i == -1 {
			return -1
		}
		i += from
		next := i + len("<head")
		if next < len(lower) {
			switch lower[next] {
			case '>', '/', ' ', '\t', '\n', '\r', '\f':
				return i
			}
		}
		from = next
	}
}
