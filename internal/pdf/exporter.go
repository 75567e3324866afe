package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"pdf-generator/internal/domain"
	u "pdf-generator/internal/utils"
)

var pdfMagic = []byte("%PDF")

// Result describes an export. Path is set when the PDF was persisted;
// otherwise Data holds the document.
type Result struct {
	Path string
	Size int
	Data []byte
}

// Exporter converts HTML to PDF and persists it below an output root.
type Exporter struct {
	conv Converter
	root string
}

// NewExporter creates an Exporter writing below outputRoot.
func NewExporter(conv Converter, outputRoot string) (*Exporter, error) {
	if conv == nil {
		return nil, errors.New("no pdf converter configured")
	}
	abs, err := filepath.Abs(outputRoot)
	if err != nil {
		return nil, fmt.Errorf("resolve output root: %w", err)
	}
	return &Exporter{conv: conv, root: abs}, nil
}

// Converter returns the underlying converter.
func (e *Exporter) Converter() Converter { return e.conv }

// Export converts htmlDoc and, when target is non-empty, writes the PDF to
// target below the output root. The result is returned only after the file
// is fully in place.
func (e *Exporter) Export(ctx context.Context, htmlDoc, target string, opts PageOptions) (*Result, error) {
	var dest string
	if target != "" {
		p, err := u.SafeJoin(e.root, target)
		if err != nil {
			return nil, fmt.Errorf("%w: invalid output path %q", domain.ErrBadInput, target)
		}
		dest = p
	}

	data, err := e.conv.Convert(ctx, htmlDoc, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrConversionFailure, err)
	}
	if !bytes.HasPrefix(data, pdfMagic) {
		return nil, fmt.Errorf("%w: converter returned no PDF data", domain.ErrConversionFailure)
	}

	if dest == "" {
		return &Result{Size: len(data), Data: data}, nil
	}
	if err := writeAtomic(dest, data); err != nil {
		u.Error("Writing PDF failed", "path", dest, "error", err)
		return nil, fmt.Errorf("%w: %s", domain.ErrWriteFailure, target)
	}
	return &Result{Path: dest, Size: len(data)}, nil
}

// writeAtomic writes data next to dest and renames it into place, so readers
// never observe a partial file.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".pdf-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	// #nosec G302 -- generated PDFs are meant to be readable
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}
