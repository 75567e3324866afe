// Package domain holds the error taxonomy shared by the rendering pipeline
// and the HTTP layer. It has no transport or infrastructure dependencies.
package domain

import "errors"

var (
	// ErrBadInput covers malformed or missing fields and invalid names.
	ErrBadInput = errors.New("bad input")
	// ErrUnsupportedMediaType signals a request body that is not JSON.
	ErrUnsupportedMediaType = errors.New("unsupported media type")
	// ErrNotFound signals a missing template or render config.
	ErrNotFound = errors.New("not found")
	// ErrRenderFailure wraps template engine errors.
	ErrRenderFailure = errors.New("template rendering failed")
	// ErrConversionFailure wraps HTML to PDF conversion errors.
	ErrConversionFailure = errors.New("pdf conversion failed")
	// ErrWriteFailure wraps filesystem errors while persisting a PDF.
	ErrWriteFailure = errors.New("pdf write failed")
	// ErrAuthFailure signals missing or invalid credentials.
	ErrAuthFailure = errors.New("authentication required")
)
