package handlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/xeipuuv/gojsonschema"

	"pdf-generator/internal/domain"
	"pdf-generator/internal/pdf"
	u "pdf-generator/internal/utils"
)

// GenerateRequest is the body of POST /api/generate-pdf.
type GenerateRequest struct {
	Template    string                 `json:"template"`
	Context     map[string]interface{} `json:"context"`
	Output      string                 `json:"output"`
	Format      string                 `json:"format,omitempty"`
	Orientation string                 `json:"orientation,omitempty"`
	Margin      *float64               `json:"margin,omitempty"`
}

// RenderConfig is the JSON file read by GET /api/render-template. Output and
// OutputPath are accepted for compatibility but never used.
type RenderConfig struct {
	Template   string                 `json:"template"`
	Context    map[string]interface{} `json:"context"`
	Output     string                 `json:"output,omitempty"`
	OutputPath string                 `json:"output_path,omitempty"`
}

const generateRequestSchema = `{
	"type": "object",
	"required": ["template", "context", "output"],
	"properties": {
		"template":    {"type": "string", "minLength": 1},
		"context":     {"type": "object"},
		"output":      {"type": "string", "minLength": 1},
		"format":      {"type": "string"},
		"orientation": {"type": "string", "enum": ["portrait", "landscape", "PORTRAIT", "LANDSCAPE", "Portrait", "Landscape", ""]},
		"margin":      {"type": "number", "minimum": 0, "maximum": 2}
	}
}`

const renderConfigSchema = `{
	"type": "object",
	"required": ["template", "context"],
	"properties": {
		"template":    {"type": "string", "minLength": 1},
		"context":     {"type": "object"},
		"output":      {"type": "string"},
		"output_path": {"type": "string"}
	}
}`

var (
	generateSchema = mustSchema(generateRequestSchema)
	renderSchema   = mustSchema(renderConfigSchema)
)

func mustSchema(src string) *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(src))
	if err != nil {
		panic(fmt.Sprintf("invalid built-in schema: %v", err))
	}
	return s
}

// validateDocument checks raw JSON against schema. Syntax errors and schema
// violations are both reported as ErrBadInput.
func validateDocument(schema *gojsonschema.Schema, raw []byte) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: JSON body required", domain.ErrBadInput)
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%w: invalid JSON", domain.ErrBadInput)
	}

	result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", domain.ErrBadInput, err)
	}
	if !result.Valid() {
		msgs := make([]string, len(result.Errors()))
		for i, desc := range result.Errors() {
			msgs[i] = desc.String()
		}
		return fmt.Errorf("%w: %s", domain.ErrBadInput, strings.Join(msgs, "; "))
	}
	return nil
}

// parseGenerateRequest runs the content type, syntax and schema checks of
// the generate-pdf endpoint, in that order.
func parseGenerateRequest(c *fiber.Ctx) (*GenerateRequest, error) {
	if !c.Is("json") {
		return nil, fmt.Errorf("%w: Content-Type must be application/json", domain.ErrUnsupportedMediaType)
	}

	body := c.Body()
	if err := validateDocument(generateSchema, body); err != nil {
		return nil, err
	}

	var req GenerateRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrBadInput, err)
	}
	return &req, nil
}

// parseRenderConfig validates and decodes a render config document.
func parseRenderConfig(raw []byte) (*RenderConfig, error) {
	if err := validateDocument(renderSchema, raw); err != nil {
		return nil, err
	}
	var rc RenderConfig
	if err := json.Unmarshal(raw, &rc); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", domain.ErrBadInput, err)
	}
	return &rc, nil
}

// pageOptions derives paper geometry from the optional request fields.
func pageOptions(req *GenerateRequest, cfg u.Config) (pdf.PageOptions, error) {
	format := strings.ToUpper(strings.TrimSpace(req.Format))
	if format == "" {
		format = cfg.PDF.DefaultPaper
	}
	paper, ok := cfg.PDF.PaperSizes[format]
	if !ok {
		return pdf.PageOptions{}, fmt.Errorf("%w: unsupported format %q", domain.ErrBadInput, req.Format)
	}

	if strings.EqualFold(req.Orientation, "landscape") {
		paper.Width, paper.Height = paper.Height, paper.Width
	}

	margin := cfg.PDF.DefaultMargin
	if req.Margin != nil {
		margin = *req.Margin
	}
	return pdf.PageOptions{Paper: paper, Margin: margin}, nil
}
