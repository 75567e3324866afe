package handlers

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"pdf-generator/internal/audit"
	"pdf-generator/internal/domain"
	"pdf-generator/internal/metrics"
	"pdf-generator/internal/pdf"
	"pdf-generator/internal/templates"
	u "pdf-generator/internal/utils"
)

const (
	endpointGenerate = "generate-pdf"
	endpointRender   = "render-template"
)

// PDFService bundles configuration and the rendering pipeline.
type PDFService struct {
	Config   *u.Config
	Resolver *templates.Resolver
	Engine   *templates.Engine
	Exporter *pdf.Exporter
	Audit    audit.Recorder

	configDir string
}

// NewPDFService wires resolver and engine from cfg around exporter. A nil
// recorder disables auditing.
func NewPDFService(cfg u.Config, exporter *pdf.Exporter, rec audit.Recorder) (*PDFService, error) {
	if exporter == nil {
		return nil, errors.New("pdf exporter is required")
	}
	resolver, err := templates.NewResolver(cfg.Templates.Root, cfg.Templates.Extension)
	if err != nil {
		return nil, err
	}
	engine, err := templates.NewEngine(cfg.Templates.Root, cfg.Templates.Cache)
	if err != nil {
		return nil, err
	}
	configDir := cfg.Templates.ConfigDir
	if configDir == "" {
		configDir = "."
	}
	if rec == nil {
		rec = audit.Nop{}
	}
	return &PDFService{
		Config:    &cfg,
		Resolver:  resolver,
		Engine:    engine,
		Exporter:  exporter,
		Audit:     rec,
		configDir: configDir,
	}, nil
}

// HandleGeneratePDF renders a template with the posted context and writes
// the resulting PDF below the output root.
func (svc *PDFService) HandleGeneratePDF(c *fiber.Ctx) error {
	start := time.Now()

	req, err := parseGenerateRequest(c)
	if err != nil {
		return fail(c, endpointGenerate, err)
	}
	opts, err := pageOptions(req, *svc.Config)
	if err != nil {
		return fail(c, endpointGenerate, err)
	}

	html, err := svc.render(req.Template, req.Context, endpointGenerate)
	if err != nil {
		return fail(c, endpointGenerate, err)
	}

	convStart := time.Now()
	res, err := svc.Exporter.Export(c.UserContext(), html, req.Output, opts)
	metrics.ConversionDuration.Observe(time.Since(convStart).Seconds())
	if err != nil {
		return fail(c, endpointGenerate, err)
	}
	metrics.PDFBytes.Observe(float64(res.Size))
	metrics.RequestsTotal.WithLabelValues(endpointGenerate, metrics.OutcomeOK).Inc()

	rid := requestID(c)
	svc.record(c.UserContext(), audit.Record{
		RequestID: rid,
		Template:  req.Template,
		Path:      res.Path,
		Bytes:     res.Size,
		Duration:  time.Since(start),
		CreatedAt: time.Now().UTC(),
	})
	u.Info("PDF generated", "template", req.Template, "output", req.Output, "bytes", res.Size, "request_id", rid)

	return c.JSON(fiber.Map{
		"success": true,
		"message": "PDF generated successfully",
		"path":    res.Path,
	})
}

// HandleRenderTemplate renders the template named by a render config file
// and returns the HTML. The config's output fields are ignored.
func (svc *PDFService) HandleRenderTemplate(c *fiber.Ctx) error {
	name := c.Query("config", svc.Config.Templates.DefaultConfig)

	raw, err := svc.readRenderConfig(name)
	if err != nil {
		return fail(c, endpointRender, err)
	}
	rc, err := parseRenderConfig(raw)
	if err != nil {
		return fail(c, endpointRender, err)
	}

	html, err := svc.render(rc.Template, rc.Context, endpointRender)
	if err != nil {
		return fail(c, endpointRender, err)
	}
	metrics.RequestsTotal.WithLabelValues(endpointRender, metrics.OutcomeOK).Inc()

	c.Type("html", "utf-8")
	return c.SendString(html)
}

// render resolves name and executes it with vars.
func (svc *PDFService) render(name string, vars map[string]interface{}, endpoint string) (string, error) {
	path, err := svc.Resolver.Resolve(name)
	if err != nil {
		return "", err
	}
	if vars == nil {
		vars = map[string]interface{}{}
	}

	start := time.Now()
	html, err := svc.Engine.Render(path, vars)
	metrics.RenderDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		return "", err
	}
	u.Debug("Template rendered", "template", svc.Resolver.Name(path), "endpoint", endpoint, "bytes", len(html))
	return html, nil
}

// readRenderConfig reads a bare config file name from the config directory.
func (svc *PDFService) readRenderConfig(name string) ([]byte, error) {
	if name == "" || u.HasTraversal(name) || strings.ContainsAny(name, `/\`) {
		return nil, fmt.Errorf("%w: invalid config name %q", domain.ErrBadInput, name)
	}
	path, err := u.SafeJoin(svc.configDir, name)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid config name %q", domain.ErrBadInput, name)
	}

	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: config %q", domain.ErrNotFound, name)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading config %q", domain.ErrNotFound, name)
	}
	return raw, nil
}

func (svc *PDFService) record(ctx context.Context, rec audit.Record) {
	if err := svc.Audit.Record(ctx, rec); err != nil {
		u.Warn("Audit record failed", "template", rec.Template, "request_id", rec.RequestID, "error", err)
	}
}
