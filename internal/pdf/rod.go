package pdf

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	u "pdf-generator/internal/utils"
)

// RodConverter renders PDFs with go-rod. The browser is launched on first
// use and shared by later conversions; each conversion gets its own page.
type RodConverter struct {
	cfg     u.Config
	baseDir string

	mu       sync.Mutex
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewRodConverter creates a RodConverter.
func NewRodConverter(cfg u.Config, baseDir string) *RodConverter {
	return &RodConverter{cfg: cfg, baseDir: baseDir}
}

func (r *RodConverter) ensureBrowser() (*rod.Browser, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.browser != nil {
		return r.browser, nil
	}

	l := launcher.New().Headless(true).Set("disable-gpu").Set("disable-dev-shm-usage")
	if r.cfg.PDF.ChromePath != "" {
		l = l.Bin(r.cfg.PDF.ChromePath)
	}
	if r.cfg.PDF.ChromeNoSandbox {
		l = l.NoSandbox(true)
	}
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launching browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connecting to browser: %w", err)
	}

	r.launcher = l
	r.browser = browser
	u.Info("Rod browser launched")
	return r.browser, nil
}

// Convert renders htmlDoc to PDF.
func (r *RodConverter) Convert(ctx context.Context, htmlDoc string, opts PageOptions) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	docURL, cleanup, err := writeDocument(htmlDoc, r.baseDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	browser, err := r.ensureBrowser()
	if err != nil {
		return nil, err
	}

	timeout := time.Duration(r.cfg.PDF.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	page, err := browser.Context(ctx).Page(proto.TargetCreateTarget{URL: docURL})
	if err != nil {
		return nil, fmt.Errorf("creating page: %w", err)
	}
	defer func() { _ = page.Close() }()

	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("loading page: %w", err)
	}

	reader, err := page.PDF(&proto.PagePrintToPDF{
		PaperWidth:      floatPtr(opts.Paper.Width),
		PaperHeight:     floatPtr(opts.Paper.Height),
		MarginTop:       floatPtr(opts.Margin),
		MarginBottom:    floatPtr(opts.Margin),
		MarginLeft:      floatPtr(opts.Margin),
		MarginRight:     floatPtr(opts.Margin),
		PrintBackground: true,
	})
	if err != nil {
		return nil, fmt.Errorf("printing page: %w", err)
	}

	pdfBuf, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("reading PDF stream: %w", err)
	}
	return pdfBuf, nil
}

// Close shuts the browser down.
func (r *RodConverter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var err error
	if r.browser != nil {
		err = r.browser.Close()
		r.browser = nil
	}
	if r.launcher != nil {
		r.launcher.Kill()
		r.launcher = nil
	}
	return err
}

func floatPtr(v float64) *float64 {
	return &v
}

var _ Converter = (*RodConverter)(nil)
