package pdf

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"pdf-generator/internal/chrome"
	u "pdf-generator/internal/utils"
)

// ChromeConverter renders PDFs with chromedp. With pdf.chrome_pool_size > 0
// tabs come from a shared chrome.Pool; otherwise every conversion starts its
// own browser.
type ChromeConverter struct {
	cfg     u.Config
	baseDir string

	poolMu sync.Mutex
	pool   *chrome.Pool
}

// NewChromeConverter creates a ChromeConverter. The pool is created on first use.
func NewChromeConverter(cfg u.Config, baseDir string) *ChromeConverter {
	return &ChromeConverter{cfg: cfg, baseDir: baseDir}
}

// Pool returns the shared tab pool, or nil when pooling is disabled.
func (c *ChromeConverter) Pool() (*chrome.Pool, error) {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()

	if c.cfg.PDF.ChromePoolSize <= 0 {
		return nil, nil
	}
	if c.pool != nil {
		return c.pool, nil
	}
	pool, err := chrome.NewPool(c.cfg)
	if err != nil {
		return nil, err
	}
	c.pool = pool
	return c.pool, nil
}

// Convert renders htmlDoc to PDF.
func (c *ChromeConverter) Convert(ctx context.Context, htmlDoc string, opts PageOptions) ([]byte, error) {
	docURL, cleanup, err := writeDocument(htmlDoc, c.baseDir)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	pool, err := c.Pool()
	if err != nil {
		return nil, err
	}
	if pool == nil {
		return c.convertStandalone(ctx, docURL, opts)
	}

	timeout := time.Duration(c.cfg.PDF.TimeoutSecs) * time.Second
	runOnce := func() ([]byte, bool, error) {
		acquireCtx, acquireCancel := context.WithTimeout(ctx, acquireTimeout)
		defer acquireCancel()

		tab, err := pool.Acquire(acquireCtx)
		if err != nil {
			return nil, false, &acquireError{err: err}
		}

		renderCtx, cancel := context.WithTimeout(tab.Ctx, timeout)
		pdfBuf, renderErr := printToPDF(renderCtx, docURL, opts)
		restart := renderErr != nil && ctx.Err() == nil &&
			!renderTimedOut(renderCtx, tab.Ctx) && chrome.IsSessionInterrupted(renderErr)
		cancel()

		pool.Release(tab, renderErr)
		return pdfBuf, restart, renderErr
	}

	pdfBuf, restart, renderErr := runOnce()
	if restart {
		u.Warn("Chrome session interrupted; restarting pool and retrying once", "error", renderErr)
		_ = pool.Restart()
		pdfBuf, _, renderErr = runOnce()
	}
	return pdfBuf, renderErr
}

// acquireTimeout bounds the wait for a free pool slot.
var acquireTimeout = 5 * time.Second

// acquireError marks a failure to obtain a tab. It never triggers a pool
// restart.
type acquireError struct{ err error }

func (e *acquireError) Error() string { return "chrome tab unavailable: " + e.err.Error() }
func (e *acquireError) Unwrap() error { return e.err }

// renderTimedOut reports whether the per-render deadline expired while the
// tab itself was still alive.
func renderTimedOut(renderCtx, tabCtx context.Context) bool {
	return errors.Is(renderCtx.Err(), context.DeadlineExceeded) && tabCtx.Err() == nil
}

// convertStandalone launches a throwaway browser for a single document.
func (c *ChromeConverter) convertStandalone(ctx context.Context, docURL string, opts PageOptions) ([]byte, error) {
	tmpDir, err := os.MkdirTemp("", "chromedata-*")
	if err != nil {
		return nil, fmt.Errorf("cannot create temp profile dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, chrome.AllocatorOptions(c.cfg, tmpDir)...)
	defer allocCancel()
	chromeCtx, cancel := chromedp.NewContext(allocCtx)
	defer cancel()

	chromeCtx, cancelTimeout := context.WithTimeout(chromeCtx, time.Duration(c.cfg.PDF.TimeoutSecs)*time.Second)
	defer cancelTimeout()

	return printToPDF(chromeCtx, docURL, opts)
}

// printToPDF navigates the tab in ctx to docURL and prints it.
func printToPDF(ctx context.Context, docURL string, opts PageOptions) ([]byte, error) {
	var pdfBuf []byte
	err := chromedp.Run(ctx,
		chromedp.Navigate(docURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdfBuf, _, err = page.PrintToPDF().
				WithPrintBackground(true).
				WithPaperWidth(opts.Paper.Width).
				WithPaperHeight(opts.Paper.Height).
				WithMarginTop(opts.Margin).
				WithMarginBottom(opts.Margin).
				WithMarginLeft(opts.Margin).
				WithMarginRight(opts.Margin).
				Do(ctx)
			return err
		}),
	)
	if err != nil {
		return nil, err
	}
	return pdfBuf, nil
}

// Stats returns pool statistics for the stats endpoint.
func (c *ChromeConverter) Stats() (chrome.Stats, error) {
	pool, err := c.Pool()
	if err != nil {
		return chrome.Stats{}, err
	}
	if pool == nil {
		return chrome.Stats{PoolSizeConf: c.cfg.PDF.ChromePoolSize, TimeoutSecs: c.cfg.PDF.TimeoutSecs}, nil
	}
	return pool.Stats(c.cfg.PDF.TimeoutSecs), nil
}

// Close stops the pooled browser, if any.
func (c *ChromeConverter) Close() error {
	c.poolMu.Lock()
	defer c.poolMu.Unlock()
	if c.pool != nil {
		c.pool.Close()
		c.pool = nil
	}
	return nil
}

var _ Converter = (*ChromeConverter)(nil)
