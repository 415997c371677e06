package printing

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	a4Width  = 210.0 / 25.4 // inches
	a4Height = 297.0 / 25.4

	minFooterMarginMM = 10
)

// ChromeConfig selects the browser and the render deadline
type ChromeConfig struct {
	// RemoteURL is the DevTools websocket of a running Chrome. Empty launches
	// a headless Chrome from PATH per render.
	RemoteURL string
	// NoSandbox is required when Chrome runs as root in a container
	NoSandbox bool
	Timeout   time.Duration
}

// ChromeRenderer prints pages through the Chrome DevTools protocol. The
// allocator is shared; each Render gets its own tab.
type ChromeRenderer struct {
	timeout     time.Duration
	logger      *zap.Logger
	allocCtx    context.Context
	allocCancel context.CancelFunc
}

// NewChromeRenderer prepares an allocator. Chrome is not contacted until the
// first Render.
func NewChromeRenderer(cfg ChromeConfig, logger *zap.Logger) *ChromeRenderer {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &ChromeRenderer{timeout: cfg.Timeout, logger: logger.Named("chrome")}
	if r.timeout <= 0 {
		r.timeout = 30 * time.Second
	}

	if cfg.RemoteURL != "" {
		r.allocCtx, r.allocCancel = chromedp.NewRemoteAllocator(context.Background(), cfg.RemoteURL)
		return r
	}
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.DisableGPU,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("font-render-hinting", "none"),
	)
	if cfg.NoSandbox {
		opts = append(opts, chromedp.NoSandbox)
	}
	r.allocCtx, r.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	return r
}

// Render prints p to PDF bytes
func (r *ChromeRenderer) Render(ctx context.Context, p Page) ([]byte, error) {
	if strings.TrimSpace(p.HTML) == "" {
		return nil, ErrEmptyPage
	}
	started := time.Now()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	tab, closeTab := chromedp.NewContext(r.allocCtx, chromedp.WithLogf(r.logger.Sugar().Debugf))
	defer closeTab()
	// the tab hangs off the allocator, not ctx; close it when ctx ends
	defer context.AfterFunc(ctx, closeTab)()

	var pdf []byte
	err := chromedp.Run(tab,
		chromedp.Navigate("about:blank"),
		chromedp.ActionFunc(func(ctx context.Context) error {
			tree, err := page.GetFrameTree().Do(ctx)
			if err != nil {
				return err
			}
			return page.SetDocumentContent(tree.Frame.ID, document(p)).Do(ctx)
		}),
		chromedp.ActionFunc(func(ctx context.Context) error {
			var err error
			pdf, _, err = printParams(p).Do(ctx)
			return err
		}),
	)

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w after %s: %v", ErrRenderTimeout, r.timeout, err)
	case err != nil:
		r.logger.Error("Chrome print failed", zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrRenderFailed, err)
	case len(pdf) == 0:
		return nil, fmt.Errorf("%w: empty document", ErrRenderFailed)
	}

	r.logger.Debug("Page printed", zap.Int("bytes", len(pdf)), zap.Duration("took", time.Since(started)))
	return pdf, nil
}

// Close shuts the allocator, and with it a locally launched Chrome
func (r *ChromeRenderer) Close() error {
	r.allocCancel()
	return nil
}

// printParams lays p out on portrait A4. Chrome wants inches.
func printParams(p Page) *page.PrintToPDFParams {
	m := p.Margins
	if p.Footer != "" {
		m.Bottom = max(m.Bottom, minFooterMarginMM)
	}
	return page.PrintToPDF().
		WithPrintBackground(true).
		WithPaperWidth(a4Width).
		WithPaperHeight(a4Height).
		WithMarginTop(mm(m.Top)).
		WithMarginRight(mm(m.Right)).
		WithMarginBottom(mm(m.Bottom)).
		WithMarginLeft(mm(m.Left)).
		WithDisplayHeaderFooter(p.Footer != "").
		WithHeaderTemplate("<span></span>").
		WithFooterTemplate(p.Footer)
}

// document wraps an HTML fragment; complete documents pass through unchanged
func document(p Page) string {
	lower := strings.ToLower(p.HTML)
	if strings.Contains(lower, "<!doctype") || strings.Contains(lower, "<html") {
		return p.HTML
	}
	var b strings.Builder
	b.WriteString(`<!DOCTYPE html><html><head><meta charset="UTF-8">`)
	if p.Title != "" {
		b.WriteString("<title>" + html.EscapeString(p.Title) + "</title>")
	}
	b.WriteString("</head><body>" + p.HTML + "</body></html>")
	return b.String()
}

func mm(v int) float64 {
	return float64(v) / 25.4
}

var _ PDFRenderer = (*ChromeRenderer)(nil)
