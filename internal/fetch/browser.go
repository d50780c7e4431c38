package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/prospero-intel/prospero/config"
	"github.com/prospero-intel/prospero/models"
)

// consentSelectors are known cookie/consent dialog accept buttons. Dismissal
// is best-effort: nothing fails when no selector matches.
var consentSelectors = []string{
	"#onetrust-accept-btn-handler",
	"button[id*='accept']",
	"button[class*='consent']",
	"button[data-testid='cookie-accept']",
	".qc-cmp2-summary-buttons button[mode='primary']",
	"#didomi-notice-agree-button",
	".fc-cta-consent",
	"button[title='Accept all']",
	"button[aria-label='Accept cookies']",
}

// Browser owns one long-lived headless allocator context. Page creation is
// serialized; page operations run concurrently in their own tab contexts
// with explicit timeouts and guaranteed cancellation on every exit path.
type Browser struct {
	cfg       config.BrowserConfig
	allocCtx  context.Context
	cancelAll context.CancelFunc

	createMu sync.Mutex    // serializes tab creation only
	pages    chan struct{} // bounds concurrent open tabs
	closed   bool
	mu       sync.Mutex
}

// NewBrowser launches the shared allocator. Call Close when the run ends.
func NewBrowser(ctx context.Context, cfg config.BrowserConfig) (*Browser, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.UserAgent(cfg.UserAgent),
	)
	allocCtx, cancel := chromedp.NewExecAllocator(ctx, opts...)
	return &Browser{
		cfg:       cfg,
		allocCtx:  allocCtx,
		cancelAll: cancel,
		pages:     make(chan struct{}, cfg.MaxPages),
	}, nil
}

// Close tears down the allocator and every remaining tab.
func (b *Browser) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	b.cancelAll()
}

// FetchHTML renders the page and returns its outer HTML. When waitSelector
// is set the page is considered ready once that selector is visible,
// otherwise readiness is the body element. Consent overlays are dismissed
// best-effort before the HTML is read.
func (b *Browser) FetchHTML(ctx context.Context, pageURL, waitSelector string) (string, error) {
	select {
	case b.pages <- struct{}{}:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	defer func() { <-b.pages }()

	b.createMu.Lock()
	tabCtx, cancelTab := chromedp.NewContext(b.allocCtx)
	b.createMu.Unlock()
	defer cancelTab()

	tabCtx, cancelTimeout := context.WithTimeout(tabCtx, b.cfg.PageTimeout)
	defer cancelTimeout()

	actions := []chromedp.Action{chromedp.Navigate(pageURL)}
	if waitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(waitSelector, chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.WaitReady("body", chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Evaluate(dismissConsentScript(), nil),
		chromedp.Sleep(250*time.Millisecond),
	)

	var html string
	actions = append(actions, chromedp.OuterHTML("html", &html, chromedp.ByQuery))

	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return "", fmt.Errorf("render %s: %w", pageURL, err)
	}
	return html, nil
}

// dismissConsentScript clicks the first matching consent button, if any.
func dismissConsentScript() string {
	script := "(() => { const sels = ["
	for i, sel := range consentSelectors {
		if i > 0 {
			script += ","
		}
		script += fmt.Sprintf("%q", sel)
	}
	script += `]; for (const s of sels) { try { const el = document.querySelector(s); if (el) { el.click(); return s; } } catch (e) {} } return null; })()`
	return script
}

// BrowserStrategy scrapes sources that need JavaScript rendering.
type BrowserStrategy struct {
	Browser *Browser
	Sink    DebugSink
}

// NewBrowserStrategy wraps a shared browser in the strategy contract.
func NewBrowserStrategy(browser *Browser, sink DebugSink) *BrowserStrategy {
	if sink == nil {
		sink = NopDebugSink{}
	}
	return &BrowserStrategy{Browser: browser, Sink: sink}
}

func (s *BrowserStrategy) Name() string { return MethodBrowser }

// Fetch renders the front page headlessly and extracts headlines.
func (s *BrowserStrategy) Fetch(ctx context.Context, src *models.SourceDescriptor) Result {
	if s.Browser == nil {
		return Result{Method: MethodBrowser, Err: &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: fmt.Errorf("browser disabled")}}
	}
	html, err := s.Browser.FetchHTML(ctx, src.BaseURL, src.WaitSelector)
	if err != nil {
		s.Sink.Dump(src.Name, src.WaitSelector, fmt.Sprintf("render failed: %v", err), "")
		return Result{Method: MethodBrowser, Err: &models.FetchError{Source: src.Name, URL: src.BaseURL, Err: err}}
	}
	return ExtractFromHTML(html, src, MethodBrowser, s.Sink)
}
