package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/common"
	"github.com/seekworks/autoapply/internal/interfaces"
)

// ChromeDPDriver implements the BrowserDriver interface over a single
// chromedp browser context. All calls are serialized through mu: the
// driver is single-tenant and must never be shared across goroutines
// without it.
type ChromeDPDriver struct {
	mu sync.Mutex

	config *common.BrowserConfig
	logger arbor.ILogger

	allocCtx    context.Context
	allocCancel context.CancelFunc
	browserCtx  context.Context
	browserStop context.CancelFunc

	started bool
}

// NewChromeDPDriver creates a driver; the browser launches on Start
func NewChromeDPDriver(config *common.BrowserConfig, logger arbor.ILogger) *ChromeDPDriver {
	return &ChromeDPDriver{
		config: config,
		logger: logger,
	}
}

// Start launches the browser and verifies it responds
func (d *ChromeDPDriver) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.startLocked(ctx)
}

func (d *ChromeDPDriver) startLocked(ctx context.Context) error {
	if d.started {
		return fmt.Errorf("browser already started")
	}

	opts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", d.config.Headless),
		chromedp.Flag("disable-gpu", d.config.DisableGPU),
		chromedp.Flag("no-sandbox", d.config.NoSandbox),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(d.config.UserAgent),
	)

	d.allocCtx, d.allocCancel = chromedp.NewExecAllocator(context.Background(), opts...)
	d.browserCtx, d.browserStop = chromedp.NewContext(d.allocCtx)

	// Startup test bounded by the navigation timeout
	testCtx, cancel := context.WithTimeout(d.browserCtx, d.timeout())
	defer cancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		d.teardownLocked()
		return fmt.Errorf("browser failed startup test: %w", err)
	}

	d.started = true
	d.logger.Info().
		Bool("headless", d.config.Headless).
		Str("user_agent", d.config.UserAgent).
		Msg("Browser session started")
	return nil
}

func (d *ChromeDPDriver) timeout() time.Duration {
	if d.config.NavigateTimeout > 0 {
		return d.config.NavigateTimeout
	}
	return 30 * time.Second
}

// run executes chromedp actions under the driver mutex with the
// per-request timeout. The caller context only bounds the wait; the
// browser context carries the session.
func (d *ChromeDPDriver) run(ctx context.Context, actions ...chromedp.Action) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return fmt.Errorf("browser not started")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	runCtx, cancel := context.WithTimeout(d.browserCtx, d.timeout())
	defer cancel()

	return chromedp.Run(runCtx, actions...)
}

func (d *ChromeDPDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("navigation to %s failed: %w", url, err)
	}
	return nil
}

func (d *ChromeDPDriver) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := d.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page source: %w", err)
	}
	return html, nil
}

func (d *ChromeDPDriver) Title(ctx context.Context) (string, error) {
	var title string
	if err := d.run(ctx, chromedp.Title(&title)); err != nil {
		return "", fmt.Errorf("failed to read title: %w", err)
	}
	return title, nil
}

func (d *ChromeDPDriver) FindAll(ctx context.Context, selector string) ([]interfaces.BrowserElement, error) {
	var nodes []*cdp.Node
	err := d.run(ctx, chromedp.Nodes(selector, &nodes, chromedp.ByQueryAll, chromedp.AtLeast(0)))
	if err != nil {
		return nil, fmt.Errorf("selector query %q failed: %w", selector, err)
	}

	elements := make([]interfaces.BrowserElement, 0, len(nodes))
	for _, node := range nodes {
		elements = append(elements, &chromedpElement{
			driver: d,
			xpath:  node.FullXPath(),
		})
	}
	return elements, nil
}

func (d *ChromeDPDriver) ExecuteScript(ctx context.Context, js string, result interface{}) error {
	if result == nil {
		var discard interface{}
		result = &discard
	}
	if err := d.run(ctx, chromedp.Evaluate(js, result)); err != nil {
		return fmt.Errorf("script execution failed: %w", err)
	}
	return nil
}

func (d *ChromeDPDriver) Refresh(ctx context.Context) error {
	if err := d.run(ctx, chromedp.Reload(), chromedp.WaitReady("body", chromedp.ByQuery)); err != nil {
		return fmt.Errorf("page refresh failed: %w", err)
	}
	return nil
}

func (d *ChromeDPDriver) Quit() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}
	d.teardownLocked()
	d.logger.Info().Msg("Browser session closed")
	return nil
}

// Restart tears down the current session and launches a fresh one.
// Used during submitter session recovery.
func (d *ChromeDPDriver) Restart(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		d.teardownLocked()
	}
	d.logger.Warn().Msg("Restarting browser session")
	return d.startLocked(ctx)
}

func (d *ChromeDPDriver) teardownLocked() {
	if d.browserStop != nil {
		d.browserStop()
		d.browserStop = nil
	}
	if d.allocCancel != nil {
		d.allocCancel()
		d.allocCancel = nil
	}
	d.started = false
}

// chromedpElement addresses one element by its full XPath captured at
// query time. The page mutating between query and action surfaces as a
// normal action error.
type chromedpElement struct {
	driver *ChromeDPDriver
	xpath  string
}

func (e *chromedpElement) Click(ctx context.Context) error {
	return e.driver.run(ctx, chromedp.Click(e.xpath, chromedp.BySearch))
}

func (e *chromedpElement) ClickJS(ctx context.Context) error {
	js := fmt.Sprintf(`(function(){
		var el = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el) { return false; }
		el.click();
		return true;
	})()`, e.xpath)

	var clicked bool
	if err := e.driver.ExecuteScript(ctx, js, &clicked); err != nil {
		return err
	}
	if !clicked {
		return fmt.Errorf("element no longer present: %s", e.xpath)
	}
	return nil
}

func (e *chromedpElement) ClickKeyboard(ctx context.Context) error {
	return e.driver.run(ctx,
		chromedp.Focus(e.xpath, chromedp.BySearch),
		chromedp.SendKeys(e.xpath, kb.Enter, chromedp.BySearch),
	)
}

func (e *chromedpElement) ScrollIntoView(ctx context.Context) error {
	return e.driver.run(ctx, chromedp.ScrollIntoView(e.xpath, chromedp.BySearch))
}

func (e *chromedpElement) Text(ctx context.Context) (string, error) {
	var text string
	if err := e.driver.run(ctx, chromedp.Text(e.xpath, &text, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("failed to read element text: %w", err)
	}
	return text, nil
}

func (e *chromedpElement) Attr(ctx context.Context, name string) (string, error) {
	var value string
	var ok bool
	if err := e.driver.run(ctx, chromedp.AttributeValue(e.xpath, name, &value, &ok, chromedp.BySearch)); err != nil {
		return "", fmt.Errorf("failed to read attribute %s: %w", name, err)
	}
	if !ok {
		return "", nil
	}
	return value, nil
}

func (e *chromedpElement) Clickable(ctx context.Context) (bool, error) {
	js := fmt.Sprintf(`(function(){
		var el = document.evaluate(%q, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
		if (!el || el.disabled) { return false; }
		var style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') { return false; }
		var rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, e.xpath)

	var clickable bool
	if err := e.driver.ExecuteScript(ctx, js, &clickable); err != nil {
		return false, err
	}
	return clickable, nil
}
