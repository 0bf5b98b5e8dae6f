package interfaces

import "context"

// BrowserElement is one DOM element handle produced by a selector query.
// Implementations keep enough locator state to act on the element later.
// The click variants back the multi-strategy retry used by the extractor
// and submitter.
type BrowserElement interface {
	// Click performs a standard input-driven click
	Click(ctx context.Context) error
	// ClickJS clicks via script injection, bypassing overlay interception
	ClickJS(ctx context.Context) error
	// ClickKeyboard focuses the element and sends Enter
	ClickKeyboard(ctx context.Context) error
	ScrollIntoView(ctx context.Context) error

	Text(ctx context.Context) (string, error)
	Attr(ctx context.Context, name string) (string, error)
	// Clickable reports whether the element is visible and enabled
	Clickable(ctx context.Context) (bool, error)
}

// BrowserDriver abstracts the browser automation capability. The driver is
// owned by exactly one goroutine at a time; implementations serialize all
// calls internally.
type BrowserDriver interface {
	Navigate(ctx context.Context, url string) error
	PageSource(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	FindAll(ctx context.Context, selector string) ([]BrowserElement, error)
	ExecuteScript(ctx context.Context, js string, result interface{}) error
	Refresh(ctx context.Context) error
	Quit() error

	// Restart tears down the browser session and establishes a fresh one.
	// Used by submitter session recovery after a failed keep-alive probe.
	Restart(ctx context.Context) error
}
