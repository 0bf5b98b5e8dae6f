package browser

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/seekworks/autoapply/internal/interfaces"
)

// clickStrategy is one way of clicking an element. Strategies are tried in
// order until one succeeds; validation runs before every attempt.
type clickStrategy struct {
	name  string
	click func(ctx context.Context, el interfaces.BrowserElement) error
}

var clickStrategies = []clickStrategy{
	{"standard", func(ctx context.Context, el interfaces.BrowserElement) error {
		return el.Click(ctx)
	}},
	{"javascript", func(ctx context.Context, el interfaces.BrowserElement) error {
		return el.ClickJS(ctx)
	}},
	{"scroll_then_click", func(ctx context.Context, el interfaces.BrowserElement) error {
		if err := el.ScrollIntoView(ctx); err != nil {
			return err
		}
		return el.Click(ctx)
	}},
	{"keyboard", func(ctx context.Context, el interfaces.BrowserElement) error {
		return el.ClickKeyboard(ctx)
	}},
	{"scroll_then_javascript", func(ctx context.Context, el interfaces.BrowserElement) error {
		if err := el.ScrollIntoView(ctx); err != nil {
			return err
		}
		return el.ClickJS(ctx)
	}},
}

// ClickWithRetry attempts the full strategy set against one element.
// Element clickability is validated before each attempt. The error of the
// last strategy is returned when all fail; the caller decides whether that
// is terminal for the record or for the batch.
func ClickWithRetry(ctx context.Context, el interfaces.BrowserElement, logger arbor.ILogger) error {
	var lastErr error

	for _, strategy := range clickStrategies {
		if err := ctx.Err(); err != nil {
			return err
		}

		clickable, err := el.Clickable(ctx)
		if err != nil {
			lastErr = err
			continue
		}
		if !clickable {
			lastErr = fmt.Errorf("element not clickable before %s attempt", strategy.name)
			continue
		}

		if err := strategy.click(ctx, el); err != nil {
			logger.Debug().
				Str("strategy", strategy.name).
				Err(err).
				Msg("Click strategy failed")
			lastErr = err
			continue
		}

		logger.Debug().Str("strategy", strategy.name).Msg("Click succeeded")
		return nil
	}

	return fmt.Errorf("all click strategies exhausted: %w", lastErr)
}
