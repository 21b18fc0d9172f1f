package browser

import (
	"context"

	"ibank-scraper/internal/session"
)

// Page is the single browser tab a run drives. Calls are made strictly one
// after another; implementations need not be safe for concurrent use.
type Page interface {
	// Navigate loads url and returns once the network is quiet
	Navigate(ctx context.Context, url string) error
	// URL returns the current location
	URL(ctx context.Context) (string, error)
	// Exists reports whether selector matches anything in the current document
	Exists(ctx context.Context, selector string) (bool, error)
	// HTML returns the rendered document
	HTML(ctx context.Context) (string, error)
	// Type sends text into the element matched by selector
	Type(ctx context.Context, selector, text string) error
	// ClickAndWaitNavigation clicks selector and waits for the navigation it
	// causes. The wait is armed before the click is sent.
	ClickAndWaitNavigation(ctx context.Context, selector string) error
	Cookies(ctx context.Context) (session.Session, error)
	SetCookies(ctx context.Context, s session.Session) error
}

// TriggerAndWait runs trigger with the completion signal from arm already
// registered, so a navigation finishing right after the trigger cannot be
// missed. arm must start listening before it returns.
func TriggerAndWait(ctx context.Context, trigger func(context.Context) error, arm func(context.Context) <-chan error) error {
	waitCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := arm(waitCtx)
	if err := trigger(ctx); err != nil {
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
