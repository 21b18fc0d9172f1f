package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"ibank-scraper/internal/config"
	"ibank-scraper/internal/session"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const (
	// networkidle2: at most two requests in flight for idleDuration
	idleConnections = 2
	idleDuration    = 500 * time.Millisecond
	idleMaxWait     = 30 * time.Second
	idleInterval    = 50 * time.Millisecond
)

// Options configures the Chrome instance started by NewChrome.
type Options struct {
	Headless bool
	// ExecPath is the Chrome binary, empty to let chromedp find it
	ExecPath string
	Viewport config.Viewport
}

// Chrome drives one headless (or visible) Chrome tab through chromedp.
type Chrome struct {
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

// NewChrome launches the browser and opens the tab every later call reuses.
func NewChrome(opts Options, logger *zap.Logger) (*Chrome, error) {
	width := jitter(opts.Viewport.MinWidth, opts.Viewport.MaxWidth, 1366)
	height := jitter(opts.Viewport.MinHeight, opts.Viewport.MaxHeight, 768)

	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-features", "TranslateUI"),
		chromedp.WindowSize(width, height),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocOpts...)
	ctx, tabCancel := chromedp.NewContext(allocCtx)
	cancel := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run starts the browser and must use the long-lived context.
	err := chromedp.Run(ctx,
		network.Enable(),
		chromedp.EmulateViewport(int64(width), int64(height)),
	)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	logger.Debug("chrome started", zap.Int("width", width), zap.Int("height", height))
	return &Chrome{ctx: ctx, cancel: cancel, logger: logger}, nil
}

// Close shuts the browser down.
func (c *Chrome) Close() {
	c.cancel()
}

// run executes actions on the tab, cancelled when either the tab or the
// caller's context is done.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (c *Chrome) Navigate(ctx context.Context, url string) error {
	c.logger.Debug("navigating", zap.String("url", url))
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tracker := trackNetwork(ctx)
		if err := chromedp.Navigate(url).Do(ctx); err != nil {
			return err
		}
		return tracker.waitIdle(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	return nil
}

func (c *Chrome) URL(ctx context.Context) (string, error) {
	var location string
	if err := c.run(ctx, chromedp.Location(&location)); err != nil {
		return "", fmt.Errorf("failed to get current URL: %w", err)
	}
	return location, nil
}

func (c *Chrome) Exists(ctx context.Context, selector string) (bool, error) {
	quoted, err := json.Marshal(selector)
	if err != nil {
		return false, err
	}
	var found bool
	expr := fmt.Sprintf("Boolean(document.querySelector(%s))", quoted)
	if err := c.run(ctx, chromedp.Evaluate(expr, &found)); err != nil {
		return false, fmt.Errorf("failed to query %s: %w", selector, err)
	}
	return found, nil
}

func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read document: %w", err)
	}
	return html, nil
}

func (c *Chrome) Type(ctx context.Context, selector, text string) error {
	err := c.run(ctx,
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.SetValue(selector, "", chromedp.ByQuery),
		chromedp.SendKeys(selector, text, chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("failed to fill %s: %w", selector, err)
	}
	return nil
}

func (c *Chrome) ClickAndWaitNavigation(ctx context.Context, selector string) error {
	c.logger.Debug("clicking and waiting for navigation", zap.String("selector", selector))
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		tracker := trackNetwork(ctx)
		click := func(ctx context.Context) error {
			return chromedp.Click(selector, chromedp.ByQuery).Do(ctx)
		}
		if err := TriggerAndWait(ctx, click, waitForLoad); err != nil {
			return err
		}
		return tracker.waitIdle(ctx)
	}))
	if err != nil {
		return fmt.Errorf("failed to submit via %s: %w", selector, err)
	}
	return nil
}

func (c *Chrome) Cookies(ctx context.Context) (session.Session, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		result, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		cookies = result
		return nil
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to extract cookies: %w", err)
	}
	return fromNetworkCookies(cookies), nil
}

func (c *Chrome) SetCookies(ctx context.Context, s session.Session) error {
	if len(s) == 0 {
		return nil
	}
	err := c.run(ctx, network.SetCookies(toCookieParams(s)))
	if err != nil {
		return fmt.Errorf("failed to set cookies: %w", err)
	}
	return nil
}

// waitForLoad resolves on the next load event of the tab.
func waitForLoad(ctx context.Context) <-chan error {
	done := make(chan error, 1)
	var once sync.Once
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		if _, ok := ev.(*page.EventLoadEventFired); ok {
			once.Do(func() { done <- nil })
		}
	})
	return done
}

// networkTracker counts in-flight requests, similar to Puppeteer's networkidle.
type networkTracker struct {
	mu     sync.Mutex
	active map[network.RequestID]bool
}

func trackNetwork(ctx context.Context) *networkTracker {
	t := &networkTracker{active: make(map[network.RequestID]bool)}
	chromedp.ListenTarget(ctx, func(ev interface{}) {
		t.mu.Lock()
		defer t.mu.Unlock()

		switch ev := ev.(type) {
		case *network.EventRequestWillBeSent:
			t.active[ev.RequestID] = true
		case *network.EventLoadingFinished:
			delete(t.active, ev.RequestID)
		case *network.EventLoadingFailed:
			delete(t.active, ev.RequestID)
		}
	})
	return t
}

func (t *networkTracker) waitIdle(ctx context.Context) error {
	ticker := time.NewTicker(idleInterval)
	defer ticker.Stop()

	start := time.Now()
	idleSince := time.Now()
	for {
		t.mu.Lock()
		activeCount := len(t.active)
		t.mu.Unlock()

		if activeCount > idleConnections {
			idleSince = time.Now()
		} else if time.Since(idleSince) >= idleDuration {
			return nil
		}

		if time.Since(start) > idleMaxWait {
			return fmt.Errorf("timeout waiting for network idle (maxConnections: %d, active: %d)", idleConnections, activeCount)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func fromNetworkCookies(cookies []*network.Cookie) session.Session {
	s := make(session.Session, 0, len(cookies))
	for _, c := range cookies {
		s = append(s, session.Cookie{
			Name:         c.Name,
			Value:        c.Value,
			Domain:       c.Domain,
			Path:         c.Path,
			Expires:      c.Expires,
			Size:         c.Size,
			HTTPOnly:     c.HTTPOnly,
			Secure:       c.Secure,
			Session:      c.Session,
			SameSite:     c.SameSite.String(),
			Priority:     c.Priority.String(),
			SourceScheme: c.SourceScheme.String(),
			SourcePort:   c.SourcePort,
		})
	}
	return s
}

func toCookieParams(s session.Session) []*network.CookieParam {
	params := make([]*network.CookieParam, 0, len(s))
	for _, c := range s {
		param := &network.CookieParam{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HTTPOnly: c.HTTPOnly,
		}
		if c.SameSite != "" {
			param.SameSite = network.CookieSameSite(c.SameSite)
		}
		if c.Priority != "" {
			param.Priority = network.CookiePriority(c.Priority)
		}
		if c.SourceScheme != "" {
			param.SourceScheme = network.CookieSourceScheme(c.SourceScheme)
		}
		if c.SourcePort > 0 {
			param.SourcePort = c.SourcePort
		}
		if !c.Session && c.Expires > 0 {
			sec, frac := math.Modf(c.Expires)
			expires := cdp.TimeSinceEpoch(time.Unix(int64(sec), int64(frac*1e9)))
			param.Expires = &expires
		}
		params = append(params, param)
	}
	return params
}

// jitter picks a random size in [lo, hi], def when the range is unset.
func jitter(lo, hi, def int) int {
	if lo <= 0 || hi <= 0 {
		return def
	}
	if hi <= lo {
		return lo
	}
	return lo + rand.Intn(hi-lo+1)
}
