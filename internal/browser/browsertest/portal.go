// Package browsertest provides an in-memory browser.Page that simulates a
// small login-protected portal.
package browsertest

import (
	"context"
	"fmt"
	"maps"
	"net/url"

	"ibank-scraper/internal/browser"
	"ibank-scraper/internal/session"
)

var _ browser.Page = (*Page)(nil)

// Portal describes how the simulated site behaves.
type Portal struct {
	AccountURL string
	LoginURL   string
	// Indicator is rendered on the account page while logged out and on the
	// login page after a rejected submit
	Indicator string
	// Submit is the selector of the login button
	Submit string
	// Credentials maps input selector to the value the portal accepts
	Credentials map[string]string
	// AuthCookie marks a logged-in browser
	AuthCookie session.Cookie
	// LandingURL is where a successful submit lands, AccountURL when empty
	LandingURL string
	// RedirectToLogin sends logged-out visits of AccountURL to LoginURL
	RedirectToLogin bool
	AccountHTML     string
}

// Page is a scripted browser.Page. It records every interaction.
type Page struct {
	Portal Portal

	Current     string
	Jar         session.Session
	Typed       map[string]string
	Navigations []string
	Submits     int
	// RefreshCookie is appended to the jar on every Cookies call when set
	RefreshCookie *session.Cookie
	// FailNavigate makes every navigation fail
	FailNavigate error

	rejected bool
}

// NewPage returns a page sitting on about:blank with no cookies.
func NewPage(portal Portal) *Page {
	return &Page{
		Portal:  portal,
		Current: "about:blank",
		Typed:   map[string]string{},
	}
}

func (p *Page) loggedIn() bool {
	for _, c := range p.Jar {
		if c.Name == p.Portal.AuthCookie.Name && c.Value == p.Portal.AuthCookie.Value {
			return true
		}
	}
	return false
}

func stripped(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

func (p *Page) Navigate(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.Navigations = append(p.Navigations, target)
	if p.FailNavigate != nil {
		return p.FailNavigate
	}
	p.rejected = false
	if stripped(target) == stripped(p.Portal.AccountURL) && !p.loggedIn() && p.Portal.RedirectToLogin {
		p.Current = p.Portal.LoginURL + "?reason=expired"
		return nil
	}
	p.Current = target
	return nil
}

func (p *Page) URL(_ context.Context) (string, error) {
	return p.Current, nil
}

func (p *Page) Exists(_ context.Context, selector string) (bool, error) {
	if selector != p.Portal.Indicator {
		return false, nil
	}
	switch stripped(p.Current) {
	case stripped(p.Portal.AccountURL):
		return !p.loggedIn(), nil
	case stripped(p.Portal.LoginURL):
		return p.rejected || !p.loggedIn(), nil
	}
	return false, nil
}

func (p *Page) HTML(_ context.Context) (string, error) {
	if stripped(p.Current) == stripped(p.Portal.AccountURL) && p.loggedIn() {
		return p.Portal.AccountHTML, nil
	}
	return "<html><body><form id=\"login\"></form></body></html>", nil
}

func (p *Page) Type(_ context.Context, selector, text string) error {
	if stripped(p.Current) != stripped(p.Portal.LoginURL) {
		return fmt.Errorf("no element %s on %s", selector, p.Current)
	}
	p.Typed[selector] = text
	return nil
}

func (p *Page) ClickAndWaitNavigation(_ context.Context, selector string) error {
	if selector != p.Portal.Submit {
		return fmt.Errorf("no element %s on %s", selector, p.Current)
	}
	p.Submits++

	accepted := len(p.Portal.Credentials) > 0
	for sel, want := range p.Portal.Credentials {
		if p.Typed[sel] != want {
			accepted = false
		}
	}
	if !accepted {
		p.rejected = true
		p.Current = p.Portal.LoginURL
		return nil
	}

	p.Jar = append(p.Jar, p.Portal.AuthCookie)
	p.Current = p.Portal.LandingURL
	if p.Current == "" {
		p.Current = p.Portal.AccountURL
	}
	return nil
}

func (p *Page) Cookies(_ context.Context) (session.Session, error) {
	if p.RefreshCookie != nil {
		p.Jar = append(p.Jar, *p.RefreshCookie)
		p.RefreshCookie = nil
	}
	out := make(session.Session, len(p.Jar))
	copy(out, p.Jar)
	return out, nil
}

func (p *Page) SetCookies(_ context.Context, s session.Session) error {
	p.Jar = append(p.Jar, s...)
	return nil
}

// TypedValues returns a copy of every value typed so far.
func (p *Page) TypedValues() map[string]string {
	return maps.Clone(p.Typed)
}

// MemoryStore is a session.Store kept in memory.
type MemoryStore struct {
	Session session.Session
	Saves   int
	LoadErr error
	SaveErr error
}

func (m *MemoryStore) Load(_ context.Context) (session.Session, error) {
	if m.LoadErr != nil {
		return nil, m.LoadErr
	}
	return m.Session, nil
}

func (m *MemoryStore) Save(_ context.Context, s session.Session) error {
	m.Saves++
	if m.SaveErr != nil {
		return m.SaveErr
	}
	m.Session = s
	return nil
}

// ErrCorruptFixture is a ready made corrupt-session error.
var ErrCorruptFixture = fmt.Errorf("%w: fixture", session.ErrCorrupt)

