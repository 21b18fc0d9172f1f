package auth

import (
	"context"
	"errors"
	"fmt"

	"ibank-scraper/internal/browser"
	"ibank-scraper/internal/config"
	"ibank-scraper/internal/navigate"
	"ibank-scraper/internal/session"

	"go.uber.org/zap"
)

// ErrAuthenticationFailure means the portal still wants a login after the
// credentials were submitted. It is never retried: the same credentials
// would fail again and repeated attempts can lock the account.
var ErrAuthenticationFailure = errors.New("auth: login indicator still present after submitting credentials")

// IsAuthenticationFailure reports whether err is a rejected login.
func IsAuthenticationFailure(err error) bool {
	return errors.Is(err, ErrAuthenticationFailure)
}

// State is a step of the login state machine.
type State int

const (
	Unverified State = iota
	NeedsLogin
	Verifying
	Authenticated
	LoginFailed
)

// String returns the state name used in logs.
func (s State) String() string {
	switch s {
	case Unverified:
		return "unverified"
	case NeedsLogin:
		return "needs_login"
	case Verifying:
		return "verifying"
	case Authenticated:
		return "authenticated"
	case LoginFailed:
		return "login_failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// CredentialSource is called only when a login is actually needed.
type CredentialSource func(ctx context.Context) (config.Credentials, error)

// Authenticator brings the page to an authenticated account view, logging
// in at most once per run.
type Authenticator struct {
	Page        browser.Page
	Store       session.Store
	Profile     config.Profile
	Credentials CredentialSource
	Logger      *zap.Logger
}

// Result describes how authentication went.
type Result struct {
	// LoggedIn is true when credentials were submitted during this run
	LoggedIn bool
	// Session is the cookie set persisted after authentication
	Session session.Session
	// Trace lists the states visited, in order
	Trace []State
}

// Authenticate leaves the page on the account URL with a valid session,
// logging in at most once. The resulting cookies are saved exactly once.
func (a *Authenticator) Authenticate(ctx context.Context) (Result, error) {
	var res Result
	state := Unverified

	for {
		res.Trace = append(res.Trace, state)
		a.Logger.Debug("auth state", zap.Stringer("state", state))

		switch state {
		case Unverified:
			if _, err := navigate.EnsureAt(ctx, a.Page, a.Profile.AccountURL); err != nil {
				return res, err
			}
			needed, err := a.loginRequired(ctx)
			if err != nil {
				return res, err
			}
			if needed {
				a.Logger.Info("session is not valid, logging in")
				state = NeedsLogin
			} else {
				a.Logger.Info("stored session is valid, skipping login")
				state = Authenticated
			}

		case NeedsLogin:
			if err := a.submitCredentials(ctx); err != nil {
				return res, err
			}
			res.LoggedIn = true
			state = Verifying

		case Verifying:
			rejected, err := a.stillLoggedOut(ctx)
			if err != nil {
				return res, err
			}
			if rejected {
				state = LoginFailed
			} else {
				a.Logger.Info("login successful")
				state = Authenticated
			}

		case LoginFailed:
			current, _ := a.Page.URL(ctx)
			return res, fmt.Errorf("%w (at %s)", ErrAuthenticationFailure, current)

		case Authenticated:
			cookies, err := a.Page.Cookies(ctx)
			if err != nil {
				return res, err
			}
			res.Session = cookies
			if err := a.Store.Save(ctx, cookies); err != nil {
				a.Logger.Warn("failed to save session", zap.Error(err))
			} else {
				a.Logger.Info("session saved", zap.Int("cookies", len(cookies)))
			}

			navigated, err := navigate.EnsureAt(ctx, a.Page, a.Profile.AccountURL)
			if err != nil {
				return res, err
			}
			if navigated {
				a.Logger.Debug("returned to account page after login")
			}
			return res, nil
		}
	}
}

// loginRequired classifies the freshly loaded account page.
func (a *Authenticator) loginRequired(ctx context.Context) (bool, error) {
	present, err := a.Page.Exists(ctx, a.Profile.LoginIndicator)
	if err != nil {
		return false, err
	}
	if present || !a.Profile.IndicatorURLMismatch {
		return present, nil
	}
	current, err := a.Page.URL(ctx)
	if err != nil {
		return false, err
	}
	return !navigate.SameLocation(current, a.Profile.AccountURL), nil
}

// stillLoggedOut inspects the page reached after submitting. A post-login
// landing page is allowed to differ from the account URL, but not to be the
// login page again.
func (a *Authenticator) stillLoggedOut(ctx context.Context) (bool, error) {
	present, err := a.Page.Exists(ctx, a.Profile.LoginIndicator)
	if err != nil {
		return false, err
	}
	if present || !a.Profile.IndicatorURLMismatch {
		return present, nil
	}
	current, err := a.Page.URL(ctx)
	if err != nil {
		return false, err
	}
	return navigate.SameLocation(current, a.Profile.LoginURL), nil
}

func (a *Authenticator) submitCredentials(ctx context.Context) error {
	creds, err := a.Credentials(ctx)
	if err != nil {
		return fmt.Errorf("failed to load credentials: %w", err)
	}

	if _, err := navigate.EnsureAt(ctx, a.Page, a.Profile.LoginURL); err != nil {
		return err
	}

	a.Logger.Info("filling login form", zap.Object("credentials", creds))
	for _, field := range a.Profile.Login.Fields {
		value, ok := creds[field.Credential]
		if !ok {
			return fmt.Errorf("no value for credential %q", field.Credential)
		}
		if err := a.Page.Type(ctx, field.Selector, value); err != nil {
			return err
		}
	}

	a.Logger.Info("submitting login form")
	return a.Page.ClickAndWaitNavigation(ctx, a.Profile.Login.Submit)
}
