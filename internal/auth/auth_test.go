package auth

import (
	"context"
	"errors"
	"testing"

	"ibank-scraper/internal/browser/browsertest"
	"ibank-scraper/internal/config"
	"ibank-scraper/internal/session"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	accountURL = "https://bank.test/ibank/accounts.html"
	loginURL   = "https://bank.test/ibank/login.action"
	welcomeURL = "https://bank.test/ibank/welcome.html?first=1"
)

var authCookie = session.Cookie{Name: "JSESSIONID", Value: "fresh", Domain: "bank.test", Path: "/"}

func testProfile() config.Profile {
	return config.Profile{
		Name:           "test",
		AccountURL:     accountURL,
		LoginURL:       loginURL,
		LoginIndicator: ".ico.ico-error",
		Login: config.Login{
			Fields: []config.CredentialField{
				{Credential: "accessNumber", Selector: "#access-number"},
				{Credential: "securityNumber", Selector: "#securityNumber"},
				{Credential: "password", Selector: "#internet-password"},
			},
			Submit: "#logonButton",
		},
	}
}

func testPortal() browsertest.Portal {
	return browsertest.Portal{
		AccountURL: accountURL,
		LoginURL:   loginURL,
		Indicator:  ".ico.ico-error",
		Submit:     "#logonButton",
		Credentials: map[string]string{
			"#access-number":    "12345678",
			"#securityNumber":   "1234",
			"#internet-password": "secret",
		},
		AuthCookie: authCookie,
		LandingURL: welcomeURL,
	}
}

var goodCreds = config.Credentials{
	"accessNumber":   "12345678",
	"securityNumber": "1234",
	"password":       "secret",
}

type credCounter struct {
	calls int
	creds config.Credentials
	err   error
}

func (c *credCounter) source(context.Context) (config.Credentials, error) {
	c.calls++
	return c.creds, c.err
}

func newAuthenticator(page *browsertest.Page, store session.Store, creds *credCounter) *Authenticator {
	return &Authenticator{
		Page:        page,
		Store:       store,
		Profile:     testProfile(),
		Credentials: creds.source,
		Logger:      zap.NewNop(),
	}
}

func TestLoginFromEmptySession(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	store := &browsertest.MemoryStore{}
	creds := &credCounter{creds: goodCreds}

	res, err := newAuthenticator(page, store, creds).Authenticate(context.Background())
	require.NoError(t, err)

	assert.True(t, res.LoggedIn)
	assert.Equal(t, []State{Unverified, NeedsLogin, Verifying, Authenticated}, res.Trace)
	assert.Equal(t, 1, creds.calls)
	assert.Equal(t, 1, page.Submits)
	assert.Equal(t, "secret", page.TypedValues()["#internet-password"])

	assert.Equal(t, 1, store.Saves)
	assert.Contains(t, store.Session, authCookie)

	// account -> login -> back to account after landing on the welcome page
	assert.Equal(t, []string{accountURL, loginURL, accountURL}, page.Navigations)
	assert.Equal(t, accountURL, page.Current)
}

func TestValidSessionSkipsLogin(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	page.Jar = session.Session{authCookie}
	refreshed := session.Cookie{Name: "refresh", Value: "r2"}
	page.RefreshCookie = &refreshed
	store := &browsertest.MemoryStore{}
	creds := &credCounter{creds: goodCreds}

	res, err := newAuthenticator(page, store, creds).Authenticate(context.Background())
	require.NoError(t, err)

	assert.False(t, res.LoggedIn)
	assert.Equal(t, []State{Unverified, Authenticated}, res.Trace)
	assert.Zero(t, creds.calls)
	assert.Zero(t, page.Submits)
	assert.Empty(t, page.TypedValues())

	assert.Equal(t, 1, store.Saves)
	assert.Equal(t, session.Session{authCookie, refreshed}, store.Session)
	assert.Equal(t, []string{accountURL}, page.Navigations)
}

func TestRejectedLoginIsFatalAndNotRetried(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	store := &browsertest.MemoryStore{}
	creds := &credCounter{creds: config.Credentials{
		"accessNumber":   "12345678",
		"securityNumber": "1234",
		"password":       "wrong",
	}}

	res, err := newAuthenticator(page, store, creds).Authenticate(context.Background())
	require.Error(t, err)
	assert.True(t, IsAuthenticationFailure(err))

	assert.Equal(t, 1, page.Submits)
	assert.Zero(t, store.Saves)
	assert.Equal(t, []State{Unverified, NeedsLogin, Verifying, LoginFailed}, res.Trace)
}

func TestCredentialErrorStopsBeforeSubmit(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	store := &browsertest.MemoryStore{}
	boom := errors.New("missing credentials: password")
	creds := &credCounter{err: boom}

	_, err := newAuthenticator(page, store, creds).Authenticate(context.Background())
	require.ErrorIs(t, err, boom)
	assert.False(t, IsAuthenticationFailure(err))
	assert.Zero(t, page.Submits)
	assert.Zero(t, store.Saves)
}

func TestSaveFailureIsNotFatal(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	page.Jar = session.Session{authCookie}
	store := &browsertest.MemoryStore{SaveErr: errors.New("disk full")}

	_, err := newAuthenticator(page, store, &credCounter{}).Authenticate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, store.Saves)
}

func TestNavigationErrorPropagates(t *testing.T) {
	page := browsertest.NewPage(testPortal())
	page.FailNavigate = errors.New("net::ERR_CONNECTION_RESET")

	_, err := newAuthenticator(page, &browsertest.MemoryStore{}, &credCounter{}).Authenticate(context.Background())
	require.ErrorIs(t, err, page.FailNavigate)
	assert.Len(t, page.Navigations, 1)
}

func TestURLMismatchIndicator(t *testing.T) {
	portal := testPortal()
	portal.RedirectToLogin = true
	portal.LandingURL = ""

	profile := testProfile()
	profile.LoginIndicator = "#never-rendered"
	profile.IndicatorURLMismatch = true

	t.Run("redirect means logged out", func(t *testing.T) {
		page := browsertest.NewPage(portal)
		store := &browsertest.MemoryStore{}
		a := newAuthenticator(page, store, &credCounter{creds: goodCreds})
		a.Profile = profile

		res, err := a.Authenticate(context.Background())
		require.NoError(t, err)
		assert.True(t, res.LoggedIn)
		assert.Equal(t, accountURL, page.Current)
		assert.Equal(t, 1, store.Saves)
	})

	t.Run("bounced back to login page", func(t *testing.T) {
		page := browsertest.NewPage(portal)
		a := newAuthenticator(page, &browsertest.MemoryStore{}, &credCounter{creds: config.Credentials{
			"accessNumber":   "1",
			"securityNumber": "2",
			"password":       "3",
		}})
		a.Profile = profile

		_, err := a.Authenticate(context.Background())
		require.ErrorIs(t, err, ErrAuthenticationFailure)
		assert.Equal(t, 1, page.Submits)
	})
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "needs_login", NeedsLogin.String())
	assert.Equal(t, "state(42)", State(42).String())
}
