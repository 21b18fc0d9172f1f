package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"ibank-scraper/internal/session"

	"github.com/chromedp/cdproto/network"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// signal models an event source that drops events nobody is listening for
type signal struct {
	listeners []chan error
}

func (s *signal) listen(_ context.Context) <-chan error {
	ch := make(chan error, 1)
	s.listeners = append(s.listeners, ch)
	return ch
}

func (s *signal) fire() {
	for _, ch := range s.listeners {
		ch <- nil
	}
	s.listeners = nil
}

func TestTriggerAndWaitSeesImmediateNavigation(t *testing.T) {
	sig := &signal{}
	// the navigation completes before the trigger even returns
	trigger := func(context.Context) error {
		sig.fire()
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, TriggerAndWait(ctx, trigger, sig.listen))
}

func TestTriggerAndWaitTriggerError(t *testing.T) {
	boom := errors.New("click failed")
	arm := func(context.Context) <-chan error { return make(chan error) }

	err := TriggerAndWait(context.Background(), func(context.Context) error { return boom }, arm)
	require.ErrorIs(t, err, boom)
}

func TestTriggerAndWaitPropagatesWaitError(t *testing.T) {
	boom := errors.New("navigation failed")
	arm := func(context.Context) <-chan error {
		ch := make(chan error, 1)
		ch <- boom
		return ch
	}
	err := TriggerAndWait(context.Background(), func(context.Context) error { return nil }, arm)
	require.ErrorIs(t, err, boom)
}

func TestTriggerAndWaitHonoursContext(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	arm := func(context.Context) <-chan error { return make(chan error) }

	err := TriggerAndWait(ctx, func(context.Context) error { return nil }, arm)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestJitter(t *testing.T) {
	assert.Equal(t, 1366, jitter(0, 0, 1366))
	assert.Equal(t, 1200, jitter(1200, 1200, 1366))
	assert.Equal(t, 1200, jitter(1200, 900, 1366))
	for i := 0; i < 100; i++ {
		w := jitter(1200, 1600, 1366)
		require.GreaterOrEqual(t, w, 1200)
		require.LessOrEqual(t, w, 1600)
	}
}

func TestCookieConversion(t *testing.T) {
	s := session.Session{
		{Name: "sid", Value: "v", Domain: "bank.test", Path: "/", Expires: 1700000000.25, Secure: true, SameSite: "Strict"},
		{Name: "tmp", Value: "t", Domain: "bank.test", Path: "/", Expires: -1, Session: true},
	}

	params := toCookieParams(s)
	require.Len(t, params, 2)
	require.NotNil(t, params[0].Expires)
	assert.Equal(t, int64(1700000000), params[0].Expires.Time().Unix())
	assert.Equal(t, network.CookieSameSiteStrict, params[0].SameSite)
	assert.Nil(t, params[1].Expires)

	back := fromNetworkCookies([]*network.Cookie{
		{Name: "sid", Value: "v", Domain: "bank.test", Path: "/", Expires: 1700000000.25, Secure: true, SameSite: network.CookieSameSiteStrict},
	})
	assert.Equal(t, s[0], back[0])
}
