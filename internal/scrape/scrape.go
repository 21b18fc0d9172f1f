// Package scrape runs one complete scrape of an account portal: restore the
// session, authenticate, and extract the account snapshot.
package scrape

import (
	"context"
	"fmt"
	"time"

	"ibank-scraper/internal/account"
	"ibank-scraper/internal/auth"
	"ibank-scraper/internal/browser"
	"ibank-scraper/internal/config"
	"ibank-scraper/internal/extract"
	"ibank-scraper/internal/metrics"
	"ibank-scraper/internal/session"

	"go.uber.org/zap"
)

// Error kinds reported by Classify. KindSessionLoad is never fatal; it is
// only recorded as a recovered error.
const (
	KindNone             = "none"
	KindSessionLoad      = "session_load"
	KindAuthentication   = "authentication"
	KindUnparsableAmount = "unparsable_amount"
	KindUnparsableDate   = "unparsable_date"
	KindAutomation       = "automation"
)

// Classify maps a run error to its kind. Anything not recognised came from
// the browser or its surroundings.
func Classify(err error) string {
	switch {
	case err == nil:
		return KindNone
	case auth.IsAuthenticationFailure(err):
		return KindAuthentication
	case extract.IsUnparsableDate(err):
		return KindUnparsableDate
	case extract.IsUnparsableAmount(err):
		return KindUnparsableAmount
	case session.IsCorrupt(err):
		return KindSessionLoad
	}
	return KindAutomation
}

// Notifier is told about every successful snapshot.
type Notifier interface {
	Notify(ctx context.Context, snap account.Snapshot) (int, error)
}

// Runner holds everything one scrape needs. Page, Store, Profile,
// Credentials and Logger are required.
type Runner struct {
	Page        browser.Page
	Store       session.Store
	Profile     config.Profile
	Credentials auth.CredentialSource
	Logger      *zap.Logger

	// Now defaults to time.Now
	Now func() time.Time
	// Metrics defaults to metrics.NoOpCollector
	Metrics metrics.Collector
	// Notifier is optional; its failures are only logged
	Notifier Notifier
}

func (r *Runner) now() time.Time {
	if r.Now == nil {
		return time.Now()
	}
	return r.Now()
}

func (r *Runner) collector() metrics.Collector {
	if r.Metrics == nil {
		return metrics.NoOpCollector{}
	}
	return r.Metrics
}

// Run drives the page from a stored session to a finished snapshot. On error
// the returned snapshot is empty and must not be emitted.
func (r *Runner) Run(ctx context.Context) (account.Snapshot, error) {
	start := r.now()
	snap, loggedIn, err := r.run(ctx)
	elapsed := r.now().Sub(start)

	if loggedIn {
		r.collector().RecordLogin()
	}
	if err != nil {
		kind := Classify(err)
		r.collector().RecordFailure(kind, elapsed)
		r.Logger.Error("scrape failed", zap.String("kind", kind), zap.Duration("elapsed", elapsed), zap.Error(err))
		return account.Snapshot{}, err
	}

	r.collector().RecordSuccess(elapsed, len(snap.Transactions), r.now())
	r.Logger.Info("scrape finished",
		zap.Int("transactions", len(snap.Transactions)),
		zap.Duration("elapsed", elapsed),
	)

	if r.Notifier != nil {
		if sent, err := r.Notifier.Notify(ctx, snap); err != nil {
			r.Logger.Warn("failed to send notification", zap.Error(err))
		} else if sent > 0 {
			r.Logger.Info("notified new transactions", zap.Int("count", sent))
		}
	}
	return snap, nil
}

func (r *Runner) run(ctx context.Context) (account.Snapshot, bool, error) {
	stored, err := session.Restore(ctx, r.Store, r.Logger)
	if err != nil {
		r.collector().RecordRecovered(KindSessionLoad)
	}
	r.Logger.Info("loaded session", zap.Int("cookies", len(stored)))
	if len(stored) > 0 {
		if err := r.Page.SetCookies(ctx, stored); err != nil {
			return account.Snapshot{}, false, fmt.Errorf("failed to restore cookies: %w", err)
		}
	}

	authenticator := &auth.Authenticator{
		Page:        r.Page,
		Store:       r.Store,
		Profile:     r.Profile,
		Credentials: r.Credentials,
		Logger:      r.Logger,
	}
	res, err := authenticator.Authenticate(ctx)
	if err != nil {
		return account.Snapshot{}, res.LoggedIn, err
	}

	html, err := r.Page.HTML(ctx)
	if err != nil {
		return account.Snapshot{}, res.LoggedIn, fmt.Errorf("failed to read account page: %w", err)
	}

	snap, err := extract.Snapshot(html, r.Profile, r.now)
	if err != nil {
		return account.Snapshot{}, res.LoggedIn, fmt.Errorf("failed to extract account data: %w", err)
	}
	return snap, res.LoggedIn, nil
}
