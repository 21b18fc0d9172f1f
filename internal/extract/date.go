package extract

import (
	"fmt"
	"strings"
	"time"

	"ibank-scraper/internal/account"
	"ibank-scraper/internal/config"
)

// Normalizer resolves raw date text to UTC dates. Absolute dates are read in
// Location, the portal's zone, unless the text carries its own offset.
type Normalizer struct {
	Location *time.Location
	Layouts  []string
	Now      func() time.Time
}

// NewNormalizer builds a Normalizer from the profile's timezone and layouts.
func NewNormalizer(profile config.Profile, now func() time.Time) (Normalizer, error) {
	loc, err := profile.Location()
	if err != nil {
		return Normalizer{}, err
	}
	if now == nil {
		now = time.Now
	}
	return Normalizer{Location: loc, Layouts: profile.Layouts(), Now: now}, nil
}

// NormalizeDate maps raw to the calendar day it names.
//
// An absolute date resolves to the local calendar day in the portal's zone,
// expressed as UTC midnight of that day. "today" and "yesterday" are taken
// relative to the current instant in UTC; a pending row dated "today" keeps
// the full instant because the portal gives no day for it yet.
func (n Normalizer) NormalizeDate(raw string, pending bool) (account.Date, error) {
	text := strings.Join(strings.Fields(raw), " ")
	if text == "" {
		return account.Date{}, fmt.Errorf("%w: empty", ErrUnparsableDate)
	}

	if t, ok := n.parseAbsolute(text); ok {
		y, m, d := t.Date()
		return account.Day(y, m, d), nil
	}

	now := n.now().UTC()
	switch strings.ToLower(text) {
	case "today":
		if pending {
			return account.At(now), nil
		}
		y, m, d := now.Date()
		return account.Day(y, m, d), nil
	case "yesterday":
		y, m, d := now.Date()
		return account.Day(y, m, d-1), nil
	}

	return account.Date{}, fmt.Errorf("%w: %q", ErrUnparsableDate, raw)
}

func (n Normalizer) parseAbsolute(text string) (time.Time, bool) {
	loc := n.Location
	if loc == nil {
		loc = time.UTC
	}
	layouts := n.Layouts
	if len(layouts) == 0 {
		layouts = config.DefaultDateLayouts
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func (n Normalizer) now() time.Time {
	if n.Now == nil {
		return time.Now()
	}
	return n.Now()
}
