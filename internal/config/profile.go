package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/titanous/json5"
)

// DefaultDateLayouts are tried in order when a profile does not list its own.
// Two digit year variants follow their four digit forms.
var DefaultDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
	"2/1/2006",
	"02 Jan 2006",
	"2 Jan 2006",
	"Mon 2 Jan 2006",
	"02 Jan 06",
	"2 Jan 06",
	"02/01/06",
	"2/1/06",
	"Jan 2, 2006",
	"January 2, 2006",
}

// CredentialField binds one named secret to the input it is typed into.
type CredentialField struct {
	Credential string `json:"credential"`
	Selector   string `json:"selector"`
	Env        string `json:"env"`
}

// Login describes the login form.
type Login struct {
	Fields []CredentialField `json:"fields"`
	Submit string            `json:"submit"`
}

// Balances holds the selectors of the two balance elements.
type Balances struct {
	Current   string `json:"current"`
	Available string `json:"available"`
}

// RowFields are the selectors, relative to a row element, for one row shape.
type RowFields struct {
	Amount      string `json:"amount"`
	Description string `json:"description"`
	Card        string `json:"card"`
	Date        string `json:"date"`
}

// Transactions locates transaction rows and the fields of each row shape.
type Transactions struct {
	Row string `json:"row"`
	// PendingMarker is only present inside pending rows
	PendingMarker string    `json:"pendingMarker"`
	Pending       RowFields `json:"pending"`
	Settled       RowFields `json:"settled"`
}

// Viewport bounds the randomised browser window size.
type Viewport struct {
	MinWidth  int `json:"minWidth"`
	MaxWidth  int `json:"maxWidth"`
	MinHeight int `json:"minHeight"`
	MaxHeight int `json:"maxHeight"`
}

// Profile holds everything specific to one account portal.
type Profile struct {
	Name       string `json:"name"`
	AccountURL string `json:"accountUrl"`
	LoginURL   string `json:"loginUrl"`
	Timezone   string `json:"timezone"`

	LoginIndicator string `json:"loginIndicator"`
	// IndicatorURLMismatch also treats "not at the account URL" as logged out
	IndicatorURLMismatch bool `json:"indicatorUrlMismatch"`

	Login        Login        `json:"login"`
	Balances     Balances     `json:"balances"`
	Transactions Transactions `json:"transactions"`
	DateLayouts  []string     `json:"dateLayouts"`
	Viewport     Viewport     `json:"viewport"`
}

// Location returns the portal's time zone, UTC when unset.
func (p Profile) Location() (*time.Location, error) {
	if p.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(p.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", p.Timezone, err)
	}
	return loc, nil
}

// Layouts returns the absolute date layouts to try.
func (p Profile) Layouts() []string {
	if len(p.DateLayouts) > 0 {
		return p.DateLayouts
	}
	return DefaultDateLayouts
}

// Validate reports every missing required value at once.
func (p Profile) Validate() error {
	var errs []error
	required := []struct {
		key   string
		value string
	}{
		{"name", p.Name},
		{"accountUrl", p.AccountURL},
		{"loginUrl", p.LoginURL},
		{"loginIndicator", p.LoginIndicator},
		{"login.submit", p.Login.Submit},
		{"balances.current", p.Balances.Current},
		{"balances.available", p.Balances.Available},
		{"transactions.row", p.Transactions.Row},
		{"transactions.pendingMarker", p.Transactions.PendingMarker},
		{"transactions.pending.amount", p.Transactions.Pending.Amount},
		{"transactions.pending.date", p.Transactions.Pending.Date},
		{"transactions.settled.amount", p.Transactions.Settled.Amount},
		{"transactions.settled.date", p.Transactions.Settled.Date},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			errs = append(errs, fmt.Errorf("profile: %s is required", r.key))
		}
	}
	if len(p.Login.Fields) == 0 {
		errs = append(errs, errors.New("profile: login.fields must not be empty"))
	}
	for i, f := range p.Login.Fields {
		if f.Credential == "" || f.Selector == "" {
			errs = append(errs, fmt.Errorf("profile: login.fields[%d] needs credential and selector", i))
		}
	}
	if _, err := p.Location(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func splitExt(f string) (string, string) {
	for i := len(f) - 1; i >= 0; i-- {
		if f[i] == '.' {
			return f[0:i], f[i+1:]
		}
	}
	return f, ""
}

// ReadProfile reads a json5 profile, merging <name>.local.<ext> over it when
// present. At least one of the two files must exist.
func ReadProfile(name string) (Profile, error) {
	var out Profile
	found := false

	base, err := os.ReadFile(name)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(base) > 0 {
		if err := json5.Unmarshal(base, &out); err != nil {
			return out, fmt.Errorf("failed to parse %s: %w", name, err)
		}
		found = true
	}

	prefix, ext := splitExt(filepath.Base(name))
	localPath := filepath.Join(filepath.Dir(name), fmt.Sprintf("%s.local.%s", prefix, ext))
	local, err := os.ReadFile(localPath)
	if err != nil && !os.IsNotExist(err) {
		return out, err
	}
	if len(local) > 0 {
		var override Profile
		if err := json5.Unmarshal(local, &override); err != nil {
			return out, fmt.Errorf("failed to parse %s: %w", localPath, err)
		}
		if err := mergo.Merge(&out, override, mergo.WithOverride); err != nil {
			return out, fmt.Errorf("failed to merge %s: %w", localPath, err)
		}
		found = true
	}

	if !found {
		return out, os.ErrNotExist
	}
	return out, nil
}
