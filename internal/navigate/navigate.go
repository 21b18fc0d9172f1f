package navigate

import (
	"context"
	"fmt"
	"net/url"

	"ibank-scraper/internal/browser"
)

// normalize drops the query and fragment, which portals append on their own,
// and spells an empty path as "/".
func normalize(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.RawQuery = ""
	u.ForceQuery = false
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "" && u.Opaque == "" && u.Host != "" {
		u.Path = "/"
	}
	return u.String(), nil
}

// SameLocation reports whether current points at target once volatile
// URL parts are ignored.
func SameLocation(current, target string) bool {
	a, err := normalize(current)
	if err != nil {
		return false
	}
	b, err := normalize(target)
	if err != nil {
		return false
	}
	return a == b
}

// EnsureAt navigates to target only when the page is somewhere else.
// Reloading a page that is already showing can reset in-page state.
func EnsureAt(ctx context.Context, page browser.Page, target string) (bool, error) {
	current, err := page.URL(ctx)
	if err != nil {
		return false, err
	}
	if SameLocation(current, target) {
		return false, nil
	}
	if err := page.Navigate(ctx, target); err != nil {
		return false, fmt.Errorf("failed to open %s: %w", target, err)
	}
	return true, nil
}
