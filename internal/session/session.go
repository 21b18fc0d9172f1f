package session

import (
	"context"
	"errors"

	"go.uber.org/zap"
)

// ErrCorrupt is returned when persisted session data cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt session data")

// Cookie is a browser cookie passed through verbatim between the browser and
// storage. Field names follow the browser's own JSON shape.
type Cookie struct {
	Name         string  `json:"name"`
	Value        string  `json:"value"`
	Domain       string  `json:"domain"`
	Path         string  `json:"path"`
	Expires      float64 `json:"expires"`
	Size         int64   `json:"size,omitempty"`
	HTTPOnly     bool    `json:"httpOnly"`
	Secure       bool    `json:"secure"`
	Session      bool    `json:"session"`
	SameSite     string  `json:"sameSite,omitempty"`
	Priority     string  `json:"priority,omitempty"`
	SourceScheme string  `json:"sourceScheme,omitempty"`
	SourcePort   int64   `json:"sourcePort,omitempty"`
}

// Session is the ordered cookie set of one portal login.
type Session []Cookie

// Store defines the interface for session persistence.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
}

// Restore loads the stored session, falling back to an empty one on any
// failure. A broken session only costs a fresh login. The returned session is
// always usable; a non-nil error reports the load failure that was recovered
// from.
func Restore(ctx context.Context, store Store, logger *zap.Logger) (Session, error) {
	s, err := store.Load(ctx)
	if err != nil {
		logger.Warn("could not load stored session, starting fresh", zap.Error(err))
		return Session{}, err
	}
	if s == nil {
		return Session{}, nil
	}
	return s, nil
}

// IsCorrupt reports whether err came from undecodable session data.
func IsCorrupt(err error) bool {
	return errors.Is(err, ErrCorrupt)
}
