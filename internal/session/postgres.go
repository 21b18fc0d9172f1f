package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// PostgresStore keeps every saved session as a new row so older logins stay
// inspectable; Load returns the most recent one for the portal.
type PostgresStore struct {
	db     *sql.DB
	portal string
}

// NewPostgresStore wraps a migrated database handle (see database.Open).
func NewPostgresStore(db *sql.DB, portal string) *PostgresStore {
	return &PostgresStore{db: db, portal: portal}
}

// Load retrieves the most recent session, empty when none was saved yet.
func (r *PostgresStore) Load(ctx context.Context) (Session, error) {
	var raw []byte
	query := `SELECT cookies FROM sessions WHERE portal = $1 ORDER BY updated_at DESC, id DESC LIMIT 1`
	err := r.db.QueryRowContext(ctx, query, r.portal).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: portal %s: %v", ErrCorrupt, r.portal, err)
	}
	if s == nil {
		s = Session{}
	}
	return s, nil
}

// Save stores the session with the current timestamp.
func (r *PostgresStore) Save(ctx context.Context, s Session) error {
	if s == nil {
		s = Session{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	query := `INSERT INTO sessions (portal, cookies, updated_at) VALUES ($1, $2, CURRENT_TIMESTAMP)`
	if _, err := r.db.ExecContext(ctx, query, r.portal, string(raw)); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}
	return nil
}
