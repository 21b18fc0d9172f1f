package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
)

// Ledger remembers which transactions were already announced.
type Ledger interface {
	IsNotified(ctx context.Context, key string) (bool, error)
	MarkNotified(ctx context.Context, keys []string) error
}

// PostgresLedger implements Ledger on the notified_transactions table.
// The table is created by the database package migrations.
type PostgresLedger struct {
	db     *sql.DB
	portal string
}

// NewPostgresLedger scopes the ledger to one portal's keys.
func NewPostgresLedger(db *sql.DB, portal string) *PostgresLedger {
	return &PostgresLedger{db: db, portal: portal}
}

func (l *PostgresLedger) IsNotified(ctx context.Context, key string) (bool, error) {
	var notified bool
	query := `SELECT notified FROM notified_transactions WHERE portal = $1 AND transaction_key = $2`
	err := l.db.QueryRowContext(ctx, query, l.portal, key).Scan(&notified)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to check if transaction is notified: %w", err)
	}
	return notified, nil
}

func (l *PostgresLedger) MarkNotified(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	query := `
		INSERT INTO notified_transactions (portal, transaction_key, notified, updated_at)
		VALUES ($1, $2, true, CURRENT_TIMESTAMP)
		ON CONFLICT (portal, transaction_key)
		DO UPDATE SET notified = true, updated_at = CURRENT_TIMESTAMP
	`

	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, query, l.portal, key); err != nil {
			return fmt.Errorf("failed to mark transaction as notified: %w", err)
		}
	}
	return tx.Commit()
}

// FileLedger keeps notified keys in a JSON file, one key list per portal.
// It is the default when no database is configured, so announcements survive
// between runs.
type FileLedger struct {
	mu     sync.Mutex
	path   string
	portal string
}

func NewFileLedger(path, portal string) *FileLedger {
	return &FileLedger{path: path, portal: portal}
}

func (l *FileLedger) IsNotified(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		return false, err
	}
	return slices.Contains(all[l.portal], key), nil
}

func (l *FileLedger) MarkNotified(_ context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	all, err := l.read()
	if err != nil {
		return err
	}
	known := all[l.portal]
	for _, key := range keys {
		if !slices.Contains(known, key) {
			known = append(known, key)
		}
	}
	all[l.portal] = known

	raw, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode notified transactions: %w", err)
	}
	if err := os.WriteFile(l.path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write notified transactions: %w", err)
	}
	return nil
}

// read returns an empty ledger when the file does not exist yet.
func (l *FileLedger) read() (map[string][]string, error) {
	raw, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read notified transactions: %w", err)
	}
	all := map[string][]string{}
	if err := json.Unmarshal(raw, &all); err != nil {
		return nil, fmt.Errorf("failed to decode notified transactions %s: %w", l.path, err)
	}
	if all == nil {
		all = map[string][]string{}
	}
	return all, nil
}
