package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// FileStore keeps the session as a JSON array in a single file.
type FileStore struct {
	Path string
}

// NewFileStore returns a store for the file at path. The file is created on
// the first Save.
func NewFileStore(path string) FileStore {
	return FileStore{Path: path}
}

// Load returns an empty session when the file does not exist yet.
func (f FileStore) Load(_ context.Context) (Session, error) {
	raw, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var s Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, f.Path, err)
	}
	if s == nil {
		s = Session{}
	}
	return s, nil
}

// Save overwrites the file with the given session.
func (f FileStore) Save(_ context.Context, s Session) error {
	if s == nil {
		s = Session{}
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.Path, raw, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}
