package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// FileStore keeps the token pair in a JSON file readable only by its owner
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a store backed by the file at path
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the credentials file location
func (f *FileStore) Path() string {
	return f.path
}

type fileCredentials struct {
	Access  string    `json:"access"`
	Refresh string    `json:"refresh"`
	SavedAt time.Time `json:"saved_at"`
}

// Load returns an empty pair when the file does not exist. Files older than
// TokenMaxAge are treated as absent.
func (f *FileStore) Load(ctx context.Context) (TokenPair, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return TokenPair{}, nil
		}
		return TokenPair{}, fmt.Errorf("failed to read credentials: %w", err)
	}

	var creds fileCredentials
	if err := json.Unmarshal(data, &creds); err != nil {
		return TokenPair{}, fmt.Errorf("failed to parse credentials: %w", err)
	}
	if !creds.SavedAt.IsZero() && time.Since(creds.SavedAt) > TokenMaxAge {
		return TokenPair{}, nil
	}

	return TokenPair{Access: creds.Access, Refresh: creds.Refresh}, nil
}

// Save writes the pair to a temporary file and renames it into place
func (f *FileStore) Save(ctx context.Context, pair TokenPair) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(fileCredentials{
		Access:  pair.Access,
		Refresh: pair.Refresh,
		SavedAt: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create credentials file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to set credentials permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("failed to replace credentials: %w", err)
	}
	return nil
}

// Clear removes the credentials file; a missing file is not an error
func (f *FileStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove credentials: %w", err)
	}
	return nil
}
