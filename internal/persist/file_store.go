// Package persist provides the BlobStore implementations backing state
// snapshots and archived audio: a directory-backed file store and a NATS
// JetStream object store.
package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// File and directory permissions.
const (
	filePermissions = 0o600
	dirPermissions  = 0o750
)

// Static errors.
var (
	ErrKeyEmpty   = errors.New("key cannot be empty")
	ErrKeyInvalid = errors.New("key must be a plain file name")
	ErrKeyMissing = errors.New("no blob stored under key")
)

// FileStore is a directory-backed blob store. Each key maps to one file
// directly under the store directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the store directory if needed and returns a store
// rooted at it.
func NewFileStore(dir string) (*FileStore, error) {
	err := os.MkdirAll(dir, dirPermissions)
	if err != nil {
		return nil, fmt.Errorf("failed to create store directory '%s': %w", dir, err)
	}

	return &FileStore{dir: dir}, nil
}

// Download reads the blob stored under key.
func (s *FileStore) Download(_ context.Context, key string) ([]byte, error) {
	path, err := s.keyPath(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrKeyMissing, key)
		}

		return nil, fmt.Errorf("failed to read blob '%s': %w", key, err)
	}

	return data, nil
}

// Upload writes data under key, replacing any previous blob.
func (s *FileStore) Upload(_ context.Context, key string, data []byte) error {
	path, err := s.keyPath(key)
	if err != nil {
		return err
	}

	err = os.WriteFile(path, data, filePermissions)
	if err != nil {
		return fmt.Errorf("failed to write blob '%s': %w", key, err)
	}

	return nil
}

// keyPath validates the key and resolves it inside the store directory.
// Keys are plain file names; separators and traversal are rejected.
func (s *FileStore) keyPath(key string) (string, error) {
	if key == "" {
		return "", ErrKeyEmpty
	}

	if strings.ContainsAny(key, `/\`) || key == "." || key == ".." {
		return "", fmt.Errorf("%w: %q", ErrKeyInvalid, key)
	}

	return filepath.Join(s.dir, key), nil
}
