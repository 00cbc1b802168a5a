package store

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
)

// FSObjectStore keeps blobs under a directory, keyed by relative
// path. Used for local runs and tests in place of S3.
type FSObjectStore struct {
	root string
}

func NewFSObjectStore(root string) *FSObjectStore {
	return &FSObjectStore{root: root}
}

func (s *FSObjectStore) Exists(_ context.Context, key string) (bool, error) {
	_, err := os.Stat(filepath.Join(s.root, filepath.FromSlash(key)))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *FSObjectStore) Upload(_ context.Context, key string, data []byte) error {
	path := filepath.Join(s.root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (s *FSObjectStore) Download(_ context.Context, key string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.root, filepath.FromSlash(key)))
}
