package storage

import (
	"errors"
	"io"
	"os"
	"path/filepath"
)

// FSStore keeps blobs as plain files under a base directory, the
// storage mode offline deployments run with.
type FSStore struct{ root string }

func NewFSStore(root string) (*FSStore, error) {
	if root == "" {
		root = "./data"
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FSStore{root: root}, nil
}

func (s *FSStore) path(key string) string {
	return filepath.Join(s.root, filepath.Clean(key))
}

// Put writes the blob, replacing any previous bytes under the key.
func (s *FSStore) Put(key string, r io.Reader) (string, error) {
	if key == "" {
		return "", errors.New("blob key required")
	}
	dst := s.path(key)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(dst, data, 0o644); err != nil {
		return "", err
	}
	return key, nil
}

func (s *FSStore) Get(key string) (io.ReadCloser, error) {
	return os.Open(s.path(key))
}
