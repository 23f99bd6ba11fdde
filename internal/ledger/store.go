package ledger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrNotFound reports that a store holds no value for the requested key.
var ErrNotFound = errors.New("ledger: key not found")

// Store is the opaque key-value persistence contract. A file, a database —
// anything able to round-trip bytes per key works.
type Store interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
}

// FileStore keeps one JSON document per key under a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates the backing directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, key+".json")
}

// Get reads the value for key, returning ErrNotFound for absent keys.
func (s *FileStore) Get(key string) ([]byte, error) {
	raw, err := os.ReadFile(s.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read store key %s: %w", key, err)
	}
	return raw, nil
}

// Put writes the value through a temp file and rename so a crash mid-write
// never leaves a truncated document behind.
func (s *FileStore) Put(key string, value []byte) error {
	tmp := s.path(key) + ".tmp"
	if err := os.WriteFile(tmp, value, 0o644); err != nil {
		return fmt.Errorf("write store key %s: %w", key, err)
	}
	if err := os.Rename(tmp, s.path(key)); err != nil {
		return fmt.Errorf("commit store key %s: %w", key, err)
	}
	return nil
}
