// Package store provides the KeyedBlobStore capability the render pipeline
// persists deliverables through. Backends are swappable: an in-memory map
// for tests and previews, a directory for real output.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNotFound is returned by Get for keys that were never Put or were
// deleted.
var ErrNotFound = errors.New("store: blob not found")

// KeyedBlobStore maps string keys to immutable byte blobs.
type KeyedBlobStore interface {
	Put(ctx context.Context, key string, blob []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// MemoryStore keeps blobs in a mutex-guarded map.
type MemoryStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{blobs: make(map[string][]byte)}
}

// Put stores a copy of blob under key, replacing any previous value.
func (s *MemoryStore) Put(_ context.Context, key string, blob []byte) error {
	cp := make([]byte, len(blob))
	copy(cp, blob)
	s.mu.Lock()
	s.blobs[key] = cp
	s.mu.Unlock()
	return nil
}

// Get returns the blob stored under key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	blob, ok := s.blobs[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return blob, nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.blobs, key)
	s.mu.Unlock()
	return nil
}

// DirStore persists blobs as files under a directory. Keys are flattened so
// a hostile key cannot escape the directory.
type DirStore struct {
	Dir string
}

// NewDirStore creates the backing directory if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}
	return &DirStore{Dir: dir}, nil
}

// Put writes blob to "<Dir>/<key>".
func (s *DirStore) Put(_ context.Context, key string, blob []byte) error {
	return os.WriteFile(s.path(key), blob, 0o644)
}

// Get reads the blob stored under key.
func (s *DirStore) Get(_ context.Context, key string) ([]byte, error) {
	blob, err := os.ReadFile(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return blob, err
}

// Delete removes key. Deleting an absent key is not an error.
func (s *DirStore) Delete(_ context.Context, key string) error {
	err := os.Remove(s.path(key))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

func (s *DirStore) path(key string) string {
	key = strings.ReplaceAll(key, string(os.PathSeparator), "_")
	key = strings.ReplaceAll(key, "..", "_")
	return filepath.Join(s.Dir, key)
}
