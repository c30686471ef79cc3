// Package store is the persistent configuration store: opaque blobs keyed
// by well-known identifiers, surviving restarts.
package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/aramidnet/aramid/state"
)

var _ state.PersistentStore = (*FileStore)(nil)
var _ state.PersistentStore = (*MemStore)(nil)

// FileStore keeps one file per key under a directory.
type FileStore struct {
	dir string
}

func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (f *FileStore) path(key string) string {
	return filepath.Join(f.dir, key+".yaml")
}

func (f *FileStore) Load(key string) ([]byte, bool, error) {
	blob, err := os.ReadFile(f.path(key))
	if os.IsNotExist(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return blob, true, nil
}

func (f *FileStore) Save(key string, blob []byte) error {
	tmp := f.path(key) + ".tmp"
	if err := os.WriteFile(tmp, blob, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path(key))
}

func (f *FileStore) Erase(key string) error {
	err := os.Remove(f.path(key))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// MemStore is the in-memory store used by tests.
type MemStore struct {
	mu    sync.Mutex
	blobs map[string][]byte

	// FailSaves makes every Save return an error, for exercising the
	// persist-before-advertise failure path.
	FailSaves bool
}

func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[string][]byte)}
}

func (m *MemStore) Load(key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	blob, ok := m.blobs[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), blob...), true, nil
}

func (m *MemStore) Save(key string, blob []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailSaves {
		return fmt.Errorf("store unavailable")
	}
	m.blobs[key] = append([]byte(nil), blob...)
	return nil
}

func (m *MemStore) Erase(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.blobs, key)
	return nil
}
