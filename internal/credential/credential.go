// Package credential owns the durable cell holding the bearer token.
//
// The token is written on sign-in, read on every outbound request and on
// every reconnect attempt, and cleared on 401 or explicit sign-out. Callers
// never touch headers or storage themselves.
package credential

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
)

// Store is a named cell holding the credential string.
type Store interface {
	// Get returns the credential and whether one is present.
	Get() (string, bool)
	// Set writes the credential.
	Set(token string) error
	// Clear removes the credential.
	Clear() error
}

// FileStore persists the credential in a single file, mode 0600.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore returns a FileStore backed by path. An empty path defaults
// to $HOME/.ecotracker/token.
func NewFileStore(path string) *FileStore {
	if path == "" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, ".ecotracker", "token")
	}
	return &FileStore{path: path}
}

func (s *FileStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if err != nil || len(data) == 0 {
		return "", false
	}
	return string(data), true
}

func (s *FileStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, []byte(token), 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// MemStore is an in-memory Store for tests and embedded hosts.
type MemStore struct {
	mu    sync.Mutex
	token string
	set   bool
}

func NewMemStore() *MemStore { return &MemStore{} }

func (s *MemStore) Get() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.token, s.set
}

func (s *MemStore) Set(token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = token, true
	return nil
}

func (s *MemStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token, s.set = "", false
	return nil
}
