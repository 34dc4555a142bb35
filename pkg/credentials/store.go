package credentials

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// ErrNotFound is returned by Load when no snapshot has been saved yet.
var ErrNotFound = errors.New("credentials: snapshot not found")

// Store provides persistence for the credential snapshot.
type Store interface {
	// Load returns the saved snapshot, or ErrNotFound.
	Load() ([]Cookie, error)

	// Save replaces the saved snapshot.
	Save(cookies []Cookie) error
}

// FileStore implements Store using a JSON file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a file-based credential store.
// If path is empty, defaults to cookies.json in the working directory.
func NewFileStore(path string) *FileStore {
	if path == "" {
		path = "cookies.json"
	}
	return &FileStore{path: path}
}

// Path returns the snapshot file location.
func (s *FileStore) Path() string {
	return s.path
}

// Load reads the snapshot from disk, normalising every record.
func (s *FileStore) Load() ([]Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	file, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, s.path)
		}
		return nil, fmt.Errorf("failed to open credential file: %w", err)
	}
	defer file.Close()

	var cookies []Cookie
	if err := json.NewDecoder(file).Decode(&cookies); err != nil {
		return nil, fmt.Errorf("failed to decode credential file %s: %w", s.path, err)
	}

	for i := range cookies {
		cookies[i].normalize()
	}
	return cookies, nil
}

// Save writes the snapshot to disk atomically.
func (s *FileStore) Save(cookies []Cookie) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Create directory if it doesn't exist
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return fmt.Errorf("failed to create credential directory: %w", err)
	}

	if cookies == nil {
		cookies = []Cookie{}
	}

	// Create temp file for atomic write
	tempPath := s.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temp credential file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(cookies); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	// Atomic rename
	if err := os.Rename(tempPath, s.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}
