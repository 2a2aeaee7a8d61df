package record

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var (
	// ErrNoRecord is returned when no kiosk record has been saved.
	ErrNoRecord = errors.New("kiosk record not found")

	// ErrInvalidRecord is returned when a record fails validation.
	ErrInvalidRecord = errors.New("invalid kiosk record")
)

// ModeDid places views below the host's top chrome.
const ModeDid = "did"

// Info is the persisted kiosk record.
type Info struct {
	Name string `json:"name"`
	Mode string `json:"mode"`
}

// Validate checks that the record names a kiosk.
func (i Info) Validate() error {
	if strings.TrimSpace(i.Name) == "" {
		return fmt.Errorf("%w: name cannot be empty", ErrInvalidRecord)
	}
	return nil
}

// Store defines the interface for persisting the kiosk record
type Store interface {
	// Load returns the saved record or ErrNoRecord
	Load() (Info, error)

	// Save replaces the saved record
	Save(info Info) error

	// Reset removes the saved record
	Reset() error
}

// FileStore implements Store using a JSON file
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore creates a file-backed store, creating the parent directory
func NewFileStore(path string) (*FileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create record directory: %w", err)
	}
	return &FileStore{path: path}, nil
}

// Load reads the record from disk
func (fs *FileStore) Load() (Info, error) {
	fs.mu.RLock()
	defer fs.mu.RUnlock()

	data, err := os.ReadFile(fs.path)
	if errors.Is(err, os.ErrNotExist) {
		return Info{}, ErrNoRecord
	}
	if err != nil {
		return Info{}, fmt.Errorf("failed to read record file: %w", err)
	}

	var info Info
	if err := json.Unmarshal(data, &info); err != nil {
		return Info{}, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return info, nil
}

// Save writes the record through a temporary file so readers never see a
// partial document
func (fs *FileStore) Save(info Info) error {
	if err := info.Validate(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()

	tmp := fs.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write record file: %w", err)
	}
	if err := os.Rename(tmp, fs.path); err != nil {
		return fmt.Errorf("failed to replace record file: %w", err)
	}
	return nil
}

// Reset removes the record file
func (fs *FileStore) Reset() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove record file: %w", err)
	}
	return nil
}

// Path returns the backing file
func (fs *FileStore) Path() string {
	return fs.path
}

// MemoryStore keeps the record in memory
type MemoryStore struct {
	mu   sync.RWMutex
	info *Info
}

func (ms *MemoryStore) Load() (Info, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()
	if ms.info == nil {
		return Info{}, ErrNoRecord
	}
	return *ms.info, nil
}

func (ms *MemoryStore) Save(info Info) error {
	if err := info.Validate(); err != nil {
		return err
	}
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.info = &info
	return nil
}

func (ms *MemoryStore) Reset() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.info = nil
	return nil
}
