package credentials

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// Storage is the durable storage primitive the store persists through.
// Names are flat record names, not paths.
type Storage interface {
	// Mount prepares the storage for use. It is called once by the orchestrator
	// before anything is read; a failure is fatal to the session.
	Mount() error
	// ReadFile returns the record contents. A missing record returns an error
	// satisfying errors.Is(err, fs.ErrNotExist).
	ReadFile(name string) ([]byte, error)
	// WriteFile replaces the record contents.
	WriteFile(name string, data []byte) error
	// Remove deletes the record. Removing a missing record is not an error.
	Remove(name string) error
}

// DirStorage stores records as files inside a directory
type DirStorage struct {
	Dir string
}

// NewDirStorage creates a directory-backed storage rooted at dir
func NewDirStorage(dir string) *DirStorage {
	return &DirStorage{Dir: dir}
}

// Mount ensures the directory exists and is a directory
func (d *DirStorage) Mount() error {
	if d.Dir == "" {
		return fmt.Errorf("storage directory not configured")
	}

	// Create directory with user-only permissions (0700)
	if err := os.MkdirAll(d.Dir, 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}

	info, err := os.Stat(d.Dir)
	if err != nil {
		return fmt.Errorf("failed to stat storage directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("storage path is not a directory: %s", d.Dir)
	}
	return nil
}

// ReadFile reads a record
func (d *DirStorage) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(d.Dir, name))
}

// WriteFile writes a record atomically (temporary file + rename)
func (d *DirStorage) WriteFile(name string, data []byte) error {
	path := filepath.Join(d.Dir, name)
	tmpPath := path + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary record file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		// Clean up temp file on error
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to replace record file: %w", err)
	}

	return nil
}

// Remove deletes a record
func (d *DirStorage) Remove(name string) error {
	err := os.Remove(filepath.Join(d.Dir, name))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// MemStorage keeps records in memory. Each operation can be made to fail,
// which the tests use to exercise mount and persistence failures.
type MemStorage struct {
	mu    sync.Mutex
	files map[string][]byte

	MountErr  error
	WriteErr  error
	RemoveErr error
}

// NewMemStorage creates an empty in-memory storage
func NewMemStorage() *MemStorage {
	return &MemStorage{files: make(map[string][]byte)}
}

// Mount returns MountErr
func (m *MemStorage) Mount() error {
	return m.MountErr
}

// ReadFile returns a copy of the record
func (m *MemStorage) ReadFile(name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, ok := m.files[name]
	if !ok {
		return nil, &fs.PathError{Op: "open", Path: name, Err: fs.ErrNotExist}
	}
	return append([]byte(nil), data...), nil
}

// WriteFile stores a copy of data, or returns WriteErr
func (m *MemStorage) WriteFile(name string, data []byte) error {
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[name] = append([]byte(nil), data...)
	return nil
}

// Remove deletes the record, or returns RemoveErr
func (m *MemStorage) Remove(name string) error {
	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.files, name)
	return nil
}

// Has reports whether a record exists
func (m *MemStorage) Has(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.files[name]
	return ok
}
