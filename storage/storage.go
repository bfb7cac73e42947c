// Package storage is the file access used for translation output,
// backups and the lock file. OS works on the real file system; Memory
// backs tests.
package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// ErrNotExist is wrapped by ReadTextFile when the file is missing.
var ErrNotExist = fs.ErrNotExist

// FS reads and writes text files.
type FS interface {
	ReadTextFile(path string) (string, error)
	WriteTextFile(path, content string) error
	CreateDirectory(path string) error
}

// ---------------------------------------------------------------------------
// OS
// ---------------------------------------------------------------------------

// OS is the operating system file system.
type OS struct{}

// ReadTextFile reads the whole file.
func (OS) ReadTextFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(data), nil
}

// WriteTextFile writes content through a temporary file in the same
// directory, then renames it over path.
func (OS) WriteTextFile(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// CreateDirectory creates path and any missing parents.
func (OS) CreateDirectory(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Memory
// ---------------------------------------------------------------------------

// Memory keeps files in a map. Writes require the parent directory to
// have been created, like OS.
type Memory struct {
	mu    sync.Mutex
	files map[string]string
	dirs  map[string]bool
}

// NewMemory returns an empty in-memory file system.
func NewMemory() *Memory {
	return &Memory{files: map[string]string{}, dirs: map[string]bool{".": true, "/": true}}
}

// ReadTextFile returns a stored file.
func (m *Memory) ReadTextFile(path string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	content, ok := m.files[filepath.Clean(path)]
	if !ok {
		return "", fmt.Errorf("reading %s: %w", path, ErrNotExist)
	}
	return content, nil
}

// WriteTextFile stores a file.
func (m *Memory) WriteTextFile(path, content string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	path = filepath.Clean(path)
	if !m.dirs[filepath.Dir(path)] {
		return fmt.Errorf("writing %s: %w", path, ErrNotExist)
	}
	m.files[path] = content
	return nil
}

// CreateDirectory records path and its parents.
func (m *Memory) CreateDirectory(path string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for p := filepath.Clean(path); !m.dirs[p]; p = filepath.Dir(p) {
		m.dirs[p] = true
	}
	return nil
}

// Files returns the stored paths in sorted order.
func (m *Memory) Files() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.files))
	for p := range m.files {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// IsNotExist reports whether err means the file does not exist.
func IsNotExist(err error) bool {
	return errors.Is(err, ErrNotExist)
}
