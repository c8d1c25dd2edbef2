package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// Cursor is the opaque, monotonic token representing a position in
// the projects-DB changes feed. Backed by an etcd revision
// number, but callers must treat it as opaque.
type Cursor string

// CursorFile persists a Cursor to durable storage between polls,
// written atomically (write-temp-then-rename) on every advance so a
// crash mid-write never leaves a corrupt cursor behind.
type CursorFile struct {
	path string
}

// NewCursorFile returns a CursorFile backed by path.
func NewCursorFile(path string) *CursorFile {
	return &CursorFile{path: path}
}

// Load returns the last persisted cursor, or "" if the file does not
// yet exist (a fresh watch should then start from the store's current
// revision).
func (f *CursorFile) Load() (Cursor, error) {
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading cursor file %q: %w", f.path, err)
	}
	return Cursor(data), nil
}

// Save atomically persists cursor, replacing any previous value.
func (f *CursorFile) Save(cursor Cursor) error {
	dir := filepath.Dir(f.path)
	tmp, err := os.CreateTemp(dir, ".cursor-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp cursor file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(string(cursor)); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing temp cursor file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp cursor file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("renaming temp cursor file: %w", err)
	}
	return nil
}
