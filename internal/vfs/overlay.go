package vfs

import (
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/spf13/afero"
)

// Store is the file store handed to compilers and readers of artifacts.
type Store interface {
	Read(path string) ([]byte, error)
	Write(path string, data []byte) error
	Exists(path string) bool
}

// Overlay is a Store over real disk plus an in-memory layer.
type Overlay struct {
	mu  sync.RWMutex
	fs  afero.Fs
	mem afero.Fs
}

// New creates an overlay on top of the real filesystem.
func New() *Overlay {
	return NewWithBase(afero.NewOsFs())
}

// NewWithBase creates an overlay on top of base. base is wrapped read-only.
func NewWithBase(base afero.Fs) *Overlay {
	mem := afero.NewMemMapFs()
	return &Overlay{
		fs:  afero.NewCopyOnWriteFs(afero.NewReadOnlyFs(base), mem),
		mem: mem,
	}
}

// AddForwardingEntry registers a synthetic module at path whose only content
// is an import of target. Both paths are made absolute.
func (o *Overlay) AddForwardingEntry(path, target string) error {
	path, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	target, err = filepath.Abs(target)
	if err != nil {
		return err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.writeLocked(path, ForwardingSource(target)); err != nil {
		return fmt.Errorf("write synthetic entry %s: %w", path, err)
	}
	return nil
}

// ForwardingSource returns the one-line module that forwards to target.
// Quoting escapes backslashes in Windows paths.
func ForwardingSource(target string) []byte {
	return []byte("import " + strconv.Quote(filepath.ToSlash(target)) + ";\n")
}

// Read returns the content of path, preferring the memory layer.
func (o *Overlay) Read(path string) ([]byte, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return afero.ReadFile(o.fs, path)
}

// Write stores data at path in memory.
func (o *Overlay) Write(path string, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.writeLocked(path, data)
}

// Install writes every file in files as one step. Readers observe either all
// of the previous contents or all of the new ones.
func (o *Overlay) Install(files map[string][]byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	// Stage the previous contents so a failed write leaves nothing half-installed.
	previous := make(map[string][]byte, len(files))
	for path := range files {
		if data, err := afero.ReadFile(o.mem, path); err == nil {
			previous[path] = data
		}
	}

	for path, data := range files {
		if err := o.writeLocked(path, data); err != nil {
			o.rollbackLocked(files, previous)
			return err
		}
	}
	return nil
}

func (o *Overlay) rollbackLocked(files, previous map[string][]byte) {
	for path := range files {
		if data, ok := previous[path]; ok {
			_ = afero.WriteFile(o.mem, path, data, 0o644)
		} else {
			_ = o.mem.Remove(path)
		}
	}
}

func (o *Overlay) writeLocked(path string, data []byte) error {
	if err := o.mem.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(o.mem, path, data, 0o644)
}

// Exists reports whether path exists in memory or on disk.
func (o *Overlay) Exists(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	ok, err := afero.Exists(o.fs, path)
	return err == nil && ok
}

// InMemory reports whether path lives in the memory layer.
func (o *Overlay) InMemory(path string) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	_, err := o.mem.Stat(path)
	return err == nil
}
