package cache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math/rand"
	"os"
	"path/filepath"
)

// FileBackend stores each key as a file in a directory
type FileBackend struct {
	dir string
}

// NewFileBackend creates a file backend rooted at dir. An empty dir uses
// ~/.otakulist_cache.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		dir = filepath.Join(home, ".otakulist_cache")
	}

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}

	return &FileBackend{dir: dir}, nil
}

// Dir returns the directory the backend writes to
func (fb *FileBackend) Dir() string {
	return fb.dir
}

func (fb *FileBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	data, err := os.ReadFile(fb.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

func (fb *FileBackend) Set(_ context.Context, key string, value []byte) error {
	path := fb.path(key)

	// Write to temporary file first, then rename (atomic operation)
	tmpPath := path + fmt.Sprintf(".tmp.%d", rand.Int())
	if err := os.WriteFile(tmpPath, value, 0o600); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return err
	}
	return nil
}

func (fb *FileBackend) Delete(_ context.Context, key string) error {
	err := os.Remove(fb.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

// Purge removes every cache file in the directory. Other files are left
// alone.
func (fb *FileBackend) Purge(_ context.Context) error {
	entries, err := os.ReadDir(fb.dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		if err := os.Remove(filepath.Join(fb.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return err
		}
	}
	return nil
}

// path generates the full filesystem path for a cache key
func (fb *FileBackend) path(key string) string {
	return filepath.Join(fb.dir, sanitizeFilename(key)+".json")
}
