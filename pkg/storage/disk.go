package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/renameio"
)

// DiskBackend stores keys as files under a root directory. Writes go
// through a temp file in the destination directory followed by a rename, so
// concurrent readers and a crash mid-write both see either the old content
// or the new content, never a mix.
type DiskBackend struct {
	root string
}

// NewDisk returns a backend rooted at dir. The directory itself is created
// lazily on first write.
func NewDisk(dir string) *DiskBackend {
	return &DiskBackend{root: dir}
}

func (d *DiskBackend) path(name string) string {
	return filepath.Join(d.root, filepath.FromSlash(name))
}

func (d *DiskBackend) ReadFile(name string) ([]byte, error) {
	return os.ReadFile(d.path(name))
}

func (d *DiskBackend) WriteFile(name string, data []byte) error {
	p := d.path(name)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("write %s: mkdir: %w", name, err)
	}
	if err := renameio.WriteFile(p, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func (d *DiskBackend) Exists(name string) bool {
	info, err := os.Stat(d.path(name))
	return err == nil && !info.IsDir()
}

func (d *DiskBackend) List(prefix string) ([]string, error) {
	dir := d.root
	if prefix != "" {
		dir = d.path(prefix)
	}

	var names []string
	err := filepath.WalkDir(dir, func(p string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if entry.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(d.root, p)
		if err != nil {
			return err
		}
		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list %q: %w", prefix, err)
	}
	sort.Strings(names)
	return names, nil
}

func (d *DiskBackend) Remove(name string) error {
	return os.Remove(d.path(name))
}

func (d *DiskBackend) RemoveAll(prefix string) error {
	if prefix == "" {
		entries, err := os.ReadDir(d.root)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("remove all: %w", err)
		}
		for _, entry := range entries {
			if err := os.RemoveAll(filepath.Join(d.root, entry.Name())); err != nil {
				return fmt.Errorf("remove all: %w", err)
			}
		}
		return nil
	}
	if !strings.HasPrefix(filepath.Clean(d.path(prefix)), filepath.Clean(d.root)) {
		return fmt.Errorf("remove all: prefix %q escapes root", prefix)
	}
	return os.RemoveAll(d.path(prefix))
}

func (d *DiskBackend) Root() string {
	return d.root
}

func (d *DiskBackend) Kind() Kind {
	return Disk
}
