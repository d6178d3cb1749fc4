package repo

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gritvcs/grit/pkg/object"
)

const indexKey = "index"

// IndexEntry records the staged state of a single file: its blob hash plus
// cached filesystem metadata used for change detection.
type IndexEntry struct {
	Path     string      `json:"path"`
	Mode     string      `json:"mode"`
	BlobHash object.Hash `json:"blob_hash"`
	ModTime  int64       `json:"mod_time"`
	Size     int64       `json:"size"`
}

// Index holds the full staging area for a repository: the mapping from
// working-tree path to staged entry.
type Index struct {
	Entries map[string]*IndexEntry `json:"entries"`
}

// NewIndex returns an empty staging index.
func NewIndex() *Index {
	return &Index{Entries: make(map[string]*IndexEntry)}
}

// ReadIndex loads the staging area. If none has been written yet, an empty
// Index is returned (no error).
func (r *Repo) ReadIndex() (*Index, error) {
	data, err := r.Backend.ReadFile(indexKey)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewIndex(), nil
		}
		return nil, fmt.Errorf("read index: %w", err)
	}

	var idx Index
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("read index: unmarshal: %w", err)
	}
	if idx.Entries == nil {
		idx.Entries = make(map[string]*IndexEntry)
	}
	return &idx, nil
}

// WriteIndex atomically replaces the staging area.
func (r *Repo) WriteIndex(idx *Index) error {
	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return fmt.Errorf("write index: marshal: %w", err)
	}
	if err := r.Backend.WriteFile(indexKey, data); err != nil {
		return fmt.Errorf("write index: %w", err)
	}
	return nil
}

// Add stages the given working-tree paths. For each file the raw content
// is written as a blob (at the repository's configured compression level)
// and an IndexEntry is created or updated with the resulting hash and file
// metadata. The staging area is flushed once at the end.
func (r *Repo) Add(paths []string) error {
	if err := r.requireWorkDir("add"); err != nil {
		return err
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	level, err := r.compressionLevel()
	if err != nil {
		return fmt.Errorf("add: %w", err)
	}

	for _, p := range paths {
		relPath, err := r.workRelPath(p)
		if err != nil {
			return fmt.Errorf("add: resolve path %q: %w", p, err)
		}

		absPath := filepath.Join(r.WorkDir, filepath.FromSlash(relPath))
		content, err := os.ReadFile(absPath)
		if err != nil {
			return fmt.Errorf("add: read %q: %w", relPath, err)
		}
		info, err := os.Stat(absPath)
		if err != nil {
			return fmt.Errorf("add: stat %q: %w", relPath, err)
		}

		blobHash, err := r.Store.WriteLevel(object.TypeBlob, content, level)
		if err != nil {
			return fmt.Errorf("add: write blob %q: %w", relPath, err)
		}

		idx.Entries[relPath] = &IndexEntry{
			Path:     relPath,
			Mode:     modeFromFileInfo(info),
			BlobHash: blobHash,
			ModTime:  info.ModTime().Unix(),
			Size:     info.Size(),
		}
	}

	if err := r.WriteIndex(idx); err != nil {
		return fmt.Errorf("add: %w", err)
	}
	return nil
}

// workRelPath converts a path (absolute, or relative to CWD) into a
// slash-separated path relative to the working tree root. A path that does
// not resolve inside the working tree is assumed to already be
// work-relative.
func (r *Repo) workRelPath(p string) (string, error) {
	if filepath.IsAbs(p) {
		rel, err := filepath.Rel(r.WorkDir, p)
		if err != nil {
			return "", fmt.Errorf("cannot make %q relative to %q: %w", p, r.WorkDir, err)
		}
		return filepath.ToSlash(rel), nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}

	abs := filepath.Join(cwd, p)
	rel, err := filepath.Rel(r.WorkDir, abs)
	if err != nil || (len(rel) >= 2 && rel[:2] == "..") {
		return filepath.ToSlash(filepath.Clean(p)), nil
	}
	return filepath.ToSlash(rel), nil
}
