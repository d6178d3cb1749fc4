package repo

import (
	"os"
	"path/filepath"
	"sort"

	"github.com/gritvcs/grit/pkg/object"
)

// FileStatus classifies a staged file relative to the working tree.
type FileStatus int

const (
	StatusClean FileStatus = iota
	StatusModified
	StatusMissing
)

func (s FileStatus) String() string {
	switch s {
	case StatusClean:
		return "clean"
	case StatusModified:
		return "modified"
	case StatusMissing:
		return "missing"
	default:
		return "unknown"
	}
}

// StatusEntry pairs a staged path with its working-tree status.
type StatusEntry struct {
	Path   string
	Status FileStatus
}

// Status compares every staged entry against the working tree, sorted by
// path. A file whose cached mtime and size still match is reported clean
// without rehashing; otherwise the content is rehashed to distinguish a
// touched file from a changed one.
func (r *Repo) Status() ([]StatusEntry, error) {
	if err := r.requireWorkDir("status"); err != nil {
		return nil, err
	}

	idx, err := r.ReadIndex()
	if err != nil {
		return nil, err
	}

	out := make([]StatusEntry, 0, len(idx.Entries))
	for path, entry := range idx.Entries {
		absPath := filepath.Join(r.WorkDir, filepath.FromSlash(path))
		info, err := os.Stat(absPath)
		if err != nil {
			out = append(out, StatusEntry{Path: path, Status: StatusMissing})
			continue
		}
		if info.ModTime().Unix() == entry.ModTime && info.Size() == entry.Size {
			out = append(out, StatusEntry{Path: path, Status: StatusClean})
			continue
		}

		content, err := os.ReadFile(absPath)
		if err != nil {
			out = append(out, StatusEntry{Path: path, Status: StatusMissing})
			continue
		}
		if object.HashObject(object.TypeBlob, content) == entry.BlobHash {
			out = append(out, StatusEntry{Path: path, Status: StatusClean})
		} else {
			out = append(out, StatusEntry{Path: path, Status: StatusModified})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}
