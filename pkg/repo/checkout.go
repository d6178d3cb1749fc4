package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
)

// Materialize expands the tree of the given commit into the working tree
// and rebuilds the staging index to match. When prev is non-nil, entries
// whose blob hash matches and whose on-disk metadata still agrees with the
// cached ModTime/Size are left untouched and their metadata reused;
// everything else is written out from the store.
//
// Entry paths are used as-is; callers own path policy (the trees were
// written by this engine, which never records absolute or parent-relative
// names).
func (r *Repo) Materialize(commitHash object.Hash, prev *Index) (*Index, error) {
	if err := r.requireWorkDir("materialize"); err != nil {
		return nil, err
	}

	commit, err := r.Store.ReadCommit(commitHash)
	if err != nil {
		return nil, fmt.Errorf("materialize: read commit %s: %w", commitHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return nil, fmt.Errorf("materialize: flatten tree: %w", err)
	}

	idx := NewIndex()
	for _, f := range targetFiles {
		absPath := filepath.Join(r.WorkDir, filepath.FromSlash(f.Path))

		if entry := reusableEntry(prev, f, absPath); entry != nil {
			idx.Entries[f.Path] = entry
			continue
		}

		if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
			return nil, fmt.Errorf("materialize: mkdir for %q: %w", f.Path, err)
		}
		blob, err := r.Store.ReadBlob(f.BlobHash)
		if err != nil {
			return nil, fmt.Errorf("materialize: read blob for %q: %w", f.Path, err)
		}
		if err := os.WriteFile(absPath, blob.Data, filePermFromMode(f.Mode)); err != nil {
			return nil, fmt.Errorf("materialize: write %q: %w", f.Path, err)
		}

		info, err := os.Stat(absPath)
		if err != nil {
			return nil, fmt.Errorf("materialize: stat %q: %w", f.Path, err)
		}
		idx.Entries[f.Path] = &IndexEntry{
			Path:     f.Path,
			Mode:     f.Mode,
			BlobHash: f.BlobHash,
			ModTime:  info.ModTime().Unix(),
			Size:     info.Size(),
		}
	}

	if err := r.WriteIndex(idx); err != nil {
		return nil, fmt.Errorf("materialize: %w", err)
	}
	return idx, nil
}

// reusableEntry returns the previous index entry for f when the cached
// metadata still matches the file on disk, else nil.
func reusableEntry(prev *Index, f TreeFileEntry, absPath string) *IndexEntry {
	if prev == nil {
		return nil
	}
	entry, ok := prev.Entries[f.Path]
	if !ok || entry.BlobHash != f.BlobHash {
		return nil
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil
	}
	if info.ModTime().Unix() != entry.ModTime || info.Size() != entry.Size {
		return nil
	}
	return entry
}

// Checkout switches the working tree to the state of the target, which can
// be a branch name or a raw commit hash. Files tracked by the current
// index but absent from the target are removed; HEAD is updated to a
// symbolic ref for a branch and to the raw hash for a detached checkout.
func (r *Repo) Checkout(target string) error {
	if err := r.requireWorkDir("checkout"); err != nil {
		return err
	}

	isBranch := false
	var targetHash object.Hash
	branchHash, err := r.Refs.Resolve("refs/heads/" + target)
	if err == nil {
		targetHash = branchHash
		isBranch = true
	} else if !errors.Is(err, refs.ErrNotFound) {
		return fmt.Errorf("checkout: %w", err)
	} else {
		targetHash = object.Hash(target)
	}

	commit, err := r.Store.ReadCommit(targetHash)
	if err != nil {
		return fmt.Errorf("checkout: cannot read commit %s: %w", targetHash, err)
	}
	targetFiles, err := r.FlattenTree(commit.TreeHash)
	if err != nil {
		return fmt.Errorf("checkout: flatten target tree: %w", err)
	}
	targetPaths := make(map[string]struct{}, len(targetFiles))
	for _, f := range targetFiles {
		targetPaths[f.Path] = struct{}{}
	}

	prev, err := r.ReadIndex()
	if err != nil {
		return fmt.Errorf("checkout: %w", err)
	}
	for p := range prev.Entries {
		if _, keep := targetPaths[p]; keep {
			continue
		}
		absPath := filepath.Join(r.WorkDir, filepath.FromSlash(p))
		if err := os.Remove(absPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("checkout: remove %q: %w", p, err)
		}
		r.removeEmptyParents(filepath.Dir(absPath))
	}

	if _, err := r.Materialize(targetHash, prev); err != nil {
		return fmt.Errorf("checkout: %w", err)
	}

	if isBranch {
		if err := r.Refs.SetHeadSymbolic("refs/heads/" + target); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
	} else {
		if err := r.Refs.SetHeadDetached(targetHash); err != nil {
			return fmt.Errorf("checkout: update HEAD: %w", err)
		}
	}
	return nil
}

// removeEmptyParents removes empty directories upward from dir, stopping
// at the working tree root.
func (r *Repo) removeEmptyParents(dir string) {
	root := filepath.Clean(r.WorkDir)
	for {
		dir = filepath.Clean(dir)
		if dir == root || !strings.HasPrefix(dir, root) {
			return
		}
		entries, err := os.ReadDir(dir)
		if err != nil || len(entries) > 0 {
			return
		}
		if err := os.Remove(dir); err != nil {
			return
		}
		dir = filepath.Dir(dir)
	}
}
