// Package repo is the repository facade: one handle owning a storage
// backend, the object store, and the reference store, plus the staging
// index and working-tree synchronization built on top of them.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
	"github.com/gritvcs/grit/pkg/storage"
)

const (
	gritDirName      = ".grit"
	defaultBranchRef = "refs/heads/main"
)

// Repo represents an opened grit repository. All object, reference, and
// index state is reached through the handle; the backend kind (disk or
// memory) is fixed at creation.
type Repo struct {
	// WorkDir is the working tree root. Empty for handles without a
	// working tree (memory repos created without one); operations that
	// touch the working tree fail on such handles.
	WorkDir string

	Backend storage.Backend
	Store   *object.Store
	Refs    *refs.Store
}

func newRepo(workDir string, backend storage.Backend) *Repo {
	return &Repo{
		WorkDir: workDir,
		Backend: backend,
		Store:   object.NewStore(backend),
		Refs:    refs.New(backend),
	}
}

// Init creates a new on-disk repository at path: a .grit/ directory with
// HEAD attached to the default branch. It fails if one already exists.
func Init(path string) (*Repo, error) {
	gritDir := filepath.Join(path, gritDirName)
	if _, err := os.Stat(gritDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", gritDir)
	}
	if err := os.MkdirAll(gritDir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", gritDir, err)
	}

	r := newRepo(path, storage.NewDisk(gritDir))
	if err := r.Refs.SetHeadSymbolic(defaultBranchRef); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// InitMemory creates a transient in-memory repository. workDir may be
// empty, in which case the handle supports everything except working-tree
// operations. Contents live for the process lifetime only.
func InitMemory(workDir string) (*Repo, error) {
	label := "(memory)"
	if workDir != "" {
		label = workDir
	}
	r := newRepo(workDir, storage.NewMemory(label))
	if err := r.Refs.SetHeadSymbolic(defaultBranchRef); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .grit/ directory and opens the
// repository. It fails if none is found.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		gritDir := filepath.Join(cur, gritDirName)
		info, err := os.Stat(gritDir)
		if err == nil && info.IsDir() {
			return newRepo(cur, storage.NewDisk(gritDir)), nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a grit repository (or any parent up to /)")
		}
		cur = parent
	}
}

// Clear removes all persisted object, pack, reference, and index state,
// returning the handle to an empty but valid repository: logically the
// same as discarding and recreating it.
func (r *Repo) Clear() error {
	if err := r.Backend.RemoveAll(""); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	r.Store = object.NewStore(r.Backend)
	if err := r.Refs.SetHeadSymbolic(defaultBranchRef); err != nil {
		return fmt.Errorf("clear: %w", err)
	}
	return nil
}

// Root is a display-only identifier for where the repository stores data.
func (r *Repo) Root() string {
	return r.Backend.Root()
}

// Kind reports the backend discriminator fixed at creation.
func (r *Repo) Kind() storage.Kind {
	return r.Backend.Kind()
}

func (r *Repo) requireWorkDir(op string) error {
	if r.WorkDir == "" {
		return fmt.Errorf("%s: repository has no working tree", op)
	}
	return nil
}

// ResolveRevision resolves a user-supplied revision string: "HEAD", a full
// ref name, a branch name, a tag name, or a raw hash, in that order.
func (r *Repo) ResolveRevision(rev string) (object.Hash, error) {
	if rev == refs.HeadName {
		return r.Refs.ResolveHead()
	}
	for _, name := range []string{rev, "refs/heads/" + rev, "refs/tags/" + rev} {
		if h, err := r.Refs.Resolve(name); err == nil {
			return h, nil
		} else if !errors.Is(err, refs.ErrNotFound) {
			return "", err
		}
	}
	h := object.Hash(rev)
	if h.IsValid() && r.Store.Has(h) {
		return h, nil
	}
	return "", fmt.Errorf("resolve revision %q: %w", rev, refs.ErrNotFound)
}
