package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
)

const branchRefPrefix = "refs/heads/"

// CreateBranch creates a new branch pointing at the given target hash.
// It fails if the branch already exists.
func (r *Repo) CreateBranch(name string, target object.Hash) error {
	if err := r.Refs.WriteCAS(branchRefPrefix+name, target, ""); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return fmt.Errorf("create branch: branch %q already exists", name)
		}
		return fmt.Errorf("create branch %q: %w", name, err)
	}
	return nil
}

// DeleteBranch removes the named branch. It fails for the current branch
// and for branches that do not exist.
func (r *Repo) DeleteBranch(name string) error {
	current, err := r.CurrentBranch()
	if err != nil {
		return fmt.Errorf("delete branch: %w", err)
	}
	if current == name {
		return fmt.Errorf("delete branch: cannot delete current branch %q", name)
	}

	if err := r.Refs.Remove(branchRefPrefix + name); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete branch: branch %q does not exist", name)
		}
		return fmt.Errorf("delete branch %q: %w", name, err)
	}
	return nil
}

// ListBranches returns the branch names sorted alphabetically.
func (r *Repo) ListBranches() ([]string, error) {
	all, err := r.Refs.List()
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}

	var names []string
	for _, ref := range all {
		if name, ok := strings.CutPrefix(ref.Name, branchRefPrefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// CurrentBranch returns the branch name HEAD is attached to, or "" when
// HEAD is detached.
func (r *Repo) CurrentBranch() (string, error) {
	head, err := r.Refs.Head()
	if err != nil {
		return "", fmt.Errorf("current branch: %w", err)
	}
	if !head.IsSymbolic() {
		return "", nil
	}
	return strings.TrimPrefix(head.Target, branchRefPrefix), nil
}
