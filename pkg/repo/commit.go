package repo

import (
	"errors"
	"fmt"
	"time"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
)

// Commit creates a new commit from the current staging area and advances
// the current branch (or a detached HEAD) to it with a compare-and-swap
// against the previous tip.
func (r *Repo) Commit(message, author string) (object.Hash, error) {
	return r.CommitWithSigner(message, author, nil)
}

// CommitWithSigner creates a new commit and signs it when signer is
// provided.
func (r *Repo) CommitWithSigner(message, author string, signer CommitSigner) (object.Hash, error) {
	idx, err := r.ReadIndex()
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	if len(idx.Entries) == 0 {
		return "", fmt.Errorf("commit: nothing staged")
	}

	treeHash, err := r.BuildTree(idx)
	if err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}

	// First commit on a fresh branch has no parent; a failed HEAD
	// resolution is expected then.
	var parents []object.Hash
	var parentHash object.Hash
	if h, err := r.Refs.ResolveHead(); err == nil && h != "" {
		parentHash = h
		parents = append(parents, h)
	} else if err != nil && !errors.Is(err, refs.ErrBrokenSymbolicRef) && !errors.Is(err, refs.ErrNotFound) {
		return "", fmt.Errorf("commit: resolve HEAD: %w", err)
	}

	now := time.Now().Unix()
	commitObj := &object.CommitObj{
		TreeHash:      treeHash,
		Parents:       parents,
		Author:        author,
		AuthorTime:    now,
		Committer:     author,
		CommitterTime: now,
		Message:       message,
	}
	if signer != nil {
		signature, err := signer(object.CommitSigningPayload(commitObj))
		if err != nil {
			return "", fmt.Errorf("commit: sign: %w", err)
		}
		commitObj.Signature = signature
	}

	commitHash, err := r.Store.WriteCommit(commitObj)
	if err != nil {
		return "", fmt.Errorf("commit: write commit: %w", err)
	}

	head, err := r.Refs.Head()
	if err != nil {
		return "", fmt.Errorf("commit: read HEAD: %w", err)
	}
	if head.IsSymbolic() {
		if err := r.Refs.WriteCAS(head.Target, commitHash, parentHash); err != nil {
			return "", fmt.Errorf("commit: update %q: %w", head.Target, err)
		}
	} else {
		if err := r.Refs.WriteCAS(refs.HeadName, commitHash, parentHash); err != nil {
			return "", fmt.Errorf("commit: update detached HEAD: %w", err)
		}
	}

	return commitHash, nil
}

// Log walks the commit history starting from the given hash, following
// first-parent links, returning up to limit commits newest first.
func (r *Repo) Log(start object.Hash, limit int) ([]*object.CommitObj, error) {
	var commits []*object.CommitObj
	current := start

	for len(commits) < limit {
		// A missing commit is an error, not the end of history: genesis
		// is signalled by an empty parent list, never by a dangling hash.
		c, err := r.Store.ReadCommit(current)
		if err != nil {
			return nil, fmt.Errorf("log: read commit %s: %w", current, err)
		}
		commits = append(commits, c)

		if len(c.Parents) == 0 {
			break
		}
		current = c.Parents[0]
	}

	return commits, nil
}
