package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
)

const tagRefPrefix = "refs/tags/"

// CreateTag creates an annotated tag: a tag object pointing at target,
// plus a ref under refs/tags/. The tag object is written before the ref
// so the ref never names an absent object.
func (r *Repo) CreateTag(name string, target object.Hash, tagger, message string) (object.Hash, error) {
	targetKind, _, err := r.Store.Read(target)
	if err != nil {
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}

	tagObj := &object.TagObj{
		TargetHash: target,
		TargetKind: targetKind,
		Name:       name,
		Tagger:     tagger,
		TagTime:    time.Now().Unix(),
		Message:    message,
	}
	tagHash, err := r.Store.WriteTag(tagObj)
	if err != nil {
		return "", fmt.Errorf("create tag %q: write tag object: %w", name, err)
	}

	if err := r.Refs.WriteCAS(tagRefPrefix+name, tagHash, ""); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return "", fmt.Errorf("create tag: tag %q already exists", name)
		}
		return "", fmt.Errorf("create tag %q: %w", name, err)
	}
	return tagHash, nil
}

// CreateLightweightTag creates a plain ref under refs/tags/ pointing
// directly at target, without a tag object.
func (r *Repo) CreateLightweightTag(name string, target object.Hash) error {
	if err := r.Refs.WriteCAS(tagRefPrefix+name, target, ""); err != nil {
		if errors.Is(err, refs.ErrCASMismatch) {
			return fmt.Errorf("create tag: tag %q already exists", name)
		}
		return fmt.Errorf("create tag %q: %w", name, err)
	}
	return nil
}

// ReadTag resolves a tag name. For an annotated tag it returns the tag
// object and its target; for a lightweight tag the TagObj is nil and the
// hash is the ref's direct target.
func (r *Repo) ReadTag(name string) (*object.TagObj, object.Hash, error) {
	h, err := r.Refs.Resolve(tagRefPrefix + name)
	if err != nil {
		return nil, "", fmt.Errorf("read tag %q: %w", name, err)
	}

	objType, content, err := r.Store.Read(h)
	if err != nil {
		return nil, "", fmt.Errorf("read tag %q: %w", name, err)
	}
	if objType != object.TypeTag {
		return nil, h, nil
	}
	tagObj, err := object.UnmarshalTag(content)
	if err != nil {
		return nil, "", fmt.Errorf("read tag %q: %w", name, err)
	}
	return tagObj, tagObj.TargetHash, nil
}

// DeleteTag removes the named tag ref. The tag object, if any, stays in
// the object store.
func (r *Repo) DeleteTag(name string) error {
	if err := r.Refs.Remove(tagRefPrefix + name); err != nil {
		if errors.Is(err, refs.ErrNotFound) {
			return fmt.Errorf("delete tag: tag %q does not exist", name)
		}
		return fmt.Errorf("delete tag %q: %w", name, err)
	}
	return nil
}

// ListTags returns the tag names sorted alphabetically.
func (r *Repo) ListTags() ([]string, error) {
	all, err := r.Refs.List()
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}

	var names []string
	for _, ref := range all {
		if name, ok := strings.CutPrefix(ref.Name, tagRefPrefix); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
