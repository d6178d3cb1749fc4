// Package refs implements the mutable naming layer: branches, tags, and
// HEAD, mapping hierarchical names to object hashes or to other names
// (symbolic refs). The package performs no cross-validation against the
// object space; callers write objects first, then point references at them.
package refs

import (
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/storage"
)

const (
	// HeadName is the distinguished reference that may be direct (detached)
	// or symbolic (attached to a branch).
	HeadName = "HEAD"

	symbolicPrefix = "ref: "

	// maxSymbolicHops bounds symbolic-ref chain resolution. A chain deeper
	// than this is treated as broken, which also covers cycles.
	maxSymbolicHops = 16
)

var (
	// ErrNotFound marks a read of an absent reference name.
	ErrNotFound = errors.New("reference not found")

	// ErrBrokenSymbolicRef marks a symbolic chain that exceeds the hop
	// bound or passes through an absent name.
	ErrBrokenSymbolicRef = errors.New("broken symbolic reference")

	// ErrCASMismatch marks a compare-and-swap write whose expected old
	// value did not match the current one.
	ErrCASMismatch = errors.New("reference compare-and-swap mismatch")
)

// Ref is one reference: a name paired with either a direct hash or a
// symbolic target (exactly one of Hash/Target is set).
type Ref struct {
	Name   string
	Hash   object.Hash
	Target string
}

// IsSymbolic reports whether the ref points at another name.
func (r Ref) IsSymbolic() bool {
	return r.Target != ""
}

// Store is the reference store over a storage backend. Mutations to the
// ref keyspace are serialized per Store; each individual write is atomic
// through the backend, so readers never observe a partially written target.
type Store struct {
	backend storage.Backend
	mu      sync.Mutex
}

// New creates a reference store over the given backend.
func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

func refValue(name string) (string, error) {
	if strings.Contains(name, "..") {
		return "", fmt.Errorf("invalid reference name %q", name)
	}
	return name, nil
}

func (s *Store) readRaw(name string) (string, error) {
	data, err := s.backend.ReadFile(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("reference %q: %w", name, ErrNotFound)
		}
		return "", fmt.Errorf("read reference %q: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// Exists reports whether the named reference exists.
func (s *Store) Exists(name string) bool {
	return s.backend.Exists(name)
}

// ReadDirect returns the named reference without following symbolic
// targets.
func (s *Store) ReadDirect(name string) (Ref, error) {
	raw, err := s.readRaw(name)
	if err != nil {
		return Ref{}, err
	}
	if target, ok := strings.CutPrefix(raw, symbolicPrefix); ok {
		return Ref{Name: name, Target: strings.TrimSpace(target)}, nil
	}
	return Ref{Name: name, Hash: object.Hash(raw)}, nil
}

// Resolve follows the named reference to its final direct target hash.
// Symbolic chains are followed up to maxSymbolicHops; a chain that runs
// deeper, or that passes through an absent intermediate name, fails with
// ErrBrokenSymbolicRef. A directly absent name fails with ErrNotFound.
func (s *Store) Resolve(name string) (object.Hash, error) {
	current := name
	for hop := 0; hop <= maxSymbolicHops; hop++ {
		ref, err := s.ReadDirect(current)
		if err != nil {
			if hop > 0 && errors.Is(err, ErrNotFound) {
				return "", fmt.Errorf(
					"resolve %q: %w: chain ends at absent name %q",
					name, ErrBrokenSymbolicRef, current,
				)
			}
			return "", err
		}
		if !ref.IsSymbolic() {
			return ref.Hash, nil
		}
		current = ref.Target
	}
	return "", fmt.Errorf("resolve %q: %w: more than %d hops", name, ErrBrokenSymbolicRef, maxSymbolicHops)
}

// List returns all references under refs/, sorted by name. HEAD is not
// included; read it with Head.
func (s *Store) List() ([]Ref, error) {
	names, err := s.backend.List("refs")
	if err != nil {
		return nil, fmt.Errorf("list references: %w", err)
	}
	sort.Strings(names)

	out := make([]Ref, 0, len(names))
	for _, name := range names {
		ref, err := s.ReadDirect(name)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, nil
}

// Write points the named reference directly at a hash, creating the name
// if absent and overwriting it otherwise (last writer wins).
func (s *Store) Write(name string, h object.Hash) error {
	name, err := refValue(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(name, string(h))
}

// WriteCAS points the named reference at a hash only when its current
// value matches expectedOld. An empty expectedOld asserts the name does
// not yet exist. On mismatch it fails with ErrCASMismatch.
func (s *Store) WriteCAS(name string, h object.Hash, expectedOld object.Hash) error {
	name, err := refValue(name)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var current object.Hash
	ref, err := s.ReadDirect(name)
	switch {
	case err == nil:
		if ref.IsSymbolic() {
			return fmt.Errorf("update reference %q: target is symbolic", name)
		}
		current = ref.Hash
	case errors.Is(err, ErrNotFound):
		current = ""
	default:
		return err
	}

	if current != expectedOld {
		return fmt.Errorf(
			"update reference %q: %w (expected %q, found %q)",
			name, ErrCASMismatch, expectedOld, current,
		)
	}
	return s.writeLocked(name, string(h))
}

// WriteSymbolic points the named reference at another reference name.
func (s *Store) WriteSymbolic(name, target string) error {
	name, err := refValue(name)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeLocked(name, symbolicPrefix+target)
}

func (s *Store) writeLocked(name, value string) error {
	if err := s.backend.WriteFile(name, []byte(value+"\n")); err != nil {
		return fmt.Errorf("write reference %q: %w", name, err)
	}
	return nil
}

// Remove deletes the named reference. Removing an absent name fails with
// ErrNotFound.
func (s *Store) Remove(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.backend.Remove(name); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove reference %q: %w", name, ErrNotFound)
		}
		return fmt.Errorf("remove reference %q: %w", name, err)
	}
	return nil
}

// SetHeadSymbolic attaches HEAD to the named reference (normally a
// branch), whether or not that name exists yet.
func (s *Store) SetHeadSymbolic(target string) error {
	return s.WriteSymbolic(HeadName, target)
}

// SetHeadDetached points HEAD directly at a hash.
func (s *Store) SetHeadDetached(h object.Hash) error {
	return s.Write(HeadName, h)
}

// Head returns HEAD without following its target, so callers can tell a
// detached HEAD from an attached one.
func (s *Store) Head() (Ref, error) {
	return s.ReadDirect(HeadName)
}

// ResolveHead follows HEAD to its final direct target hash. Because the
// symbolic indirection is followed at read time, updating a branch moves
// an attached HEAD with it.
func (s *Store) ResolveHead() (object.Hash, error) {
	return s.Resolve(HeadName)
}
