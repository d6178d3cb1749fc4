// Package storage provides the byte-level persistence backends the rest of
// the engine is built on. A Backend is a flat keyspace of files addressed by
// forward-slash relative names; writes replace atomically so readers never
// observe a partially written value under its final key.
package storage

// Kind discriminates the two backend implementations. It is fixed at
// creation and never mutated.
type Kind int

const (
	Disk Kind = iota
	Memory
)

func (k Kind) String() string {
	switch k {
	case Disk:
		return "disk"
	case Memory:
		return "memory"
	default:
		return "unknown"
	}
}

// Backend is a keyed byte store. Keys are clean forward-slash relative
// paths, e.g. "objects/ab/cdef..." or "refs/heads/main".
type Backend interface {
	// ReadFile returns the content stored under name. A missing key yields
	// an error satisfying errors.Is(err, fs.ErrNotExist).
	ReadFile(name string) ([]byte, error)

	// WriteFile atomically replaces the content under name, creating it if
	// absent. A crash or abandoned write never leaves partial content
	// visible under name.
	WriteFile(name string, data []byte) error

	// Exists reports whether name holds a value.
	Exists(name string) bool

	// List returns all keys under prefix (recursively), sorted. An empty
	// prefix lists every key. A missing prefix is an empty listing, not an
	// error.
	List(prefix string) ([]string, error)

	// Remove deletes the value under name. Removing an absent key yields an
	// fs.ErrNotExist-compatible error.
	Remove(name string) error

	// RemoveAll deletes every key under prefix. An empty prefix empties the
	// backend. Missing prefixes are a no-op.
	RemoveAll(prefix string) error

	// Root is a display-only identifier for where the backend stores data.
	Root() string

	// Kind reports the backend discriminator.
	Kind() Kind
}
