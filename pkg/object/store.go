package object

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zlib"

	"github.com/gritvcs/grit/pkg/storage"
)

// Compression levels for loose object writes. 0 stores with zlib's
// no-compression framing (reads stay uniform), 1 is fastest, 9 smallest.
const (
	NoCompression      = zlib.NoCompression
	BestSpeed          = zlib.BestSpeed
	BestCompression    = zlib.BestCompression
	DefaultCompression = 6
)

// Store is a content-addressed object store over a storage backend. Loose
// objects live under objects/<2-char fanout>/<62 chars> as zlib-compressed
// envelopes; packs live under objects/pack/ as immutable pack+idx pairs.
// Reads consult the loose layer first, then packs in most-recently-ingested
// order.
type Store struct {
	backend storage.Backend

	mu        sync.Mutex
	packOrder []string // pack names ("pack-<checksum>"), newest first
	packsInit bool
}

// NewStore creates a Store over the given backend.
func NewStore(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Backend exposes the underlying backend, for callers that share it.
func (s *Store) Backend() storage.Backend {
	return s.backend
}

func looseKey(h Hash) string {
	return "objects/" + string(h[:2]) + "/" + string(h[2:])
}

// Has reports whether the store contains an object with the given hash, in
// either the loose layer or any known pack.
func (s *Store) Has(h Hash) bool {
	if !h.IsValid() {
		return false
	}
	if s.backend.Exists(looseKey(h)) {
		return true
	}
	_, _, err := s.readFromPacks(h)
	return err == nil
}

// Write stores an object at the default compression level and returns its
// content hash.
func (s *Store) Write(objType ObjectType, content []byte) (Hash, error) {
	return s.WriteLevel(objType, content, DefaultCompression)
}

// WriteLevel stores an object compressed at the given zlib level (0-9).
// The hash is computed from the canonical envelope before anything is
// persisted. Writing an already-present hash is a no-op that returns the
// same hash. The backend write is atomic, so an abandoned or crashed write
// never leaves a corrupt object visible under its final key.
func (s *Store) WriteLevel(objType ObjectType, content []byte, level int) (Hash, error) {
	if level < NoCompression || level > BestCompression {
		return "", fmt.Errorf("level %d: %w", level, ErrInvalidCompressionLevel)
	}
	if !IsValidType(objType) {
		return "", fmt.Errorf("object write: unknown type %q", objType)
	}

	h := HashObject(objType, content)

	// Fast path: already present in either layer.
	if s.Has(h) {
		return h, nil
	}

	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, level)
	if err != nil {
		return "", fmt.Errorf("object write: zlib writer: %w", err)
	}
	if _, err := zw.Write(MakeEnvelope(objType, content)); err != nil {
		_ = zw.Close()
		return "", fmt.Errorf("object write: compress: %w", err)
	}
	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("object write: close zlib stream: %w", err)
	}

	if err := s.backend.WriteFile(looseKey(h), buf.Bytes()); err != nil {
		return "", fmt.Errorf("object write %s: %w", h, err)
	}
	return h, nil
}

// Read retrieves an object by hash, returning its type and raw content.
// The loose layer wins over packs; among packs, the most recently ingested
// wins. A miss in both layers wraps ErrNotFound.
func (s *Store) Read(h Hash) (ObjectType, []byte, error) {
	if !h.IsValid() {
		return "", nil, fmt.Errorf("object read %q: %w", h, ErrNotFound)
	}

	objType, content, err := s.readLoose(h)
	if err == nil {
		return objType, content, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", nil, err
	}

	objType, content, err = s.readFromPacks(h)
	if err == nil {
		return objType, content, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil, fmt.Errorf("object read %s: %w", h, ErrNotFound)
	}
	return "", nil, err
}

func (s *Store) readLoose(h Hash) (ObjectType, []byte, error) {
	compressed, err := s.backend.ReadFile(looseKey(h))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}

	zr, err := zlib.NewReader(bytes.NewReader(compressed))
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		_ = zr.Close()
		return "", nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}
	if err := zr.Close(); err != nil {
		return "", nil, fmt.Errorf("object read %s: %w: %v", h, ErrCorruptObject, err)
	}

	objType, content, err := ParseEnvelope(raw)
	if err != nil {
		return "", nil, fmt.Errorf("object read %s: %w", h, err)
	}
	return objType, content, nil
}

// ListLoose enumerates the hashes of all loose objects, sorted.
func (s *Store) ListLoose() ([]Hash, error) {
	keys, err := s.backend.List("objects")
	if err != nil {
		return nil, fmt.Errorf("list loose objects: %w", err)
	}

	hashes := make([]Hash, 0, len(keys))
	for _, key := range keys {
		rest, ok := strings.CutPrefix(key, "objects/")
		if !ok {
			continue
		}
		prefix, suffix, ok := strings.Cut(rest, "/")
		if !ok || strings.Contains(suffix, "/") {
			continue
		}
		if !isHexComponent(prefix, 2) || !isHexComponent(suffix, 62) {
			continue
		}
		hashes = append(hashes, Hash(prefix+suffix))
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes, nil
}

// List enumerates every hash reachable through the store: the union of the
// loose layer and all packs. Hash uniqueness makes this plain set union.
func (s *Store) List() ([]Hash, error) {
	loose, err := s.ListLoose()
	if err != nil {
		return nil, err
	}
	packed, err := s.packedHashSet()
	if err != nil {
		return nil, err
	}

	seen := make(map[Hash]struct{}, len(loose)+len(packed))
	out := make([]Hash, 0, len(loose)+len(packed))
	for _, h := range loose {
		seen[h] = struct{}{}
		out = append(out, h)
	}
	for h := range packed {
		if _, ok := seen[h]; !ok {
			out = append(out, h)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

// StoredObject pairs a hash with its decoded type and content. Used by
// Contents for diagnostics and export, not on the hot path.
type StoredObject struct {
	Hash    Hash
	Type    ObjectType
	Content []byte
}

// Contents returns every object in the store with its decoded value,
// sorted by hash.
func (s *Store) Contents() ([]StoredObject, error) {
	hashes, err := s.List()
	if err != nil {
		return nil, err
	}
	out := make([]StoredObject, 0, len(hashes))
	for _, h := range hashes {
		objType, content, err := s.Read(h)
		if err != nil {
			return nil, err
		}
		out = append(out, StoredObject{Hash: h, Type: objType, Content: content})
	}
	return out, nil
}

func isHexComponent(s string, expectedLen int) bool {
	if len(s) != expectedLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

// ---------------------------------------------------------------------------
// Typed convenience methods
// ---------------------------------------------------------------------------

func (s *Store) readTyped(h Hash, want ObjectType) ([]byte, error) {
	objType, content, err := s.Read(h)
	if err != nil {
		return nil, err
	}
	if objType != want {
		return nil, fmt.Errorf("object %s: type mismatch: got %q, want %q", h, objType, want)
	}
	return content, nil
}

// WriteBlob serializes and stores a Blob.
func (s *Store) WriteBlob(b *Blob) (Hash, error) {
	return s.Write(TypeBlob, MarshalBlob(b))
}

// ReadBlob reads and deserializes a Blob.
func (s *Store) ReadBlob(h Hash) (*Blob, error) {
	content, err := s.readTyped(h, TypeBlob)
	if err != nil {
		return nil, err
	}
	return UnmarshalBlob(content)
}

// WriteTree serializes and stores a TreeObj.
func (s *Store) WriteTree(tr *TreeObj) (Hash, error) {
	data, err := MarshalTree(tr)
	if err != nil {
		return "", fmt.Errorf("write tree: %w", err)
	}
	return s.Write(TypeTree, data)
}

// ReadTree reads and deserializes a TreeObj.
func (s *Store) ReadTree(h Hash) (*TreeObj, error) {
	content, err := s.readTyped(h, TypeTree)
	if err != nil {
		return nil, err
	}
	return UnmarshalTree(content)
}

// WriteCommit serializes and stores a CommitObj.
func (s *Store) WriteCommit(c *CommitObj) (Hash, error) {
	return s.Write(TypeCommit, MarshalCommit(c))
}

// ReadCommit reads and deserializes a CommitObj.
func (s *Store) ReadCommit(h Hash) (*CommitObj, error) {
	content, err := s.readTyped(h, TypeCommit)
	if err != nil {
		return nil, err
	}
	return UnmarshalCommit(content)
}

// WriteTag serializes and stores a TagObj.
func (s *Store) WriteTag(t *TagObj) (Hash, error) {
	return s.Write(TypeTag, MarshalTag(t))
}

// ReadTag reads and deserializes a TagObj.
func (s *Store) ReadTag(h Hash) (*TagObj, error) {
	content, err := s.readTyped(h, TypeTag)
	if err != nil {
		return nil, err
	}
	return UnmarshalTag(content)
}
