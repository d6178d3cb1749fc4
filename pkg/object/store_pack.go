package object

import (
	"bytes"
	"fmt"
	"io/fs"
	"sort"
	"strings"
)

const packDirKey = "objects/pack"

// RepackSummary reports the outcome of Store.Repack.
type RepackSummary struct {
	PackedObjects int
	PackName      string
}

// VerifySummary reports the outcome of Store.Verify.
type VerifySummary struct {
	LooseObjects int
	PackFiles    int
	PackObjects  int
}

func packKey(name string) string {
	return packDirKey + "/" + name + ".pack"
}

func packIndexKey(name string) string {
	return packDirKey + "/" + name + ".idx"
}

// ListPacks returns the names of all known packs ("pack-<checksum>"), in
// lookup precedence order: most recently ingested first. Packs present when
// the store was opened are ordered by name.
func (s *Store) ListPacks() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.loadPacksLocked(); err != nil {
		return nil, err
	}
	out := make([]string, len(s.packOrder))
	copy(out, s.packOrder)
	return out, nil
}

func (s *Store) loadPacksLocked() error {
	if s.packsInit {
		return nil
	}
	keys, err := s.backend.List(packDirKey)
	if err != nil {
		return fmt.Errorf("list packs: %w", err)
	}

	names := make([]string, 0, len(keys))
	for _, key := range keys {
		base, ok := strings.CutPrefix(key, packDirKey+"/")
		if !ok {
			continue
		}
		name, ok := strings.CutSuffix(base, ".idx")
		if !ok || !strings.HasPrefix(name, "pack-") {
			continue
		}
		if !s.backend.Exists(packKey(name)) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	s.packOrder = names
	s.packsInit = true
	return nil
}

func (s *Store) registerPackLocked(name string) {
	for _, existing := range s.packOrder {
		if existing == name {
			return
		}
	}
	s.packOrder = append([]string{name}, s.packOrder...)
}

// IngestPack validates a raw pack, persists it together with a freshly
// built index, and returns the hashes of the objects it introduced. The
// trailing checksum is verified and every delta resolved before anything is
// written, so a corrupt pack leaves no visible state. Once ingested the
// pack is immutable; it becomes the first pack consulted on reads.
func (s *Store) IngestPack(raw []byte) ([]Hash, error) {
	pf, err := ReadPackResolved(raw)
	if err != nil {
		return nil, fmt.Errorf("ingest pack: %w", err)
	}

	hashes := make([]Hash, 0, len(pf.Entries))
	indexEntries := make([]PackIndexEntry, 0, len(pf.Entries))
	for i, entry := range pf.Entries {
		objType, ok := objectTypeOf(entry.Type)
		if !ok {
			return nil, fmt.Errorf("ingest pack: %w: entry %d unresolved type %d", ErrCorruptPack, i, entry.Type)
		}
		h := HashObject(objType, entry.Data)
		hashes = append(hashes, h)
		indexEntries = append(indexEntries, PackIndexEntry{
			Hash:   h,
			Offset: entry.Offset,
			CRC32:  entry.CRC32,
		})
	}

	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, indexEntries, pf.Checksum); err != nil {
		return nil, fmt.Errorf("ingest pack: build index: %w", err)
	}

	name := "pack-" + string(pf.Checksum)
	if err := s.backend.WriteFile(packKey(name), raw); err != nil {
		return nil, fmt.Errorf("ingest pack: store pack: %w", err)
	}
	if err := s.backend.WriteFile(packIndexKey(name), idxBuf.Bytes()); err != nil {
		_ = s.backend.Remove(packKey(name))
		return nil, fmt.Errorf("ingest pack: store index: %w", err)
	}

	s.mu.Lock()
	if err := s.loadPacksLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.registerPackLocked(name)
	s.mu.Unlock()

	return hashes, nil
}

// PackIndexFor loads and parses the index derived for the named pack.
func (s *Store) PackIndexFor(name string) (*PackIndex, error) {
	data, err := s.backend.ReadFile(packIndexKey(name))
	if err != nil {
		return nil, fmt.Errorf("pack index %s: %w", name, err)
	}
	return ReadPackIndex(data)
}

func (s *Store) readFromPacks(h Hash) (ObjectType, []byte, error) {
	names, err := s.ListPacks()
	if err != nil {
		return "", nil, err
	}

	for _, name := range names {
		idx, err := s.PackIndexFor(name)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: %w", h, err)
		}
		indexEntry, ok := idx.Find(h)
		if !ok {
			continue
		}

		packData, err := s.backend.ReadFile(packKey(name))
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: read pack %s: %w", h, name, err)
		}
		pf, err := ReadPackResolved(packData)
		if err != nil {
			return "", nil, fmt.Errorf("object read %s: parse pack %s: %w", h, name, err)
		}
		if pf.Checksum != idx.PackChecksum {
			return "", nil, fmt.Errorf(
				"object read %s: %w: checksum mismatch between idx and pack %s",
				h, ErrCorruptPack, name,
			)
		}

		for _, entry := range pf.Entries {
			if entry.Offset != indexEntry.Offset {
				continue
			}
			objType, ok := objectTypeOf(entry.Type)
			if !ok {
				return "", nil, fmt.Errorf("object read %s: %w: unresolved type %d", h, ErrCorruptPack, entry.Type)
			}
			if computed := HashObject(objType, entry.Data); computed != h {
				return "", nil, fmt.Errorf(
					"object read %s: %w: packed object hashes to %s",
					h, ErrCorruptObject, computed,
				)
			}
			return objType, entry.Data, nil
		}
		return "", nil, fmt.Errorf(
			"object read %s: %w: pack %s missing entry at offset %d",
			h, ErrCorruptPack, name, indexEntry.Offset,
		)
	}

	return "", nil, fmt.Errorf("object read %s: %w", h, fs.ErrNotExist)
}

func (s *Store) packedHashSet() (map[Hash]struct{}, error) {
	names, err := s.ListPacks()
	if err != nil {
		return nil, err
	}

	out := make(map[Hash]struct{})
	for _, name := range names {
		idx, err := s.PackIndexFor(name)
		if err != nil {
			return nil, err
		}
		for _, entry := range idx.Entries() {
			out[entry.Hash] = struct{}{}
		}
	}
	return out, nil
}

// Repack writes all loose objects not already covered by a pack into a new
// pack+index pair. It is non-destructive: loose objects stay in place, and
// the new pack joins the lookup order like any ingested pack.
func (s *Store) Repack() (*RepackSummary, error) {
	looseHashes, err := s.ListLoose()
	if err != nil {
		return nil, err
	}
	packed, err := s.packedHashSet()
	if err != nil {
		return nil, err
	}

	toPack := make([]Hash, 0, len(looseHashes))
	for _, h := range looseHashes {
		if _, ok := packed[h]; ok {
			continue
		}
		toPack = append(toPack, h)
	}
	if len(toPack) == 0 {
		return &RepackSummary{}, nil
	}
	if len(toPack) > int(^uint32(0)) {
		return nil, fmt.Errorf("repack: too many objects: %d", len(toPack))
	}

	var packBuf bytes.Buffer
	pw, err := NewPackWriter(&packBuf, uint32(len(toPack)))
	if err != nil {
		return nil, fmt.Errorf("repack: create pack writer: %w", err)
	}

	indexEntries := make([]PackIndexEntry, 0, len(toPack))
	for _, h := range toPack {
		objType, content, err := s.readLoose(h)
		if err != nil {
			return nil, fmt.Errorf("repack: read loose object %s: %w", h, err)
		}
		packType, ok := packTypeOf(objType)
		if !ok {
			return nil, fmt.Errorf("repack: object %s has unpackable type %q", h, objType)
		}
		offset := pw.CurrentOffset()
		if err := pw.WriteEntry(packType, content); err != nil {
			return nil, fmt.Errorf("repack: write pack entry %s: %w", h, err)
		}
		indexEntries = append(indexEntries, PackIndexEntry{
			Hash:   h,
			Offset: offset,
			CRC32:  pw.LastCRC32(),
		})
	}

	checksum, err := pw.Finish()
	if err != nil {
		return nil, fmt.Errorf("repack: finalize pack: %w", err)
	}

	var idxBuf bytes.Buffer
	if _, err := WritePackIndex(&idxBuf, indexEntries, checksum); err != nil {
		return nil, fmt.Errorf("repack: write pack index: %w", err)
	}

	name := "pack-" + string(checksum)
	if err := s.backend.WriteFile(packKey(name), packBuf.Bytes()); err != nil {
		return nil, fmt.Errorf("repack: store pack: %w", err)
	}
	if err := s.backend.WriteFile(packIndexKey(name), idxBuf.Bytes()); err != nil {
		_ = s.backend.Remove(packKey(name))
		return nil, fmt.Errorf("repack: store index: %w", err)
	}

	s.mu.Lock()
	if err := s.loadPacksLocked(); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.registerPackLocked(name)
	s.mu.Unlock()

	return &RepackSummary{
		PackedObjects: len(toPack),
		PackName:      name,
	}, nil
}

// ExportPack serializes the given objects into a standalone pack stream,
// reading each through the unified lookup path. The result can be ingested
// into any store with IngestPack.
func (s *Store) ExportPack(hashes []Hash) ([]byte, error) {
	if len(hashes) > int(^uint32(0)) {
		return nil, fmt.Errorf("export pack: too many objects: %d", len(hashes))
	}

	var buf bytes.Buffer
	pw, err := NewPackWriter(&buf, uint32(len(hashes)))
	if err != nil {
		return nil, fmt.Errorf("export pack: create pack writer: %w", err)
	}
	for _, h := range hashes {
		objType, content, err := s.Read(h)
		if err != nil {
			return nil, fmt.Errorf("export pack: read %s: %w", h, err)
		}
		packType, ok := packTypeOf(objType)
		if !ok {
			return nil, fmt.Errorf("export pack: object %s has unpackable type %q", h, objType)
		}
		if err := pw.WriteEntry(packType, content); err != nil {
			return nil, fmt.Errorf("export pack: write entry %s: %w", h, err)
		}
	}
	if _, err := pw.Finish(); err != nil {
		return nil, fmt.Errorf("export pack: finalize: %w", err)
	}
	return buf.Bytes(), nil
}

// Verify checks object integrity across loose objects and pack/index
// pairs: every loose object must hash to its key, every index entry must
// point at a pack entry that hashes to the indexed hash.
func (s *Store) Verify() (*VerifySummary, error) {
	report := &VerifySummary{}

	looseHashes, err := s.ListLoose()
	if err != nil {
		return nil, err
	}
	for _, h := range looseHashes {
		objType, content, err := s.readLoose(h)
		if err != nil {
			return nil, fmt.Errorf("verify loose %s: %w", h, err)
		}
		if actual := HashObject(objType, content); actual != h {
			return nil, fmt.Errorf("verify loose %s: %w: hashes to %s", h, ErrCorruptObject, actual)
		}
		report.LooseObjects++
	}

	names, err := s.ListPacks()
	if err != nil {
		return nil, err
	}
	for _, name := range names {
		idx, err := s.PackIndexFor(name)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", name, err)
		}
		packData, err := s.backend.ReadFile(packKey(name))
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", name, err)
		}
		pf, err := ReadPackResolved(packData)
		if err != nil {
			return nil, fmt.Errorf("verify pack %s: %w", name, err)
		}
		if pf.Checksum != idx.PackChecksum {
			return nil, fmt.Errorf(
				"verify pack %s: %w: checksum mismatch between idx (%s) and pack (%s)",
				name, ErrCorruptPack, idx.PackChecksum, pf.Checksum,
			)
		}

		byOffset := make(map[uint64]PackEntry, len(pf.Entries))
		for _, entry := range pf.Entries {
			if _, exists := byOffset[entry.Offset]; exists {
				return nil, fmt.Errorf("verify pack %s: %w: duplicate offset %d", name, ErrCorruptPack, entry.Offset)
			}
			byOffset[entry.Offset] = entry
		}

		entries := idx.Entries()
		if len(entries) != len(byOffset) {
			return nil, fmt.Errorf(
				"verify pack %s: %w: idx entry count %d does not match pack entry count %d",
				name, ErrCorruptPack, len(entries), len(byOffset),
			)
		}
		for _, indexEntry := range entries {
			packEntry, ok := byOffset[indexEntry.Offset]
			if !ok {
				return nil, fmt.Errorf(
					"verify pack %s: %w: missing entry for %s at offset %d",
					name, ErrCorruptPack, indexEntry.Hash, indexEntry.Offset,
				)
			}
			objType, typeOK := objectTypeOf(packEntry.Type)
			if !typeOK {
				return nil, fmt.Errorf("verify pack %s: %w: unresolved type %d", name, ErrCorruptPack, packEntry.Type)
			}
			if computed := HashObject(objType, packEntry.Data); computed != indexEntry.Hash {
				return nil, fmt.Errorf(
					"verify pack %s: %w: entry %s hashes to %s",
					name, ErrCorruptObject, indexEntry.Hash, computed,
				)
			}
			report.PackObjects++
		}
		report.PackFiles++
	}

	return report, nil
}
