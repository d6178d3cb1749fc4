package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

// PackEntry represents one object entry in a pack stream. For delta
// entries, Data holds the delta instruction stream until resolution
// rewrites Type/Data to the reconstructed object.
type PackEntry struct {
	Type   PackObjectType
	Size   uint64
	Offset uint64 // byte offset of the entry header from pack start
	CRC32  uint32 // checksum of the raw entry bytes as stored in the pack
	Data   []byte

	// Delta linkage, meaningful only while Type is a delta type.
	BaseOffset uint64 // OFS_DELTA: absolute offset of the base entry
	BaseHash   Hash   // REF_DELTA: hash of the base object
}

// PackFile is the decoded content of a full pack stream.
type PackFile struct {
	Header   PackHeader
	Entries  []PackEntry
	Checksum Hash
}

// ReadPack parses a full pack byte slice. The trailing SHA-256 checksum is
// verified before anything else is trusted; a mismatch or any structural
// fault yields an error wrapping ErrCorruptPack. Delta entries are returned
// unresolved.
func ReadPack(data []byte) (*PackFile, error) {
	if len(data) < packHeaderSize+sha256.Size {
		return nil, fmt.Errorf("%w: too short: %d bytes", ErrCorruptPack, len(data))
	}

	payload := data[:len(data)-sha256.Size]
	trailer := data[len(data)-sha256.Size:]

	sum := sha256.Sum256(payload)
	if !bytes.Equal(sum[:], trailer) {
		return nil, fmt.Errorf("%w: checksum mismatch", ErrCorruptPack)
	}

	header, err := UnmarshalPackHeader(payload[:packHeaderSize])
	if err != nil {
		return nil, err
	}

	offset := packHeaderSize
	entries := make([]PackEntry, 0, header.NumObjects)
	for i := uint32(0); i < header.NumObjects; i++ {
		entryStart := offset

		objType, size, n, err := decodePackEntryHeader(payload[offset:])
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		offset += n

		entry := PackEntry{
			Type:   objType,
			Size:   size,
			Offset: uint64(entryStart),
		}

		switch objType {
		case PackCommit, PackTree, PackBlob, PackTag:
		case PackOfsDelta:
			distance, n, err := decodeOfsDeltaDistance(payload[offset:])
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", i, err)
			}
			offset += n
			if distance > uint64(entryStart) {
				return nil, fmt.Errorf("%w: entry %d: ofs-delta base before pack start", ErrCorruptPack, i)
			}
			entry.BaseOffset = uint64(entryStart) - distance
		case PackRefDelta:
			if offset+sha256.Size > len(payload) {
				return nil, fmt.Errorf("%w: entry %d: ref-delta base hash truncated", ErrCorruptPack, i)
			}
			entry.BaseHash = Hash(hex.EncodeToString(payload[offset : offset+sha256.Size]))
			offset += sha256.Size
		default:
			return nil, fmt.Errorf("%w: entry %d: unknown object type %d", ErrCorruptPack, i, objType)
		}

		if offset >= len(payload) {
			return nil, fmt.Errorf("%w: entry %d: missing compressed payload", ErrCorruptPack, i)
		}

		sub := bytes.NewReader(payload[offset:])
		zr, err := zlib.NewReader(sub)
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d: zlib reader: %v", ErrCorruptPack, i, err)
		}
		raw, err := io.ReadAll(zr)
		if err != nil {
			_ = zr.Close()
			return nil, fmt.Errorf("%w: entry %d: decompress: %v", ErrCorruptPack, i, err)
		}
		if err := zr.Close(); err != nil {
			return nil, fmt.Errorf("%w: entry %d: close zlib stream: %v", ErrCorruptPack, i, err)
		}
		if uint64(len(raw)) != size {
			return nil, fmt.Errorf("%w: entry %d: size mismatch header=%d decoded=%d", ErrCorruptPack, i, size, len(raw))
		}

		consumed := len(payload[offset:]) - sub.Len()
		offset += consumed

		entry.Data = raw
		entry.CRC32 = crc32.ChecksumIEEE(payload[entryStart:offset])
		entries = append(entries, entry)
	}

	if offset != len(payload) {
		return nil, fmt.Errorf("%w: %d trailing undecoded bytes", ErrCorruptPack, len(payload)-offset)
	}

	return &PackFile{
		Header:   *header,
		Entries:  entries,
		Checksum: Hash(hex.EncodeToString(trailer)),
	}, nil
}

// ReadPackFromReader reads a complete pack stream from r and delegates to
// ReadPack for decode and verification.
func ReadPackFromReader(r io.Reader) (*PackFile, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pack stream: %w", err)
	}
	return ReadPack(data)
}

// ReadPackResolved parses a pack and resolves every delta entry against its
// base, which may itself be delta-encoded. Resolution runs in passes
// bounded by maxDeltaDepth, so base cycles and over-deep chains are
// rejected rather than followed. Resolved entries carry the reconstructed
// object type and bytes; offsets and CRCs are preserved.
func ReadPackResolved(data []byte) (*PackFile, error) {
	pf, err := ReadPack(data)
	if err != nil {
		return nil, err
	}

	byOffset := make(map[uint64]int, len(pf.Entries))
	for i := range pf.Entries {
		byOffset[pf.Entries[i].Offset] = i
	}

	resolved := make([]bool, len(pf.Entries))
	byHash := make(map[Hash]int, len(pf.Entries))
	pending := 0
	for i := range pf.Entries {
		switch pf.Entries[i].Type {
		case PackOfsDelta, PackRefDelta:
			pending++
		default:
			resolved[i] = true
			if objType, ok := objectTypeOf(pf.Entries[i].Type); ok {
				byHash[HashObject(objType, pf.Entries[i].Data)] = i
			}
		}
	}

	for depth := 0; pending > 0; depth++ {
		if depth >= maxDeltaDepth {
			return nil, fmt.Errorf("%w: delta chain deeper than %d", ErrCorruptPack, maxDeltaDepth)
		}

		progressed := false
		for i := range pf.Entries {
			if resolved[i] {
				continue
			}
			entry := &pf.Entries[i]

			var baseIdx int
			var ok bool
			switch entry.Type {
			case PackOfsDelta:
				baseIdx, ok = byOffset[entry.BaseOffset]
				if !ok {
					return nil, fmt.Errorf("%w: ofs-delta base offset %d not an entry", ErrCorruptPack, entry.BaseOffset)
				}
			case PackRefDelta:
				baseIdx, ok = byHash[entry.BaseHash]
				if !ok {
					// Base may be a delta not yet resolved; retry next pass.
					continue
				}
			}
			if !resolved[baseIdx] {
				continue
			}

			base := pf.Entries[baseIdx]
			target, err := applyDelta(base.Data, entry.Data)
			if err != nil {
				return nil, fmt.Errorf("resolve delta at offset %d: %w", entry.Offset, err)
			}

			entry.Type = base.Type
			entry.Size = uint64(len(target))
			entry.Data = target
			entry.BaseOffset = 0
			entry.BaseHash = ""
			resolved[i] = true
			if objType, ok := objectTypeOf(base.Type); ok {
				byHash[HashObject(objType, target)] = i
			}
			pending--
			progressed = true
		}

		if !progressed {
			return nil, fmt.Errorf("%w: unresolvable delta bases (%d entries)", ErrCorruptPack, pending)
		}
	}

	return pf, nil
}
