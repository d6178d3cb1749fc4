package object

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"hash/crc32"
	"io"

	"github.com/klauspost/compress/zlib"
)

type packCountedWriter struct {
	w io.Writer
	n uint64
}

func (cw *packCountedWriter) Write(p []byte) (int, error) {
	n, err := cw.w.Write(p)
	cw.n += uint64(n)
	return n, err
}

func (cw *packCountedWriter) Count() uint64 {
	return cw.n
}

func compressPackPayload(raw []byte) ([]byte, error) {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	if _, err := zw.Write(raw); err != nil {
		_ = zw.Close()
		return nil, err
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// PackWriter writes pack streams with zlib-compressed object entries. The
// trailer checksum is SHA-256 over all bytes preceding the trailer. Entry
// CRCs cover each entry's raw on-disk bytes, matching what the pack index
// records.
type PackWriter struct {
	out      io.Writer
	hasher   hash.Hash
	hashedW  io.Writer
	counter  *packCountedWriter
	expected uint32
	written  uint32
	lastCRC  uint32
	finished bool
}

// NewPackWriter initializes a new writer and writes the fixed pack header.
func NewPackWriter(out io.Writer, numObjects uint32) (*PackWriter, error) {
	hasher := sha256.New()
	counter := &packCountedWriter{w: out}
	pw := &PackWriter{
		out:      out,
		hasher:   hasher,
		hashedW:  io.MultiWriter(counter, hasher),
		counter:  counter,
		expected: numObjects,
	}

	header := PackHeader{
		Version:    supportedPackVersion,
		NumObjects: numObjects,
	}
	if _, err := pw.hashedW.Write(header.Marshal()); err != nil {
		return nil, fmt.Errorf("write pack header: %w", err)
	}
	return pw, nil
}

// CurrentOffset returns the current byte offset in the pack stream (from
// pack start), excluding the trailing checksum written by Finish.
func (p *PackWriter) CurrentOffset() uint64 {
	return p.counter.Count()
}

// LastCRC32 returns the CRC of the most recently written entry's raw bytes.
func (p *PackWriter) LastCRC32() uint32 {
	return p.lastCRC
}

func (p *PackWriter) checkWritable() error {
	if p.finished {
		return fmt.Errorf("pack writer already finished")
	}
	if p.written >= p.expected {
		return fmt.Errorf("pack object count exceeded: expected %d", p.expected)
	}
	return nil
}

func (p *PackWriter) writeEntryBytes(chunks ...[]byte) error {
	crc := crc32.NewIEEE()
	for _, chunk := range chunks {
		if _, err := p.hashedW.Write(chunk); err != nil {
			return err
		}
		_, _ = crc.Write(chunk)
	}
	p.lastCRC = crc.Sum32()
	p.written++
	return nil
}

// WriteEntry appends one full (non-delta) object entry to the pack stream.
func (p *PackWriter) WriteEntry(objType PackObjectType, data []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}

	header := encodePackEntryHeader(objType, uint64(len(data)))
	compressed, err := compressPackPayload(data)
	if err != nil {
		return fmt.Errorf("compress pack entry: %w", err)
	}
	if err := p.writeEntryBytes(header, compressed); err != nil {
		return fmt.Errorf("write pack entry: %w", err)
	}
	return nil
}

// WriteOfsDelta writes an OFS_DELTA entry using an insert-only delta stream
// against the base previously written at baseOffset.
func (p *PackWriter) WriteOfsDelta(baseOffset uint64, baseData, targetData []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	current := p.CurrentOffset()
	if baseOffset >= current {
		return fmt.Errorf("base offset %d must be before current offset %d", baseOffset, current)
	}

	delta := buildInsertOnlyDelta(baseData, targetData)
	header := encodePackEntryHeader(PackOfsDelta, uint64(len(delta)))
	ofs := encodeOfsDeltaDistance(current - baseOffset)
	compressed, err := compressPackPayload(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}
	if err := p.writeEntryBytes(header, ofs, compressed); err != nil {
		return fmt.Errorf("write ofs-delta entry: %w", err)
	}
	return nil
}

// WriteRefDelta writes a REF_DELTA entry whose base is identified by hash
// rather than offset.
func (p *PackWriter) WriteRefDelta(baseHash Hash, baseData, targetData []byte) error {
	if err := p.checkWritable(); err != nil {
		return err
	}
	baseRaw, err := hashHexToBytes(baseHash)
	if err != nil {
		return fmt.Errorf("ref-delta base: %w", err)
	}

	delta := buildInsertOnlyDelta(baseData, targetData)
	header := encodePackEntryHeader(PackRefDelta, uint64(len(delta)))
	compressed, err := compressPackPayload(delta)
	if err != nil {
		return fmt.Errorf("compress delta payload: %w", err)
	}
	if err := p.writeEntryBytes(header, baseRaw, compressed); err != nil {
		return fmt.Errorf("write ref-delta entry: %w", err)
	}
	return nil
}

// Finish validates the object count, writes the trailing pack checksum, and
// returns that checksum as a hex digest.
func (p *PackWriter) Finish() (Hash, error) {
	if p.finished {
		return "", fmt.Errorf("pack writer already finished")
	}
	if p.written != p.expected {
		return "", fmt.Errorf("pack object count mismatch: wrote %d, expected %d", p.written, p.expected)
	}

	sum := p.hasher.Sum(nil)
	if _, err := p.out.Write(sum); err != nil {
		return "", fmt.Errorf("write pack trailer checksum: %w", err)
	}

	p.finished = true
	return Hash(hex.EncodeToString(sum)), nil
}
