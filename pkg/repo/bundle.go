package repo

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/refs"
)

// Bundle format: a plaintext magic line followed by a zstd-compressed body.
// The body starts with a refs section, one "<name>\t<value>" line per ref
// (value is a hash or "ref: <target>" for symbolic refs), terminated by a
// blank line, then a pack stream carrying every object in the store.
const bundleMagic = "gritbundle v1\n"

// ExportBundle writes the whole repository (all objects plus all refs and
// HEAD) as a single portable stream.
func (r *Repo) ExportBundle(w io.Writer) error {
	hashes, err := r.Store.List()
	if err != nil {
		return fmt.Errorf("export bundle: %w", err)
	}
	packData, err := r.Store.ExportPack(hashes)
	if err != nil {
		return fmt.Errorf("export bundle: %w", err)
	}

	var refsBuf bytes.Buffer
	head, err := r.Refs.Head()
	if err == nil {
		fmt.Fprintf(&refsBuf, "%s\t%s\n", refs.HeadName, refValueString(head))
	}
	all, err := r.Refs.List()
	if err != nil {
		return fmt.Errorf("export bundle: %w", err)
	}
	for _, ref := range all {
		fmt.Fprintf(&refsBuf, "%s\t%s\n", ref.Name, refValueString(ref))
	}
	refsBuf.WriteByte('\n')

	if _, err := io.WriteString(w, bundleMagic); err != nil {
		return fmt.Errorf("export bundle: write magic: %w", err)
	}
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return fmt.Errorf("export bundle: zstd writer: %w", err)
	}
	if _, err := enc.Write(refsBuf.Bytes()); err != nil {
		enc.Close()
		return fmt.Errorf("export bundle: write refs: %w", err)
	}
	if _, err := enc.Write(packData); err != nil {
		enc.Close()
		return fmt.Errorf("export bundle: write pack: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("export bundle: close zstd stream: %w", err)
	}
	return nil
}

func refValueString(ref refs.Ref) string {
	if ref.IsSymbolic() {
		return "ref: " + ref.Target
	}
	return string(ref.Hash)
}

// ImportBundle ingests a bundle produced by ExportBundle. Objects are
// ingested before any ref is written, so refs never name absent objects;
// imported refs overwrite same-named local refs.
func (r *Repo) ImportBundle(src io.Reader) error {
	br := bufio.NewReader(src)
	magic := make([]byte, len(bundleMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return fmt.Errorf("import bundle: read magic: %w", err)
	}
	if string(magic) != bundleMagic {
		return fmt.Errorf("import bundle: not a bundle (bad magic %q)", string(magic))
	}

	dec, err := zstd.NewReader(br)
	if err != nil {
		return fmt.Errorf("import bundle: zstd reader: %w", err)
	}
	defer dec.Close()
	body, err := io.ReadAll(dec)
	if err != nil {
		return fmt.Errorf("import bundle: decompress: %w", err)
	}

	sep := bytes.Index(body, []byte("\n\n"))
	if sep < 0 {
		return fmt.Errorf("import bundle: missing refs terminator")
	}
	refLines := strings.Split(string(body[:sep]), "\n")
	packData := body[sep+2:]

	if len(packData) > 0 {
		if _, err := r.Store.IngestPack(packData); err != nil {
			return fmt.Errorf("import bundle: %w", err)
		}
	}

	for _, line := range refLines {
		if line == "" {
			continue
		}
		name, value, ok := strings.Cut(line, "\t")
		if !ok {
			return fmt.Errorf("import bundle: malformed ref line %q", line)
		}
		if target, isSym := strings.CutPrefix(value, "ref: "); isSym {
			if err := r.Refs.WriteSymbolic(name, target); err != nil {
				return fmt.Errorf("import bundle: write ref %q: %w", name, err)
			}
			continue
		}
		h := object.Hash(value)
		if !h.IsValid() {
			return fmt.Errorf("import bundle: ref %q has invalid hash %q", name, value)
		}
		if err := r.Refs.Write(name, h); err != nil {
			return fmt.Errorf("import bundle: write ref %q: %w", name, err)
		}
	}
	return nil
}
