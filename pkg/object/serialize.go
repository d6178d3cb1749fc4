package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Envelope
// ---------------------------------------------------------------------------

// MakeEnvelope prepends the canonical "type len\0" header to content. The
// envelope is the unit that is hashed, compressed, and packed.
func MakeEnvelope(objType ObjectType, content []byte) []byte {
	header := fmt.Sprintf("%s %d\x00", objType, len(content))
	out := make([]byte, 0, len(header)+len(content))
	out = append(out, header...)
	out = append(out, content...)
	return out
}

// ParseEnvelope splits "type len\0content" into its type and content,
// validating the declared length and the type tag.
func ParseEnvelope(raw []byte) (ObjectType, []byte, error) {
	nulIdx := bytes.IndexByte(raw, 0)
	if nulIdx < 0 {
		return "", nil, fmt.Errorf("%w: no NUL separator in envelope", ErrCorruptObject)
	}
	header := string(raw[:nulIdx])
	content := raw[nulIdx+1:]

	typeStr, lenStr, ok := strings.Cut(header, " ")
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed envelope header %q", ErrCorruptObject, header)
	}
	objType := ObjectType(typeStr)
	if !IsValidType(objType) {
		return "", nil, fmt.Errorf("%w: unknown object type %q", ErrCorruptObject, typeStr)
	}
	length, err := strconv.Atoi(lenStr)
	if err != nil {
		return "", nil, fmt.Errorf("%w: invalid envelope length %q", ErrCorruptObject, lenStr)
	}
	if len(content) != length {
		return "", nil, fmt.Errorf(
			"%w: envelope length mismatch (header=%d, actual=%d)",
			ErrCorruptObject, length, len(content),
		)
	}
	return objType, content, nil
}

// ---------------------------------------------------------------------------
// Blob
// ---------------------------------------------------------------------------

// MarshalBlob serializes a Blob to raw bytes (identity).
func MarshalBlob(b *Blob) []byte {
	out := make([]byte, len(b.Data))
	copy(out, b.Data)
	return out
}

// UnmarshalBlob deserializes raw bytes into a Blob.
func UnmarshalBlob(data []byte) (*Blob, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &Blob{Data: out}, nil
}

// ---------------------------------------------------------------------------
// TreeObj
// ---------------------------------------------------------------------------

// MarshalTree serializes a TreeObj. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	name mode hash
//
// where mode is a Git-compatible mode string (40000, 100644, 100755).
// Names that cannot survive the line format (empty, or containing a
// space, newline, or NUL) are rejected rather than silently mangled.
func MarshalTree(tr *TreeObj) ([]byte, error) {
	sorted := make([]TreeEntry, len(tr.Entries))
	copy(sorted, tr.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		if err := validateTreeEntryName(e.Name); err != nil {
			return nil, err
		}
		mode := e.Mode
		if strings.TrimSpace(mode) == "" {
			mode = TreeModeFile
		}
		fmt.Fprintf(&buf, "%s %s %s\n", e.Name, mode, string(e.Hash))
	}
	return buf.Bytes(), nil
}

func validateTreeEntryName(name string) error {
	if name == "" {
		return fmt.Errorf("empty tree entry name")
	}
	if strings.ContainsAny(name, " \n\x00") {
		return fmt.Errorf("tree entry name %q contains a space, newline, or NUL", name)
	}
	return nil
}

// UnmarshalTree parses a TreeObj from its serialized form.
func UnmarshalTree(data []byte) (*TreeObj, error) {
	tr := &TreeObj{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return tr, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: malformed tree entry %q", ErrCorruptObject, line)
		}
		switch parts[1] {
		case TreeModeDir, TreeModeFile, TreeModeExecutable:
		default:
			return nil, fmt.Errorf("%w: unknown tree mode %q", ErrCorruptObject, parts[1])
		}
		tr.Entries = append(tr.Entries, TreeEntry{
			Name: parts[0],
			Mode: parts[1],
			Hash: Hash(parts[2]),
		})
	}
	return tr, nil
}

// ---------------------------------------------------------------------------
// CommitObj
// ---------------------------------------------------------------------------

// MarshalCommit serializes a CommitObj:
//
//	tree H
//	parent H      (zero or more)
//	author A
//	authored T
//	committer C
//	committed T
//	signature S   (optional)
//
//	message
func MarshalCommit(c *CommitObj) []byte {
	var buf bytes.Buffer
	writeCommitHeaders(&buf, c, true)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

// CommitSigningPayload returns the canonical bytes that a signer signs: the
// commit serialization with the signature header omitted.
func CommitSigningPayload(c *CommitObj) []byte {
	var buf bytes.Buffer
	writeCommitHeaders(&buf, c, false)
	buf.WriteByte('\n')
	buf.WriteString(c.Message)
	return buf.Bytes()
}

func writeCommitHeaders(buf *bytes.Buffer, c *CommitObj, includeSignature bool) {
	fmt.Fprintf(buf, "tree %s\n", string(c.TreeHash))
	for _, p := range c.Parents {
		fmt.Fprintf(buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(buf, "author %s\n", c.Author)
	fmt.Fprintf(buf, "authored %d\n", c.AuthorTime)
	fmt.Fprintf(buf, "committer %s\n", c.Committer)
	fmt.Fprintf(buf, "committed %d\n", c.CommitterTime)
	if includeSignature && strings.TrimSpace(c.Signature) != "" {
		fmt.Fprintf(buf, "signature %s\n", c.Signature)
	}
}

// UnmarshalCommit parses a CommitObj from its serialized form.
func UnmarshalCommit(data []byte) (*CommitObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: commit missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	c := &CommitObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed commit header line %q", ErrCorruptObject, line)
		}
		switch key {
		case "tree":
			c.TreeHash = Hash(val)
		case "parent":
			c.Parents = append(c.Parents, Hash(val))
		case "author":
			c.Author = val
		case "authored":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad author timestamp %q", ErrCorruptObject, val)
			}
			c.AuthorTime = ts
		case "committer":
			c.Committer = val
		case "committed":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad committer timestamp %q", ErrCorruptObject, val)
			}
			c.CommitterTime = ts
		case "signature":
			c.Signature = val
		default:
			return nil, fmt.Errorf("%w: unknown commit header key %q", ErrCorruptObject, key)
		}
	}
	return c, nil
}

// ---------------------------------------------------------------------------
// TagObj
// ---------------------------------------------------------------------------

// MarshalTag serializes a TagObj:
//
//	object H
//	type T
//	tag NAME
//	tagger A
//	tagged T
//
//	message
func MarshalTag(t *TagObj) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "object %s\n", string(t.TargetHash))
	fmt.Fprintf(&buf, "type %s\n", string(t.TargetKind))
	fmt.Fprintf(&buf, "tag %s\n", t.Name)
	fmt.Fprintf(&buf, "tagger %s\n", t.Tagger)
	fmt.Fprintf(&buf, "tagged %d\n", t.TagTime)
	buf.WriteByte('\n')
	buf.WriteString(t.Message)
	return buf.Bytes()
}

// UnmarshalTag parses a TagObj from its serialized form.
func UnmarshalTag(data []byte) (*TagObj, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("%w: tag missing header/message separator", ErrCorruptObject)
	}
	header := string(data[:idx])
	message := string(data[idx+2:])

	t := &TagObj{Message: message}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("%w: malformed tag header line %q", ErrCorruptObject, line)
		}
		switch key {
		case "object":
			t.TargetHash = Hash(val)
		case "type":
			kind := ObjectType(val)
			if !IsValidType(kind) {
				return nil, fmt.Errorf("%w: tag target type %q", ErrCorruptObject, val)
			}
			t.TargetKind = kind
		case "tag":
			t.Name = val
		case "tagger":
			t.Tagger = val
		case "tagged":
			ts, err := strconv.ParseInt(val, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad tag timestamp %q", ErrCorruptObject, val)
			}
			t.TagTime = ts
		default:
			return nil, fmt.Errorf("%w: unknown tag header key %q", ErrCorruptObject, key)
		}
	}
	return t, nil
}
