package object

import (
	"bytes"
	"errors"
	"reflect"
	"testing"
)

func TestHashBytesDeterminism(t *testing.T) {
	data := []byte("hello world")
	h1 := HashBytes(data)
	h2 := HashBytes(data)
	if h1 != h2 {
		t.Errorf("HashBytes not deterministic: %q != %q", h1, h2)
	}
	if len(h1) != 64 {
		t.Errorf("Hash length: got %d, want 64", len(h1))
	}
}

func TestHashObjectEnvelope(t *testing.T) {
	data := []byte("hello")
	h1 := HashObject(TypeBlob, data)
	h2 := HashBytes(data)
	if h1 == h2 {
		t.Error("HashObject should differ from HashBytes due to envelope")
	}

	h3 := HashObject(TypeBlob, data)
	if h1 != h3 {
		t.Error("HashObject not deterministic")
	}

	h4 := HashObject(TypeCommit, data)
	if h1 == h4 {
		t.Error("Different types should produce different hashes")
	}
}

func TestHashIsValid(t *testing.T) {
	if !HashBytes([]byte("x")).IsValid() {
		t.Error("real hash reported invalid")
	}
	bad := []Hash{"", "abc", Hash(bytes.Repeat([]byte("g"), 64)), Hash(bytes.Repeat([]byte("A"), 64))}
	for _, h := range bad {
		if h.IsValid() {
			t.Errorf("IsValid(%q) = true", h)
		}
	}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	content := []byte("some content")
	raw := MakeEnvelope(TypeBlob, content)

	objType, got, err := ParseEnvelope(raw)
	if err != nil {
		t.Fatalf("ParseEnvelope: %v", err)
	}
	if objType != TypeBlob {
		t.Errorf("type: got %q, want %q", objType, TypeBlob)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("content: got %q, want %q", got, content)
	}
}

func TestParseEnvelopeCorrupt(t *testing.T) {
	cases := map[string][]byte{
		"no nul":          []byte("blob 4abcd"),
		"bad type":        []byte("widget 4\x00abcd"),
		"bad length":      []byte("blob x\x00abcd"),
		"length mismatch": []byte("blob 9\x00abcd"),
		"no space":        []byte("blob4\x00abcd"),
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, _, err := ParseEnvelope(raw); !errors.Is(err, ErrCorruptObject) {
				t.Errorf("got %v, want ErrCorruptObject", err)
			}
		})
	}
}

func TestTreeRoundTripAndSorting(t *testing.T) {
	blobHash := HashObject(TypeBlob, []byte("a"))
	subHash := HashObject(TypeTree, []byte{})
	tr := &TreeObj{Entries: []TreeEntry{
		{Name: "zeta.txt", Mode: TreeModeFile, Hash: blobHash},
		{Name: "alpha", Mode: TreeModeDir, Hash: subHash},
		{Name: "run.sh", Mode: TreeModeExecutable, Hash: blobHash},
	}}

	data1, err := MarshalTree(tr)
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	// Same entries in a different input order marshal identically.
	data2, err := MarshalTree(&TreeObj{Entries: []TreeEntry{
		{Name: "run.sh", Mode: TreeModeExecutable, Hash: blobHash},
		{Name: "zeta.txt", Mode: TreeModeFile, Hash: blobHash},
		{Name: "alpha", Mode: TreeModeDir, Hash: subHash},
	}})
	if err != nil {
		t.Fatalf("MarshalTree: %v", err)
	}
	if !bytes.Equal(data1, data2) {
		t.Error("tree serialization depends on input order")
	}

	got, err := UnmarshalTree(data1)
	if err != nil {
		t.Fatalf("UnmarshalTree: %v", err)
	}
	if len(got.Entries) != 3 {
		t.Fatalf("entries: got %d, want 3", len(got.Entries))
	}
	if got.Entries[0].Name != "alpha" || !got.Entries[0].IsDir() {
		t.Errorf("first entry: got %+v, want sorted dir entry alpha", got.Entries[0])
	}
	if got.Entries[2].Name != "zeta.txt" {
		t.Errorf("last entry: got %q, want zeta.txt", got.Entries[2].Name)
	}
}

func TestMarshalTreeRejectsUnrepresentableNames(t *testing.T) {
	blobHash := HashObject(TypeBlob, []byte("a"))
	for _, name := range []string{"", "my file.txt", "line\nbreak", "nul\x00byte"} {
		tr := &TreeObj{Entries: []TreeEntry{{Name: name, Mode: TreeModeFile, Hash: blobHash}}}
		if _, err := MarshalTree(tr); err == nil {
			t.Errorf("name %q: marshal succeeded", name)
		}
	}
}

func TestCommitRoundTrip(t *testing.T) {
	c := &CommitObj{
		TreeHash:      HashObject(TypeTree, []byte{}),
		Parents:       []Hash{HashObject(TypeCommit, []byte("p1")), HashObject(TypeCommit, []byte("p2"))},
		Author:        "Ada <ada@example.com>",
		AuthorTime:    1700000000,
		Committer:     "Ada <ada@example.com>",
		CommitterTime: 1700000100,
		Signature:     "sshsig-v1:ssh-ed25519:cHVi:c2ln",
		Message:       "merge feature\n\nwith a body",
	}

	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, c)
	}
}

func TestCommitRoundTripNoParentsNoSignature(t *testing.T) {
	c := &CommitObj{
		TreeHash:      HashObject(TypeTree, []byte{}),
		Author:        "Bo",
		AuthorTime:    1,
		Committer:     "Bo",
		CommitterTime: 1,
		Message:       "initial",
	}
	got, err := UnmarshalCommit(MarshalCommit(c))
	if err != nil {
		t.Fatalf("UnmarshalCommit: %v", err)
	}
	if len(got.Parents) != 0 {
		t.Errorf("parents: got %v, want none", got.Parents)
	}
	if got.Signature != "" {
		t.Errorf("signature: got %q, want empty", got.Signature)
	}
	if !reflect.DeepEqual(got, c) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, c)
	}
}

func TestCommitSigningPayloadExcludesSignature(t *testing.T) {
	c := &CommitObj{
		TreeHash:      HashObject(TypeTree, []byte{}),
		Author:        "Ada",
		AuthorTime:    10,
		Committer:     "Ada",
		CommitterTime: 10,
		Message:       "msg",
	}
	unsigned := CommitSigningPayload(c)

	c.Signature = "sshsig-v1:ssh-ed25519:cHVi:c2ln"
	signed := CommitSigningPayload(c)
	if !bytes.Equal(unsigned, signed) {
		t.Error("signing payload changed when signature was attached")
	}
	if bytes.Equal(signed, MarshalCommit(c)) {
		t.Error("signing payload should not include the signature header")
	}
}

func TestTagRoundTrip(t *testing.T) {
	tag := &TagObj{
		TargetHash: HashObject(TypeCommit, []byte("c")),
		TargetKind: TypeCommit,
		Name:       "v1.0.0",
		Tagger:     "Ada <ada@example.com>",
		TagTime:    1700000000,
		Message:    "first release",
	}
	got, err := UnmarshalTag(MarshalTag(tag))
	if err != nil {
		t.Fatalf("UnmarshalTag: %v", err)
	}
	if !reflect.DeepEqual(got, tag) {
		t.Errorf("round trip mismatch:\ngot  %+v\nwant %+v", got, tag)
	}
}

func TestUnmarshalCommitCorrupt(t *testing.T) {
	if _, err := UnmarshalCommit([]byte("not a commit")); !errors.Is(err, ErrCorruptObject) {
		t.Errorf("got %v, want ErrCorruptObject", err)
	}
}

func TestUnmarshalTreeCorrupt(t *testing.T) {
	if _, err := UnmarshalTree([]byte("bad line without fields\n")); !errors.Is(err, ErrCorruptObject) {
		t.Errorf("got %v, want ErrCorruptObject", err)
	}
}
