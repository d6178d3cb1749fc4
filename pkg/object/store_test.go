package object

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gritvcs/grit/pkg/storage"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewDisk(t.TempDir()))
}

func memStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(storage.NewMemory("test"))
}

func TestStoreWriteRead(t *testing.T) {
	for name, s := range map[string]*Store{"disk": tempStore(t), "memory": memStore(t)} {
		t.Run(name, func(t *testing.T) {
			data := []byte("hello world")
			h, err := s.Write(TypeBlob, data)
			if err != nil {
				t.Fatalf("Write: %v", err)
			}
			if len(h) != 64 {
				t.Errorf("Hash length: got %d, want 64", len(h))
			}

			gotType, gotData, err := s.Read(h)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if gotType != TypeBlob {
				t.Errorf("Type: got %q, want %q", gotType, TypeBlob)
			}
			if !bytes.Equal(gotData, data) {
				t.Errorf("Data: got %q, want %q", gotData, data)
			}
		})
	}
}

func TestStoreHas(t *testing.T) {
	s := tempStore(t)
	h, err := s.Write(TypeBlob, []byte("exists"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !s.Has(h) {
		t.Error("Has returned false for existing object")
	}
	if s.Has(Hash("0000000000000000000000000000000000000000000000000000000000000000")) {
		t.Error("Has returned true for non-existing object")
	}
	if s.Has(Hash("not-a-hash")) {
		t.Error("Has returned true for malformed hash")
	}
}

func TestStoreReadMissing(t *testing.T) {
	s := tempStore(t)
	missing := HashObject(TypeBlob, []byte("never written"))
	if _, _, err := s.Read(missing); !errors.Is(err, ErrNotFound) {
		t.Errorf("Read missing: got %v, want ErrNotFound", err)
	}
}

func TestStoreDuplicateWrite(t *testing.T) {
	s := tempStore(t)
	data := []byte("duplicate")
	h1, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	h2, err := s.Write(TypeBlob, data)
	if err != nil {
		t.Fatalf("Write 2: %v", err)
	}
	if h1 != h2 {
		t.Errorf("duplicate write changed hash: %q != %q", h1, h2)
	}
}

func TestStoreFanoutLayout(t *testing.T) {
	dir := t.TempDir()
	s := NewStore(storage.NewDisk(dir))
	h, err := s.Write(TypeBlob, []byte("fanout test"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	objPath := filepath.Join(dir, "objects", string(h[:2]), string(h[2:]))
	if _, err := os.Stat(objPath); err != nil {
		t.Errorf("expected fan-out file at %s: %v", objPath, err)
	}
}

func TestStoreCompressionLevels(t *testing.T) {
	s := tempStore(t)
	data := bytes.Repeat([]byte("compressible content "), 50)

	for _, level := range []int{NoCompression, BestSpeed, DefaultCompression, BestCompression} {
		h, err := s.WriteLevel(TypeBlob, data, level)
		if err != nil {
			t.Fatalf("WriteLevel(%d): %v", level, err)
		}
		_, got, err := s.Read(h)
		if err != nil {
			t.Fatalf("Read after level %d write: %v", level, err)
		}
		if !bytes.Equal(got, data) {
			t.Errorf("level %d: content mismatch", level)
		}
	}
}

func TestStoreInvalidCompressionLevel(t *testing.T) {
	s := tempStore(t)
	for _, level := range []int{-1, 10, 42} {
		if _, err := s.WriteLevel(TypeBlob, []byte("x"), level); !errors.Is(err, ErrInvalidCompressionLevel) {
			t.Errorf("WriteLevel(%d): got %v, want ErrInvalidCompressionLevel", level, err)
		}
	}
}

func TestStoreInvalidType(t *testing.T) {
	s := tempStore(t)
	if _, err := s.Write(ObjectType("widget"), []byte("x")); err == nil {
		t.Error("Write with unknown type succeeded")
	}
}

func TestStoreDurabilityAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	s1 := NewStore(storage.NewDisk(dir))
	h, err := s1.Write(TypeBlob, []byte("durable"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	s2 := NewStore(storage.NewDisk(dir))
	gotType, gotData, err := s2.Read(h)
	if err != nil {
		t.Fatalf("Read after reopen: %v", err)
	}
	if gotType != TypeBlob || string(gotData) != "durable" {
		t.Errorf("reopen read: got %q %q", gotType, gotData)
	}
}

func TestStoreList(t *testing.T) {
	s := tempStore(t)
	h1, _ := s.Write(TypeBlob, []byte("one"))
	h2, _ := s.Write(TypeBlob, []byte("two"))

	hashes, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := map[Hash]bool{h1: false, h2: false}
	for _, h := range hashes {
		if _, ok := want[h]; ok {
			want[h] = true
		}
	}
	for h, seen := range want {
		if !seen {
			t.Errorf("List missing %s", h)
		}
	}
}

func TestStoreCorruptLooseObject(t *testing.T) {
	backend := storage.NewMemory("test")
	s := NewStore(backend)
	h, err := s.Write(TypeBlob, []byte("soon corrupt"))
	if err != nil {
		t.Fatalf("Write: %v", err)
	}

	key := "objects/" + string(h[:2]) + "/" + string(h[2:])
	if err := backend.WriteFile(key, []byte("not zlib")); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}
	if _, _, err := s.Read(h); !errors.Is(err, ErrCorruptObject) {
		t.Errorf("Read corrupt: got %v, want ErrCorruptObject", err)
	}
}

func TestTypedHelpersRoundTrip(t *testing.T) {
	s := memStore(t)

	blobHash, err := s.WriteBlob(&Blob{Data: []byte("blob data")})
	if err != nil {
		t.Fatalf("WriteBlob: %v", err)
	}
	blob, err := s.ReadBlob(blobHash)
	if err != nil {
		t.Fatalf("ReadBlob: %v", err)
	}
	if string(blob.Data) != "blob data" {
		t.Errorf("blob: got %q", blob.Data)
	}

	treeHash, err := s.WriteTree(&TreeObj{Entries: []TreeEntry{
		{Name: "f.txt", Mode: TreeModeFile, Hash: blobHash},
	}})
	if err != nil {
		t.Fatalf("WriteTree: %v", err)
	}

	commitHash, err := s.WriteCommit(&CommitObj{
		TreeHash:      treeHash,
		Author:        "Ada",
		AuthorTime:    1,
		Committer:     "Ada",
		CommitterTime: 1,
		Message:       "m",
	})
	if err != nil {
		t.Fatalf("WriteCommit: %v", err)
	}
	commit, err := s.ReadCommit(commitHash)
	if err != nil {
		t.Fatalf("ReadCommit: %v", err)
	}
	if commit.TreeHash != treeHash {
		t.Errorf("commit tree: got %s, want %s", commit.TreeHash, treeHash)
	}

	// Reading with the wrong typed helper fails.
	if _, err := s.ReadBlob(commitHash); err == nil {
		t.Error("ReadBlob on a commit succeeded")
	}
}

func TestStoreConcurrentDistinctWrites(t *testing.T) {
	const writers = 16
	for name, s := range map[string]*Store{"disk": tempStore(t), "memory": memStore(t)} {
		t.Run(name, func(t *testing.T) {
			hashes := make([]Hash, writers)
			var wg sync.WaitGroup
			errs := make([]error, writers)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(i int) {
					defer wg.Done()
					content := []byte(fmt.Sprintf("object %d", i))
					hashes[i], errs[i] = s.WriteLevel(TypeBlob, content, DefaultCompression)
				}(i)
			}
			wg.Wait()

			for i := 0; i < writers; i++ {
				if errs[i] != nil {
					t.Fatalf("writer %d: %v", i, errs[i])
				}
				objType, content, err := s.Read(hashes[i])
				if err != nil {
					t.Fatalf("read %s: %v", hashes[i].Short(), err)
				}
				if objType != TypeBlob || string(content) != fmt.Sprintf("object %d", i) {
					t.Errorf("object %d survived corrupted: type=%s content=%q", i, objType, content)
				}
			}
			all, err := s.List()
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if len(all) != writers {
				t.Errorf("List: got %d objects, want %d", len(all), writers)
			}
		})
	}
}

func TestStoreConcurrentSameHashWrites(t *testing.T) {
	const writers = 16
	content := []byte("contended object")
	want := HashObject(TypeBlob, content)

	for name, s := range map[string]*Store{"disk": tempStore(t), "memory": memStore(t)} {
		t.Run(name, func(t *testing.T) {
			var wg sync.WaitGroup
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func(level int) {
					defer wg.Done()
					// Mixed levels produce different encodings of the
					// same object; the winner must still decode intact.
					h, err := s.WriteLevel(TypeBlob, content, level)
					if err != nil {
						t.Errorf("WriteLevel(%d): %v", level, err)
						return
					}
					if h != want {
						t.Errorf("WriteLevel(%d): got %s, want %s", level, h, want)
					}
				}(i % 10)
			}
			wg.Wait()

			objType, got, err := s.Read(want)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if objType != TypeBlob || !bytes.Equal(got, content) {
				t.Errorf("torn object: type=%s content=%q", objType, got)
			}
		})
	}
}
