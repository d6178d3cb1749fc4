package storage

import (
	"bytes"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func backends(t *testing.T) map[string]Backend {
	t.Helper()
	return map[string]Backend{
		"disk":   NewDisk(t.TempDir()),
		"memory": NewMemory("test"),
	}
}

func TestBackendWriteReadRoundTrip(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			data := []byte("payload")
			if err := b.WriteFile("dir/sub/file", data); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got, err := b.ReadFile("dir/sub/file")
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if !bytes.Equal(got, data) {
				t.Errorf("ReadFile: got %q, want %q", got, data)
			}
			if !b.Exists("dir/sub/file") {
				t.Error("Exists returned false for written key")
			}
		})
	}
}

func TestBackendMissingKey(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if b.Exists("nope") {
				t.Error("Exists returned true for absent key")
			}
			if _, err := b.ReadFile("nope"); !errors.Is(err, fs.ErrNotExist) {
				t.Errorf("ReadFile absent key: got %v, want fs.ErrNotExist", err)
			}
		})
	}
}

func TestBackendOverwrite(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.WriteFile("k", []byte("one")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if err := b.WriteFile("k", []byte("two")); err != nil {
				t.Fatalf("WriteFile overwrite: %v", err)
			}
			got, err := b.ReadFile("k")
			if err != nil {
				t.Fatalf("ReadFile: %v", err)
			}
			if string(got) != "two" {
				t.Errorf("overwrite: got %q, want %q", got, "two")
			}
		})
	}
}

func TestBackendListSortedRecursive(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"refs/tags/v1", "refs/heads/main", "refs/heads/dev", "other"} {
				if err := b.WriteFile(k, []byte("x")); err != nil {
					t.Fatalf("WriteFile %s: %v", k, err)
				}
			}
			got, err := b.List("refs")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			want := []string{"refs/heads/dev", "refs/heads/main", "refs/tags/v1"}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("List: got %v, want %v", got, want)
			}
		})
	}
}

func TestBackendListMissingPrefix(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			got, err := b.List("absent")
			if err != nil {
				t.Fatalf("List absent prefix: %v", err)
			}
			if len(got) != 0 {
				t.Errorf("List absent prefix: got %v, want empty", got)
			}
		})
	}
}

func TestBackendListPrefixIsComponentwise(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.WriteFile("refsextra/x", []byte("x")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if err := b.WriteFile("refs/y", []byte("y")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			got, err := b.List("refs")
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if !reflect.DeepEqual(got, []string{"refs/y"}) {
				t.Errorf("List matched sibling prefix: got %v", got)
			}
		})
	}
}

func TestBackendRemove(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			if err := b.WriteFile("k", []byte("x")); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if err := b.Remove("k"); err != nil {
				t.Fatalf("Remove: %v", err)
			}
			if b.Exists("k") {
				t.Error("key still exists after Remove")
			}
		})
	}
}

func TestBackendRemoveAll(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			for _, k := range []string{"a/1", "a/2", "b/1"} {
				if err := b.WriteFile(k, []byte("x")); err != nil {
					t.Fatalf("WriteFile %s: %v", k, err)
				}
			}
			if err := b.RemoveAll("a"); err != nil {
				t.Fatalf("RemoveAll: %v", err)
			}
			if b.Exists("a/1") || b.Exists("a/2") {
				t.Error("keys under removed prefix still exist")
			}
			if !b.Exists("b/1") {
				t.Error("unrelated key removed")
			}
		})
	}
}

func TestBackendKind(t *testing.T) {
	disk := NewDisk(t.TempDir())
	if disk.Kind() != Disk {
		t.Errorf("disk Kind: got %v", disk.Kind())
	}
	mem := NewMemory("m")
	if mem.Kind() != Memory {
		t.Errorf("memory Kind: got %v", mem.Kind())
	}
	if Disk.String() == Memory.String() {
		t.Error("Kind strings not distinct")
	}
}

func TestDiskBackendPersistsOnDisk(t *testing.T) {
	dir := t.TempDir()
	b := NewDisk(dir)
	if err := b.WriteFile("objects/ab/cd", []byte("x")); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	p := filepath.Join(dir, "objects", "ab", "cd")
	if _, err := os.Stat(p); err != nil {
		t.Errorf("expected file at %s: %v", p, err)
	}

	// A fresh backend over the same dir sees the data.
	b2 := NewDisk(dir)
	if !b2.Exists("objects/ab/cd") {
		t.Error("reopened backend does not see written key")
	}
}

func TestMemoryBackendReadIsolation(t *testing.T) {
	b := NewMemory("m")
	data := []byte("abc")
	if err := b.WriteFile("k", data); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	data[0] = 'z'

	got, err := b.ReadFile("k")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if string(got) != "abc" {
		t.Errorf("stored data aliased caller slice: got %q", got)
	}
	got[0] = 'q'
	again, _ := b.ReadFile("k")
	if string(again) != "abc" {
		t.Errorf("returned data aliased stored slice: got %q", again)
	}
}
