package refs

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
	"github.com/gritvcs/grit/pkg/storage"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	return New(storage.NewMemory("test"))
}

func testHash(seed string) object.Hash {
	return object.HashBytes([]byte(seed))
}

func TestWriteAndResolveDirect(t *testing.T) {
	s := testStore(t)
	h := testHash("c1")
	if err := s.Write("refs/heads/main", h); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != h {
		t.Errorf("Resolve: got %s, want %s", got, h)
	}
	if !s.Exists("refs/heads/main") {
		t.Error("Exists returned false")
	}
}

func TestResolveMissing(t *testing.T) {
	s := testStore(t)
	if _, err := s.Resolve("refs/heads/absent"); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound", err)
	}
}

func TestLastWriterWins(t *testing.T) {
	s := testStore(t)
	h1 := testHash("one")
	h2 := testHash("two")
	if err := s.Write("refs/heads/main", h1); err != nil {
		t.Fatalf("Write 1: %v", err)
	}
	if err := s.Write("refs/heads/main", h2); err != nil {
		t.Fatalf("Write 2: %v", err)
	}

	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != h2 {
		t.Errorf("got %s, want %s", got, h2)
	}
}

func TestSymbolicHeadFollowsBranchUpdates(t *testing.T) {
	s := testStore(t)
	if err := s.SetHeadSymbolic("refs/heads/main"); err != nil {
		t.Fatalf("SetHeadSymbolic: %v", err)
	}
	h1 := testHash("c1")
	if err := s.Write("refs/heads/main", h1); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := s.ResolveHead()
	if err != nil {
		t.Fatalf("ResolveHead: %v", err)
	}
	if got != h1 {
		t.Errorf("ResolveHead: got %s, want %s", got, h1)
	}

	// The symbolic link is followed at read time: moving the branch moves
	// HEAD without touching HEAD itself.
	h2 := testHash("c2")
	if err := s.Write("refs/heads/main", h2); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err = s.ResolveHead()
	if err != nil {
		t.Fatalf("ResolveHead after update: %v", err)
	}
	if got != h2 {
		t.Errorf("ResolveHead after update: got %s, want %s", got, h2)
	}
}

func TestHeadDetachedVsAttached(t *testing.T) {
	s := testStore(t)
	if err := s.SetHeadSymbolic("refs/heads/main"); err != nil {
		t.Fatalf("SetHeadSymbolic: %v", err)
	}
	head, err := s.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if !head.IsSymbolic() || head.Target != "refs/heads/main" {
		t.Errorf("attached head: %+v", head)
	}

	h := testHash("detached")
	if err := s.SetHeadDetached(h); err != nil {
		t.Fatalf("SetHeadDetached: %v", err)
	}
	head, err = s.Head()
	if err != nil {
		t.Fatalf("Head: %v", err)
	}
	if head.IsSymbolic() || head.Hash != h {
		t.Errorf("detached head: %+v", head)
	}
}

func TestResolveBrokenChain(t *testing.T) {
	s := testStore(t)
	if err := s.WriteSymbolic("HEAD", "refs/heads/gone"); err != nil {
		t.Fatalf("WriteSymbolic: %v", err)
	}
	if _, err := s.ResolveHead(); !errors.Is(err, ErrBrokenSymbolicRef) {
		t.Errorf("got %v, want ErrBrokenSymbolicRef", err)
	}
}

func TestResolveChainWithinBound(t *testing.T) {
	s := testStore(t)
	h := testHash("deep")
	if err := s.Write("refs/heads/final", h); err != nil {
		t.Fatalf("Write: %v", err)
	}
	prev := "refs/heads/final"
	for i := 0; i < maxSymbolicHops; i++ {
		name := fmt.Sprintf("refs/sym/%d", i)
		if err := s.WriteSymbolic(name, prev); err != nil {
			t.Fatalf("WriteSymbolic %s: %v", name, err)
		}
		prev = name
	}

	got, err := s.Resolve(prev)
	if err != nil {
		t.Fatalf("Resolve deep chain: %v", err)
	}
	if got != h {
		t.Errorf("got %s, want %s", got, h)
	}
}

func TestResolveCycleFails(t *testing.T) {
	s := testStore(t)
	if err := s.WriteSymbolic("refs/sym/a", "refs/sym/b"); err != nil {
		t.Fatalf("WriteSymbolic: %v", err)
	}
	if err := s.WriteSymbolic("refs/sym/b", "refs/sym/a"); err != nil {
		t.Fatalf("WriteSymbolic: %v", err)
	}
	if _, err := s.Resolve("refs/sym/a"); !errors.Is(err, ErrBrokenSymbolicRef) {
		t.Errorf("got %v, want ErrBrokenSymbolicRef", err)
	}
}

func TestWriteCAS(t *testing.T) {
	s := testStore(t)
	h1 := testHash("v1")
	h2 := testHash("v2")

	// Create-only succeeds on an absent name.
	if err := s.WriteCAS("refs/heads/main", h1, ""); err != nil {
		t.Fatalf("WriteCAS create: %v", err)
	}
	// Create-only fails when the name exists.
	if err := s.WriteCAS("refs/heads/main", h2, ""); !errors.Is(err, ErrCASMismatch) {
		t.Errorf("WriteCAS create on existing: got %v, want ErrCASMismatch", err)
	}
	// Swap with the right expected value succeeds.
	if err := s.WriteCAS("refs/heads/main", h2, h1); err != nil {
		t.Fatalf("WriteCAS swap: %v", err)
	}
	// Stale expected value fails and leaves the ref untouched.
	if err := s.WriteCAS("refs/heads/main", h1, h1); !errors.Is(err, ErrCASMismatch) {
		t.Errorf("WriteCAS stale: got %v, want ErrCASMismatch", err)
	}
	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got != h2 {
		t.Errorf("after failed CAS: got %s, want %s", got, h2)
	}
}

func TestWriteCASOnSymbolicFails(t *testing.T) {
	s := testStore(t)
	if err := s.WriteSymbolic("refs/heads/link", "refs/heads/main"); err != nil {
		t.Fatalf("WriteSymbolic: %v", err)
	}
	if err := s.WriteCAS("refs/heads/link", testHash("x"), ""); err == nil {
		t.Error("WriteCAS on symbolic ref succeeded")
	}
}

func TestListExcludesHead(t *testing.T) {
	s := testStore(t)
	if err := s.SetHeadSymbolic("refs/heads/main"); err != nil {
		t.Fatalf("SetHeadSymbolic: %v", err)
	}
	if err := s.Write("refs/heads/main", testHash("m")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Write("refs/tags/v1", testHash("t")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	all, err := s.List()
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("refs: got %d, want 2", len(all))
	}
	if all[0].Name != "refs/heads/main" || all[1].Name != "refs/tags/v1" {
		t.Errorf("names: %s, %s", all[0].Name, all[1].Name)
	}
}

func TestRemove(t *testing.T) {
	s := testStore(t)
	if err := s.Write("refs/heads/dev", testHash("d")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := s.Remove("refs/heads/dev"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if s.Exists("refs/heads/dev") {
		t.Error("ref still exists after Remove")
	}
	if err := s.Remove("refs/heads/dev"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Remove absent: got %v, want ErrNotFound", err)
	}
}

func TestInvalidRefName(t *testing.T) {
	s := testStore(t)
	if err := s.Write("refs/../escape", testHash("x")); err == nil {
		t.Error("Write with .. in name succeeded")
	}
}

func TestConcurrentCASSingleWinner(t *testing.T) {
	const writers = 16
	s := testStore(t)
	base := testHash("base")
	if err := s.Write("refs/heads/main", base); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var wg sync.WaitGroup
	var wins atomic.Int32
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := s.WriteCAS("refs/heads/main", testHash(fmt.Sprintf("tip%d", i)), base)
			if err == nil {
				wins.Add(1)
				return
			}
			if !errors.Is(err, ErrCASMismatch) {
				t.Errorf("writer %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("CAS winners: got %d, want 1", wins.Load())
	}
	got, err := s.Resolve("refs/heads/main")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if got == base {
		t.Error("ref still at old value after a successful CAS")
	}
}
