package repo

import (
	"reflect"
	"testing"
)

func TestCreateAndListBranches(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, err := r.Refs.ResolveHead()
	if err != nil {
		t.Fatalf("ResolveHead: %v", err)
	}

	if err := r.CreateBranch("feature", tip); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.CreateBranch("feature", tip); err == nil {
		t.Error("duplicate CreateBranch succeeded")
	}

	branches, err := r.ListBranches()
	if err != nil {
		t.Fatalf("ListBranches: %v", err)
	}
	if !reflect.DeepEqual(branches, []string{"feature", "main"}) {
		t.Errorf("branches: got %v", branches)
	}

	current, err := r.CurrentBranch()
	if err != nil {
		t.Fatalf("CurrentBranch: %v", err)
	}
	if current != "main" {
		t.Errorf("current: got %q, want main", current)
	}
}

func TestDeleteBranch(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, _ := r.Refs.ResolveHead()

	if err := r.CreateBranch("feature", tip); err != nil {
		t.Fatalf("CreateBranch: %v", err)
	}
	if err := r.DeleteBranch("feature"); err != nil {
		t.Fatalf("DeleteBranch: %v", err)
	}
	if err := r.DeleteBranch("feature"); err == nil {
		t.Error("deleting absent branch succeeded")
	}
	if err := r.DeleteBranch("main"); err == nil {
		t.Error("deleting current branch succeeded")
	}
}
