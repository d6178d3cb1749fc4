package repo

import (
	"reflect"
	"testing"

	"github.com/gritvcs/grit/pkg/object"
)

func TestAnnotatedTagRoundTrip(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, err := r.Refs.ResolveHead()
	if err != nil {
		t.Fatalf("ResolveHead: %v", err)
	}

	tagHash, err := r.CreateTag("v1.0.0", tip, "Tester <t@example.com>", "first release")
	if err != nil {
		t.Fatalf("CreateTag: %v", err)
	}

	tagObj, target, err := r.ReadTag("v1.0.0")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tagObj == nil {
		t.Fatal("annotated tag returned nil tag object")
	}
	if target != tip {
		t.Errorf("target: got %s, want %s", target, tip)
	}
	if tagObj.TargetKind != object.TypeCommit {
		t.Errorf("target kind: got %q, want commit", tagObj.TargetKind)
	}
	if tagObj.Message != "first release" {
		t.Errorf("message: got %q", tagObj.Message)
	}

	// The ref points at the tag object, not the commit.
	refTarget, err := r.Refs.Resolve("refs/tags/v1.0.0")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if refTarget != tagHash {
		t.Errorf("ref: got %s, want tag object %s", refTarget, tagHash)
	}
}

func TestLightweightTag(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, _ := r.Refs.ResolveHead()

	if err := r.CreateLightweightTag("snapshot", tip); err != nil {
		t.Fatalf("CreateLightweightTag: %v", err)
	}
	tagObj, target, err := r.ReadTag("snapshot")
	if err != nil {
		t.Fatalf("ReadTag: %v", err)
	}
	if tagObj != nil {
		t.Error("lightweight tag returned a tag object")
	}
	if target != tip {
		t.Errorf("target: got %s, want %s", target, tip)
	}
}

func TestTagDuplicateAndDelete(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, _ := r.Refs.ResolveHead()

	if err := r.CreateLightweightTag("v1", tip); err != nil {
		t.Fatalf("CreateLightweightTag: %v", err)
	}
	if err := r.CreateLightweightTag("v1", tip); err == nil {
		t.Error("duplicate tag succeeded")
	}
	if _, err := r.CreateTag("v1", tip, "Tester", "m"); err == nil {
		t.Error("annotated tag over existing name succeeded")
	}

	if err := r.DeleteTag("v1"); err != nil {
		t.Fatalf("DeleteTag: %v", err)
	}
	if err := r.DeleteTag("v1"); err == nil {
		t.Error("deleting absent tag succeeded")
	}
}

func TestListTags(t *testing.T) {
	r := initTestRepo(t)
	stageAndCommit(t, r, "c1", map[string]string{"a.txt": "A"})
	tip, _ := r.Refs.ResolveHead()

	for _, name := range []string{"v2", "v1", "nightly"} {
		if err := r.CreateLightweightTag(name, tip); err != nil {
			t.Fatalf("CreateLightweightTag(%s): %v", name, err)
		}
	}
	tags, err := r.ListTags()
	if err != nil {
		t.Fatalf("ListTags: %v", err)
	}
	if !reflect.DeepEqual(tags, []string{"nightly", "v1", "v2"}) {
		t.Errorf("tags: got %v", tags)
	}
}
