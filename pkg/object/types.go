// Package object implements the content-addressed object store: hashing,
// the canonical object codec, loose object storage, and the pack subsystem.
package object

// Hash is a 64-character hex-encoded SHA-256 digest of an object's
// canonical envelope.
type Hash string

// ObjectType identifies the kind of object stored.
type ObjectType string

const (
	TypeBlob   ObjectType = "blob"
	TypeTree   ObjectType = "tree"
	TypeCommit ObjectType = "commit"
	TypeTag    ObjectType = "tag"
)

const (
	// Tree mode constants compatible with Git's canonical mode strings.
	TreeModeDir        = "40000"
	TreeModeFile       = "100644"
	TreeModeExecutable = "100755"
)

// Blob holds raw file data.
type Blob struct {
	Data []byte
}

// TreeEntry is one entry in a tree object. For mode TreeModeDir the hash
// names a subtree; for file modes it names a blob. Children are referenced
// by hash only, so the object graph is an acyclic content-addressed DAG.
type TreeEntry struct {
	Name string
	Mode string
	Hash Hash
}

// IsDir reports whether the entry names a subtree.
func (e TreeEntry) IsDir() bool {
	return e.Mode == TreeModeDir
}

// TreeObj holds a list of tree entries, sorted by Name in canonical form.
type TreeObj struct {
	Entries []TreeEntry
}

// CommitObj represents a commit pointing to a tree with metadata.
type CommitObj struct {
	TreeHash      Hash
	Parents       []Hash
	Author        string
	AuthorTime    int64
	Committer     string
	CommitterTime int64
	Signature     string
	Message       string
}

// TagObj is an annotated tag pointing at another object.
type TagObj struct {
	TargetHash Hash
	TargetKind ObjectType
	Name       string
	Tagger     string
	TagTime    int64
	Message    string
}

// IsValidType reports whether t is one of the four storable object kinds.
func IsValidType(t ObjectType) bool {
	switch t {
	case TypeBlob, TypeTree, TypeCommit, TypeTag:
		return true
	default:
		return false
	}
}
