package watchtree

import (
	"testing"

	"fswatchd/internal/ignore"
)

func TestRegistryAddGetRemove(t *testing.T) {
	r := NewRegistry()
	node := &WatchNode{Name: "/home/user/project", Handle: 5, IsDir: true}
	root := &Root{Path: node.Name, IgnoreList: ignore.New(nil), Node: node}

	r.Add(root)
	if got := r.Get(5); got != root {
		t.Fatalf("Get(5) = %v, want %v", got, root)
	}
	if got := r.ExistingChild(node.Name); got != node {
		t.Fatalf("ExistingChild did not find the root's node")
	}
	if len(r.All()) != 1 {
		t.Fatalf("All() len = %d, want 1", len(r.All()))
	}

	r.Remove(5)
	if got := r.Get(5); got != nil {
		t.Fatalf("Get(5) after Remove = %v, want nil", got)
	}
	if len(r.All()) != 0 {
		t.Fatalf("All() after Remove len = %d, want 0", len(r.All()))
	}
}

func TestRegistryExistingChildMissesUnknownPath(t *testing.T) {
	r := NewRegistry()
	node := &WatchNode{Name: "/home/user/project", Handle: 1, IsDir: true}
	r.Add(&Root{Path: node.Name, Node: node})

	if got := r.ExistingChild("/home/user/other"); got != nil {
		t.Fatalf("ExistingChild matched an unrelated path: %v", got)
	}
}

func TestRegistryAllReturnsACopy(t *testing.T) {
	r := NewRegistry()
	node := &WatchNode{Name: "/a", Handle: 1}
	r.Add(&Root{Path: node.Name, Node: node})

	snapshot := r.All()
	r.Add(&Root{Path: "/b", Node: &WatchNode{Name: "/b", Handle: 2}})

	if len(snapshot) != 1 {
		t.Fatalf("mutating the registry after All() retroactively changed the snapshot: len = %d", len(snapshot))
	}
}
