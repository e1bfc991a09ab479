package watchtree

import "fswatchd/internal/ignore"

// Root is a user-requested subtree: its path, the ignore rules scoped to
// it, and the WatchNode created for it (or for its containing file, if
// Path denotes a regular file).
type Root struct {
	Path       string
	IgnoreList *ignore.List
	Node       *WatchNode
}

// Registry holds the user-supplied roots and provides the entry points the
// dispatcher walks up to when resolving event paths, and the root-duplicate
// check the walker consults when registering a path with no parent node.
type Registry struct {
	byHandle map[Handle]*Root
	roots    []*Root
}

// NewRegistry returns an empty root registry.
func NewRegistry() *Registry {
	return &Registry{byHandle: make(map[Handle]*Root)}
}

// Add records a newly created root under its node's handle.
func (r *Registry) Add(root *Root) {
	r.byHandle[root.Node.Handle] = root
	r.roots = append(r.roots, root)
}

// Remove drops the root registered under h, if any.
func (r *Registry) Remove(h Handle) {
	delete(r.byHandle, h)
	for i, root := range r.roots {
		if root.Node != nil && root.Node.Handle == h {
			r.roots = append(r.roots[:i], r.roots[i+1:]...)
			return
		}
	}
}

// Get returns the root registered under h, or nil.
func (r *Registry) Get(h Handle) *Root {
	return r.byHandle[h]
}

// ExistingChild returns a root whose Node.Name equals name, used by the
// walker's dedup check when there is no parent node to consult (i.e. name
// is itself being considered as a new root).
func (r *Registry) ExistingChild(name string) *WatchNode {
	for _, root := range r.roots {
		if root.Node != nil && root.Node.Name == name {
			return root.Node
		}
	}
	return nil
}

// All returns every currently registered root.
func (r *Registry) All() []*Root {
	out := make([]*Root, len(r.roots))
	copy(out, r.roots)
	return out
}
