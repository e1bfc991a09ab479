package watchtree

import "path/filepath"

// WatchNode is one active kernel registration. A non-root node appears in
// its parent's Children exactly once; Name is Parent.Name + "/" + basename
// modulo a trailing-slash normalization; Handle is unique across the Store;
// leaf (non-directory) nodes never have children; a node exists in the
// Store iff the engine considers its kernel registration live.
type WatchNode struct {
	Name     string
	Handle   Handle
	IsDir    bool
	Parent   *WatchNode // non-owning back-reference; nil for a root node
	Children []*WatchNode
}

// addChild appends c into the first tombstoned (nil) slot of n.Children,
// or grows the slice. Sparse slots are never compacted: event handling may
// be iterating Children concurrently with a sibling's removal, and
// compacting would shift indices out from under that iteration.
func (n *WatchNode) addChild(c *WatchNode) {
	for i, ch := range n.Children {
		if ch == nil {
			n.Children[i] = c
			return
		}
	}
	n.Children = append(n.Children, c)
}

// clearChild tombstones the slot holding c, if any.
func (n *WatchNode) clearChild(c *WatchNode) {
	for i, ch := range n.Children {
		if ch == c {
			n.Children[i] = nil
			return
		}
	}
}

// childNamed returns the live child whose Name equals name, used by the
// walker's mandatory dedup check before registering a fresh watch.
func (n *WatchNode) childNamed(name string) *WatchNode {
	for _, ch := range n.Children {
		if ch != nil && ch.Name == name {
			return ch
		}
	}
	return nil
}

// childNamedBase returns the live child whose basename equals base, used
// when dispatching a ChildRemoved event that names the child only by its
// basename relative to this node.
func (n *WatchNode) childNamedBase(base string) *WatchNode {
	for _, ch := range n.Children {
		if ch != nil && filepath.Base(ch.Name) == base {
			return ch
		}
	}
	return nil
}
