package watchtree

import (
	"path/filepath"

	"fswatchd/internal/ignore"
)

// dispatch consumes one normalized event, mutates the tree, deduplicates
// against the existing tree, and invokes the callback with the
// user-visible change.
func (e *Engine) dispatch(ev RawEvent) {
	if ev.Kind == Overflow {
		e.metrics.overflows.Inc()
		l.Warnln("kernel event queue overflow; events may have been lost")
		if e.callback != nil {
			e.callback("", ev.RawMask)
		}
		return
	}

	node := e.store.Get(ev.Handle)
	if node == nil {
		// The event concerns a watch already torn down.
		return
	}

	switch ev.Kind {
	case SelfChanged:
		if ev.ChildName != "" {
			// A specific child's content changed; no structural effect.
			e.notify(filepath.Join(node.Name, ev.ChildName), ev.RawMask)
			break
		}
		if node.IsDir {
			e.rewalk(node)
		}
		e.notify(node.Name, ev.RawMask)

	case ChildCreated:
		subpath := filepath.Join(node.Name, ev.ChildName)
		ignoreList := e.ignoreListFor(node)
		if _, err := e.walk(subpath, node, ignoreList, true); err != nil && err != ErrIgnore {
			if _, ok := asContinue(err); !ok {
				l.Warnf("walk %q after create: %v", subpath, err)
			}
		}
		e.notify(subpath, ev.RawMask)

	case ChildRemoved:
		if child := node.childNamedBase(ev.ChildName); child != nil {
			e.rmWatch(child.Handle, false)
			node.clearChild(child)
		}
		e.notify(filepath.Join(node.Name, ev.ChildName), ev.RawMask)

	case SelfGone:
		for _, child := range node.Children {
			if child != nil {
				e.rmWatch(child.Handle, false)
			}
		}
		node.Children = nil
		e.notify(node.Name, ev.RawMask)
		e.rmWatch(node.Handle, true)

	case AttrChanged:
		e.notify(node.Name, ev.RawMask)
	}
}

func (e *Engine) notify(path string, rawMask uint32) {
	e.metrics.eventsProcessed.Inc()
	if e.callback != nil {
		e.callback(path, rawMask)
	}
}

// rewalk re-descends a directory whose contents changed but whose child
// was not individually named by the kernel (SelfChanged), discovering and
// announcing any newly created children. Already-registered children are
// skipped by the walker's mandatory dedup check. It also detects children
// that vanished since the last scan — required on the vnode model, where
// child deletion is inferred purely by rescanning, and harmless on the
// inode model where ChildRemoved ordinarily beats it to the punch.
func (e *Engine) rewalk(node *WatchNode) {
	ignoreList := e.ignoreListFor(node)
	entries, err := readDirSafe(node.Name)
	if err != nil {
		l.Debugf("rewalk %q: %v", node.Name, err)
		return
	}

	seen := make(map[string]struct{}, len(entries))
	for _, name := range entries {
		seen[name] = struct{}{}
		subpath := filepath.Join(node.Name, name)
		if _, err := e.walk(subpath, node, ignoreList, true); err != nil && err != ErrIgnore {
			if _, ok := asContinue(err); !ok {
				l.Warnf("rewalk %q: %v", subpath, err)
			}
		}
	}

	for _, child := range node.Children {
		if child == nil {
			continue
		}
		if _, ok := seen[filepath.Base(child.Name)]; !ok {
			e.rmWatch(child.Handle, false)
			node.clearChild(child)
		}
	}
}

// ignoreListFor recovers the ignore rules governing node by walking up to
// its root and consulting the registry — the ignore context is otherwise
// inherited implicitly by the fact that ignored subtrees were never
// registered, except on rewalk, where fresh children must still be
// checked.
func (e *Engine) ignoreListFor(node *WatchNode) *ignore.List {
	top := node
	for top.Parent != nil {
		top = top.Parent
	}
	if root := e.roots.Get(top.Handle); root != nil {
		return root.IgnoreList
	}
	return nil
}
