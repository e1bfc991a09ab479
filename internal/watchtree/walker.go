package watchtree

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fswatchd/internal/ignore"
	"fswatchd/internal/logger"
)

var l = logger.New("watchtree")

// walk performs recursive directory descent: it registers a node, then,
// for each non-ignored child directory (and, on the vnode model, each
// child file), recurses or registers. parent is nil when path
// is itself a root. emitCreate controls whether a successful directory
// registration is announced on the output stream with a CREATE record —
// set for rewalks triggered by directory-change events, clear for the
// initial watch() call.
func (e *Engine) walk(path string, parent *WatchNode, ignoreList *ignore.List, emitCreate bool) (Handle, error) {
	if ignoreList.Match(path) {
		return 0, ErrIgnore
	}

	fi, err := os.Stat(path)
	switch {
	case os.IsPermission(err):
		return 0, ErrIgnore
	case err != nil:
		l.Debugf("stat %q: %v", path, err)
		return 0, ErrIgnore
	}

	if !fi.IsDir() {
		if existing := e.existingChild(parent, path); existing != nil {
			return existing.Handle, nil
		}
		return e.registerLeaf(path, parent)
	}

	if existing := e.existingChild(parent, path); existing != nil {
		return existing.Handle, nil
	}

	h, err := e.source.Register(path, true)
	if err != nil {
		return 0, err
	}

	node := &WatchNode{Name: path, Handle: h, IsDir: true, Parent: parent}
	if parent != nil {
		parent.addChild(node)
	}
	if !e.store.Put(node) {
		// Store at capacity: treat as quota exhaustion for this path.
		e.source.Unregister(h)
		if parent != nil {
			parent.clearChild(node)
		}
		return 0, fmt.Errorf("watchtree: store exhausted for %q: %w", path, ErrContinue)
	}
	if emitCreate {
		e.emitCreate(path)
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		l.Debugf("readdir %q: %v", path, err)
		return h, nil
	}

	for _, entry := range entries {
		subpath := filepath.Join(path, entry.Name())
		isDir := entry.IsDir()
		if entry.Type()&os.ModeSymlink != 0 {
			if fi, serr := os.Stat(subpath); serr == nil {
				isDir = fi.IsDir()
			}
		}
		if isDir {
			if _, err := e.walk(subpath, node, ignoreList, emitCreate); err != nil && err != ErrIgnore {
				if _, ok := asContinue(err); ok {
					continue
				}
				e.rmWatch(h, false)
				return 0, err
			}
			continue
		}
		if e.source.RegistersLeaves() {
			if _, err := e.walk(subpath, node, ignoreList, emitCreate); err != nil && err != ErrIgnore {
				if _, ok := asContinue(err); ok {
					continue
				}
				e.rmWatch(h, false)
				return 0, err
			}
		}
	}

	return h, nil
}

// readDirSafe returns the basenames of path's entries, absorbing a
// vanished directory (deleted between the SelfChanged event firing and the
// rewalk running) as an empty result rather than an error.
func readDirSafe(path string) ([]string, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	names := make([]string, len(entries))
	for i, entry := range entries {
		names[i] = entry.Name()
	}
	return names, nil
}

func asContinue(err error) (error, bool) {
	if err == ErrContinue {
		return err, true
	}
	// errors wrapped with %w around ErrContinue
	for u := err; u != nil; {
		if u == ErrContinue {
			return u, true
		}
		unwrapper, ok := u.(interface{ Unwrap() error })
		if !ok {
			break
		}
		u = unwrapper.Unwrap()
	}
	return nil, false
}

func (e *Engine) registerLeaf(path string, parent *WatchNode) (Handle, error) {
	h, err := e.source.Register(path, false)
	if err != nil {
		return 0, err
	}
	node := &WatchNode{Name: path, Handle: h, IsDir: false, Parent: parent}
	if parent != nil {
		parent.addChild(node)
	}
	if !e.store.Put(node) {
		e.source.Unregister(h)
		if parent != nil {
			parent.clearChild(node)
		}
		return 0, fmt.Errorf("watchtree: store exhausted for %q: %w", path, ErrContinue)
	}
	return h, nil
}

// existingChild is the mandatory dedup check run before registering any
// path: consult parent (or the root registry if parent is nil) for an
// existing child whose Name equals path.
func (e *Engine) existingChild(parent *WatchNode, path string) *WatchNode {
	if parent != nil {
		return parent.childNamed(path)
	}
	return e.roots.ExistingChild(path)
}

// Watch canonicalizes root with realpath and walks it as a new root,
// recording it in the registry.
func (e *Engine) Watch(root string, ignoreRules []string) (Handle, error) {
	normalized, err := filepath.EvalSymlinks(root)
	if err != nil {
		normalized, err = filepath.Abs(root)
		if err != nil {
			return 0, fmt.Errorf("watchtree: resolve %q: %w", root, err)
		}
	}
	ignoreList := ignore.New(ignoreRules)
	h, err := e.walk(normalized, nil, ignoreList, false)
	if err != nil {
		return 0, err
	}
	node := e.store.Get(h)
	e.roots.Add(&Root{Path: normalized, IgnoreList: ignoreList, Node: node})
	return h, nil
}

// Unwatch tears down the root registered under h.
func (e *Engine) Unwatch(h Handle) {
	e.rmWatch(h, true)
}

// rmWatch looks up the node, recursively tears down its children, then
// unregisters its own kernel watch (children before parent, so
// a vnode-model parent close never leaves a child registration dangling in
// the Store), and — if updateParent — detach from the parent's child slot
// or the root registry.
func (e *Engine) rmWatch(h Handle, updateParent bool) {
	node := e.store.Get(h)
	if node == nil {
		return
	}
	for _, child := range node.Children {
		if child != nil {
			e.rmWatch(child.Handle, false)
		}
	}
	e.source.Unregister(h)
	if updateParent {
		if node.Parent != nil {
			node.Parent.clearChild(node)
		} else {
			e.roots.Remove(h)
		}
	}
	node.Children = nil
	e.store.Clear(h)
}

// emitCreate writes the CREATE record the core produces directly.
func (e *Engine) emitCreate(path string) {
	io.WriteString(e.out, "CREATE\n"+path+"\n")
}
