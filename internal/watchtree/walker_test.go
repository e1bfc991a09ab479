package watchtree

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"fswatchd/internal/ignore"
)

// TestWalkSkipsIgnoredPath covers ErrIgnore on a rule match: walk must
// report ErrIgnore and the walker's caller (Watch) must surface it directly,
// never registering anything.
func TestWalkSkipsIgnoredPath(t *testing.T) {
	root := t.TempDir()
	e, fs, _ := newTestEngine(t)
	ignoreList := ignore.New([]string{root})

	_, err := e.walk(root, nil, ignoreList, false)
	if !errors.Is(err, ErrIgnore) {
		t.Fatalf("walk = %v, want ErrIgnore", err)
	}
	if fs.count() != 0 {
		t.Errorf("ignored path was registered")
	}
}

// TestWalkTreatsPermissionDeniedAsIgnore covers the os.IsPermission branch:
// a denied stat is a structural skip, not a transient failure.
func TestWalkTreatsPermissionDeniedAsIgnore(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("permission checks are not enforced for root")
	}
	root := t.TempDir()
	blocked := filepath.Join(root, "blocked")
	mustMkdir(t, blocked)
	if err := os.Chmod(blocked, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	defer os.Chmod(blocked, 0o755)

	target := filepath.Join(blocked, "inner")
	e, _, _ := newTestEngine(t)
	_, err := e.walk(target, nil, ignore.New(nil), false)
	if !errors.Is(err, ErrIgnore) {
		t.Fatalf("walk = %v, want ErrIgnore", err)
	}
}

// TestWalkContinuesPastStoreExhaustion covers the Store.Put-at-capacity
// branch in walk: a per-path registration that cannot fit in the Store is
// reported as ErrContinue, the kernel registration is rolled back, and
// sibling subtrees are still visited.
func TestWalkContinuesPastStoreExhaustion(t *testing.T) {
	root := mkTree(t)
	e, fs, _ := newTestEngine(t)
	e.store = NewStore(1) // force the very first child registration to overflow

	_, err := e.Watch(root, nil)
	if err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if got, want := e.StoreLen(), 1; got != want {
		t.Fatalf("StoreLen = %d, want %d (capped by the forced Store size)", got, want)
	}
	if fs.count() != 1 {
		t.Errorf("fakeSource has %d live registrations, want 1 (rollback on Store overflow)", fs.count())
	}
}

// TestWalkRollsBackOnSourceAbort covers the ErrAbort propagation path: a
// fatal Register failure on one child must unwind the partial subtree,
// unregistering what had already been registered under it.
func TestWalkRollsBackOnSourceAbort(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	mustMkdir(t, sub)
	mustMkdir(t, filepath.Join(sub, "deeper"))
	e, fs, _ := newTestEngine(t)
	fs.abortPaths[filepath.Join(sub, "deeper")] = true

	_, err := e.walk(root, nil, ignore.New(nil), false)
	if !errors.Is(err, ErrAbort) {
		t.Fatalf("walk = %v, want ErrAbort", err)
	}
	if fs.count() != 0 {
		t.Errorf("fakeSource has %d live registrations after an aborted walk, want 0", fs.count())
	}
}

// TestWalkSkipsContinuePathButKeepsSiblings covers the ErrContinue branch: a
// denied registration on one subdirectory must not prevent its sibling from
// being registered — the current subtree aborts, others continue.
func TestWalkSkipsContinuePathButKeepsSiblings(t *testing.T) {
	root := t.TempDir()
	bad := filepath.Join(root, "bad")
	good := filepath.Join(root, "good")
	mustMkdir(t, bad)
	mustMkdir(t, good)
	e, fs, _ := newTestEngine(t)
	fs.denyPaths[bad] = true

	h, err := e.walk(root, nil, ignore.New(nil), false)
	if err != nil {
		t.Fatalf("walk: %v", err)
	}
	if fs.isRegistered(bad) {
		t.Errorf("bad was registered despite denyPaths")
	}
	if !fs.isRegistered(good) {
		t.Errorf("good was not registered")
	}
	if h == 0 {
		t.Errorf("root handle is zero")
	}
}

// TestWalkDedupsRepeatedChild covers the mandatory dedup check: calling
// walk twice on the same child path under the same parent must return the
// same handle without creating a second registration.
func TestWalkDedupsRepeatedChild(t *testing.T) {
	root := t.TempDir()
	sub := filepath.Join(root, "sub")
	mustMkdir(t, sub)
	e, fs, _ := newTestEngine(t)

	rootHandle, err := e.walk(root, nil, ignore.New(nil), false)
	if err != nil {
		t.Fatalf("walk root: %v", err)
	}
	rootNode := e.store.Get(rootHandle)

	h1, err := e.walk(sub, rootNode, ignore.New(nil), false)
	if err != nil {
		t.Fatalf("walk sub (1st): %v", err)
	}
	before := fs.count()

	h2, err := e.walk(sub, rootNode, ignore.New(nil), false)
	if err != nil {
		t.Fatalf("walk sub (2nd): %v", err)
	}
	if h1 != h2 {
		t.Errorf("dedup returned a different handle: %v vs %v", h1, h2)
	}
	if fs.count() != before {
		t.Errorf("fakeSource registration count changed on a deduped walk: %d -> %d", before, fs.count())
	}
}

// TestWalkFollowsSymlinkedDirectory covers symlink handling: a symlink to a
// directory is walked as a directory, not skipped as a leaf.
func TestWalkFollowsSymlinkedDirectory(t *testing.T) {
	root := t.TempDir()
	real := filepath.Join(root, "real")
	mustMkdir(t, real)
	mustWrite(t, filepath.Join(real, "f.txt"), "x")
	link := filepath.Join(root, "link")
	if err := os.Symlink(real, link); err != nil {
		t.Fatalf("symlink: %v", err)
	}

	e, fs, _ := newTestEngine(t)
	if _, err := e.walk(root, nil, ignore.New(nil), false); err != nil {
		t.Fatalf("walk: %v", err)
	}
	if !fs.isRegistered(link) {
		t.Errorf("symlinked directory was not registered as a directory")
	}
}

func TestAsContinueUnwrapsWrappedError(t *testing.T) {
	wrapped := errContinueWrap("x")
	if _, ok := asContinue(wrapped); !ok {
		t.Errorf("asContinue did not see through the wrap")
	}
	if _, ok := asContinue(ErrAbort); ok {
		t.Errorf("asContinue matched an unrelated sentinel")
	}
}

func errContinueWrap(path string) error {
	return &wrappedErr{msg: "watchtree: " + path, err: ErrContinue}
}

type wrappedErr struct {
	msg string
	err error
}

func (w *wrappedErr) Error() string { return w.msg }
func (w *wrappedErr) Unwrap() error { return w.err }
