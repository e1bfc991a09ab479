package watchtree

import "sync"

// fakeSource is an in-memory Source used by the engine's test suite, in
// the spirit of google-mtail's watcher/fake_watcher.go: it never touches
// the kernel, so tests exercise the walker and dispatcher's own logic
// directly.
type fakeSource struct {
	mu           sync.Mutex
	nextHandle   Handle
	registered   map[Handle]string
	denyPaths    map[string]bool // paths that fail Register with ErrContinue
	abortPaths   map[string]bool // paths that fail Register with ErrAbort
	max          int
	limitReached bool
	leaves       bool
	queue        []RawEvent
	closed       bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		registered: make(map[Handle]string),
		denyPaths:  make(map[string]bool),
		abortPaths: make(map[string]bool),
		max:        1000,
	}
}

func (f *fakeSource) Init() error { return nil }

func (f *fakeSource) Register(path string, isDir bool) (Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abortPaths[path] {
		return 0, ErrAbort
	}
	if f.denyPaths[path] {
		return 0, ErrContinue
	}
	if len(f.registered) >= f.max {
		f.limitReached = true
		return 0, ErrContinue
	}
	f.nextHandle++
	h := f.nextHandle
	f.registered[h] = path
	return h, nil
}

func (f *fakeSource) Unregister(h Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registered, h)
}

func (f *fakeSource) Poll() ([]RawEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	evs := f.queue
	f.queue = nil
	return evs, nil
}

func (f *fakeSource) LimitReached() bool     { return f.limitReached }
func (f *fakeSource) MaxWatches() int        { return f.max }
func (f *fakeSource) RegistersLeaves() bool  { return f.leaves }
func (f *fakeSource) Close() error {
	f.closed = true
	return nil
}

func (f *fakeSource) push(ev RawEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queue = append(f.queue, ev)
}

func (f *fakeSource) handleFor(path string) (Handle, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for h, p := range f.registered {
		if p == path {
			return h, true
		}
	}
	return 0, false
}

func (f *fakeSource) isRegistered(path string) bool {
	_, ok := f.handleFor(path)
	return ok
}

func (f *fakeSource) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.registered)
}
