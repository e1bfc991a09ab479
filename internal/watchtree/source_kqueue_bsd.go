//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package watchtree

import (
	"fmt"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// kqueueMaxWatches is the built-in ceiling used when kern.maxfiles cannot
// be read.
const kqueueMaxWatches = 1000000

const vnodeFflags = unix.NOTE_DELETE | unix.NOTE_WRITE | unix.NOTE_RENAME |
	unix.NOTE_EXTEND | unix.NOTE_ATTRIB | unix.NOTE_REVOKE | unix.NOTE_LINK

// kqueueSource implements Source on the per-descriptor vnode-event model:
// each watched object must be opened separately, and directory-child
// creation/deletion is inferred by rescanning after a write to the
// directory's own descriptor is reported. This adapter is a direct port,
// in spirit, of original_source/inotify.c — JetBrains' kqueue-based
// watcher for FreeBSD and Darwin.
type kqueueSource struct {
	kq           int
	maxWatches   int
	limitReached atomic.Bool // read from the metrics GaugeFunc on another goroutine
	buf          []unix.Kevent_t
}

// NewKqueueSource returns a Source backed by BSD/Darwin kqueue.
func NewKqueueSource() Source {
	return &kqueueSource{buf: make([]unix.Kevent_t, 256)}
}

// NewPlatformSource returns the Source implementation for this platform.
func NewPlatformSource() Source { return NewKqueueSource() }

func (s *kqueueSource) Init() error {
	kq, err := unix.Kqueue()
	if err != nil {
		return fmt.Errorf("kqueue: %w", err)
	}
	s.kq = kq
	s.maxWatches = readMaxFiles()
	return nil
}

func readMaxFiles() int {
	n, err := unix.SysctlUint32("kern.maxfiles")
	if err != nil || n == 0 {
		return kqueueMaxWatches
	}
	return int(n)
}

func (s *kqueueSource) MaxWatches() int       { return s.maxWatches }
func (s *kqueueSource) LimitReached() bool    { return s.limitReached.Load() }
func (s *kqueueSource) RegistersLeaves() bool { return true }

// Register opens path read-only and registers the resulting descriptor for
// the union of vnode notifications.
func (s *kqueueSource) Register(path string, isDir bool) (Handle, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_NONBLOCK, 0)
	if err != nil {
		switch err {
		case unix.EACCES, unix.ENOENT, unix.ENOTDIR, unix.EPERM:
			return 0, fmt.Errorf("open %q: %w", path, ErrContinue)
		case unix.EMFILE, unix.ENFILE:
			s.limitReached.Store(true)
			return 0, fmt.Errorf("open %q: %w", path, ErrContinue)
		default:
			l.Warnf("open %q: %v", path, err)
			return 0, fmt.Errorf("open %q: %w", path, ErrContinue)
		}
	}

	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_ADD | unix.EV_CLEAR,
		Fflags: vnodeFflags,
	}
	if _, err := unix.Kevent(s.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		unix.Close(fd)
		return 0, fmt.Errorf("kevent EV_ADD %q: %w", path, ErrContinue)
	}
	return Handle(fd), nil
}

// Unregister removes the vnode filter and then closes the descriptor, in
// that order.
func (s *kqueueSource) Unregister(h Handle) {
	fd := int(h)
	ev := unix.Kevent_t{
		Ident:  uint64(fd),
		Filter: unix.EVFILT_VNODE,
		Flags:  unix.EV_DELETE,
	}
	if _, err := unix.Kevent(s.kq, []unix.Kevent_t{ev}, nil, nil); err != nil {
		l.Debugf("kevent EV_DELETE %d: %v", fd, err)
	}
	if err := unix.Close(fd); err != nil {
		l.Debugf("close %d: %v", fd, err)
	}
}

func (s *kqueueSource) Close() error {
	return unix.Close(s.kq)
}

// Poll blocks on a single kevent(2) call with no timeout and returns every
// event it supplies in that call, coalesced one RawEvent per vnode: a
// single kevent can set more than one fflag bit, and this adapter emits
// one logical event per kevent rather than one per bit.
func (s *kqueueSource) Poll() ([]RawEvent, error) {
	n, err := unix.Kevent(s.kq, nil, s.buf, nil)
	if err != nil {
		if err == unix.EINTR {
			return nil, nil
		}
		return nil, fmt.Errorf("kevent: %w", err)
	}

	out := make([]RawEvent, 0, n)
	for i := 0; i < n; i++ {
		ev := s.buf[i]
		h := Handle(ev.Ident)
		fflags := ev.Fflags

		switch {
		case fflags&(unix.NOTE_DELETE|unix.NOTE_REVOKE|unix.NOTE_RENAME) != 0:
			// The vnode event reports only "rename" on the renamed
			// object, not source/target paths; treated as a removal.
			out = append(out, RawEvent{Kind: SelfGone, Handle: h, RawMask: uint32(fflags)})
		case fflags&(unix.NOTE_WRITE|unix.NOTE_EXTEND) != 0:
			out = append(out, RawEvent{Kind: SelfChanged, Handle: h, RawMask: uint32(fflags)})
		case fflags&unix.NOTE_ATTRIB != 0:
			out = append(out, RawEvent{Kind: AttrChanged, Handle: h, RawMask: uint32(fflags)})
		}
	}
	return out, nil
}
