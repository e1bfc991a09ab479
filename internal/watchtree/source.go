package watchtree

// Handle identifies a live kernel watch registration. Its concrete meaning
// (an inotify watch descriptor, or a kqueue-registered file descriptor) is
// owned entirely by the Source implementation; the engine treats it as an
// opaque key.
type Handle int

// RawKind enumerates the normalized event vocabulary a Source produces,
// independent of which kernel model produced the underlying event.
type RawKind int

const (
	// ChildCreated reports that a new child was created inside a watched
	// directory. Only emitted by the inode-event model, which receives
	// the child's basename directly from the kernel.
	ChildCreated RawKind = iota
	// ChildRemoved reports that a child was deleted or renamed away from
	// a watched directory. Inode-event model only.
	ChildRemoved
	// SelfChanged reports a content change. With ChildName empty it
	// concerns the watched object itself (the dispatcher rewalks it if it
	// is a directory); with ChildName set it names the child file whose
	// content changed, which has no structural effect.
	SelfChanged
	// SelfGone reports that the watched object itself was deleted,
	// renamed away, or revoked.
	SelfGone
	// AttrChanged reports a metadata-only change with no structural
	// effect on the tree.
	AttrChanged
	// Overflow reports that the kernel's event queue overflowed; events
	// may have been lost.
	Overflow
)

func (k RawKind) String() string {
	switch k {
	case ChildCreated:
		return "ChildCreated"
	case ChildRemoved:
		return "ChildRemoved"
	case SelfChanged:
		return "SelfChanged"
	case SelfGone:
		return "SelfGone"
	case AttrChanged:
		return "AttrChanged"
	case Overflow:
		return "Overflow"
	default:
		return "Unknown"
	}
}

// RawEvent is the normalized shape produced by a Source's Poll, regardless
// of which kernel model is behind it.
type RawEvent struct {
	Kind          RawKind
	Handle        Handle // zero value (and Overflow) carry no handle
	ChildName     string // set for ChildCreated / ChildRemoved, and for a SelfChanged naming a child
	ChildIsDir    bool   // set only for ChildCreated
	RawMask       uint32 // kernel-native mask, passed through to the dispatch callback
}

// Source abstracts the two kernel event models behind one operation set so
// the tree walker and dispatcher never branch on which Source is in use.
type Source interface {
	// Init opens the kernel event channel and sizes internal buffers. On
	// the inode-event model it also reads the administrator-configured
	// watch quota and stores it for LimitReached/MaxWatches.
	Init() error

	// Register asks the kernel to watch path for content change,
	// metadata change, child creation/deletion, self-deletion, move-in,
	// move-out and self-move. isDir tells the adapter whether to use the
	// directory or leaf registration strategy for the vnode model.
	//
	// Returns ErrContinue on a transient per-path failure (permission,
	// missing, descriptor exhaustion) and ErrAbort on fatal channel
	// failure.
	Register(path string, isDir bool) (Handle, error)

	// Unregister removes the kernel watch for h. Failures are logged by
	// the implementation and never propagated.
	Unregister(h Handle)

	// Poll blocks until at least one event is available and returns
	// every event the kernel supplies in that one call.
	Poll() ([]RawEvent, error)

	// LimitReached reports whether the global watch quota has ever been
	// exhausted. One-way: once true, it never resets.
	LimitReached() bool

	// MaxWatches reports the configured maximum number of live
	// registrations, used to pre-size the Store.
	MaxWatches() int

	// RegistersLeaves reports whether the walker must register
	// individual leaf (non-directory) watches. True for the vnode model,
	// where child-file modification is only observable by watching the
	// file itself; false for the inode model, where the parent
	// directory's watch already reports child events.
	RegistersLeaves() bool

	// Close releases the kernel event channel.
	Close() error
}
