package watchtree

import "errors"

// The three error kinds the engine distinguishes internally.
var (
	// ErrIgnore marks a path as structurally unusable: ignored by rule,
	// permission denied, or not a directory where one was expected. The
	// walker silently skips it and continues with siblings.
	ErrIgnore = errors.New("watchtree: path ignored")

	// ErrContinue marks a transient per-path failure, such as a failed
	// registration due to descriptor exhaustion. The walker aborts the
	// current subtree but the caller continues with others.
	ErrContinue = errors.New("watchtree: transient registration failure")

	// ErrAbort marks a structural failure (store collision, fatal kernel
	// channel error). The walker unwinds and tears down the partial
	// subtree, and the top-level caller surfaces it and exits.
	ErrAbort = errors.New("watchtree: fatal engine failure")

	// ErrSourceUnavailable is returned by Init on platforms with no
	// Source implementation.
	ErrSourceUnavailable = errors.New("watchtree: no event source for this platform")
)
