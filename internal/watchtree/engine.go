package watchtree

import (
	"context"
	"fmt"
	"io"
)

// Callback is invoked by the dispatcher after any structural handling of a
// RawEvent, with the user-visible path affected and the kernel-native mask
// that produced the event. Formatting CHANGE/STATS/MESSAGE records from
// this is the controlling process's job; fswatchd supplies one in
// internal/protocol.
type Callback func(path string, rawMask uint32)

// Engine owns every piece of mutable state the watch-tree needs: the node
// store, the root registry, the kernel event channel (Source), and the
// callback pointer. Bundling that state into one object rather than a set
// of package globals lets it be driven from a single goroutine safely:
// because it is only ever touched from the Run goroutine, no locking is
// required on the node tree or the registry.
type Engine struct {
	source   Source
	store    *Store
	roots    *Registry
	out      io.Writer
	callback Callback
	metrics  *Metrics
}

// NewEngine constructs an Engine around source, writing CREATE records to
// out and invoking cb for every other user-visible change.
func NewEngine(source Source, out io.Writer, cb Callback) (*Engine, error) {
	if err := source.Init(); err != nil {
		return nil, fmt.Errorf("watchtree: init event source: %w", err)
	}
	return &Engine{
		source:   source,
		store:    NewStore(source.MaxWatches()),
		roots:    NewRegistry(),
		out:      out,
		callback: cb,
		metrics:  newMetrics(),
	}, nil
}

// StoreLen reports the number of live registrations, for tests and for the
// STATS record.
func (e *Engine) StoreLen() int { return e.store.Len() }

// LimitReached reports the adapter's one-way quota-exhaustion signal.
func (e *Engine) LimitReached() bool { return e.source.LimitReached() }

// Roots returns every currently watched root.
func (e *Engine) Roots() []*Root { return e.roots.All() }

// Metrics exposes the engine's Prometheus collectors for registration by
// the caller's registry.
func (e *Engine) Metrics() *Metrics { return e.metrics }

// Run is the engine's single thread of control: it alternates between
// draining the kernel event channel and servicing commands handed to it
// over cmds, running each to completion before considering the other, and
// returns when ctx is cancelled or the kernel channel fails fatally.
//
// Go has no direct equivalent of select(2) over two raw file descriptors,
// so the two sources are adapted into channels by dedicated feeder
// goroutines: pollEvents drains Source.Poll() in a loop, and the caller is
// expected to feed cmds from its own command-reading goroutine. Because
// each feeder blocks on its own I/O and Run fully processes one batch
// before looping, whichever is ready is serviced to completion before the
// other is considered.
func (e *Engine) Run(ctx context.Context, cmds <-chan Command) error {
	events := make(chan pollResult)
	pollCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go e.pollEvents(pollCtx, events)

	for {
		select {
		case <-ctx.Done():
			return nil
		case res := <-events:
			if res.err != nil {
				return fmt.Errorf("watchtree: fatal event source error: %w", res.err)
			}
			for _, ev := range res.events {
				e.dispatch(ev)
			}
		case cmd, ok := <-cmds:
			if !ok {
				return nil
			}
			e.handle(cmd)
		}
	}
}

type pollResult struct {
	events []RawEvent
	err    error
}

func (e *Engine) pollEvents(ctx context.Context, out chan<- pollResult) {
	for {
		evs, err := e.source.Poll()
		select {
		case out <- pollResult{events: evs, err: err}:
		case <-ctx.Done():
			return
		}
		if err != nil {
			return
		}
	}
}

// Close releases the event source. It does not attempt graceful per-root
// teardown: on fatal shutdown the OS reclaims descriptors.
func (e *Engine) Close() error {
	return e.source.Close()
}
