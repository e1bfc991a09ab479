// Copyright (C) 2016 The Syncthing Authors.
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at https://mozilla.org/MPL/2.0/.

// Package suturewrap adapts plain context-taking functions to
// github.com/thejerf/suture/v4's Service interface and distinguishes a
// fatal service error (one that should bring the whole daemon down) from
// an ordinary one the supervisor should simply restart, the way the
// teacher's lib/suturewrap does for suture v1's older Service contract.
package suturewrap

import (
	"context"

	"github.com/thejerf/suture/v4"
)

// FatalErr marks a service error that must stop the supervisor rather than
// trigger suture's normal restart-with-backoff behavior — used for a fatal
// kernel event-channel failure, where close and process exit without
// graceful per-root teardown is the only sound response.
type FatalErr struct {
	Err    error
	Status ExitStatus
}

func (e *FatalErr) Error() string { return e.Err.Error() }
func (e *FatalErr) Unwrap() error { return e.Err }

// ExitStatus is the process exit code a FatalErr should produce.
type ExitStatus int

const (
	ExitSuccess ExitStatus = 0
	ExitError   ExitStatus = 1
)

func (s ExitStatus) AsInt() int { return int(s) }

// ServiceFunc adapts fn to suture/v4's Service interface.
type ServiceFunc func(ctx context.Context) error

func (f ServiceFunc) Serve(ctx context.Context) error { return f(ctx) }

// AsService wraps fn, matching the call site the teacher exposes
// (suturewrap.AsService(fn, creator)); creator is kept only for log
// messages identifying which goroutine reported an error.
//
// suture.ErrDoNotRestart and suture.ErrTerminateSupervisorTree are passed
// through unwrapped: suture recognizes them by identity, and wrapping
// either in namedErr would turn a deliberate restart/shutdown signal into
// an ordinary error the supervisor retries.
func AsService(fn func(ctx context.Context) error, creator string) ServiceFunc {
	return func(ctx context.Context) error {
		err := fn(ctx)
		switch err {
		case nil, suture.ErrDoNotRestart, suture.ErrTerminateSupervisorTree:
			return err
		default:
			return &namedErr{creator: creator, err: err}
		}
	}
}

type namedErr struct {
	creator string
	err     error
}

func (e *namedErr) Error() string { return e.creator + ": " + e.err.Error() }
func (e *namedErr) Unwrap() error { return e.err }
