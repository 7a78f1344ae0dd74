package opsched

import "errors"

// Error taxonomy. See SPEC_FULL.md §7.
var (
	// ErrInvalidArgument is returned for a non-positive ceiling, a nil
	// body, or other malformed construction.
	ErrInvalidArgument = errors.New("opsched: invalid argument")

	// ErrShutdownInProgress is returned by Submit* once Shutdown has been
	// called. Chosen resolution of spec.md §9's open question: rejected
	// at the call site rather than silently returning a terminated handle.
	ErrShutdownInProgress = errors.New("opsched: shutdown in progress")

	// ErrOperationCancelled is surfaced by Handle.Wait (and wraps the
	// terminal error of a cancelled operation's Event stream) when the
	// cancel signal fired before or during execution.
	ErrOperationCancelled = errors.New("opsched: operation cancelled")
)
