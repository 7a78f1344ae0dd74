package opsched

import "context"

// Never is a channel that is never ready to receive. Pass it (or nil,
// which SubmitStream treats identically) as the cancel signal for an
// operation that never cancels early.
var Never <-chan struct{} = make(chan struct{})

// Stream is a pull-based sequence of values produced by an operation body.
// Next blocks until a value is available, the stream is exhausted, or err
// is non-nil; ok is false exactly once, on the call that reports
// exhaustion (successful or not). A Stream must not be read concurrently
// by more than one goroutine.
type Stream[T any] interface {
	Next() (value T, ok bool, err error)
}

// Body is the unit of work submitted to a Scheduler: given a context that
// is cancelled when the operation's cancel signal fires, produce a Stream
// of results.
type Body[T any] func(ctx context.Context) Stream[T]
