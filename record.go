package opsched

import (
	"context"
	"fmt"

	"github.com/Andrej220/opsched/pqueue"
)

// runnable is the type-erased face every record[T] presents to the
// scheduler's gate/router wiring, which cannot itself be generic (Go
// forbids type parameters on anything but the receiver of a method, and
// gate.Admitter / keyrouter.Runner are plain func values shared across
// every T ever submitted to a Scheduler).
type runnable interface {
	invoke(done func())
}

// record is the internal, per-submission state backing a Handle[T]. It is
// boxed into pqueue.Item.Value as an any and recovered via a type
// assertion to runnable at the one place (scheduler's router Run
// callback) that needs to call back into it.
type record[T any] struct {
	id     uint64
	body   Body[T]
	cancel <-chan struct{}
	handle *Handle[T]
	onDone func(err error) // recordError hook, nil-safe to call
}

func (r *record[T]) invoke(done func()) {
	defer done()

	select {
	case <-r.cancel:
		r.handle.complete(OutcomeCancelled, ErrOperationCancelled)
		if r.onDone != nil {
			r.onDone(nil)
		}
		return
	default:
	}

	ctx, cancelCtx := context.WithCancel(context.Background())

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-r.cancel:
			cancelCtx()
		case <-ctx.Done():
		}
	}()
	// finish always cancels ctx (so the watcher goroutine can exit) and
	// waits for it before returning - in both the normal and panic paths.
	finish := func(outcome Outcome, err error) {
		cancelCtx()
		<-watchDone
		r.handle.complete(outcome, err)
		if r.onDone != nil {
			r.onDone(err)
		}
	}

	// A body that panics must not leak the gate's slot or strand
	// subscribers waiting on the handle.
	defer func() {
		if rec := recover(); rec != nil {
			finish(OutcomeError, fmt.Errorf("opsched: operation panicked: %v", rec))
		}
	}()

	stream := r.body(ctx)

	// stream.Next() is pulled on its own goroutine so the consumption loop
	// below can select on r.cancel directly - a body that never inspects
	// ctx would otherwise block this loop inside Next() forever, leaving
	// the Handle (and the gate's slot) stuck open past the instant the
	// cancel signal fires. The producer is left running in the background
	// when that happens; handle.emit/complete are no-ops once terminated,
	// so a late or stuck producer cannot resurrect a finished operation.
	type result struct {
		v   T
		ok  bool
		err error
	}
	results := make(chan result)
	go func() {
		// A panic inside Next is reported as the stream's terminal error.
		defer func() {
			if rec := recover(); rec != nil {
				results <- result{err: fmt.Errorf("opsched: operation panicked: %v", rec)}
			}
		}()
		for {
			v, ok, err := stream.Next()
			results <- result{v, ok, err}
			if !ok {
				return
			}
		}
	}()

	var outcome Outcome
	var terminalErr error
consume:
	for {
		select {
		case res := <-results:
			if !res.ok {
				if res.err != nil {
					outcome, terminalErr = OutcomeError, res.err
				} else if ctx.Err() != nil {
					outcome, terminalErr = OutcomeCancelled, ErrOperationCancelled
				} else {
					outcome = OutcomeCompleted
				}
				break consume
			}
			r.handle.emit(res.v)
		case <-r.cancel:
			outcome, terminalErr = OutcomeCancelled, ErrOperationCancelled
			break consume
		}
	}

	finish(outcome, terminalErr)
}

// boxedRunnable recovers the runnable behind an admitted pqueue.Item.
func boxedRunnable(item *pqueue.Item) runnable {
	return item.Value.(runnable)
}
