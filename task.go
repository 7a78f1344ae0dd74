package opsched

import "context"

// singleStream adapts a one-shot func into a Stream[T] that emits exactly
// one value (on success) before signalling exhaustion.
type singleStream[T any] struct {
	ctx  context.Context
	fn   func(context.Context) (T, error)
	done bool
}

func (s *singleStream[T]) Next() (value T, ok bool, err error) {
	if s.done {
		var zero T
		return zero, false, nil
	}
	s.done = true
	v, err := s.fn(s.ctx)
	if err != nil {
		var zero T
		return zero, false, err
	}
	return v, true, nil
}

// SubmitTask submits a single-shot operation - the common request/response
// case - under the given priority and key. It is a thin convenience layer
// over SubmitStream for bodies that produce exactly one result instead of
// a stream of them.
//
// cancelToken is the task-style adapter's cancellation token (spec.md §6
// distinguishes submit_task's cancel_token from submit_stream's raw
// cancel_signal); context.Context is the idiomatic Go stand-in. A nil
// token never cancels - no registration with the scheduler's cancel
// plumbing beyond the usual never-firing signal. A token that is already
// done short-circuits to an already-cancelled Handle without ever
// reaching the gate. Otherwise the token's own Done() channel is used as
// the cancel signal directly, so its firing is translated into exactly
// the cancel event SubmitStream observes, followed by terminal completion.
func SubmitTask[T any](s *Scheduler, priority int, key string, cancelToken context.Context, fn func(ctx context.Context) (T, error)) (*Handle[T], error) {
	if fn == nil {
		return nil, ErrInvalidArgument
	}
	if cancelToken != nil && cancelToken.Err() != nil {
		h := newHandle[T]()
		h.complete(OutcomeCancelled, ErrOperationCancelled)
		return h, nil
	}
	cancel := Never
	if cancelToken != nil {
		cancel = cancelToken.Done()
	}
	body := func(ctx context.Context) Stream[T] {
		return &singleStream[T]{ctx: ctx, fn: fn}
	}
	return SubmitStream(s, priority, key, cancel, body)
}

// SubmitTaskSimple submits an unkeyed, priority-zero single-shot operation
// with a never-firing cancel token.
func SubmitTaskSimple[T any](s *Scheduler, fn func(ctx context.Context) (T, error)) (*Handle[T], error) {
	return SubmitTask(s, 0, "", nil, fn)
}
