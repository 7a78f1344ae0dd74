// Package opsched implements an asynchronous operation scheduler: a bounded
// pool of globally concurrent "slots", numeric-priority dispatch out of a
// single queue, and per-key serialization (at most one in-flight operation
// per non-default key at a time), with pause/resume, dynamic ceiling
// adjustment, cooperative cancellation, and graceful drain-to-completion
// shutdown.
package opsched

import (
	"sync"
	"sync/atomic"

	"go.uber.org/multierr"

	"github.com/Andrej220/opsched/gate"
	"github.com/Andrej220/opsched/keyrouter"
	"github.com/Andrej220/opsched/pqueue"
	"github.com/Andrej220/opsched/zlog"
)

// globalID hands out IDs unique across every Scheduler in the process,
// matching the "globally unique" requirement without needing schedulers to
// coordinate with one another.
var globalID atomic.Uint64

func nextGlobalID() uint64 { return globalID.Add(1) }

// Config configures a new Scheduler.
type Config struct {
	// Ceiling is the maximum number of operations that may be admitted
	// (in flight) at once. Must be positive.
	Ceiling int
	// RandomTiebreak, when true, breaks ties among equal-priority
	// submissions that do not share a key (unkeyed ones, or keyed ones
	// with different keys) by a random draw instead of FIFO. Submissions
	// sharing a key stay FIFO.
	RandomTiebreak bool
	// Seed seeds the random tiebreaker's source. Ignored unless
	// RandomTiebreak is true.
	Seed int64
	// Logger receives structured diagnostic events. Defaults to a
	// discard logger.
	Logger zlog.ZLogger
}

// Stats is a point-in-time snapshot of a Scheduler's admission state.
type Stats struct {
	InFlight int
	Queued   int
	Ceiling  int
}

// Scheduler is the operation-scheduling façade: a priority queue feeding a
// bounded admission gate feeding a per-key router.
type Scheduler struct {
	gate   *gate.Gate
	router *keyrouter.Router
	log    zlog.ZLogger

	mu           sync.Mutex
	wg           sync.WaitGroup
	shuttingDown bool
	shutdownSig  *ShutdownSignal
	errs         error
}

// NewScheduler builds a Scheduler ready to accept submissions.
func NewScheduler(cfg Config) (*Scheduler, error) {
	if cfg.Ceiling <= 0 {
		return nil, ErrInvalidArgument
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zlog.NewDiscard()
	}

	s := &Scheduler{log: logger}

	s.router = keyrouter.New(keyrouter.Config{
		Run: func(item *pqueue.Item, release func()) {
			boxedRunnable(item).invoke(release)
		},
		Release: func() { s.gate.Release() },
		Logger:  logger,
	})

	g, err := gate.New(gate.Config{
		Ceiling:        cfg.Ceiling,
		RandomTiebreak: cfg.RandomTiebreak,
		Seed:           cfg.Seed,
		Admit:          s.router.Admit,
		Logger:         logger,
		NextID:         nextGlobalID,
	})
	if err != nil {
		return nil, err
	}
	s.gate = g

	return s, nil
}

// SubmitStream submits a streaming operation body under the given priority
// and key (the default "" key means unkeyed - unrestricted concurrency; any
// other key serializes strictly FIFO against other submissions sharing it).
// cancel may be nil, equivalent to Never (the operation never cancels
// early). The returned Handle observes the body's emitted values and its
// terminal outcome, and may be subscribed to from any number of goroutines,
// before or after the operation completes.
//
// SubmitStream is a package-level function, not a method, because Go does
// not allow a method to introduce type parameters beyond its receiver's.
func SubmitStream[T any](s *Scheduler, priority int, key string, cancel <-chan struct{}, body Body[T]) (*Handle[T], error) {
	if body == nil {
		return nil, ErrInvalidArgument
	}
	if cancel == nil {
		cancel = Never
	}

	h := newHandle[T]()
	rec := &record[T]{body: body, cancel: cancel, handle: h}

	s.mu.Lock()
	if s.shuttingDown {
		s.mu.Unlock()
		return nil, ErrShutdownInProgress
	}
	s.wg.Add(1)
	s.mu.Unlock()

	rec.onDone = func(err error) {
		s.wg.Done()
		if err != nil && err != ErrOperationCancelled {
			s.recordError(err)
		}
	}

	id, err := s.gate.Submit(gate.Submission{
		Priority: priority,
		Key:      key,
		Keyed:    key != "",
		Value:    rec,
	})
	if err != nil {
		s.wg.Done()
		if err == gate.ErrClosed {
			// Shutdown closed the gate after the shuttingDown check above.
			err = ErrShutdownInProgress
		}
		return nil, err
	}
	rec.id = id
	return h, nil
}

// SubmitStreamUnkeyed submits an unkeyed (freely concurrent) streaming
// operation at the given priority.
func SubmitStreamUnkeyed[T any](s *Scheduler, priority int, cancel <-chan struct{}, body Body[T]) (*Handle[T], error) {
	return SubmitStream(s, priority, "", cancel, body)
}

// SubmitStreamSimple submits an unkeyed, uncancellable streaming operation
// at priority zero - the common case.
func SubmitStreamSimple[T any](s *Scheduler, body Body[T]) (*Handle[T], error) {
	return SubmitStream(s, 0, "", Never, body)
}

// PauseGrant releases one outstanding pause when called. Safe to call more
// than once; only the first call has effect.
type PauseGrant func()

// Pause suspends all further admission until every outstanding PauseGrant
// has been released (ref-counted: nested Pause/release pairs compose).
// Operations already admitted are unaffected.
func (s *Scheduler) Pause() PauseGrant {
	return PauseGrant(s.gate.Pause())
}

// SetCeiling changes the maximum number of concurrently in-flight
// operations. Must be positive. Raising it admits queued work immediately;
// lowering it only inhibits future admission, it never preempts
// already-running work.
func (s *Scheduler) SetCeiling(n int) error {
	return s.gate.SetCeiling(n)
}

// Stats reports a point-in-time snapshot of admission state.
func (s *Scheduler) Stats() Stats {
	return Stats{
		InFlight: s.gate.InFlight(),
		Queued:   s.gate.QueueLen(),
		Ceiling:  s.gate.Ceiling(),
	}
}

// ShutdownSignal reports the completion of a Scheduler's graceful shutdown.
// Safe for any number of goroutines to read concurrently.
type ShutdownSignal struct {
	done chan struct{}
	err  error
}

// Done returns a channel that is closed once every submission outstanding
// at the time of Shutdown (and everything still queued behind them) has
// terminated.
func (sig *ShutdownSignal) Done() <-chan struct{} { return sig.done }

// Err returns the combined error of every operation body that terminated
// with an error since the Scheduler was created, including failures from
// before Shutdown was called. Valid only after Done is closed; nil if
// every operation completed (or was cancelled) without error.
func (sig *ShutdownSignal) Err() error { return sig.err }

// Shutdown stops accepting new submissions (Submit* begins returning
// ErrShutdownInProgress) and drains the remaining queue and in-flight work
// to completion - it does not cancel anything. Calling Shutdown more than
// once returns the same signal.
func (s *Scheduler) Shutdown() *ShutdownSignal {
	s.mu.Lock()
	if s.shuttingDown {
		sig := s.shutdownSig
		s.mu.Unlock()
		return sig
	}
	s.shuttingDown = true
	sig := &ShutdownSignal{done: make(chan struct{})}
	s.shutdownSig = sig
	s.mu.Unlock()

	s.log.Info("opsched: shutdown initiated")
	s.gate.DrainAndComplete()

	go func() {
		s.wg.Wait()
		s.mu.Lock()
		sig.err = s.errs
		s.mu.Unlock()
		close(sig.done)
	}()

	return sig
}

func (s *Scheduler) recordError(err error) {
	s.mu.Lock()
	s.errs = multierr.Append(s.errs, err)
	s.mu.Unlock()
}
