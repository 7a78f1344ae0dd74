// Package gate implements the bounded-concurrency admission gate that sits
// between the priority queue and the per-key router: it decides *when* an
// item may leave the heap, never *whether* it is safe to run concurrently
// with same-key work (that is the router's job).
package gate

import (
	"errors"
	"math/rand"
	"sync"

	"github.com/Andrej220/opsched/pqueue"
	"github.com/Andrej220/opsched/zlog"
)

var (
	// ErrInvalidCeiling is returned by New and SetCeiling for non-positive values.
	ErrInvalidCeiling = errors.New("gate: ceiling must be positive")
	// ErrClosed is returned by Submit once DrainAndComplete has been called.
	ErrClosed = errors.New("gate: closed for new submissions")
)

// Admitter is invoked exactly once per admitted item, in the order the gate
// pops them from its heap, while the gate's internal lock is held. It must
// return promptly (handing the item off to a goroutine if the work itself
// is not instantaneous) and must never call back into the same Gate
// synchronously, or it will deadlock.
type Admitter func(item *pqueue.Item)

// Gate is a bounded-concurrency admission filter ordered by an internal
// pqueue.Heap. Safe for concurrent use.
type Gate struct {
	mu sync.Mutex

	heap        *pqueue.Heap
	baseCeiling int
	ceiling     int // effective ceiling; forced to 0 while pauseCount > 0
	pauseCount  int
	inFlight    int
	closed      bool

	rng    *rand.Rand
	admit  Admitter
	log    zlog.ZLogger
	nextID func() uint64
}

// Config configures a new Gate.
type Config struct {
	Ceiling        int
	RandomTiebreak bool
	Seed           int64
	Admit          Admitter
	Logger         zlog.ZLogger
	// NextID supplies the monotonically increasing ID for each submitted
	// item; the caller (opsched.Scheduler) owns the counter so IDs stay
	// unique across every Scheduler in the process.
	NextID func() uint64
}

// New builds a Gate. Ceiling must be positive and Admit must be non-nil.
func New(cfg Config) (*Gate, error) {
	if cfg.Ceiling <= 0 {
		return nil, ErrInvalidCeiling
	}
	if cfg.Admit == nil {
		panic("gate: Config.Admit must not be nil")
	}
	h, err := pqueue.New(16, cfg.RandomTiebreak)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zlog.NewDiscard()
	}
	return &Gate{
		heap:        h,
		baseCeiling: cfg.Ceiling,
		ceiling:     cfg.Ceiling,
		rng:         rand.New(rand.NewSource(cfg.Seed)),
		admit:       cfg.Admit,
		log:         logger,
		nextID:      cfg.NextID,
	}, nil
}

// Submission describes one item being submitted to the gate.
type Submission struct {
	Priority int
	Key      string
	Keyed    bool
	Value    any
}

// Submit places a new item into the heap and attempts to admit items while
// slots remain. Returns the ID assigned to the submitted item.
func (g *Gate) Submit(s Submission) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return 0, ErrClosed
	}

	id := g.nextID()
	item := &pqueue.Item{
		ID:       id,
		Priority: s.Priority,
		Key:      s.Key,
		Keyed:    s.Keyed,
		Value:    s.Value,
	}
	if g.heap.RandomTiebreakEnabled() {
		item.Random = g.rng.Uint64()
	}
	g.heap.Push(item)
	g.log.Debug("gate: submitted", zlog.Any("id", id), zlog.Any("priority", s.Priority), zlog.Any("key", s.Key))
	g.admitLocked()
	return id, nil
}

// Release frees one in-flight slot and attempts further admissions. Must be
// called exactly once per item that was ever admitted via Admit.
func (g *Gate) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.inFlight > 0 {
		g.inFlight--
	}
	g.admitLocked()
}

// SetCeiling changes the submission-time ceiling. Must be positive.
// Increases immediately trigger admission attempts; decreases merely
// inhibit future admission until completions bring the count down.
func (g *Gate) SetCeiling(n int) error {
	if n <= 0 {
		return ErrInvalidCeiling
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.baseCeiling = n
	if g.pauseCount == 0 {
		g.ceiling = n
	}
	g.admitLocked()
	return nil
}

// Pause forces the effective ceiling to zero while at least one pause is
// outstanding. Returns a release function; the effective ceiling is
// restored (and admission re-attempted) only once every outstanding pause
// has been released. Safe to call the returned function more than once;
// only the first call has effect.
func (g *Gate) Pause() (release func()) {
	g.mu.Lock()
	g.pauseCount++
	if g.pauseCount == 1 {
		g.ceiling = 0
	}
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			defer g.mu.Unlock()
			if g.pauseCount > 0 {
				g.pauseCount--
			}
			if g.pauseCount == 0 && !g.closed {
				g.ceiling = g.baseCeiling
			}
			g.admitLocked()
		})
	}
}

// DrainAndComplete forces the ceiling back to its submission-time value
// (overriding any outstanding pause), stops accepting new submissions, and
// admits everything remaining in priority order. It does not wait for
// admitted work to terminate; callers poll InFlight/QueueLen or, in
// opsched, wait on the aggregate completion signal.
func (g *Gate) DrainAndComplete() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	g.ceiling = g.baseCeiling
	g.log.Info("gate: draining", zlog.Any("queued", g.heap.Len()))
	g.admitLocked()
}

// InFlight reports the number of admitted-but-not-released items.
func (g *Gate) InFlight() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.inFlight
}

// QueueLen reports the number of items still waiting in the heap.
func (g *Gate) QueueLen() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.heap.Len()
}

// Ceiling reports the current effective ceiling (0 while paused).
func (g *Gate) Ceiling() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.ceiling
}

// admitLocked must be called with g.mu held. It admits items from the
// heap, highest precedence first, until either the heap is empty or
// inFlight reaches ceiling.
func (g *Gate) admitLocked() {
	for g.inFlight < g.ceiling {
		item, err := g.heap.Pop()
		if err != nil {
			return // heap empty
		}
		g.inFlight++
		g.log.Debug("gate: admitted", zlog.Any("id", item.ID))
		g.admit(item)
	}
}
