// Package keyrouter demultiplexes gate-admitted operations by key: at most
// one operation per non-default key runs at a time (queued, strict FIFO),
// while unkeyed ("") operations all run concurrently, bounded only by the
// gate's ceiling.
package keyrouter

import (
	"sync"

	"github.com/Andrej220/opsched/pqueue"
	"github.com/Andrej220/opsched/zlog"
)

// Runner is invoked once per admitted item, on its own goroutine, to
// actually execute the operation body. release must be called exactly
// once, when the operation has fully terminated (value stream completed,
// errored, or was cancelled), regardless of outcome.
type Runner func(item *pqueue.Item, release func())

// Router routes admitted items to per-key FIFO execution, or to
// unrestricted concurrency for the default ("") key.
type Router struct {
	mu       sync.Mutex
	channels map[string]*keyChannel
	run      Runner
	release  func()
	log      zlog.ZLogger
}

type keyChannel struct {
	pending []*pqueue.Item
	running bool
}

// Config configures a new Router.
type Config struct {
	// Run executes one operation's body. Required.
	Run Runner
	// Release is called by the Router exactly once per admitted item, as
	// soon as that item's body terminates, to free the gate's slot.
	// Required.
	Release func()
	Logger  zlog.ZLogger
}

// New builds a Router.
func New(cfg Config) *Router {
	if cfg.Run == nil || cfg.Release == nil {
		panic("keyrouter: Config.Run and Config.Release are required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zlog.NewDiscard()
	}
	return &Router{
		channels: make(map[string]*keyChannel),
		run:      cfg.Run,
		release:  cfg.Release,
		log:      logger,
	}
}

// Admit is the gate.Admitter callback: route item for execution. Safe to
// call from inside the gate's lock - it never blocks.
func (r *Router) Admit(item *pqueue.Item) {
	if !item.Keyed {
		r.log.Debug("keyrouter: running unkeyed", zlog.Any("id", item.ID))
		go r.runAndRelease(item)
		return
	}

	r.mu.Lock()
	ch, ok := r.channels[item.Key]
	if !ok {
		ch = &keyChannel{}
		r.channels[item.Key] = ch
	}
	startNow := !ch.running
	if startNow {
		ch.running = true
	} else {
		ch.pending = append(ch.pending, item)
	}
	r.mu.Unlock()

	if startNow {
		r.log.Debug("keyrouter: running keyed", zlog.Any("id", item.ID), zlog.Any("key", item.Key))
		go r.runAndRelease(item)
	} else {
		r.log.Debug("keyrouter: queued behind key head", zlog.Any("id", item.ID), zlog.Any("key", item.Key))
	}
}

func (r *Router) runAndRelease(item *pqueue.Item) {
	r.run(item, func() { r.onTerminated(item) })
}

// onTerminated is called exactly once, after item's body has terminated.
// It releases the gate slot and, for keyed items, starts the next queued
// item for that key (if any) without consuming an additional gate slot -
// that item was already counted as in-flight when it was admitted.
func (r *Router) onTerminated(item *pqueue.Item) {
	defer r.release()

	if !item.Keyed {
		return
	}

	r.mu.Lock()
	ch := r.channels[item.Key]
	var next *pqueue.Item
	if len(ch.pending) > 0 {
		next = ch.pending[0]
		ch.pending = ch.pending[1:]
	} else {
		ch.running = false
		delete(r.channels, item.Key)
	}
	r.mu.Unlock()

	if next != nil {
		r.log.Debug("keyrouter: starting queued item", zlog.Any("id", next.ID), zlog.Any("key", next.Key))
		go r.runAndRelease(next)
	}
}
