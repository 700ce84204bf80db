// SPDX-License-Identifier: GPL-3.0-or-later

// Package evloop implements a single-threaded event loop.
//
// A [*Loop] executes callbacks one at a time on the goroutine calling
// [Loop.Run]. Callbacks run to completion and are never reentered. Other
// goroutines (timers, socket pumps, accept loops) communicate with the loop
// exclusively by posting callbacks with [Loop.Post].
//
// On top of the loop, the package provides timers ([Loop.AfterFunc]) and a
// non-blocking, readiness-notifying view of a [net.Conn] ([Loop.NewSocket]).
// Unless otherwise noted, methods of [*Timer] and [*Socket] must only be
// called from within a loop callback.
package evloop

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/bassosimone/runtimex"
)

// Loop is a single-threaded callback executor.
//
// Construct using [New].
type Loop struct {
	// mu protects queue.
	mu sync.Mutex

	// queue contains the callbacks to execute.
	queue []func()

	// running is true while Run or RunPending is executing.
	running atomic.Bool

	// wakeup is signalled when the queue becomes non-empty.
	wakeup chan struct{}
}

// New creates a new [*Loop].
func New() *Loop {
	return &Loop{
		mu:     sync.Mutex{},
		queue:  nil,
		wakeup: make(chan struct{}, 1),
	}
}

// Post schedules fn to run on the loop goroutine.
//
// This method is safe to call from any goroutine and never blocks.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	select {
	case l.wakeup <- struct{}{}:
	default:
	}
}

// Run executes callbacks until the context is done.
//
// Run returns the context error. It panics if the loop is already running.
func (l *Loop) Run(ctx context.Context) error {
	runtimex.Assert(l.running.CompareAndSwap(false, true))
	defer l.running.Store(false)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if l.runBatch() > 0 {
			continue
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wakeup:
		}
	}
}

// RunPending executes the currently queued callbacks, including the ones
// they post, until the queue is empty, and returns the number of executed
// callbacks.
//
// It must not be called while [Loop.Run] is running.
func (l *Loop) RunPending() int {
	runtimex.Assert(l.running.CompareAndSwap(false, true))
	defer l.running.Store(false)
	var total int
	for {
		count := l.runBatch()
		if count <= 0 {
			return total
		}
		total += count
	}
}

func (l *Loop) runBatch() int {
	l.mu.Lock()
	batch := l.queue
	l.queue = nil
	l.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}
