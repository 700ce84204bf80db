// SPDX-License-Identifier: GPL-3.0-or-later

package evloop

import "time"

// Timer is a one-shot timer whose callback runs on the loop.
//
// Construct using [Loop.AfterFunc].
type Timer struct {
	// fn is the callback to invoke.
	fn func()

	// done is set once fn ran or the timer was stopped (loop only).
	done bool

	// t is the underlying runtime timer.
	t *time.Timer
}

// AfterFunc arranges for fn to run on the loop after d elapses.
func (l *Loop) AfterFunc(d time.Duration, fn func()) *Timer {
	tm := &Timer{fn: fn}
	tm.t = time.AfterFunc(d, func() {
		l.Post(tm.fire)
	})
	return tm
}

func (tm *Timer) fire() {
	if tm.done {
		return
	}
	tm.done = true
	tm.fn()
}

// Stop disarms the timer.
//
// After Stop returns, the callback is guaranteed not to run, even if the
// underlying timer already expired and its notification is queued.
//
// Stop returns whether the timer was still armed.
func (tm *Timer) Stop() bool {
	armed := !tm.done
	tm.done = true
	tm.t.Stop()
	return armed
}

// Armed returns whether the callback may still run.
func (tm *Timer) Armed() bool {
	return !tm.done
}
