// SPDX-License-Identifier: GPL-3.0-or-later

package evloop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runUntil runs the loop on the test goroutine until cond is true.
func runUntil(t *testing.T, loop *Loop, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		loop.RunPending()
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not satisfied before deadline")
}

func TestNew(t *testing.T) {
	loop := New()
	require.NotNil(t, loop)
	assert.Equal(t, 0, loop.RunPending())
}

// RunPending executes callbacks in order, including the ones they post.
func TestLoopRunPending(t *testing.T) {
	loop := New()
	var order []int
	loop.Post(func() { order = append(order, 1) })
	loop.Post(func() {
		order = append(order, 2)
		loop.Post(func() { order = append(order, 3) })
	})

	count := loop.RunPending()

	assert.Equal(t, 3, count)
	assert.Equal(t, []int{1, 2, 3}, order)
}

// Run executes callbacks posted from other goroutines and stops with the context.
func TestLoopRun(t *testing.T) {
	loop := New()
	ctx, cancel := context.WithCancel(context.Background())

	errch := make(chan error, 1)
	go func() { errch <- loop.Run(ctx) }()

	called := make(chan struct{})
	go loop.Post(func() { close(called) })

	select {
	case <-called:
	case <-time.After(5 * time.Second):
		t.Fatal("callback not executed")
	}

	cancel()
	err := <-errch
	require.True(t, errors.Is(err, context.Canceled))
}

// The loop refuses to run twice at the same time.
func TestLoopRunPendingWhileRunning(t *testing.T) {
	loop := New()
	inside := false
	loop.Post(func() {
		inside = true
		assert.Panics(t, func() { loop.RunPending() })
	})
	loop.RunPending()
	assert.True(t, inside)
}

// AfterFunc runs the callback on the loop.
func TestTimerFires(t *testing.T) {
	loop := New()
	fired := false
	tm := loop.AfterFunc(time.Millisecond, func() { fired = true })

	runUntil(t, loop, func() bool { return fired })
	assert.False(t, tm.Armed())
	assert.False(t, tm.Stop())
}

// Stop prevents the callback even if the expiration is already queued.
func TestTimerStopAfterExpiration(t *testing.T) {
	loop := New()
	fired := false
	tm := loop.AfterFunc(time.Millisecond, func() { fired = true })

	time.Sleep(50 * time.Millisecond) // the expiration is now queued

	assert.True(t, tm.Stop())
	loop.RunPending()
	assert.False(t, fired)
}

func TestTimerStopBeforeExpiration(t *testing.T) {
	loop := New()
	fired := false
	tm := loop.AfterFunc(time.Hour, func() { fired = true })

	assert.True(t, tm.Armed())
	assert.True(t, tm.Stop())
	assert.False(t, tm.Armed())
	loop.RunPending()
	assert.False(t, fired)
}
