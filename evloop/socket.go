// SPDX-License-Identifier: GPL-3.0-or-later

package evloop

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bassosimone/restworker/nbuf"
)

// Interest is the kind of readiness a [*Socket] is registered for.
type Interest int

const (
	// InterestNone means the socket is not registered.
	InterestNone Interest = iota

	// InterestRead means the socket waits for incoming data.
	InterestRead

	// InterestWrite means the socket waits for room in its output queue.
	InterestWrite
)

// String implements [fmt.Stringer].
func (i Interest) String() string {
	switch i {
	case InterestRead:
		return "read"
	case InterestWrite:
		return "write"
	default:
		return "none"
	}
}

// Socket is a non-blocking view of a [net.Conn].
//
// Two pump goroutines move bytes between the connection and bounded
// input and output queues. [Socket.Read] and [Socket.Write] only touch the
// queues and therefore never block: when they cannot make progress they
// return [nbuf.ErrWouldBlock]. Readiness is reported by invoking the
// callback registered with [Socket.WatchRead] or [Socket.WatchWrite] on
// the loop goroutine.
//
// Construct using [Loop.NewSocket].
type Socket struct {
	// conn is the wrapped connection.
	conn net.Conn

	// linger bounds the time spent flushing output after Close.
	linger time.Duration

	// loop is the loop on which callbacks run.
	loop *Loop

	// notifying is true while a dispatch is queued on the loop.
	notifying atomic.Bool

	// mu protects the fields shared with the pumps.
	mu sync.Mutex

	// cond wakes up the pumps.
	cond *sync.Cond

	// in is the input queue, bounded by size.
	in []byte

	// out is the output queue, bounded by size.
	out []byte

	// size is the capacity of each queue.
	size int

	// rerr is the error that stopped the reader pump.
	rerr error

	// werr is the error that stopped the writer pump.
	werr error

	// closing tells the pumps to terminate.
	closing bool

	// interest is the current registration (loop only).
	interest Interest

	// onReady is the readiness callback (loop only).
	onReady func()

	// closed is set by Close (loop only).
	closed bool
}

// NewSocket wraps conn into a [*Socket] whose queues hold size bytes each.
//
// The socket owns conn: the connection is closed once [Socket.Close] has
// been called and the output queue has been flushed or linger elapsed.
func (l *Loop) NewSocket(conn net.Conn, size int, linger time.Duration) *Socket {
	s := &Socket{
		conn:   conn,
		linger: linger,
		loop:   l,
		size:   max(size, 1),
	}
	s.cond = sync.NewCond(&s.mu)
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Interest returns the current registration.
func (s *Socket) Interest() Interest {
	return s.interest
}

// WatchRead registers fn to run when input is available or the reader
// stopped with an error (including EOF). It replaces any previous
// registration.
func (s *Socket) WatchRead(fn func()) {
	s.watch(InterestRead, fn)
}

// WatchWrite registers fn to run when the output queue has room or the
// writer stopped with an error. It replaces any previous registration.
func (s *Socket) WatchWrite(fn func()) {
	s.watch(InterestWrite, fn)
}

// Unwatch clears the registration.
func (s *Socket) Unwatch() {
	s.interest, s.onReady = InterestNone, nil
}

func (s *Socket) watch(interest Interest, fn func()) {
	if s.closed {
		return
	}
	s.interest, s.onReady = interest, fn
	s.notify() // the socket may already be ready
}

// notify schedules a readiness check on the loop. Safe from any goroutine.
func (s *Socket) notify() {
	if s.notifying.CompareAndSwap(false, true) {
		s.loop.Post(s.dispatch)
	}
}

func (s *Socket) dispatch() {
	s.notifying.Store(false)
	if s.closed || s.onReady == nil {
		return
	}
	s.mu.Lock()
	var ready bool
	switch s.interest {
	case InterestRead:
		ready = len(s.in) > 0 || s.rerr != nil
	case InterestWrite:
		ready = len(s.out) < s.size || s.werr != nil
	}
	s.mu.Unlock()
	if ready {
		s.onReady()
	}
}

// Read implements [io.Reader] without blocking.
//
// It returns queued input if any, otherwise the error that stopped the
// reader pump (e.g., [io.EOF]), otherwise [nbuf.ErrWouldBlock].
func (s *Socket) Read(p []byte) (int, error) {
	if s.closed {
		return 0, net.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.in) > 0 {
		n := copy(p, s.in)
		s.in = s.in[:copy(s.in, s.in[n:])]
		s.cond.Broadcast()
		return n, nil
	}
	if s.rerr != nil {
		return 0, s.rerr
	}
	return 0, nbuf.ErrWouldBlock
}

// Write implements [io.Writer] without blocking.
//
// It queues as much of p as fits and returns [nbuf.ErrWouldBlock] when not
// all of p could be queued.
func (s *Socket) Write(p []byte) (int, error) {
	if s.closed {
		return 0, net.ErrClosed
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.werr != nil {
		return 0, s.werr
	}
	n := min(s.size-len(s.out), len(p))
	if n <= 0 {
		return 0, nbuf.ErrWouldBlock
	}
	s.out = append(s.out, p[:n]...)
	s.cond.Broadcast()
	if n < len(p) {
		return n, nbuf.ErrWouldBlock
	}
	return n, nil
}

// Flushed returns whether the writer pump has written all the queued
// output, along with the error that stopped it, if any.
//
// Writable callbacks keep firing while the pump makes progress, so a
// caller can poll Flushed from its [Socket.WatchWrite] callback.
func (s *Socket) Flushed() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.out) <= 0, s.werr
}

// Close clears the registration and arranges for the connection to be
// closed once the queued output has been flushed.
//
// Subsequent calls return [net.ErrClosed].
func (s *Socket) Close() error {
	if s.closed {
		return net.ErrClosed
	}
	s.closed = true
	s.Unwatch()
	s.mu.Lock()
	s.closing = true
	s.cond.Broadcast()
	s.mu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(s.linger))
	return nil
}

func (s *Socket) readLoop() {
	chunk := make([]byte, min(s.size, 16384))
	for {
		s.mu.Lock()
		for len(s.in) >= s.size && !s.closing {
			s.cond.Wait()
		}
		if s.closing {
			s.mu.Unlock()
			return
		}
		room := s.size - len(s.in)
		s.mu.Unlock()

		count, err := s.conn.Read(chunk[:min(room, len(chunk))])

		s.mu.Lock()
		s.in = append(s.in, chunk[:count]...)
		if err != nil {
			s.rerr = err
		}
		s.mu.Unlock()
		s.notify()

		if err != nil {
			return
		}
	}
}

func (s *Socket) writeLoop() {
	defer s.conn.Close()
	for {
		s.mu.Lock()
		for len(s.out) <= 0 && !s.closing {
			s.cond.Wait()
		}
		if len(s.out) <= 0 {
			s.mu.Unlock()
			return
		}
		pending := s.out
		s.mu.Unlock()

		// Write may concurrently append beyond len(pending) but never
		// touches the bytes we are writing.
		count, err := s.conn.Write(pending)

		s.mu.Lock()
		s.out = s.out[:copy(s.out, s.out[count:])]
		if err != nil {
			s.werr = err
		}
		s.mu.Unlock()
		s.notify()

		if err != nil {
			return
		}
	}
}
