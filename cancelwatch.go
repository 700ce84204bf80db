// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"context"
	"net"
)

// NewCancelWatchFunc returns a new [*CancelWatchFunc].
func NewCancelWatchFunc() *CancelWatchFunc {
	return &CancelWatchFunc{}
}

// CancelWatchFunc arranges for an accepted connection to be closed when
// the context is done.
//
// The [*Listener] calls this stage with a context whose lifetime is the
// listener's own, so [Listener.Destroy] interrupts the I/O of every live
// connection, including pending flushes.
//
// The returned connection wraps the input connection. Closing it
// unregisters the context watcher and closes the underlying connection,
// so no watcher outlives its connection.
type CancelWatchFunc struct{}

var _ Func[net.Conn, net.Conn] = &CancelWatchFunc{}

// Call registers a context watcher using [context.AfterFunc]. It never fails.
func (op *CancelWatchFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	stop := context.AfterFunc(ctx, func() {
		conn.Close()
	})
	return &cancelWatchedConn{Conn: conn, stop: stop}, nil
}

// cancelWatchedConn wraps a [net.Conn] with a context cancellation watcher.
type cancelWatchedConn struct {
	net.Conn
	stop func() bool
}

// Close unregisters the context watcher and closes the underlying connection.
func (c *cancelWatchedConn) Close() error {
	c.stop()
	return c.Conn.Close()
}
