//
// SPDX-License-Identifier: GPL-3.0-or-later
//
// Adapted from: https://github.com/ooni/probe-cli/blob/v3.20.1/internal/measurexlite/conn.go
// Adapted from: https://github.com/rbmk-project/rbmk/blob/v0.17.0/pkg/x/netcore/conn.go
//

package restworker

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bassosimone/safeconn"
)

// NewObserveConnFunc returns a new [*ObserveConnFunc].
//
// The cfg argument contains the listener configuration.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewObserveConnFunc(cfg *Config, logger SLogger) *ObserveConnFunc {
	return &ObserveConnFunc{
		ErrClassifier: cfg.ErrClassifier,
		Logger:        logger,
		TimeNow:       cfg.TimeNow,
	}
}

// ObserveConnFunc wraps an accepted [net.Conn] to log its I/O operations.
//
// Reads, writes, and deadline changes are logged at [slog.LevelDebug];
// closing is logged at [slog.LevelInfo]. The [*Listener] applies this
// stage to every accepted connection.
//
// All fields are safe to modify after construction but before first use.
// Fields must not be mutated concurrently with calls to [Call].
type ObserveConnFunc struct {
	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewObserveConnFunc] from [Config.ErrClassifier].
	ErrClassifier ErrClassifier

	// Logger is the [SLogger] to use.
	//
	// Set by [NewObserveConnFunc] to the user-provided logger.
	Logger SLogger

	// TimeNow is the function to get the current time (configurable for testing).
	//
	// Set by [NewObserveConnFunc] from [Config.TimeNow].
	TimeNow func() time.Time
}

var _ Func[net.Conn, net.Conn] = &ObserveConnFunc{}

// Call wraps conn. It never fails.
func (op *ObserveConnFunc) Call(ctx context.Context, conn net.Conn) (net.Conn, error) {
	observed := &observedConn{
		conn:     conn,
		laddr:    safeconn.LocalAddr(conn),
		op:       op,
		protocol: safeconn.Network(conn),
		raddr:    safeconn.RemoteAddr(conn),
	}
	return observed, nil
}

// observedConn is a [net.Conn] logging its operations.
type observedConn struct {
	closeonce sync.Once
	conn      net.Conn
	laddr     string
	op        *ObserveConnFunc
	protocol  string
	raddr     string
}

// endpoint returns the attributes identifying the connection.
func (c *observedConn) endpoint() []any {
	return []any{
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
	}
}

// ioStart logs the beginning of a read or write.
func (c *observedConn) ioStart(msg string, size int, t0 time.Time) {
	args := append(c.endpoint(), slog.Int("ioBufferSize", size), slog.Time("t", t0))
	c.op.Logger.Debug(msg, args...)
}

// ioDone logs the end of a read or write.
func (c *observedConn) ioDone(msg string, count int, err error, t0 time.Time) {
	args := append(
		c.endpoint(),
		slog.Int("ioBytesCount", count),
		slog.Any("err", err),
		slog.String("errClass", c.op.ErrClassifier.Classify(err)),
		slog.Time("t0", t0),
		slog.Time("t", c.op.TimeNow()),
	)
	c.op.Logger.Debug(msg, args...)
}

// deadline logs a deadline change.
func (c *observedConn) deadline(msg string, d time.Time) {
	args := append(c.endpoint(), slog.Time("deadline", d), slog.Time("t", c.op.TimeNow()))
	c.op.Logger.Debug(msg, args...)
}

// Close implements [net.Conn].
//
// Subsequent calls return [net.ErrClosed].
func (c *observedConn) Close() (err error) {
	err = net.ErrClosed
	c.closeonce.Do(func() {
		t0 := c.op.TimeNow()
		c.op.Logger.Info("closeStart", append(c.endpoint(), slog.Time("t", t0))...)

		err = c.conn.Close()

		c.op.Logger.Info("closeDone", append(
			c.endpoint(),
			slog.Any("err", err),
			slog.String("errClass", c.op.ErrClassifier.Classify(err)),
			slog.Time("t0", t0),
			slog.Time("t", c.op.TimeNow()),
		)...)
	})
	return
}

// LocalAddr implements [net.Conn].
func (c *observedConn) LocalAddr() net.Addr {
	return c.conn.LocalAddr()
}

// Read implements [net.Conn].
func (c *observedConn) Read(buf []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.ioStart("readStart", len(buf), t0)
	count, err := c.conn.Read(buf)
	c.ioDone("readDone", count, err, t0)
	return count, err
}

// RemoteAddr implements [net.Conn].
func (c *observedConn) RemoteAddr() net.Addr {
	return c.conn.RemoteAddr()
}

// SetDeadline implements [net.Conn].
func (c *observedConn) SetDeadline(t time.Time) error {
	c.deadline("setDeadline", t)
	return c.conn.SetDeadline(t)
}

// SetReadDeadline implements [net.Conn].
func (c *observedConn) SetReadDeadline(t time.Time) error {
	c.deadline("setReadDeadline", t)
	return c.conn.SetReadDeadline(t)
}

// SetWriteDeadline implements [net.Conn].
func (c *observedConn) SetWriteDeadline(t time.Time) error {
	c.deadline("setWriteDeadline", t)
	return c.conn.SetWriteDeadline(t)
}

// Write implements [net.Conn].
func (c *observedConn) Write(data []byte) (int, error) {
	t0 := c.op.TimeNow()
	c.ioStart("writeStart", len(data), t0)
	count, err := c.conn.Write(data)
	c.ioDone("writeDone", count, err, t0)
	return count, err
}
