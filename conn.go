// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"bytes"
	"errors"
	"log/slog"
	"net"
	"strings"
	"time"

	"github.com/bassosimone/restworker/evloop"
	"github.com/bassosimone/restworker/nbuf"
)

// connState is the state of a [*conn].
type connState int

const (
	stateReading connState = iota
	stateDispatching
	stateWritingHeader
	stateWritingBody
	stateClosed
)

// String implements [fmt.Stringer].
func (s connState) String() string {
	switch s {
	case stateReading:
		return "reading"
	case stateDispatching:
		return "dispatching"
	case stateWritingHeader:
		return "writingHeader"
	case stateWritingBody:
		return "writingBody"
	default:
		return "closed"
	}
}

// conn serves a single request on an accepted connection.
//
// All methods run on the loop. The socket is registered either for read
// (stateReading) or for write (stateWritingHeader, stateWritingBody), never
// both. Every path ends in teardown, which runs exactly once.
type conn struct {
	// body holds the rendered document.
	body *nbuf.Buffer

	// err is the reason why the exchange failed, if any.
	err error

	// failing is true once an error response has been scheduled.
	failing bool

	// header holds the response header.
	header *nbuf.Buffer

	// id is the handle in [Listener.conns].
	id uint64

	// input holds the request bytes.
	input *nbuf.Buffer

	// laddr, protocol, raddr identify the connection in logs.
	laddr, protocol, raddr string

	// listener is the listener that spawned us.
	listener *Listener

	// method and path are the parsed request.
	method, path string

	// sock is the non-blocking socket.
	sock *evloop.Socket

	// spanID correlates the log events of this connection.
	spanID string

	// state is the current state.
	state connState

	// status is the response status.
	status int

	// t0 is when the connection was spawned.
	t0 time.Time

	// timer is the inactivity timer.
	timer *evloop.Timer
}

// newConn creates a [*conn] for nc using the listener configuration.
func newConn(l *Listener, id uint64, nc net.Conn) *conn {
	laddr, protocol, raddr := endpointAttrs(nc)
	return &conn{
		body:     nbuf.New(l.bodySize),
		header:   nbuf.New(l.headerSize),
		id:       id,
		input:    nbuf.New(l.readSize),
		laddr:    laddr,
		listener: l,
		protocol: protocol,
		raddr:    raddr,
		sock:     l.loop.NewSocket(nc, l.socketSize, l.linger),
		spanID:   NewSpanID(),
		state:    stateReading,
	}
}

// start arms the inactivity timer and waits for the request.
func (c *conn) start() {
	c.t0 = c.listener.timeNow()
	c.listener.logger.Info(
		"connStart",
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.String("spanID", c.spanID),
		slog.Time("t", c.t0),
	)
	c.timer = c.listener.loop.AfterFunc(c.listener.timeout, c.onTimeout)
	c.sock.WatchRead(c.onReadable)
}

// onReadable accumulates input until a complete request is available.
func (c *conn) onReadable() {
	if c.state != stateReading {
		return
	}

	_, eof, err := c.input.Fill(c.sock)
	if err != nil {
		c.fail(StatusInternalServerError, err)
		return
	}

	msg, found := c.input.GetMsg()
	if !found {
		switch {
		case eof:
			c.fail(StatusBadRequest, ErrBadRequest)
		case c.input.Full():
			c.fail(StatusBadRequest, ErrRequestTooLarge)
		}
		return
	}

	method, path, ok := parseRequestLine(msg)
	if !ok {
		c.fail(StatusBadRequest, ErrBadRequest)
		return
	}
	c.method, c.path = method, path
	c.listener.logger.Info(
		"httpRequest",
		slog.String("httpMethod", c.method),
		slog.String("httpPath", c.path),
		slog.String("spanID", c.spanID),
		slog.Time("t", c.listener.timeNow()),
	)
	c.dispatch()
}

// parseRequestLine returns the method and the path, which are the first
// two whitespace-separated tokens of the first line of msg.
func parseRequestLine(msg []byte) (method, path string, ok bool) {
	line, _, _ := bytes.Cut(msg, []byte("\n"))
	fields := strings.Fields(string(line))
	if len(fields) < 2 {
		return "", "", false
	}
	return fields[0], fields[1], true
}

// dispatch renders the requested resource and schedules the response.
func (c *conn) dispatch() {
	c.state = stateDispatching

	if c.method != "GET" {
		c.fail(StatusNotImplemented, ErrMethodNotImplemented)
		return
	}

	res, found := c.listener.registry.Lookup(c.path)
	if !found {
		c.fail(StatusNotFound, ErrResourceNotFound)
		return
	}

	c.body.Clear()
	if _, err := res.Document.Format(c.body, res.Data); err != nil {
		if errors.Is(err, nbuf.ErrFull) {
			err = ErrBodyTooLarge
		}
		c.fail(StatusInternalServerError, err)
		return
	}
	if _, err := c.body.WriteString("\r\n"); err != nil {
		c.fail(StatusInternalServerError, ErrBodyTooLarge)
		return
	}

	if err := formatHeader(c.header, StatusOK, c.body.Len()); err != nil {
		c.fail(StatusInternalServerError, err)
		return
	}
	c.status = StatusOK
	c.state = stateWritingHeader
	c.sock.WatchWrite(c.onWritable)
}

// fail schedules a header-only error response.
func (c *conn) fail(status int, err error) {
	c.failing = true
	c.err = err
	c.status = normalizeStatus(status)
	c.body.Clear()
	if ferr := formatHeader(c.header, c.status, 0); ferr != nil {
		c.teardown()
		return
	}
	c.state = stateWritingHeader
	c.sock.WatchWrite(c.onWritable)
}

// onWritable drains the header and then, on success, the body. A drain
// error tears down without attempting another response.
func (c *conn) onWritable() {
	switch c.state {
	case stateWritingHeader:
		done, err := c.header.Drain(c.sock)
		if err != nil {
			c.abort(err)
			return
		}
		if !done {
			return
		}
		if c.failing {
			c.finish()
			return
		}
		c.state = stateWritingBody
		fallthrough

	case stateWritingBody:
		done, err := c.body.Drain(c.sock)
		if err != nil {
			c.abort(err)
			return
		}
		if done {
			c.finish()
		}
	}
}

// finish tears down once the socket has written all the queued output, so
// that a failure to deliver the response is recorded. Until then, every
// writable event drains the already empty buffers and lands here again.
func (c *conn) finish() {
	flushed, err := c.sock.Flushed()
	switch {
	case err != nil:
		c.abort(err)
	case flushed:
		c.teardown()
	}
}

// onTimeout turns inactivity into a 408 response. If an error response
// is already being written, the connection is torn down instead.
func (c *conn) onTimeout() {
	switch {
	case c.state == stateClosed:
		return
	case c.failing:
		c.abort(ErrRequestTimeout)
		return
	}
	c.fail(StatusRequestTimeout, ErrRequestTimeout)
	if c.state != stateClosed {
		c.timer = c.listener.loop.AfterFunc(c.listener.timeout, c.onTimeout)
	}
}

// abort records err, unless an error was already recorded, and tears down.
func (c *conn) abort(err error) {
	if c.err == nil {
		c.err = err
	}
	c.teardown()
}

// teardown releases every resource of the connection. Calls after the
// first are no-ops.
func (c *conn) teardown() {
	if c.state == stateClosed {
		return
	}
	c.state = stateClosed

	if c.timer != nil {
		c.timer.Stop()
	}
	c.sock.Unwatch()
	c.sock.Close()
	delete(c.listener.conns, c.id)
	c.input.Release()
	c.header.Release()
	c.body.Release()

	c.listener.logger.Info(
		"connDone",
		slog.Any("err", c.err),
		slog.String("errClass", c.listener.errClassifier.Classify(c.err)),
		slog.String("httpMethod", c.method),
		slog.String("httpPath", c.path),
		slog.Int("httpStatus", c.status),
		slog.String("localAddr", c.laddr),
		slog.String("protocol", c.protocol),
		slog.String("remoteAddr", c.raddr),
		slog.String("spanID", c.spanID),
		slog.Time("t0", c.t0),
		slog.Time("t", c.listener.timeNow()),
	)
}
