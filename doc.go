// SPDX-License-Identifier: GPL-3.0-or-later

// Package restworker serves named, read-only JSON resources over a minimal
// HTTP/1.1 GET protocol, rendering each resource at request time.
//
// # Core Abstraction
//
// A resource is a [Document] plus an opaque context value registered at a
// path:
//
//	type Document interface {
//		Format(w io.Writer, data any) (int, error)
//	}
//
// The jsondoc package provides a [Document] implementation whose values
// are read when the document is rendered.
//
// # Serving
//
// A [*Listener] owns a [*Registry], a bound socket, and the set of live
// connections. All connections are driven by a single [*evloop.Loop]
// goroutine: callbacks run to completion, there is no locking in the
// connection engine, and no I/O on the loop ever blocks.
//
//	l := restworker.NewListener(restworker.NewConfig(), logger)
//	l.RegisterResource("/status", doc, nil)
//	l.Bind("localhost", "9901", 128)
//	loop := evloop.New()
//	l.Start(loop)
//	loop.Run(ctx)
//	l.Destroy()
//
// # Connection Lifecycle
//
// Each accepted connection serves exactly one request:
//
//   - reading: input accumulates until an empty line terminates the request;
//     the method and path are the first two tokens of the request line
//     and everything else is ignored
//   - dispatching: only GET is implemented (otherwise 501); unknown paths
//     get 404; the document is rendered into a body buffer of fixed
//     capacity (overflowing it yields 500)
//   - writing: the header and then the body are drained to the socket; the
//     connection closes once the socket has written everything, so a write
//     failure is recorded even when the response was fully queued
//   - closed: the timer is stopped, the socket closed, buffers released
//
// A request line alone is not a complete request: clients must send the
// empty line ("GET /status\r\n\r\n"), as any HTTP/1.x client does, or the
// connection sits in reading until the inactivity timer answers 408. A
// bare "\n\n" terminator is accepted as well.
//
// Failures produce a header-only response with the matching status and
// then close the connection. The inactivity timer ([Config.Timeout]) covers
// the whole exchange and, when it fires, forces a 408 response. Teardown
// happens exactly once regardless of which path reaches it first.
//
// Responses always carry Content-Type: application/json, an exact
// Content-Length, Connection: close, and Access-Control-Allow-Origin: *.
//
// # Observability
//
// All events use structured logging via [SLogger] (compatible with
// [log/slog]); by default, logging is disabled. Connection events
// (connStart, httpRequest, connDone) carry a span ID generated with
// [NewSpanID]. Errors are labelled using [ErrClassifier]. Per-I/O events
// are emitted at [slog.LevelDebug] by the [ObserveConnFunc] stage that the
// listener applies to every accepted connection.
//
// # Design Boundaries
//
// There are no persistent connections, no request bodies, no chunked
// encoding, and no TLS.
package restworker
