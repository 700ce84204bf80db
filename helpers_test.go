// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"context"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/bassosimone/netstub"
	"github.com/bassosimone/restworker/evloop"
	"github.com/bassosimone/restworker/jsondoc"
	"github.com/bassosimone/slogstub"
	"github.com/stretchr/testify/require"
)

// newCapturingLogger returns a logger that captures all log records and a
// function returning a copy of the records captured so far. The logger is
// safe to use from the loop and from the socket pumps at the same time.
func newCapturingLogger() (*slog.Logger, func() []slog.Record) {
	var (
		mu      sync.Mutex
		records []slog.Record
	)
	handler := &slogstub.FuncHandler{
		EnabledFunc: func(ctx context.Context, level slog.Level) bool {
			return true
		},
		HandleFunc: func(ctx context.Context, record slog.Record) error {
			mu.Lock()
			records = append(records, record.Clone())
			mu.Unlock()
			return nil
		},
	}
	snapshot := func() []slog.Record {
		mu.Lock()
		defer mu.Unlock()
		return append([]slog.Record(nil), records...)
	}
	return slog.New(handler), snapshot
}

// findRecords returns the records with the given message.
func findRecords(records []slog.Record, message string) []slog.Record {
	var out []slog.Record
	for _, r := range records {
		if r.Message == message {
			out = append(out, r)
		}
	}
	return out
}

// recordAttr returns the value of the named attribute of r.
func recordAttr(r slog.Record, key string) (value slog.Value, found bool) {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == key {
			value, found = a.Value, true
			return false
		}
		return true
	})
	return
}

// newMinimalConn returns a [*netstub.FuncConn] with only LocalAddrFunc and
// RemoteAddrFunc set. This is the minimum needed for code that calls
// [safeconn.LocalAddr], [safeconn.RemoteAddr], and [safeconn.Network]
// during construction.
func newMinimalConn() *netstub.FuncConn {
	return &netstub.FuncConn{
		LocalAddrFunc:  func() net.Addr { return &net.TCPAddr{} },
		RemoteAddrFunc: func() net.Addr { return &net.TCPAddr{} },
	}
}

// newStatusDocument returns a small document used by the tests.
func newStatusDocument() *jsondoc.Document {
	return jsondoc.New(jsondoc.Object(
		jsondoc.Pair("hostname", jsondoc.Const("example")),
		jsondoc.Pair("jobid", jsondoc.Const(2350105)),
		jsondoc.Pair("ctx", jsondoc.Scoped(func(data any) (jsondoc.Value, error) {
			return jsondoc.Const(data), nil
		})),
	))
}

// testServer is a listener served by a loop running in the background.
type testServer struct {
	listener *Listener
	loop     *evloop.Loop
}

// startServer binds a listener to a random loopback port and serves it
// until the test completes. The setup function, if not nil, runs before
// binding and may register resources.
func startServer(t *testing.T, cfg *Config, logger SLogger, setup func(l *Listener)) *testServer {
	t.Helper()
	l := NewListener(cfg, logger)
	if setup != nil {
		setup(l)
	}
	require.NoError(t, l.Bind("127.0.0.1", "0", 16))

	loop := evloop.New()
	require.NoError(t, l.Start(loop))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
		l.Destroy()
	})
	return &testServer{listener: l, loop: loop}
}

// onLoop runs fn on the loop and waits for it to complete.
func (s *testServer) onLoop(fn func()) {
	done := make(chan struct{})
	s.loop.Post(func() {
		defer close(done)
		fn()
	})
	<-done
}

// numConns returns the number of live connections.
func (s *testServer) numConns() (count int) {
	s.onLoop(func() { count = s.listener.NumConns() })
	return
}

// dial connects to the server.
func (s *testServer) dial(t *testing.T) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", s.listener.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetDeadline(time.Now().Add(5*time.Second)))
	return conn
}

// exchange sends request and returns everything the server sends
// until it closes the connection.
func (s *testServer) exchange(t *testing.T, request string) string {
	t.Helper()
	conn := s.dial(t)
	_, err := conn.Write([]byte(request))
	require.NoError(t, err)
	data, err := io.ReadAll(conn)
	require.NoError(t, err)
	return string(data)
}
