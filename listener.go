// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"time"

	"github.com/bassosimone/restworker/evloop"
	"github.com/bassosimone/runtimex"
	"github.com/bassosimone/safeconn"
	"golang.org/x/net/netutil"
)

// Listener accepts connections and serves the resources in its registry.
//
// Construct using [NewListener], register resources, then call
// [Listener.Bind] and [Listener.Start]. Connections are served by the
// [*evloop.Loop] passed to Start. Call [Listener.Destroy] when done.
//
// [Listener.RegisterResource] and [Listener.UnregisterResource] are safe to
// call from any goroutine. Start must be called before the loop runs or
// from a loop callback; NumConns and Destroy must be called from a loop
// callback or after the loop returned.
type Listener struct {
	// configuration copied from [*Config]
	bodySize      int
	errClassifier ErrClassifier
	headerSize    int
	linger        time.Duration
	maxConns      int
	readSize      int
	socketSize    int
	timeNow       func() time.Time
	timeout       time.Duration

	// acceptDone is closed when the accept goroutine exits.
	acceptDone chan struct{}

	// cancel cancels ctx.
	cancel context.CancelFunc

	// conns contains the live connections (loop only).
	conns map[uint64]*conn

	// ctx is bound to the listener lifetime.
	ctx context.Context

	// destroyed is set by Destroy (loop only).
	destroyed bool

	// lastID is the handle of the most recently spawned connection.
	lastID uint64

	// ln is the bound listener.
	ln net.Listener

	// logger is the [SLogger] to use.
	logger SLogger

	// loop is the loop serving connections.
	loop *evloop.Loop

	// prepare wraps every accepted connection.
	prepare Func[net.Conn, net.Conn]

	// registry maps paths to resources.
	registry *Registry
}

// NewListener creates a new [*Listener].
//
// The cfg argument contains the configuration applied to every
// connection; the listener copies the values it needs.
//
// The logger argument is the [SLogger] to use for structured logging.
func NewListener(cfg *Config, logger SLogger) *Listener {
	ctx, cancel := context.WithCancel(context.Background())
	return &Listener{
		bodySize:      cfg.BodyBufferSize,
		errClassifier: cfg.ErrClassifier,
		headerSize:    cfg.HeaderBufferSize,
		linger:        cfg.LingerTimeout,
		maxConns:      cfg.MaxConns,
		readSize:      cfg.ReadBufferSize,
		socketSize:    cfg.SocketBufferSize,
		timeNow:       cfg.TimeNow,
		timeout:       cfg.Timeout,
		cancel:        cancel,
		conns:         make(map[uint64]*conn),
		ctx:           ctx,
		logger:        logger,
		prepare:       Compose2(NewObserveConnFunc(cfg, logger), NewCancelWatchFunc()),
		registry:      NewRegistry(cfg.ExpectedResources),
	}
}

// Registry returns the registry of served resources.
func (l *Listener) Registry() *Registry {
	return l.registry
}

// RegisterResource serves doc at path. The data argument is passed to
// doc unmodified on each request. It returns [ErrAlreadyExists] if path
// is already registered.
func (l *Listener) RegisterResource(path string, doc Document, data any) error {
	return l.registry.Register(path, doc, data)
}

// UnregisterResource stops serving path. It returns [ErrNotFound] if
// path is not registered. Requests being served are not affected.
func (l *Listener) UnregisterResource(path string) error {
	return l.registry.Unregister(path)
}

// Bind binds to the given address and port and starts listening with
// the given backlog (zero or negative means the system maximum).
//
// On failure, it returns a [*BindError].
func (l *Listener) Bind(address, port string, backlog int) error {
	runtimex.Assert(l.ln == nil)
	endpoint := net.JoinHostPort(address, port)

	t0 := l.timeNow()
	l.logger.Info(
		"listenStart",
		slog.Int("backlog", backlog),
		slog.String("localAddr", endpoint),
		slog.String("protocol", "tcp"),
		slog.Time("t", t0),
	)

	ln, err := listenTCP(endpoint, backlog)
	if err == nil && l.maxConns > 0 {
		ln = netutil.LimitListener(ln, l.maxConns)
	}

	boundAddr := ""
	if ln != nil {
		boundAddr = ln.Addr().String()
	}
	l.logger.Info(
		"listenDone",
		slog.Int("backlog", backlog),
		slog.Any("err", err),
		slog.String("errClass", l.errClassifier.Classify(err)),
		slog.String("localAddr", boundAddr),
		slog.String("protocol", "tcp"),
		slog.Time("t0", t0),
		slog.Time("t", l.timeNow()),
	)

	if err != nil {
		return &BindError{Address: endpoint, Err: err}
	}
	l.ln = ln
	return nil
}

// Addr returns the bound address or nil if the listener is not bound.
func (l *Listener) Addr() net.Addr {
	if l.ln == nil {
		return nil
	}
	return l.ln.Addr()
}

// Start starts accepting connections and serving them on loop.
//
// It returns [ErrListenerNotBound] if [Listener.Bind] did not succeed.
func (l *Listener) Start(loop *evloop.Loop) error {
	if l.ln == nil {
		return ErrListenerNotBound
	}
	runtimex.Assert(l.loop == nil)
	l.loop = loop
	l.acceptDone = make(chan struct{})
	go l.acceptLoop()
	return nil
}

// acceptLoop hands accepted connections over to the loop. Transient
// failures are logged and retried with exponential backoff.
func (l *Listener) acceptLoop() {
	defer close(l.acceptDone)
	var delay time.Duration
	for {
		nc, err := l.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || l.ctx.Err() != nil {
				return
			}
			delay = min(max(2*delay, 5*time.Millisecond), time.Second)
			l.logger.Warn(
				"acceptDone",
				slog.Any("err", err),
				slog.String("errClass", l.errClassifier.Classify(err)),
				slog.String("localAddr", l.ln.Addr().String()),
				slog.String("protocol", "tcp"),
				slog.Duration("retryDelay", delay),
				slog.Time("t", l.timeNow()),
			)
			select {
			case <-l.ctx.Done():
				return
			case <-time.After(delay):
			}
			continue
		}
		delay = 0

		nc, err = l.prepare.Call(l.ctx, nc)
		if err != nil {
			continue
		}
		l.loop.Post(func() {
			l.spawn(nc)
		})
	}
}

// spawn creates and starts the state machine for an accepted connection.
func (l *Listener) spawn(nc net.Conn) {
	if l.destroyed {
		nc.Close()
		return
	}
	l.lastID++
	c := newConn(l, l.lastID, nc)
	l.conns[c.id] = c
	c.start()
}

// NumConns returns the number of live connections.
func (l *Listener) NumConns() int {
	return len(l.conns)
}

// Destroy stops accepting, tears down every live connection, and
// releases the registry. Calling Destroy more than once is harmless.
func (l *Listener) Destroy() {
	if l.destroyed {
		return
	}
	l.destroyed = true
	l.cancel()
	if l.ln != nil {
		l.ln.Close()
	}
	if l.acceptDone != nil {
		<-l.acceptDone
	}
	for _, c := range l.conns {
		c.abort(l.ctx.Err())
	}
	runtimex.Assert(len(l.conns) == 0)
	l.registry.Clear()
}

// endpointAttrs returns the log attributes identifying nc.
func endpointAttrs(nc net.Conn) (laddr, protocol, raddr string) {
	return safeconn.LocalAddr(nc), safeconn.Network(nc), safeconn.RemoteAddr(nc)
}
