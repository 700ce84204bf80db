// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import "time"

// Config holds the configuration of a [*Listener].
//
// Pass this to [NewListener]. All fields have sensible defaults set by
// [NewConfig]. The listener copies the values it needs at construction,
// so every connection it spawns uses the same settings.
type Config struct {
	// BodyBufferSize is the capacity of each connection's body buffer.
	//
	// A rendered document that does not fit causes a 500 response.
	//
	// Set by [NewConfig] to 1 MiB.
	BodyBufferSize int

	// ErrClassifier classifies errors for structured logging.
	//
	// Set by [NewConfig] to [DefaultErrClassifier].
	ErrClassifier ErrClassifier

	// ExpectedResources is a hint for sizing the resource registry.
	//
	// Set by [NewConfig] to 64.
	ExpectedResources int

	// HeaderBufferSize is the capacity of each connection's header buffer.
	//
	// Set by [NewConfig] to 4096 bytes.
	HeaderBufferSize int

	// LingerTimeout bounds the time spent flushing a response after the
	// connection has been torn down.
	//
	// Set by [NewConfig] to 5 seconds.
	LingerTimeout time.Duration

	// MaxConns limits the number of simultaneously accepted connections.
	// Zero means no limit.
	//
	// Set by [NewConfig] to 0.
	MaxConns int

	// ReadBufferSize is the capacity of each connection's read buffer and
	// thus the maximum size of a request.
	//
	// Set by [NewConfig] to 4096 bytes.
	ReadBufferSize int

	// SocketBufferSize is the capacity of each socket's input and output
	// queues (see [evloop.Socket]).
	//
	// Set by [NewConfig] to 64 KiB.
	SocketBufferSize int

	// TimeNow returns the current time.
	//
	// Set by [NewConfig] to [time.Now].
	TimeNow func() time.Time

	// Timeout is the inactivity timeout of each connection. It is armed
	// when the connection is accepted and covers the whole exchange.
	//
	// Set by [NewConfig] to 15 seconds.
	Timeout time.Duration
}

// NewConfig creates a [*Config] with sensible defaults.
func NewConfig() *Config {
	return &Config{
		BodyBufferSize:    1 << 20,
		ErrClassifier:     DefaultErrClassifier,
		ExpectedResources: 64,
		HeaderBufferSize:  4096,
		LingerTimeout:     5 * time.Second,
		MaxConns:          0,
		ReadBufferSize:    4096,
		SocketBufferSize:  64 << 10,
		TimeNow:           time.Now,
		Timeout:           15 * time.Second,
	}
}
