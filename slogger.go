// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

// SLogger abstracts the [*slog.Logger] behavior.
//
// The [*slog.Logger] type satisfies this interface.
//
// Levels used by this package:
//   - Debug for per-I/O events of accepted connections (read, write, deadlines)
//   - Info for lifecycle events (listen, connStart, httpRequest, connDone, close)
//   - Warn for accept failures, which the listener survives
type SLogger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
}

// DefaultSLogger returns an [SLogger] discarding everything.
//
// A library should not write to stdout/stderr unless explicitly configured
// to do so: pass a [*slog.Logger] to [NewListener] to get logs.
func DefaultSLogger() SLogger {
	return discardSLogger{}
}

type discardSLogger struct{}

var _ SLogger = discardSLogger{}

// Debug implements [SLogger].
func (discardSLogger) Debug(string, ...any) {}

// Info implements [SLogger].
func (discardSLogger) Info(string, ...any) {}

// Warn implements [SLogger].
func (discardSLogger) Warn(string, ...any) {}
