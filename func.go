// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import "context"

// Func is a generic operation that accepts an input and returns a result.
//
// The [*Listener] uses a Func[net.Conn, net.Conn] to prepare each accepted
// connection before spawning the connection state machine. Stages are
// chained with [Compose2].
//
// Resource cleanup contract: when a Func receives a closeable resource as input
// and returns an error, it is responsible for closing that resource before returning.
type Func[A, B any] interface {
	Call(ctx context.Context, input A) (B, error)
}
