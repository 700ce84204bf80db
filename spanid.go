// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 identifying a span.
//
// The [*Listener] assigns a span ID to every accepted connection and
// attaches it to the connStart, httpRequest, and connDone events, so that
// all the events of an exchange can be correlated.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
