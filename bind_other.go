//go:build !linux

// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import "net"

// listenTCP binds endpoint using [net.Listen], which chooses the backlog.
func listenTCP(endpoint string, backlog int) (net.Listener, error) {
	return net.Listen("tcp", endpoint)
}
