//go:build linux

// SPDX-License-Identifier: GPL-3.0-or-later

package restworker

import (
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// listenTCP binds a TCP socket to endpoint and listens with the given backlog.
//
// We create the socket ourselves because [net.Listen] always uses the
// system maximum backlog.
func listenTCP(endpoint string, backlog int) (net.Listener, error) {
	addr, err := net.ResolveTCPAddr("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	family, sa := tcpSockaddr(addr)

	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, os.NewSyscallError("socket", err)
	}
	file := os.NewFile(uintptr(fd), "tcp:"+endpoint)
	defer file.Close() // net.FileListener dups the descriptor

	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		return nil, os.NewSyscallError("setsockopt", err)
	}
	if err := unix.Bind(fd, sa); err != nil {
		return nil, os.NewSyscallError("bind", err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(fd, backlog); err != nil {
		return nil, os.NewSyscallError("listen", err)
	}
	return net.FileListener(file)
}

// tcpSockaddr converts addr to a socket address. An unspecified IP
// address binds to all the IPv4 interfaces.
func tcpSockaddr(addr *net.TCPAddr) (int, unix.Sockaddr) {
	if ip4 := addr.IP.To4(); ip4 != nil || len(addr.IP) <= 0 {
		sa := &unix.SockaddrInet4{Port: addr.Port}
		copy(sa.Addr[:], ip4)
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: addr.Port}
	copy(sa.Addr[:], addr.IP.To16())
	if ifi, err := net.InterfaceByName(addr.Zone); err == nil {
		sa.ZoneId = uint32(ifi.Index)
	}
	return unix.AF_INET6, sa
}
