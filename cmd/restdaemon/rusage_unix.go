//go:build unix

// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// getResourceUsage returns the resource usage of this process.
func getResourceUsage() (resourceUsage, error) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return resourceUsage{}, os.NewSyscallError("getrusage", err)
	}
	return resourceUsage{
		utime:    time.Duration(ru.Utime.Nano()),
		stime:    time.Duration(ru.Stime.Nano()),
		maxrss:   int64(ru.Maxrss),
		nsignals: int64(ru.Nsignals),
		nvcsw:    int64(ru.Nvcsw),
		nivcsw:   int64(ru.Nivcsw),
	}, nil
}
